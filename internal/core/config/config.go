// Package config reads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/geopin/internal/cache"
	h3mapper "github.com/mohammed-shakir/geopin/internal/mapper/h3"
	"github.com/mohammed-shakir/geopin/internal/scheme"
	enrichkafka "github.com/mohammed-shakir/geopin/pkg/enrichment/kafka"
	"github.com/mohammed-shakir/geopin/pkg/pluscode"
)

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool
	LogSampleN int

	Schemes        []string
	H3Res          int
	PlusCodeLength int

	CacheMode      cache.Mode
	RedisAddr      string
	LRUSize        int
	L1TTL          time.Duration
	CacheOpTimeout time.Duration
	CacheTTLCold   time.Duration
	CacheTTLWarm   time.Duration
	CacheTTLHot    time.Duration
	HotThreshold   float64
	HotHalfLife    time.Duration

	MetricsEnabled bool

	Enrichment enrichkafka.EnrichmentConfig
}

// Load reads the given dotenv files (".env" when none are named) into the
// environment without overriding variables that are already set, then
// returns FromEnv. Missing files are ignored.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(), nil
}

func FromEnv() Config {
	ttlCold := getduration("CACHE_TTL_COLD", 5*time.Minute)

	return Config{
		Addr:       getenv("ADDR", ":8090"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		LogSampleN: getint("LOG_SAMPLE_N", 0),

		Schemes:        getlist("SCHEMES", scheme.Default),
		H3Res:          getint("H3_RES", 9),
		PlusCodeLength: getint("PLUSCODE_LENGTH", pluscode.DefaultLength),

		CacheMode:      cache.Mode(strings.ToLower(getenv("CACHE_MODE", string(cache.ModeLRU)))),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		LRUSize:        getint("LRU_SIZE", 100_000),
		L1TTL:          getduration("CACHE_L1_TTL", 30*time.Second),
		CacheOpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		CacheTTLCold:   ttlCold,
		CacheTTLWarm:   getduration("CACHE_TTL_WARM", 6*ttlCold),
		CacheTTLHot:    getduration("CACHE_TTL_HOT", 24*ttlCold),
		HotThreshold:   getfloat("HOT_THRESHOLD", 10.0),
		HotHalfLife:    getduration("HOT_HALF_LIFE", time.Minute),

		MetricsEnabled: getbool("METRICS_ENABLED", true),

		Enrichment: enrichkafka.FromEnv(),
	}
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if _, ok := cache.ParseMode(string(c.CacheMode)); !ok {
		errs = append(errs, fmt.Errorf("CACHE_MODE %q: want none, lru, redis or tiered", c.CacheMode))
	}
	if slices.Contains(c.Schemes, scheme.PlusCode) && !pluscode.ValidLength(c.PlusCodeLength) {
		errs = append(errs, fmt.Errorf("PLUSCODE_LENGTH %d is not a valid code length", c.PlusCodeLength))
	}
	if slices.Contains(c.Schemes, scheme.H3) {
		if err := h3mapper.ValidateRes(c.H3Res); err != nil {
			errs = append(errs, fmt.Errorf("H3_RES: %w", err))
		}
	}
	if len(c.Schemes) == 0 {
		errs = append(errs, errors.New("SCHEMES must name at least one scheme"))
	}
	if (c.CacheMode == cache.ModeLRU || c.CacheMode == cache.ModeTiered) && c.LRUSize <= 0 {
		errs = append(errs, fmt.Errorf("LRU_SIZE %d must be positive", c.LRUSize))
	}
	if c.Enrichment.Enabled && len(c.Enrichment.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when ENRICH_ENABLED=true"))
	}
	return errors.Join(errs...)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "a, b,c" into a trimmed list
func getlist(k string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return append([]string(nil), def...)
	}
	var out []string
	for p := range strings.SplitSeq(v, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}
