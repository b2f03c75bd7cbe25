// Package observability holds the service-wide Prometheus collectors.
package observability

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

type collectors struct {
	enabled bool

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	encodeTotal                *prometheus.CounterVec
	encodeDurationSeconds      *prometheus.HistogramVec
	cacheOpTotal               *prometheus.CounterVec
	redisOpDurationSeconds     *prometheus.HistogramVec
	cacheResults               *prometheus.CounterVec
	hexGridFallbacks           prometheus.Counter
	hotKeys                    *prometheus.GaugeVec
	buildInfo                  *prometheus.GaugeVec
}

var current atomic.Pointer[collectors]

func init() {
	current.Store(newCollectors(false))
}

func newCollectors(enabled bool) *collectors {
	return &collectors{
		enabled: enabled,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
			},
			[]string{"method", "route", "status"},
		),
		encodeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "encode_total",
				Help: "Encodings by scheme and outcome (ok, placeholder).",
			},
			[]string{"scheme", "outcome"},
		),
		encodeDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "encode_duration_seconds",
				Help:    "Time spent in a single scheme encoder.",
				Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10), // 1µs to ~0.26s
			},
			[]string{"scheme"},
		),
		cacheOpTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_op_total",
				Help: "Cache backend operations by result.",
			},
			[]string{"op", "result"},
		),
		redisOpDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "redis_operation_duration_seconds",
				Help:    "Latency of Redis operations.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"op"},
		),
		cacheResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_results_total",
				Help: "Encode cache lookups by outcome and tier.",
			},
			[]string{"outcome", "tier"},
		),
		hexGridFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hexgrid_fallback_total",
				Help: "Hex grid lookups replaced by the placeholder.",
			},
		),
		hotKeys: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hot_keys",
				Help: "Number of keys tracked by the hotness model.",
			},
			[]string{"tier"},
		),
		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "geopin_build_info",
				Help: "Build information for the binary.",
			},
			[]string{"version"},
		),
	}
}

// Init swaps in a fresh collector set registered on reg. With enabled=false
// observations are dropped.
func Init(reg prometheus.Registerer, enabled bool) {
	c := newCollectors(enabled)
	if enabled && reg != nil {
		reg.MustRegister(
			c.httpRequestsTotal,
			c.httpRequestDurationSeconds,
			c.encodeTotal,
			c.encodeDurationSeconds,
			c.cacheOpTotal,
			c.redisOpDurationSeconds,
			c.cacheResults,
			c.hexGridFallbacks,
			c.hotKeys,
			c.buildInfo,
		)
	}
	current.Store(c)
}

func get() *collectors {
	c := current.Load()
	if c == nil || !c.enabled {
		return nil
	}
	return c
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	c := get()
	if c == nil {
		return
	}
	st := strconv.Itoa(status)
	c.httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	c.httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveEncode(scheme string, ok bool, durationSeconds float64) {
	c := get()
	if c == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "placeholder"
	}
	c.encodeTotal.WithLabelValues(scheme, outcome).Inc()
	c.encodeDurationSeconds.WithLabelValues(scheme).Observe(durationSeconds)
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	c := get()
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.cacheOpTotal.WithLabelValues(op, result).Inc()
	c.redisOpDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func AddCacheHits(tier string, n int) {
	if c := get(); c != nil && n > 0 {
		c.cacheResults.WithLabelValues("hit", tier).Add(float64(n))
	}
}

func AddCacheMisses(tier string, n int) {
	if c := get(); c != nil && n > 0 {
		c.cacheResults.WithLabelValues("miss", tier).Add(float64(n))
	}
}

func IncHexGridFallback() {
	if c := get(); c != nil {
		c.hexGridFallbacks.Inc()
	}
}

func SetHotKeysGauge(tier string, n int) {
	if c := get(); c != nil {
		c.hotKeys.WithLabelValues(tier).Set(float64(n))
	}
}

func ExposeBuildInfo(version string) {
	c := get()
	if c == nil {
		return
	}
	if version == "" {
		version = "dev"
	}
	c.buildInfo.WithLabelValues(version).Set(1)
}
