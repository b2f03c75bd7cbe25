// Command loadgen drives the encoding API over HTTP, or feeds pointer events
// into the enrichment topic.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/geopin/internal/core/model"
	enrichkafka "github.com/mohammed-shakir/geopin/pkg/enrichment/kafka"
)

type Config struct {
	Mode           string
	TargetURL      string
	Concurrency    int
	Duration       time.Duration
	ZipfS          float64
	ZipfV          float64
	PointCount     int
	PointsFile     string
	OutputPrefix   string
	RequestTimeout time.Duration
	Brokers        string
	Topic          string
	Devices        int
	Rate           int
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.Mode, "mode", "http", "Load mode: http|kafka")
	flag.StringVar(&cfg.TargetURL, "target", "http://localhost:8090/v1/encode", "Encode endpoint URL")
	flag.IntVar(&cfg.Concurrency, "concurrency", 32, "Concurrent workers")
	flag.DurationVar(&cfg.Duration, "duration", 60*time.Second, "Test duration")
	flag.Float64Var(&cfg.ZipfS, "zipf-s", 1.3, "Zipf parameter s (>1)")
	flag.Float64Var(&cfg.ZipfV, "zipf-v", 1.0, "Zipf parameter v (>=1)")
	flag.IntVar(&cfg.PointCount, "points", 256, "Distinct points in pool")
	flag.StringVar(&cfg.PointsFile, "points-file", "", "Optional CSV file (lat,lon) to drive the pool")
	flag.StringVar(&cfg.OutputPrefix, "out", "results/loadgen", "Output file prefix (JSON/CSV)")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", 10*time.Second, "Per-request timeout")
	flag.StringVar(&cfg.Brokers, "brokers", getenv("KAFKA_BROKERS", "localhost:9092"), "Kafka brokers (kafka mode)")
	flag.StringVar(&cfg.Topic, "topic", getenv("ENRICH_TOPIC", "geopin.pointer"), "Pointer topic (kafka mode)")
	flag.IntVar(&cfg.Devices, "devices", 16, "Simulated pointing devices (kafka mode)")
	flag.IntVar(&cfg.Rate, "rate", 50, "Events per second per device (kafka mode)")
	flag.Parse()
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// request result (one sample per request)
type sample struct {
	Timestamp time.Time
	Latency   time.Duration
	Status    int
	ErrorMsg  string
	PointIdx  int
	Cached    bool
}

type summary struct {
	StartTime     time.Time `json:"start"`
	EndTime       time.Time `json:"end"`
	DurationSec   float64   `json:"duration_sec"`
	TotalRequests int64     `json:"total"`
	SuccessCount  int64     `json:"success"`
	ErrorCount    int64     `json:"errors"`
	CachedCount   int64     `json:"cached"`
	ThroughputRPS float64   `json:"throughput_rps"`
	P50Ms         float64   `json:"p50_ms"`
	P95Ms         float64   `json:"p95_ms"`
	P99Ms         float64   `json:"p99_ms"`
	Concurrency   int       `json:"concurrency"`
	ZipfS         float64   `json:"zipf_s"`
	ZipfV         float64   `json:"zipf_v"`
	Points        int       `json:"points"`
	TargetURL     string    `json:"target"`
}

type aggregatedResult struct {
	total   int64
	success int64
	errors  int64
	cached  int64
	latMs   []float64
}

func main() {
	cfg := loadConfig()

	seed := time.Now().UnixNano()
	r := rand.New(rand.NewSource(seed))

	var points []model.Coordinate
	if strings.TrimSpace(cfg.PointsFile) != "" {
		p, err := loadPointsCSV(cfg.PointsFile)
		if err != nil {
			log.Printf("WARN: failed to load points from %q: %v; falling back to synthetic points", cfg.PointsFile, err)
		} else {
			points = p
			log.Printf("using %d points from %s", len(points), cfg.PointsFile)
		}
	}
	if len(points) == 0 {
		points = makePoints(cfg.PointCount, r)
		log.Printf("using %d synthetic points", len(points))
	}
	if len(points) == 0 {
		log.Fatalf("no points generated")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	switch cfg.Mode {
	case "kafka":
		if err := runKafka(ctx, cfg, points, seed); err != nil {
			log.Fatalf("kafka load: %v", err)
		}
	case "http":
		runHTTP(ctx, cfg, points, seed)
	default:
		log.Fatalf("unknown mode %q", cfg.Mode)
	}
}

func runHTTP(ctx context.Context, cfg Config, points []model.Coordinate, seed int64) {
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPrefix), 0o750); err != nil {
		log.Fatalf("mkdir results: %v", err)
	}
	prefix := fmt.Sprintf("%s_%s", cfg.OutputPrefix, time.Now().UTC().Format("20060102_150405Z"))

	imax := uint64(len(points)) - 1

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 4 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:          1024,
			MaxIdleConnsPerHost:   256,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   4 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		Timeout: cfg.RequestTimeout,
	}

	csvPath := prefix + "_samples.csv"
	jsonPath := prefix + "_summary.json"
	csvFile, err := os.Create(filepath.Clean(csvPath))
	if err != nil {
		log.Printf("open csv: %v", err)
		return
	}
	defer func() { _ = csvFile.Close() }()
	csvWriter := csv.NewWriter(csvFile)

	samplesChan := make(chan sample, 4096)
	resultsChan := make(chan aggregatedResult, 1)
	go func() {
		_ = csvWriter.Write([]string{"timestamp", "latency_ms", "status", "error", "point_idx", "cached"})
		var agg aggregatedResult
		agg.latMs = make([]float64, 0, 1<<20)
		for s := range samplesChan {
			agg.total++
			if s.ErrorMsg == "" && s.Status >= 200 && s.Status < 300 {
				agg.success++
				agg.latMs = append(agg.latMs, float64(s.Latency.Microseconds())/1000.0)
				if s.Cached {
					agg.cached++
				}
			} else {
				agg.errors++
			}
			_ = csvWriter.Write([]string{
				s.Timestamp.UTC().Format(time.RFC3339Nano),
				fmt.Sprintf("%.3f", float64(s.Latency.Microseconds())/1000.0),
				strconv.Itoa(s.Status),
				s.ErrorMsg,
				strconv.Itoa(s.PointIdx),
				strconv.FormatBool(s.Cached),
			})
		}
		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			log.Printf("csv flush error: %v", err)
		}
		resultsChan <- agg
	}()

	startTime := time.Now()
	log.Printf("loadgen start target=%s dur=%s conc=%d zipf(s=%.2f,v=%.2f) points=%d",
		cfg.TargetURL, cfg.Duration, cfg.Concurrency, cfg.ZipfS, cfg.ZipfV, len(points))

	var wg sync.WaitGroup
	wg.Add(cfg.Concurrency)

	for workerID := range cfg.Concurrency {
		go func(id int) {
			defer wg.Done()

			rWorker := rand.New(rand.NewSource(seed + int64(id) + 1))
			zipfDist := rand.NewZipf(rWorker, cfg.ZipfS, cfg.ZipfV, imax)
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				v := zipfDist.Uint64()
				if v > uint64(math.MaxInt) {
					continue
				}
				idx := int(v)
				if idx >= len(points) {
					continue
				}
				p := points[idx]

				u, _ := url.Parse(cfg.TargetURL)
				q := u.Query()
				q.Set("lat", strconv.FormatFloat(p.Lat, 'f', 6, 64))
				q.Set("lon", strconv.FormatFloat(p.Lon, 'f', 6, 64))
				u.RawQuery = q.Encode()

				startReq := time.Now()
				req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
				req.Header.Set("Accept", "application/json")
				resp, err := httpClient.Do(req)
				result := sample{Timestamp: startReq, PointIdx: idx}

				if err != nil {
					result.ErrorMsg = err.Error()
				} else {
					result.Status = resp.StatusCode
					var body model.EncodeResult
					if resp.StatusCode >= 200 && resp.StatusCode < 300 {
						_ = json.NewDecoder(resp.Body).Decode(&body)
					}
					_, _ = io.Copy(io.Discard, resp.Body)
					_ = resp.Body.Close()
					result.Cached = body.Cached
					if resp.StatusCode < 200 || resp.StatusCode >= 300 {
						result.ErrorMsg = fmt.Sprintf("status=%d", resp.StatusCode)
					}
				}
				result.Latency = time.Since(startReq)

				select {
				case samplesChan <- result:
				case <-ctx.Done():
					return
				}
			}
		}(workerID)
	}

	go func() {
		<-ctx.Done()
		wg.Wait()
		close(samplesChan)
	}()

	agg := <-resultsChan
	endTime := time.Now()
	elapsed := endTime.Sub(startTime).Seconds()

	sort.Float64s(agg.latMs)
	runSummary := summary{
		StartTime:     startTime.UTC(),
		EndTime:       endTime.UTC(),
		DurationSec:   elapsed,
		TotalRequests: agg.total,
		SuccessCount:  agg.success,
		ErrorCount:    agg.errors,
		CachedCount:   agg.cached,
		ThroughputRPS: float64(agg.total) / elapsed,
		P50Ms:         percentile(agg.latMs, 50),
		P95Ms:         percentile(agg.latMs, 95),
		P99Ms:         percentile(agg.latMs, 99),
		Concurrency:   cfg.Concurrency,
		ZipfS:         cfg.ZipfS,
		ZipfV:         cfg.ZipfV,
		Points:        len(points),
		TargetURL:     cfg.TargetURL,
	}

	jsonFile, err := os.Create(filepath.Clean(jsonPath))
	if err == nil {
		enc := json.NewEncoder(jsonFile)
		enc.SetIndent("", "  ")
		_ = enc.Encode(runSummary)
		_ = jsonFile.Close()
	}

	log.Printf("done: total=%d succ=%d err=%d cached=%d thr=%.2f rps p50=%.1fms p95=%.1fms p99=%.1fms",
		agg.total, agg.success, agg.errors, agg.cached, runSummary.ThroughputRPS,
		runSummary.P50Ms, runSummary.P95Ms, runSummary.P99Ms)
	log.Printf("wrote %s and %s", jsonPath, csvPath)
}

// runKafka simulates devices that wander between pool points and publish a
// pointer event per tick.
func runKafka(ctx context.Context, cfg Config, points []model.Coordinate, seed int64) error {
	scfg := sarama.NewConfig()
	scfg.Version = sarama.V2_5_0_0
	scfg.Producer.Return.Successes = true
	scfg.Producer.RequiredAcks = sarama.WaitForLocal
	prod, err := sarama.NewSyncProducer(strings.Split(cfg.Brokers, ","), scfg)
	if err != nil {
		return fmt.Errorf("producer create: %w", err)
	}
	defer func() { _ = prod.Close() }()

	rate := max(cfg.Rate, 1)
	var sent, failed int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for d := range cfg.Devices {
		wg.Add(1)
		go func(d int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed + int64(d)))
			device := fmt.Sprintf("device-%03d", d)
			pos := points[r.Intn(len(points))]
			tick := time.NewTicker(time.Second / time.Duration(rate))
			defer tick.Stop()

			var seq uint64
			for {
				select {
				case <-ctx.Done():
					return
				case <-tick.C:
				}
				seq++
				// drift a few metres per tick
				pos.Lat += (r.Float64() - 0.5) * 0.0002
				pos.Lon += (r.Float64() - 0.5) * 0.0002
				b, _ := json.Marshal(enrichkafka.PointerEvent{
					DeviceID: device,
					Seq:      seq,
					Lat:      pos.Lat,
					Lon:      pos.Lon,
					TS:       time.Now().UTC(),
				})
				_, _, err := prod.SendMessage(&sarama.ProducerMessage{
					Topic: cfg.Topic,
					Key:   sarama.StringEncoder(device),
					Value: sarama.ByteEncoder(b),
				})
				mu.Lock()
				if err != nil {
					failed++
				} else {
					sent++
				}
				mu.Unlock()
			}
		}(d)
	}
	wg.Wait()
	log.Printf("done: sent=%d failed=%d devices=%d topic=%s", sent, failed, cfg.Devices, cfg.Topic)
	return nil
}
