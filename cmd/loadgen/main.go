// Command loadgen drives a running campus-buildings instance with a Zipf
// skewed mix of building list and locate requests and writes per-request
// samples (CSV) plus a run summary (JSON).
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mohammed-shakir/campus-buildings/internal/core/model"
	"github.com/mohammed-shakir/campus-buildings/internal/logger"
)

type Config struct {
	TargetURL       string
	Concurrency     int
	Duration        time.Duration
	ZipfS           float64
	ZipfV           float64
	LocateRatio     float64
	RadiusM         float64
	JitterM         float64
	PointCount      int
	OutputPrefix    string
	RequestTimeout  time.Duration
	AppendTimestamp bool
	TimestampFormat string
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.TargetURL, "target", "http://localhost:9090", "Service base URL")
	flag.IntVar(&cfg.Concurrency, "concurrency", 16, "Concurrent workers")
	flag.DurationVar(&cfg.Duration, "duration", 30*time.Second, "Test duration")
	flag.Float64Var(&cfg.ZipfS, "zipf-s", 1.3, "Zipf parameter s (>1)")
	flag.Float64Var(&cfg.ZipfV, "zipf-v", 1.0, "Zipf parameter v (>=1)")
	flag.Float64Var(&cfg.LocateRatio, "locate-ratio", 0.8, "Share of requests that hit the locate route")
	flag.Float64Var(&cfg.RadiusM, "radius", 0, "Locate radius in meters (0 uses the server default)")
	flag.Float64Var(&cfg.JitterM, "jitter", 40, "Max offset in meters applied to building coordinates")
	flag.IntVar(&cfg.PointCount, "points", 64, "Synthetic points when the building list is unavailable")
	flag.StringVar(&cfg.OutputPrefix, "out", "results/loadgen", "Output file prefix (JSON/CSV)")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", 35*time.Second, "Per-request timeout")
	flag.BoolVar(&cfg.AppendTimestamp, "append-ts", true, "Append timestamp to output prefix")
	flag.StringVar(&cfg.TimestampFormat, "ts-format", "iso", "Timestamp format: iso|unix|none")
	flag.Parse()
	return cfg
}

// one sample per request
type sample struct {
	Timestamp time.Time
	Route     string
	Latency   time.Duration
	Status    int
	Cache     string
	ErrorMsg  string
	PointCode string
}

type summary struct {
	StartTime     time.Time `json:"start"`
	EndTime       time.Time `json:"end"`
	DurationSec   float64   `json:"duration_sec"`
	TotalRequests int64     `json:"total"`
	SuccessCount  int64     `json:"success"`
	NotFoundCount int64     `json:"not_found"`
	ErrorCount    int64     `json:"errors"`
	CacheHits     int64     `json:"cache_hits"`
	ThroughputRPS float64   `json:"throughput_rps"`
	P50Ms         float64   `json:"p50_ms"`
	P95Ms         float64   `json:"p95_ms"`
	P99Ms         float64   `json:"p99_ms"`
	Concurrency   int       `json:"concurrency"`
	ZipfS         float64   `json:"zipf_s"`
	ZipfV         float64   `json:"zipf_v"`
	LocateRatio   float64   `json:"locate_ratio"`
	Points        int       `json:"points"`
	TargetURL     string    `json:"target"`
}

type aggregatedResult struct {
	total    int64
	success  int64
	notFound int64
	errors   int64
	hits     int64
	latMs    []float64
}

func main() {
	cfg := loadConfig()
	zl := logger.Build(logger.Config{Level: "info", Console: true, Service: "campus-buildings", Component: "loadgen"}, os.Stderr)
	log := logger.NewSlog(&zl)
	if err := run(cfg, log); err != nil {
		log.Error("loadgen failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, log *slog.Logger) error {
	base, err := url.Parse(strings.TrimRight(cfg.TargetURL, "/"))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		return fmt.Errorf("bad target %q", cfg.TargetURL)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPrefix), 0o750); err != nil {
		return fmt.Errorf("mkdir results: %w", err)
	}

	prefix := cfg.OutputPrefix
	if cfg.AppendTimestamp {
		switch strings.ToLower(cfg.TimestampFormat) {
		case "none":
		case "unix":
			prefix = fmt.Sprintf("%s_%d", prefix, time.Now().Unix())
		default: // "iso"
			prefix = fmt.Sprintf("%s_%s", prefix, time.Now().UTC().Format("20060102_150405Z"))
		}
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 4 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:          256,
			MaxIdleConnsPerHost:   128,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		Timeout: cfg.RequestTimeout,
	}

	seed := time.Now().UnixNano()
	r := rand.New(rand.NewSource(seed))

	// the first list call also warms the server cache
	points := warmup(httpClient, base, cfg, r, log)
	if len(points) == 0 {
		points = syntheticPoints(cfg.PointCount, r)
		log.Info("using synthetic points", "points", len(points))
	}
	if len(points) == 0 {
		return fmt.Errorf("no points to query")
	}
	imax := uint64(len(points)) - 1

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	csvPath := prefix + "_samples.csv"
	jsonPath := prefix + "_summary.json"
	csvFile, err := os.Create(filepath.Clean(csvPath))
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = csvFile.Close() }()
	csvWriter := csv.NewWriter(csvFile)

	samplesChan := make(chan sample, 4096)
	resultsChan := make(chan aggregatedResult, 1)
	go func() {
		_ = csvWriter.Write([]string{"timestamp", "route", "latency_ms", "status", "x_cache", "error", "point"})
		var agg aggregatedResult
		agg.latMs = make([]float64, 0, 1<<16)
		for s := range samplesChan {
			agg.total++
			switch {
			case s.ErrorMsg != "":
				agg.errors++
			case s.Status == http.StatusNotFound:
				agg.notFound++
				agg.latMs = append(agg.latMs, float64(s.Latency.Microseconds())/1000.0)
			default:
				agg.success++
				agg.latMs = append(agg.latMs, float64(s.Latency.Microseconds())/1000.0)
			}
			if s.Cache == "HIT" {
				agg.hits++
			}
			_ = csvWriter.Write([]string{
				s.Timestamp.UTC().Format(time.RFC3339Nano),
				s.Route,
				fmt.Sprintf("%.3f", float64(s.Latency.Microseconds())/1000.0),
				fmt.Sprintf("%d", s.Status),
				s.Cache,
				s.ErrorMsg,
				s.PointCode,
			})
		}
		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			log.Warn("csv flush error", "err", err)
		}
		resultsChan <- agg
	}()

	startTime := time.Now()
	log.Info("loadgen start",
		"target", cfg.TargetURL, "duration", cfg.Duration.String(), "concurrency", cfg.Concurrency,
		"zipf_s", cfg.ZipfS, "zipf_v", cfg.ZipfV, "locate_ratio", cfg.LocateRatio, "points", len(points))

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

				s := sample{Route: "list"}
				target := listURL(base)
				if rWorker.Float64() < cfg.LocateRatio {
					v := zipfDist.Uint64()
					if v > uint64(math.MaxInt) || int(v) >= len(points) {
						continue
					}
					p := points[int(v)]
					s.Route, s.PointCode = "locate", p.Code
					target = locateURL(base, p, cfg.RadiusM)
				}

				s.Timestamp = time.Now()
				req, _ := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				req.Header.Set("Accept", "application/json")
				resp, err := httpClient.Do(req)
				s.Latency = time.Since(s.Timestamp)

				if err != nil {
					s.ErrorMsg = err.Error()
				} else {
					s.Status = resp.StatusCode
					s.Cache = resp.Header.Get("X-Cache")
					_, _ = io.Copy(io.Discard, resp.Body)
					_ = resp.Body.Close()
					// 404 from locate means no building nearby, not a failure
					if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
						s.ErrorMsg = fmt.Sprintf("status=%d", resp.StatusCode)
					}
				}

				select {
				case samplesChan <- s:
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
		NotFoundCount: agg.notFound,
		ErrorCount:    agg.errors,
		CacheHits:     agg.hits,
		ThroughputRPS: float64(agg.total) / elapsed,
		P50Ms:         percentile(agg.latMs, 50),
		P95Ms:         percentile(agg.latMs, 95),
		P99Ms:         percentile(agg.latMs, 99),
		Concurrency:   cfg.Concurrency,
		ZipfS:         cfg.ZipfS,
		ZipfV:         cfg.ZipfV,
		LocateRatio:   cfg.LocateRatio,
		Points:        len(points),
		TargetURL:     cfg.TargetURL,
	}

	jsonFile, err := os.Create(filepath.Clean(jsonPath))
	if err != nil {
		return fmt.Errorf("open summary: %w", err)
	}
	enc := json.NewEncoder(jsonFile)
	enc.SetIndent("", "  ")
	_ = enc.Encode(runSummary)
	_ = jsonFile.Close()

	log.Info("loadgen done",
		"total", agg.total, "success", agg.success, "not_found", agg.notFound, "errors", agg.errors,
		"rps", runSummary.ThroughputRPS, "p50_ms", runSummary.P50Ms, "p95_ms", runSummary.P95Ms, "p99_ms", runSummary.P99Ms,
		"samples", csvPath, "summary", jsonPath)
	return nil
}

// warmup fetches the building list once and turns it into query points.
func warmup(client *http.Client, base *url.URL, cfg Config, r *rand.Rand, log *slog.Logger) []Point {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, listURL(base), nil)
	req.Header.Set("Accept", "application/json")
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		log.Warn("warmup request failed", "err", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	var buildings []model.Building
	if err := json.NewDecoder(resp.Body).Decode(&buildings); err != nil {
		log.Warn("warmup decode failed", "status", resp.StatusCode, "err", err)
		return nil
	}
	points := pointsFromBuildings(buildings, cfg.JitterM, r)
	log.Info("warmup done",
		"buildings", len(buildings), "points", len(points),
		"x_cache", resp.Header.Get("X-Cache"), "duration", time.Since(start).String())
	return points
}
