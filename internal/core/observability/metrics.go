// Package observability holds the Prometheus collectors every component
// reports into. Collectors are registered on the default registry at init and
// may additionally be attached to a dedicated registry via Init.
package observability

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

func init() {
	enabled.Store(true)
	for _, c := range collectors() {
		_ = prometheus.DefaultRegisterer.Register(c)
	}
	_ = prometheus.DefaultRegisterer.Register(buildInfo)
}

// Init attaches the collectors to reg (when non-nil) and toggles recording.
// app_build_info is left to the registry owner.
func Init(reg prometheus.Registerer, on bool) {
	enabled.Store(on)
	if reg == nil {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
}

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds,
		upstreamLatencySeconds, upstreamErrorsTotal,
		cacheResults, cacheOps, cacheOpDurationSeconds,
		enrichmentOutcomes, geocodeMemo, invalidationEvents,
	}
}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	upstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_errors_total",
			Help: "Failed upstream calls that were degraded instead of surfaced.",
		},
		[]string{"upstream", "kind"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Building cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	cacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Cache backend operations by result.",
		},
		[]string{"op", "result"},
	)

	cacheOpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_op_duration_seconds",
			Help:    "Cache backend operation latency.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"op"},
	)

	enrichmentOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_outcomes_total",
			Help: "Per-building enrichment outcomes.",
		},
		[]string{"outcome"},
	)

	geocodeMemo = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocode_memo_total",
			Help: "Geocode memo lookups by result.",
		},
		[]string{"result"},
	)

	invalidationEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidation_events_total",
			Help: "Directory change notifications by result.",
		},
		[]string{"result"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

// IncUpstreamError counts a degraded upstream failure; kind is transport,
// status, decode or request.
func IncUpstreamError(upstream, kind string) {
	if !enabled.Load() {
		return
	}
	upstreamErrorsTotal.WithLabelValues(upstream, kind).Inc()
}

func IncCacheHit()     { incCacheResult("hit") }
func IncCacheMiss()    { incCacheResult("miss") }
func IncCacheCorrupt() { incCacheResult("corrupt") }

func incCacheResult(outcome string) {
	if !enabled.Load() {
		return
	}
	cacheResults.WithLabelValues(outcome).Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheOps.WithLabelValues(op, result).Inc()
	cacheOpDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func IncEnrichment(outcome string) {
	if !enabled.Load() {
		return
	}
	enrichmentOutcomes.WithLabelValues(outcome).Inc()
}

func IncGeocodeMemo(result string) {
	if !enabled.Load() {
		return
	}
	geocodeMemo.WithLabelValues(result).Inc()
}

func IncInvalidation(result string) {
	if !enabled.Load() {
		return
	}
	invalidationEvents.WithLabelValues(result).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
