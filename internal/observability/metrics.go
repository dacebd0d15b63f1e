package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/weather-display/internal/traffic"
)

var (
	registry *prometheus.Registry

	// Preview server request rate.
	HTTPRequestsTotal *prometheus.CounterVec

	// Preview server latency per request.
	HTTPRequestDuration *prometheus.HistogramVec

	HTTPRequestsInFlight prometheus.Gauge

	// OpenWeatherMap API call rate. Watch for: error vs success ratio.
	WeatherAPICallsTotal *prometheus.CounterVec

	// External API latency per request. Watch for: p95 > 2s (upstream degradation), p99 > 5s (timeout risk).
	WeatherAPIDuration *prometheus.HistogramVec

	// Retry attempts for weather API. Watch for: high retries = unstable upstream.
	WeatherAPIRetriesTotal prometheus.Counter

	// Breaker state per component: 0 closed, 1 half-open, 2 open.
	CircuitBreakerState *prometheus.GaugeVec

	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Poll cycles by outcome (ok, partial, failed).
	PollCyclesTotal *prometheus.CounterVec

	PollCycleDuration prometheus.Histogram

	// Per-location poll outcomes (allow-list; others go to "other").
	PollsByLocationTotal *prometheus.CounterVec

	// Decoded payloads by mode and result. Watch for: malformed spikes after upstream format changes.
	PayloadDecodeTotal *prometheus.CounterVec

	// Fields skipped for a cycle because they were missing or malformed.
	FieldRenderErrorsTotal *prometheus.CounterVec

	// Region content changes per slot. Flat when the weather is stable.
	RegionWritesTotal *prometheus.CounterVec

	AssetMissingTotal prometheus.Counter

	// Rate limit denials on the preview server.
	RateLimitDeniedTotal prometheus.Counter

	trackedLocationsMu sync.RWMutex
	trackedLocations   map[string]struct{}

	healthGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of preview HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "Preview HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of preview HTTP requests currently being served",
		},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of OpenWeatherMap API calls",
		},
		[]string{"status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "OpenWeatherMap API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	WeatherAPIRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherApiRetriesTotal",
			Help: "Total number of retry attempts for weather API calls",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	PollCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollCyclesTotal",
			Help: "Completed poll cycles by outcome",
		},
		[]string{"outcome"},
	)
	PollCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pollCycleDurationSeconds",
			Help:    "Duration of a full fetch/decode/render cycle",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
	PollsByLocationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollsByLocationTotal",
			Help: "Per-location poll outcomes (allow-list; others use location=other)",
		},
		[]string{"location", "outcome"},
	)
	PayloadDecodeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payloadDecodeTotal",
			Help: "Decoded weather payloads by decode mode and result",
		},
		[]string{"mode", "result"},
	)
	FieldRenderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldRenderErrorsTotal",
			Help: "Fields skipped in a cycle because they were missing or malformed",
		},
		[]string{"field"},
	)
	RegionWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regionWritesTotal",
			Help: "Display region content changes",
		},
		[]string{"slot"},
	)
	AssetMissingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assetMissingTotal",
			Help: "Bitmap loads that failed because the asset file was absent",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of preview requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration, WeatherAPIRetriesTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
		PollCyclesTotal, PollCycleDuration, PollsByLocationTotal,
		PayloadDecodeTotal, FieldRenderErrorsTotal,
		RegionWritesTotal, AssetMissingTotal,
		RateLimitDeniedTotal,
	)
}

// RegisterHealthGauges registers cycle outcome gauges over the health window.
// Call from main after config load with cfg.Health.DegradedWindow.
func RegisterHealthGauges(window time.Duration) {
	healthGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "cycleErrorsInWindow",
					Help: "Failed location fetches in the health window",
				},
				func() float64 {
					errs, _ := traffic.ErrorRate(window)
					return float64(errs)
				},
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "cycleOutcomesInWindow",
					Help: "Location fetches (success + error) in the health window",
				},
				func() float64 {
					_, total := traffic.ErrorRate(window)
					return float64(total)
				},
			),
		)
	})
}

// SetTrackedLocations sets the allow-list for location metrics. Non-tracked locations increment "other".
func SetTrackedLocations(locations []string) {
	trackedLocationsMu.Lock()
	defer trackedLocationsMu.Unlock()
	trackedLocations = make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		trackedLocations[normalizeLocationForMetrics(loc)] = struct{}{}
	}
}

// RecordPoll records the outcome of one location fetch.
func RecordPoll(location, outcome string) {
	loc := normalizeLocationForMetrics(location)
	trackedLocationsMu.RLock()
	_, ok := trackedLocations[loc]
	trackedLocationsMu.RUnlock()
	if !ok {
		loc = "other"
	}
	PollsByLocationTotal.WithLabelValues(loc, outcome).Inc()
}

func normalizeLocationForMetrics(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
