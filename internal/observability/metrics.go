package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream call rate by api (geocoding, weather) and status.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency. Watch for: p95 > 2s (Open-Meteo degradation).
	UpstreamDuration *prometheus.HistogramVec

	// Upstream failures by api and category (see client.CategorizeError).
	UpstreamErrorsTotal *prometheus.CounterVec

	// City resolutions by outcome: found, not_found, error.
	CityLookupsTotal *prometheus.CounterVec

	// Autocomplete requests by outcome: served, skipped (short prefix), stale, error.
	SuggestionsTotal *prometheus.CounterVec

	// Store failures by operation (get, set, delete).
	StoreErrorsTotal *prometheus.CounterVec

	// Favorites mutations by action (add, duplicate, remove).
	FavoritesTotal *prometheus.CounterVec

	// Live widget sessions.
	ActiveSessions prometheus.Gauge

	// Auto-refresh runs and the sessions each one touched.
	RefreshRunsTotal     *prometheus.CounterVec
	RefreshRunDuration   prometheus.Histogram
	RefreshSessionsTotal *prometheus.CounterVec

	// Rate limit denials on /suggest.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker state per upstream: 0 closed, 1 open, 2 half-open.
	CircuitBreakerState *prometheus.GaugeVec

	// Upstream calls joined onto an identical in-flight call, by api.
	CoalescedRequestsTotal *prometheus.CounterVec
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
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of Open-Meteo API calls",
		},
		[]string{"api", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Open-Meteo API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"api", "status"},
	)
	UpstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamErrorsTotal",
			Help: "Open-Meteo API failures by category",
		},
		[]string{"api", "category"},
	)
	CityLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityLookupsTotal",
			Help: "City resolutions by outcome",
		},
		[]string{"outcome"},
	)
	SuggestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suggestionsTotal",
			Help: "Autocomplete requests by outcome",
		},
		[]string{"outcome"},
	)
	StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeErrorsTotal",
			Help: "Key-value store failures by operation",
		},
		[]string{"operation"},
	)
	FavoritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favoritesTotal",
			Help: "Favorites list mutations by action",
		},
		[]string{"action"},
	)
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "activeSessions",
			Help: "Number of live widget sessions",
		},
	)
	RefreshRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refreshRunsTotal",
			Help: "Auto-refresh runs by result",
		},
		[]string{"result"},
	)
	RefreshRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "refreshRunDurationSeconds",
			Help:    "Duration of one auto-refresh run across all sessions",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30},
		},
	)
	RefreshSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refreshSessionsTotal",
			Help: "Sessions refreshed by auto-refresh, by result",
		},
		[]string{"result"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state per upstream (0 closed, 1 open, 2 half-open)",
		},
		[]string{"api"},
	)

	CoalescedRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coalescedRequestsTotal",
			Help: "Upstream calls served by an identical in-flight call",
		},
		[]string{"api"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration, UpstreamErrorsTotal,
		CityLookupsTotal, SuggestionsTotal,
		StoreErrorsTotal, FavoritesTotal, ActiveSessions,
		RefreshRunsTotal, RefreshRunDuration, RefreshSessionsTotal,
		RateLimitDeniedTotal, CircuitBreakerState, CoalescedRequestsTotal,
	)
}

// StatusLabel buckets an upstream HTTP status for metric labels.
func StatusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	}
	return "error"
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
