package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aeris"

// Registry holds all Prometheus metrics for the server. Each Registry owns its
// own prometheus.Registry so tests can build as many as they like.
type Registry struct {
	reg *prometheus.Registry

	// HTTP
	HTTPRequestsTotal    *prometheus.CounterVec   // endpoint, method, status_code
	HTTPRequestDuration  *prometheus.HistogramVec // endpoint, method
	HTTPRequestsInFlight prometheus.Gauge
	RateLimitedTotal     prometheus.Counter

	// Backend lookups
	LookupsTotal      *prometheus.CounterVec   // outcome: ok, not_found, upstream_error, unconfigured
	UpstreamRequests  *prometheus.CounterVec   // provider, outcome
	UpstreamDuration  *prometheus.HistogramVec // provider
	CacheLookupsTotal *prometheus.CounterVec   // cache, result: hit, miss

	// Page sessions
	SessionsActive prometheus.Gauge
	SearchesTotal  *prometheus.CounterVec // state
}

// New creates a registry with the Go and process collectors registered
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed by endpoint, method, and status code",
		}, []string{"endpoint", "method", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint", "method"}),
		HTTPRequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		}),
		RateLimitedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter",
		}),

		LookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flight_lookups_total",
			Help:      "Backend flight lookups by outcome",
		}, []string{"outcome"}),
		UpstreamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests to flight, weather and position providers by outcome",
		}, []string{"provider", "outcome"}),
		UpstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Provider request latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		CacheLookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and result",
		}, []string{"cache", "result"}),

		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "page_sessions_active",
			Help:      "Connected page sessions",
		}),
		SearchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_searches_total",
			Help:      "Searches submitted from page sessions by final state",
		}, []string{"state"}),
	}
}

// Handler serves this registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry for tests
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// CacheResult records a cache hit or miss
func (r *Registry) CacheResult(cache string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.CacheLookupsTotal.WithLabelValues(cache, result).Inc()
}

// Upstream records one provider request
func (r *Registry) Upstream(provider, outcome string, seconds float64) {
	if r == nil {
		return
	}
	r.UpstreamRequests.WithLabelValues(provider, outcome).Inc()
	r.UpstreamDuration.WithLabelValues(provider).Observe(seconds)
}

// Lookup records a backend lookup outcome
func (r *Registry) Lookup(outcome string) {
	if r == nil {
		return
	}
	r.LookupsTotal.WithLabelValues(outcome).Inc()
}

// Search records a page-session search by final state
func (r *Registry) Search(state string) {
	if r == nil {
		return
	}
	r.SearchesTotal.WithLabelValues(state).Inc()
}
