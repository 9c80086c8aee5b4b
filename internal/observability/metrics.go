package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vyrodovalexey/edgegw/internal/util"
)

// unmatchedRoute is the label value used for requests that do not
// match any configured route, keeping the route label bounded.
const unmatchedRoute = "unmatched"

// Metrics holds the Prometheus metrics of the dispatch pipeline.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeRequests  prometheus.Gauge
	authOutcomes    *prometheus.CounterVec
	fallbacksTotal  *prometheus.CounterVec
	circuitBreaker  *prometheus.GaugeVec
	buildInfo       *prometheus.GaugeVec
	startTime       prometheus.Gauge
	registry        *prometheus.Registry
}

// NewMetrics creates a new Metrics instance backed by its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "edgegw"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of dispatched requests by route and outcome",
		},
		[]string{"route", "outcome"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request dispatch duration in seconds",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"route", "outcome"},
	)

	m.activeRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "Number of requests currently being dispatched",
		},
	)

	m.authOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_outcomes_total",
			Help:      "Authentication gate outcomes",
		},
		[]string{"outcome"},
	)

	m.fallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Fallback responses served by route and reason",
		},
		[]string{"route", "reason"},
	)

	m.circuitBreaker = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help: "Circuit breaker state " +
				"(0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	m.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information for the gateway",
		},
		[]string{"version", "commit", "build_time"},
	)

	m.startTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help:      "Start time of the gateway in unix seconds",
		},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.activeRequests,
		m.authOutcomes,
		m.fallbacksTotal,
		m.circuitBreaker,
		m.buildInfo,
		m.startTime,
	)
	m.startTime.SetToCurrentTime()

	return m
}

// RecordRequest records a completed dispatch. route must be a route
// name, never the raw path.
func (m *Metrics) RecordRequest(route, outcome string, duration time.Duration) {
	if route == "" {
		route = unmatchedRoute
	}
	m.requestsTotal.WithLabelValues(route, outcome).Inc()
	m.requestDuration.WithLabelValues(route, outcome).Observe(duration.Seconds())
}

// RecordAuthOutcome counts one authentication gate decision.
func (m *Metrics) RecordAuthOutcome(outcome string) {
	m.authOutcomes.WithLabelValues(outcome).Inc()
}

// RecordFallback counts one fallback response.
func (m *Metrics) RecordFallback(route, reason string) {
	m.fallbacksTotal.WithLabelValues(route, reason).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state gauge.
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.circuitBreaker.WithLabelValues(name).Set(float64(state))
}

// DeleteCircuitBreakerState drops the state series of a removed breaker.
func (m *Metrics) DeleteCircuitBreakerState(name string) {
	m.circuitBreaker.DeleteLabelValues(name)
}

// SetBuildInfo sets the build information metric.
func (m *Metrics) SetBuildInfo(version, commit, buildTime string) {
	m.buildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the gateway registry together with the default
// registry, which carries the Go runtime, process and promauto
// collectors registered by other packages.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(
		prometheus.Gatherers{m.registry, prometheus.DefaultGatherer},
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	)
}

// MetricsMiddleware tracks in-flight requests.
func MetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			metrics.activeRequests.Inc()
			defer metrics.activeRequests.Dec()

			ctx := util.ContextWithStartTime(r.Context(), time.Now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
