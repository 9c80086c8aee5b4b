package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for token validation.
type Metrics struct {
	validationsTotal   *prometheus.CounterVec
	validationDuration prometheus.Histogram
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
}

// NewMetrics creates metrics registered with prometheus.DefaultRegisterer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates metrics registered with registerer.
// Duplicate registrations are ignored so tests may build several.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "edgegw"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		validationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "validations_total",
				Help:      "Total number of remote token validation calls by outcome",
			},
			[]string{"outcome"},
		),
		validationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "validation_duration_seconds",
				Help:      "Remote token validation call duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "cache_hits_total",
				Help:      "Total number of token cache hits",
			},
		),
		cacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "cache_misses_total",
				Help:      "Total number of token cache misses",
			},
		),
	}

	for _, c := range []prometheus.Collector{
		m.validationsTotal,
		m.validationDuration,
		m.cacheHits,
		m.cacheMisses,
	} {
		_ = registerer.Register(c)
	}

	return m
}

// RecordValidation records a finished validation call.
func (m *Metrics) RecordValidation(kind Kind, duration time.Duration) {
	m.validationsTotal.WithLabelValues(kind.String()).Inc()
	m.validationDuration.Observe(duration.Seconds())
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Inc()
}
