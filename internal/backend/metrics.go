package backend

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// forwardMetrics contains Prometheus metrics for backend calls.
type forwardMetrics struct {
	requestsTotal *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

var (
	forwardMetricsInstance *forwardMetrics
	forwardMetricsOnce     sync.Once
)

func getForwardMetrics() *forwardMetrics {
	forwardMetricsOnce.Do(func() {
		forwardMetricsInstance = &forwardMetrics{
			requestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "edgegw",
					Subsystem: "backend",
					Name:      "requests_total",
					Help:      "Total number of backend requests by target and status class",
				},
				[]string{"backend", "status"},
			),
			duration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "edgegw",
					Subsystem: "backend",
					Name:      "request_duration_seconds",
					Help:      "Duration of backend requests",
					Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
				},
				[]string{"backend"},
			),
		}
	})
	return forwardMetricsInstance
}

func recordForward(backend, status string, duration time.Duration) {
	m := getForwardMetrics()
	m.requestsTotal.WithLabelValues(backend, status).Inc()
	m.duration.WithLabelValues(backend).Observe(duration.Seconds())
}
