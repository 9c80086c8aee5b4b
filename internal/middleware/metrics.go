package middleware

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MiddlewareMetrics holds Prometheus metrics for middleware
// operations.
type MiddlewareMetrics struct {
	bodyLimitRejected prometheus.Counter
	panicsRecovered   prometheus.Counter
}

var (
	middlewareMetrics     *MiddlewareMetrics
	middlewareMetricsOnce sync.Once
)

// GetMiddlewareMetrics returns the singleton middleware metrics
// instance.
func GetMiddlewareMetrics() *MiddlewareMetrics {
	middlewareMetricsOnce.Do(func() {
		middlewareMetrics = &MiddlewareMetrics{
			bodyLimitRejected: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "edgegw",
				Subsystem: "middleware",
				Name:      "body_limit_rejected_total",
				Help:      "Total number of requests rejected for an oversized body",
			}),
			panicsRecovered: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "edgegw",
				Subsystem: "middleware",
				Name:      "panics_recovered_total",
				Help:      "Total number of panics recovered by the recovery middleware",
			}),
		}
	})
	return middlewareMetrics
}
