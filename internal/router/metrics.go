package router

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	lookupHit  = "matched"
	lookupMiss = "unmatched"
)

// tableMetrics contains Prometheus metrics for route lookups.
type tableMetrics struct {
	lookups *prometheus.CounterVec
	routes  prometheus.Gauge
}

var (
	tableMetricsInstance *tableMetrics
	tableMetricsOnce     sync.Once
)

// getTableMetrics returns the singleton table metrics instance.
func getTableMetrics() *tableMetrics {
	tableMetricsOnce.Do(func() {
		tableMetricsInstance = &tableMetrics{
			lookups: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "edgegw",
					Subsystem: "router",
					Name:      "lookups_total",
					Help:      "Total number of route table lookups by result",
				},
				[]string{"result"},
			),
			routes: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "edgegw",
					Subsystem: "router",
					Name:      "routes",
					Help:      "Number of routes in the most recently built table",
				},
			),
		}
	})
	return tableMetricsInstance
}

func recordLookup(result string) {
	getTableMetrics().lookups.WithLabelValues(result).Inc()
}

func recordTableSize(n int) {
	getTableMetrics().routes.Set(float64(n))
}
