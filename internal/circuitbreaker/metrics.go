package circuitbreaker

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BreakerRequestsTotal counts calls admitted or rejected by breakers.
	BreakerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgegw",
			Name:      "breaker_requests_total",
			Help:      "Total number of calls seen by circuit breakers",
		},
		[]string{"name", "result"},
	)

	// BreakerFailuresTotal counts failures recorded by breakers.
	BreakerFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgegw",
			Name:      "breaker_failures_total",
			Help:      "Total number of failures recorded by circuit breakers",
		},
		[]string{"name"},
	)

	// BreakerSuccessesTotal counts successes recorded by breakers.
	BreakerSuccessesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgegw",
			Name:      "breaker_successes_total",
			Help:      "Total number of successes recorded by circuit breakers",
		},
		[]string{"name"},
	)

	// BreakerStateChangesTotal counts state changes.
	BreakerStateChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgegw",
			Name:      "breaker_state_changes_total",
			Help:      "Total number of circuit breaker state changes",
		},
		[]string{"name", "from", "to"},
	)
)

// Result label values for BreakerRequestsTotal.
const (
	resultAllowed     = "allowed"
	resultOpen        = "rejected_open"
	resultTooManyReqs = "rejected_half_open"
)

// RecordAllowed records an admitted call.
func RecordAllowed(name string) {
	BreakerRequestsTotal.WithLabelValues(name, resultAllowed).Inc()
}

// RecordRejected records a short-circuited call.
func RecordRejected(name string, err error) {
	result := resultOpen
	if errors.Is(err, ErrTooManyRequests) {
		result = resultTooManyReqs
	}
	BreakerRequestsTotal.WithLabelValues(name, result).Inc()
}

// RecordFailure records a failure.
func RecordFailure(name string) {
	BreakerFailuresTotal.WithLabelValues(name).Inc()
}

// RecordSuccess records a success.
func RecordSuccess(name string) {
	BreakerSuccessesTotal.WithLabelValues(name).Inc()
}

// RecordStateChange records a state change.
func RecordStateChange(name string, from, to State) {
	BreakerStateChangesTotal.WithLabelValues(name, from.String(), to.String()).Inc()
}
