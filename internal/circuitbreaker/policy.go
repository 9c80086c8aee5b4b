package circuitbreaker

import (
	"time"

	"github.com/vyrodovalexey/edgegw/internal/config"
)

// Engine selects the state machine implementation behind a Breaker.
type Engine string

// Supported engines.
const (
	EngineNative    Engine = config.EngineNative
	EngineGoBreaker Engine = config.EngineGoBreaker
)

// Policy holds the thresholds of a breaker. Policies are comparable so
// the registry can detect a changed policy after a reload.
type Policy struct {
	// Name identifies the policy in configuration.
	Name string

	// FailureThreshold is the number of consecutive failures that
	// opens a closed breaker.
	FailureThreshold int

	// FailureRatio, when positive, also opens the breaker once at least
	// MinRequests calls were seen in the current sampling window and the
	// failure share reaches the ratio.
	FailureRatio float64
	MinRequests  int

	// SamplingDuration is the length of the closed-state counting
	// window. Zero keeps counting until the next state change.
	SamplingDuration time.Duration

	// OpenDuration is how long an open breaker rejects calls before the
	// next attempt becomes a half-open trial.
	OpenDuration time.Duration

	// HalfOpenTrialCount is both the number of trial calls admitted in
	// half-open state and the number of successes needed to close.
	HalfOpenTrialCount int

	Engine Engine
}

// DefaultPolicy returns the policy used by the shipped gateway-cb breaker.
func DefaultPolicy(name string) Policy {
	return Policy{
		Name:               name,
		FailureThreshold:   config.DefaultFailureThreshold,
		OpenDuration:       config.DefaultOpenDuration,
		HalfOpenTrialCount: config.DefaultHalfOpenTrialCount,
		Engine:             EngineNative,
	}
}

// PolicyFromConfig converts a configured breaker into a Policy.
func PolicyFromConfig(c config.CircuitBreakerConfig) Policy {
	return Policy{
		Name:               c.Name,
		FailureThreshold:   c.FailureThreshold,
		FailureRatio:       c.FailureRatio,
		MinRequests:        c.MinRequests,
		SamplingDuration:   c.SamplingDuration.Duration(),
		OpenDuration:       c.OpenDuration.Duration(),
		HalfOpenTrialCount: c.HalfOpenTrialCount,
		Engine:             Engine(c.Engine),
	}.normalized()
}

// normalized replaces out-of-range values with defaults.
func (p Policy) normalized() Policy {
	if p.FailureThreshold < 1 {
		p.FailureThreshold = config.DefaultFailureThreshold
	}
	if p.OpenDuration <= 0 {
		p.OpenDuration = config.DefaultOpenDuration
	}
	if p.HalfOpenTrialCount < 1 {
		p.HalfOpenTrialCount = config.DefaultHalfOpenTrialCount
	}
	if p.FailureRatio < 0 || p.FailureRatio > 1 {
		p.FailureRatio = 0
	}
	if p.MinRequests < 1 {
		p.MinRequests = 1
	}
	if p.SamplingDuration < 0 {
		p.SamplingDuration = 0
	}
	if p.Engine == "" {
		p.Engine = EngineNative
	}
	return p
}

// shouldTrip reports whether closed-state counts open the breaker.
func (p Policy) shouldTrip(consecutiveFailures, requests, failures int) bool {
	if consecutiveFailures >= p.FailureThreshold {
		return true
	}
	if p.FailureRatio > 0 && requests >= p.MinRequests {
		return float64(failures)/float64(requests) >= p.FailureRatio
	}
	return false
}
