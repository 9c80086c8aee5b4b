package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/edgegw/internal/observability"
)

// State represents the state of a circuit breaker.
type State int

// The numeric values match the circuit_breaker_state gauge.
const (
	// StateClosed indicates the circuit is closed and requests are allowed.
	StateClosed State = iota

	// StateHalfOpen indicates the circuit is admitting trial requests.
	StateHalfOpen

	// StateOpen indicates the circuit is open and requests are rejected.
	StateOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON snapshots.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrTooManyRequests is returned when the half-open trial budget is spent.
var ErrTooManyRequests = errors.New("too many requests in half-open state")

// IsShortCircuit reports whether err means the call was never attempted.
func IsShortCircuit(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}

// Breaker guards calls to one backend route.
type Breaker interface {
	// Execute runs fn unless the breaker short-circuits, in which case it
	// returns ErrCircuitOpen or ErrTooManyRequests without calling fn.
	// Otherwise it returns fn's error.
	Execute(ctx context.Context, fn func(context.Context) error) error
	Name() string
	Policy() Policy
	State() State
}

// StateChangeFunc observes breaker transitions. It is called after the
// breaker lock is released.
type StateChangeFunc func(name string, from, to State)

type options struct {
	clock         clockwork.Clock
	logger        observability.Logger
	onStateChange StateChangeFunc
}

// Option configures a breaker.
type Option func(*options)

// WithClock sets the time source. Tests pass a fake clock.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithLogger sets the logger for transition messages.
func WithLogger(logger observability.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStateChangeFunc registers a transition observer.
func WithStateChangeFunc(fn StateChangeFunc) Option {
	return func(o *options) {
		o.onStateChange = fn
	}
}

func buildOptions(opts []Option) options {
	o := options{
		clock:  clockwork.NewRealClock(),
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New builds a breaker for name using the engine the policy selects.
func New(name string, policy Policy, opts ...Option) Breaker {
	if policy.normalized().Engine == EngineGoBreaker {
		return NewGoBreaker(name, policy, opts...)
	}
	return NewCircuitBreaker(name, policy, opts...)
}

// outcome classifies a finished call.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailure
	// outcomeIgnored is a call abandoned by its caller; it neither
	// helps nor hurts the backend's record.
	outcomeIgnored
)

func classify(ctx context.Context, err error) outcome {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return outcomeIgnored
	default:
		return outcomeFailure
	}
}

type transition struct {
	from, to State
}

// CircuitBreaker is the native breaker. All state lives under one
// mutex. Every admitted call carries the generation it was admitted in;
// each transition starts a new generation and outcomes reported for an
// older generation are dropped, so a burst of concurrent failures trips
// the breaker exactly once.
type CircuitBreaker struct {
	name   string
	policy Policy
	opts   options

	mu                  sync.Mutex
	state               State
	generation          uint64
	openedAt            time.Time
	windowStart         time.Time
	consecutiveFailures int
	requests            int
	failures            int
	trialsAdmitted      int
	trialsSucceeded     int
}

// NewCircuitBreaker creates a native breaker in the closed state.
func NewCircuitBreaker(name string, policy Policy, opts ...Option) *CircuitBreaker {
	o := buildOptions(opts)
	cb := &CircuitBreaker{
		name:   name,
		policy: policy.normalized(),
		opts:   o,
		state:  StateClosed,
	}
	cb.windowStart = o.clock.Now()
	return cb
}

// Execute implements Breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	gen, tr, err := cb.admit()
	cb.notify(ctx, tr)
	if err != nil {
		RecordRejected(cb.name, err)
		return err
	}
	RecordAllowed(cb.name)

	callErr := fn(ctx)

	oc := classify(ctx, callErr)
	switch oc {
	case outcomeSuccess:
		RecordSuccess(cb.name)
	case outcomeFailure:
		RecordFailure(cb.name)
	}
	cb.notify(ctx, cb.settle(gen, oc))

	return callErr
}

// admit decides whether a call may proceed and returns its generation.
func (cb *CircuitBreaker) admit() (uint64, *transition, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.opts.clock.Now()

	switch cb.state {
	case StateOpen:
		if now.Sub(cb.openedAt) < cb.policy.OpenDuration {
			return 0, nil, ErrCircuitOpen
		}
		tr := cb.transitionLocked(StateHalfOpen, now)
		cb.trialsAdmitted = 1
		return cb.generation, tr, nil

	case StateHalfOpen:
		if cb.trialsAdmitted >= cb.policy.HalfOpenTrialCount {
			return 0, nil, ErrTooManyRequests
		}
		cb.trialsAdmitted++
		return cb.generation, nil, nil

	default:
		if cb.policy.SamplingDuration > 0 && now.Sub(cb.windowStart) >= cb.policy.SamplingDuration {
			cb.resetCountsLocked(now)
		}
		return cb.generation, nil, nil
	}
}

// settle records the outcome of a call admitted in generation gen.
func (cb *CircuitBreaker) settle(gen uint64, oc outcome) *transition {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if gen != cb.generation {
		return nil
	}

	now := cb.opts.clock.Now()

	switch cb.state {
	case StateClosed:
		switch oc {
		case outcomeSuccess:
			cb.requests++
			cb.consecutiveFailures = 0
		case outcomeFailure:
			cb.requests++
			cb.failures++
			cb.consecutiveFailures++
			if cb.policy.shouldTrip(cb.consecutiveFailures, cb.requests, cb.failures) {
				return cb.transitionLocked(StateOpen, now)
			}
		}

	case StateHalfOpen:
		switch oc {
		case outcomeSuccess:
			cb.trialsSucceeded++
			if cb.trialsSucceeded >= cb.policy.HalfOpenTrialCount {
				return cb.transitionLocked(StateClosed, now)
			}
		case outcomeFailure:
			return cb.transitionLocked(StateOpen, now)
		case outcomeIgnored:
			cb.trialsAdmitted--
		}
	}

	return nil
}

// transitionLocked moves to a new state and starts a new generation.
func (cb *CircuitBreaker) transitionLocked(to State, now time.Time) *transition {
	from := cb.state
	cb.state = to
	cb.generation++
	cb.resetCountsLocked(now)
	cb.trialsAdmitted = 0
	cb.trialsSucceeded = 0
	if to == StateOpen {
		cb.openedAt = now
	}
	return &transition{from: from, to: to}
}

func (cb *CircuitBreaker) resetCountsLocked(now time.Time) {
	cb.consecutiveFailures = 0
	cb.requests = 0
	cb.failures = 0
	cb.windowStart = now
}

// notify reports a transition outside the lock.
func (cb *CircuitBreaker) notify(ctx context.Context, tr *transition) {
	if tr == nil {
		return
	}
	reportTransition(ctx, cb.name, tr.from, tr.to, cb.opts)
}

// reportTransition is shared by both engines.
func reportTransition(ctx context.Context, name string, from, to State, o options) {
	RecordStateChange(name, from, to)

	log := o.logger.WithContext(ctx).With(
		observability.String("breaker", name),
		observability.String("from", from.String()),
		observability.String("to", to.String()),
	)
	if to == StateOpen {
		log.Warn("circuit breaker opened")
	} else {
		log.Info("circuit breaker state changed")
	}

	trace.SpanFromContext(ctx).AddEvent("circuit_breaker.state_change", trace.WithAttributes(
		attribute.String("circuit_breaker.name", name),
		attribute.String("circuit_breaker.from", from.String()),
		attribute.String("circuit_breaker.to", to.String()),
	))

	if o.onStateChange != nil {
		o.onStateChange(name, from, to)
	}
}

// Name implements Breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Policy implements Breaker.
func (cb *CircuitBreaker) Policy() Policy {
	return cb.policy
}

// State implements Breaker. An open breaker whose open duration has
// elapsed still reports open until the next attempt.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats holds a point-in-time view of breaker counters.
type Stats struct {
	State               State
	Generation          uint64
	ConsecutiveFailures int
	Requests            int
	Failures            int
	TrialsAdmitted      int
	OpenedAt            time.Time
}

// Stats returns the current counters.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{
		State:               cb.state,
		Generation:          cb.generation,
		ConsecutiveFailures: cb.consecutiveFailures,
		Requests:            cb.requests,
		Failures:            cb.failures,
		TrialsAdmitted:      cb.trialsAdmitted,
		OpenedAt:            cb.openedAt,
	}
}
