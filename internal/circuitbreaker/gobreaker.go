package circuitbreaker

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"
)

// GoBreaker runs the same policy on sony/gobreaker. It reads the wall
// clock directly, so WithClock has no effect on it.
//
// gobreaker has no way to return a half-open trial slot, so a trial
// abandoned by its caller reopens the breaker instead of closing it. An
// abandoned call in the closed state is not reported at all.
type GoBreaker struct {
	name   string
	policy Policy
	opts   options
	cb     *gobreaker.TwoStepCircuitBreaker
}

// NewGoBreaker creates a gobreaker-backed breaker.
func NewGoBreaker(name string, policy Policy, opts ...Option) *GoBreaker {
	p := policy.normalized()
	b := &GoBreaker{
		name:   name,
		policy: p,
		opts:   buildOptions(opts),
	}

	b.cb = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: safeIntToUint32(p.HalfOpenTrialCount),
		Interval:    p.SamplingDuration,
		Timeout:     p.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return p.shouldTrip(
				int(counts.ConsecutiveFailures),
				int(counts.Requests),
				int(counts.TotalFailures),
			)
		},
		// gobreaker calls this with its own lock held; observers must
		// not call back into the breaker.
		OnStateChange: func(name string, from, to gobreaker.State) {
			reportTransition(context.Background(), name, fromGoBreaker(from), fromGoBreaker(to), b.opts)
		},
	})

	return b
}

// Execute implements Breaker.
func (b *GoBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	done, err := b.cb.Allow()
	if err != nil {
		err = toShortCircuit(err)
		RecordRejected(b.name, err)
		return err
	}
	RecordAllowed(b.name)
	trial := b.cb.State() == gobreaker.StateHalfOpen

	defer func() {
		if e := recover(); e != nil {
			done(false)
			panic(e)
		}
	}()

	callErr := fn(ctx)
	switch classify(ctx, callErr) {
	case outcomeSuccess:
		RecordSuccess(b.name)
		done(true)
	case outcomeFailure:
		RecordFailure(b.name)
		done(false)
	case outcomeIgnored:
		if trial {
			done(false)
		}
	}

	return callErr
}

func toShortCircuit(err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return ErrCircuitOpen
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return ErrTooManyRequests
	default:
		return err
	}
}

// Name implements Breaker.
func (b *GoBreaker) Name() string {
	return b.name
}

// Policy implements Breaker.
func (b *GoBreaker) Policy() Policy {
	return b.policy
}

// State implements Breaker. gobreaker moves open to half-open as soon
// as the timeout elapses, even without an attempt.
func (b *GoBreaker) State() State {
	return fromGoBreaker(b.cb.State())
}

func fromGoBreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

// safeIntToUint32 safely converts int to uint32.
func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}
