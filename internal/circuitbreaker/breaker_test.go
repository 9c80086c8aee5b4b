package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend failed")

func testPolicy() Policy {
	return Policy{
		Name:               "gateway-cb",
		FailureThreshold:   3,
		OpenDuration:       30 * time.Second,
		HalfOpenTrialCount: 2,
	}
}

type transitionLog struct {
	mu  sync.Mutex
	all []transition
}

func (l *transitionLog) record(_ string, from, to State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.all = append(l.all, transition{from: from, to: to})
}

func (l *transitionLog) count(from, to State) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, tr := range l.all {
		if tr.from == from && tr.to == to {
			n++
		}
	}
	return n
}

func fail(context.Context) error    { return errBackend }
func succeed(context.Context) error { return nil }

func tripOpen(t *testing.T, cb Breaker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.ErrorIs(t, cb.Execute(context.Background(), fail), errBackend)
	}
	require.Equal(t, StateOpen, cb.State())
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state    State
		expected string
	}{
		{StateClosed, "closed"},
		{StateHalfOpen, "half-open"},
		{StateOpen, "open"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.state.String())
	}
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	cb := NewCircuitBreaker("cars/gateway-cb", testPolicy(), WithClock(clock))

	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errBackend)
	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errBackend)
	assert.NoError(t, cb.Execute(context.Background(), succeed))
	assert.Equal(t, StateClosed, cb.State(), "a success breaks the failure run")

	tripOpen(t, cb, 3)
	assert.Equal(t, uint64(1), cb.Stats().Generation)
}

func TestCircuitBreaker_OpenShortCircuits(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	cb := NewCircuitBreaker("cars/gateway-cb", testPolicy(), WithClock(clock))
	tripOpen(t, cb, 3)

	var calls int32
	err := cb.Execute(context.Background(), func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsShortCircuit(err))
	assert.Zero(t, atomic.LoadInt32(&calls))

	clock.Advance(29 * time.Second)
	assert.ErrorIs(t, cb.Execute(context.Background(), succeed), ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenAfterOpenDuration(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	log := &transitionLog{}
	cb := NewCircuitBreaker("cars/gateway-cb", testPolicy(),
		WithClock(clock), WithStateChangeFunc(log.record))
	tripOpen(t, cb, 3)

	clock.Advance(30 * time.Second)
	assert.Equal(t, StateOpen, cb.State(), "transition happens on the next attempt")

	var observed State
	err := cb.Execute(context.Background(), func(context.Context) error {
		observed = cb.State()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateHalfOpen, observed)
	assert.Equal(t, StateHalfOpen, cb.State(), "one of two trials succeeded")

	require.NoError(t, cb.Execute(context.Background(), succeed))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, 1, log.count(StateClosed, StateOpen))
	assert.Equal(t, 1, log.count(StateOpen, StateHalfOpen))
	assert.Equal(t, 1, log.count(StateHalfOpen, StateClosed))
}

func TestCircuitBreaker_HalfOpenTrialBudget(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	cb := NewCircuitBreaker("cars/gateway-cb", testPolicy(), WithClock(clock))
	tripOpen(t, cb, 3)
	clock.Advance(30 * time.Second)

	release := make(chan struct{})
	var admitted sync.WaitGroup
	var done sync.WaitGroup
	for i := 0; i < 2; i++ {
		admitted.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			_ = cb.Execute(context.Background(), func(context.Context) error {
				admitted.Done()
				<-release
				return nil
			})
		}()
	}
	admitted.Wait()

	err := cb.Execute(context.Background(), succeed)
	assert.ErrorIs(t, err, ErrTooManyRequests)
	assert.True(t, IsShortCircuit(err))

	close(release)
	done.Wait()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	cb := NewCircuitBreaker("cars/gateway-cb", testPolicy(), WithClock(clock))
	tripOpen(t, cb, 3)

	clock.Advance(30 * time.Second)
	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errBackend)
	assert.Equal(t, StateOpen, cb.State())

	clock.Advance(10 * time.Second)
	assert.ErrorIs(t, cb.Execute(context.Background(), succeed), ErrCircuitOpen, "open timer was reset")

	clock.Advance(20 * time.Second)
	assert.NoError(t, cb.Execute(context.Background(), succeed))
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestCircuitBreaker_ConcurrentFailuresTripOnce(t *testing.T) {
	t.Parallel()

	const callers = 20

	clock := clockwork.NewFakeClock()
	log := &transitionLog{}
	cb := NewCircuitBreaker("cars/gateway-cb", testPolicy(),
		WithClock(clock), WithStateChangeFunc(log.record))

	release := make(chan struct{})
	var admitted, done sync.WaitGroup
	admitted.Add(callers)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer done.Done()
			_ = cb.Execute(context.Background(), func(context.Context) error {
				admitted.Done()
				<-release
				return errBackend
			})
		}()
	}
	admitted.Wait()
	close(release)
	done.Wait()

	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, 1, log.count(StateClosed, StateOpen))
	assert.Len(t, log.all, 1)
}

func TestCircuitBreaker_StaleOutcomeIgnored(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	cb := NewCircuitBreaker("cars/gateway-cb", testPolicy(), WithClock(clock))

	slowAdmitted := make(chan struct{})
	slowRelease := make(chan struct{})
	slowDone := make(chan error)
	go func() {
		slowDone <- cb.Execute(context.Background(), func(context.Context) error {
			close(slowAdmitted)
			<-slowRelease
			return nil
		})
	}()
	<-slowAdmitted

	tripOpen(t, cb, 3)
	clock.Advance(30 * time.Second)
	require.NoError(t, cb.Execute(context.Background(), succeed))
	require.Equal(t, StateHalfOpen, cb.State())

	close(slowRelease)
	require.NoError(t, <-slowDone)

	assert.Equal(t, StateHalfOpen, cb.State(), "success from the closed generation must not count as a trial")
}

func TestCircuitBreaker_FailureRatio(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	policy := Policy{
		FailureThreshold:   100,
		FailureRatio:       0.5,
		MinRequests:        4,
		SamplingDuration:   time.Minute,
		OpenDuration:       time.Second,
		HalfOpenTrialCount: 1,
	}
	cb := NewCircuitBreaker("ratio", policy, WithClock(clock))

	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), succeed)
	_ = cb.Execute(context.Background(), fail)
	assert.Equal(t, StateClosed, cb.State(), "below MinRequests")

	_ = cb.Execute(context.Background(), succeed)
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Execute(context.Background(), fail)
	assert.Equal(t, StateOpen, cb.State(), "3 of 5 failed")
}

func TestCircuitBreaker_SamplingWindowResets(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	policy := testPolicy()
	policy.SamplingDuration = time.Minute
	cb := NewCircuitBreaker("window", policy, WithClock(clock))

	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), fail)
	clock.Advance(time.Minute)
	_ = cb.Execute(context.Background(), fail)

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 1, cb.Stats().ConsecutiveFailures)
}

func TestCircuitBreaker_CallerCancellationIgnored(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	cb := NewCircuitBreaker("cancel", testPolicy(), WithClock(clock))

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
		assert.ErrorIs(t, err, context.Canceled)
	}

	assert.Equal(t, StateClosed, cb.State())
	assert.Zero(t, cb.Stats().Requests)
}

func TestNew_SelectsEngine(t *testing.T) {
	t.Parallel()

	assert.IsType(t, &CircuitBreaker{}, New("a", testPolicy()))

	p := testPolicy()
	p.Engine = EngineGoBreaker
	assert.IsType(t, &GoBreaker{}, New("b", p))
}
