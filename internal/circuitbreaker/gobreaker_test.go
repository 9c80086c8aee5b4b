package circuitbreaker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goBreakerPolicy() Policy {
	p := testPolicy()
	p.Engine = EngineGoBreaker
	p.OpenDuration = 50 * time.Millisecond
	p.HalfOpenTrialCount = 1
	return p
}

func TestGoBreaker_OpensAndShortCircuits(t *testing.T) {
	t.Parallel()

	log := &transitionLog{}
	cb := NewGoBreaker("cars/gateway-cb", goBreakerPolicy(), WithStateChangeFunc(log.record))
	tripOpen(t, cb, 3)

	var calls int32
	err := cb.Execute(context.Background(), func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, atomic.LoadInt32(&calls))
	assert.Equal(t, 1, log.count(StateClosed, StateOpen))
}

func TestGoBreaker_RecoversThroughHalfOpen(t *testing.T) {
	t.Parallel()

	cb := NewGoBreaker("cars/gateway-cb", goBreakerPolicy())
	tripOpen(t, cb, 3)

	require.Eventually(t, func() bool {
		return cb.State() == StateHalfOpen
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, cb.Execute(context.Background(), succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestGoBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	cb := NewGoBreaker("cars/gateway-cb", goBreakerPolicy())
	tripOpen(t, cb, 3)

	require.Eventually(t, func() bool {
		return cb.State() == StateHalfOpen
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errBackend)
	assert.Equal(t, StateOpen, cb.State())
}

func TestGoBreaker_CallerCancellationIgnored(t *testing.T) {
	t.Parallel()

	cb := NewGoBreaker("cancel", goBreakerPolicy())

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestGoBreaker_AbandonedTrialDoesNotClose(t *testing.T) {
	t.Parallel()

	cb := NewGoBreaker("cars/gateway-cb", goBreakerPolicy())
	tripOpen(t, cb, 3)

	require.Eventually(t, func() bool {
		return cb.State() == StateHalfOpen
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotEqual(t, StateClosed, cb.State())

	require.Eventually(t, func() bool {
		return cb.State() == StateHalfOpen
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, cb.Execute(context.Background(), succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestGoBreaker_PanicCountsAsFailure(t *testing.T) {
	t.Parallel()

	cb := NewGoBreaker("cars/gateway-cb", goBreakerPolicy())
	tripOpen(t, cb, 3)

	require.Eventually(t, func() bool {
		return cb.State() == StateHalfOpen
	}, time.Second, 5*time.Millisecond)

	assert.Panics(t, func() {
		_ = cb.Execute(context.Background(), func(context.Context) error { panic("boom") })
	})
	assert.NotEqual(t, StateClosed, cb.State())
}

func TestSafeIntToUint32(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint32(0), safeIntToUint32(-1))
	assert.Equal(t, uint32(3), safeIntToUint32(3))
}
