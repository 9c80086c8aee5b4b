package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/edgegw/internal/config"
	"github.com/vyrodovalexey/edgegw/internal/observability"
)

func newTestMemoryCache(t *testing.T, maxEntries int) (*memoryCache, interface{ Advance(time.Duration) }) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	c := newMemoryCache(config.TokenCacheConfig{
		TTL:        config.Duration(30 * time.Second),
		MaxEntries: maxEntries,
	}, observability.NopLogger(), clock)
	return c, clock
}

func TestMemoryCache_GetSet(t *testing.T) {
	t.Parallel()

	c, _ := newTestMemoryCache(t, 10)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Set(ctx, "k", []byte("v2"), 0))
	got, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Size)
}

func TestMemoryCache_Expiry(t *testing.T) {
	t.Parallel()

	c, clock := newTestMemoryCache(t, 10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "default-ttl", []byte("a"), 0))
	require.NoError(t, c.Set(ctx, "short-ttl", []byte("b"), time.Second))

	clock.Advance(time.Second)
	_, err := c.Get(ctx, "short-ttl")
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = c.Get(ctx, "default-ttl")
	assert.NoError(t, err)

	clock.Advance(29 * time.Second)
	_, err = c.Get(ctx, "default-ttl")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Zero(t, c.Stats().Size)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	c, _ := newTestMemoryCache(t, 2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	_, err := c.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	_, err = c.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "a")
	assert.NoError(t, err)
	_, err = c.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestMemoryCache_DeleteAndClose(t *testing.T) {
	t.Parallel()

	c, _ := newTestMemoryCache(t, 10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	require.NoError(t, c.Delete(ctx, "a"))
	require.NoError(t, c.Delete(ctx, "missing"))
	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Close())
	assert.Zero(t, c.Stats().Size)
}

func TestStats_HitRate(t *testing.T) {
	t.Parallel()

	assert.Zero(t, Stats{}.HitRate())
	assert.InDelta(t, 75.0, Stats{Hits: 3, Misses: 1}.HitRate(), 0.001)
}
