package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/edgegw/internal/config"
	"github.com/vyrodovalexey/edgegw/internal/observability"
)

func redisConfig(addr string) config.TokenCacheConfig {
	return config.TokenCacheConfig{
		Enabled: true,
		Type:    config.CacheTypeRedis,
		TTL:     config.Duration(30 * time.Second),
		Redis: config.RedisCacheConfig{
			Address:   addr,
			KeyPrefix: "edgegw:token:",
		},
	}
}

func TestRedisCache_GetSet(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	c, err := New(redisConfig(mr.Addr()), observability.NopLogger())
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	ctx := context.Background()

	_, err = c.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "abc", []byte("1"), 0))
	assert.True(t, mr.Exists("edgegw:token:abc"), "key carries the prefix")
	assert.Equal(t, 30*time.Second, mr.TTL("edgegw:token:abc"))

	got, err := c.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	require.NoError(t, c.Delete(ctx, "abc"))
	_, err = c.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_Expiry(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	c, err := New(redisConfig(mr.Addr()), observability.NopLogger())
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "abc", []byte("1"), 5*time.Second))

	mr.FastForward(6 * time.Second)
	_, err = c.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_ServerError(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	c, err := New(redisConfig(mr.Addr()), observability.NopLogger())
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	mr.SetError("ERR server unavailable")
	_, err = c.Get(context.Background(), "abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("memory", func(t *testing.T) {
		t.Parallel()

		c, err := New(config.TokenCacheConfig{Type: config.CacheTypeMemory}, nil)
		require.NoError(t, err)
		assert.IsType(t, &memoryCache{}, c)
	})

	t.Run("unknown type", func(t *testing.T) {
		t.Parallel()

		_, err := New(config.TokenCacheConfig{Type: "memcached"}, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("redis without address", func(t *testing.T) {
		t.Parallel()

		_, err := New(config.TokenCacheConfig{Type: config.CacheTypeRedis}, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("redis unreachable", func(t *testing.T) {
		t.Parallel()

		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		_, err := New(redisConfig(addr), nil)
		assert.ErrorIs(t, err, ErrConnectionFailed)
	})
}
