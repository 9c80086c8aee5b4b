package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/edgegw/internal/config"
	"github.com/vyrodovalexey/edgegw/internal/observability"
)

const (
	backendRedis = "redis"

	// redisPingTimeout bounds the connectivity check at startup.
	redisPingTimeout = 5 * time.Second
)

// redisCache implements Cache on a Redis server.
type redisCache struct {
	logger     observability.Logger
	client     *redis.Client
	keyPrefix  string
	defaultTTL time.Duration
}

func newRedisCache(cfg config.TokenCacheConfig, logger observability.Logger) (*redisCache, error) {
	if cfg.Redis.Address == "" {
		return nil, fmt.Errorf("%w: redis address is required", ErrInvalidConfig)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := pingRedis(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &redisCache{
		logger:     logger,
		client:     client,
		keyPrefix:  cfg.Redis.KeyPrefix,
		defaultTTL: cfg.TTL.Duration(),
	}

	logger.Info("redis cache initialized",
		observability.String("address", cfg.Redis.Address),
		observability.String("keyPrefix", c.keyPrefix),
		observability.Duration("defaultTTL", c.defaultTTL))

	return c, nil
}

func pingRedis(client *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	return client.Ping(ctx).Err()
}

func (c *redisCache) resolveKey(key string) string {
	return c.keyPrefix + key
}

// Get retrieves a value from Redis.
func (c *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := otel.Tracer(cacheTracerName).Start(ctx, "cache.Get",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("cache.backend", backendRedis)),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		GetCacheMetrics().operationDuration.WithLabelValues(
			backendRedis, "get",
		).Observe(time.Since(start).Seconds())
	}()

	val, err := c.client.Get(ctx, c.resolveKey(key)).Bytes()
	switch {
	case err == nil:
		GetCacheMetrics().hitsTotal.WithLabelValues(backendRedis).Inc()
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return val, nil
	case errors.Is(err, redis.Nil):
		GetCacheMetrics().missesTotal.WithLabelValues(backendRedis).Inc()
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrCacheMiss
	default:
		GetCacheMetrics().errorsTotal.WithLabelValues(backendRedis, "get").Inc()
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		c.logger.Error("redis get failed", observability.Error(err))
		return nil, err
	}
}

// Set stores a value in Redis.
func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span := otel.Tracer(cacheTracerName).Start(ctx, "cache.Set",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("cache.backend", backendRedis)),
	)
	defer span.End()

	if ttl == 0 {
		ttl = c.defaultTTL
	}

	if err := c.client.Set(ctx, c.resolveKey(key), value, ttl).Err(); err != nil {
		GetCacheMetrics().errorsTotal.WithLabelValues(backendRedis, "set").Inc()
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		c.logger.Error("redis set failed", observability.Error(err))
		return err
	}
	return nil
}

// Delete removes a value from Redis.
func (c *redisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.resolveKey(key)).Err(); err != nil {
		GetCacheMetrics().errorsTotal.WithLabelValues(backendRedis, "delete").Inc()
		return err
	}
	return nil
}

// Close closes the Redis client.
func (c *redisCache) Close() error {
	return c.client.Close()
}
