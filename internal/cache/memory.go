package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/edgegw/internal/config"
	"github.com/vyrodovalexey/edgegw/internal/observability"
)

// cacheTracerName is the OpenTelemetry tracer name for cache operations.
const cacheTracerName = "edgegw/cache"

const backendMemory = "memory"

// memoryCache implements an in-memory LRU cache. Expired entries are
// dropped when read or when they reach the back of the eviction list.
type memoryCache struct {
	logger     observability.Logger
	clock      clockwork.Clock
	maxEntries int
	defaultTTL time.Duration

	mu       sync.Mutex
	items    map[string]*list.Element
	eviction *list.List

	hits   int64
	misses int64
}

type memoryCacheEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func newMemoryCache(cfg config.TokenCacheConfig, logger observability.Logger, clock clockwork.Clock) *memoryCache {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = config.DefaultCacheMaxEntries
	}

	c := &memoryCache{
		logger:     logger,
		clock:      clock,
		maxEntries: maxEntries,
		defaultTTL: cfg.TTL.Duration(),
		items:      make(map[string]*list.Element),
		eviction:   list.New(),
	}

	logger.Info("memory cache initialized",
		observability.Int("maxEntries", maxEntries),
		observability.Duration("defaultTTL", c.defaultTTL))

	return c
}

// Get retrieves a value from the cache.
func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	_, span := otel.Tracer(cacheTracerName).Start(ctx, "cache.Get",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("cache.backend", backendMemory)),
	)
	defer span.End()

	start := c.clock.Now()
	defer func() {
		GetCacheMetrics().operationDuration.WithLabelValues(
			backendMemory, "get",
		).Observe(c.clock.Since(start).Seconds())
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if exists {
		entry := elem.Value.(*memoryCacheEntry)
		if entry.expiresAt.IsZero() || c.clock.Now().Before(entry.expiresAt) {
			c.eviction.MoveToFront(elem)
			atomic.AddInt64(&c.hits, 1)
			GetCacheMetrics().hitsTotal.WithLabelValues(backendMemory).Inc()
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return entry.value, nil
		}
		c.removeElement(elem)
	}

	atomic.AddInt64(&c.misses, 1)
	GetCacheMetrics().missesTotal.WithLabelValues(backendMemory).Inc()
	span.SetAttributes(attribute.Bool("cache.hit", false))
	return nil, ErrCacheMiss
}

// Set stores a value in the cache.
func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, span := otel.Tracer(cacheTracerName).Start(ctx, "cache.Set",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("cache.backend", backendMemory)),
	)
	defer span.End()

	if ttl == 0 {
		ttl = c.defaultTTL
	}

	entry := &memoryCacheEntry{key: key, value: value}
	if ttl > 0 {
		entry.expiresAt = c.clock.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.eviction.MoveToFront(elem)
		elem.Value = entry
		return nil
	}

	c.items[key] = c.eviction.PushFront(entry)
	for c.eviction.Len() > c.maxEntries {
		c.evictOldest()
	}

	GetCacheMetrics().sizeGauge.WithLabelValues(backendMemory).Set(float64(c.eviction.Len()))
	return nil
}

// Delete removes a value from the cache.
func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
	return nil
}

// Close implements Cache.
func (c *memoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.eviction.Init()
	return nil
}

// Stats returns cache statistics.
func (c *memoryCache) Stats() Stats {
	c.mu.Lock()
	size := int64(c.eviction.Len())
	c.mu.Unlock()

	return Stats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
		Size:   size,
	}
}

func (c *memoryCache) evictOldest() {
	elem := c.eviction.Back()
	if elem == nil {
		return
	}
	c.removeElement(elem)
	GetCacheMetrics().evictionsTotal.WithLabelValues(backendMemory).Inc()
}

func (c *memoryCache) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	delete(c.items, elem.Value.(*memoryCacheEntry).key)
	GetCacheMetrics().sizeGauge.WithLabelValues(backendMemory).Set(float64(c.eviction.Len()))
}
