package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/vyrodovalexey/edgegw/internal/cache"
	"github.com/vyrodovalexey/edgegw/internal/observability"
)

// authorizedMarker is the value stored for an accepted token.
var authorizedMarker = []byte("1")

// CachingValidator remembers accepted tokens for a TTL so repeated
// requests skip the validation call. Only Authorized results are
// cached; a cache error falls through to the wrapped checker.
type CachingValidator struct {
	next    TokenChecker
	cache   cache.Cache
	ttl     time.Duration
	logger  observability.Logger
	metrics *Metrics
}

// NewCachingValidator wraps next with store.
func NewCachingValidator(
	next TokenChecker,
	store cache.Cache,
	ttl time.Duration,
	logger observability.Logger,
	metrics *Metrics,
) *CachingValidator {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &CachingValidator{
		next:    next,
		cache:   store,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

// Validate implements TokenChecker.
func (c *CachingValidator) Validate(ctx context.Context, token string) Outcome {
	key := tokenKey(token)

	_, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		c.recordCache(true)
		return Authorized()
	case errors.Is(err, cache.ErrCacheMiss):
		c.recordCache(false)
	default:
		c.logger.WithContext(ctx).Warn("token cache lookup failed", observability.Error(err))
	}

	outcome := c.next.Validate(ctx, token)
	if outcome.Authorized() {
		if err := c.cache.Set(ctx, key, authorizedMarker, c.ttl); err != nil {
			c.logger.WithContext(ctx).Warn("token cache store failed", observability.Error(err))
		}
	}
	return outcome
}

func (c *CachingValidator) recordCache(hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.RecordCacheHit()
	} else {
		c.metrics.RecordCacheMiss()
	}
}

// tokenKey hashes the token so raw credentials never reach the store.
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
