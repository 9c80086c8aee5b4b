// Package cache provides the key/value stores behind the token
// validation cache.
//
// Two backends implement Cache: an in-memory LRU whose expiry reads an
// injected clockwork.Clock, and a Redis store built on go-redis. New
// selects one from config.TokenCacheConfig.
package cache
