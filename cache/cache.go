package cache

import "time"

// Cache is the small surface the service needs from an in-memory cache.
// Writes may be applied asynchronously and may be dropped under pressure.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)

	// Set stores a value with cost, returning true if it was accepted.
	Set(key K, value V, cost int64) bool

	// SetWithTTL stores a value that expires after ttl.
	SetWithTTL(key K, value V, cost int64, ttl time.Duration) bool
}
