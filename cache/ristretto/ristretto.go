package ristretto

import (
	"errors"
	"time"

	"github.com/caasmo/faviconproxy/cache"
	"github.com/dgraph-io/ristretto/v2"
)

// Cache is a string keyed ristretto cache. Every entry is expected to be
// stored with cost 1, so MaxCost is the maximum number of entries.
type Cache[V any] struct {
	cache *ristretto.Cache[string, V]
}

var _ cache.Cache[string, struct{}] = (*Cache[struct{}])(nil)

func (rc *Cache[V]) Get(key string) (V, bool) {
	return rc.cache.Get(key)
}

func (rc *Cache[V]) Set(key string, value V, cost int64) bool {
	return rc.cache.Set(key, value, cost)
}

func (rc *Cache[V]) SetWithTTL(key string, value V, cost int64, ttl time.Duration) bool {
	return rc.cache.SetWithTTL(key, value, cost, ttl)
}

// Wait blocks until buffered writes are applied.
func (rc *Cache[V]) Wait() {
	rc.cache.Wait()
}

func (rc *Cache[V]) Close() {
	rc.cache.Close()
}

// New creates a cache holding at most maxEntries unit cost entries.
func New[V any](maxEntries int64) (*Cache[V], error) {
	if maxEntries <= 0 {
		return nil, errors.New("ristretto: max entries must be positive")
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters: maxEntries * 10, // ~10x the expected number of items
		MaxCost:     maxEntries,
		BufferItems: 64, // number of keys per Get buffer
	})
	if err != nil {
		return nil, err
	}

	return &Cache[V]{cache: c}, nil
}
