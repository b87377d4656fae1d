package vault

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheStats reports the configured capacity and current size of one cache.
type CacheStats struct {
	Capacity int `json:"capacity"`
	Size     int `json:"size"`
}

// lruCache is a thin wrapper around hashicorp's LRU that remembers its
// capacity for stats reporting. Get promotes the entry; Contains does not.
type lruCache[V any] struct {
	capacity int
	inner    *lru.Cache[string, V]
}

func newLRU[V any](capacity int) (*lruCache[V], error) {
	inner, err := lru.New[string, V](capacity)
	if err != nil {
		return nil, fmt.Errorf("cache capacity %d: %w", capacity, err)
	}
	return &lruCache[V]{capacity: capacity, inner: inner}, nil
}

func (c *lruCache[V]) Get(key string) (V, bool) { return c.inner.Get(key) }

func (c *lruCache[V]) Contains(key string) bool { return c.inner.Contains(key) }

func (c *lruCache[V]) Put(key string, value V) { c.inner.Add(key, value) }

func (c *lruCache[V]) Remove(key string) { c.inner.Remove(key) }

func (c *lruCache[V]) Purge() { c.inner.Purge() }

func (c *lruCache[V]) Stats() CacheStats {
	return CacheStats{Capacity: c.capacity, Size: c.inner.Len()}
}
