package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the in-process backend
type MemoryCache struct {
	cache *gocache.Cache
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a memory cache with a default TTL and a janitor interval
func NewMemoryCache(defaultExpiration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{cache: gocache.New(defaultExpiration, cleanupInterval)}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, false
	}
	data, ok := v.([]byte)
	return data, ok
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.cache.Set(key, value, ttl)
}

func (m *MemoryCache) Delete(_ context.Context, key string) {
	m.cache.Delete(key)
}

// Len returns the number of entries, expired ones included until the janitor runs
func (m *MemoryCache) Len() int {
	return m.cache.ItemCount()
}

func (m *MemoryCache) Backend() string { return "memory" }

// Close is a no-op for the memory backend
func (m *MemoryCache) Close() error { return nil }
