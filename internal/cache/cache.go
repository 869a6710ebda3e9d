package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache stores encoded values with a per-entry TTL
type Cache interface {
	// Get returns the stored bytes and true if the key is present and fresh
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value; a zero ttl uses the backend default
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)

	// Delete removes a key
	Delete(ctx context.Context, key string)

	// Backend names the implementation ("memory", "redis")
	Backend() string

	// Close releases any underlying connections
	Close() error
}

// GetJSON decodes a cached JSON value into T
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool) {
	var v T
	data, ok := c.Get(ctx, key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		c.Delete(ctx, key)
		return v, false
	}
	return v, true
}

// SetJSON encodes v and stores it
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache value for %s: %w", key, err)
	}
	c.Set(ctx, key, data, ttl)
	return nil
}

// GetOrSet returns the cached value, or loads, stores and returns it.
// Loader errors are returned and nothing is cached.
func GetOrSet[T any](ctx context.Context, c Cache, key string, ttl time.Duration, loader func(context.Context) (T, error)) (T, bool, error) {
	if v, ok := GetJSON[T](ctx, c, key); ok {
		return v, true, nil
	}
	v, err := loader(ctx)
	if err != nil {
		return v, false, err
	}
	if err := SetJSON(ctx, c, key, v, ttl); err != nil {
		return v, false, err
	}
	return v, false, nil
}
