// Package cache provides a TTL key-value store behind an injected Store so
// nothing in the pipeline depends on process-local state. Single instances
// run the in-memory store, multi-instance deployments share a Redis store.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Store is the minimal TTL key-value surface the cache and limiter need.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, key string) error
}

// Cache wraps a Store with JSON encoding for structured values.
type Cache struct {
	store Store
}

// New creates a cache over the given store.
func New(store Store) *Cache {
	return &Cache{store: store}
}

// GetJSON reads and decodes a cached value into out. The second return is
// false on a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, err
	}

	return true, nil
}

// SetJSON encodes and stores a value with a TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.store.Set(ctx, key, string(raw), ttl)
}

// Invalidate removes a key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// Limiter is a fixed-window rate limiter over a Store.
type Limiter struct {
	store  Store
	limit  int64
	window time.Duration
}

// NewLimiter creates a limiter allowing limit hits per window per key.
func NewLimiter(store Store, limit int64, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

// Allow counts a hit for the key and reports whether it is within the
// limit. Store errors allow the request.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.store.Increment(ctx, "ratelimit:"+key, l.window)
	if err != nil {
		return true, err
	}

	return count <= l.limit, nil
}
