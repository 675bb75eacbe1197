package cache

import (
	"context"
	"time"
)

// Store is the byte-level cache transport behind PetCache.
// The Redis store serves production; the memory store serves
// single-instance deployments and tests.
type Store interface {
	// Get retrieves a value by key and renews its sliding window.
	// Returns ErrCacheMiss if not found or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value, replacing any previous entry.
	Set(ctx context.Context, key string, value []byte, exp Expiration) error

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}

// Expiration combines an absolute lifetime measured from the write with a
// sliding window renewed on every read. An entry is evicted when either
// elapses. A zero field disables that bound.
type Expiration struct {
	Absolute time.Duration
	Sliding  time.Duration
}

// Common cache errors
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"
)
