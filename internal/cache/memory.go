package cache

import (
	"context"
	"sync"
	"time"
)

// memoryEntry tracks both expiration bounds of one cached value.
type memoryEntry struct {
	value      []byte
	absoluteAt time.Time // zero => no absolute bound
	sliding    time.Duration
	lastAccess time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	if !e.absoluteAt.IsZero() && !now.Before(e.absoluteAt) {
		return true
	}
	if e.sliding > 0 && !now.Before(e.lastAccess.Add(e.sliding)) {
		return true
	}
	return false
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryStore) { c.now = now }
}

// WithCleanupInterval sets how often expired entries are swept.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(c *MemoryStore) { c.cleanupInterval = d }
}

// NewMemoryStore creates a new in-memory store with automatic cleanup.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	c := &MemoryStore{
		entries:         make(map[string]*memoryEntry),
		now:             time.Now,
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.cleanup()

	return c
}

// Get retrieves a value by key. A hit renews the sliding window only.
func (c *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, exists := c.entries[key]
	if !exists {
		return nil, ErrCacheMiss
	}
	if entry.expired(now) {
		delete(c.entries, key)
		return nil, ErrCacheMiss
	}
	entry.lastAccess = now

	result := make([]byte, len(entry.value))
	copy(result, entry.value)
	return result, nil
}

// Set stores a value with the given expiration.
func (c *MemoryStore) Set(ctx context.Context, key string, value []byte, exp Expiration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	now := c.now()
	entry := &memoryEntry{
		value:      valueCopy,
		sliding:    exp.Sliding,
		lastAccess: now,
	}
	if exp.Absolute > 0 {
		entry.absoluteAt = now.Add(exp.Absolute)
	}
	c.entries[key] = entry

	return nil
}

// Delete removes a value by key.
func (c *MemoryStore) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// Ping always succeeds.
func (c *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Len returns the number of live entries.
func (c *MemoryStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for _, entry := range c.entries {
		if !entry.expired(now) {
			n++
		}
	}
	return n
}

// Close stops the background cleanup goroutine.
func (c *MemoryStore) Close() error {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
	return nil
}

// cleanup periodically removes expired entries.
func (c *MemoryStore) cleanup() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *MemoryStore) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
