package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"digipet-api/internal/model"
)

// Default pet snapshot expiration.
const (
	DefaultAbsoluteTTL = 10 * time.Minute
	DefaultSlidingTTL  = 2 * time.Minute
)

// PetKey returns the cache key for a pet.
func PetKey(petID int64) string {
	return fmt.Sprintf("pet_%d", petID)
}

// PetCache is the cache-aside store for pet snapshots. It is best-effort:
// transport failures degrade reads to a miss and writes to a no-op, so
// callers always fall back to the durable store.
type PetCache struct {
	store Store
	exp   Expiration
	log   *slog.Logger
}

// NewPetCache wraps store. A zero Expiration selects the defaults.
func NewPetCache(store Store, exp Expiration, logger *slog.Logger) *PetCache {
	if exp.Absolute == 0 && exp.Sliding == 0 {
		exp = Expiration{Absolute: DefaultAbsoluteTTL, Sliding: DefaultSlidingTTL}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PetCache{
		store: store,
		exp:   exp,
		log:   logger.With("component", "pet_cache"),
	}
}

// Get returns the cached snapshot for petID. The second result is false on
// a miss, including when the store is unreachable.
func (c *PetCache) Get(ctx context.Context, petID int64) (model.Snapshot, bool) {
	key := PetKey(petID)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.log.Warn("cache read failed, treating as miss", "key", key, "error", err)
		} else {
			c.log.Debug("cache miss", "key", key)
		}
		return model.Snapshot{}, false
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.log.Warn("discarding undecodable cache entry", "key", key, "error", err)
		c.Invalidate(ctx, petID)
		return model.Snapshot{}, false
	}

	c.log.Debug("cache hit", "key", key)
	return snap, true
}

// Set writes snap unconditionally. Failures are logged and swallowed.
func (c *PetCache) Set(ctx context.Context, snap model.Snapshot) {
	key := PetKey(snap.PetID)
	data, err := json.Marshal(snap)
	if err != nil {
		c.log.Error("failed to encode pet snapshot", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.exp); err != nil {
		c.log.Warn("cache write failed", "key", key, "error", err)
	}
}

// Invalidate drops the cached snapshot for petID.
func (c *PetCache) Invalidate(ctx context.Context, petID int64) {
	key := PetKey(petID)
	if err := c.store.Delete(ctx, key); err != nil {
		c.log.Warn("cache invalidate failed", "key", key, "error", err)
	}
}

// Ping reports whether the underlying store is reachable.
func (c *PetCache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}
