package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 8, 19, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStore_GetSet(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, s.Set(ctx, "k", []byte("v1"), Expiration{Absolute: time.Minute}))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, s.Set(ctx, "k", []byte("v2"), Expiration{Absolute: time.Minute}))
	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got, "last writer wins")

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryStore_SlidingRenewsOnAccess(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore(WithClock(clock.Now))
	defer s.Close()
	ctx := context.Background()

	exp := Expiration{Absolute: 10 * time.Minute, Sliding: 2 * time.Minute}
	require.NoError(t, s.Set(ctx, "k", []byte("v"), exp))

	// Touch every 90s: sliding keeps renewing.
	for i := 0; i < 4; i++ {
		clock.Advance(90 * time.Second)
		_, err := s.Get(ctx, "k")
		require.NoError(t, err, "read %d", i)
	}

	// Idle past the sliding window.
	clock.Advance(2*time.Minute + time.Second)
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryStore_AbsoluteNotExtendedByReads(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore(WithClock(clock.Now))
	defer s.Close()
	ctx := context.Background()

	exp := Expiration{Absolute: 10 * time.Minute, Sliding: 2 * time.Minute}
	require.NoError(t, s.Set(ctx, "k", []byte("v"), exp))

	for elapsed := time.Duration(0); elapsed < 9*time.Minute; elapsed += time.Minute {
		clock.Advance(time.Minute)
		_, err := s.Get(ctx, "k")
		require.NoError(t, err)
	}

	clock.Advance(time.Minute)
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss, "absolute deadline elapsed despite frequent reads")
}

func TestMemoryStore_RemoveExpired(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore(WithClock(clock.Now))
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte("1"), Expiration{Sliding: time.Minute}))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), Expiration{Sliding: time.Hour}))
	clock.Advance(2 * time.Minute)

	s.removeExpired()
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	val := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", val, Expiration{}))
	val[0] = 'z'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}
