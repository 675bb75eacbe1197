package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Hash fields of a stored entry. Deadlines are unix milliseconds, -1
// when the bound is disabled.
const (
	fieldData     = "data"
	fieldAbsolute = "absexp"
	fieldSliding  = "sldexp"
)

// getAndRefreshScript returns the cached payload and renews the key TTL to
// min(sliding, remaining absolute). Expired entries are deleted and reported
// as missing.
var getAndRefreshScript = redis.NewScript(`
	local vals = redis.call("HMGET", KEYS[1], "absexp", "sldexp", "data")
	if vals[3] == false then
		return false
	end
	local now = tonumber(ARGV[1])
	local abs = tonumber(vals[1]) or -1
	local sld = tonumber(vals[2]) or -1
	if abs > 0 and now >= abs then
		redis.call("DEL", KEYS[1])
		return false
	end
	if sld > 0 then
		local ttl = sld
		if abs > 0 and (abs - now) < ttl then
			ttl = abs - now
		end
		redis.call("PEXPIRE", KEYS[1], ttl)
	end
	return vals[3]
`)

// RedisConfig holds connection settings for the Redis store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore implements Store on Redis hashes so that a sliding window can
// be renewed without ever extending the absolute deadline.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
	closeOnce sync.Once
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	s := NewRedisStoreWithClient(client, cfg.KeyPrefix)
	slog.Info("redis cache store started", "component", "cache", "db", cfg.DB, "prefix", s.keyPrefix)
	return s, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "digipet:cache:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

func (s *RedisStore) key(k string) string {
	return s.keyPrefix + k
}

// Get retrieves a value and renews its sliding window.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := getAndRefreshScript.Run(ctx, s.client, []string{s.key(key)}, s.now().UnixMilli()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	switch v := res.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("redis get %s: unexpected reply type %T", key, res)
	}
}

// Set stores value under key, replacing any previous entry.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, exp Expiration) error {
	now := s.now()
	absolute := int64(-1)
	if exp.Absolute > 0 {
		absolute = now.Add(exp.Absolute).UnixMilli()
	}
	sliding := int64(-1)
	if exp.Sliding > 0 {
		sliding = exp.Sliding.Milliseconds()
	}
	ttl := initialTTL(exp)

	k := s.key(key)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k)
		pipe.HSet(ctx, k, fieldData, value, fieldAbsolute, absolute, fieldSliding, sliding)
		if ttl > 0 {
			pipe.PExpire(ctx, k, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// initialTTL is the key lifetime right after a write.
func initialTTL(exp Expiration) time.Duration {
	switch {
	case exp.Absolute > 0 && exp.Sliding > 0:
		return min(exp.Absolute, exp.Sliding)
	case exp.Absolute > 0:
		return exp.Absolute
	default:
		return exp.Sliding
	}
}

// Delete removes a value by key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.client.Close() })
	return err
}

var _ Store = (*RedisStore)(nil)
