package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TZ", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, 10*time.Minute, cfg.Cache.AbsoluteTTL)
	assert.Equal(t, 2*time.Minute, cfg.Cache.SlidingTTL)
	assert.Equal(t, "sqlite", cfg.Store.Type)
	assert.Equal(t, "simulated", cfg.Ledger.Type)
	assert.Equal(t, 5*time.Second, cfg.Ledger.PollInterval)
	assert.Equal(t, 20, cfg.Ledger.MaxAttempts)
	assert.Equal(t, time.Hour, cfg.Workers.DecayInterval)
	assert.Equal(t, time.Minute, cfg.Workers.FeedingInterval)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.False(t, cfg.App.IsProduction())
	assert.Empty(t, cfg.App.APIKeys)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CACHE_TYPE", "redis")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("STORE_TYPE", "mysql")
	t.Setenv("DB_NAME", "pets")
	t.Setenv("API_KEYS", "k1,k2")
	t.Setenv("TZ", "Europe/Berlin")
	t.Setenv("LEDGER_POLL_INTERVAL", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "cache:6379", cfg.Cache.RedisAddress())
	assert.Equal(t, "pets", cfg.Store.MySQL().Name)
	assert.Equal(t, []string{"k1", "k2"}, cfg.App.APIKeys)
	assert.Equal(t, 250*time.Millisecond, cfg.Ledger.PollInterval)

	loc, err := cfg.App.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"cache type":      {"CACHE_TYPE": "memcached"},
		"store type":      {"STORE_TYPE": "postgres"},
		"ledger type":     {"LEDGER_TYPE": "ethereum"},
		"rpc incomplete":  {"LEDGER_TYPE": "rpc", "LEDGER_CONTRACT_ADDRESS": "KT1"},
		"attempts":        {"LEDGER_MAX_ATTEMPTS": "0"},
		"zone":            {"TZ": "Nowhere/Special"},
		"production keys": {"APP_ENV": "production", "API_KEYS": ""},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("TZ", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
