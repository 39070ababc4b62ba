package config_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasense/identity/pkg/config"
)

type cacheConfig struct {
	TTL        time.Duration `env:"TEST_PERMCACHE_TTL" envDefault:"5m"`
	MaxEntries int           `env:"TEST_PERMCACHE_MAX_ENTRIES" envDefault:"10000"`
}

type storeConfig struct {
	DSN string `env:"TEST_STORE_DSN" envDefault:"postgres://localhost/identity"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg cacheConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 5*time.Minute, cfg.TTL)
	assert.Equal(t, 10000, cfg.MaxEntries)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("TEST_STORE_DSN", "postgres://db.internal/identity")

	var cfg storeConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "postgres://db.internal/identity", cfg.DSN)
}

func TestLoad_NilPointer(t *testing.T) {
	var cfg *cacheConfig
	err := config.Load(cfg)
	assert.ErrorIs(t, err, config.ErrNilPointer)
}

func TestLoad_CachedAcrossCalls(t *testing.T) {
	var first cacheConfig
	require.NoError(t, config.Load(&first))

	// Changing the environment after the first load has no effect; the
	// parsed value is cached per type.
	t.Setenv("TEST_PERMCACHE_MAX_ENTRIES", "1")

	var second cacheConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, first, second)
}

func TestLoad_Concurrent(t *testing.T) {
	const callers = 16
	results := make([]cacheConfig, callers)
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			var cfg cacheConfig
			assert.NoError(t, config.Load(&cfg))
			results[n] = cfg
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Equal(t, results[0], results[i])
	}
}

func TestMustLoad(t *testing.T) {
	assert.NotPanics(t, func() {
		var cfg cacheConfig
		config.MustLoad(&cfg)
	})
}
