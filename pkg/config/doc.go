// Package config loads typed configuration structs from environment
// variables, with an optional .env file for local development.
//
// Each configuration type is parsed once per process and cached; concurrent
// callers for the same type receive the same value. Struct fields are mapped
// with caarlos0/env tags:
//
//	type CacheConfig struct {
//		TTL        time.Duration `env:"PERMCACHE_TTL" envDefault:"5m"`
//		MaxEntries int           `env:"PERMCACHE_MAX_ENTRIES" envDefault:"10000"`
//	}
//
//	var cfg CacheConfig
//	if err := config.Load(&cfg); err != nil {
//		// Handle error
//	}
//
// MustLoad panics on failure and suits configuration the process cannot start
// without.
package config
