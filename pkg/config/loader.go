package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// typeCache stores parsed configuration values keyed by their Go type name so
// each type is parsed exactly once per process.
type typeCache struct {
	mu     sync.RWMutex
	values map[string]any
	onces  map[string]*sync.Once
}

var (
	cache = &typeCache{
		values: make(map[string]any),
		onces:  make(map[string]*sync.Once),
	}

	dotenvOnce sync.Once
)

// Load parses environment variables into v. The first call for a given type
// does the parsing; later calls return the cached value. A .env file in the
// working directory is loaded once, if present.
func Load[T any](v *T) error {
	dotenvOnce.Do(func() {
		// Missing .env is fine; env vars may come from the environment.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	typeName := typeNameOf[T]()

	cache.mu.RLock()
	if cached, ok := cache.values[typeName]; ok {
		*v = cached.(T)
		cache.mu.RUnlock()
		return nil
	}
	cache.mu.RUnlock()

	cache.mu.Lock()
	once, exists := cache.onces[typeName]
	if !exists {
		once = new(sync.Once)
		cache.onces[typeName] = once
	}
	cache.mu.Unlock()

	var err error
	once.Do(func() {
		if parseErr := env.Parse(v); parseErr != nil {
			err = errors.Join(ErrParsingConfig, parseErr)
			return
		}

		cache.mu.Lock()
		cache.values[typeName] = *v // copy, so callers cannot mutate the cache
		cache.mu.Unlock()
	})
	if err != nil {
		return err
	}

	// A concurrent caller may have lost the once race; read the cached copy
	// so every caller observes the same value.
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	if cached, ok := cache.values[typeName]; ok {
		*v = cached.(T)
		return nil
	}

	return ErrConfigNotLoaded
}

// MustLoad is Load panicking on failure, for configuration required at startup.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: failed to load required configuration: %v", err))
	}
}

func typeNameOf[T any]() string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		// Interface types have no concrete reflect type.
		return fmt.Sprintf("%T", *new(T))
	}
	return t.String()
}
