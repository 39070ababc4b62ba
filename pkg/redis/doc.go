// Package redis provides connection helpers for the Redis server backing the
// shared permission cache.
//
// The package wraps the go-redis client with:
//
//   - Connect, which retries the initial connection using the supplied
//     configuration before giving up.
//   - A health-check helper for liveness and readiness probes.
//
// Configuration is described by the Config struct whose fields are populated
// from environment variables via github.com/caarlos0/env.
//
// # Usage
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	cache := permcache.NewRedis(client)
//
// Register a health check in your observability stack:
//
//	checker := redis.Healthcheck(client)
//	if err := checker(ctx); err != nil {
//	    // redis is not healthy
//	}
//
// # Errors
//
// Sentinel errors (e.g. ErrRedisNotReady) wrap the underlying go-redis errors
// using errors.Join, so callers can compare with errors.Is and still unwrap
// the driver error.
package redis
