package permcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	entryKeyPrefix = "permcache:entry:"
	userKeyPrefix  = "permcache:user:"
	roleKeyPrefix  = "permcache:role:"
)

// redisCache shares resolved permission sets across processes. Entries live
// under per-key strings; per-user and per-role sets index the entry keys for
// cascade invalidation. Redis failures degrade to cache misses and are logged,
// never surfaced: the cache is an optimization, not a source of truth.
type redisCache struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedis creates a Redis-backed cache on the given client.
func NewRedis(client *redis.Client, log *slog.Logger) Cache {
	if client == nil {
		panic("permcache: redis client cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &redisCache{client: client, log: log}
}

func entryKey(key Key) string {
	return fmt.Sprintf("%s%s:%s:%d", entryKeyPrefix, key.TenantID, key.UserID, key.Version)
}

func (c *redisCache) Get(ctx context.Context, key Key) (Entry, bool) {
	raw, err := c.client.Get(ctx, entryKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WarnContext(ctx, "permission cache read failed", slog.Any("error", err))
		}
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.log.WarnContext(ctx, "permission cache entry corrupt", slog.Any("error", err))
		return Entry{}, false
	}
	return entry, true
}

func (c *redisCache) Set(ctx context.Context, key Key, entry Entry, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		c.log.WarnContext(ctx, "permission cache encode failed", slog.Any("error", err))
		return
	}

	ek := entryKey(key)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, ek, raw, ttl)
	pipe.SAdd(ctx, userKeyPrefix+key.UserID.String(), ek)
	pipe.Expire(ctx, userKeyPrefix+key.UserID.String(), ttl)
	for _, roleID := range entry.Roles {
		pipe.SAdd(ctx, roleKeyPrefix+roleID.String(), ek)
		pipe.Expire(ctx, roleKeyPrefix+roleID.String(), ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.WarnContext(ctx, "permission cache write failed", slog.Any("error", err))
	}
}

func (c *redisCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	c.dropIndexed(ctx, userKeyPrefix+userID.String())
}

func (c *redisCache) InvalidateByRole(ctx context.Context, roleID uuid.UUID) {
	c.dropIndexed(ctx, roleKeyPrefix+roleID.String())
}

// dropIndexed deletes every entry referenced by the index set, then the set
// itself.
func (c *redisCache) dropIndexed(ctx context.Context, indexKey string) {
	members, err := c.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		c.log.WarnContext(ctx, "permission cache invalidation failed", slog.Any("error", err))
		return
	}

	keys := append(members, indexKey)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.WarnContext(ctx, "permission cache invalidation failed", slog.Any("error", err))
	}
}

func (c *redisCache) Clear(ctx context.Context) {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, "permcache:*", 256).Result()
		if err != nil {
			c.log.WarnContext(ctx, "permission cache clear failed", slog.Any("error", err))
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.log.WarnContext(ctx, "permission cache clear failed", slog.Any("error", err))
				return
			}
		}
		if next == 0 {
			return
		}
		cursor = next
	}
}

// Close is a no-op; the client's lifecycle belongs to its owner.
func (c *redisCache) Close() error { return nil }
