package permcache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Key identifies one resolved permission set. The user version is part of the
// key so that entries computed against an older role set are unreachable as
// soon as the user mutates.
type Key struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Version  int64
}

// Entry is a cached resolution result. Roles records the role set the entry
// was computed from and drives cascade invalidation when a role's permission
// topology changes.
type Entry struct {
	Permissions []string    `json:"permissions"`
	Roles       []uuid.UUID `json:"roles"`
}

// Cache stores resolved permission sets. Implementations must be safe for
// concurrent use; a miss observed by two callers at once is acceptable
// duplicate work, never an error.
type Cache interface {
	// Get returns the cached entry for the key, if present and fresh.
	Get(ctx context.Context, key Key) (Entry, bool)

	// Set stores an entry with the given TTL.
	Set(ctx context.Context, key Key, entry Entry, ttl time.Duration)

	// Invalidate drops every entry for the user, across versions.
	Invalidate(ctx context.Context, userID uuid.UUID)

	// InvalidateByRole drops every entry computed from a role set containing
	// the role.
	InvalidateByRole(ctx context.Context, roleID uuid.UUID)

	// Clear drops all entries. Always safe; costs only recomputation.
	Clear(ctx context.Context)

	// Close releases resources held by the cache.
	Close() error
}

// noopCache disables caching; every Get is a miss.
type noopCache struct{}

// NewNoop returns a cache that never stores anything. Useful for tests and
// for deployments where resolution is cheap enough to skip memoization.
func NewNoop() Cache { return noopCache{} }

func (noopCache) Get(context.Context, Key) (Entry, bool)         { return Entry{}, false }
func (noopCache) Set(context.Context, Key, Entry, time.Duration) {}
func (noopCache) Invalidate(context.Context, uuid.UUID)          {}
func (noopCache) InvalidateByRole(context.Context, uuid.UUID)    {}
func (noopCache) Clear(context.Context)                          {}
func (noopCache) Close() error                                   { return nil }
