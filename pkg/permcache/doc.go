// Package permcache memoizes resolved effective-permission sets.
//
// Entries are keyed by (tenant, user, user version). Because every successful
// user mutation bumps the version, a stale entry computed before a role change
// can never be returned for the new version: the key itself carries the
// consistency proof. Mutations still invalidate eagerly rather than relying on
// key rotation alone, so memory is not held for dead versions.
//
// Each entry remembers the role set it was computed from, which lets
// InvalidateByRole cascade a role or permission topology change to every
// affected user without a full flush. Clear drops everything and is safe to
// call at any time; the only cost is recomputation.
//
// Two implementations are provided: an in-memory cache with LRU eviction and
// TTL cleanup for single-process deployments, and a Redis-backed cache for
// sharing resolved sets across processes. NewNoop disables caching entirely.
package permcache
