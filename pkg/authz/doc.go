// Package authz is the authorization engine: it resolves the effective
// permission set of a user within a tenant and applies role and permission
// mutations under optimistic concurrency.
//
// The engine composes a store.Store with an optional permcache.Cache and an
// optional audit.Logger. Resolution follows a fixed pipeline: the tenant
// guard verifies that the user belongs to the requested tenant (a mismatch is
// reported as store.ErrNotFound, indistinguishable from an absent user), the
// cache is consulted under a key that includes the user's current version,
// and on a miss the user's flat role set is expanded into the deduplicated
// union of permission names. Concurrent misses for the same key are collapsed
// with singleflight.
//
// Mutations take the version the caller last observed and fail with
// store.ErrVersionConflict when the stored version has advanced; the caller
// re-reads and retries. Every successful mutation invalidates the user's
// cache entries before returning, and mutations of a role's permission set
// cascade through InvalidateByRole since they change resolution results
// without touching any user version.
//
// # Usage
//
//	svc := authz.New(store.NewMemory(),
//	    authz.WithCache(permcache.NewMemory()),
//	    authz.WithAuditLogger(auditLog),
//	)
//
//	perms, err := svc.ResolveEffectivePermissions(ctx, tenantID, userID)
//	if err != nil {
//	    // store.ErrNotFound covers both absent and foreign-tenant users
//	}
//
//	newVersion, err := svc.AssignRole(ctx, tenantID, userID, roleID, observedVersion)
//	if errors.Is(err, store.ErrVersionConflict) {
//	    // re-read the user and retry with the fresh version
//	}
//
// Audit failures never roll back mutations; they are logged and dropped.
//
// A declarative role catalog can be seeded at startup from YAML with
// LoadCatalog and Service.ApplyCatalog; seeding is idempotent.
package authz
