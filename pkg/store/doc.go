// Package store defines the persistence contract for identity entities and
// provides an in-memory reference implementation.
//
// The contract enforces three invariants at write time:
//
//  1. Uniqueness: user emails (case-folded) and role/permission names are
//     unique, checked atomically with the insert.
//  2. Versioning: every successful mutation increments the entity version by
//     exactly one and refreshes the last-modified timestamp. Updates are
//     compare-and-swap: the caller supplies the version it last observed and
//     receives ErrVersionConflict if the stored version has advanced.
//  3. Immutability: entity id, tenant id and creation timestamp never change
//     after creation; a mutator touching them fails the update.
//
// Mutations are serializable per entity through the version check; no broader
// locking is required because conflicts are detected rather than prevented.
//
// The store also owns two derived indexes: which users hold a role, and which
// roles grant a permission. Both are read optimizations recomputed from the
// authoritative edges (User -> Role and Role -> Permission) and are never
// mutated by callers.
//
// # Usage
//
//	s := store.NewMemory()
//	user, _ := identity.NewUser("ada@example.com", tenantID, identity.Profile{})
//	if err := s.Users().Create(ctx, user); err != nil {
//		// store.ErrDuplicateEmail on conflict
//	}
//
//	newVersion, err := s.Users().Update(ctx, user.ID, user.Version, func(u *identity.User) error {
//		u.AddRole(roleID)
//		return nil
//	})
//
// A PostgreSQL implementation of the same contract lives in package pg.
package store
