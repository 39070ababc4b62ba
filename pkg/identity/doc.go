// Package identity defines the core entities of the authorization engine:
// users, roles and permissions, together with their identity, uniqueness
// and versioning invariants.
//
// A User belongs to exactly one tenant, fixed at creation. A Role groups
// permissions and is shared across tenants (a system-wide catalog). The
// authoritative association direction is Role -> Permission; the reverse
// mapping is a derived index maintained by the store, never mutated directly.
//
// Every entity carries a monotonically increasing version counter that is
// incremented by exactly one on each successful mutation. The counter drives
// the optimistic-concurrency checks in the store and the version-keyed
// permission cache.
//
// # Usage
//
//	user, err := identity.NewUser("Admin@Acme.com", tenantID, identity.Profile{
//		GivenName:  "Ada",
//		FamilyName: "Lovelace",
//	})
//	if err != nil {
//		// Handle validation error
//	}
//
// Email addresses are case-folded before storage so uniqueness checks are
// case-insensitive; NewUser("Admin@Acme.com", ...) and
// NewUser("admin@acme.com", ...) collide.
package identity
