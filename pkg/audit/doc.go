// Package audit records mutations of the identity model: user creation, role
// assignment and revocation, and catalog changes.
//
// Events carry the acting principal, the target entity, the action, the
// before/after role or permission sets, and a timestamp. Storage backends
// implement the Storage interface; an in-memory backend is provided for tests
// and an async writer decouples recording from the mutation path.
//
// Auditing is fire-and-forget from the engine's perspective: a failure to
// record an event is logged but never rolls back or fails the mutation that
// produced it.
//
// # Usage
//
//	storage := audit.NewMemoryStorage()
//	logger := audit.NewLogger(storage,
//		audit.WithActorExtractor(authz.ActorFromContext),
//	)
//
//	logger.Record(ctx, audit.ActionRoleAssigned,
//		audit.WithTarget("user", userID.String()),
//		audit.WithChange(before, after),
//	)
package audit
