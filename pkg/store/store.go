package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/aquasense/identity/pkg/identity"
)

// Store aggregates the typed entity stores. Implementations must be safe for
// concurrent use by independent callers.
type Store interface {
	Users() Users
	Roles() Roles
	Permissions() Permissions
}

// Users persists user entities and their role-assignment edges.
type Users interface {
	// Create inserts the user, atomically checking email uniqueness.
	// Returns ErrDuplicateEmail on conflict.
	Create(ctx context.Context, user identity.User) error

	// Get returns the user or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (identity.User, error)

	// GetByEmail looks up a user by case-folded email.
	GetByEmail(ctx context.Context, email string) (identity.User, error)

	// Update applies the mutator under a compare-and-swap on expectedVersion
	// and returns the new version. The mutator receives a copy; the change
	// becomes visible atomically or not at all. Returns ErrVersionConflict
	// when the stored version has advanced, ErrNotFound when the user is
	// absent, and ErrImmutableField when the mutator changes id, tenant id
	// or creation timestamp.
	Update(ctx context.Context, id uuid.UUID, expectedVersion int64, mutate func(*identity.User) error) (int64, error)

	// HoldersOfRole returns ids of users holding the role, from the derived
	// role -> users index. Returns an empty slice, never an error, when no
	// user holds the role.
	HoldersOfRole(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error)
}

// Roles persists role entities and their permission-assignment edges.
type Roles interface {
	// Create inserts the role, atomically checking name uniqueness.
	// Returns ErrDuplicateName on conflict.
	Create(ctx context.Context, role identity.Role) error

	Get(ctx context.Context, id uuid.UUID) (identity.Role, error)
	GetByName(ctx context.Context, name string) (identity.Role, error)

	// Update applies the mutator under a compare-and-swap, as Users.Update.
	Update(ctx context.Context, id uuid.UUID, expectedVersion int64, mutate func(*identity.Role) error) (int64, error)

	// Delete removes the role. Returns ErrRoleInUse while any user still
	// holds it; assignments must be revoked first.
	Delete(ctx context.Context, id uuid.UUID) error
}

// Permissions persists permission entities.
type Permissions interface {
	// Create inserts the permission, atomically checking name uniqueness.
	// Returns ErrDuplicateName on conflict.
	Create(ctx context.Context, perm identity.Permission) error

	Get(ctx context.Context, id uuid.UUID) (identity.Permission, error)
	GetByName(ctx context.Context, name string) (identity.Permission, error)

	// GetMany returns the permissions for the given ids, skipping ids that
	// no longer resolve. Order follows the input.
	GetMany(ctx context.Context, ids []uuid.UUID) ([]identity.Permission, error)

	// Update applies the mutator under a compare-and-swap, as Users.Update.
	Update(ctx context.Context, id uuid.UUID, expectedVersion int64, mutate func(*identity.Permission) error) (int64, error)

	// Delete removes the permission. Returns ErrPermissionInUse while any
	// role still grants it.
	Delete(ctx context.Context, id uuid.UUID) error

	// GrantedBy returns ids of roles granting the permission, from the
	// derived permission -> roles index.
	GrantedBy(ctx context.Context, permissionID uuid.UUID) ([]uuid.UUID, error)
}
