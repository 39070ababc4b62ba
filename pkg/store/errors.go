package store

import "errors"

var (
	// ErrNotFound is returned when an entity does not exist. Tenant-mismatched
	// lookups collapse into this error at the engine boundary so that callers
	// cannot distinguish "absent" from "belongs to another tenant".
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicateEmail is returned on user creation when the case-folded
	// email is already taken, in any tenant.
	ErrDuplicateEmail = errors.New("store: email already in use")

	// ErrDuplicateName is returned on role or permission creation when the
	// name is already taken.
	ErrDuplicateName = errors.New("store: name already in use")

	// ErrVersionConflict is returned when the expected version supplied to an
	// update no longer matches the stored version. The caller must re-read
	// and retry; there is no automatic merge.
	ErrVersionConflict = errors.New("store: version conflict")

	// ErrImmutableField is returned when a mutator attempts to change an
	// entity's id, tenant id or creation timestamp.
	ErrImmutableField = errors.New("store: immutable field modified")

	// ErrRoleInUse is returned when deleting a role that users still hold.
	ErrRoleInUse = errors.New("store: role is still assigned to users")

	// ErrPermissionInUse is returned when deleting a permission that roles
	// still grant.
	ErrPermissionInUse = errors.New("store: permission is still granted by roles")
)
