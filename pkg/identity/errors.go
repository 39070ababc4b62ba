package identity

import "errors"

var (
	// ErrInvalidEmail is returned when an email address fails basic validation.
	ErrInvalidEmail = errors.New("identity: invalid email address")

	// ErrMissingTenant is returned when a user is constructed without a tenant.
	ErrMissingTenant = errors.New("identity: tenant id is required")

	// ErrEmptyName is returned when a role or permission name is blank.
	ErrEmptyName = errors.New("identity: name is required")
)
