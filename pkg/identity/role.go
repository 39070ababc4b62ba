package identity

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role groups permissions under a unique name. Roles form a flat set; there
// is no inheritance between roles. A role is part of the system-wide catalog
// and is shared across tenants.
type Role struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Permissions []uuid.UUID `json:"permissions"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Version     int64       `json:"version"`
}

// NewRole constructs a role with the given unique name.
func NewRole(name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, ErrEmptyName
	}

	now := time.Now().UTC()
	return Role{
		ID:          uuid.New(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}, nil
}

// HasPermission reports whether the role grants the given permission.
func (r *Role) HasPermission(permissionID uuid.UUID) bool {
	return slices.Contains(r.Permissions, permissionID)
}

// AddPermission grants the permission if not already granted. Returns true
// if the permission set changed.
func (r *Role) AddPermission(permissionID uuid.UUID) bool {
	if r.HasPermission(permissionID) {
		return false
	}
	r.Permissions = append(r.Permissions, permissionID)
	return true
}

// RemovePermission revokes the permission if granted. Returns true if the
// permission set changed.
func (r *Role) RemovePermission(permissionID uuid.UUID) bool {
	idx := slices.Index(r.Permissions, permissionID)
	if idx < 0 {
		return false
	}
	r.Permissions = slices.Delete(r.Permissions, idx, idx+1)
	return true
}

// Clone returns a deep copy safe for mutation outside the store.
func (r Role) Clone() Role {
	c := r
	c.Permissions = slices.Clone(r.Permissions)
	return c
}
