package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Permission is a named capability. Deduplication during aggregation is by
// identity, not by name; name uniqueness is a store invariant.
type Permission struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int64     `json:"version"`
}

// NewPermission constructs a permission with the given unique name.
func NewPermission(name, description string) (Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Permission{}, ErrEmptyName
	}

	now := time.Now().UTC()
	return Permission{
		ID:          uuid.New(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}, nil
}
