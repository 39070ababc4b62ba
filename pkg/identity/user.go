package identity

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// emailFolder performs Unicode case folding so that email uniqueness is
// case-insensitive regardless of locale.
var emailFolder = cases.Fold()

// Profile holds the mutable display fields of a user.
type Profile struct {
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// User is an identity scoped to exactly one tenant. The tenant id, id and
// creation timestamp are immutable after construction; every other field
// changes only through store mutations that bump Version by one.
type User struct {
	ID                    uuid.UUID   `json:"id"`
	TenantID              uuid.UUID   `json:"tenant_id"`
	Email                 string      `json:"email"` // stored case-folded
	CredentialRef         string      `json:"-"`     // opaque reference, never a plaintext secret
	Profile               Profile     `json:"profile"`
	Enabled               bool        `json:"enabled"`
	AccountNotExpired     bool        `json:"account_not_expired"`
	AccountNotLocked      bool        `json:"account_not_locked"`
	CredentialsNotExpired bool        `json:"credentials_not_expired"`
	Roles                 []uuid.UUID `json:"roles"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
	LastLoginAt           *time.Time  `json:"last_login_at,omitempty"`
	Version               int64       `json:"version"`
}

// NewUser constructs a user in the given tenant. The email is normalized
// with NormalizeEmail and all four account flags start true. Version starts
// at 1; the store owns all subsequent increments.
func NewUser(email string, tenantID uuid.UUID, profile Profile) (User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	if tenantID == uuid.Nil {
		return User{}, ErrMissingTenant
	}

	now := time.Now().UTC()
	return User{
		ID:                    uuid.New(),
		TenantID:              tenantID,
		Email:                 email,
		Profile:               profile,
		Enabled:               true,
		AccountNotExpired:     true,
		AccountNotLocked:      true,
		CredentialsNotExpired: true,
		CreatedAt:             now,
		UpdatedAt:             now,
		Version:               1,
	}, nil
}

// NormalizeEmail trims whitespace and case-folds the address. It validates
// only the minimal shape (a non-empty local part and domain); full RFC 5322
// validation belongs to the caller-facing layer.
func NormalizeEmail(email string) (string, error) {
	email = emailFolder.String(strings.TrimSpace(email))
	at := strings.IndexByte(email, '@')
	if at < 1 || at == len(email)-1 {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// Usable reports whether the account can be used for authorization decisions.
// All four flags must hold.
func (u *User) Usable() bool {
	return u.Enabled && u.AccountNotExpired && u.AccountNotLocked && u.CredentialsNotExpired
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(roleID uuid.UUID) bool {
	return slices.Contains(u.Roles, roleID)
}

// AddRole appends the role if not already held. Returns true if the role
// set changed.
func (u *User) AddRole(roleID uuid.UUID) bool {
	if u.HasRole(roleID) {
		return false
	}
	u.Roles = append(u.Roles, roleID)
	return true
}

// RemoveRole drops the role if held. Returns true if the role set changed.
func (u *User) RemoveRole(roleID uuid.UUID) bool {
	idx := slices.Index(u.Roles, roleID)
	if idx < 0 {
		return false
	}
	u.Roles = slices.Delete(u.Roles, idx, idx+1)
	return true
}

// Clone returns a deep copy safe for mutation outside the store.
func (u User) Clone() User {
	c := u
	c.Roles = slices.Clone(u.Roles)
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return c
}
