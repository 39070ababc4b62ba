package identity_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasense/identity/pkg/identity"
)

func TestNewUser(t *testing.T) {
	tenantID := uuid.New()

	t.Run("valid user", func(t *testing.T) {
		user, err := identity.NewUser("Ada@Example.COM", tenantID, identity.Profile{
			GivenName:  "Ada",
			FamilyName: "Lovelace",
		})
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, user.ID)
		assert.Equal(t, tenantID, user.TenantID)
		assert.Equal(t, "ada@example.com", user.Email)
		assert.Equal(t, int64(1), user.Version)
		assert.True(t, user.Enabled)
		assert.True(t, user.Usable())
		assert.Empty(t, user.Roles)
		assert.Nil(t, user.LastLoginAt)
		assert.Equal(t, user.CreatedAt, user.UpdatedAt)
	})

	t.Run("missing tenant", func(t *testing.T) {
		_, err := identity.NewUser("ada@example.com", uuid.Nil, identity.Profile{})
		assert.ErrorIs(t, err, identity.ErrMissingTenant)
	})

	tests := []struct {
		name  string
		email string
	}{
		{"empty email", ""},
		{"no at sign", "ada.example.com"},
		{"no local part", "@example.com"},
		{"no domain", "ada@"},
		{"whitespace only", "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := identity.NewUser(tt.email, tenantID, identity.Profile{})
			assert.ErrorIs(t, err, identity.ErrInvalidEmail)
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	a, err := identity.NormalizeEmail("  Admin@Acme.Com ")
	require.NoError(t, err)
	b, err := identity.NormalizeEmail("admin@acme.com")
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestUser_Usable(t *testing.T) {
	base, err := identity.NewUser("u@example.com", uuid.New(), identity.Profile{})
	require.NoError(t, err)
	require.True(t, base.Usable())

	tests := []struct {
		name   string
		mutate func(*identity.User)
	}{
		{"disabled", func(u *identity.User) { u.Enabled = false }},
		{"account expired", func(u *identity.User) { u.AccountNotExpired = false }},
		{"account locked", func(u *identity.User) { u.AccountNotLocked = false }},
		{"credentials expired", func(u *identity.User) { u.CredentialsNotExpired = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := base.Clone()
			tt.mutate(&u)
			assert.False(t, u.Usable())
		})
	}
}

func TestUser_RoleSet(t *testing.T) {
	user, err := identity.NewUser("u@example.com", uuid.New(), identity.Profile{})
	require.NoError(t, err)

	roleID := uuid.New()
	assert.False(t, user.HasRole(roleID))
	assert.True(t, user.AddRole(roleID))
	assert.True(t, user.HasRole(roleID))

	// Adding a held role is a no-op.
	assert.False(t, user.AddRole(roleID))
	assert.Len(t, user.Roles, 1)

	assert.True(t, user.RemoveRole(roleID))
	assert.False(t, user.HasRole(roleID))
	assert.False(t, user.RemoveRole(roleID))
}

func TestUser_Clone(t *testing.T) {
	user, err := identity.NewUser("u@example.com", uuid.New(), identity.Profile{})
	require.NoError(t, err)
	user.AddRole(uuid.New())

	clone := user.Clone()
	clone.Roles[0] = uuid.New()
	assert.NotEqual(t, clone.Roles[0], user.Roles[0])
}

func TestNewRole(t *testing.T) {
	role, err := identity.NewRole("  admin  ", " full access ")
	require.NoError(t, err)
	assert.Equal(t, "admin", role.Name)
	assert.Equal(t, "full access", role.Description)
	assert.Equal(t, int64(1), role.Version)

	_, err = identity.NewRole("   ", "")
	assert.ErrorIs(t, err, identity.ErrEmptyName)
}

func TestRole_PermissionSet(t *testing.T) {
	role, err := identity.NewRole("editor", "")
	require.NoError(t, err)

	permID := uuid.New()
	assert.True(t, role.AddPermission(permID))
	assert.False(t, role.AddPermission(permID))
	assert.True(t, role.HasPermission(permID))
	assert.True(t, role.RemovePermission(permID))
	assert.False(t, role.RemovePermission(permID))
}

func TestNewPermission(t *testing.T) {
	perm, err := identity.NewPermission("users.read", "read user records")
	require.NoError(t, err)
	assert.Equal(t, "users.read", perm.Name)
	assert.NotEqual(t, uuid.Nil, perm.ID)

	_, err = identity.NewPermission("", "")
	assert.ErrorIs(t, err, identity.ErrEmptyName)
}
