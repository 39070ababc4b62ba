package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasense/identity/pkg/identity"
	"github.com/aquasense/identity/pkg/store"
)

func newUser(t *testing.T, email string, tenantID uuid.UUID) identity.User {
	t.Helper()
	user, err := identity.NewUser(email, tenantID, identity.Profile{GivenName: "Test"})
	require.NoError(t, err)
	return user
}

func newRole(t *testing.T, name string, perms ...uuid.UUID) identity.Role {
	t.Helper()
	role, err := identity.NewRole(name, "")
	require.NoError(t, err)
	role.Permissions = perms
	return role
}

func newPermission(t *testing.T, name string) identity.Permission {
	t.Helper()
	perm, err := identity.NewPermission(name, "")
	require.NoError(t, err)
	return perm
}

func TestMemoryUsers_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	user := newUser(t, "ada@example.com", uuid.New())

	require.NoError(t, s.Users().Create(ctx, user))

	got, err := s.Users().Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)
	assert.Equal(t, int64(1), got.Version)

	byEmail, err := s.Users().GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	_, err = s.Users().Get(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryUsers_DuplicateEmailAcrossTenants(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	first := newUser(t, "Shared@Example.com", uuid.New())
	require.NoError(t, s.Users().Create(ctx, first))

	// Same address, different casing, different tenant: still a conflict.
	second := newUser(t, "shared@EXAMPLE.COM", uuid.New())
	err := s.Users().Create(ctx, second)
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)
}

func TestMemoryUsers_Update(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	user := newUser(t, "ada@example.com", uuid.New())
	require.NoError(t, s.Users().Create(ctx, user))

	roleID := uuid.New()
	newVersion, err := s.Users().Update(ctx, user.ID, 1, func(u *identity.User) error {
		u.AddRole(roleID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), newVersion)

	got, err := s.Users().Get(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.HasRole(roleID))
	assert.True(t, got.UpdatedAt.After(user.UpdatedAt) || got.UpdatedAt.Equal(user.UpdatedAt))
	assert.Equal(t, user.CreatedAt, got.CreatedAt)

	t.Run("stale version rejected", func(t *testing.T) {
		_, err := s.Users().Update(ctx, user.ID, 1, func(u *identity.User) error { return nil })
		assert.ErrorIs(t, err, store.ErrVersionConflict)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := s.Users().Update(ctx, uuid.New(), 1, func(u *identity.User) error { return nil })
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("mutator error aborts", func(t *testing.T) {
		wantErr := assert.AnError
		_, err := s.Users().Update(ctx, user.ID, 2, func(u *identity.User) error { return wantErr })
		assert.ErrorIs(t, err, wantErr)

		// Version unchanged on failed mutation.
		got, err := s.Users().Get(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
	})
}

func TestMemoryUsers_ImmutableFields(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	user := newUser(t, "ada@example.com", uuid.New())
	require.NoError(t, s.Users().Create(ctx, user))

	tests := []struct {
		name   string
		mutate func(*identity.User) error
	}{
		{"tenant id", func(u *identity.User) error { u.TenantID = uuid.New(); return nil }},
		{"entity id", func(u *identity.User) error { u.ID = uuid.New(); return nil }},
		{"created at", func(u *identity.User) error { u.CreatedAt = time.Now().Add(time.Hour); return nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Users().Update(ctx, user.ID, 1, tt.mutate)
			assert.ErrorIs(t, err, store.ErrImmutableField)
		})
	}
}

func TestMemoryUsers_EmailChange(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	tenantID := uuid.New()

	ada := newUser(t, "ada@example.com", tenantID)
	bob := newUser(t, "bob@example.com", tenantID)
	require.NoError(t, s.Users().Create(ctx, ada))
	require.NoError(t, s.Users().Create(ctx, bob))

	_, err := s.Users().Update(ctx, ada.ID, 1, func(u *identity.User) error {
		u.Email = "bob@example.com"
		return nil
	})
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)

	_, err = s.Users().Update(ctx, ada.ID, 1, func(u *identity.User) error {
		u.Email = "ada.lovelace@example.com"
		return nil
	})
	require.NoError(t, err)

	// Old address is free again.
	_, err = s.Users().GetByEmail(ctx, "ada@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.Users().GetByEmail(ctx, "ada.lovelace@example.com")
	require.NoError(t, err)
	assert.Equal(t, ada.ID, got.ID)
}

func TestMemoryRoles_UniqueName(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	require.NoError(t, s.Roles().Create(ctx, newRole(t, "admin")))
	err := s.Roles().Create(ctx, newRole(t, "admin"))
	assert.ErrorIs(t, err, store.ErrDuplicateName)
}

func TestMemoryRoles_DeleteGuard(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	role := newRole(t, "admin")
	require.NoError(t, s.Roles().Create(ctx, role))

	user := newUser(t, "ada@example.com", uuid.New())
	require.NoError(t, s.Users().Create(ctx, user))
	_, err := s.Users().Update(ctx, user.ID, 1, func(u *identity.User) error {
		u.AddRole(role.ID)
		return nil
	})
	require.NoError(t, err)

	assert.ErrorIs(t, s.Roles().Delete(ctx, role.ID), store.ErrRoleInUse)

	_, err = s.Users().Update(ctx, user.ID, 2, func(u *identity.User) error {
		u.RemoveRole(role.ID)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, s.Roles().Delete(ctx, role.ID))

	_, err = s.Roles().Get(ctx, role.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryPermissions_DeleteGuard(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	perm := newPermission(t, "users.read")
	require.NoError(t, s.Permissions().Create(ctx, perm))

	role := newRole(t, "viewer", perm.ID)
	require.NoError(t, s.Roles().Create(ctx, role))

	assert.ErrorIs(t, s.Permissions().Delete(ctx, perm.ID), store.ErrPermissionInUse)

	_, err := s.Roles().Update(ctx, role.ID, 1, func(r *identity.Role) error {
		r.RemovePermission(perm.ID)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, s.Permissions().Delete(ctx, perm.ID))
}

func TestMemory_DerivedIndexes(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	perm := newPermission(t, "users.read")
	require.NoError(t, s.Permissions().Create(ctx, perm))

	admin := newRole(t, "admin", perm.ID)
	viewer := newRole(t, "viewer", perm.ID)
	require.NoError(t, s.Roles().Create(ctx, admin))
	require.NoError(t, s.Roles().Create(ctx, viewer))

	granting, err := s.Permissions().GrantedBy(ctx, perm.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{admin.ID, viewer.ID}, granting)

	user := newUser(t, "ada@example.com", uuid.New())
	require.NoError(t, s.Users().Create(ctx, user))
	_, err = s.Users().Update(ctx, user.ID, 1, func(u *identity.User) error {
		u.AddRole(admin.ID)
		return nil
	})
	require.NoError(t, err)

	holders, err := s.Users().HoldersOfRole(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{user.ID}, holders)

	// Index follows revocation.
	_, err = s.Users().Update(ctx, user.ID, 2, func(u *identity.User) error {
		u.RemoveRole(admin.ID)
		return nil
	})
	require.NoError(t, err)

	holders, err = s.Users().HoldersOfRole(ctx, admin.ID)
	require.NoError(t, err)
	assert.Empty(t, holders)
}

func TestMemoryPermissions_GetMany(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	read := newPermission(t, "read")
	write := newPermission(t, "write")
	require.NoError(t, s.Permissions().Create(ctx, read))
	require.NoError(t, s.Permissions().Create(ctx, write))

	perms, err := s.Permissions().GetMany(ctx, []uuid.UUID{read.ID, uuid.New(), write.ID})
	require.NoError(t, err)
	require.Len(t, perms, 2)
	assert.Equal(t, "read", perms[0].Name)
	assert.Equal(t, "write", perms[1].Name)
}
