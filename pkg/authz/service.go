package authz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/aquasense/identity/pkg/audit"
	"github.com/aquasense/identity/pkg/identity"
	"github.com/aquasense/identity/pkg/logger"
	"github.com/aquasense/identity/pkg/permcache"
	"github.com/aquasense/identity/pkg/store"
)

// Service is the authorization engine. It is safe for concurrent use by
// independent callers; per-entity write serialization comes from the store's
// compare-and-swap contract, not from locking inside the service.
type Service struct {
	store    store.Store
	cache    permcache.Cache
	recorder audit.Logger
	log      *slog.Logger
	cacheTTL time.Duration
	group    singleflight.Group
}

// Option configures the service.
type Option func(*Service)

// WithCache sets the permission cache. Defaults to a no-op cache.
func WithCache(c permcache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithAuditLogger sets the audit sink notified on every successful mutation.
// Audit failures are logged and dropped; they never fail the mutation.
func WithAuditLogger(l audit.Logger) Option {
	return func(s *Service) {
		s.recorder = l
	}
}

// WithLogger sets the structured logger. Defaults to a discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithCacheTTL sets the TTL applied to cached resolution results.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// New creates the engine on top of the given store.
func New(st store.Store, opts ...Option) *Service {
	if st == nil {
		panic("authz: store cannot be nil")
	}

	s := &Service{
		store:    st,
		cache:    permcache.NewNoop(),
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		cacheTTL: permcache.DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveEffectivePermissions returns the sorted, deduplicated set of
// permission names granted to the user through its roles. The result is
// deterministic for a given role topology regardless of enumeration order.
// Returns store.ErrNotFound when the user is absent or belongs to a
// different tenant.
func (s *Service) ResolveEffectivePermissions(ctx context.Context, tenantID, userID uuid.UUID) ([]string, error) {
	user, err := s.scopedUser(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}

	key := permcache.Key{TenantID: tenantID, UserID: userID, Version: user.Version}
	if entry, ok := s.cache.Get(ctx, key); ok {
		return slices.Clone(entry.Permissions), nil
	}

	// Collapse concurrent misses for the same key into one resolution.
	// Duplicate work would be correct, just wasted.
	v, err, _ := s.group.Do(flightKey(key), func() (any, error) {
		if entry, ok := s.cache.Get(ctx, key); ok {
			return entry, nil
		}

		entry, err := s.resolve(ctx, user)
		if err != nil {
			return permcache.Entry{}, err
		}
		s.cache.Set(ctx, key, entry, s.cacheTTL)
		return entry, nil
	})
	if err != nil {
		return nil, err
	}

	return slices.Clone(v.(permcache.Entry).Permissions), nil
}

// resolve expands the user's flat role set into the deduplicated union of
// permission names.
func (s *Service) resolve(ctx context.Context, user identity.User) (permcache.Entry, error) {
	seen := make(map[uuid.UUID]struct{})
	var permIDs []uuid.UUID
	for _, roleID := range user.Roles {
		role, err := s.store.Roles().Get(ctx, roleID)
		if err != nil {
			return permcache.Entry{}, fmt.Errorf("resolve role %s: %w", roleID, err)
		}
		for _, permID := range role.Permissions {
			if _, dup := seen[permID]; dup {
				continue
			}
			seen[permID] = struct{}{}
			permIDs = append(permIDs, permID)
		}
	}

	perms, err := s.store.Permissions().GetMany(ctx, permIDs)
	if err != nil {
		return permcache.Entry{}, fmt.Errorf("load permissions: %w", err)
	}

	names := make([]string, 0, len(perms))
	for _, perm := range perms {
		names = append(names, perm.Name)
	}
	slices.Sort(names)

	return permcache.Entry{
		Permissions: names,
		Roles:       slices.Clone(user.Roles),
	}, nil
}

// AssignRole adds the role to the user's role set under a compare-and-swap
// on expectedVersion and returns the new version. Assigning a role the user
// already holds is a no-op that leaves the version unchanged. Returns
// store.ErrVersionConflict when the observed version is stale and
// store.ErrNotFound when the user (within the tenant) or the role is absent.
func (s *Service) AssignRole(ctx context.Context, tenantID, userID, roleID uuid.UUID, expectedVersion int64) (int64, error) {
	if _, err := s.scopedUser(ctx, tenantID, userID); err != nil {
		return 0, err
	}
	if _, err := s.store.Roles().Get(ctx, roleID); err != nil {
		return 0, fmt.Errorf("assign role: %w", err)
	}

	var before, after []uuid.UUID
	newVersion, err := s.store.Users().Update(ctx, userID, expectedVersion, func(u *identity.User) error {
		before = slices.Clone(u.Roles)
		if !u.AddRole(roleID) {
			return errNoChange
		}
		after = slices.Clone(u.Roles)
		return nil
	})
	if err != nil {
		if errors.Is(err, errNoChange) {
			return expectedVersion, nil
		}
		return 0, err
	}

	s.cache.Invalidate(ctx, userID)
	s.recordEvent(ctx, audit.ActionRoleAssigned,
		audit.WithTenant(tenantID.String()),
		audit.WithTarget("user", userID.String()),
		audit.WithChange(idStrings(before), idStrings(after)),
		audit.WithMetadata("role_id", roleID.String()),
	)
	s.log.InfoContext(ctx, "role assigned",
		logger.TenantID(tenantID), logger.UserID(userID), logger.RoleID(roleID), logger.Version(newVersion))
	return newVersion, nil
}

// RevokeRole removes the role from the user's role set under a
// compare-and-swap on expectedVersion. Revoking a role the user does not
// hold is a no-op that leaves the version unchanged.
func (s *Service) RevokeRole(ctx context.Context, tenantID, userID, roleID uuid.UUID, expectedVersion int64) (int64, error) {
	if _, err := s.scopedUser(ctx, tenantID, userID); err != nil {
		return 0, err
	}

	var before, after []uuid.UUID
	newVersion, err := s.store.Users().Update(ctx, userID, expectedVersion, func(u *identity.User) error {
		before = slices.Clone(u.Roles)
		if !u.RemoveRole(roleID) {
			return errNoChange
		}
		after = slices.Clone(u.Roles)
		return nil
	})
	if err != nil {
		if errors.Is(err, errNoChange) {
			return expectedVersion, nil
		}
		return 0, err
	}

	s.cache.Invalidate(ctx, userID)
	s.recordEvent(ctx, audit.ActionRoleRevoked,
		audit.WithTenant(tenantID.String()),
		audit.WithTarget("user", userID.String()),
		audit.WithChange(idStrings(before), idStrings(after)),
		audit.WithMetadata("role_id", roleID.String()),
	)
	s.log.InfoContext(ctx, "role revoked",
		logger.TenantID(tenantID), logger.UserID(userID), logger.RoleID(roleID), logger.Version(newVersion))
	return newVersion, nil
}

// CreateUser creates a user in the tenant. Returns store.ErrDuplicateEmail
// when the case-folded email is already taken, in any tenant.
func (s *Service) CreateUser(ctx context.Context, email string, tenantID uuid.UUID, profile identity.Profile) (identity.User, error) {
	user, err := identity.NewUser(email, tenantID, profile)
	if err != nil {
		return identity.User{}, err
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return identity.User{}, err
	}

	s.recordEvent(ctx, audit.ActionUserCreated,
		audit.WithTenant(tenantID.String()),
		audit.WithTarget("user", user.ID.String()),
	)
	s.log.InfoContext(ctx, "user created", logger.TenantID(tenantID), logger.UserID(user.ID))
	return user, nil
}

// RecordLogin stamps the user's last-login time under a compare-and-swap on
// expectedVersion.
func (s *Service) RecordLogin(ctx context.Context, tenantID, userID uuid.UUID, expectedVersion int64) (int64, error) {
	if _, err := s.scopedUser(ctx, tenantID, userID); err != nil {
		return 0, err
	}

	newVersion, err := s.store.Users().Update(ctx, userID, expectedVersion, func(u *identity.User) error {
		now := time.Now().UTC()
		u.LastLoginAt = &now
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.cache.Invalidate(ctx, userID)
	s.recordEvent(ctx, audit.ActionLoginRecorded,
		audit.WithTenant(tenantID.String()),
		audit.WithTarget("user", userID.String()),
	)
	return newVersion, nil
}

// UpdateProfile replaces the user's profile fields under a compare-and-swap
// on expectedVersion.
func (s *Service) UpdateProfile(ctx context.Context, tenantID, userID uuid.UUID, expectedVersion int64, profile identity.Profile) (int64, error) {
	if _, err := s.scopedUser(ctx, tenantID, userID); err != nil {
		return 0, err
	}

	newVersion, err := s.store.Users().Update(ctx, userID, expectedVersion, func(u *identity.User) error {
		u.Profile = profile
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.cache.Invalidate(ctx, userID)
	s.recordEvent(ctx, audit.ActionProfileUpdated,
		audit.WithTenant(tenantID.String()),
		audit.WithTarget("user", userID.String()),
	)
	return newVersion, nil
}

// SetCredentialRef replaces the user's opaque credential reference under a
// compare-and-swap on expectedVersion. The engine never interprets the
// reference; credential verification is an external collaborator.
func (s *Service) SetCredentialRef(ctx context.Context, tenantID, userID uuid.UUID, expectedVersion int64, ref string) (int64, error) {
	if _, err := s.scopedUser(ctx, tenantID, userID); err != nil {
		return 0, err
	}

	newVersion, err := s.store.Users().Update(ctx, userID, expectedVersion, func(u *identity.User) error {
		u.CredentialRef = ref
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.cache.Invalidate(ctx, userID)
	return newVersion, nil
}

// SetUserEnabled flips the enabled flag under a compare-and-swap on
// expectedVersion. Disabling is the safe alternative to deletion while the
// user may still be referenced by active sessions. Setting the flag to its
// current value is a no-op that leaves the version unchanged.
func (s *Service) SetUserEnabled(ctx context.Context, tenantID, userID uuid.UUID, expectedVersion int64, enabled bool) (int64, error) {
	if _, err := s.scopedUser(ctx, tenantID, userID); err != nil {
		return 0, err
	}

	newVersion, err := s.store.Users().Update(ctx, userID, expectedVersion, func(u *identity.User) error {
		if u.Enabled == enabled {
			return errNoChange
		}
		u.Enabled = enabled
		return nil
	})
	if err != nil {
		if errors.Is(err, errNoChange) {
			return expectedVersion, nil
		}
		return 0, err
	}

	s.cache.Invalidate(ctx, userID)
	action := audit.ActionUserDisabled
	if enabled {
		action = audit.ActionUserEnabled
	}
	s.recordEvent(ctx, action,
		audit.WithTenant(tenantID.String()),
		audit.WithTarget("user", userID.String()),
	)
	return newVersion, nil
}

// CreateRole creates a role in the shared catalog, optionally granting the
// given permissions. Returns store.ErrDuplicateName when the name is taken
// and store.ErrNotFound when any permission id does not resolve.
func (s *Service) CreateRole(ctx context.Context, name, description string, permissionIDs ...uuid.UUID) (identity.Role, error) {
	role, err := identity.NewRole(name, description)
	if err != nil {
		return identity.Role{}, err
	}

	for _, permID := range permissionIDs {
		if _, err := s.store.Permissions().Get(ctx, permID); err != nil {
			return identity.Role{}, fmt.Errorf("grant permission %s: %w", permID, err)
		}
		role.AddPermission(permID)
	}

	if err := s.store.Roles().Create(ctx, role); err != nil {
		return identity.Role{}, err
	}

	s.recordEvent(ctx, audit.ActionRoleCreated,
		audit.WithTarget("role", role.ID.String()),
		audit.WithMetadata("name", role.Name),
	)
	s.log.InfoContext(ctx, "role created", logger.RoleID(role.ID), slog.String("name", role.Name))
	return role, nil
}

// CreatePermission creates a permission in the shared catalog. Returns
// store.ErrDuplicateName when the name is taken.
func (s *Service) CreatePermission(ctx context.Context, name, description string) (identity.Permission, error) {
	perm, err := identity.NewPermission(name, description)
	if err != nil {
		return identity.Permission{}, err
	}
	if err := s.store.Permissions().Create(ctx, perm); err != nil {
		return identity.Permission{}, err
	}

	s.recordEvent(ctx, audit.ActionPermissionCreated,
		audit.WithTarget("permission", perm.ID.String()),
		audit.WithMetadata("name", perm.Name),
	)
	return perm, nil
}

// GrantPermission adds the permission to the role's grant set under a
// compare-and-swap on expectedVersion. A grant the role already carries is a
// no-op with the version unchanged. Cached resolutions of every holder of
// the role are invalidated before returning, since no user version moves.
func (s *Service) GrantPermission(ctx context.Context, roleID, permissionID uuid.UUID, expectedVersion int64) (int64, error) {
	if _, err := s.store.Permissions().Get(ctx, permissionID); err != nil {
		return 0, fmt.Errorf("grant permission: %w", err)
	}

	var before, after []uuid.UUID
	newVersion, err := s.store.Roles().Update(ctx, roleID, expectedVersion, func(r *identity.Role) error {
		before = slices.Clone(r.Permissions)
		if !r.AddPermission(permissionID) {
			return errNoChange
		}
		after = slices.Clone(r.Permissions)
		return nil
	})
	if err != nil {
		if errors.Is(err, errNoChange) {
			return expectedVersion, nil
		}
		return 0, err
	}

	s.cache.InvalidateByRole(ctx, roleID)
	s.recordEvent(ctx, audit.ActionPermissionGranted,
		audit.WithTarget("role", roleID.String()),
		audit.WithChange(idStrings(before), idStrings(after)),
		audit.WithMetadata("permission_id", permissionID.String()),
	)
	s.log.InfoContext(ctx, "permission granted",
		logger.RoleID(roleID), logger.PermissionID(permissionID), logger.Version(newVersion))
	return newVersion, nil
}

// RevokePermission removes the permission from the role's grant set under a
// compare-and-swap on expectedVersion. Revoking an ungranted permission is a
// no-op with the version unchanged.
func (s *Service) RevokePermission(ctx context.Context, roleID, permissionID uuid.UUID, expectedVersion int64) (int64, error) {
	var before, after []uuid.UUID
	newVersion, err := s.store.Roles().Update(ctx, roleID, expectedVersion, func(r *identity.Role) error {
		before = slices.Clone(r.Permissions)
		if !r.RemovePermission(permissionID) {
			return errNoChange
		}
		after = slices.Clone(r.Permissions)
		return nil
	})
	if err != nil {
		if errors.Is(err, errNoChange) {
			return expectedVersion, nil
		}
		return 0, err
	}

	s.cache.InvalidateByRole(ctx, roleID)
	s.recordEvent(ctx, audit.ActionPermissionRevoked,
		audit.WithTarget("role", roleID.String()),
		audit.WithChange(idStrings(before), idStrings(after)),
		audit.WithMetadata("permission_id", permissionID.String()),
	)
	return newVersion, nil
}

// DeleteRole removes the role from the catalog. The store refuses with
// store.ErrRoleInUse while any user still holds it; cached resolutions that
// were computed from the role are invalidated synchronously before the
// deletion completes.
func (s *Service) DeleteRole(ctx context.Context, roleID uuid.UUID) error {
	s.cache.InvalidateByRole(ctx, roleID)
	if err := s.store.Roles().Delete(ctx, roleID); err != nil {
		return err
	}

	s.recordEvent(ctx, audit.ActionRoleDeleted, audit.WithTarget("role", roleID.String()))
	s.log.InfoContext(ctx, "role deleted", logger.RoleID(roleID))
	return nil
}

// DeletePermission removes the permission from the catalog. The store
// refuses with store.ErrPermissionInUse while any role still grants it.
func (s *Service) DeletePermission(ctx context.Context, permissionID uuid.UUID) error {
	if err := s.store.Permissions().Delete(ctx, permissionID); err != nil {
		return err
	}

	s.recordEvent(ctx, audit.ActionPermissionDeleted, audit.WithTarget("permission", permissionID.String()))
	return nil
}

// GetUser returns the user within the tenant scope. Callers use it to
// re-read the current version after a store.ErrVersionConflict before
// retrying a mutation.
func (s *Service) GetUser(ctx context.Context, tenantID, userID uuid.UUID) (identity.User, error) {
	return s.scopedUser(ctx, tenantID, userID)
}

// RoleByName looks up a role in the shared catalog.
func (s *Service) RoleByName(ctx context.Context, name string) (identity.Role, error) {
	return s.store.Roles().GetByName(ctx, name)
}

// PermissionByName looks up a permission in the shared catalog.
func (s *Service) PermissionByName(ctx context.Context, name string) (identity.Permission, error) {
	return s.store.Permissions().GetByName(ctx, name)
}

// HoldersOfRole returns ids of users currently holding the role, across all
// tenants, from the store's derived index.
func (s *Service) HoldersOfRole(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error) {
	return s.store.Users().HoldersOfRole(ctx, roleID)
}

// ClearCache drops every cached resolution. Safe at any time; the only cost
// is recomputation on the next resolve.
func (s *Service) ClearCache(ctx context.Context) {
	s.cache.Clear(ctx)
}

// scopedUser loads the user and enforces the tenant scope. A mismatch is
// collapsed into store.ErrNotFound so a caller probing with a foreign tenant
// id cannot distinguish a hidden user from an absent one.
func (s *Service) scopedUser(ctx context.Context, tenantID, userID uuid.UUID) (identity.User, error) {
	user, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		return identity.User{}, err
	}
	if err := guardTenant(tenantID, user.TenantID); err != nil {
		s.log.DebugContext(ctx, "tenant scope rejected",
			logger.TenantID(tenantID), logger.UserID(userID))
		return identity.User{}, store.ErrNotFound
	}
	return user, nil
}

// guardTenant validates that the requested tenant matches the stored one.
func guardTenant(requested, stored uuid.UUID) error {
	if requested == uuid.Nil || requested != stored {
		return errCrossTenant
	}
	return nil
}

// recordEvent notifies the audit sink, fire-and-forget. A failing sink is
// logged and otherwise ignored; the mutation already committed.
func (s *Service) recordEvent(ctx context.Context, action string, opts ...audit.EventOption) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, action, opts...); err != nil {
		s.log.WarnContext(ctx, "audit record failed", slog.String("action", action), logger.Error(err))
	}
}

func flightKey(key permcache.Key) string {
	return fmt.Sprintf("%s:%s:%d", key.TenantID, key.UserID, key.Version)
}

func idStrings(ids []uuid.UUID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
