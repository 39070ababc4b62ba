package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aquasense/identity/pkg/identity"
)

// Memory is the in-memory reference implementation of Store. A single RWMutex
// guards all tables and indexes so that a mutation and its index maintenance
// are atomic; the compare-and-swap contract provides per-entity serialization
// on top of that.
type Memory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]identity.User
	roles map[uuid.UUID]identity.Role
	perms map[uuid.UUID]identity.Permission

	// Unique indexes checked at write time.
	emailIdx    map[string]uuid.UUID
	roleNameIdx map[string]uuid.UUID
	permNameIdx map[string]uuid.UUID

	// Derived indexes, recomputed on every edge mutation. Read optimizations
	// only; the authoritative edges live on the entities.
	roleHolders map[uuid.UUID]map[uuid.UUID]struct{} // role id -> user ids
	permGrants  map[uuid.UUID]map[uuid.UUID]struct{} // permission id -> role ids
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:       make(map[uuid.UUID]identity.User),
		roles:       make(map[uuid.UUID]identity.Role),
		perms:       make(map[uuid.UUID]identity.Permission),
		emailIdx:    make(map[string]uuid.UUID),
		roleNameIdx: make(map[string]uuid.UUID),
		permNameIdx: make(map[string]uuid.UUID),
		roleHolders: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		permGrants:  make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

func (m *Memory) Users() Users             { return memoryUsers{m} }
func (m *Memory) Roles() Roles             { return memoryRoles{m} }
func (m *Memory) Permissions() Permissions { return memoryPermissions{m} }

type memoryUsers struct{ m *Memory }

func (s memoryUsers) Create(ctx context.Context, user identity.User) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.emailIdx[user.Email]; taken {
		return ErrDuplicateEmail
	}
	if _, exists := m.users[user.ID]; exists {
		return ErrDuplicateEmail
	}

	m.users[user.ID] = user.Clone()
	m.emailIdx[user.Email] = user.ID
	m.indexUserRoles(user.ID, nil, user.Roles)
	return nil
}

func (s memoryUsers) Get(ctx context.Context, id uuid.UUID) (identity.User, error) {
	m := s.m
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return identity.User{}, ErrNotFound
	}
	return user.Clone(), nil
}

func (s memoryUsers) GetByEmail(ctx context.Context, email string) (identity.User, error) {
	m := s.m
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emailIdx[email]
	if !ok {
		return identity.User{}, ErrNotFound
	}
	return m.users[id].Clone(), nil
}

func (s memoryUsers) Update(ctx context.Context, id uuid.UUID, expectedVersion int64, mutate func(*identity.User) error) (int64, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.users[id]
	if !ok {
		return 0, ErrNotFound
	}
	if stored.Version != expectedVersion {
		return 0, ErrVersionConflict
	}

	next := stored.Clone()
	if err := mutate(&next); err != nil {
		return 0, err
	}
	if next.ID != stored.ID || next.TenantID != stored.TenantID || !next.CreatedAt.Equal(stored.CreatedAt) {
		return 0, ErrImmutableField
	}
	if next.Email != stored.Email {
		if owner, taken := m.emailIdx[next.Email]; taken && owner != id {
			return 0, ErrDuplicateEmail
		}
		delete(m.emailIdx, stored.Email)
		m.emailIdx[next.Email] = id
	}

	next.Version = stored.Version + 1
	next.UpdatedAt = time.Now().UTC()
	m.users[id] = next
	m.indexUserRoles(id, stored.Roles, next.Roles)
	return next.Version, nil
}

func (s memoryUsers) HoldersOfRole(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error) {
	m := s.m
	m.mu.RLock()
	defer m.mu.RUnlock()

	holders := m.roleHolders[roleID]
	out := make([]uuid.UUID, 0, len(holders))
	for userID := range holders {
		out = append(out, userID)
	}
	return out, nil
}

type memoryRoles struct{ m *Memory }

func (s memoryRoles) Create(ctx context.Context, role identity.Role) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.roleNameIdx[role.Name]; taken {
		return ErrDuplicateName
	}
	if _, exists := m.roles[role.ID]; exists {
		return ErrDuplicateName
	}

	m.roles[role.ID] = role.Clone()
	m.roleNameIdx[role.Name] = role.ID
	m.indexRolePermissions(role.ID, nil, role.Permissions)
	return nil
}

func (s memoryRoles) Get(ctx context.Context, id uuid.UUID) (identity.Role, error) {
	m := s.m
	m.mu.RLock()
	defer m.mu.RUnlock()

	role, ok := m.roles[id]
	if !ok {
		return identity.Role{}, ErrNotFound
	}
	return role.Clone(), nil
}

func (s memoryRoles) GetByName(ctx context.Context, name string) (identity.Role, error) {
	m := s.m
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.roleNameIdx[name]
	if !ok {
		return identity.Role{}, ErrNotFound
	}
	return m.roles[id].Clone(), nil
}

func (s memoryRoles) Update(ctx context.Context, id uuid.UUID, expectedVersion int64, mutate func(*identity.Role) error) (int64, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.roles[id]
	if !ok {
		return 0, ErrNotFound
	}
	if stored.Version != expectedVersion {
		return 0, ErrVersionConflict
	}

	next := stored.Clone()
	if err := mutate(&next); err != nil {
		return 0, err
	}
	if next.ID != stored.ID || !next.CreatedAt.Equal(stored.CreatedAt) {
		return 0, ErrImmutableField
	}
	if next.Name != stored.Name {
		if owner, taken := m.roleNameIdx[next.Name]; taken && owner != id {
			return 0, ErrDuplicateName
		}
		delete(m.roleNameIdx, stored.Name)
		m.roleNameIdx[next.Name] = id
	}

	next.Version = stored.Version + 1
	next.UpdatedAt = time.Now().UTC()
	m.roles[id] = next
	m.indexRolePermissions(id, stored.Permissions, next.Permissions)
	return next.Version, nil
}

func (s memoryRoles) Delete(ctx context.Context, id uuid.UUID) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	role, ok := m.roles[id]
	if !ok {
		return ErrNotFound
	}
	if len(m.roleHolders[id]) > 0 {
		return ErrRoleInUse
	}

	m.indexRolePermissions(id, role.Permissions, nil)
	delete(m.roleHolders, id)
	delete(m.roleNameIdx, role.Name)
	delete(m.roles, id)
	return nil
}

type memoryPermissions struct{ m *Memory }

func (s memoryPermissions) Create(ctx context.Context, perm identity.Permission) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.permNameIdx[perm.Name]; taken {
		return ErrDuplicateName
	}
	if _, exists := m.perms[perm.ID]; exists {
		return ErrDuplicateName
	}

	m.perms[perm.ID] = perm
	m.permNameIdx[perm.Name] = perm.ID
	return nil
}

func (s memoryPermissions) Get(ctx context.Context, id uuid.UUID) (identity.Permission, error) {
	m := s.m
	m.mu.RLock()
	defer m.mu.RUnlock()

	perm, ok := m.perms[id]
	if !ok {
		return identity.Permission{}, ErrNotFound
	}
	return perm, nil
}

func (s memoryPermissions) GetByName(ctx context.Context, name string) (identity.Permission, error) {
	m := s.m
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.permNameIdx[name]
	if !ok {
		return identity.Permission{}, ErrNotFound
	}
	return m.perms[id], nil
}

func (s memoryPermissions) GetMany(ctx context.Context, ids []uuid.UUID) ([]identity.Permission, error) {
	m := s.m
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]identity.Permission, 0, len(ids))
	for _, id := range ids {
		if perm, ok := m.perms[id]; ok {
			out = append(out, perm)
		}
	}
	return out, nil
}

func (s memoryPermissions) Update(ctx context.Context, id uuid.UUID, expectedVersion int64, mutate func(*identity.Permission) error) (int64, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.perms[id]
	if !ok {
		return 0, ErrNotFound
	}
	if stored.Version != expectedVersion {
		return 0, ErrVersionConflict
	}

	next := stored
	if err := mutate(&next); err != nil {
		return 0, err
	}
	if next.ID != stored.ID || !next.CreatedAt.Equal(stored.CreatedAt) {
		return 0, ErrImmutableField
	}
	if next.Name != stored.Name {
		if owner, taken := m.permNameIdx[next.Name]; taken && owner != id {
			return 0, ErrDuplicateName
		}
		delete(m.permNameIdx, stored.Name)
		m.permNameIdx[next.Name] = id
	}

	next.Version = stored.Version + 1
	next.UpdatedAt = time.Now().UTC()
	m.perms[id] = next
	return next.Version, nil
}

func (s memoryPermissions) Delete(ctx context.Context, id uuid.UUID) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	perm, ok := m.perms[id]
	if !ok {
		return ErrNotFound
	}
	if len(m.permGrants[id]) > 0 {
		return ErrPermissionInUse
	}

	delete(m.permGrants, id)
	delete(m.permNameIdx, perm.Name)
	delete(m.perms, id)
	return nil
}

func (s memoryPermissions) GrantedBy(ctx context.Context, permissionID uuid.UUID) ([]uuid.UUID, error) {
	m := s.m
	m.mu.RLock()
	defer m.mu.RUnlock()

	grants := m.permGrants[permissionID]
	out := make([]uuid.UUID, 0, len(grants))
	for roleID := range grants {
		out = append(out, roleID)
	}
	return out, nil
}

// indexUserRoles reconciles the role -> users index after a user's role set
// changed from before to after. Must be called with the write lock held.
func (m *Memory) indexUserRoles(userID uuid.UUID, before, after []uuid.UUID) {
	for _, roleID := range before {
		if holders, ok := m.roleHolders[roleID]; ok {
			delete(holders, userID)
			if len(holders) == 0 {
				delete(m.roleHolders, roleID)
			}
		}
	}
	for _, roleID := range after {
		holders, ok := m.roleHolders[roleID]
		if !ok {
			holders = make(map[uuid.UUID]struct{})
			m.roleHolders[roleID] = holders
		}
		holders[userID] = struct{}{}
	}
}

// indexRolePermissions reconciles the permission -> roles index after a
// role's permission set changed. Must be called with the write lock held.
func (m *Memory) indexRolePermissions(roleID uuid.UUID, before, after []uuid.UUID) {
	for _, permID := range before {
		if grants, ok := m.permGrants[permID]; ok {
			delete(grants, roleID)
			if len(grants) == 0 {
				delete(m.permGrants, permID)
			}
		}
	}
	for _, permID := range after {
		grants, ok := m.permGrants[permID]
		if !ok {
			grants = make(map[uuid.UUID]struct{})
			m.permGrants[permID] = grants
		}
		grants[roleID] = struct{}{}
	}
}
