package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aquasense/identity/pkg/identity"
	"github.com/aquasense/identity/pkg/store"
)

// Store implements store.Store on PostgreSQL. Compare-and-swap updates lock
// the entity row FOR UPDATE inside a transaction, so the version comparison
// and the write are atomic; edges are reconciled in the same transaction.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a PostgreSQL-backed store on the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("pg: pool cannot be nil")
	}
	return &Store{pool: pool}
}

func (s *Store) Users() store.Users             { return pgUsers{s.pool} }
func (s *Store) Roles() store.Roles             { return pgRoles{s.pool} }
func (s *Store) Permissions() store.Permissions { return pgPermissions{s.pool} }

const userColumns = `id, tenant_id, email, credential_ref, given_name, family_name,
	enabled, account_not_expired, account_not_locked, credentials_not_expired,
	created_at, updated_at, last_login_at, version`

type pgUsers struct{ pool *pgxpool.Pool }

func (s pgUsers) Create(ctx context.Context, user identity.User) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		user.ID, user.TenantID, user.Email, user.CredentialRef,
		user.Profile.GivenName, user.Profile.FamilyName,
		user.Enabled, user.AccountNotExpired, user.AccountNotLocked, user.CredentialsNotExpired,
		user.CreatedAt, user.UpdatedAt, user.LastLoginAt, user.Version)
	if err != nil {
		if IsDuplicateKeyError(err) {
			return store.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}

	if err := replaceUserRoles(ctx, tx, user.ID, user.Roles); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s pgUsers) Get(ctx context.Context, id uuid.UUID) (identity.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		return identity.User{}, err
	}

	user.Roles, err = userRoleIDs(ctx, s.pool, id)
	if err != nil {
		return identity.User{}, err
	}
	return user, nil
}

func (s pgUsers) GetByEmail(ctx context.Context, email string) (identity.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if err != nil {
		return identity.User{}, err
	}

	user.Roles, err = userRoleIDs(ctx, s.pool, user.ID)
	if err != nil {
		return identity.User{}, err
	}
	return user, nil
}

func (s pgUsers) Update(ctx context.Context, id uuid.UUID, expectedVersion int64, mutate func(*identity.User) error) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
	stored, err := scanUser(row)
	if err != nil {
		return 0, err
	}
	if stored.Version != expectedVersion {
		return 0, store.ErrVersionConflict
	}

	stored.Roles, err = userRoleIDs(ctx, tx, id)
	if err != nil {
		return 0, err
	}

	next := stored.Clone()
	if err := mutate(&next); err != nil {
		return 0, err
	}
	if next.ID != stored.ID || next.TenantID != stored.TenantID || !next.CreatedAt.Equal(stored.CreatedAt) {
		return 0, store.ErrImmutableField
	}

	tag, err := tx.Exec(ctx, `
		UPDATE users SET
			email = $2, credential_ref = $3, given_name = $4, family_name = $5,
			enabled = $6, account_not_expired = $7, account_not_locked = $8,
			credentials_not_expired = $9, last_login_at = $10,
			updated_at = now(), version = version + 1
		WHERE id = $1 AND version = $11`,
		id, next.Email, next.CredentialRef, next.Profile.GivenName, next.Profile.FamilyName,
		next.Enabled, next.AccountNotExpired, next.AccountNotLocked, next.CredentialsNotExpired,
		next.LastLoginAt, expectedVersion)
	if err != nil {
		if IsDuplicateKeyError(err) {
			return 0, store.ErrDuplicateEmail
		}
		return 0, fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Row was locked at the expected version above, so this is unreachable
		// short of a concurrent schema change.
		return 0, store.ErrVersionConflict
	}

	if err := replaceUserRoles(ctx, tx, id, next.Roles); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return expectedVersion + 1, nil
}

func (s pgUsers) HoldersOfRole(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM user_roles WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, fmt.Errorf("query role holders: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

type pgRoles struct{ pool *pgxpool.Pool }

func (s pgRoles) Create(ctx context.Context, role identity.Role) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO roles (id, name, description, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		role.ID, role.Name, role.Description, role.CreatedAt, role.UpdatedAt, role.Version)
	if err != nil {
		if IsDuplicateKeyError(err) {
			return store.ErrDuplicateName
		}
		return fmt.Errorf("insert role: %w", err)
	}

	if err := replaceRolePermissions(ctx, tx, role.ID, role.Permissions); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s pgRoles) Get(ctx context.Context, id uuid.UUID) (identity.Role, error) {
	return getRole(ctx, s.pool, `SELECT id, name, description, created_at, updated_at, version FROM roles WHERE id = $1`, id)
}

func (s pgRoles) GetByName(ctx context.Context, name string) (identity.Role, error) {
	return getRole(ctx, s.pool, `SELECT id, name, description, created_at, updated_at, version FROM roles WHERE name = $1`, name)
}

func (s pgRoles) Update(ctx context.Context, id uuid.UUID, expectedVersion int64, mutate func(*identity.Role) error) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at, version FROM roles WHERE id = $1 FOR UPDATE`, id)
	stored, err := scanRole(row)
	if err != nil {
		return 0, err
	}
	if stored.Version != expectedVersion {
		return 0, store.ErrVersionConflict
	}

	stored.Permissions, err = rolePermissionIDs(ctx, tx, id)
	if err != nil {
		return 0, err
	}

	next := stored.Clone()
	if err := mutate(&next); err != nil {
		return 0, err
	}
	if next.ID != stored.ID || !next.CreatedAt.Equal(stored.CreatedAt) {
		return 0, store.ErrImmutableField
	}

	_, err = tx.Exec(ctx, `
		UPDATE roles SET name = $2, description = $3, updated_at = now(), version = version + 1
		WHERE id = $1 AND version = $4`,
		id, next.Name, next.Description, expectedVersion)
	if err != nil {
		if IsDuplicateKeyError(err) {
			return 0, store.ErrDuplicateName
		}
		return 0, fmt.Errorf("update role: %w", err)
	}

	if err := replaceRolePermissions(ctx, tx, id, next.Permissions); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return expectedVersion + 1, nil
}

func (s pgRoles) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var held bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM user_roles WHERE role_id = $1)`, id).Scan(&held); err != nil {
		return fmt.Errorf("check role holders: %w", err)
	}
	if held {
		return store.ErrRoleInUse
	}

	tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	return tx.Commit(ctx)
}

type pgPermissions struct{ pool *pgxpool.Pool }

func (s pgPermissions) Create(ctx context.Context, perm identity.Permission) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO permissions (id, name, description, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		perm.ID, perm.Name, perm.Description, perm.CreatedAt, perm.UpdatedAt, perm.Version)
	if err != nil {
		if IsDuplicateKeyError(err) {
			return store.ErrDuplicateName
		}
		return fmt.Errorf("insert permission: %w", err)
	}
	return nil
}

func (s pgPermissions) Get(ctx context.Context, id uuid.UUID) (identity.Permission, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at, version FROM permissions WHERE id = $1`, id)
	return scanPermission(row)
}

func (s pgPermissions) GetByName(ctx context.Context, name string) (identity.Permission, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at, version FROM permissions WHERE name = $1`, name)
	return scanPermission(row)
}

func (s pgPermissions) GetMany(ctx context.Context, ids []uuid.UUID) ([]identity.Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, created_at, updated_at, version
		FROM permissions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query permissions: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]identity.Permission, len(ids))
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		byID[perm.ID] = perm
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan permissions: %w", err)
	}

	// Preserve input order, skipping unresolved ids.
	out := make([]identity.Permission, 0, len(byID))
	for _, id := range ids {
		if perm, ok := byID[id]; ok {
			out = append(out, perm)
		}
	}
	return out, nil
}

func (s pgPermissions) Update(ctx context.Context, id uuid.UUID, expectedVersion int64, mutate func(*identity.Permission) error) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at, version FROM permissions WHERE id = $1 FOR UPDATE`, id)
	stored, err := scanPermission(row)
	if err != nil {
		return 0, err
	}
	if stored.Version != expectedVersion {
		return 0, store.ErrVersionConflict
	}

	next := stored
	if err := mutate(&next); err != nil {
		return 0, err
	}
	if next.ID != stored.ID || !next.CreatedAt.Equal(stored.CreatedAt) {
		return 0, store.ErrImmutableField
	}

	_, err = tx.Exec(ctx, `
		UPDATE permissions SET name = $2, description = $3, updated_at = now(), version = version + 1
		WHERE id = $1 AND version = $4`,
		id, next.Name, next.Description, expectedVersion)
	if err != nil {
		if IsDuplicateKeyError(err) {
			return 0, store.ErrDuplicateName
		}
		return 0, fmt.Errorf("update permission: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return expectedVersion + 1, nil
}

func (s pgPermissions) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var granted bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM role_permissions WHERE permission_id = $1)`, id).Scan(&granted); err != nil {
		return fmt.Errorf("check permission grants: %w", err)
	}
	if granted {
		return store.ErrPermissionInUse
	}

	tag, err := tx.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete permission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	return tx.Commit(ctx)
}

func (s pgPermissions) GrantedBy(ctx context.Context, permissionID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT role_id FROM role_permissions WHERE permission_id = $1`, permissionID)
	if err != nil {
		return nil, fmt.Errorf("query granting roles: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

// rowQuerier is the read surface shared by *pgxpool.Pool and pgx.Tx.
type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanUser(row pgx.Row) (identity.User, error) {
	var u identity.User
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.CredentialRef,
		&u.Profile.GivenName, &u.Profile.FamilyName,
		&u.Enabled, &u.AccountNotExpired, &u.AccountNotLocked, &u.CredentialsNotExpired,
		&u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt, &u.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.User{}, store.ErrNotFound
		}
		return identity.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func scanRole(row pgx.Row) (identity.Role, error) {
	var r identity.Role
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt, &r.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.Role{}, store.ErrNotFound
		}
		return identity.Role{}, fmt.Errorf("scan role: %w", err)
	}
	return r, nil
}

func scanPermission(row pgx.Row) (identity.Permission, error) {
	var p identity.Permission
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt, &p.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.Permission{}, store.ErrNotFound
		}
		return identity.Permission{}, fmt.Errorf("scan permission: %w", err)
	}
	return p, nil
}

func getRole(ctx context.Context, pool *pgxpool.Pool, query string, arg any) (identity.Role, error) {
	role, err := scanRole(pool.QueryRow(ctx, query, arg))
	if err != nil {
		return identity.Role{}, err
	}

	role.Permissions, err = rolePermissionIDs(ctx, pool, role.ID)
	if err != nil {
		return identity.Role{}, err
	}
	return role, nil
}

func userRoleIDs(ctx context.Context, q rowQuerier, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, `SELECT role_id FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user roles: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

func rolePermissionIDs(ctx context.Context, q rowQuerier, roleID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, `SELECT permission_id FROM role_permissions WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, fmt.Errorf("query role permissions: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

// replaceUserRoles reconciles the user_roles edges to the given set.
func replaceUserRoles(ctx context.Context, tx pgx.Tx, userID uuid.UUID, roleIDs []uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear user roles: %w", err)
	}
	for _, roleID := range roleIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, userID, roleID); err != nil {
			if IsForeignKeyViolationError(err) {
				return store.ErrNotFound
			}
			return fmt.Errorf("insert user role: %w", err)
		}
	}
	return nil
}

// replaceRolePermissions reconciles the role_permissions edges to the given set.
func replaceRolePermissions(ctx context.Context, tx pgx.Tx, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("clear role permissions: %w", err)
	}
	for _, permID := range permissionIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`, roleID, permID); err != nil {
			if IsForeignKeyViolationError(err) {
				return store.ErrNotFound
			}
			return fmt.Errorf("insert role permission: %w", err)
		}
	}
	return nil
}

func collectIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
