package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daison12006013/docms/internal/platform/db"
)

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a store backed by the provided pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const roleColumns = `id, name, description, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	role.CreatedAt = createdAt.Time
	role.UpdatedAt = updatedAt.Time
	return role, nil
}

// ListRoles returns all roles ordered by name.
func (s *PGStore) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (s *PGStore) GetRole(ctx context.Context, id int64) (Role, error) {
	return scanRole(s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

// GetRoleByName fetches a role by its unique name.
func (s *PGStore) GetRoleByName(ctx context.Context, name string) (Role, error) {
	return scanRole(s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
}

// CreateRole inserts a new role.
func (s *PGStore) CreateRole(ctx context.Context, name, description string) (Role, error) {
	return scanRole(s.pool.QueryRow(ctx,
		`INSERT INTO roles (name, description, created_at, updated_at)
		 VALUES ($1, $2, NOW(), NOW())
		 RETURNING `+roleColumns, name, description))
}

// UpdateRole updates an existing role.
func (s *PGStore) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	return scanRole(s.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+roleColumns, id, name, description))
}

// DeleteRole removes a role and its permission links. The role_permissions
// rows carry no audit history, so a hard delete is fine; user grant history
// lives in user_roles and stays intact.
func (s *PGStore) DeleteRole(ctx context.Context, id int64) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

const permColumns = `id, name, resource, action, description`

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	if err := row.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.Description); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrNotFound
		}
		return Permission{}, err
	}
	return p, nil
}

// ListPermissions returns the whole catalog ordered by name.
func (s *PGStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+permColumns+` FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// GetPermission fetches a permission by ID.
func (s *PGStore) GetPermission(ctx context.Context, id int64) (Permission, error) {
	return scanPermission(s.pool.QueryRow(ctx, `SELECT `+permColumns+` FROM permissions WHERE id = $1`, id))
}

// GetPermissionByName fetches a permission by its canonical name.
func (s *PGStore) GetPermissionByName(ctx context.Context, name string) (Permission, error) {
	return scanPermission(s.pool.QueryRow(ctx, `SELECT `+permColumns+` FROM permissions WHERE name = $1`, name))
}

// CreatePermission inserts a catalog entry.
func (s *PGStore) CreatePermission(ctx context.Context, p Permission) (Permission, error) {
	return scanPermission(s.pool.QueryRow(ctx,
		`INSERT INTO permissions (name, resource, action, description)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+permColumns, p.Name, p.Resource, p.Action, p.Description))
}

// ListRolePermissions returns the permissions linked to a role.
func (s *PGStore) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.name, p.resource, p.action, p.description
		 FROM role_permissions rp
		 JOIN permissions p ON p.id = rp.permission_id
		 WHERE rp.role_id = $1
		 ORDER BY p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// AttachPermission links a permission to a role. Linking an already-linked
// pair is a no-op.
func (s *PGStore) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_id, created_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (role_id, permission_id) DO NOTHING`, roleID, permissionID)
	return err
}

// DetachPermission unlinks a permission from a role.
func (s *PGStore) DetachPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	return err
}

// ListUserRoles returns every user_roles row for the user, revoked included.
func (s *PGStore) ListUserRoles(ctx context.Context, userID int64) ([]UserRole, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, role_id, assigned_by, assigned_at, deleted_at
		 FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []UserRole
	for rows.Next() {
		var ur UserRole
		var assignedBy pgtype.Int8
		var assignedAt, deletedAt pgtype.Timestamptz
		if err := rows.Scan(&ur.UserID, &ur.RoleID, &assignedBy, &assignedAt, &deletedAt); err != nil {
			return nil, err
		}
		ur.State = grantState(assignedBy, assignedAt, deletedAt)
		grants = append(grants, ur)
	}
	return grants, rows.Err()
}

// UpsertUserRole activates the (user, role) grant, reactivating a revoked
// row and refreshing its metadata when one exists.
func (s *PGStore) UpsertUserRole(ctx context.Context, userID, roleID int64, assignedBy *int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id, assigned_by, assigned_at, deleted_at)
		 VALUES ($1, $2, $3, NOW(), NULL)
		 ON CONFLICT (user_id, role_id)
		 DO UPDATE SET assigned_by = EXCLUDED.assigned_by, assigned_at = NOW(), deleted_at = NULL`,
		userID, roleID, assignedBy)
	return err
}

// RevokeUserRole soft-deletes the active grant, keeping the row for audit.
func (s *PGStore) RevokeUserRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE user_roles SET deleted_at = NOW()
		 WHERE user_id = $1 AND role_id = $2 AND deleted_at IS NULL`, userID, roleID)
	return err
}

// RevokeAllUserRoles soft-deletes every active role grant for the user.
func (s *PGStore) RevokeAllUserRoles(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE user_roles SET deleted_at = NOW()
		 WHERE user_id = $1 AND deleted_at IS NULL`, userID)
	return err
}

// ListUserPermissions returns every user_permissions row, revoked included.
func (s *PGStore) ListUserPermissions(ctx context.Context, userID int64) ([]UserPermission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, permission_id, assigned_by, assigned_at, deleted_at
		 FROM user_permissions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []UserPermission
	for rows.Next() {
		var up UserPermission
		var assignedBy pgtype.Int8
		var assignedAt, deletedAt pgtype.Timestamptz
		if err := rows.Scan(&up.UserID, &up.PermissionID, &assignedBy, &assignedAt, &deletedAt); err != nil {
			return nil, err
		}
		up.State = grantState(assignedBy, assignedAt, deletedAt)
		grants = append(grants, up)
	}
	return grants, rows.Err()
}

// UpsertUserPermission activates the (user, permission) direct grant.
func (s *PGStore) UpsertUserPermission(ctx context.Context, userID, permissionID int64, assignedBy *int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_permissions (user_id, permission_id, assigned_by, assigned_at, deleted_at)
		 VALUES ($1, $2, $3, NOW(), NULL)
		 ON CONFLICT (user_id, permission_id)
		 DO UPDATE SET assigned_by = EXCLUDED.assigned_by, assigned_at = NOW(), deleted_at = NULL`,
		userID, permissionID, assignedBy)
	return err
}

// RevokeUserPermission soft-deletes the active direct grant.
func (s *PGStore) RevokeUserPermission(ctx context.Context, userID, permissionID int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE user_permissions SET deleted_at = NOW()
		 WHERE user_id = $1 AND permission_id = $2 AND deleted_at IS NULL`, userID, permissionID)
	return err
}

// RevokeAllUserPermissions soft-deletes every active direct grant.
func (s *PGStore) RevokeAllUserPermissions(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE user_permissions SET deleted_at = NOW()
		 WHERE user_id = $1 AND deleted_at IS NULL`, userID)
	return err
}

// RolePermissionsForUser returns the permissions reachable through the
// user's active role grants.
func (s *PGStore) RolePermissionsForUser(ctx context.Context, userID int64) ([]Permission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT p.id, p.name, p.resource, p.action, p.description
		 FROM user_roles ur
		 JOIN role_permissions rp ON rp.role_id = ur.role_id
		 JOIN permissions p ON p.id = rp.permission_id
		 WHERE ur.user_id = $1 AND ur.deleted_at IS NULL`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// DirectPermissionsForUser returns the user's active direct grants.
func (s *PGStore) DirectPermissionsForUser(ctx context.Context, userID int64) ([]Permission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.name, p.resource, p.action, p.description
		 FROM user_permissions up
		 JOIN permissions p ON p.id = up.permission_id
		 WHERE up.user_id = $1 AND up.deleted_at IS NULL`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func collectPermissions(rows pgx.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func grantState(assignedBy pgtype.Int8, assignedAt, deletedAt pgtype.Timestamptz) GrantState {
	state := GrantState{Status: GrantActive, AssignedAt: assignedAt.Time}
	if assignedBy.Valid {
		v := assignedBy.Int64
		state.AssignedBy = &v
	}
	if deletedAt.Valid {
		state.Status = GrantRevoked
		state.RevokedAt = deletedAt.Time
	}
	return state
}

var _ Store = (*PGStore)(nil)
