package rbac

import "context"

// Store persists the RBAC relations. Implementations must surface storage
// failures as errors; translating a failure into an empty result would let
// an outage masquerade as a security decision.
type Store interface {
	// Roles.
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	CreateRole(ctx context.Context, name, description string) (Role, error)
	UpdateRole(ctx context.Context, id int64, name, description string) (Role, error)
	// DeleteRole hard-deletes the role and its role_permissions rows.
	DeleteRole(ctx context.Context, id int64) error

	// Permission catalog.
	ListPermissions(ctx context.Context) ([]Permission, error)
	GetPermission(ctx context.Context, id int64) (Permission, error)
	GetPermissionByName(ctx context.Context, name string) (Permission, error)
	CreatePermission(ctx context.Context, p Permission) (Permission, error)

	// Role to permission links. Attach is idempotent.
	ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error)
	AttachPermission(ctx context.Context, roleID, permissionID int64) error
	DetachPermission(ctx context.Context, roleID, permissionID int64) error

	// User role grants. Upsert reactivates a revoked row for the same
	// (user, role) pair instead of inserting a duplicate; Revoke soft
	// deletes and keeps the row.
	ListUserRoles(ctx context.Context, userID int64) ([]UserRole, error)
	UpsertUserRole(ctx context.Context, userID, roleID int64, assignedBy *int64) error
	RevokeUserRole(ctx context.Context, userID, roleID int64) error
	RevokeAllUserRoles(ctx context.Context, userID int64) error

	// Direct user permission grants, same lifecycle as user roles.
	ListUserPermissions(ctx context.Context, userID int64) ([]UserPermission, error)
	UpsertUserPermission(ctx context.Context, userID, permissionID int64, assignedBy *int64) error
	RevokeUserPermission(ctx context.Context, userID, permissionID int64) error
	RevokeAllUserPermissions(ctx context.Context, userID int64) error

	// Resolution reads, filtered to active grants.
	RolePermissionsForUser(ctx context.Context, userID int64) ([]Permission, error)
	DirectPermissionsForUser(ctx context.Context, userID int64) ([]Permission, error)
}
