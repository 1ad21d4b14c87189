package rbac

import "errors"

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("rbac: not found")
	// ErrUnauthenticated indicates no caller identity could be resolved.
	ErrUnauthenticated = errors.New("rbac: unauthenticated")
	// ErrForbidden indicates an identity was resolved but the permission
	// check failed. Kept distinct from ErrUnauthenticated so callers map
	// them to 403 and 401 respectively.
	ErrForbidden = errors.New("rbac: forbidden")
	// ErrInvalidPermissionName rejects names not matching resource:action.
	ErrInvalidPermissionName = errors.New("rbac: invalid permission name")
	// ErrRoleNameRequired rejects empty role names at the CRUD boundary.
	ErrRoleNameRequired = errors.New("rbac: role name required")
)
