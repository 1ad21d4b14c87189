// Package rbac implements role-based access control: the permission
// catalog, role and direct grants, and the resolution algorithm deciding
// whether a user may perform an action on a resource.
package rbac

import "time"

// Permission is a catalog entry naming a single capability. Name always
// equals Resource + ":" + Action; wildcard segments are stored as the
// literal "*" and are ordinary rows, not a separate type.
type Permission struct {
	ID          int64
	Name        string
	Resource    string
	Action      string
	Description string
}

// Matches reports whether this permission grants the resource/action pair.
// A "*" segment matches any value in that position; there is no partial
// matching, "file*" is a literal. This is the single matching algorithm
// used by every resolution path.
func (p Permission) Matches(resource, action string) bool {
	if p.Resource != resource && p.Resource != Wildcard {
		return false
	}
	if p.Action != action && p.Action != Wildcard {
		return false
	}
	return true
}

// Role groups permissions under a name.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GrantStatus tags whether a grant row is currently in effect.
type GrantStatus string

const (
	GrantActive  GrantStatus = "active"
	GrantRevoked GrantStatus = "revoked"
)

// GrantState carries the lifecycle of a user grant. Revoked grants keep
// their row for audit; re-granting reactivates the same row.
type GrantState struct {
	Status     GrantStatus
	AssignedAt time.Time
	AssignedBy *int64
	RevokedAt  time.Time
}

// InEffect reports whether the grant currently contributes permissions.
func (s GrantState) InEffect() bool {
	return s.Status == GrantActive
}

// UserRole assigns a role to a user.
type UserRole struct {
	UserID int64
	RoleID int64
	State  GrantState
}

// UserPermission assigns a permission directly to a user, bypassing roles.
type UserPermission struct {
	UserID       int64
	PermissionID int64
	State        GrantState
}

// Actor is the authenticated caller as seen by the authorization gate.
type Actor struct {
	ID              int64
	Email           string
	Name            string
	IsSystemAccount bool
}
