package rbac

import (
	"context"
	"errors"
	"strings"
)

// Service orchestrates role and permission administration. Resolution is
// the Resolver's job; the Service owns the mutations the Resolver reads.
type Service struct {
	store Store
}

// NewService constructs a Service over the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.store.GetRole(ctx, id)
}

// CreateRole inserts a new role. The name is required.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, ErrRoleNameRequired
	}
	return s.store.CreateRole(ctx, name, strings.TrimSpace(description))
}

// UpdateRole updates an existing role. The name is required.
func (s *Service) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, ErrRoleNameRequired
	}
	return s.store.UpdateRole(ctx, id, name, strings.TrimSpace(description))
}

// DeleteRole removes a role and its permission links. Users whose access
// derived solely from the role lose it on the next resolution; their
// user_roles history is untouched.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	return s.store.DeleteRole(ctx, id)
}

// ListPermissions returns the permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// ListRolePermissions returns the permissions linked to a role.
func (s *Service) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	return s.store.ListRolePermissions(ctx, roleID)
}

// EnsurePermission returns the catalog entry named name, creating it when
// absent. This is the create-if-absent half of auto-vivification; linking
// is a separate step so the two are testable independently. Malformed
// names are rejected before anything touches the store.
func (s *Service) EnsurePermission(ctx context.Context, name, description string) (Permission, error) {
	name = strings.TrimSpace(name)
	resource, action, err := ParseName(name)
	if err != nil {
		return Permission{}, err
	}
	existing, err := s.store.GetPermissionByName(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Permission{}, err
	}
	return s.store.CreatePermission(ctx, Permission{
		Name:        name,
		Resource:    resource,
		Action:      action,
		Description: strings.TrimSpace(description),
	})
}

// SetRolePermissions replaces the role's permission set with the named
// permissions, vivifying missing catalog entries. Links already present
// are kept, missing ones attached, extra ones detached.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, names []string) error {
	if _, err := s.store.GetRole(ctx, roleID); err != nil {
		return err
	}

	keep := make(map[int64]struct{}, len(names))
	for _, name := range names {
		perm, err := s.EnsurePermission(ctx, name, "")
		if err != nil {
			return err
		}
		keep[perm.ID] = struct{}{}
	}

	current, err := s.store.ListRolePermissions(ctx, roleID)
	if err != nil {
		return err
	}
	existing := make(map[int64]struct{}, len(current))
	for _, p := range current {
		existing[p.ID] = struct{}{}
	}

	for id := range keep {
		if _, ok := existing[id]; !ok {
			if err := s.store.AttachPermission(ctx, roleID, id); err != nil {
				return err
			}
		}
	}
	for id := range existing {
		if _, ok := keep[id]; !ok {
			if err := s.store.DetachPermission(ctx, roleID, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// AssignRole grants the role to the user. Re-assigning a revoked grant
// reactivates the same row.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64, assignedBy *int64) error {
	if _, err := s.store.GetRole(ctx, roleID); err != nil {
		return err
	}
	return s.store.UpsertUserRole(ctx, userID, roleID, assignedBy)
}

// RemoveRole revokes the role grant via soft delete.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64) error {
	return s.store.RevokeUserRole(ctx, userID, roleID)
}

// ClearUserRoles revokes every active role grant for the user.
func (s *Service) ClearUserRoles(ctx context.Context, userID int64) error {
	return s.store.RevokeAllUserRoles(ctx, userID)
}

// ReplaceUserRoles atomically swaps the user's role set from an admin form:
// clear everything, then assign the new set.
func (s *Service) ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64, assignedBy *int64) error {
	if err := s.store.RevokeAllUserRoles(ctx, userID); err != nil {
		return err
	}
	for _, roleID := range roleIDs {
		if err := s.AssignRole(ctx, userID, roleID, assignedBy); err != nil {
			return err
		}
	}
	return nil
}

// GrantPermission assigns a permission directly to the user by name,
// vivifying the catalog entry when needed.
func (s *Service) GrantPermission(ctx context.Context, userID int64, name string, assignedBy *int64) error {
	perm, err := s.EnsurePermission(ctx, name, "")
	if err != nil {
		return err
	}
	return s.store.UpsertUserPermission(ctx, userID, perm.ID, assignedBy)
}

// RevokePermission revokes a direct permission grant via soft delete.
func (s *Service) RevokePermission(ctx context.Context, userID int64, name string) error {
	perm, err := s.store.GetPermissionByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return err
	}
	return s.store.RevokeUserPermission(ctx, userID, perm.ID)
}

// ClearUserPermissions revokes every active direct grant for the user.
func (s *Service) ClearUserPermissions(ctx context.Context, userID int64) error {
	return s.store.RevokeAllUserPermissions(ctx, userID)
}

// ReplaceUserPermissions swaps the user's direct grant set.
func (s *Service) ReplaceUserPermissions(ctx context.Context, userID int64, names []string, assignedBy *int64) error {
	if err := s.store.RevokeAllUserPermissions(ctx, userID); err != nil {
		return err
	}
	for _, name := range names {
		if err := s.GrantPermission(ctx, userID, name, assignedBy); err != nil {
			return err
		}
	}
	return nil
}

// ListUserRoles returns all role grants for the user, revoked included.
func (s *Service) ListUserRoles(ctx context.Context, userID int64) ([]UserRole, error) {
	return s.store.ListUserRoles(ctx, userID)
}

// ListUserPermissions returns all direct grants for the user, revoked
// included.
func (s *Service) ListUserPermissions(ctx context.Context, userID int64) ([]UserPermission, error) {
	return s.store.ListUserPermissions(ctx, userID)
}
