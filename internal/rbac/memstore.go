package rbac

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store used by tests and local seeding. It keeps
// the same grant lifecycle as PGStore: revoked rows persist and an upsert
// reactivates them.
type MemStore struct {
	mu sync.Mutex

	nextRoleID int64
	nextPermID int64

	roles       map[int64]Role
	permissions map[int64]Permission
	rolePerms   map[int64]map[int64]struct{}
	userRoles   map[int64]map[int64]GrantState
	userPerms   map[int64]map[int64]GrantState
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		roles:       make(map[int64]Role),
		permissions: make(map[int64]Permission),
		rolePerms:   make(map[int64]map[int64]struct{}),
		userRoles:   make(map[int64]map[int64]GrantState),
		userPerms:   make(map[int64]map[int64]GrantState),
	}
}

func (s *MemStore) ListRoles(ctx context.Context) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles := make([]Role, 0, len(s.roles))
	for _, r := range s.roles {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (s *MemStore) GetRole(ctx context.Context, id int64) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (s *MemStore) GetRoleByName(ctx context.Context, name string) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles {
		if r.Name == name {
			return r, nil
		}
	}
	return Role{}, ErrNotFound
}

func (s *MemStore) CreateRole(ctx context.Context, name, description string) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRoleID++
	now := time.Now()
	role := Role{ID: s.nextRoleID, Name: name, Description: description, CreatedAt: now, UpdatedAt: now}
	s.roles[role.ID] = role
	return role, nil
}

func (s *MemStore) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	role.Name = name
	role.Description = description
	role.UpdatedAt = time.Now()
	s.roles[id] = role
	return role, nil
}

func (s *MemStore) DeleteRole(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return ErrNotFound
	}
	delete(s.roles, id)
	delete(s.rolePerms, id)
	return nil
}

func (s *MemStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	perms := make([]Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Name < perms[j].Name })
	return perms, nil
}

func (s *MemStore) GetPermission(ctx context.Context, id int64) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.permissions[id]
	if !ok {
		return Permission{}, ErrNotFound
	}
	return p, nil
}

func (s *MemStore) GetPermissionByName(ctx context.Context, name string) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.permissions {
		if p.Name == name {
			return p, nil
		}
	}
	return Permission{}, ErrNotFound
}

func (s *MemStore) CreatePermission(ctx context.Context, p Permission) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPermID++
	p.ID = s.nextPermID
	s.permissions[p.ID] = p
	return p, nil
}

func (s *MemStore) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var perms []Permission
	for id := range s.rolePerms[roleID] {
		perms = append(perms, s.permissions[id])
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Name < perms[j].Name })
	return perms, nil
}

func (s *MemStore) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rolePerms[roleID] == nil {
		s.rolePerms[roleID] = make(map[int64]struct{})
	}
	s.rolePerms[roleID][permissionID] = struct{}{}
	return nil
}

func (s *MemStore) DetachPermission(ctx context.Context, roleID, permissionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rolePerms[roleID], permissionID)
	return nil
}

func (s *MemStore) ListUserRoles(ctx context.Context, userID int64) ([]UserRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var grants []UserRole
	for roleID, state := range s.userRoles[userID] {
		grants = append(grants, UserRole{UserID: userID, RoleID: roleID, State: state})
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].RoleID < grants[j].RoleID })
	return grants, nil
}

func (s *MemStore) UpsertUserRole(ctx context.Context, userID, roleID int64, assignedBy *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userRoles[userID] == nil {
		s.userRoles[userID] = make(map[int64]GrantState)
	}
	s.userRoles[userID][roleID] = GrantState{Status: GrantActive, AssignedAt: time.Now(), AssignedBy: assignedBy}
	return nil
}

func (s *MemStore) RevokeUserRole(ctx context.Context, userID, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.userRoles[userID][roleID]
	if !ok || !state.InEffect() {
		return nil
	}
	state.Status = GrantRevoked
	state.RevokedAt = time.Now()
	s.userRoles[userID][roleID] = state
	return nil
}

func (s *MemStore) RevokeAllUserRoles(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for roleID, state := range s.userRoles[userID] {
		if state.InEffect() {
			state.Status = GrantRevoked
			state.RevokedAt = time.Now()
			s.userRoles[userID][roleID] = state
		}
	}
	return nil
}

func (s *MemStore) ListUserPermissions(ctx context.Context, userID int64) ([]UserPermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var grants []UserPermission
	for permID, state := range s.userPerms[userID] {
		grants = append(grants, UserPermission{UserID: userID, PermissionID: permID, State: state})
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].PermissionID < grants[j].PermissionID })
	return grants, nil
}

func (s *MemStore) UpsertUserPermission(ctx context.Context, userID, permissionID int64, assignedBy *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userPerms[userID] == nil {
		s.userPerms[userID] = make(map[int64]GrantState)
	}
	s.userPerms[userID][permissionID] = GrantState{Status: GrantActive, AssignedAt: time.Now(), AssignedBy: assignedBy}
	return nil
}

func (s *MemStore) RevokeUserPermission(ctx context.Context, userID, permissionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.userPerms[userID][permissionID]
	if !ok || !state.InEffect() {
		return nil
	}
	state.Status = GrantRevoked
	state.RevokedAt = time.Now()
	s.userPerms[userID][permissionID] = state
	return nil
}

func (s *MemStore) RevokeAllUserPermissions(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for permID, state := range s.userPerms[userID] {
		if state.InEffect() {
			state.Status = GrantRevoked
			state.RevokedAt = time.Now()
			s.userPerms[userID][permID] = state
		}
	}
	return nil
}

func (s *MemStore) RolePermissionsForUser(ctx context.Context, userID int64) ([]Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[int64]struct{})
	var perms []Permission
	for roleID, state := range s.userRoles[userID] {
		if !state.InEffect() {
			continue
		}
		for permID := range s.rolePerms[roleID] {
			if _, ok := seen[permID]; ok {
				continue
			}
			seen[permID] = struct{}{}
			perms = append(perms, s.permissions[permID])
		}
	}
	return perms, nil
}

func (s *MemStore) DirectPermissionsForUser(ctx context.Context, userID int64) ([]Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var perms []Permission
	for permID, state := range s.userPerms[userID] {
		if state.InEffect() {
			perms = append(perms, s.permissions[permID])
		}
	}
	return perms, nil
}

var _ Store = (*MemStore)(nil)
