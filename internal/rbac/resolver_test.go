package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func seedRole(t *testing.T, svc *Service, name string, perms ...string) Role {
	t.Helper()
	role, err := svc.CreateRole(context.Background(), name, "")
	require.NoError(t, err)
	require.NoError(t, svc.SetRolePermissions(context.Background(), role.ID, perms))
	return role
}

func TestResourceWildcardMatchesAnyAction(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	svc := NewService(store)
	resolver := NewResolver(store)

	role := seedRole(t, svc, "file-admin", "files:*")
	require.NoError(t, svc.AssignRole(ctx, 1, role.ID, nil))

	for _, action := range []string{"read", "write", "delete", "download", "anything"} {
		ok, err := resolver.HasPermission(ctx, 1, "files", action)
		require.NoError(t, err)
		require.True(t, ok, "files:* should cover files/%s", action)
	}
	for _, resource := range []string{"users", "roles", "other"} {
		ok, err := resolver.HasPermission(ctx, 1, resource, "read")
		require.NoError(t, err)
		require.False(t, ok, "files:* must not cover %s", resource)
	}
}

func TestFullWildcardMatchesEverything(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	svc := NewService(store)
	resolver := NewResolver(store)

	require.NoError(t, svc.GrantPermission(ctx, 7, "*:*", nil))

	pairs := [][2]string{
		{"users", "delete"}, {"files", "download"}, {"dashboard", "read"}, {"x", "y"},
	}
	for _, pair := range pairs {
		ok, err := resolver.HasPermission(ctx, 7, pair[0], pair[1])
		require.NoError(t, err)
		require.True(t, ok, "*:* should cover %s:%s", pair[0], pair[1])
	}
}

func TestActionWildcard(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	svc := NewService(store)
	resolver := NewResolver(store)

	require.NoError(t, svc.GrantPermission(ctx, 3, "*:read", nil))

	ok, err := resolver.HasPermission(ctx, 3, "users", "read")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = resolver.HasPermission(ctx, 3, "users", "delete")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEffectivePermissionsUnion(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	svc := NewService(store)
	resolver := NewResolver(store)

	role := seedRole(t, svc, "writer", "a:b")
	require.NoError(t, svc.AssignRole(ctx, 5, role.ID, nil))
	require.NoError(t, svc.GrantPermission(ctx, 5, "c:d", nil))

	perms, err := resolver.EffectivePermissions(ctx, 5)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a:b", "c:d"}, permissionNames(perms))

	require.NoError(t, svc.RemoveRole(ctx, 5, role.ID))
	perms, err = resolver.EffectivePermissions(ctx, 5)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"c:d"}, permissionNames(perms))
}

func TestEffectivePermissionsDeduplicates(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	svc := NewService(store)
	resolver := NewResolver(store)

	// Same permission via a role and as a direct grant.
	role := seedRole(t, svc, "reader", "files:read")
	require.NoError(t, svc.AssignRole(ctx, 2, role.ID, nil))
	require.NoError(t, svc.GrantPermission(ctx, 2, "files:read", nil))

	perms, err := resolver.EffectivePermissions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	require.Equal(t, "files:read", perms[0].Name)
}

func TestUnknownUserHasEmptySet(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	resolver := NewResolver(store)

	perms, err := resolver.EffectivePermissions(ctx, 999)
	require.NoError(t, err)
	require.Empty(t, perms)

	ok, err := resolver.HasPermission(ctx, 999, "files", "read")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHasPermissionByNameFailsClosed(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	svc := NewService(store)
	resolver := NewResolver(store)

	require.NoError(t, svc.GrantPermission(ctx, 1, "*:*", nil))

	for _, name := range []string{"not-a-valid-name", "", ":", "a:b:c", "files:"} {
		ok, err := resolver.HasPermissionByName(ctx, 1, name)
		require.NoError(t, err, "malformed name %q must not error", name)
		require.False(t, ok, "malformed name %q must resolve to false", name)
	}

	ok, err := resolver.HasPermissionByName(ctx, 1, "files:read")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEditorScenario(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	svc := NewService(store)
	resolver := NewResolver(store)

	editor := seedRole(t, svc, "editor", "files:read", "files:update")
	require.NoError(t, svc.AssignRole(ctx, 10, editor.ID, nil))

	ok, err := resolver.HasPermission(ctx, 10, "files", "read")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = resolver.HasPermission(ctx, 10, "files", "delete")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRevokeRoleTakesImmediateEffect(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	svc := NewService(store)
	resolver := NewResolver(store)

	viewer := seedRole(t, svc, "viewer", "files:*")
	require.NoError(t, svc.AssignRole(ctx, 4, viewer.ID, nil))

	ok, err := resolver.HasPermission(ctx, 4, "files", "read")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.RemoveRole(ctx, 4, viewer.ID))

	ok, err = resolver.HasPermission(ctx, 4, "files", "read")
	require.NoError(t, err)
	require.False(t, ok)
}

func permissionNames(perms []Permission) []string {
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.Name)
	}
	return names
}
