package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateRoleRequiresName(t *testing.T) {
	svc := NewService(NewMemStore())
	_, err := svc.CreateRole(context.Background(), "   ", "desc")
	require.ErrorIs(t, err, ErrRoleNameRequired)
}

func TestEnsurePermissionCreatesOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	svc := NewService(store)

	first, err := svc.EnsurePermission(ctx, "files:read", "read documents")
	require.NoError(t, err)
	require.Equal(t, "files", first.Resource)
	require.Equal(t, "read", first.Action)

	// Ensuring again must link to the existing entry, not create a twin.
	second, err := svc.EnsurePermission(ctx, "files:read", "")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	catalog, err := svc.ListPermissions(ctx)
	require.NoError(t, err)
	require.Len(t, catalog, 1)
}

func TestEnsurePermissionRejectsMalformedNames(t *testing.T) {
	svc := NewService(NewMemStore())
	for _, name := range []string{"garbage", "a:b:c", "files:", "re source:read"} {
		_, err := svc.EnsurePermission(context.Background(), name, "")
		require.ErrorIs(t, err, ErrInvalidPermissionName, "name %q", name)
	}
}

func TestSetRolePermissionsVivifiesAndDiffs(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	svc := NewService(store)

	role, err := svc.CreateRole(ctx, "editor", "")
	require.NoError(t, err)

	require.NoError(t, svc.SetRolePermissions(ctx, role.ID, []string{"files:read", "files:update"}))
	perms, err := svc.ListRolePermissions(ctx, role.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"files:read", "files:update"}, permissionNames(perms))

	// Replace: keep read, drop update, add delete.
	require.NoError(t, svc.SetRolePermissions(ctx, role.ID, []string{"files:read", "files:delete"}))
	perms, err = svc.ListRolePermissions(ctx, role.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"files:read", "files:delete"}, permissionNames(perms))

	// The catalog keeps every vivified entry.
	catalog, err := svc.ListPermissions(ctx)
	require.NoError(t, err)
	require.Len(t, catalog, 3)
}

func TestSetRolePermissionsRejectsMalformedName(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemStore())
	role, err := svc.CreateRole(ctx, "broken", "")
	require.NoError(t, err)
	err = svc.SetRolePermissions(ctx, role.ID, []string{"files:read", "not-a-name"})
	require.ErrorIs(t, err, ErrInvalidPermissionName)
}

func TestAttachPermissionIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	svc := NewService(store)

	role, err := svc.CreateRole(ctx, "viewer", "")
	require.NoError(t, err)
	perm, err := svc.EnsurePermission(ctx, "files:read", "")
	require.NoError(t, err)

	require.NoError(t, store.AttachPermission(ctx, role.ID, perm.ID))
	require.NoError(t, store.AttachPermission(ctx, role.ID, perm.ID))

	perms, err := svc.ListRolePermissions(ctx, role.ID)
	require.NoError(t, err)
	require.Len(t, perms, 1)
}

func TestRevocationKeepsRowForAudit(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	svc := NewService(store)

	role := seedRole(t, svc, "viewer", "files:read")
	require.NoError(t, svc.AssignRole(ctx, 1, role.ID, nil))
	require.NoError(t, svc.RemoveRole(ctx, 1, role.ID))

	grants, err := svc.ListUserRoles(ctx, 1)
	require.NoError(t, err)
	require.Len(t, grants, 1, "revoked row must persist")
	require.Equal(t, GrantRevoked, grants[0].State.Status)
	require.False(t, grants[0].State.RevokedAt.IsZero())

	perms, err := NewResolver(store).EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, perms, "revoked grant contributes nothing")
}

func TestReassignReactivatesSameRow(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	svc := NewService(store)
	resolver := NewResolver(store)
	actor := int64(99)

	role := seedRole(t, svc, "viewer", "files:read")

	// Double assign leaves exactly one active row.
	require.NoError(t, svc.AssignRole(ctx, 1, role.ID, &actor))
	require.NoError(t, svc.AssignRole(ctx, 1, role.ID, &actor))
	grants, err := svc.ListUserRoles(ctx, 1)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	require.Equal(t, GrantActive, grants[0].State.Status)

	// Revoke then re-grant restores full access on the same row.
	require.NoError(t, svc.RemoveRole(ctx, 1, role.ID))
	require.NoError(t, svc.AssignRole(ctx, 1, role.ID, &actor))

	grants, err = svc.ListUserRoles(ctx, 1)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	require.Equal(t, GrantActive, grants[0].State.Status)
	require.NotNil(t, grants[0].State.AssignedBy)
	require.Equal(t, actor, *grants[0].State.AssignedBy)

	ok, err := resolver.HasPermission(ctx, 1, "files", "read")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDirectPermissionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	svc := NewService(store)
	resolver := NewResolver(store)

	require.NoError(t, svc.GrantPermission(ctx, 8, "files:download", nil))
	ok, err := resolver.HasPermission(ctx, 8, "files", "download")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.RevokePermission(ctx, 8, "files:download"))
	ok, err = resolver.HasPermission(ctx, 8, "files", "download")
	require.NoError(t, err)
	require.False(t, ok)

	grants, err := svc.ListUserPermissions(ctx, 8)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	require.Equal(t, GrantRevoked, grants[0].State.Status)
}

func TestReplaceUserRoles(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	svc := NewService(store)
	resolver := NewResolver(store)

	readers := seedRole(t, svc, "readers", "files:read")
	writers := seedRole(t, svc, "writers", "files:update")

	require.NoError(t, svc.AssignRole(ctx, 6, readers.ID, nil))
	require.NoError(t, svc.ReplaceUserRoles(ctx, 6, []int64{writers.ID}, nil))

	perms, err := resolver.EffectivePermissions(ctx, 6)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"files:update"}, permissionNames(perms))
}

func TestClearUserPermissions(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	svc := NewService(store)

	require.NoError(t, svc.GrantPermission(ctx, 2, "files:read", nil))
	require.NoError(t, svc.GrantPermission(ctx, 2, "files:update", nil))
	require.NoError(t, svc.ClearUserPermissions(ctx, 2))

	perms, err := NewResolver(store).EffectivePermissions(ctx, 2)
	require.NoError(t, err)
	require.Empty(t, perms)

	grants, err := svc.ListUserPermissions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, grants, 2, "history rows persist after clearing")
}

func TestDeleteRoleRemovesDerivedAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	svc := NewService(store)
	resolver := NewResolver(store)

	role := seedRole(t, svc, "temp", "files:read")
	require.NoError(t, svc.AssignRole(ctx, 3, role.ID, nil))
	require.NoError(t, svc.DeleteRole(ctx, role.ID))

	ok, err := resolver.HasPermission(ctx, 3, "files", "read")
	require.NoError(t, err)
	require.False(t, ok)

	// The catalog entry survives role deletion.
	_, err = store.GetPermissionByName(ctx, "files:read")
	require.NoError(t, err)
}
