package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubIdentity struct {
	actor *Actor
	err   error
}

func (s stubIdentity) Resolve(ctx context.Context) (*Actor, error) {
	return s.actor, s.err
}

type failingStore struct {
	Store
	err error
}

func (f failingStore) DirectPermissionsForUser(ctx context.Context, userID int64) ([]Permission, error) {
	return nil, f.err
}

func TestRequireAuthenticated(t *testing.T) {
	resolver := NewResolver(NewMemStore())

	gate := NewGate(stubIdentity{}, resolver)
	_, err := gate.RequireAuthenticated(context.Background())
	require.ErrorIs(t, err, ErrUnauthenticated)

	gate = NewGate(stubIdentity{actor: &Actor{ID: 1}}, resolver)
	actor, err := gate.RequireAuthenticated(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, actor.ID)
}

func TestRequirePermission(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	svc := NewService(store)
	require.NoError(t, svc.GrantPermission(ctx, 1, "files:read", nil))

	gate := NewGate(stubIdentity{actor: &Actor{ID: 1}}, NewResolver(store))

	actor, err := gate.RequirePermission(ctx, "files", "read")
	require.NoError(t, err)
	require.EqualValues(t, 1, actor.ID)

	_, err = gate.RequirePermission(ctx, "files", "delete")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestRequirePermissionUnauthenticatedBeforeForbidden(t *testing.T) {
	gate := NewGate(stubIdentity{}, NewResolver(NewMemStore()))
	_, err := gate.RequirePermission(context.Background(), "files", "read")
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRequireAnyPermissionOrSemantics(t *testing.T) {
	ctx := context.Background()
	names := []string{"a:b", "c:d"}

	// Holder of only c:d passes.
	store := NewMemStore()
	svc := NewService(store)
	require.NoError(t, svc.GrantPermission(ctx, 1, "c:d", nil))
	gate := NewGate(stubIdentity{actor: &Actor{ID: 1}}, NewResolver(store))
	_, err := gate.RequireAnyPermission(ctx, names)
	require.NoError(t, err)

	// Holder of both passes.
	require.NoError(t, svc.GrantPermission(ctx, 1, "a:b", nil))
	_, err = gate.RequireAnyPermission(ctx, names)
	require.NoError(t, err)

	// Holder of neither fails.
	gate = NewGate(stubIdentity{actor: &Actor{ID: 2}}, NewResolver(store))
	_, err = gate.RequireAnyPermission(ctx, names)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestRequireAnyPermissionMalformedEntriesDoNotShortCircuit(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	svc := NewService(store)
	require.NoError(t, svc.GrantPermission(ctx, 1, "files:read", nil))

	gate := NewGate(stubIdentity{actor: &Actor{ID: 1}}, NewResolver(store))

	// The malformed entry counts as a failed check; the valid one still wins.
	_, err := gate.RequireAnyPermission(ctx, []string{"not-a-name", "files:read"})
	require.NoError(t, err)

	// All malformed means denial, not an error.
	_, err = gate.RequireAnyPermission(ctx, []string{"not-a-name", "also::bad"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestRequireAnyPermissionEmptyListDenies(t *testing.T) {
	gate := NewGate(stubIdentity{actor: &Actor{ID: 1}}, NewResolver(NewMemStore()))
	_, err := gate.RequireAnyPermission(context.Background(), nil)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestStoreFailurePropagatesNotDenied(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("connection refused")
	store := failingStore{Store: NewMemStore(), err: storeErr}
	gate := NewGate(stubIdentity{actor: &Actor{ID: 1}}, NewResolver(store))

	_, err := gate.RequirePermission(ctx, "files", "read")
	require.ErrorIs(t, err, storeErr)
	require.NotErrorIs(t, err, ErrForbidden)

	_, err = gate.RequireAnyPermission(ctx, []string{"files:read"})
	require.ErrorIs(t, err, storeErr)
	require.NotErrorIs(t, err, ErrForbidden)
}
