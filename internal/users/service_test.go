package users

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/daison12006013/docms/internal/rbac"
)

type memRepo struct {
	nextID int64
	byID   map[int64]User
}

func newMemRepo() *memRepo {
	return &memRepo{nextID: 1, byID: map[int64]User{}}
}

func (m *memRepo) ListUsers(ctx context.Context, limit, offset int) ([]User, int, error) {
	all := make([]User, 0, len(m.byID))
	for _, u := range m.byID {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *memRepo) GetUser(ctx context.Context, id int64) (User, error) {
	u, ok := m.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memRepo) GetUserByEmail(ctx context.Context, email string) (User, error) {
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *memRepo) CreateUser(ctx context.Context, u User) (User, error) {
	if _, err := m.GetUserByEmail(ctx, u.Email); err == nil {
		return User{}, ErrEmailTaken
	}
	u.ID = m.nextID
	m.nextID++
	m.byID[u.ID] = u
	return u, nil
}

func (m *memRepo) UpdateUser(ctx context.Context, u User) (User, error) {
	if _, ok := m.byID[u.ID]; !ok {
		return User{}, ErrNotFound
	}
	m.byID[u.ID] = u
	return u, nil
}

func (m *memRepo) DeleteUser(ctx context.Context, id int64) error {
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func newTestService(t *testing.T) (*Service, *memRepo, *rbac.Service) {
	t.Helper()
	repo := newMemRepo()
	rbacSvc := rbac.NewService(rbac.NewMemStore())
	return NewService(repo, rbacSvc), repo, rbacSvc
}

func TestCreateUserHashesPassword(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	user, err := svc.CreateUser(ctx, CreateUserInput{
		Email:    "Alice@Example.com",
		Name:     "  Alice  ",
		Password: "correct horse",
		IsActive: true,
	})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
	require.Equal(t, "Alice", user.Name)
	require.NotEqual(t, "correct horse", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct horse")))
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.CreateUser(ctx, CreateUserInput{Email: "a@b.test", Name: "A", Password: "password1"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, CreateUserInput{Email: "A@B.test", Name: "A2", Password: "password2"})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestUpdateUserKeepsHashWhenPasswordEmpty(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	user, err := svc.CreateUser(ctx, CreateUserInput{Email: "a@b.test", Name: "A", Password: "password1"})
	require.NoError(t, err)

	updated, err := svc.UpdateUser(ctx, user.ID, UpdateUserInput{Email: "a@b.test", Name: "Renamed", IsActive: true})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)
	require.Equal(t, user.PasswordHash, updated.PasswordHash)
}

func TestSystemAccountGuard(t *testing.T) {
	ctx := context.Background()
	svc, repo, rbacSvc := newTestService(t)

	system, err := repo.CreateUser(ctx, User{Email: "system@docms.local", Name: "System", IsSystemAccount: true, IsActive: true})
	require.NoError(t, err)

	_, err = svc.UpdateUser(ctx, system.ID, UpdateUserInput{Email: "other@docms.local", Name: "X"})
	require.ErrorIs(t, err, ErrCannotModifySystemAccount)

	err = svc.DeleteUser(ctx, system.ID)
	require.ErrorIs(t, err, ErrCannotDeleteSystemAccount)

	err = svc.SetPermissions(ctx, system.ID, []string{"files:read"}, nil)
	require.ErrorIs(t, err, ErrCannotModifySystemAccount)

	role, err := rbacSvc.CreateRole(ctx, "admin", "")
	require.NoError(t, err)
	err = svc.SetRoles(ctx, system.ID, []int64{role.ID}, nil)
	require.ErrorIs(t, err, ErrCannotModifySystemAccount)

	// The row is untouched after every refused mutation.
	got, err := repo.GetUser(ctx, system.ID)
	require.NoError(t, err)
	require.Equal(t, system, got)
}

func TestDeleteUserClearsGrants(t *testing.T) {
	ctx := context.Background()
	store := rbac.NewMemStore()
	svc := NewService(newMemRepo(), rbac.NewService(store))

	user, err := svc.CreateUser(ctx, CreateUserInput{Email: "a@b.test", Name: "A", Password: "password1"})
	require.NoError(t, err)
	require.NoError(t, rbac.NewService(store).GrantPermission(ctx, user.ID, "files:read", nil))

	require.NoError(t, svc.DeleteUser(ctx, user.ID))

	_, err = svc.GetUser(ctx, user.ID)
	require.ErrorIs(t, err, ErrNotFound)

	perms, err := rbac.NewResolver(store).EffectivePermissions(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, perms)
}

func TestListUsersPagination(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	for _, email := range []string{"a@t.test", "b@t.test", "c@t.test"} {
		_, err := svc.CreateUser(ctx, CreateUserInput{Email: email, Name: "U", Password: "password1"})
		require.NoError(t, err)
	}

	list, pagination, err := svc.ListUsers(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "c@t.test", list[0].Email)
	require.Equal(t, 3, pagination.Total)
	require.Equal(t, 2, pagination.TotalPages)
}
