package users

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/daison12006013/docms/internal/rbac"
	"github.com/daison12006013/docms/internal/shared"
)

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
	rbac *rbac.Service
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, rbacService *rbac.Service) *Service {
	return &Service{repo: repo, rbac: rbacService}
}

// CreateUserInput carries the fields needed to register an account.
type CreateUserInput struct {
	Email    string
	Name     string
	Password string
	IsActive bool
}

// UpdateUserInput carries the editable fields of an account. Password is
// optional; an empty value keeps the current hash.
type UpdateUserInput struct {
	Email    string
	Name     string
	Password string
	IsActive bool
}

// ListUsers returns a page of users with pagination metadata.
func (s *Service) ListUsers(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	list, total, err := s.repo.ListUsers(ctx, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// GetUser fetches a single user.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser registers a new account with a bcrypt password hash.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, User{
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		IsActive:     in.IsActive,
	})
}

// UpdateUser edits an account. System accounts are immutable regardless of
// the caller's permissions.
func (s *Service) UpdateUser(ctx context.Context, id int64, in UpdateUserInput) (User, error) {
	current, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if current.IsSystemAccount {
		return User{}, ErrCannotModifySystemAccount
	}

	current.Email = strings.ToLower(strings.TrimSpace(in.Email))
	current.Name = strings.TrimSpace(in.Name)
	current.IsActive = in.IsActive
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, err
		}
		current.PasswordHash = string(hash)
	}
	return s.repo.UpdateUser(ctx, current)
}

// DeleteUser removes an account along with its role and permission grants.
// System accounts cannot be deleted.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	current, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if current.IsSystemAccount {
		return ErrCannotDeleteSystemAccount
	}
	if err := s.rbac.ClearUserRoles(ctx, id); err != nil {
		return err
	}
	if err := s.rbac.ClearUserPermissions(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteUser(ctx, id)
}

// SetRoles replaces the user's role assignments.
func (s *Service) SetRoles(ctx context.Context, id int64, roleIDs []int64, assignedBy *int64) error {
	current, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if current.IsSystemAccount {
		return ErrCannotModifySystemAccount
	}
	return s.rbac.ReplaceUserRoles(ctx, id, roleIDs, assignedBy)
}

// SetPermissions replaces the user's direct permission grants.
func (s *Service) SetPermissions(ctx context.Context, id int64, names []string, assignedBy *int64) error {
	current, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if current.IsSystemAccount {
		return ErrCannotModifySystemAccount
	}
	return s.rbac.ReplaceUserPermissions(ctx, id, names, assignedBy)
}
