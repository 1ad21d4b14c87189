package users

import (
	"errors"
	"time"
)

// User represents a user account for management.
type User struct {
	ID              int64     `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	PasswordHash    string    `json:"-"`
	IsActive        bool      `json:"is_active"`
	IsSystemAccount bool      `json:"is_system_account"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when another account already uses the email.
	ErrEmailTaken = errors.New("email already in use")
	// ErrCannotModifySystemAccount protects built-in accounts from edits.
	ErrCannotModifySystemAccount = errors.New("system accounts cannot be modified")
	// ErrCannotDeleteSystemAccount protects built-in accounts from deletion.
	ErrCannotDeleteSystemAccount = errors.New("system accounts cannot be deleted")
)
