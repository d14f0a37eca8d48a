// Package users manages back-office accounts and their role assignments.
package users

import (
	"errors"
	"time"

	"github.com/sealine-erp/sealine-erp/internal/authz"
)

// User is an account visible to the admin module. Roles drive what the
// permission engine lets the account reach.
type User struct {
	ID            int64
	Email         string
	Name          string
	Roles         []authz.Role
	IsSystemAdmin bool
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var (
	ErrNotFound       = errors.New("users: not found")
	ErrValidation     = errors.New("users: invalid input")
	ErrDuplicateEmail = errors.New("users: email already registered")
)
