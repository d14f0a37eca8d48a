package users

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/sealine-erp/sealine-erp/internal/authz"
)

// Service handles account management rules.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all accounts with their roles.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns a single account.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser registers an account with an initial role set.
func (s *Service) CreateUser(ctx context.Context, email, name, password string, roles []string) (User, error) {
	if email == "" || password == "" {
		return User{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	parsed, err := parseRoles(roles)
	if err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	id, err := s.repo.CreateUser(ctx, email, name, string(hash), parsed)
	if err != nil {
		return User{}, err
	}
	return s.repo.GetUser(ctx, id)
}

// AssignRoles replaces the role set of an account.
func (s *Service) AssignRoles(ctx context.Context, id int64, roles []string) (User, error) {
	parsed, err := parseRoles(roles)
	if err != nil {
		return User{}, err
	}
	if _, err := s.repo.GetUser(ctx, id); err != nil {
		return User{}, err
	}
	if err := s.repo.ReplaceRoles(ctx, id, parsed); err != nil {
		return User{}, err
	}
	return s.repo.GetUser(ctx, id)
}

// SetActive enables or disables an account. Disabled accounts fail
// authentication and drop out of distribution recipient checks.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	return s.repo.SetActive(ctx, id, active)
}

func parseRoles(raw []string) ([]authz.Role, error) {
	roles := make([]authz.Role, 0, len(raw))
	for _, value := range raw {
		role, ok := authz.ParseRole(value)
		if !ok {
			return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, value)
		}
		roles = append(roles, role)
	}
	return roles, nil
}
