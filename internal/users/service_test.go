package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sealine-erp/sealine-erp/internal/authz"
)

type memoryUserRepo struct {
	users  map[int64]User
	hashes map[int64]string
	nextID int64
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[int64]User), hashes: make(map[int64]string)}
}

func (r *memoryUserRepo) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	for _, user := range r.users {
		out = append(out, user)
	}
	return out, nil
}

func (r *memoryUserRepo) GetUser(ctx context.Context, id int64) (User, error) {
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *memoryUserRepo) CreateUser(ctx context.Context, email, name, passwordHash string, roles []authz.Role) (int64, error) {
	for _, user := range r.users {
		if user.Email == email {
			return 0, ErrDuplicateEmail
		}
	}
	r.nextID++
	r.users[r.nextID] = User{ID: r.nextID, Email: email, Name: name, Roles: roles, IsActive: true}
	r.hashes[r.nextID] = passwordHash
	return r.nextID, nil
}

func (r *memoryUserRepo) ReplaceRoles(ctx context.Context, id int64, roles []authz.Role) error {
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.Roles = roles
	r.users[id] = user
	return nil
}

func (r *memoryUserRepo) SetActive(ctx context.Context, id int64, active bool) error {
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.IsActive = active
	r.users[id] = user
	return nil
}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo)

	user, err := svc.CreateUser(context.Background(), "qmr@sealine.example", "QMR", "s3cret-pass", []string{"QMR"})
	require.NoError(t, err)
	require.Equal(t, []authz.Role{authz.RoleQMR}, user.Roles)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.hashes[user.ID]), []byte("s3cret-pass")))
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc := NewService(newMemoryUserRepo())

	_, err := svc.CreateUser(context.Background(), "x@sealine.example", "X", "s3cret-pass", []string{"CAPTAIN"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc := NewService(newMemoryUserRepo())

	_, err := svc.CreateUser(context.Background(), "dup@sealine.example", "A", "s3cret-pass", nil)
	require.NoError(t, err)
	_, err = svc.CreateUser(context.Background(), "dup@sealine.example", "B", "s3cret-pass", nil)
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestAssignRolesReplacesSet(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo)

	user, err := svc.CreateUser(context.Background(), "staff@sealine.example", "Staff", "s3cret-pass", []string{"STAFF"})
	require.NoError(t, err)

	updated, err := svc.AssignRoles(context.Background(), user.ID, []string{"HR", "QMR"})
	require.NoError(t, err)
	require.Equal(t, []authz.Role{authz.RoleHR, authz.RoleQMR}, updated.Roles)

	_, err = svc.AssignRoles(context.Background(), user.ID, []string{"nope"})
	require.ErrorIs(t, err, ErrValidation)
}
