package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sealine-erp/sealine-erp/internal/authz"
	"github.com/sealine-erp/sealine-erp/internal/shared"
	"github.com/sealine-erp/sealine-erp/internal/users"
)

type stubUserSource struct {
	user users.User
	err  error
}

func (s *stubUserSource) GetUser(ctx context.Context, id int64) (users.User, error) {
	return s.user, s.err
}

func requestWithSession(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	sess := &shared.Session{}
	if userID != "" {
		sess.SetUser(userID)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestResolveNoSessionIsUnauthenticated(t *testing.T) {
	resolver := NewResolver(&stubUserSource{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ident, err := resolver.Resolve(req.Context(), req)
	require.NoError(t, err)
	require.Nil(t, ident)
}

func TestResolveStaleSessionIsUnauthenticated(t *testing.T) {
	resolver := NewResolver(&stubUserSource{err: users.ErrNotFound})

	req := requestWithSession("42")
	ident, err := resolver.Resolve(req.Context(), req)
	require.NoError(t, err)
	require.Nil(t, ident)
}

func TestResolveInactiveAccountIsUnauthenticated(t *testing.T) {
	resolver := NewResolver(&stubUserSource{user: users.User{ID: 42, IsActive: false}})

	req := requestWithSession("42")
	ident, err := resolver.Resolve(req.Context(), req)
	require.NoError(t, err)
	require.Nil(t, ident)
}

func TestResolveBackendErrorPropagates(t *testing.T) {
	resolver := NewResolver(&stubUserSource{err: errors.New("db down")})

	req := requestWithSession("42")
	_, err := resolver.Resolve(req.Context(), req)
	require.Error(t, err)
}

func TestResolveMapsIdentity(t *testing.T) {
	resolver := NewResolver(&stubUserSource{user: users.User{
		ID:            42,
		Email:         "qmr@sealine.example",
		Roles:         []authz.Role{authz.RoleQMR},
		IsSystemAdmin: false,
		IsActive:      true,
	}})

	req := requestWithSession("42")
	ident, err := resolver.Resolve(req.Context(), req)
	require.NoError(t, err)
	require.NotNil(t, ident)
	require.Equal(t, int64(42), ident.UserID)
	require.Equal(t, []authz.Role{authz.RoleQMR}, ident.Roles)
}
