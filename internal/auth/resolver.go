package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/sealine-erp/sealine-erp/internal/authz"
	"github.com/sealine-erp/sealine-erp/internal/shared"
	"github.com/sealine-erp/sealine-erp/internal/users"
)

// UserSource loads the account behind a session.
type UserSource interface {
	GetUser(ctx context.Context, id int64) (users.User, error)
}

// Resolver turns the request's session into an authorization identity. It is
// the single SessionResolver implementation behind the gate.
type Resolver struct {
	source UserSource
}

// NewResolver constructs a Resolver over a user source.
func NewResolver(source UserSource) *Resolver {
	return &Resolver{source: source}
}

var _ authz.SessionResolver = (*Resolver)(nil)

// Resolve maps the session to an identity. A missing or stale session yields
// (nil, nil): unauthenticated without error. Backend failures propagate so
// the gate can fail closed.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*authz.Identity, error) {
	sess := shared.SessionFromContext(ctx)
	if sess == nil || sess.User() == "" {
		return nil, nil
	}
	userID, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		return nil, nil
	}
	account, err := r.source.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, nil
	}
	return &authz.Identity{
		UserID:        account.ID,
		Email:         account.Email,
		Roles:         account.Roles,
		IsSystemAdmin: account.IsSystemAdmin,
	}, nil
}
