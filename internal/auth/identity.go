package auth

import (
	"context"
	"errors"
	"strconv"

	"github.com/daison12006013/docms/internal/rbac"
	"github.com/daison12006013/docms/internal/shared"
)

// SessionIdentity resolves the current actor from the request session.
// It implements rbac.IdentityResolver.
type SessionIdentity struct {
	service *Service
}

// NewSessionIdentity constructs a SessionIdentity.
func NewSessionIdentity(service *Service) *SessionIdentity {
	return &SessionIdentity{service: service}
}

// Resolve returns the actor bound to the session, or nil when the request
// carries no usable identity. Inactive accounts resolve to nothing so a
// deactivation takes effect on the next request.
func (si *SessionIdentity) Resolve(ctx context.Context) (*rbac.Actor, error) {
	sess := shared.SessionFromContext(ctx)
	if sess == nil {
		return nil, nil
	}
	raw := sess.User()
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, nil
	}
	user, err := si.service.LookupUser(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, nil
	}
	return &rbac.Actor{
		ID:              user.ID,
		Email:           user.Email,
		Name:            user.Name,
		IsSystemAccount: user.IsSystemAccount,
	}, nil
}

var _ rbac.IdentityResolver = (*SessionIdentity)(nil)
