package rbac

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// IdentityResolver resolves the calling identity from the request context.
// Returning (nil, nil) means no identity is present.
type IdentityResolver interface {
	Resolve(ctx context.Context) (*Actor, error)
}

// Gate enforces authorization at the edge of privileged operations. It has
// two observable outcomes for a caller without access: ErrUnauthenticated
// when no identity resolves, ErrForbidden when the identity lacks the
// permission. Store failures propagate as themselves so an outage is never
// converted into an allow.
type Gate struct {
	identity IdentityResolver
	resolver *Resolver
}

// NewGate constructs a Gate.
func NewGate(identity IdentityResolver, resolver *Resolver) *Gate {
	return &Gate{identity: identity, resolver: resolver}
}

// RequireAuthenticated resolves the calling identity or fails with
// ErrUnauthenticated.
func (g *Gate) RequireAuthenticated(ctx context.Context) (*Actor, error) {
	actor, err := g.identity.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	return actor, nil
}

// RequirePermission authenticates and checks a single resource/action
// permission, returning the actor so callers get identity and
// authorization in one call.
func (g *Gate) RequirePermission(ctx context.Context, resource, action string) (*Actor, error) {
	actor, err := g.RequireAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := g.resolver.HasPermission(ctx, actor.ID, resource, action)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	return actor, nil
}

// RequireAnyPermission authenticates once, then evaluates every named
// permission independently and grants if at least one holds. The checks
// are pure reads with no ordering dependency, so they fan out
// concurrently. Malformed names count as failed checks, not errors.
func (g *Gate) RequireAnyPermission(ctx context.Context, names []string) (*Actor, error) {
	actor, err := g.RequireAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrForbidden
	}

	results := make([]bool, len(names))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, name := range names {
		eg.Go(func() error {
			ok, err := g.resolver.HasPermissionByName(egCtx, actor.ID, name)
			if err != nil {
				return err
			}
			results[i] = ok
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	for _, ok := range results {
		if ok {
			return actor, nil
		}
	}
	return nil, ErrForbidden
}
