package rbac

import "context"

type actorContextKey struct{}

// ContextWithActor stores the authenticated actor in context. The
// middleware sets it after a successful check so handlers can read the
// caller without a second lookup.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context, nil when absent.
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*Actor)
	return actor
}
