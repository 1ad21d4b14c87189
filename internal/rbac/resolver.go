package rbac

import "context"

// Resolver answers effective-permission queries for users. It holds no
// state beyond the injected store; every call reads current grants.
type Resolver struct {
	store Store
}

// NewResolver constructs a Resolver over the given store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// EffectivePermissions computes the deduplicated union of the user's
// role-inherited and directly-granted active permissions. Unknown users
// yield an empty set, not an error; store failures propagate.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID int64) ([]Permission, error) {
	viaRoles, err := r.store.RolePermissionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	direct, err := r.store.DirectPermissionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(viaRoles)+len(direct))
	perms := make([]Permission, 0, len(viaRoles)+len(direct))
	for _, p := range viaRoles {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		perms = append(perms, p)
	}
	for _, p := range direct {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		perms = append(perms, p)
	}
	return perms, nil
}

// HasPermission reports whether the user holds a permission matching the
// literal resource/action pair. Wildcards only appear on the stored side.
func (r *Resolver) HasPermission(ctx context.Context, userID int64, resource, action string) (bool, error) {
	perms, err := r.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p.Matches(resource, action) {
			return true, nil
		}
	}
	return false, nil
}

// HasPermissionByName parses name as resource:action and delegates to
// HasPermission. Malformed names fail closed: false, no error. Store
// failures still propagate so an outage is never reported as a denial.
func (r *Resolver) HasPermissionByName(ctx context.Context, userID int64, name string) (bool, error) {
	resource, action, err := ParseName(name)
	if err != nil {
		return false, nil
	}
	return r.HasPermission(ctx, userID, resource, action)
}
