package rbac

import (
	"fmt"
	"regexp"
	"strings"
)

// Wildcard is the sole wildcard token in permission names.
const Wildcard = "*"

var segmentPattern = regexp.MustCompile(`^[a-zA-Z0-9_*]+$`)

// ParseName splits a permission name into its resource and action segments.
// The split is on the first colon; both segments must be non-empty and
// restricted to [a-zA-Z0-9_*]. A name with more than one colon is rejected
// because the trailing segment fails the character check.
func ParseName(name string) (resource, action string, err error) {
	resource, action, ok := strings.Cut(name, ":")
	if !ok || resource == "" || action == "" {
		return "", "", fmt.Errorf("%w: %q must be resource:action", ErrInvalidPermissionName, name)
	}
	if !segmentPattern.MatchString(resource) || !segmentPattern.MatchString(action) {
		return "", "", fmt.Errorf("%w: %q contains invalid characters", ErrInvalidPermissionName, name)
	}
	return resource, action, nil
}

// JoinName builds the canonical permission name from already-validated
// resource and action segments.
func JoinName(resource, action string) string {
	return resource + ":" + action
}
