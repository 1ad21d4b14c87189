package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/daison12006013/docms/internal/platform/httpx"
)

// Middleware wires authorization checks in front of HTTP handlers.
type Middleware struct {
	Gate   *Gate
	Logger *slog.Logger
}

// RequireAny admits the request when the caller holds at least one of the
// named permissions. Missing identity maps to 401 and denial to 403. A
// store failure never maps to an allow.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actor, err := m.Gate.RequireAnyPermission(r.Context(), normalized)
			if err != nil {
				m.deny(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
		})
	}
}

// Require admits the request when the caller holds the single named
// resource/action permission.
func (m Middleware) Require(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := m.Gate.RequirePermission(r.Context(), resource, action)
			if err != nil {
				m.deny(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
		})
	}
}

// RequireAuthenticated admits any caller with a resolved identity.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := m.Gate.RequireAuthenticated(r.Context())
			if err != nil {
				m.deny(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "permission denied")
	default:
		if m.Logger != nil {
			m.Logger.Error("rbac check failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func normalizePermissions(perms []string) []string {
	seen := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}
