package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sportsbet-ev/sportsbet-api/internal/platform/httpx"
)

// Middleware wires RBAC authorization helpers for HTTP handlers. It expects the
// identity to have been placed on the request context by the auth middleware.
type Middleware struct {
	Logger *slog.Logger
}

// RequireSuperuser rejects callers without the superuser flag.
func (m Middleware) RequireSuperuser() func(http.Handler) http.Handler {
	return m.guard("superuser", func(id *Identity) Decision {
		return RequireSuperuser(id)
	})
}

// RequirePermission rejects callers whose effective set lacks name.
func (m Middleware) RequirePermission(name string) func(http.Handler) http.Handler {
	name = strings.TrimSpace(name)
	return m.guard(name, func(id *Identity) Decision {
		return RequirePermission(id, name)
	})
}

func (m Middleware) guard(requirement string, decide func(*Identity) Decision) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			decision := decide(id)
			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil && id != nil {
				m.Logger.Debug("rbac denied",
					slog.String("user_id", id.UserID.String()),
					slog.String("requirement", requirement),
					slog.String("path", r.URL.Path))
			}
			httpx.RespondError(w, decision.Err())
		})
	}
}
