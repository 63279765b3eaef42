package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sportsbet-ev/sportsbet-api/internal/platform/httpx"
	"github.com/sportsbet-ev/sportsbet-api/internal/rbac"
	"github.com/sportsbet-ev/sportsbet-api/internal/shared"
)

// Middleware authenticates bearer tokens and stores the identity on the context.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// Required rejects requests without a valid bearer token.
func (m Middleware) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			httpx.Unauthorized(w)
			return
		}
		id, err := m.Resolver.Resolve(r.Context(), token)
		if err != nil {
			m.reject(w, r, err)
			return
		}
		if id == nil {
			httpx.Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(rbac.ContextWithIdentity(r.Context(), id)))
	})
}

// Optional attaches an identity when a valid token is presented and otherwise
// continues anonymously.
func (m Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		id, err := m.Resolver.Resolve(r.Context(), token)
		if err != nil {
			if errors.Is(err, shared.ErrUnauthenticated) {
				m.debug(r, err)
				next.ServeHTTP(w, r)
				return
			}
			m.reject(w, r, err)
			return
		}
		if id != nil {
			r = r.WithContext(rbac.ContextWithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) reject(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, shared.ErrUnauthenticated) {
		m.debug(r, err)
		httpx.Unauthorized(w)
		return
	}
	if m.Logger != nil {
		m.Logger.Error("auth resolve", slog.Any("error", err), slog.String("path", r.URL.Path))
	}
	httpx.RespondError(w, err)
}

func (m Middleware) debug(r *http.Request, err error) {
	if m.Logger != nil {
		m.Logger.Debug("auth rejected token", slog.Any("error", err), slog.String("path", r.URL.Path))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
