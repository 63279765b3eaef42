package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sportsbet-ev/sportsbet-api/internal/auth"
	"github.com/sportsbet-ev/sportsbet-api/internal/bets"
	"github.com/sportsbet-ev/sportsbet-api/internal/games"
	"github.com/sportsbet-ev/sportsbet-api/internal/observability"
	"github.com/sportsbet-ev/sportsbet-api/internal/platform/httpx"
	"github.com/sportsbet-ev/sportsbet-api/internal/rbac"
	"github.com/sportsbet-ev/sportsbet-api/internal/users"
	"github.com/sportsbet-ev/sportsbet-api/jobs"
)

// ReadinessCheck checks one dependency for /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	AuthMiddleware auth.Middleware
	AuthHandler    *auth.Handler
	RBACHandler    *rbac.Handler
	UsersHandler   *users.Handler
	GamesHandler   *games.Handler
	BetsHandler    *bets.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
	Readiness      []ReadinessCheck
}

// NewRouter constructs the chi.Router with API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readinessHandler(params.Logger, params.Readiness))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.RBACHandler != nil {
			r.Group(func(r chi.Router) {
				r.Use(params.AuthMiddleware.Optional)
				params.RBACHandler.MountFeatureRoutes(r)
			})
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.GamesHandler != nil {
			params.GamesHandler.MountRoutes(r)
		}
		if params.BetsHandler != nil {
			r.Route("/bets", params.BetsHandler.MountRoutes)
		}
		r.Route("/admin", func(r chi.Router) {
			r.Use(params.AuthMiddleware.Required)
			if params.RBACHandler != nil {
				params.RBACHandler.MountRoutes(r)
			}
			if params.UsersHandler != nil {
				params.UsersHandler.MountAdminRoutes(r)
			}
			if params.JobHandler != nil {
				params.JobHandler.MountRoutes(r)
			}
		})
	})

	return r
}

func readinessHandler(logger *slog.Logger, checks []ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		out := map[string]string{}
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				out[c.Name] = "down"
				if logger != nil {
					logger.Warn("readiness check failed", slog.String("check", c.Name), slog.Any("error", err))
				}
				continue
			}
			out[c.Name] = "ok"
		}
		httpx.JSON(w, status, out)
	}
}
