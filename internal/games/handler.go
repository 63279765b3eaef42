package games

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sportsbet-ev/sportsbet-api/internal/auth"
	"github.com/sportsbet-ev/sportsbet-api/internal/platform/httpx"
	"github.com/sportsbet-ev/sportsbet-api/internal/rbac"
	"github.com/sportsbet-ev/sportsbet-api/internal/shared"
)

// Handler serves fixtures and AI predictions.
type Handler struct {
	logger  *slog.Logger
	service *Service
	auth    auth.Middleware
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authMW auth.Middleware, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, auth: authMW, rbac: rbacMW}
}

// MountRoutes registers /games and /predictions.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.Required)
		r.Get("/games", h.listGames)
		r.Get("/games/{gameID}", h.getGame)
		r.With(h.rbac.RequirePermission(shared.PermAdvancedAnalysis)).
			Get("/games/{gameID}/prediction", h.getPrediction)
		r.With(h.rbac.RequirePermission(shared.PermViewAITips)).
			Get("/predictions", h.listPredictions)
	})
}

func (h *Handler) listGames(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListUpcoming(r.Context())
	if err != nil {
		h.fail(w, "list games", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getGame(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(w, r)
	if !ok {
		return
	}
	g, err := h.service.GetGame(r.Context(), id)
	if err != nil {
		h.fail(w, "get game", err)
		return
	}
	httpx.JSON(w, http.StatusOK, g)
}

func (h *Handler) getPrediction(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(w, r)
	if !ok {
		return
	}
	p, err := h.service.GetPrediction(r.Context(), id)
	if err != nil {
		h.fail(w, "get prediction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) listPredictions(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListPredictions(r.Context())
	if err != nil {
		h.fail(w, "list predictions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Warn("games "+op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func gameIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "gameID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "game not found")
		return 0, false
	}
	return id, true
}
