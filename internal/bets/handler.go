package bets

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sportsbet-ev/sportsbet-api/internal/auth"
	"github.com/sportsbet-ev/sportsbet-api/internal/platform/httpx"
	"github.com/sportsbet-ev/sportsbet-api/internal/rbac"
	"github.com/sportsbet-ev/sportsbet-api/internal/shared"
)

// Handler serves the bet tracker.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	auth      auth.Middleware
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authMW auth.Middleware, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, auth: authMW, rbac: rbacMW, validator: validator.New()}
}

// MountRoutes registers /bets routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.auth.Required)
	r.Use(h.rbac.RequirePermission(shared.PermBetTracker))
	r.Get("/", h.list)
	r.Post("/", h.place)
	r.Get("/summary", h.summary)
	r.Patch("/{betID}", h.settle)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller := rbac.IdentityFromContext(r.Context())
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	out, err := h.service.List(r.Context(), caller.UserID, page, perPage)
	if err != nil {
		h.fail(w, "list", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) place(w http.ResponseWriter, r *http.Request) {
	var req PlaceRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	caller := rbac.IdentityFromContext(r.Context())
	b, err := h.service.PlaceOnce(r.Context(), caller.UserID, r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		h.fail(w, "place", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, b)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	caller := rbac.IdentityFromContext(r.Context())
	s, err := h.service.Summary(r.Context(), caller.UserID)
	if err != nil {
		h.fail(w, "summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) settle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "betID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "bet not found")
		return
	}
	var req SettleRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	caller := rbac.IdentityFromContext(r.Context())
	b, err := h.service.Settle(r.Context(), caller.UserID, id, req.Status)
	if err != nil {
		h.fail(w, "settle", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Warn("bets "+op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
