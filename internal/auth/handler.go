package auth

import (
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sportsbet-ev/sportsbet-api/internal/platform/httpx"
	"github.com/sportsbet-ev/sportsbet-api/internal/rbac"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	auth         Middleware
	loginLimiter func(http.Handler) http.Handler
	validator    *validator.Validate
}

// NewHandler constructs a Handler instance. loginLimiter may be nil.
func NewHandler(logger *slog.Logger, service *Service, auth Middleware, loginLimiter func(http.Handler) http.Handler) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		auth:         auth,
		loginLimiter: loginLimiter,
		validator:    validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.loginLimiter != nil {
			r.Use(h.loginLimiter)
		}
		r.Post("/login", h.handleLogin)
		r.Post("/refresh", h.handleRefresh)
	})
	r.With(h.auth.Required).Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// handleLogin accepts the OAuth2 password form (username/password) or JSON.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := httpx.DecodeJSON(w, r, &form); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid form body")
			return
		}
		form.Email = r.PostFormValue("username")
		if form.Email == "" {
			form.Email = r.PostFormValue("email")
		}
		form.Password = r.PostFormValue("password")
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	pair, err := h.service.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		h.logError("login", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pair)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.logError("refresh", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pair)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	id := rbac.IdentityFromContext(r.Context())
	if err := h.service.Logout(r.Context(), id.UserID); err != nil {
		h.logError("logout", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) logError(op string, err error) {
	if h.logger != nil {
		h.logger.Warn("auth "+op, slog.Any("error", err))
	}
}
