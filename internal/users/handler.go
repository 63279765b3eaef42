package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sportsbet-ev/sportsbet-api/internal/auth"
	"github.com/sportsbet-ev/sportsbet-api/internal/platform/httpx"
	"github.com/sportsbet-ev/sportsbet-api/internal/rbac"
)

// Handler exposes registration, self-service profile and admin user routes.
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

// MountRoutes registers /users routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.register)
	r.Group(func(r chi.Router) {
		r.Use(h.auth.Required)
		r.Get("/me", h.me)
		r.Put("/me", h.updateMe)
		r.Post("/me/password", h.changePassword)
	})
}

// MountAdminRoutes registers superuser user management under /admin.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireSuperuser())
		r.Get("/users", h.list)
		r.Get("/users/{userID}", h.get)
		r.Patch("/users/{userID}", h.adminUpdate)
	})
}

type meResponse struct {
	*rbac.Identity
	Permissions []string `json:"permissions"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req Registration
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	u, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.fail(w, "register", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, u)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	caller := rbac.IdentityFromContext(r.Context())
	ident, err := h.service.Me(r.Context(), caller.UserID)
	if err != nil {
		h.fail(w, "me", err)
		return
	}
	httpx.JSON(w, http.StatusOK, meResponse{Identity: ident, Permissions: ident.PermissionNames()})
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var upd ProfileUpdate
	if err := httpx.DecodeJSON(w, r, &upd); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(upd); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	caller := rbac.IdentityFromContext(r.Context())
	u, err := h.service.UpdateProfile(r.Context(), caller.UserID, upd)
	if err != nil {
		h.fail(w, "update profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var upd PasswordUpdate
	if err := httpx.DecodeJSON(w, r, &upd); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(upd); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	caller := rbac.IdentityFromContext(r.Context())
	if err := h.service.ChangePassword(r.Context(), caller.UserID, upd); err != nil {
		h.fail(w, "change password", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	out, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.fail(w, "list", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	ident, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ident)
}

func (h *Handler) adminUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var upd AdminUpdate
	if err := httpx.DecodeJSON(w, r, &upd); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(upd); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	ident, err := h.service.AdminUpdate(r.Context(), id, upd)
	if err != nil {
		h.fail(w, "admin update", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ident)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Warn("users "+op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func userIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found")
		return uuid.Nil, false
	}
	return id, true
}
