package rbac

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sportsbet-ev/sportsbet-api/internal/platform/httpx"
	"github.com/sportsbet-ev/sportsbet-api/internal/shared"
)

// Handler exposes the admin role and permission endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers admin RBAC routes. All of them require a superuser.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireSuperuser())
		r.Get("/roles", h.listRoles)
		r.Post("/roles", h.createRole)
		r.Get("/roles/{roleID}", h.getRole)
		r.Put("/roles/{roleID}", h.updateRole)
		r.Delete("/roles/{roleID}", h.deleteRole)
		r.Put("/roles/{roleID}/permissions", h.assignPermissions)
		r.Get("/permissions", h.listPermissions)
		r.Post("/permissions", h.createPermission)
		r.Put("/users/{userID}/roles", h.assignRoles)
	})
}

// MountFeatureRoutes registers GET /features. Callers may be anonymous, so the
// route must sit behind an auth middleware that tolerates missing tokens.
func (h *Handler) MountFeatureRoutes(r chi.Router) {
	r.Get("/features", h.listFeatures)
}

type featureAccess struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type featuresResponse struct {
	Authenticated bool            `json:"authenticated"`
	Features      []featureAccess `json:"features"`
}

func (h *Handler) listFeatures(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	out := featuresResponse{Authenticated: id != nil}
	for _, name := range shared.FeatureScopes() {
		out.Features = append(out.Features, featureAccess{Name: name, Enabled: RequirePermission(id, name).Allowed})
	}
	httpx.JSON(w, http.StatusOK, out)
}

type assignRolesRequest struct {
	RoleIDs []int64 `json:"role_ids" validate:"required"`
}

type assignPermissionsRequest struct {
	PermissionIDs []int64 `json:"permission_ids" validate:"required"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := roleIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.fail(w, "get role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var in RoleInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	role, err := h.service.CreateRole(r.Context(), in)
	if err != nil {
		h.fail(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := roleIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var upd RoleUpdate
	if err := httpx.DecodeJSON(w, r, &upd); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(upd); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, upd)
	if err != nil {
		h.fail(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := roleIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.fail(w, "delete role", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) assignPermissions(w http.ResponseWriter, r *http.Request) {
	id, err := roleIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req assignPermissionsRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	role, err := h.service.AssignPermissions(r.Context(), id, req.PermissionIDs)
	if err != nil {
		h.fail(w, "assign permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var in PermissionInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), in)
	if err != nil {
		h.fail(w, "create permission", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, perm)
}

func (h *Handler) assignRoles(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found")
		return
	}
	var req assignRolesRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	id, err := h.service.AssignRoles(r.Context(), userID, req.RoleIDs)
	if err != nil {
		h.fail(w, "assign roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, id)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Error("rbac "+op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func roleIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("role id: %w", shared.ErrNotFound)
	}
	return id, nil
}
