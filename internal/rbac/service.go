package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sportsbet-ev/sportsbet-api/internal/shared"
)

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = fmt.Errorf("rbac: %w", shared.ErrNotFound)
	// ErrProtectedRole is returned for any update or delete of the protected role.
	ErrProtectedRole = fmt.Errorf("%w: protected role cannot be modified", shared.ErrForbidden)
)

// AuditRecorder persists audit entries for RBAC mutations.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates RBAC operations.
type Service struct {
	repo          Repository
	protectedRole string
	audit         AuditRecorder
	logger        *slog.Logger
}

// NewService constructs a Service. audit may be nil.
func NewService(repo Repository, protectedRole string, audit AuditRecorder, logger *slog.Logger) *Service {
	if protectedRole == "" {
		protectedRole = shared.DefaultProtectedRoleName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, protectedRole: protectedRole, audit: audit, logger: logger}
}

// ProtectedRole returns the technical name of the role that cannot be edited.
func (s *Service) ProtectedRole() string {
	return s.protectedRole
}

// LoadIdentity returns the user with roles and permissions hydrated.
func (s *Service) LoadIdentity(ctx context.Context, userID uuid.UUID) (*Identity, error) {
	return s.repo.LoadIdentity(ctx, userID)
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole returns a role with its permissions.
func (s *Service) GetRole(ctx context.Context, id int64) (RoleWithPermissions, error) {
	return s.repo.GetRoleWithPermissions(ctx, id)
}

// ListPermissions returns the permission catalogue.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// AssignRoles replaces the user's role set and returns the re-hydrated identity.
func (s *Service) AssignRoles(ctx context.Context, userID uuid.UUID, roleIDs []int64) (*Identity, error) {
	var out *Identity
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		exists, err := repo.UserExists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		if err := repo.ReplaceUserRoles(ctx, userID, dedupeIDs(roleIDs)); err != nil {
			return err
		}
		out, err = repo.LoadIdentity(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, "user.roles.assign", "user", userID.String(), map[string]any{"role_ids": roleIDs})
	return out, nil
}

// AssignPermissions replaces the role's permission set and returns the role.
func (s *Service) AssignPermissions(ctx context.Context, roleID int64, permissionIDs []int64) (RoleWithPermissions, error) {
	var out RoleWithPermissions
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if _, err := repo.GetRole(ctx, roleID); err != nil {
			return err
		}
		if err := repo.ReplaceRolePermissions(ctx, roleID, dedupeIDs(permissionIDs)); err != nil {
			return err
		}
		var err error
		out, err = repo.GetRoleWithPermissions(ctx, roleID)
		return err
	})
	if err != nil {
		return RoleWithPermissions{}, err
	}
	s.record(ctx, "role.permissions.assign", "role", strconv.FormatInt(roleID, 10), map[string]any{"permission_ids": permissionIDs})
	return out, nil
}

// CreateRole inserts a role, or returns the existing one with the same name.
func (s *Service) CreateRole(ctx context.Context, in RoleInput) (Role, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return Role{}, fmt.Errorf("rbac: role name required: %w", shared.ErrValidation)
	}
	var role Role
	created := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		existing, err := repo.FindRoleByName(ctx, in.Name)
		if err == nil {
			role = existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		role, err = repo.InsertRole(ctx, in)
		created = err == nil
		return err
	})
	if errors.Is(err, shared.ErrDuplicate) {
		// lost a concurrent insert race; the winner's row is the answer
		return s.repo.FindRoleByName(ctx, in.Name)
	}
	if err != nil {
		return Role{}, err
	}
	if created {
		s.record(ctx, "role.create", "role", strconv.FormatInt(role.ID, 10), map[string]any{"name": role.Name})
	}
	return role, nil
}

// CreatePermission inserts a permission, or returns the existing one with the same name.
func (s *Service) CreatePermission(ctx context.Context, in PermissionInput) (Permission, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.ModuleGroup = strings.TrimSpace(in.ModuleGroup)
	if in.Name == "" {
		return Permission{}, fmt.Errorf("rbac: permission name required: %w", shared.ErrValidation)
	}
	var perm Permission
	created := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		existing, err := repo.FindPermissionByName(ctx, in.Name)
		if err == nil {
			perm = existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		perm, err = repo.InsertPermission(ctx, in)
		created = err == nil
		return err
	})
	if errors.Is(err, shared.ErrDuplicate) {
		return s.repo.FindPermissionByName(ctx, in.Name)
	}
	if err != nil {
		return Permission{}, err
	}
	if created {
		s.record(ctx, "permission.create", "permission", strconv.FormatInt(perm.ID, 10), map[string]any{"name": perm.Name})
	}
	return perm, nil
}

// UpdateRole applies a partial update. The protected role is always rejected.
func (s *Service) UpdateRole(ctx context.Context, id int64, upd RoleUpdate) (Role, error) {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Role{}, fmt.Errorf("rbac: role name required: %w", shared.ErrValidation)
		}
		upd.Name = &name
	}
	var role Role
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		current, err := repo.GetRole(ctx, id)
		if err != nil {
			return err
		}
		if current.Name == s.protectedRole {
			return ErrProtectedRole
		}
		role, err = repo.UpdateRole(ctx, id, upd)
		return err
	})
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, "role.update", "role", strconv.FormatInt(id, 10), nil)
	return role, nil
}

// DeleteRole removes a role. The protected role is always rejected.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		current, err := repo.GetRole(ctx, id)
		if err != nil {
			return err
		}
		if current.Name == s.protectedRole {
			return ErrProtectedRole
		}
		return repo.DeleteRole(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, "role.delete", "role", strconv.FormatInt(id, 10), nil)
	return nil
}

func (s *Service) record(ctx context.Context, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{Action: action, Entity: entity, EntityID: entityID, Meta: meta}
	if actor := IdentityFromContext(ctx); actor != nil {
		entry.ActorID = actor.UserID
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("rbac audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
