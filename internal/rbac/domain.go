package rbac

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Role is a named bundle of permissions (a "plan" in product terms).
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission represents an atomic capability.
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ModuleGroup string `json:"module_group"`
}

// RoleWithPermissions is a role loaded together with every permission it grants.
type RoleWithPermissions struct {
	Role
	Permissions []Permission `json:"permissions"`
}

// Identity is a user hydrated with roles and their permissions.
type Identity struct {
	UserID      uuid.UUID             `json:"id"`
	Email       string                `json:"email"`
	FullName    string                `json:"full_name"`
	IsActive    bool                  `json:"is_active"`
	IsSuperuser bool                  `json:"is_superuser"`
	Roles       []RoleWithPermissions `json:"roles"`
}

// EffectivePermissions returns the union of permission names across all roles.
func (i *Identity) EffectivePermissions() map[string]struct{} {
	set := make(map[string]struct{})
	if i == nil {
		return set
	}
	for _, role := range i.Roles {
		for _, perm := range role.Permissions {
			set[perm.Name] = struct{}{}
		}
	}
	return set
}

// PermissionNames returns the effective permission set sorted by name.
func (i *Identity) PermissionNames() []string {
	set := i.EffectivePermissions()
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RoleInput carries the fields of a new role.
type RoleInput struct {
	Name        string `json:"name" validate:"required,min=3,max=50"`
	DisplayName string `json:"display_name" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"max=255"`
}

// RoleUpdate carries a partial role update. Nil fields are left unchanged.
type RoleUpdate struct {
	Name        *string `json:"name" validate:"omitempty,min=3,max=50"`
	DisplayName *string `json:"display_name" validate:"omitempty,min=3,max=100"`
	Description *string `json:"description" validate:"omitempty,max=255"`
	IsActive    *bool   `json:"is_active"`
}

// PermissionInput carries the fields of a new permission.
type PermissionInput struct {
	Name        string `json:"name" validate:"required,min=5,max=100"`
	Description string `json:"description" validate:"max=255"`
	ModuleGroup string `json:"module_group" validate:"max=50"`
}
