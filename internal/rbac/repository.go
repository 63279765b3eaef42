package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sportsbet-ev/sportsbet-api/internal/platform/db"
	"github.com/sportsbet-ev/sportsbet-api/internal/shared"
)

// Repository is the persistence port of the RBAC graph.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	LoadIdentity(ctx context.Context, userID uuid.UUID) (*Identity, error)
	UserExists(ctx context.Context, userID uuid.UUID) (bool, error)
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	FindRoleByName(ctx context.Context, name string) (Role, error)
	GetRoleWithPermissions(ctx context.Context, id int64) (RoleWithPermissions, error)
	InsertRole(ctx context.Context, in RoleInput) (Role, error)
	UpdateRole(ctx context.Context, id int64, upd RoleUpdate) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	ListPermissions(ctx context.Context) ([]Permission, error)
	FindPermissionByName(ctx context.Context, name string) (Permission, error)
	InsertPermission(ctx context.Context, in PermissionInput) (Permission, error)
	ReplaceUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []int64) error
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
	db   db.DBTX
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool, db: pool}
}

// WithTx runs fn against a transaction-bound repository.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PGRepository{pool: r.pool, db: tx})
	})
}

const loadIdentitySQL = `
SELECT u.id, u.email, u.full_name, u.is_active, u.is_superuser,
       r.id, r.name, r.display_name, r.description, r.is_active,
       p.id, p.name, p.description, p.module_group
FROM users u
LEFT JOIN user_roles ur ON ur.user_id = u.id
LEFT JOIN roles r ON r.id = ur.role_id
LEFT JOIN role_permissions rp ON rp.role_id = r.id
LEFT JOIN permissions p ON p.id = rp.permission_id
WHERE u.id = $1
ORDER BY r.id, p.name`

// identityRow is one row of the flattened user/role/permission join.
type identityRow struct {
	UserID          uuid.UUID
	Email           string
	FullName        string
	IsActive        bool
	IsSuperuser     bool
	RoleID          *int64
	RoleName        *string
	RoleDisplayName *string
	RoleDescription *string
	RoleActive      *bool
	PermID          *int64
	PermName        *string
	PermDescription *string
	PermGroup       *string
}

// LoadIdentity fetches a user with all roles and permissions in one round trip.
func (r *PGRepository) LoadIdentity(ctx context.Context, userID uuid.UUID) (*Identity, error) {
	rows, err := r.db.Query(ctx, loadIdentitySQL, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: load identity: %w", err)
	}
	defer rows.Close()

	var flat []identityRow
	for rows.Next() {
		var row identityRow
		if err := rows.Scan(
			&row.UserID, &row.Email, &row.FullName, &row.IsActive, &row.IsSuperuser,
			&row.RoleID, &row.RoleName, &row.RoleDisplayName, &row.RoleDescription, &row.RoleActive,
			&row.PermID, &row.PermName, &row.PermDescription, &row.PermGroup,
		); err != nil {
			return nil, fmt.Errorf("rbac: scan identity: %w", err)
		}
		flat = append(flat, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: load identity: %w", err)
	}
	return assembleIdentity(flat)
}

// assembleIdentity folds joined rows into an Identity, keeping first-seen order.
func assembleIdentity(rows []identityRow) (*Identity, error) {
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	head := rows[0]
	id := &Identity{
		UserID:      head.UserID,
		Email:       head.Email,
		FullName:    head.FullName,
		IsActive:    head.IsActive,
		IsSuperuser: head.IsSuperuser,
		Roles:       []RoleWithPermissions{},
	}
	index := make(map[int64]int)
	for _, row := range rows {
		if row.RoleID == nil {
			continue
		}
		pos, ok := index[*row.RoleID]
		if !ok {
			id.Roles = append(id.Roles, RoleWithPermissions{
				Role: Role{
					ID:          *row.RoleID,
					Name:        deref(row.RoleName),
					DisplayName: deref(row.RoleDisplayName),
					Description: deref(row.RoleDescription),
					IsActive:    row.RoleActive != nil && *row.RoleActive,
				},
				Permissions: []Permission{},
			})
			pos = len(id.Roles) - 1
			index[*row.RoleID] = pos
		}
		if row.PermID == nil {
			continue
		}
		id.Roles[pos].Permissions = append(id.Roles[pos].Permissions, Permission{
			ID:          *row.PermID,
			Name:        deref(row.PermName),
			Description: deref(row.PermDescription),
			ModuleGroup: deref(row.PermGroup),
		})
	}
	return id, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// UserExists reports whether a user row exists.
func (r *PGRepository) UserExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("rbac: user exists: %w", err)
	}
	return exists, nil
}

const roleColumns = `id, name, display_name, description, is_active, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Description, &role.IsActive, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		if db.IsUniqueViolation(err) {
			return Role{}, fmt.Errorf("rbac: role: %w", shared.ErrDuplicate)
		}
		return Role{}, err
	}
	return role, nil
}

// ListRoles returns all roles ordered by id.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.db.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	defer rows.Close()
	roles := make([]Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	return scanRole(r.db.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

// FindRoleByName fetches a role by its technical name.
func (r *PGRepository) FindRoleByName(ctx context.Context, name string) (Role, error) {
	return scanRole(r.db.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
}

// GetRoleWithPermissions loads a role and its permissions eagerly.
func (r *PGRepository) GetRoleWithPermissions(ctx context.Context, id int64) (RoleWithPermissions, error) {
	role, err := r.GetRole(ctx, id)
	if err != nil {
		return RoleWithPermissions{}, err
	}
	rows, err := r.db.Query(ctx, `
SELECT p.id, p.name, p.description, p.module_group
FROM role_permissions rp
JOIN permissions p ON p.id = rp.permission_id
WHERE rp.role_id = $1
ORDER BY p.name`, id)
	if err != nil {
		return RoleWithPermissions{}, fmt.Errorf("rbac: role permissions: %w", err)
	}
	defer rows.Close()
	out := RoleWithPermissions{Role: role, Permissions: []Permission{}}
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.ModuleGroup); err != nil {
			return RoleWithPermissions{}, err
		}
		out.Permissions = append(out.Permissions, p)
	}
	return out, rows.Err()
}

// InsertRole creates a role row.
func (r *PGRepository) InsertRole(ctx context.Context, in RoleInput) (Role, error) {
	return scanRole(r.db.QueryRow(ctx, `
INSERT INTO roles (name, display_name, description, is_active)
VALUES ($1, $2, $3, TRUE)
RETURNING `+roleColumns, in.Name, in.DisplayName, in.Description))
}

// UpdateRole applies a partial update.
func (r *PGRepository) UpdateRole(ctx context.Context, id int64, upd RoleUpdate) (Role, error) {
	return scanRole(r.db.QueryRow(ctx, `
UPDATE roles SET
    name = COALESCE($2, name),
    display_name = COALESCE($3, display_name),
    description = COALESCE($4, description),
    is_active = COALESCE($5, is_active),
    updated_at = NOW()
WHERE id = $1
RETURNING `+roleColumns, id, upd.Name, upd.DisplayName, upd.Description, upd.IsActive))
}

// DeleteRole removes a role; join rows cascade.
func (r *PGRepository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("rbac: delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.ModuleGroup); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrNotFound
		}
		if db.IsUniqueViolation(err) {
			return Permission{}, fmt.Errorf("rbac: permission: %w", shared.ErrDuplicate)
		}
		return Permission{}, err
	}
	return p, nil
}

// ListPermissions returns the permission catalogue grouped by module.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, description, module_group FROM permissions ORDER BY module_group, name`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	defer rows.Close()
	perms := make([]Permission, 0)
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// FindPermissionByName fetches a permission by technical name.
func (r *PGRepository) FindPermissionByName(ctx context.Context, name string) (Permission, error) {
	return scanPermission(r.db.QueryRow(ctx, `SELECT id, name, description, module_group FROM permissions WHERE name = $1`, name))
}

// InsertPermission creates a permission row.
func (r *PGRepository) InsertPermission(ctx context.Context, in PermissionInput) (Permission, error) {
	return scanPermission(r.db.QueryRow(ctx, `
INSERT INTO permissions (name, description, module_group)
VALUES ($1, $2, $3)
RETURNING id, name, description, module_group`, in.Name, in.Description, in.ModuleGroup))
}

// ReplaceUserRoles swaps the user's role set. Ids without a matching role are skipped.
func (r *PGRepository) ReplaceUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("rbac: clear user roles: %w", err)
	}
	if len(roleIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
INSERT INTO user_roles (user_id, role_id)
SELECT $1, id FROM roles WHERE id = ANY($2)
ON CONFLICT DO NOTHING`, userID, roleIDs)
	if err != nil {
		return fmt.Errorf("rbac: insert user roles: %w", err)
	}
	return nil
}

// ReplaceRolePermissions swaps the role's permission set. Ids without a matching permission are skipped.
func (r *PGRepository) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("rbac: clear role permissions: %w", err)
	}
	if len(permissionIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
INSERT INTO role_permissions (role_id, permission_id)
SELECT $1, id FROM permissions WHERE id = ANY($2)
ON CONFLICT DO NOTHING`, roleID, permissionIDs)
	if err != nil {
		return fmt.Errorf("rbac: insert role permissions: %w", err)
	}
	return nil
}
