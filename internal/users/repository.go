package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sportsbet-ev/sportsbet-api/internal/platform/db"
	"github.com/sportsbet-ev/sportsbet-api/internal/rbac"
	"github.com/sportsbet-ev/sportsbet-api/internal/shared"
)

// ErrNotFound indicates that the user does not exist.
var ErrNotFound = fmt.Errorf("users: %w", shared.ErrNotFound)

// ErrEmailTaken is returned when an email key is already registered.
var ErrEmailTaken = fmt.Errorf("users: email already registered: %w", shared.ErrDuplicate)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error
	Create(ctx context.Context, u newUser) (User, error)
	Get(ctx context.Context, id uuid.UUID) (User, error)
	PasswordHash(ctx context.Context, id uuid.UUID) (string, error)
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	UpdateProfile(ctx context.Context, id uuid.UUID, email, emailKey, fullName *string) (User, error)
	UpdateFlags(ctx context.Context, id uuid.UUID, upd AdminUpdate) (User, error)
	List(ctx context.Context, limit, offset int) ([]UserWithRoles, int, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
	db   db.DBTX
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, db: pool}
}

// WithTx runs fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Repository{pool: r.pool, db: tx})
	})
}

const userColumns = `id, email, full_name, is_active, is_superuser, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.IsActive, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return User{}, ErrNotFound
	case db.IsUniqueViolation(err):
		return User{}, ErrEmailTaken
	case err != nil:
		return User{}, fmt.Errorf("users: scan: %w", err)
	}
	return u, nil
}

// Create inserts an active, non-superuser account.
func (r *Repository) Create(ctx context.Context, u newUser) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `
INSERT INTO users (id, email, email_key, full_name, password_hash, is_active, is_superuser)
VALUES ($1, $2, $3, $4, $5, TRUE, FALSE)
RETURNING `+userColumns, uuid.New(), u.Email, u.EmailKey, u.FullName, u.PasswordHash))
}

// Get fetches a user by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// PasswordHash returns the stored hash of a user.
func (r *Repository) PasswordHash(ctx context.Context, id uuid.UUID) (string, error) {
	var hash string
	err := r.db.QueryRow(ctx, `SELECT password_hash FROM users WHERE id = $1`, id).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return hash, err
}

// SetPasswordHash replaces the stored hash.
func (r *Repository) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("users: set password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile applies the non-nil profile fields.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, email, emailKey, fullName *string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `
UPDATE users SET
    email = COALESCE($2, email),
    email_key = COALESCE($3, email_key),
    full_name = COALESCE($4, full_name),
    updated_at = NOW()
WHERE id = $1
RETURNING `+userColumns, id, email, emailKey, fullName))
}

// UpdateFlags applies an admin edit.
func (r *Repository) UpdateFlags(ctx context.Context, id uuid.UUID, upd AdminUpdate) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `
UPDATE users SET
    full_name = COALESCE($2, full_name),
    is_active = COALESCE($3, is_active),
    is_superuser = COALESCE($4, is_superuser),
    updated_at = NOW()
WHERE id = $1
RETURNING `+userColumns, id, upd.FullName, upd.IsActive, upd.IsSuperuser))
}

// List returns a page of users ordered by email, with their roles loaded in one extra query.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]UserWithRoles, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count: %w", err)
	}
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY email_key LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	items := make([]UserWithRoles, 0, limit)
	index := make(map[uuid.UUID]int)
	ids := make([]string, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		index[u.ID] = len(items)
		ids = append(ids, u.ID.String())
		items = append(items, UserWithRoles{User: u, Roles: []rbac.Role{}})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()
	if len(ids) == 0 {
		return items, total, nil
	}

	roleRows, err := r.db.Query(ctx, `
SELECT ur.user_id, r.id, r.name, r.display_name, r.description, r.is_active, r.created_at, r.updated_at
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id
WHERE ur.user_id = ANY($1::uuid[])
ORDER BY r.id`, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list roles: %w", err)
	}
	defer roleRows.Close()
	for roleRows.Next() {
		var userID uuid.UUID
		var role rbac.Role
		if err := roleRows.Scan(&userID, &role.ID, &role.Name, &role.DisplayName, &role.Description, &role.IsActive, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, 0, err
		}
		if i, ok := index[userID]; ok {
			items[i].Roles = append(items[i].Roles, role)
		}
	}
	return items, total, roleRows.Err()
}

var _ RepositoryPort = (*Repository)(nil)
