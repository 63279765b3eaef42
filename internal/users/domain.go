package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/sportsbet-ev/sportsbet-api/internal/rbac"
	"github.com/sportsbet-ev/sportsbet-api/internal/shared"
)

// User represents a user account for management.
type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserWithRoles is a list row in the admin user listing.
type UserWithRoles struct {
	User
	Roles []rbac.Role `json:"roles"`
}

// Page is one page of the admin user listing.
type Page struct {
	Items      []UserWithRoles   `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

// Registration is a self-service sign-up request.
type Registration struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"max=255"`
}

// ProfileUpdate changes the caller's own profile. Nil fields are left unchanged.
type ProfileUpdate struct {
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	FullName *string `json:"full_name" validate:"omitempty,max=255"`
}

// PasswordUpdate changes the caller's password after verifying the current one.
type PasswordUpdate struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// AdminUpdate is the superuser edit of another account.
type AdminUpdate struct {
	FullName    *string `json:"full_name" validate:"omitempty,max=255"`
	IsActive    *bool   `json:"is_active"`
	IsSuperuser *bool   `json:"is_superuser"`
}

// newUser is the insert shape produced by Register.
type newUser struct {
	Email        string
	EmailKey     string
	FullName     string
	PasswordHash string
}
