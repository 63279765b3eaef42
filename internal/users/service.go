package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/sportsbet-ev/sportsbet-api/internal/auth"
	"github.com/sportsbet-ev/sportsbet-api/internal/rbac"
	"github.com/sportsbet-ev/sportsbet-api/internal/shared"
)

// ErrWrongPassword is returned when the current password does not verify.
var ErrWrongPassword = fmt.Errorf("users: current password is incorrect: %w", shared.ErrValidation)

// IdentityLoader hydrates a user with roles and permissions.
type IdentityLoader interface {
	LoadIdentity(ctx context.Context, userID uuid.UUID) (*rbac.Identity, error)
}

// SessionRevoker drops a user's refresh token. *auth.RefreshStore satisfies it.
type SessionRevoker interface {
	Revoke(ctx context.Context, userID uuid.UUID) error
}

// Service handles user business logic.
type Service struct {
	repo       RepositoryPort
	hasher     auth.PasswordHasher
	identities IdentityLoader
	sessions   SessionRevoker
	logger     *slog.Logger
}

// NewService builds Service instance. sessions may be nil when no refresh
// tokens are issued, as in the seeder.
func NewService(repo RepositoryPort, hasher auth.PasswordHasher, identities IdentityLoader, sessions SessionRevoker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, hasher: hasher, identities: identities, sessions: sessions, logger: logger}
}

// Register creates an active, non-superuser account.
func (s *Service) Register(ctx context.Context, req Registration) (User, error) {
	email := strings.TrimSpace(req.Email)
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	u, err := s.repo.Create(ctx, newUser{
		Email:        email,
		EmailKey:     auth.NormalizeEmail(email),
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: hash,
	})
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user registered", slog.String("user_id", u.ID.String()))
	return u, nil
}

// Me returns the caller with roles and effective permissions freshly loaded.
func (s *Service) Me(ctx context.Context, id uuid.UUID) (*rbac.Identity, error) {
	return s.identities.LoadIdentity(ctx, id)
}

// UpdateProfile changes the caller's email or name.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, upd ProfileUpdate) (User, error) {
	var email, emailKey, fullName *string
	if upd.Email != nil {
		e := strings.TrimSpace(*upd.Email)
		k := auth.NormalizeEmail(e)
		email, emailKey = &e, &k
	}
	if upd.FullName != nil {
		n := strings.TrimSpace(*upd.FullName)
		fullName = &n
	}
	return s.repo.UpdateProfile(ctx, id, email, emailKey, fullName)
}

// ChangePassword verifies the current password, stores a new hash and revokes
// the user's refresh token.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, upd PasswordUpdate) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo RepositoryPort) error {
		current, err := repo.PasswordHash(ctx, id)
		if err != nil {
			return err
		}
		if !s.hasher.Verify(upd.CurrentPassword, current) {
			return ErrWrongPassword
		}
		hash, err := s.hasher.Hash(upd.NewPassword)
		if err != nil {
			return fmt.Errorf("users: hash password: %w", err)
		}
		return repo.SetPasswordHash(ctx, id, hash)
	})
	if err != nil {
		return err
	}
	if s.sessions != nil {
		if err := s.sessions.Revoke(ctx, id); err != nil {
			return fmt.Errorf("users: revoke sessions: %w", err)
		}
	}
	s.logger.Info("password changed", slog.String("user_id", id.String()))
	return nil
}

// List returns a page of users with their roles.
func (s *Service) List(ctx context.Context, page, perPage int) (Page, error) {
	page, perPage = shared.NormalizePage(page, perPage)
	p := shared.Pagination{Page: page, PerPage: perPage}
	items, total, err := s.repo.List(ctx, perPage, p.Offset())
	if err != nil {
		return Page{}, err
	}
	return Page{Items: items, Pagination: shared.NewPagination(page, perPage, total)}, nil
}

// Get returns any user with roles and permissions.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*rbac.Identity, error) {
	ident, err := s.identities.LoadIdentity(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, ErrNotFound
	}
	return ident, err
}

// AdminUpdate applies a superuser edit and returns the re-hydrated identity.
func (s *Service) AdminUpdate(ctx context.Context, id uuid.UUID, upd AdminUpdate) (*rbac.Identity, error) {
	if upd.FullName != nil {
		n := strings.TrimSpace(*upd.FullName)
		upd.FullName = &n
	}
	if _, err := s.repo.UpdateFlags(ctx, id, upd); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}
