package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sportsbet-ev/sportsbet-api/internal/shared"
)

// ServiceParams groups the collaborators of Service.
type ServiceParams struct {
	Repo       Repository
	Hasher     PasswordHasher
	Tokens     *TokenIssuer
	Refresh    *RefreshStore
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Logger     *slog.Logger
}

// Service wraps authentication business rules.
type Service struct {
	repo       Repository
	hasher     PasswordHasher
	tokens     *TokenIssuer
	refresh    *RefreshStore
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *slog.Logger
}

// NewService constructs a new Service.
func NewService(p ServiceParams) *Service {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       p.Repo,
		hasher:     p.Hasher,
		tokens:     p.Tokens,
		refresh:    p.Refresh,
		accessTTL:  p.AccessTTL,
		refreshTTL: p.RefreshTTL,
		logger:     logger,
	}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and returns a fresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return TokenPair{}, err
	}
	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	s.logger.Info("user login", slog.String("user_id", user.ID.String()))
	return pair, nil
}

// Refresh rotates a refresh token. The presented token is single use: of
// several concurrent calls with the same token at most one succeeds.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.Parse(refreshToken, RefreshToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %w", shared.ErrUnauthenticated, err)
	}
	userID := uuid.MustParse(claims.Subject)
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return TokenPair{}, ErrUserNotFound
		}
		return TokenPair{}, err
	}
	if !user.IsActive {
		return TokenPair{}, ErrInactiveUser
	}
	pair, jti, err := s.signPair(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	ok, err := s.refresh.Rotate(ctx, user.ID, claims.ID, jti, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	if !ok {
		return TokenPair{}, fmt.Errorf("%w: refresh token revoked", shared.ErrUnauthenticated)
	}
	return pair, nil
}

// Logout revokes the user's refresh token. Access tokens expire on their own.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.refresh.Revoke(ctx, userID)
}

func (s *Service) issuePair(ctx context.Context, userID uuid.UUID) (TokenPair, error) {
	pair, jti, err := s.signPair(userID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.refresh.Save(ctx, userID, jti, s.refreshTTL); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func (s *Service) signPair(userID uuid.UUID) (TokenPair, string, error) {
	access, err := s.tokens.Issue(userID, s.accessTTL)
	if err != nil {
		return TokenPair{}, "", err
	}
	refresh, jti, err := s.tokens.IssueType(userID, RefreshToken, s.refreshTTL)
	if err != nil {
		return TokenPair{}, "", err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.accessTTL / time.Second),
	}, jti, nil
}
