package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sportsbet-ev/sportsbet-api/internal/rbac"
	"github.com/sportsbet-ev/sportsbet-api/internal/shared"
)

var (
	// ErrUserNotFound means the token subject no longer exists.
	ErrUserNotFound = fmt.Errorf("%w: user not found", shared.ErrUnauthenticated)
	// ErrInactiveUser means the token subject has been disabled.
	ErrInactiveUser = fmt.Errorf("%w: user inactive", shared.ErrUnauthenticated)
)

// IdentityLoader loads a user with roles and permissions in a single fetch.
type IdentityLoader interface {
	LoadIdentity(ctx context.Context, userID uuid.UUID) (*rbac.Identity, error)
}

// Resolver turns a bearer token into a hydrated identity once per request.
type Resolver struct {
	tokens *TokenIssuer
	loader IdentityLoader
}

// NewResolver constructs a Resolver.
func NewResolver(tokens *TokenIssuer, loader IdentityLoader) *Resolver {
	return &Resolver{tokens: tokens, loader: loader}
}

// Resolve returns the identity bound to token. An empty token is anonymous:
// nil identity and nil error. Every token or subject problem wraps
// shared.ErrUnauthenticated; anything else is a server failure.
func (r *Resolver) Resolve(ctx context.Context, token string) (*rbac.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	userID, err := r.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrUnauthenticated, err)
	}
	id, err := r.loader.LoadIdentity(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth: resolve identity: %w", err)
	}
	if !id.IsActive {
		return nil, ErrInactiveUser
	}
	return id, nil
}
