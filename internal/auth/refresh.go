package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RefreshStore keeps the current refresh token id per user in Redis.
// Storing only the latest id means a rotated token cannot be replayed.
type RefreshStore struct {
	client *redis.Client
}

// NewRefreshStore wraps a Redis client.
func NewRefreshStore(client *redis.Client) *RefreshStore {
	return &RefreshStore{client: client}
}

func refreshKey(userID uuid.UUID) string {
	return fmt.Sprintf("refresh_token:%s", userID)
}

// Save records jti as the user's active refresh token.
func (s *RefreshStore) Save(ctx context.Context, userID uuid.UUID, jti string, ttl time.Duration) error {
	if err := s.client.Set(ctx, refreshKey(userID), jti, ttl).Err(); err != nil {
		return fmt.Errorf("auth: save refresh token: %w", err)
	}
	return nil
}

// rotateScript swaps the stored id for a new one only when the caller
// presents the current id. KEYS[1] key, ARGV[1] old id, ARGV[2] new id,
// ARGV[3] ttl in milliseconds.
var rotateScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

// Rotate replaces oldJTI with newJTI in one atomic step. It reports false
// when oldJTI is no longer the active token, so each token rotates once.
func (s *RefreshStore) Rotate(ctx context.Context, userID uuid.UUID, oldJTI, newJTI string, ttl time.Duration) (bool, error) {
	swapped, err := rotateScript.Run(ctx, s.client, []string{refreshKey(userID)}, oldJTI, newJTI, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("auth: rotate refresh token: %w", err)
	}
	return swapped == 1, nil
}

// Revoke deletes the user's refresh token.
func (s *RefreshStore) Revoke(ctx context.Context, userID uuid.UUID) error {
	if err := s.client.Del(ctx, refreshKey(userID)).Err(); err != nil {
		return fmt.Errorf("auth: revoke refresh token: %w", err)
	}
	return nil
}
