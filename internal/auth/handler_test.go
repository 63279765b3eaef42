package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/go-chi/chi/v5"

	"github.com/sportsbet-ev/sportsbet-api/internal/auth"
	"github.com/sportsbet-ev/sportsbet-api/internal/rbac"
	"github.com/sportsbet-ev/sportsbet-api/internal/shared"
	_ "github.com/sportsbet-ev/sportsbet-api/testing"
)

const secret = "handler-test-secret-at-least-32-bytes"

type stubRepo struct {
	users map[uuid.UUID]*auth.User
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	for _, u := range s.users {
		if auth.NormalizeEmail(u.Email) == auth.NormalizeEmail(email) {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

type loaderFromRepo struct{ repo *stubRepo }

func (l loaderFromRepo) LoadIdentity(ctx context.Context, id uuid.UUID) (*rbac.Identity, error) {
	u, err := l.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &rbac.Identity{UserID: u.ID, Email: u.Email, IsActive: u.IsActive}, nil
}

type fixture struct {
	router  http.Handler
	service *auth.Service
	user    *auth.User
	redis   *miniredis.Miniredis
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &auth.User{ID: uuid.New(), Email: "User@Test.local", PasswordHash: string(hash), IsActive: true}
	repo := &stubRepo{users: map[uuid.UUID]*auth.User{user.ID: user}}

	tokens, err := auth.NewTokenIssuer(secret, "HS256")
	require.NoError(t, err)
	svc := auth.NewService(auth.ServiceParams{
		Repo:       repo,
		Hasher:     auth.NewBcryptHasher(bcrypt.MinCost),
		Tokens:     tokens,
		Refresh:    auth.NewRefreshStore(client),
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
	mw := auth.Middleware{Resolver: auth.NewResolver(tokens, loaderFromRepo{repo: repo})}
	handler := auth.NewHandler(nil, svc, mw, nil)

	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return fixture{router: r, service: svc, user: user, redis: mr}
}

func (f fixture) post(t *testing.T, path, contentType, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodePair(t *testing.T, rec *httptest.ResponseRecorder) auth.TokenPair {
	t.Helper()
	var pair auth.TokenPair
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&pair))
	return pair
}

func TestLoginWithForm(t *testing.T) {
	f := newFixture(t)
	form := url.Values{"username": {"user@test.LOCAL"}, "password": {"correctpass"}}

	rec := f.post(t, "/auth/login", "application/x-www-form-urlencoded", form.Encode(), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pair := decodePair(t, rec)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.NotEmpty(t, pair.AccessToken)
	assert.EqualValues(t, 1800, pair.ExpiresIn)
	assert.True(t, f.redis.Exists("refresh_token:"+f.user.ID.String()))
}

func TestLoginWithJSON(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, "/auth/login", "application/json", `{"email":"user@test.local","password":"correctpass"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, "/auth/login", "application/json", `{"email":"user@test.local","password":"wrongpass"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.post(t, "/auth/login", "application/json", `{"email":"nobody@test.local","password":"correctpass"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginInactiveUser(t *testing.T) {
	f := newFixture(t)
	f.user.IsActive = false
	rec := f.post(t, "/auth/login", "application/json", `{"email":"user@test.local","password":"correctpass"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginValidation(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, "/auth/login", "application/json", `{"email":"not-an-email","password":""}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	f := newFixture(t)
	login := decodePair(t, f.post(t, "/auth/login", "application/json", `{"email":"user@test.local","password":"correctpass"}`, ""))

	rec := f.post(t, "/auth/refresh", "application/json", `{"refresh_token":"`+login.RefreshToken+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decodePair(t, rec)
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	rec = f.post(t, "/auth/refresh", "application/json", `{"refresh_token":"`+login.RefreshToken+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "a rotated refresh token cannot be replayed")

	rec = f.post(t, "/auth/refresh", "application/json", `{"refresh_token":"`+login.AccessToken+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "access tokens are not refresh tokens")
}

func TestRefreshTokenIsSingleUseUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	login, err := f.service.Login(context.Background(), "user@test.local", "correctpass")
	require.NoError(t, err)

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.service.Refresh(context.Background(), login.RefreshToken); err == nil {
				accepted.Add(1)
			} else {
				assert.ErrorIs(t, err, shared.ErrUnauthenticated)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, accepted.Load())
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	f := newFixture(t)
	login := decodePair(t, f.post(t, "/auth/login", "application/json", `{"email":"user@test.local","password":"correctpass"}`, ""))

	rec := f.post(t, "/auth/logout", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.post(t, "/auth/logout", "", "", login.AccessToken)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, f.redis.Exists("refresh_token:"+f.user.ID.String()))

	rec = f.post(t, "/auth/refresh", "application/json", `{"refresh_token":"`+login.RefreshToken+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	f.redis.Close()
	_, err := f.service.Login(context.Background(), "user@test.local", "correctpass")
	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrInvalidCredentials)
}
