package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken covers bad signatures, unparsable payloads and malformed subjects.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrTokenExpired is returned once the clock reaches the encoded expiry.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
)

func init() {
	// exp and iat are encoded with sub-second precision so a token lives for
	// its full ttl instead of the ttl rounded down to the second.
	jwt.TimePrecision = time.Microsecond
}

// MinSecretLength is the smallest accepted HMAC secret, in bytes.
const MinSecretLength = 32

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// Claims represents JWT token claims.
type Claims struct {
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HMAC JWTs bound to a user id.
type TokenIssuer struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	now    func() time.Time
}

// NewTokenIssuer builds an issuer for HS256, HS384 or HS512.
func NewTokenIssuer(secret, algorithm string) (*TokenIssuer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: jwt secret must be at least %d bytes", MinSecretLength)
	}
	var method *jwt.SigningMethodHMAC
	switch algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("auth: unsupported jwt algorithm %q", algorithm)
	}
	return &TokenIssuer{secret: []byte(secret), method: method, now: time.Now}, nil
}

// WithClock returns a copy of the issuer reading time from now.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	cp := *t
	cp.now = now
	return &cp
}

// Issue signs an access token for subject valid for ttl.
func (t *TokenIssuer) Issue(subject uuid.UUID, ttl time.Duration) (string, error) {
	token, _, err := t.IssueType(subject, AccessToken, ttl)
	return token, err
}

// IssueType signs a token of the given type and returns it with its unique id.
func (t *TokenIssuer) IssueType(subject uuid.UUID, typ TokenType, ttl time.Duration) (string, string, error) {
	now := t.now()
	jti := uuid.NewString()
	claims := Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
	if err != nil {
		return "", "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, jti, nil
}

// Verify checks an access token and returns its subject.
func (t *TokenIssuer) Verify(token string) (uuid.UUID, error) {
	claims, err := t.Parse(token, AccessToken)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(claims.Subject), nil
}

// Parse validates signature, expiry, subject and type, returning the claims.
func (t *TokenIssuer) Parse(token string, want TokenType) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{t.method.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp", ErrInvalidToken)
	}
	if !t.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: malformed subject", ErrInvalidToken)
	}
	if claims.Type != want {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrInvalidToken, claims.Type)
	}
	return claims, nil
}
