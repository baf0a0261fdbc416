package utils // package utils provides helpers for password hashing and token handling

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens

	"github.com/iliyamo/carefinder-api/internal/config"
)

// Token failures. Verification only ever returns ErrTokenExpired or
// ErrTokenInvalid so callers can branch with errors.Is.
var (
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenInvalid    = errors.New("token invalid")
	ErrTokenMalformed  = errors.New("token malformed")
	ErrTokenGeneration = errors.New("token generation failed")
)

// AccessClaims is the payload of an access token. The username travels in
// the "user" claim.
type AccessClaims struct {
	User string `json:"user"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. The username travels in
// the "username" claim.
type RefreshClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 tokens for a single issuer.
type TokenManager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager builds a TokenManager from the auth configuration.
func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	return &TokenManager{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
}

// WithClock swaps the time source; tests use it to mint tokens in the past.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	cp := *m
	cp.now = now
	return &cp
}

func (m *TokenManager) registered(ttl time.Duration) jwt.RegisteredClaims {
	now := m.now().UTC()
	return jwt.RegisteredClaims{
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (m *TokenManager) sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	return signed, nil
}

// IssueAccessToken signs a short-lived token carrying username in "user".
func (m *TokenManager) IssueAccessToken(username string) (string, error) {
	if len(m.secret) == 0 {
		return "", fmt.Errorf("%w: empty signing secret", ErrTokenGeneration)
	}
	return m.sign(AccessClaims{User: username, RegisteredClaims: m.registered(m.accessTTL)})
}

// SignRefreshToken signs a long-lived token carrying username in "username".
// Persisting it is the caller's job.
func (m *TokenManager) SignRefreshToken(username string) (string, error) {
	if len(m.secret) == 0 {
		return "", fmt.Errorf("%w: empty signing secret", ErrTokenGeneration)
	}
	return m.sign(RefreshClaims{Username: username, RegisteredClaims: m.registered(m.refreshTTL)})
}

// VerifyAccess validates signature, issuer and expiry of an access token.
func (m *TokenManager) VerifyAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(raw, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh validates signature, issuer and expiry of a refresh token.
func (m *TokenManager) VerifyRefresh(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(raw, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *TokenManager) parse(raw string, claims jwt.Claims) error {
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case err != nil:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	case !tok.Valid:
		return ErrTokenInvalid
	}
	return nil
}

// ExpiryOf reads the exp claim without verifying the token.
func ExpiryOf(raw string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if claims.ExpiresAt == nil {
		return 0, ErrTokenMalformed
	}
	return claims.ExpiresAt.Unix(), nil
}
