package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSecret = errors.New("JWT_SECRET is not configured")
	ErrInvalidToken  = errors.New("invalid token")
)

type Claims struct {
	PrincipalID string `json:"id"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock replaces the time source used for issuing and validating tokens.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

// Sign creates a new session token for the given principal id.
func (m *TokenManager) Sign(id string) (string, error) {
	if len(m.secret) == 0 {
		return "", ErrMissingSecret
	}
	issuedAt := m.now()
	claims := &Claims{
		PrincipalID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify checks signature, algorithm and expiry. Every failure wraps
// ErrInvalidToken; an expired token also matches jwt.ErrTokenExpired.
func (m *TokenManager) Verify(tokenStr string) (*Claims, error) {
	if len(m.secret) == 0 {
		return nil, ErrMissingSecret
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.PrincipalID == "" || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// TTL is the lifetime of issued tokens.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}
