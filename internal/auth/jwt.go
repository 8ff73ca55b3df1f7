// Package auth issues and verifies the bearer tokens that carry a caller's
// identity into REST handlers and websocket handshakes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ridedispatch/internal/domain"
)

// ErrInvalidToken is returned for malformed, expired or foreign tokens.
var ErrInvalidToken = fmt.Errorf("%w: invalid or expired token", domain.ErrUnauthorized)

// Claims is the token payload.
type Claims struct {
	jwt.RegisteredClaims
	Role   string `json:"role"`
	UserID string `json:"user_id"`
}

// TokenManager signs and parses HS256 tokens.
type TokenManager struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

// NewTokenManager creates a manager for the given secret.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		signingKey: []byte(secret),
		ttl:        ttl,
		now:        time.Now,
	}
}

// Issue signs a token for the identity.
func (m *TokenManager) Issue(id domain.Identity) (string, error) {
	if id.UserID == "" || !id.Role.Valid() {
		return "", fmt.Errorf("%w: identity requires user id and role", domain.ErrInvalidArgument)
	}

	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Role:   string(id.Role),
		UserID: id.UserID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Resolve verifies the token and returns the identity it carries.
func (m *TokenManager) Resolve(raw string) (domain.Identity, error) {
	if raw == "" {
		return domain.Identity{}, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.signingKey, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return domain.Identity{}, ErrInvalidToken
	}
	if !token.Valid {
		return domain.Identity{}, ErrInvalidToken
	}

	id := domain.Identity{UserID: claims.UserID, Role: domain.Role(claims.Role)}
	if id.UserID == "" || !id.Role.Valid() {
		return domain.Identity{}, ErrInvalidToken
	}
	return id, nil
}
