// internal/common/auth/jwt.go
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the claims expected on a realtime handshake token.
type SessionClaims struct {
	UserID string `json:"userId"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

const (
	RoleUser     = "user"
	RoleObserver = "observer"
	RoleAdmin    = "admin"
)

// Validator verifies handshake credentials before a connection is registered.
type Validator struct {
	secret []byte
}

func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// Validate parses and verifies a token string and returns its claims.
// Tokens signed with anything but HMAC are rejected.
func (v *Validator) Validate(tokenStr string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token invalid")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token missing userId claim")
	}
	return claims, nil
}

// IsObserver reports whether the claims grant an observer session.
func (c *SessionClaims) IsObserver() bool {
	return c.Role == RoleAdmin || c.Role == RoleObserver
}

// Sign issues a token for the given identity. Used by tests and tooling.
func (v *Validator) Sign(userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
