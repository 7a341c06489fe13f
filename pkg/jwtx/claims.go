package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the claims carried by locally issued tokens. Only jti and exp
// are taken from the registered set, so the payload stays
// {user_id, jti, token_type, exp}.
type Claims struct {
	UserID    string `json:"user_id"`
	TokenType string `json:"token_type"`

	jwt.RegisteredClaims
}

// NewClaims builds claims for userID with a fresh jti expiring ttl after now.
func NewClaims(userID, tokenType string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        NewJTI(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// Expiry returns exp as a time, or the zero time when absent.
func (c Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
