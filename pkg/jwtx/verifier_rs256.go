package jwtx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RS256Verifier validates JWTs signed with RS256 against keys from a
// KeySource. Issuer and audience are enforced when set.
type RS256Verifier struct {
	keys     KeySource
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// NewVerifierRS256 creates a verifier. Empty issuer or audience means the
// claim is not checked here.
func NewVerifierRS256(keys KeySource, issuer, audience string) *RS256Verifier {
	return &RS256Verifier{
		keys:     keys,
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
}

// WithLeeway allows for clock skew when checking exp and nbf.
func (v *RS256Verifier) WithLeeway(d time.Duration) *RS256Verifier {
	cp := *v
	cp.leeway = d
	return &cp
}

// WithClock replaces the time source.
func (v *RS256Verifier) WithClock(now func() time.Time) *RS256Verifier {
	cp := *v
	cp.now = now
	return &cp
}

// Verify parses raw into claims and checks signature, exp, issuer and
// audience.
func (v *RS256Verifier) Verify(ctx context.Context, raw string, claims jwt.Claims) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	_, err := jwt.NewParser(opts...).ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		// Need the kid to know which key to use
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid", ErrUnknownKID)
		}
		return v.keys.Key(ctx, kid)
	})
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrUnknownKID):
		return ErrUnknownKID
	case errors.Is(err, ErrKeyFetch):
		return fmt.Errorf("%w: %v", ErrKeyFetch, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudience
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	default:
		return fmt.Errorf("%w: %v", ErrInvalidClaim, err)
	}
}
