package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HMAC secret NewHMAC accepts, in bytes.
const MinSecretLength = 32

// HMAC signs and verifies locally issued tokens with a shared secret.
type HMAC struct {
	method *jwt.SigningMethodHMAC
	secret []byte
	now    func() time.Time
}

// NewHMAC returns an HMAC codec for alg, one of HS256, HS384 or HS512.
func NewHMAC(alg string, secret []byte) (*HMAC, error) {
	var m *jwt.SigningMethodHMAC
	switch alg {
	case "HS256":
		m = jwt.SigningMethodHS256
	case "HS384":
		m = jwt.SigningMethodHS384
	case "HS512":
		m = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrAlgMismatch, alg)
	}

	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrWeakSecret, MinSecretLength)
	}

	return &HMAC{method: m, secret: secret, now: time.Now}, nil
}

// WithClock replaces the time source used for exp checks.
func (h *HMAC) WithClock(now func() time.Time) *HMAC {
	cp := *h
	cp.now = now
	return &cp
}

// Alg returns the JOSE algorithm name.
func (h *HMAC) Alg() string { return h.method.Alg() }

// Sign encodes claims into a compact JWT.
func (h *HMAC) Sign(c Claims) (string, error) {
	tok := jwt.NewWithClaims(h.method, c)
	s, err := tok.SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return s, nil
}

// Verify checks the signature and expiry of raw.
//
// When the signature is good but the token is past exp, the decoded claims are
// returned together with ErrExpired so callers can still act on the jti.
func (h *HMAC) Verify(raw string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{h.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(h.now),
	)

	var c Claims
	_, err := parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return h.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return c, ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Claims{}, ErrInvalidSig
	default:
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if c.ID == "" || c.UserID == "" || c.TokenType == "" {
		return Claims{}, fmt.Errorf("%w: missing required claim", ErrMalformed)
	}
	return c, nil
}
