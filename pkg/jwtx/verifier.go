package jwtx

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrKeyFetch    = errors.New("jwtx: key set fetch failed")
	ErrWeakSecret  = errors.New("jwtx: secret too short")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// KeySource resolves an RSA verification key by kid.
//
// Implementations return ErrUnknownKID when the kid is not published and
// ErrKeyFetch when the key set could not be retrieved.
type KeySource interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// Header is the unverified JOSE header of a compact JWT.
type Header struct {
	Alg string `json:"alg"`
	Kid string `json:"kid,omitempty"`
	Typ string `json:"typ,omitempty"`
}

// PeekHeader decodes the header segment without checking anything else. It is
// only suitable for routing a token to the verifier that will check it.
func PeekHeader(raw string) (Header, error) {
	seg, _, ok := strings.Cut(raw, ".")
	if !ok || seg == "" {
		return Header{}, ErrMalformed
	}

	b, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return Header{}, ErrMalformed
	}

	var h Header
	if err := json.Unmarshal(b, &h); err != nil || h.Alg == "" {
		return Header{}, ErrMalformed
	}
	return h, nil
}
