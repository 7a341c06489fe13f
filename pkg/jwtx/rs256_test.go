package jwtx_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokenauth/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	exampleIssuer   = "https://issuer.example.com/pool"
	exampleAudience = "client-123"
)

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return k
}

func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func registered(iss, aud string, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    iss,
		Subject:   "sub-1",
		Audience:  jwt.ClaimStrings{aud},
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
}

func TestRS256SignAndVerify(t *testing.T) {
	key := newRSAKey(t)
	keys := jwtx.NewStaticKeySet()
	keys.Add("k1", &key.PublicKey)

	v := jwtx.NewVerifierRS256(keys, exampleIssuer, exampleAudience)

	raw := signRS256(t, key, "k1", registered(exampleIssuer, exampleAudience, time.Now().Add(time.Hour)))

	var got jwt.RegisteredClaims
	require.NoError(t, v.Verify(context.Background(), raw, &got))
	require.Equal(t, "sub-1", got.Subject)
}

func TestRS256VerifyErrors(t *testing.T) {
	key := newRSAKey(t)
	other := newRSAKey(t)

	keys := jwtx.NewStaticKeySet()
	keys.Add("k1", &key.PublicKey)
	keys.Add("k2", &other.PublicKey)

	v := jwtx.NewVerifierRS256(keys, exampleIssuer, exampleAudience)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"unknown kid", signRS256(t, key, "nope", registered(exampleIssuer, exampleAudience, future)), jwtx.ErrUnknownKID},
		{"missing kid", signRS256(t, key, "", registered(exampleIssuer, exampleAudience, future)), jwtx.ErrUnknownKID},
		{"wrong issuer", signRS256(t, key, "k1", registered("https://evil", exampleAudience, future)), jwtx.ErrIssuer},
		{"wrong audience", signRS256(t, key, "k1", registered(exampleIssuer, "other", future)), jwtx.ErrAudience},
		{"expired", signRS256(t, key, "k1", registered(exampleIssuer, exampleAudience, time.Now().Add(-time.Hour))), jwtx.ErrExpired},
		{"signed by other key", signRS256(t, other, "k1", registered(exampleIssuer, exampleAudience, future)), jwtx.ErrInvalidSig},
		{"garbage", "not.a.jwt", jwtx.ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c jwt.RegisteredClaims
			require.ErrorIs(t, v.Verify(context.Background(), tt.raw, &c), tt.want)
		})
	}
}

func TestRS256RejectsHMAC(t *testing.T) {
	keys := jwtx.NewStaticKeySet()
	v := jwtx.NewVerifierRS256(keys, "", "")

	h, err := jwtx.NewHMAC("HS256", testSecret)
	require.NoError(t, err)
	raw, err := h.Sign(jwtx.NewClaims("u", "access", time.Minute, time.Now()))
	require.NoError(t, err)

	var c jwt.RegisteredClaims
	require.ErrorIs(t, v.Verify(context.Background(), raw, &c), jwtx.ErrInvalidSig)
}

func TestRS256Leeway(t *testing.T) {
	key := newRSAKey(t)
	keys := jwtx.NewStaticKeySet()
	keys.Add("k1", &key.PublicKey)

	raw := signRS256(t, key, "k1", registered("", "", time.Now().Add(-10*time.Second)))

	strict := jwtx.NewVerifierRS256(keys, "", "")
	var c jwt.RegisteredClaims
	require.ErrorIs(t, strict.Verify(context.Background(), raw, &c), jwtx.ErrExpired)

	lenient := strict.WithLeeway(time.Minute)
	require.NoError(t, lenient.Verify(context.Background(), raw, &c))
}
