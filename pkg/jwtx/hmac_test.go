package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokenauth/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte(strings.Repeat("s", jwtx.MinSecretLength))

func TestNewHMAC(t *testing.T) {
	for _, alg := range []string{"HS256", "HS384", "HS512"} {
		h, err := jwtx.NewHMAC(alg, testSecret)
		require.NoError(t, err)
		require.Equal(t, alg, h.Alg())
	}

	_, err := jwtx.NewHMAC("RS256", testSecret)
	require.ErrorIs(t, err, jwtx.ErrAlgMismatch)

	_, err = jwtx.NewHMAC("HS256", []byte("short"))
	require.ErrorIs(t, err, jwtx.ErrWeakSecret)
}

func TestHMACRoundTrip(t *testing.T) {
	h, err := jwtx.NewHMAC("HS256", testSecret)
	require.NoError(t, err)

	now := time.Now()
	claims := jwtx.NewClaims("01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", "access", 15*time.Minute, now)

	raw, err := h.Sign(claims)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(raw, "."))

	got, err := h.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, claims.UserID, got.UserID)
	require.Equal(t, claims.TokenType, got.TokenType)
	require.Equal(t, claims.ID, got.ID)
	require.WithinDuration(t, now.Add(15*time.Minute), got.Expiry(), time.Second)
}

func TestHMACExpiredStillYieldsClaims(t *testing.T) {
	h, err := jwtx.NewHMAC("HS256", testSecret)
	require.NoError(t, err)

	issued := time.Now().Add(-time.Hour)
	claims := jwtx.NewClaims("user-1", "refresh", time.Minute, issued)
	raw, err := h.Sign(claims)
	require.NoError(t, err)

	got, err := h.Verify(raw)
	require.ErrorIs(t, err, jwtx.ErrExpired)
	require.Equal(t, claims.ID, got.ID)
	require.Equal(t, "user-1", got.UserID)
}

func TestHMACWithClock(t *testing.T) {
	h, err := jwtx.NewHMAC("HS256", testSecret)
	require.NoError(t, err)

	now := time.Now()
	raw, err := h.Sign(jwtx.NewClaims("u", "access", time.Minute, now))
	require.NoError(t, err)

	later := h.WithClock(func() time.Time { return now.Add(2 * time.Minute) })
	_, err = later.Verify(raw)
	require.ErrorIs(t, err, jwtx.ErrExpired)

	_, err = h.Verify(raw)
	require.NoError(t, err)
}

func TestHMACRejectsTampering(t *testing.T) {
	h, err := jwtx.NewHMAC("HS256", testSecret)
	require.NoError(t, err)
	other, err := jwtx.NewHMAC("HS256", []byte(strings.Repeat("x", 40)))
	require.NoError(t, err)

	raw, err := other.Sign(jwtx.NewClaims("u", "access", time.Minute, time.Now()))
	require.NoError(t, err)

	_, err = h.Verify(raw)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)

	hs512, err := jwtx.NewHMAC("HS512", testSecret)
	require.NoError(t, err)
	raw, err = hs512.Sign(jwtx.NewClaims("u", "access", time.Minute, time.Now()))
	require.NoError(t, err)

	_, err = h.Verify(raw)
	require.Error(t, err)
}

func TestHMACRejectsGarbage(t *testing.T) {
	h, err := jwtx.NewHMAC("HS256", testSecret)
	require.NoError(t, err)

	for _, raw := range []string{"", "abc", "a.b.c", "eyJhbGciOiJIUzI1NiJ9.e30."} {
		_, err := h.Verify(raw)
		require.Error(t, err, "raw %q", raw)
		require.NotErrorIs(t, err, jwtx.ErrExpired)
	}
}

func TestHMACRequiresClaims(t *testing.T) {
	h, err := jwtx.NewHMAC("HS256", testSecret)
	require.NoError(t, err)

	raw, err := h.Sign(jwtx.Claims{})
	require.NoError(t, err)

	_, err = h.Verify(raw)
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}
