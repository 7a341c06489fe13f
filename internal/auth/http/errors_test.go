package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tokenauth/internal/auth/service"
	"github.com/aussiebroadwan/tokenauth/pkg/authsdk"
)

func TestAPIError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err        error
		wantCode   string
		wantStatus int
	}{
		{service.ErrProviderMismatch, authsdk.ErrorCodeProviderMismatch, http.StatusConflict},
		{service.ErrInvalidCredentials, authsdk.ErrorCodeInvalidCredentials, http.StatusUnauthorized},
		{service.ErrUnsupportedProvider, authsdk.ErrorCodeUnsupportedProvider, http.StatusBadRequest},
		{service.ErrExpiredSignature, authsdk.ErrorCodeTokenExpired, http.StatusUnauthorized},
		{service.ErrTokenExpired, authsdk.ErrorCodeTokenExpired, http.StatusUnauthorized},
		{service.ErrMalformedToken, authsdk.ErrorCodeInvalidToken, http.StatusUnauthorized},
		{service.ErrKindMismatch, authsdk.ErrorCodeInvalidToken, http.StatusUnauthorized},
		{service.ErrTokenNotFound, authsdk.ErrorCodeInvalidToken, http.StatusUnauthorized},
		{service.ErrKeyNotFound, authsdk.ErrorCodeInvalidToken, http.StatusUnauthorized},
		{service.ErrInvalidPrincipal, authsdk.ErrorCodeInvalidPrincipal, http.StatusForbidden},
		{service.ErrInvalidCode, authsdk.ErrorCodeInvalidCode, http.StatusUnauthorized},
		{service.ErrTOTPNotEnrolled, authsdk.ErrorCodeTOTPNotEnrolled, http.StatusConflict},
		{service.ErrEmailTaken, authsdk.ErrorCodeEmailTaken, http.StatusConflict},
		{service.ErrWeakPassword, authsdk.ErrorCodeWeakPassword, http.StatusBadRequest},
		{fmt.Errorf("google: exchange: %w", service.ErrUpstream), authsdk.ErrorCodeUpstreamUnavailable, http.StatusBadGateway},
		{errors.New("disk on fire"), authsdk.ErrorCodeServerError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			t.Parallel()

			got := apiError(tt.err)
			require.Equal(t, tt.wantCode, got.Code)
			require.Equal(t, tt.wantStatus, got.StatusCode)
			require.NotContains(t, got.Description, "disk on fire")
		})
	}
}
