package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/tokenauth/internal/auth/service"
	"github.com/aussiebroadwan/tokenauth/pkg/authsdk"
	"github.com/aussiebroadwan/tokenauth/pkg/httpx"
	"github.com/aussiebroadwan/tokenauth/pkg/slogx"
)

var errWeakPassword = authsdk.ErrWeakPassword.WithDescription(
	fmt.Sprintf("passwords must be %d to %d characters", service.MinPasswordLength, service.MaxPasswordLength),
)

// apiError maps a service error to its response. Anything unrecognised is a
// server error.
func apiError(err error) *authsdk.APIError {
	switch {
	// ErrProviderMismatch wraps ErrInvalidCredentials, so it goes first.
	case errors.Is(err, service.ErrProviderMismatch):
		return authsdk.ErrProviderMismatch
	case errors.Is(err, service.ErrInvalidCredentials):
		return authsdk.ErrInvalidCredentials
	case errors.Is(err, service.ErrUnsupportedProvider):
		return authsdk.ErrUnsupportedProvider

	case errors.Is(err, service.ErrExpiredSignature),
		errors.Is(err, service.ErrTokenExpired):
		return authsdk.ErrTokenExpired
	case errors.Is(err, service.ErrMalformedToken),
		errors.Is(err, service.ErrKindMismatch),
		errors.Is(err, service.ErrTokenNotFound),
		errors.Is(err, service.ErrKeyNotFound):
		return authsdk.ErrInvalidToken

	case errors.Is(err, service.ErrInvalidPrincipal):
		return authsdk.ErrInvalidPrincipal
	case errors.Is(err, service.ErrInvalidCode):
		return authsdk.ErrInvalidCode
	case errors.Is(err, service.ErrTOTPNotEnrolled):
		return authsdk.ErrTOTPNotEnrolled
	case errors.Is(err, service.ErrEmailTaken):
		return authsdk.ErrEmailTaken
	case errors.Is(err, service.ErrWeakPassword):
		return errWeakPassword
	case errors.Is(err, service.ErrUpstream):
		return authsdk.ErrUpstreamUnavailable
	}
	return authsdk.ErrServerError
}

// writeServiceError logs err and writes the matching response. Details of
// err never reach the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())

	apiErr := apiError(err)
	switch apiErr.StatusCode {
	case http.StatusInternalServerError:
		log.Error("request failed", "err", err)
	case http.StatusBadGateway:
		log.Warn("upstream failure", "err", err)
	default:
		log.Info("request rejected", "code", apiErr.Code, "err", err)
	}
	apiErr.WriteError(w)
}

// writeDecodeError answers a body that httpx.DecodeJSON rejected.
func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	slogx.FromContext(r.Context()).Warn("invalid request body", "err", err)

	var verr *httpx.ValidationError
	if errors.As(err, &verr) {
		authsdk.ErrInvalidRequest.WithDescription(verr.Error()).WriteError(w)
		return
	}
	authsdk.ErrInvalidRequest.WriteError(w)
}
