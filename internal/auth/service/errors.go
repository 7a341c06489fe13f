package service

import (
	"errors"
	"fmt"
)

// The error codes double as the wire error strings the HTTP layer returns.
var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrMalformedToken     = errors.New("malformed_token")
	ErrExpiredSignature   = errors.New("expired_signature")
	ErrKindMismatch       = errors.New("token_kind_mismatch")
	ErrTokenNotFound      = errors.New("token_not_found")
	ErrTokenExpired       = errors.New("token_expired")
	ErrInvalidPrincipal   = errors.New("invalid_principal")
	ErrInvalidCode        = errors.New("invalid_code")
	ErrUpstream           = errors.New("upstream_unavailable")
	ErrKeyNotFound        = errors.New("key_not_found")

	ErrProviderMismatch    = fmt.Errorf("%w: account uses a different sign-in provider", ErrInvalidCredentials)
	ErrUnsupportedProvider = errors.New("unsupported_provider")
	ErrEmailTaken          = errors.New("email_taken")
	ErrWeakPassword        = errors.New("weak_password")
	ErrTOTPNotEnrolled     = errors.New("totp_not_enrolled")
)
