package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/tokenauth/pkg/httpx"
)

// Error codes returned in the "error" field of every error response.
const (
	ErrorCodeInvalidRequest      = "invalid_request"
	ErrorCodeInvalidCredentials  = "invalid_credentials"
	ErrorCodeProviderMismatch    = "provider_mismatch"
	ErrorCodeUnsupportedProvider = "unsupported_provider"
	ErrorCodeInvalidToken        = "invalid_token"
	ErrorCodeTokenExpired        = "token_expired"
	ErrorCodeInvalidPrincipal    = "invalid_principal"
	ErrorCodeInvalidCode         = "invalid_code"
	ErrorCodeTOTPNotEnrolled     = "totp_not_enrolled"
	ErrorCodeEmailTaken          = "email_taken"
	ErrorCodeWeakPassword        = "weak_password"
	ErrorCodeUpstreamUnavailable = "upstream_unavailable"
	ErrorCodeRateLimited         = "rate_limit_exceeded"
	ErrorCodeServerError         = "server_error"
)

// APIError is the error body the service returns. It is used by the server to
// write responses and by the client to report them.
type APIError struct {
	// StatusCode is the HTTP status the error travels with.
	StatusCode int `json:"-"`

	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches another *APIError by code, so errors.Is(err, ErrInvalidToken)
// works on errors decoded from a response.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// WriteError writes e as a JSON response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteError(w, e.StatusCode, e.Code, e.Description)
}

// WithDescription returns a copy of e carrying desc.
func (e *APIError) WithDescription(desc string) *APIError {
	c := *e
	c.Description = desc
	return &c
}

var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required fields",
	}

	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "invalid credentials",
	}

	// ErrProviderMismatch means the email belongs to an account that signs in
	// with another provider.
	ErrProviderMismatch = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeProviderMismatch,
		Description: "this account signs in with a different provider",
	}

	ErrUnsupportedProvider = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnsupportedProvider,
		Description: "this sign-in provider is not enabled",
	}

	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the token is missing, invalid or revoked",
	}

	ErrTokenExpired = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeTokenExpired,
		Description: "the token has expired",
	}

	ErrInvalidPrincipal = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeInvalidPrincipal,
		Description: "the account is disabled",
	}

	ErrInvalidCode = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCode,
		Description: "invalid verification code",
	}

	ErrTOTPNotEnrolled = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeTOTPNotEnrolled,
		Description: "no authenticator app is enrolled",
	}

	ErrEmailTaken = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeEmailTaken,
		Description: "an account with this email already exists",
	}

	ErrWeakPassword = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeWeakPassword,
		Description: "the password does not meet the length requirements",
	}

	ErrUpstreamUnavailable = &APIError{
		StatusCode:  http.StatusBadGateway,
		Code:        ErrorCodeUpstreamUnavailable,
		Description: "the identity provider could not be reached",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// parseErrorResponse turns a non-2xx response into an *APIError. Bodies
// that are not an error object fall back to the status text.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var e APIError
	if err := json.Unmarshal(body, &e); err == nil && e.Code != "" {
		e.StatusCode = resp.StatusCode
		return &e
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
