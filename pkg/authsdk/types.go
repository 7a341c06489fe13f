package authsdk

import "time"

// ============================================================================
// Requests
// ============================================================================

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name,omitempty" validate:"max=200"`
}

// LoginRequest is the email and password login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required"`
}

// GoogleLoginRequest carries the authorization code the browser got back
// from Google. RedirectURI overrides the configured one when set.
type GoogleLoginRequest struct {
	Code        string `json:"code" validate:"required"`
	RedirectURI string `json:"redirect_uri,omitempty" validate:"omitempty,url"`
}

// CognitoLoginRequest carries either an authorization code or an id token
// the client already holds.
type CognitoLoginRequest struct {
	Code        string `json:"code,omitempty" validate:"required_without=IDToken"`
	IDToken     string `json:"id_token,omitempty" validate:"required_without=Code"`
	RedirectURI string `json:"redirect_uri,omitempty" validate:"omitempty,url"`
}

// TwoFactorVerifyRequest completes a login that answered requires_2fa.
type TwoFactorVerifyRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Code   string `json:"code" validate:"required,numeric,len=6"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// ResendVerificationRequest asks for a new verification mail. The answer is
// the same whether or not the address is known.
type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// SendOTPRequest asks for a mailed passcode. The answer is the same whether
// or not the address is known.
type SendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyOTPRequest struct {
	OTP string `json:"otp" validate:"required"`
}

type ResetPasswordOTPRequest struct {
	OTP         string `json:"otp" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// ============================================================================
// Responses
// ============================================================================

// TokenResponse is a bearer token pair. RefreshToken is empty when a refresh
// without rotation only hands out a new access token.
type TokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitzero"`
}

// Login states.
const (
	LoginStateAwaitingEmailVerification = "awaiting_email_verification"
	LoginStateAwaitingSecondFactor      = "awaiting_second_factor"
	LoginStateAuthenticated             = "authenticated"
)

// LoginResponse is the outcome of a login or of the second factor. Tokens is
// set only when State is "authenticated". TOTPSetup carries the authenticator
// app to add before calling Verify2FA when the user has not confirmed one.
type LoginResponse struct {
	State       string              `json:"state"`
	UserID      string              `json:"user_id,omitempty"`
	Requires2FA bool                `json:"requires_2fa,omitempty"`
	TOTPSetup   *TOTPEnrollResponse `json:"totp_setup,omitempty"`
	Tokens      *TokenResponse      `json:"tokens,omitempty"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// MeResponse describes the caller of GET /v1/auth/me.
type MeResponse struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	AuthProvider string    `json:"auth_provider"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TOTPEnrollResponse is shown once so the user can add the secret to an
// authenticator app.
type TOTPEnrollResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
	Issuer          string `json:"issuer"`
	Account         string `json:"account"`
	QRCode          string `json:"qr_code"` // data:image/png;base64,...
}

// StatusResponse acknowledges requests that return nothing else.
type StatusResponse struct {
	Status string `json:"status"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by /livez and /readyz. Checks is only set by
// /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
}
