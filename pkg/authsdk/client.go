package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the tokenauth service. It covers the
// unauthenticated endpoints and creates Sessions for the rest.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new auth service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register creates an email account. The account cannot log in until the
// address is verified.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var out RegisterResponse
	if err := c.call(ctx, http.MethodPost, "/v1/auth/register", "", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login signs in with email and password.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	return c.login(ctx, "/v1/auth/login", LoginRequest{Email: email, Password: password})
}

// LoginGoogle completes a Google authorization code flow.
func (c *SDKClient) LoginGoogle(ctx context.Context, req GoogleLoginRequest) (*LoginResponse, error) {
	return c.login(ctx, "/v1/auth/google", req)
}

// LoginCognito signs in with a Cognito authorization code or id token.
func (c *SDKClient) LoginCognito(ctx context.Context, req CognitoLoginRequest) (*LoginResponse, error) {
	return c.login(ctx, "/v1/auth/cognito", req)
}

// Verify2FA submits the authenticator code for a login that answered
// requires_2fa.
func (c *SDKClient) Verify2FA(ctx context.Context, userID, code string) (*LoginResponse, error) {
	return c.login(ctx, "/v1/auth/2fa/verify", TwoFactorVerifyRequest{UserID: userID, Code: code})
}

func (c *SDKClient) login(ctx context.Context, path string, req any) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.call(ctx, http.MethodPost, path, "", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh trades a refresh token for a new access token. The response only
// carries a refresh token when the server rotates them.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var out TokenResponse
	err := c.call(ctx, http.MethodPost, "/v1/auth/refresh", "", RefreshRequest{RefreshToken: refreshToken}, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyEmail redeems the token from a verification mail.
func (c *SDKClient) VerifyEmail(ctx context.Context, token string) error {
	return c.call(ctx, http.MethodPost, "/v1/auth/verify-email", "", VerifyEmailRequest{Token: token}, nil, http.StatusOK)
}

// ResendVerification asks for another verification mail.
func (c *SDKClient) ResendVerification(ctx context.Context, email string) error {
	return c.call(ctx, http.MethodPost, "/v1/auth/verify-email/resend", "", ResendVerificationRequest{Email: email}, nil, http.StatusAccepted)
}

// ForgotPassword asks for a password reset mail.
func (c *SDKClient) ForgotPassword(ctx context.Context, email string) error {
	return c.call(ctx, http.MethodPost, "/v1/auth/password/forgot", "", ForgotPasswordRequest{Email: email}, nil, http.StatusAccepted)
}

// ResetPassword sets a new password with the token from a reset mail. Every
// session of the account is revoked.
func (c *SDKClient) ResetPassword(ctx context.Context, token, newPassword string) error {
	req := ResetPasswordRequest{Token: token, NewPassword: newPassword}
	return c.call(ctx, http.MethodPost, "/v1/auth/password/reset", "", req, nil, http.StatusOK)
}

// SendOTP asks for a mailed one-time passcode.
func (c *SDKClient) SendOTP(ctx context.Context, email string) error {
	return c.call(ctx, http.MethodPost, "/v1/auth/otp/send", "", SendOTPRequest{Email: email}, nil, http.StatusAccepted)
}

// VerifyOTP checks a passcode without spending it.
func (c *SDKClient) VerifyOTP(ctx context.Context, otp string) error {
	return c.call(ctx, http.MethodPost, "/v1/auth/otp/verify", "", VerifyOTPRequest{OTP: otp}, nil, http.StatusOK)
}

// ResetPasswordWithOTP sets a new password with a mailed passcode. Every
// session of the account is revoked.
func (c *SDKClient) ResetPasswordWithOTP(ctx context.Context, otp, newPassword string) error {
	req := ResetPasswordOTPRequest{OTP: otp, NewPassword: newPassword}
	return c.call(ctx, http.MethodPost, "/v1/auth/password/reset-otp", "", req, nil, http.StatusOK)
}

// GetLiveness checks if the service is alive.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.call(ctx, http.MethodGet, "/livez", "", nil, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetReadiness checks if the service is ready.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.call(ctx, http.MethodGet, "/readyz", "", nil, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}

// NewSession wraps an authenticated login. It returns nil if the login did
// not end with tokens.
func (c *SDKClient) NewSession(login *LoginResponse) *Session {
	if login == nil || login.Tokens == nil {
		return nil
	}
	return newSession(c, login.Tokens)
}

// NewSessionFromTokens creates a session from tokens obtained elsewhere.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string, expiresIn int64) *Session {
	return newSession(c, &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	})
}
