package domain

import "time"

// AuthProvider is the identity provider that owns a user's primary
// credential.
type AuthProvider string

const (
	ProviderEmail   AuthProvider = "email"
	ProviderGoogle  AuthProvider = "google"
	ProviderCognito AuthProvider = "cognito"
)

// Valid reports whether p is a known provider.
func (p AuthProvider) Valid() bool {
	switch p {
	case ProviderEmail, ProviderGoogle, ProviderCognito:
		return true
	}
	return false
}

type User struct {
	ID              string
	Email           string // lower-cased
	PasswordHash    *string
	Name            string
	AuthProvider    AuthProvider
	IsActive        bool
	IsDeleted       bool
	IsEmailVerified bool
	CognitoSub      *string
	TOTPSecret      *string // base32, write-once
	TOTPConfirmed   bool    // a code from TOTPSecret has been accepted
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Live reports whether the user may hold valid tokens.
func (u User) Live() bool {
	return u.IsActive && !u.IsDeleted
}

// HasTOTP reports whether a second factor has been enrolled.
func (u User) HasTOTP() bool {
	return u.TOTPSecret != nil && *u.TOTPSecret != ""
}

// TOTPPending reports whether the user still has to prove an authenticator
// app, either because none is enrolled or because no code has been accepted.
func (u User) TOTPPending() bool {
	return !u.HasTOTP() || !u.TOTPConfirmed
}

// Principal is the caller behind a validated bearer token.
type Principal struct {
	UserID       string       `json:"user_id"`
	Email        string       `json:"email"`
	Name         string       `json:"name,omitempty"`
	AuthProvider AuthProvider `json:"auth_provider"`
	TokenKind    TokenKind    `json:"token_type"`
	JTI          string       `json:"jti,omitempty"`
	ExpiresAt    time.Time    `json:"expires_at"`
}
