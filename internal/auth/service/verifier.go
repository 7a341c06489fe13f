package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/tokenauth/internal/auth/domain"
)

// Credentials is what a client presents to log in. Which fields matter
// depends on Provider.
type Credentials struct {
	Provider domain.AuthProvider

	// email
	Email    string
	Password string

	// google and cognito authorization code flows
	Code        string
	RedirectURI string

	// cognito, when the client already holds an id token
	IDToken string
}

// VerifiedIdentity is a user whose primary credential checked out, together
// with any provider credential worth keeping.
type VerifiedIdentity struct {
	User domain.User

	ProviderRefreshToken  string
	ProviderRefreshExpiry time.Time

	IDToken       string
	IDTokenJTI    string
	IDTokenExpiry time.Time
}

// Verifier checks a primary credential for one provider.
type Verifier interface {
	Provider() domain.AuthProvider
	Verify(ctx context.Context, c Credentials) (VerifiedIdentity, error)
}
