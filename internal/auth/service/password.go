package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/tokenauth/internal/auth/domain"
	"github.com/aussiebroadwan/tokenauth/internal/auth/store"
	"github.com/aussiebroadwan/tokenauth/pkg/cryptox"
)

// PasswordVerifier checks email and password against the stored argon2id
// hash.
type PasswordVerifier struct {
	Store store.Store
}

func (v *PasswordVerifier) Provider() domain.AuthProvider { return domain.ProviderEmail }

func (v *PasswordVerifier) Verify(ctx context.Context, c Credentials) (VerifiedIdentity, error) {
	email := normalizeEmail(c.Email)
	if email == "" || c.Password == "" {
		return VerifiedIdentity{}, ErrInvalidCredentials
	}

	user, err := v.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Spend the same time as a real comparison.
			cryptox.BurnPasswordCheck(c.Password)
			return VerifiedIdentity{}, ErrInvalidCredentials
		}
		return VerifiedIdentity{}, fmt.Errorf("password: lookup user: %w", err)
	}

	if user.PasswordHash == nil || *user.PasswordHash == "" {
		cryptox.BurnPasswordCheck(c.Password)
		if user.AuthProvider != domain.ProviderEmail {
			return VerifiedIdentity{}, ErrProviderMismatch
		}
		return VerifiedIdentity{}, ErrInvalidCredentials
	}

	if err := cryptox.VerifyPassword(c.Password, *user.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			return VerifiedIdentity{}, fmt.Errorf("password: verify: %w", err)
		}
		return VerifiedIdentity{}, ErrInvalidCredentials
	}

	if !user.Live() {
		return VerifiedIdentity{}, ErrInvalidPrincipal
	}
	return VerifiedIdentity{User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
