package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokenauth/internal/auth/domain"
	"github.com/aussiebroadwan/tokenauth/internal/auth/store"
	"github.com/aussiebroadwan/tokenauth/pkg/idx"
	"golang.org/x/oauth2"
)

// federatedUser finds the account a provider identity belongs to, creating
// it on first sight.
func federatedUser(
	ctx context.Context,
	s store.Store,
	provider domain.AuthProvider,
	lookup func(ctx context.Context) (domain.User, error),
	fresh domain.User,
) (domain.User, error) {
	user, err := lookup(ctx)
	if err == nil {
		return checkFederated(user, provider)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, fmt.Errorf("%s: lookup user: %w", provider, err)
	}

	if fresh.Email == "" {
		return domain.User{}, fmt.Errorf("%w: identity has no email", ErrMalformedToken)
	}

	now := time.Now().UTC()
	fresh.ID = idx.NewAt(now).String()
	fresh.AuthProvider = provider
	fresh.IsActive = true
	fresh.CreatedAt = now
	fresh.UpdatedAt = now

	if err := s.Users().CreateUser(ctx, fresh); err != nil {
		if !errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, fmt.Errorf("%s: create user: %w", provider, err)
		}
		// Lost a race with a concurrent first login, or the email is taken
		// by another provider's account.
		user, err := lookup(ctx)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.User{}, ErrProviderMismatch
			}
			return domain.User{}, fmt.Errorf("%s: lookup user: %w", provider, err)
		}
		return checkFederated(user, provider)
	}
	return fresh, nil
}

func checkFederated(user domain.User, provider domain.AuthProvider) (domain.User, error) {
	if user.AuthProvider != provider {
		return domain.User{}, ErrProviderMismatch
	}
	if !user.Live() {
		return domain.User{}, ErrInvalidPrincipal
	}
	return user, nil
}

// upstreamContext bounds ctx by timeout and routes oauth2 and oidc traffic
// through client.
func upstreamContext(ctx context.Context, client *http.Client, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// upstreamError classifies a failed provider call. Token endpoint rejections,
// transport errors and timeouts all mean the provider could not vouch for
// the caller right now.
func upstreamError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return fmt.Errorf("%w: %s: status %d %s", ErrUpstream, op, status, re.ErrorCode)
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
}
