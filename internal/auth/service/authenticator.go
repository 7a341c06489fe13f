package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/tokenauth/internal/auth/domain"
	"github.com/aussiebroadwan/tokenauth/internal/auth/store"
	"github.com/aussiebroadwan/tokenauth/pkg/cryptox"
	"github.com/aussiebroadwan/tokenauth/pkg/jwtx"
	"github.com/aussiebroadwan/tokenauth/pkg/slogx"
)

// cognitoSessionKinds are purged when a Cognito user logs out.
var cognitoSessionKinds = []domain.TokenKind{domain.KindAccess, domain.KindRefresh, domain.KindIDToken}

type AuthenticatorOptions struct {
	// Enable2FA makes every login pass Verify2FA before tokens are issued.
	// Users without a confirmed authenticator app get its setup data with
	// the pending result.
	Enable2FA bool

	// RotateRefresh blacklists a refresh token on use and hands out a new one.
	RotateRefresh bool
}

// Authenticator drives a login from the primary credential to issued
// tokens, and answers "who is this bearer" for every later request.
type Authenticator struct {
	Tokens  *TokenService
	TOTP    *TOTPService
	Metrics *Metrics

	// Google and Cognito are optional; provider specific logout and bearer
	// routing only happen when they are set.
	Google  *GoogleVerifier
	Cognito *CognitoVerifier

	opts      AuthenticatorOptions
	verifiers map[domain.AuthProvider]Verifier
}

func NewAuthenticator(tokens *TokenService, totp *TOTPService, opts AuthenticatorOptions, verifiers ...Verifier) *Authenticator {
	a := &Authenticator{
		Tokens:    tokens,
		TOTP:      totp,
		opts:      opts,
		verifiers: make(map[domain.AuthProvider]Verifier, len(verifiers)),
	}
	for _, v := range verifiers {
		a.verifiers[v.Provider()] = v
		switch tv := v.(type) {
		case *GoogleVerifier:
			a.Google = tv
		case *CognitoVerifier:
			a.Cognito = tv
		}
	}
	return a
}

// Providers lists the configured login providers.
func (a *Authenticator) Providers() []domain.AuthProvider {
	out := make([]domain.AuthProvider, 0, len(a.verifiers))
	for p := range a.verifiers {
		out = append(out, p)
	}
	return out
}

// Login checks c with its provider's verifier and then, in order: email
// verification, the second factor, and finally issues a token pair.
func (a *Authenticator) Login(ctx context.Context, c Credentials) (domain.LoginResult, error) {
	res, err := a.login(ctx, c)
	a.Metrics.login(string(c.Provider), string(res.State))
	return res, err
}

func (a *Authenticator) login(ctx context.Context, c Credentials) (domain.LoginResult, error) {
	rejected := domain.LoginResult{State: domain.StateRejected}

	v, ok := a.verifiers[c.Provider]
	if !ok {
		return rejected, ErrUnsupportedProvider
	}

	id, err := v.Verify(ctx, c)
	if err != nil {
		return rejected, err
	}
	user := id.User
	ctx = slogx.WithUserID(ctx, user.ID)

	if err := a.keepProviderTokens(ctx, id); err != nil {
		return rejected, err
	}

	if !user.IsEmailVerified {
		return domain.LoginResult{
			State:  domain.StateAwaitingEmailVerification,
			UserID: user.ID,
		}, nil
	}

	if a.secondFactorRequired() {
		res := domain.LoginResult{
			State:       domain.StateAwaitingSecondFactor,
			UserID:      user.ID,
			Requires2FA: true,
		}
		if user.TOTPPending() {
			setup, err := a.TOTP.Enroll(ctx, user.ID)
			if err != nil {
				return rejected, err
			}
			res.TOTPSetup = &setup
		}
		return res, nil
	}

	pair, err := a.Tokens.IssuePair(ctx, user.ID)
	if err != nil {
		return rejected, err
	}
	slogx.FromContext(ctx).Info("login succeeded", "provider", c.Provider)

	return domain.LoginResult{
		State:  domain.StateAuthenticated,
		UserID: user.ID,
		Tokens: &pair,
	}, nil
}

func (a *Authenticator) secondFactorRequired() bool {
	return a.opts.Enable2FA && a.TOTP != nil
}

func (a *Authenticator) keepProviderTokens(ctx context.Context, id VerifiedIdentity) error {
	if id.ProviderRefreshToken != "" {
		_, err := a.Tokens.Mirror(ctx, id.User.ID, domain.KindGoogle,
			cryptox.FingerprintToken(id.ProviderRefreshToken), id.ProviderRefreshToken, id.ProviderRefreshExpiry)
		if err != nil {
			return err
		}
	}
	if id.IDToken != "" {
		_, err := a.Tokens.Mirror(ctx, id.User.ID, domain.KindIDToken, id.IDTokenJTI, "", id.IDTokenExpiry)
		if err != nil {
			return err
		}
	}
	return nil
}

// Verify2FA completes a login that stopped at StateAwaitingSecondFactor.
// A wrong code changes nothing, so the user can simply try again.
func (a *Authenticator) Verify2FA(ctx context.Context, userID, code string) (domain.LoginResult, error) {
	res, err := a.verify2FA(ctx, userID, code)
	a.Metrics.login("totp", string(res.State))
	return res, err
}

func (a *Authenticator) verify2FA(ctx context.Context, userID, code string) (domain.LoginResult, error) {
	rejected := domain.LoginResult{State: domain.StateRejected}
	if !a.secondFactorRequired() {
		return rejected, ErrInvalidCode
	}

	user, err := a.Tokens.Store.Users().FindLiveUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return rejected, ErrInvalidCode
		}
		return rejected, err
	}
	if !user.IsEmailVerified || !user.HasTOTP() {
		return rejected, ErrInvalidCode
	}

	if err := a.TOTP.Verify(ctx, userID, code); err != nil {
		if errors.Is(err, ErrInvalidCode) || errors.Is(err, ErrTOTPNotEnrolled) {
			return rejected, ErrInvalidCode
		}
		return rejected, err
	}
	if !user.TOTPConfirmed {
		if err := a.Tokens.Store.Users().ConfirmTOTP(ctx, userID); err != nil {
			return rejected, fmt.Errorf("2fa: confirm secret: %w", err)
		}
	}

	pair, err := a.Tokens.IssuePair(ctx, userID)
	if err != nil {
		return rejected, err
	}
	return domain.LoginResult{
		State:  domain.StateAuthenticated,
		UserID: userID,
		Tokens: &pair,
	}, nil
}

// Refresh trades a refresh token for a new access token. With rotation on,
// the refresh token is spent and a new pair comes back.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	if a.opts.RotateRefresh {
		v, err := a.Tokens.Rotate(ctx, refreshToken)
		if err != nil {
			return domain.TokenPair{}, err
		}
		return a.Tokens.IssuePair(ctx, v.User.ID)
	}

	v, err := a.Tokens.Validate(ctx, refreshToken, domain.KindRefresh)
	if err != nil {
		return domain.TokenPair{}, err
	}
	access, err := a.Tokens.Issue(ctx, v.User.ID, domain.KindAccess, 0)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{
		AccessToken:     access.Raw,
		TokenType:       "Bearer",
		ExpiresIn:       int64(access.ExpiresAt.Sub(a.Tokens.clock()).Seconds()),
		AccessExpiresAt: access.ExpiresAt,
	}, nil
}

// Logout ends the session behind accessToken. Cognito users lose every
// session row; Google users also have their provider grant revoked, best
// effort.
func (a *Authenticator) Logout(ctx context.Context, accessToken string) error {
	if a.isCognitoBearer(accessToken) {
		p, err := a.Cognito.Authenticate(ctx, accessToken)
		if err != nil {
			return err
		}
		_, err = a.Tokens.Purge(ctx, p.UserID, cognitoSessionKinds...)
		return err
	}

	row, err := a.Tokens.revoke(ctx, accessToken)
	if err != nil {
		return err
	}
	ctx = slogx.WithUserID(ctx, row.UserID)

	user, err := a.Tokens.Store.Users().GetUserByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("logout: lookup user: %w", err)
	}

	switch user.AuthProvider {
	case domain.ProviderCognito:
		if _, err := a.Tokens.Purge(ctx, user.ID, cognitoSessionKinds...); err != nil {
			return err
		}
	case domain.ProviderGoogle:
		a.revokeGoogle(ctx, user.ID)
	}

	slogx.FromContext(ctx).Info("logout")
	return nil
}

func (a *Authenticator) revokeGoogle(ctx context.Context, userID string) {
	log := slogx.FromContext(ctx)

	row, err := a.Tokens.Store.Tokens().GetLatestUserToken(ctx, userID, domain.KindGoogle)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn("failed to load google grant", "error", err)
		}
		return
	}

	if a.Google != nil && row.Raw != "" {
		if err := a.Google.Revoke(ctx, row.Raw); err != nil {
			log.Warn("failed to revoke google grant", "error", err)
		}
	}
	if _, err := a.Tokens.Purge(ctx, userID, domain.KindGoogle); err != nil {
		log.Warn("failed to drop google grant row", "error", err)
	}
}

// ValidateRequest resolves a bearer token to its principal. RS256 tokens
// go to Cognito when it is configured and only stand in for access or ID
// tokens; everything else must be a local token of kind.
func (a *Authenticator) ValidateRequest(ctx context.Context, bearer string, kind domain.TokenKind) (domain.Principal, error) {
	if a.isCognitoBearer(bearer) {
		if kind != domain.KindAccess && kind != domain.KindIDToken {
			return domain.Principal{}, ErrKindMismatch
		}
		return a.Cognito.Authenticate(ctx, bearer)
	}

	v, err := a.Tokens.Validate(ctx, bearer, kind)
	if err != nil {
		return domain.Principal{}, err
	}
	return v.Principal(), nil
}

func (a *Authenticator) isCognitoBearer(raw string) bool {
	if a.Cognito == nil {
		return false
	}
	h, err := jwtx.PeekHeader(raw)
	return err == nil && h.Alg == "RS256"
}
