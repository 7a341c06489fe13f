package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokenauth/internal/auth/domain"
	"github.com/aussiebroadwan/tokenauth/internal/auth/service"
	"github.com/aussiebroadwan/tokenauth/internal/auth/store"
	"github.com/pquerna/otp/totp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type authEnv struct {
	store  store.Store
	clock  *fakeClock
	tokens *service.TokenService
	totp   *service.TOTPService
	auth   *service.Authenticator
}

func newAuthEnv(t *testing.T, opts service.AuthenticatorOptions, extra ...service.Verifier) *authEnv {
	t.Helper()
	s := newStore(t)
	clock := newFakeClock()
	tokens := newTokenService(t, s, clock)
	tp := service.NewTOTPService(s, "TokenAuth").WithClock(clock.Now)

	verifiers := append([]service.Verifier{&service.PasswordVerifier{Store: s}}, extra...)
	return &authEnv{
		store:  s,
		clock:  clock,
		tokens: tokens,
		totp:   tp,
		auth:   service.NewAuthenticator(tokens, tp, opts, verifiers...),
	}
}

func emailLogin(email, password string) service.Credentials {
	return service.Credentials{Provider: domain.ProviderEmail, Email: email, Password: password}
}

func TestLoginWithoutSecondFactor(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t, service.AuthenticatorOptions{})
	env.auth.Metrics = service.NewMetrics(prometheus.NewRegistry())
	u := seedUser(t, env.store, "alice@example.com", userOpts{password: "correct horse"})

	res, err := env.auth.Login(ctx, emailLogin("  Alice@Example.com ", "correct horse"))
	require.NoError(t, err)
	require.Equal(t, domain.StateAuthenticated, res.State)
	require.Equal(t, u.ID, res.UserID)
	require.False(t, res.Requires2FA)
	require.NotNil(t, res.Tokens)

	require.WithinDuration(t, env.clock.Now().Add(15*time.Minute), res.Tokens.AccessExpiresAt, 0)
	require.WithinDuration(t, env.clock.Now().Add(7*24*time.Hour), res.Tokens.RefreshExpiresAt, 0)

	p, err := env.auth.ValidateRequest(ctx, res.Tokens.AccessToken, domain.KindAccess)
	require.NoError(t, err)
	require.Equal(t, u.ID, p.UserID)

	require.InDelta(t, 1, testutil.ToFloat64(env.auth.Metrics.Logins.WithLabelValues("email", "authenticated")), 0)
}

func TestLoginRejections(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t, service.AuthenticatorOptions{})
	seedUser(t, env.store, "alice@example.com", userOpts{password: "correct horse"})
	inactive := seedUser(t, env.store, "ivan@example.com", userOpts{password: "correct horse"})
	require.NoError(t, env.store.Users().SetActive(ctx, inactive.ID, false))
	seedUser(t, env.store, "gina@example.com", userOpts{provider: domain.ProviderGoogle})

	tests := []struct {
		name    string
		creds   service.Credentials
		wantErr error
	}{
		{"wrong password", emailLogin("alice@example.com", "battery staple"), service.ErrInvalidCredentials},
		{"unknown email", emailLogin("nobody@example.com", "correct horse"), service.ErrInvalidCredentials},
		{"empty password", emailLogin("alice@example.com", ""), service.ErrInvalidCredentials},
		{"inactive user", emailLogin("ivan@example.com", "correct horse"), service.ErrInvalidPrincipal},
		{"federated user has no password", emailLogin("gina@example.com", "correct horse"), service.ErrProviderMismatch},
		{"provider not configured", service.Credentials{Provider: domain.ProviderCognito, IDToken: "x.y.z"}, service.ErrUnsupportedProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.auth.Login(ctx, tt.creds)
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, domain.StateRejected, res.State)
			require.Nil(t, res.Tokens)
		})
	}
}

func TestLoginAwaitingEmailVerification(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t, service.AuthenticatorOptions{Enable2FA: true})
	u := seedUser(t, env.store, "alice@example.com", userOpts{password: "correct horse", unverified: true})

	res, err := env.auth.Login(ctx, emailLogin("alice@example.com", "correct horse"))
	require.NoError(t, err)
	require.Equal(t, domain.StateAwaitingEmailVerification, res.State)
	require.Nil(t, res.Tokens)
	require.Zero(t, countTokens(t, env.store, u.ID, domain.KindAccess))
}

func TestLoginWithSecondFactor(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t, service.AuthenticatorOptions{Enable2FA: true})
	u := seedUser(t, env.store, "alice@example.com", userOpts{password: "correct horse"})

	enr, err := env.totp.Enroll(ctx, u.ID)
	require.NoError(t, err)

	res, err := env.auth.Login(ctx, emailLogin("alice@example.com", "correct horse"))
	require.NoError(t, err)
	require.Equal(t, domain.StateAwaitingSecondFactor, res.State)
	require.True(t, res.Requires2FA)
	require.Equal(t, u.ID, res.UserID)
	require.Nil(t, res.Tokens)
	require.Zero(t, countTokens(t, env.store, u.ID, domain.KindAccess))
	require.Zero(t, countTokens(t, env.store, u.ID, domain.KindRefresh))
	require.NotNil(t, res.TOTPSetup, "secret is not confirmed yet")
	require.Equal(t, enr.Secret, res.TOTPSetup.Secret)

	res, err = env.auth.Verify2FA(ctx, u.ID, "000000")
	require.ErrorIs(t, err, service.ErrInvalidCode)
	require.Equal(t, domain.StateRejected, res.State)

	code, err := totp.GenerateCode(enr.Secret, env.clock.Now())
	require.NoError(t, err)

	res, err = env.auth.Verify2FA(ctx, u.ID, code)
	require.NoError(t, err)
	require.Equal(t, domain.StateAuthenticated, res.State)
	require.NotNil(t, res.Tokens)
	require.EqualValues(t, 1, countTokens(t, env.store, u.ID, domain.KindAccess))
	require.EqualValues(t, 1, countTokens(t, env.store, u.ID, domain.KindRefresh))
}

func TestSecondFactorRequiredForUnenrolledUsers(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t, service.AuthenticatorOptions{Enable2FA: true})
	u := seedUser(t, env.store, "alice@example.com", userOpts{password: "correct horse"})

	res, err := env.auth.Login(ctx, emailLogin("alice@example.com", "correct horse"))
	require.NoError(t, err)
	require.Equal(t, domain.StateAwaitingSecondFactor, res.State)
	require.True(t, res.Requires2FA)
	require.Nil(t, res.Tokens)
	require.Zero(t, countTokens(t, env.store, u.ID, domain.KindAccess))
	require.NotNil(t, res.TOTPSetup)
	require.NotEmpty(t, res.TOTPSetup.Secret)
	require.NotEmpty(t, res.TOTPSetup.ProvisioningURI)

	// A second login before confirming hands out the same secret.
	again, err := env.auth.Login(ctx, emailLogin("alice@example.com", "correct horse"))
	require.NoError(t, err)
	require.NotNil(t, again.TOTPSetup)
	require.Equal(t, res.TOTPSetup.Secret, again.TOTPSetup.Secret)

	_, err = env.auth.Verify2FA(ctx, u.ID, "000000")
	require.ErrorIs(t, err, service.ErrInvalidCode)
	stored, err := env.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, stored.TOTPConfirmed)

	code, err := totp.GenerateCode(res.TOTPSetup.Secret, env.clock.Now())
	require.NoError(t, err)
	done, err := env.auth.Verify2FA(ctx, u.ID, code)
	require.NoError(t, err)
	require.Equal(t, domain.StateAuthenticated, done.State)
	require.NotNil(t, done.Tokens)

	stored, err = env.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, stored.TOTPConfirmed)

	// Once confirmed the secret is never returned by a login again.
	res, err = env.auth.Login(ctx, emailLogin("alice@example.com", "correct horse"))
	require.NoError(t, err)
	require.Equal(t, domain.StateAwaitingSecondFactor, res.State)
	require.Nil(t, res.TOTPSetup)
	require.Nil(t, res.Tokens)
}

func TestVerify2FADisabled(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t, service.AuthenticatorOptions{})
	u := seedUser(t, env.store, "alice@example.com", userOpts{password: "correct horse"})
	enr, err := env.totp.Enroll(ctx, u.ID)
	require.NoError(t, err)

	code, err := totp.GenerateCode(enr.Secret, env.clock.Now())
	require.NoError(t, err)

	_, err = env.auth.Verify2FA(ctx, u.ID, code)
	require.ErrorIs(t, err, service.ErrInvalidCode)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("without rotation", func(t *testing.T) {
		env := newAuthEnv(t, service.AuthenticatorOptions{})
		u := seedUser(t, env.store, "alice@example.com", userOpts{password: "correct horse"})
		pair, err := env.tokens.IssuePair(ctx, u.ID)
		require.NoError(t, err)

		next, err := env.auth.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.NotEmpty(t, next.AccessToken)
		require.Empty(t, next.RefreshToken)

		// The refresh token keeps working.
		_, err = env.auth.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)

		_, err = env.auth.Refresh(ctx, pair.AccessToken)
		require.ErrorIs(t, err, service.ErrKindMismatch)
	})

	t.Run("with rotation", func(t *testing.T) {
		env := newAuthEnv(t, service.AuthenticatorOptions{RotateRefresh: true})
		u := seedUser(t, env.store, "alice@example.com", userOpts{password: "correct horse"})
		pair, err := env.tokens.IssuePair(ctx, u.ID)
		require.NoError(t, err)

		next, err := env.auth.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.NotEmpty(t, next.RefreshToken)
		require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

		_, err = env.auth.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, service.ErrTokenNotFound)

		_, err = env.auth.Refresh(ctx, next.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("expired refresh token", func(t *testing.T) {
		env := newAuthEnv(t, service.AuthenticatorOptions{})
		u := seedUser(t, env.store, "alice@example.com", userOpts{password: "correct horse"})
		pair, err := env.tokens.IssuePair(ctx, u.ID)
		require.NoError(t, err)

		env.clock.Advance(8 * 24 * time.Hour)
		_, err = env.auth.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, service.ErrTokenExpired)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t, service.AuthenticatorOptions{})
	seedUser(t, env.store, "alice@example.com", userOpts{password: "correct horse"})

	res, err := env.auth.Login(ctx, emailLogin("alice@example.com", "correct horse"))
	require.NoError(t, err)

	require.NoError(t, env.auth.Logout(ctx, res.Tokens.AccessToken))

	_, err = env.auth.ValidateRequest(ctx, res.Tokens.AccessToken, domain.KindAccess)
	require.ErrorIs(t, err, service.ErrTokenNotFound)

	// The refresh token is a separate session credential.
	_, err = env.auth.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)

	require.ErrorIs(t, env.auth.Logout(ctx, "garbage"), service.ErrTokenNotFound)
}

func TestValidateRequestKindMismatch(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t, service.AuthenticatorOptions{})
	u := seedUser(t, env.store, "alice@example.com", userOpts{})

	pair, err := env.tokens.IssuePair(ctx, u.ID)
	require.NoError(t, err)

	_, err = env.auth.ValidateRequest(ctx, pair.AccessToken, domain.KindRefresh)
	require.ErrorIs(t, err, service.ErrKindMismatch)
}

func TestValidateRequestCognito(t *testing.T) {
	ctx := context.Background()
	f := newCognitoFixture(t)

	s := newStore(t)
	clock := newFakeClock()
	tokens := newTokenService(t, s, clock)
	cognito := service.NewCognitoVerifier(s, f.cfg)
	auth := service.NewAuthenticator(tokens, nil, service.AuthenticatorOptions{}, cognito)

	t.Run("known kid", func(t *testing.T) {
		p, err := auth.ValidateRequest(ctx, f.sign(t, f.kid, nil), domain.KindAccess)
		require.NoError(t, err)
		require.Equal(t, "dana@example.com", p.Email)
		require.Equal(t, domain.ProviderCognito, p.AuthProvider)
	})

	t.Run("unknown kid", func(t *testing.T) {
		_, err := auth.ValidateRequest(ctx, f.sign(t, "not-published", nil), domain.KindAccess)
		require.ErrorIs(t, err, service.ErrKeyNotFound)
	})

	t.Run("id token kind accepted", func(t *testing.T) {
		_, err := auth.ValidateRequest(ctx, f.sign(t, f.kid, nil), domain.KindIDToken)
		require.NoError(t, err)
	})

	t.Run("other kinds rejected", func(t *testing.T) {
		for _, kind := range []domain.TokenKind{domain.KindRefresh, domain.KindReset, domain.KindVerifyMail, domain.KindOTP} {
			_, err := auth.ValidateRequest(ctx, f.sign(t, f.kid, nil), kind)
			require.ErrorIs(t, err, service.ErrKindMismatch, kind)
		}
	})

	t.Run("local tokens still validate locally", func(t *testing.T) {
		u := seedUser(t, s, "alice@example.com", userOpts{})
		pair, err := tokens.IssuePair(ctx, u.ID)
		require.NoError(t, err)

		p, err := auth.ValidateRequest(ctx, pair.AccessToken, domain.KindAccess)
		require.NoError(t, err)
		require.Equal(t, u.ID, p.UserID)
	})
}

func TestCognitoLoginAndLogout(t *testing.T) {
	ctx := context.Background()
	f := newCognitoFixture(t)

	s := newStore(t)
	tokens := newTokenService(t, s, newFakeClock())
	auth := service.NewAuthenticator(tokens, nil, service.AuthenticatorOptions{}, service.NewCognitoVerifier(s, f.cfg))

	idToken := f.sign(t, f.kid, nil)
	res, err := auth.Login(ctx, service.Credentials{Provider: domain.ProviderCognito, IDToken: idToken})
	require.NoError(t, err)
	require.Equal(t, domain.StateAuthenticated, res.State)

	require.EqualValues(t, 1, countTokens(t, s, res.UserID, domain.KindIDToken))
	require.EqualValues(t, 1, countTokens(t, s, res.UserID, domain.KindAccess))
	require.EqualValues(t, 1, countTokens(t, s, res.UserID, domain.KindRefresh))

	require.NoError(t, auth.Logout(ctx, res.Tokens.AccessToken))

	require.Zero(t, countTokens(t, s, res.UserID, domain.KindIDToken))
	require.Zero(t, countTokens(t, s, res.UserID, domain.KindAccess))
	require.Zero(t, countTokens(t, s, res.UserID, domain.KindRefresh))

	_, err = auth.Refresh(ctx, res.Tokens.RefreshToken)
	require.ErrorIs(t, err, service.ErrTokenNotFound)
}

func TestGoogleLoginAndLogout(t *testing.T) {
	ctx := context.Background()
	f := newGoogleFixture(t)

	s := newStore(t)
	tokens := newTokenService(t, s, newFakeClock())
	auth := service.NewAuthenticator(tokens, nil, service.AuthenticatorOptions{}, service.NewGoogleVerifier(s, f.cfg))

	res, err := auth.Login(ctx, service.Credentials{Provider: domain.ProviderGoogle, Code: "auth-code"})
	require.NoError(t, err)
	require.Equal(t, domain.StateAuthenticated, res.State)

	row, err := s.Tokens().GetLatestUserToken(ctx, res.UserID, domain.KindGoogle)
	require.NoError(t, err)
	require.Equal(t, "google-refresh-1", row.Raw)

	require.NoError(t, auth.Logout(ctx, res.Tokens.AccessToken))
	require.Equal(t, int32(1), f.revoked.Load())
	require.Zero(t, countTokens(t, s, res.UserID, domain.KindGoogle))
}

func TestGoogleLogoutSurvivesRevokeFailure(t *testing.T) {
	ctx := context.Background()
	f := newGoogleFixture(t)

	s := newStore(t)
	tokens := newTokenService(t, s, newFakeClock())
	auth := service.NewAuthenticator(tokens, nil, service.AuthenticatorOptions{}, service.NewGoogleVerifier(s, f.cfg))

	res, err := auth.Login(ctx, service.Credentials{Provider: domain.ProviderGoogle, Code: "auth-code"})
	require.NoError(t, err)

	f.tokenStatus = 500
	require.NoError(t, auth.Logout(ctx, res.Tokens.AccessToken))

	_, err = auth.ValidateRequest(ctx, res.Tokens.AccessToken, domain.KindAccess)
	require.ErrorIs(t, err, service.ErrTokenNotFound)
}
