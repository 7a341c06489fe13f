package service_test

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/tokenauth/internal/auth/domain"
	"github.com/aussiebroadwan/tokenauth/internal/auth/service"
	"github.com/stretchr/testify/require"
)

type accountEnv struct {
	*authEnv
	mail     *captureMailer
	accounts *service.AccountService
}

func newAccountEnv(t *testing.T) *accountEnv {
	t.Helper()
	env := newAuthEnv(t, service.AuthenticatorOptions{})
	mail := &captureMailer{}
	return &accountEnv{
		authEnv:  env,
		mail:     mail,
		accounts: &service.AccountService{Store: env.store, Tokens: env.tokens, Mailer: mail},
	}
}

func TestRegisterAndVerifyEmail(t *testing.T) {
	ctx := context.Background()
	env := newAccountEnv(t)

	u, err := env.accounts.Register(ctx, service.RegisterInput{
		Email:    "New.User@Example.com",
		Password: "correct horse",
		Name:     "New User",
	})
	require.NoError(t, err)
	require.Equal(t, "new.user@example.com", u.Email)
	require.False(t, u.IsEmailVerified)

	msg := env.mail.last(t)
	require.Equal(t, "new.user@example.com", msg.To)
	require.Equal(t, domain.KindVerifyMail, msg.Kind)

	res, err := env.auth.Login(ctx, emailLogin("new.user@example.com", "correct horse"))
	require.NoError(t, err)
	require.Equal(t, domain.StateAwaitingEmailVerification, res.State)

	verified, err := env.accounts.VerifyEmail(ctx, msg.Token)
	require.NoError(t, err)
	require.True(t, verified.IsEmailVerified)

	_, err = env.accounts.VerifyEmail(ctx, msg.Token)
	require.ErrorIs(t, err, service.ErrTokenNotFound)

	res, err = env.auth.Login(ctx, emailLogin("new.user@example.com", "correct horse"))
	require.NoError(t, err)
	require.Equal(t, domain.StateAuthenticated, res.State)
}

func TestRegisterRejects(t *testing.T) {
	ctx := context.Background()
	env := newAccountEnv(t)
	seedUser(t, env.store, "taken@example.com", userOpts{password: "correct horse"})

	tests := []struct {
		name    string
		in      service.RegisterInput
		wantErr error
	}{
		{"email taken", service.RegisterInput{Email: "TAKEN@example.com", Password: "correct horse"}, service.ErrEmailTaken},
		{"short password", service.RegisterInput{Email: "a@example.com", Password: "short"}, service.ErrWeakPassword},
		{"empty email", service.RegisterInput{Email: " ", Password: "correct horse"}, service.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.accounts.Register(ctx, tt.in)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
	require.Zero(t, env.mail.count())
}

func TestResendVerificationReplacesToken(t *testing.T) {
	ctx := context.Background()
	env := newAccountEnv(t)

	_, err := env.accounts.Register(ctx, service.RegisterInput{Email: "a@example.com", Password: "correct horse"})
	require.NoError(t, err)
	first := env.mail.last(t)

	require.NoError(t, env.accounts.ResendVerification(ctx, "a@example.com"))
	second := env.mail.last(t)
	require.NotEqual(t, first.Token, second.Token)

	_, err = env.accounts.VerifyEmail(ctx, first.Token)
	require.ErrorIs(t, err, service.ErrTokenNotFound)
	_, err = env.accounts.VerifyEmail(ctx, second.Token)
	require.NoError(t, err)

	// Verified and unknown addresses are quiet no-ops.
	require.NoError(t, env.accounts.ResendVerification(ctx, "a@example.com"))
	require.NoError(t, env.accounts.ResendVerification(ctx, "ghost@example.com"))
	require.Equal(t, 2, env.mail.count())
}

func TestForgotAndResetPassword(t *testing.T) {
	ctx := context.Background()
	env := newAccountEnv(t)
	u := seedUser(t, env.store, "alice@example.com", userOpts{password: "correct horse"})

	res, err := env.auth.Login(ctx, emailLogin("alice@example.com", "correct horse"))
	require.NoError(t, err)

	require.NoError(t, env.accounts.ForgotPassword(ctx, "nobody@example.com"))
	require.Zero(t, env.mail.count())

	require.NoError(t, env.accounts.ForgotPassword(ctx, "ALICE@example.com"))
	msg := env.mail.last(t)
	require.Equal(t, domain.KindReset, msg.Kind)

	require.ErrorIs(t, env.accounts.ResetPassword(ctx, msg.Token, "short"), service.ErrWeakPassword)
	require.NoError(t, env.accounts.ResetPassword(ctx, msg.Token, "battery staple"))
	require.ErrorIs(t, env.accounts.ResetPassword(ctx, msg.Token, "battery staple"), service.ErrTokenNotFound)

	// Every session from before the reset is gone.
	_, err = env.auth.ValidateRequest(ctx, res.Tokens.AccessToken, domain.KindAccess)
	require.ErrorIs(t, err, service.ErrTokenNotFound)
	_, err = env.auth.Refresh(ctx, res.Tokens.RefreshToken)
	require.ErrorIs(t, err, service.ErrTokenNotFound)

	_, err = env.auth.Login(ctx, emailLogin("alice@example.com", "correct horse"))
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
	res, err = env.auth.Login(ctx, emailLogin("alice@example.com", "battery staple"))
	require.NoError(t, err)
	require.Equal(t, u.ID, res.UserID)
}

func TestResetPasswordWithOTP(t *testing.T) {
	ctx := context.Background()
	env := newAccountEnv(t)
	u := seedUser(t, env.store, "alice@example.com", userOpts{password: "correct horse"})

	res, err := env.auth.Login(ctx, emailLogin("alice@example.com", "correct horse"))
	require.NoError(t, err)

	require.NoError(t, env.accounts.SendOTP(ctx, "nobody@example.com"))
	require.Zero(t, env.mail.count())

	require.NoError(t, env.accounts.SendOTP(ctx, "Alice@Example.com"))
	first := env.mail.last(t)
	require.Equal(t, domain.KindOTP, first.Kind)
	require.Equal(t, "alice@example.com", first.To)

	// A new passcode replaces the previous one.
	require.NoError(t, env.accounts.SendOTP(ctx, "alice@example.com"))
	otp := env.mail.last(t)
	require.NotEqual(t, first.Token, otp.Token)
	require.ErrorIs(t, env.accounts.VerifyOTP(ctx, first.Token), service.ErrTokenNotFound)
	require.EqualValues(t, 1, countTokens(t, env.store, u.ID, domain.KindOTP))

	// Verifying does not spend the passcode.
	require.NoError(t, env.accounts.VerifyOTP(ctx, otp.Token))
	require.NoError(t, env.accounts.VerifyOTP(ctx, otp.Token))

	require.ErrorIs(t, env.accounts.ResetPasswordWithOTP(ctx, otp.Token, "short"), service.ErrWeakPassword)
	require.NoError(t, env.accounts.ResetPasswordWithOTP(ctx, otp.Token, "battery staple"))
	require.ErrorIs(t, env.accounts.VerifyOTP(ctx, otp.Token), service.ErrTokenNotFound)
	require.ErrorIs(t, env.accounts.ResetPasswordWithOTP(ctx, otp.Token, "battery staple"), service.ErrTokenNotFound)

	_, err = env.auth.ValidateRequest(ctx, res.Tokens.AccessToken, domain.KindAccess)
	require.ErrorIs(t, err, service.ErrTokenNotFound, "reset revokes existing sessions")

	_, err = env.auth.Login(ctx, emailLogin("alice@example.com", "correct horse"))
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
	_, err = env.auth.Login(ctx, emailLogin("alice@example.com", "battery staple"))
	require.NoError(t, err)
}

func TestOTPIsNotAResetToken(t *testing.T) {
	ctx := context.Background()
	env := newAccountEnv(t)
	seedUser(t, env.store, "alice@example.com", userOpts{password: "correct horse"})

	require.NoError(t, env.accounts.ForgotPassword(ctx, "alice@example.com"))
	reset := env.mail.last(t)
	require.ErrorIs(t, env.accounts.VerifyOTP(ctx, reset.Token), service.ErrKindMismatch)
	require.ErrorIs(t, env.accounts.ResetPasswordWithOTP(ctx, reset.Token, "battery staple"), service.ErrKindMismatch)

	require.NoError(t, env.accounts.SendOTP(ctx, "alice@example.com"))
	otp := env.mail.last(t)
	require.ErrorIs(t, env.accounts.ResetPassword(ctx, otp.Token, "battery staple"), service.ErrKindMismatch)
}

func TestSendOTPIgnoresFederatedAccounts(t *testing.T) {
	env := newAccountEnv(t)
	seedUser(t, env.store, "gina@example.com", userOpts{provider: domain.ProviderGoogle})

	require.NoError(t, env.accounts.SendOTP(context.Background(), "gina@example.com"))
	require.Zero(t, env.mail.count())
}

func TestForgotPasswordIgnoresFederatedAccounts(t *testing.T) {
	env := newAccountEnv(t)
	seedUser(t, env.store, "gina@example.com", userOpts{provider: domain.ProviderGoogle})

	require.NoError(t, env.accounts.ForgotPassword(context.Background(), "gina@example.com"))
	require.Zero(t, env.mail.count())
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	env := newAccountEnv(t)
	u := seedUser(t, env.store, "alice@example.com", userOpts{password: "correct horse"})

	old, err := env.tokens.IssuePair(ctx, u.ID)
	require.NoError(t, err)

	_, err = env.accounts.ChangePassword(ctx, u.ID, "wrong", "battery staple")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = env.accounts.ChangePassword(ctx, u.ID, "correct horse", "tiny")
	require.ErrorIs(t, err, service.ErrWeakPassword)

	pair, err := env.accounts.ChangePassword(ctx, u.ID, "correct horse", "battery staple")
	require.NoError(t, err)

	_, err = env.auth.ValidateRequest(ctx, old.AccessToken, domain.KindAccess)
	require.ErrorIs(t, err, service.ErrTokenNotFound)

	_, err = env.auth.ValidateRequest(ctx, pair.AccessToken, domain.KindAccess)
	require.NoError(t, err)

	res, err := env.auth.Login(ctx, emailLogin("alice@example.com", "battery staple"))
	require.NoError(t, err)
	require.Equal(t, domain.StateAuthenticated, res.State)
}
