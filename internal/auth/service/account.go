package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/tokenauth/internal/auth/domain"
	"github.com/aussiebroadwan/tokenauth/internal/auth/store"
	"github.com/aussiebroadwan/tokenauth/pkg/cryptox"
	"github.com/aussiebroadwan/tokenauth/pkg/idx"
	"github.com/aussiebroadwan/tokenauth/pkg/slogx"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// sessionKinds are revoked when a password changes.
var sessionKinds = []domain.TokenKind{domain.KindAccess, domain.KindRefresh}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// AccountService covers the email account lifecycle around login:
// registration, email verification and password recovery by reset link or
// mailed passcode.
type AccountService struct {
	Store  store.Store
	Tokens *TokenService
	Mailer Mailer
}

func checkPassword(pw string) error {
	n := utf8.RuneCountInString(pw)
	if n < MinPasswordLength || n > MaxPasswordLength {
		return fmt.Errorf("%w: must be %d to %d characters", ErrWeakPassword, MinPasswordLength, MaxPasswordLength)
	}
	return nil
}

// Register creates an unverified email account and mails a verification
// token.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := checkPassword(in.Password); err != nil {
		return domain.User{}, err
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("register: hash password: %w", err)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		PasswordHash: &hash,
		Name:         in.Name,
		AuthProvider: domain.ProviderEmail,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("register: create user: %w", err)
	}

	ctx = slogx.WithUserID(ctx, user.ID)
	slogx.FromContext(ctx).Info("user registered")

	if err := s.sendToken(ctx, user, domain.KindVerifyMail, "Verify your email address"); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// ResendVerification issues a fresh verify_mail token, replacing any
// previous one. Unknown or already verified addresses succeed silently.
func (s *AccountService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("resend verification: lookup user: %w", err)
	}
	if user.IsEmailVerified || !user.Live() {
		return nil
	}
	return s.sendToken(slogx.WithUserID(ctx, user.ID), user, domain.KindVerifyMail, "Verify your email address")
}

// VerifyEmail spends a verify_mail token and marks the address verified.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (domain.User, error) {
	v, err := s.Tokens.Consume(ctx, token, domain.KindVerifyMail)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.Store.Users().MarkEmailVerified(ctx, v.User.ID); err != nil {
		return domain.User{}, fmt.Errorf("verify email: %w", err)
	}
	v.User.IsEmailVerified = true
	return v.User, nil
}

// ForgotPassword mails a reset token. It reports success for unknown
// addresses so the endpoint cannot be used to probe for accounts.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("forgot password: lookup user: %w", err)
	}
	if !user.Live() || user.AuthProvider != domain.ProviderEmail {
		return nil
	}
	return s.sendToken(slogx.WithUserID(ctx, user.ID), user, domain.KindReset, "Reset your password")
}

// ResetPassword spends a reset token, sets the new password and signs the
// user out everywhere.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.resetWith(ctx, token, domain.KindReset, newPassword)
}

// SendOTP mails a one-time passcode that can stand in for a reset token.
// Like ForgotPassword it succeeds silently for unknown addresses.
func (s *AccountService) SendOTP(ctx context.Context, email string) error {
	user, err := s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("send otp: lookup user: %w", err)
	}
	if !user.Live() || user.AuthProvider != domain.ProviderEmail {
		return nil
	}
	return s.sendToken(slogx.WithUserID(ctx, user.ID), user, domain.KindOTP, "Your one-time passcode")
}

// VerifyOTP checks a mailed passcode without spending it, so a client can
// confirm it before asking for the new password.
func (s *AccountService) VerifyOTP(ctx context.Context, otp string) error {
	_, err := s.Tokens.Validate(ctx, otp, domain.KindOTP)
	return err
}

// ResetPasswordWithOTP spends a mailed passcode, sets the new password and
// signs the user out everywhere.
func (s *AccountService) ResetPasswordWithOTP(ctx context.Context, otp, newPassword string) error {
	return s.resetWith(ctx, otp, domain.KindOTP, newPassword)
}

func (s *AccountService) resetWith(ctx context.Context, token string, kind domain.TokenKind, newPassword string) error {
	if err := checkPassword(newPassword); err != nil {
		return err
	}

	v, err := s.Tokens.Consume(ctx, token, kind)
	if err != nil {
		return err
	}
	ctx = slogx.WithUserID(ctx, v.User.ID)

	if err := s.setPassword(ctx, v.User.ID, newPassword); err != nil {
		return err
	}
	if _, err := s.Tokens.RevokeAll(ctx, v.User.ID, sessionKinds...); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("password reset", "via", kind)
	return nil
}

// ChangePassword replaces the password of a signed in user. Every existing
// session is revoked and the caller gets a fresh pair.
func (s *AccountService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (domain.TokenPair, error) {
	user, err := s.Store.Users().FindLiveUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidPrincipal
		}
		return domain.TokenPair{}, fmt.Errorf("change password: lookup user: %w", err)
	}
	if user.PasswordHash == nil {
		return domain.TokenPair{}, ErrProviderMismatch
	}
	if err := cryptox.VerifyPassword(oldPassword, *user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return domain.TokenPair{}, ErrInvalidCredentials
		}
		return domain.TokenPair{}, fmt.Errorf("change password: verify: %w", err)
	}
	if err := checkPassword(newPassword); err != nil {
		return domain.TokenPair{}, err
	}

	if err := s.setPassword(ctx, userID, newPassword); err != nil {
		return domain.TokenPair{}, err
	}
	if _, err := s.Tokens.RevokeAll(ctx, userID, sessionKinds...); err != nil {
		return domain.TokenPair{}, err
	}
	slogx.FromContext(ctx).Info("password changed")

	return s.Tokens.IssuePair(ctx, userID)
}

func (s *AccountService) setPassword(ctx context.Context, userID, pw string) error {
	hash, err := cryptox.HashPassword(pw)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *AccountService) sendToken(ctx context.Context, user domain.User, kind domain.TokenKind, subject string) error {
	tok, err := s.Tokens.Issue(ctx, user.ID, kind, 0)
	if err != nil {
		return err
	}
	if s.Mailer == nil {
		return nil
	}
	err = s.Mailer.Send(ctx, Message{
		To:      user.Email,
		Subject: subject,
		Kind:    kind,
		Token:   tok.Raw,
	})
	if err != nil {
		return fmt.Errorf("send %s mail: %w", kind, err)
	}
	return nil
}
