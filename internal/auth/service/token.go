package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokenauth/internal/auth/domain"
	"github.com/aussiebroadwan/tokenauth/internal/auth/store"
	"github.com/aussiebroadwan/tokenauth/pkg/idx"
	"github.com/aussiebroadwan/tokenauth/pkg/jwtx"
	"github.com/aussiebroadwan/tokenauth/pkg/slogx"
)

// singleUseRetries bounds how often Issue retries after losing a race on the
// single-use unique index.
const singleUseRetries = 3

// TokenLifetimes are the default lifetimes per kind.
type TokenLifetimes struct {
	Access     time.Duration
	Refresh    time.Duration
	Reset      time.Duration
	VerifyMail time.Duration
	OTP        time.Duration
}

// DefaultTokenLifetimes matches the shipped configuration defaults.
func DefaultTokenLifetimes() TokenLifetimes {
	return TokenLifetimes{
		Access:     15 * time.Minute,
		Refresh:    7 * 24 * time.Hour,
		Reset:      time.Hour,
		VerifyMail: 24 * time.Hour,
		OTP:        5 * time.Minute,
	}
}

// For returns the lifetime of kind. Kinds without a local default fall back
// to the access lifetime.
func (l TokenLifetimes) For(kind domain.TokenKind) time.Duration {
	switch kind {
	case domain.KindRefresh:
		return l.Refresh
	case domain.KindReset:
		return l.Reset
	case domain.KindVerifyMail:
		return l.VerifyMail
	case domain.KindOTP:
		return l.OTP
	default:
		return l.Access
	}
}

// ValidatedToken is a token that passed every check, with its row and owner.
type ValidatedToken struct {
	Claims jwtx.Claims
	Token  domain.Token
	User   domain.User
}

// Principal projects v for request handlers.
func (v ValidatedToken) Principal() domain.Principal {
	return domain.Principal{
		UserID:       v.User.ID,
		Email:        v.User.Email,
		Name:         v.User.Name,
		AuthProvider: v.User.AuthProvider,
		TokenKind:    v.Token.Kind,
		JTI:          v.Token.JTI,
		ExpiresAt:    v.Token.ExpiresAt,
	}
}

// TokenService issues, validates and revokes locally signed tokens. Every
// issued token has a row; a token is only as good as its row.
type TokenService struct {
	Store     store.Store
	Codec     *jwtx.HMAC
	Lifetimes TokenLifetimes
	Metrics   *Metrics

	now func() time.Time
}

func NewTokenService(s store.Store, codec *jwtx.HMAC, lifetimes TokenLifetimes) *TokenService {
	return &TokenService{
		Store:     s,
		Codec:     codec,
		Lifetimes: lifetimes,
		now:       time.Now,
	}
}

// WithClock swaps the time source for both signing and row checks.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	s.Codec = s.Codec.WithClock(now)
	return s
}

func (s *TokenService) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *TokenService) sign(userID string, kind domain.TokenKind, lifetime time.Duration, now time.Time) (domain.IssuedToken, domain.Token, error) {
	if !kind.Valid() {
		return domain.IssuedToken{}, domain.Token{}, fmt.Errorf("token: unknown kind %q", kind)
	}
	if lifetime <= 0 {
		lifetime = s.Lifetimes.For(kind)
	}

	claims := jwtx.NewClaims(userID, string(kind), lifetime, now)
	raw, err := s.Codec.Sign(claims)
	if err != nil {
		return domain.IssuedToken{}, domain.Token{}, err
	}

	row := domain.Token{
		ID:        idx.NewAt(now).String(),
		UserID:    userID,
		Kind:      kind,
		JTI:       claims.ID,
		ExpiresAt: claims.Expiry(),
		CreatedAt: now,
	}
	issued := domain.IssuedToken{
		Raw:       raw,
		JTI:       claims.ID,
		Kind:      kind,
		ExpiresAt: row.ExpiresAt,
	}
	return issued, row, nil
}

// Issue signs a token of kind for userID and records its row. A lifetime of
// zero or less picks the configured default. Issuing a single-use kind
// replaces the user's previous live row of that kind.
func (s *TokenService) Issue(ctx context.Context, userID string, kind domain.TokenKind, lifetime time.Duration) (domain.IssuedToken, error) {
	issued, row, err := s.sign(userID, kind, lifetime, s.clock())
	if err != nil {
		return domain.IssuedToken{}, err
	}

	if !kind.SingleUse() {
		if err := s.Store.Tokens().CreateToken(ctx, row); err != nil {
			return domain.IssuedToken{}, fmt.Errorf("token: store %s: %w", kind, err)
		}
		return issued, nil
	}

	for attempt := 1; ; attempt++ {
		err = s.Store.WithTx(ctx, func(tx store.Tx) error {
			if _, err := tx.Tokens().DeleteUserTokensOfKind(ctx, userID, kind); err != nil {
				return err
			}
			return tx.Tokens().CreateToken(ctx, row)
		})
		if err == nil {
			return issued, nil
		}
		if !errors.Is(err, store.ErrAlreadyExists) || attempt == singleUseRetries {
			return domain.IssuedToken{}, fmt.Errorf("token: replace %s: %w", kind, err)
		}
		slogx.FromContext(ctx).Debug("single-use issue lost a race, retrying",
			"kind", kind, "attempt", attempt)
	}
}

// IssuePair issues an access and a refresh token. Both rows commit together
// or not at all.
func (s *TokenService) IssuePair(ctx context.Context, userID string) (domain.TokenPair, error) {
	now := s.clock()

	access, accessRow, err := s.sign(userID, domain.KindAccess, 0, now)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, refreshRow, err := s.sign(userID, domain.KindRefresh, 0, now)
	if err != nil {
		return domain.TokenPair{}, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Tokens().CreateToken(ctx, accessRow); err != nil {
			return err
		}
		return tx.Tokens().CreateToken(ctx, refreshRow)
	})
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("token: store pair: %w", err)
	}

	return domain.TokenPair{
		AccessToken:      access.Raw,
		RefreshToken:     refresh.Raw,
		TokenType:        "Bearer",
		ExpiresIn:        int64(access.ExpiresAt.Sub(now).Seconds()),
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// Mirror records a credential issued by someone else, such as a provider
// refresh token, under a caller chosen jti. Previous rows of kind for the
// user are replaced.
func (s *TokenService) Mirror(ctx context.Context, userID string, kind domain.TokenKind, jti, raw string, expiresAt time.Time) (domain.Token, error) {
	now := s.clock()
	row := domain.Token{
		ID:        idx.NewAt(now).String(),
		UserID:    userID,
		Kind:      kind,
		JTI:       jti,
		Raw:       raw,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Tokens().DeleteUserTokensOfKind(ctx, userID, kind); err != nil {
			return err
		}
		// A blacklisted row may still hold the jti.
		if err := tx.Tokens().DeleteToken(ctx, jti); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return tx.Tokens().CreateToken(ctx, row)
	})
	if err != nil {
		return domain.Token{}, fmt.Errorf("token: mirror %s: %w", kind, err)
	}
	return row, nil
}

// Decode checks signature and expiry only. It never touches the store.
func (s *TokenService) Decode(raw string) (jwtx.Claims, error) {
	c, err := s.Codec.Verify(raw)
	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, jwtx.ErrExpired):
		return jwtx.Claims{}, ErrExpiredSignature
	default:
		return jwtx.Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

// Validate runs the full check: signature, kind, live row, row expiry and
// owner. An authentic token past its expiry has its row deleted and yields
// ErrTokenExpired; asking again then yields ErrTokenNotFound.
func (s *TokenService) Validate(ctx context.Context, raw string, kind domain.TokenKind) (ValidatedToken, error) {
	v, err := s.validate(ctx, raw, kind)
	s.Metrics.validation(validationResult(err))
	return v, err
}

func (s *TokenService) validate(ctx context.Context, raw string, kind domain.TokenKind) (ValidatedToken, error) {
	claims, err := s.Codec.Verify(raw)
	signatureExpired := false
	switch {
	case err == nil:
	case errors.Is(err, jwtx.ErrExpired):
		signatureExpired = true
	default:
		return ValidatedToken{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	if domain.TokenKind(claims.TokenType) != kind {
		return ValidatedToken{}, ErrKindMismatch
	}

	row, err := s.Store.Tokens().GetLiveToken(ctx, claims.ID, claims.UserID, kind)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ValidatedToken{}, ErrTokenNotFound
		}
		return ValidatedToken{}, err
	}

	if signatureExpired || row.Expired(s.clock()) {
		if err := s.Store.Tokens().DeleteToken(ctx, row.JTI); err != nil && !errors.Is(err, store.ErrNotFound) {
			slogx.FromContext(ctx).Error("failed to delete expired token row",
				"kind", kind, "error", err)
		}
		return ValidatedToken{}, ErrTokenExpired
	}

	user, err := s.Store.Users().FindLiveUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ValidatedToken{}, ErrInvalidPrincipal
		}
		return ValidatedToken{}, err
	}

	return ValidatedToken{Claims: claims, Token: row, User: user}, nil
}

// Consume validates a single-use token and deletes its row. Of two
// concurrent consumers exactly one wins; the other sees ErrTokenNotFound.
func (s *TokenService) Consume(ctx context.Context, raw string, kind domain.TokenKind) (ValidatedToken, error) {
	v, err := s.Validate(ctx, raw, kind)
	if err != nil {
		return ValidatedToken{}, err
	}

	if err := s.Store.Tokens().DeleteToken(ctx, v.Token.JTI); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ValidatedToken{}, ErrTokenNotFound
		}
		return ValidatedToken{}, err
	}
	return v, nil
}

// Revoke blacklists a token given either the raw JWT or its jti. Revoking
// twice is fine. Expired JWTs are accepted so a client can always log out.
func (s *TokenService) Revoke(ctx context.Context, tokenOrJTI string) error {
	_, err := s.revoke(ctx, tokenOrJTI)
	return err
}

func (s *TokenService) revoke(ctx context.Context, tokenOrJTI string) (domain.Token, error) {
	jti := strings.TrimSpace(tokenOrJTI)
	if jti == "" {
		return domain.Token{}, ErrTokenNotFound
	}

	if strings.Count(jti, ".") == 2 {
		c, err := s.Codec.Verify(jti)
		if err != nil && !errors.Is(err, jwtx.ErrExpired) {
			return domain.Token{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		jti = c.ID
	}

	row, err := s.Store.Tokens().GetTokenByJTI(ctx, jti)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Token{}, ErrTokenNotFound
		}
		return domain.Token{}, err
	}
	if row.Blacklisted() {
		return row, nil
	}

	if _, err := s.Store.Tokens().BlacklistToken(ctx, jti, s.clock()); err != nil {
		return domain.Token{}, fmt.Errorf("token: blacklist: %w", err)
	}
	return row, nil
}

// Rotate validates a refresh token and blacklists it. Of two concurrent
// rotations of the same token only one succeeds.
func (s *TokenService) Rotate(ctx context.Context, raw string) (ValidatedToken, error) {
	v, err := s.Validate(ctx, raw, domain.KindRefresh)
	if err != nil {
		return ValidatedToken{}, err
	}

	changed, err := s.Store.Tokens().BlacklistToken(ctx, v.Token.JTI, s.clock())
	if err != nil {
		return ValidatedToken{}, fmt.Errorf("token: blacklist: %w", err)
	}
	if !changed {
		return ValidatedToken{}, ErrTokenNotFound
	}
	return v, nil
}

// RevokeAll blacklists every live row of the given kinds for userID.
func (s *TokenService) RevokeAll(ctx context.Context, userID string, kinds ...domain.TokenKind) (int64, error) {
	var total int64
	now := s.clock()
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		for _, k := range kinds {
			n, err := tx.Tokens().BlacklistUserTokens(ctx, userID, k, now)
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("token: revoke all: %w", err)
	}
	return total, nil
}

// Purge hard-deletes the live rows of the given kinds for userID.
func (s *TokenService) Purge(ctx context.Context, userID string, kinds ...domain.TokenKind) (int64, error) {
	var total int64
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		for _, k := range kinds {
			n, err := tx.Tokens().DeleteUserTokensOfKind(ctx, userID, k)
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("token: purge: %w", err)
	}
	return total, nil
}

func validationResult(err error) string {
	if err == nil {
		return "ok"
	}
	for _, known := range []error{
		ErrMalformedToken,
		ErrKindMismatch,
		ErrTokenNotFound,
		ErrTokenExpired,
		ErrInvalidPrincipal,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "error"
}
