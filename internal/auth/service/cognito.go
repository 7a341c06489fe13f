package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokenauth/internal/auth/domain"
	"github.com/aussiebroadwan/tokenauth/internal/auth/store"
	"github.com/aussiebroadwan/tokenauth/pkg/cryptox"
	"github.com/aussiebroadwan/tokenauth/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

type CognitoConfig struct {
	Region       string
	UserPoolID   string
	ClientID     string
	ClientSecret string

	// Domain is the hosted UI base URL, e.g. https://auth.example.com. Only
	// needed for the authorization code flow.
	Domain      string
	RedirectURI string

	// JWKSURL overrides the key set location derived from region and pool.
	JWKSURL string

	// Timeout bounds every outbound call. Zero means 10s.
	Timeout time.Duration

	HTTPClient *http.Client
}

// Issuer is the iss claim Cognito puts on tokens from this pool.
func (c CognitoConfig) Issuer() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolID)
}

// KeySetURL is where the pool publishes its signing keys.
func (c CognitoConfig) KeySetURL() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	return c.Issuer() + "/.well-known/jwks.json"
}

// CognitoVerifier accepts RS256 id tokens minted by a Cognito user pool.
type CognitoVerifier struct {
	Store store.Store

	cfg      CognitoConfig
	client   *http.Client
	keys     *jwtx.RemoteKeySet
	verifier *jwtx.RS256Verifier
	oauth    *oauth2.Config
}

func NewCognitoVerifier(s store.Store, cfg CognitoConfig) *CognitoVerifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	keys := jwtx.NewRemoteKeySet(cfg.KeySetURL(), jwtx.RemoteKeySetOptions{
		HTTPClient: client,
		Timeout:    cfg.Timeout,
	})

	v := &CognitoVerifier{
		Store:    s,
		cfg:      cfg,
		client:   client,
		keys:     keys,
		verifier: jwtx.NewVerifierRS256(keys, cfg.Issuer(), cfg.ClientID),
	}

	if cfg.Domain != "" {
		base := strings.TrimRight(cfg.Domain, "/")
		v.oauth = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/oauth2/authorize",
				TokenURL:  base + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
	}
	return v
}

// WithClock replaces the time source used for exp checks.
func (v *CognitoVerifier) WithClock(now func() time.Time) *CognitoVerifier {
	v.verifier = v.verifier.WithClock(now)
	return v
}

func (v *CognitoVerifier) Provider() domain.AuthProvider { return domain.ProviderCognito }

type cognitoClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	TokenUse      string `json:"token_use"`

	jwt.RegisteredClaims
}

// Verify logs in with either an id token the client already holds or an
// authorization code to exchange for one.
func (v *CognitoVerifier) Verify(ctx context.Context, c Credentials) (VerifiedIdentity, error) {
	raw := c.IDToken
	if c.Code != "" {
		var err error
		if raw, err = v.exchange(ctx, c); err != nil {
			return VerifiedIdentity{}, err
		}
	}
	if raw == "" {
		return VerifiedIdentity{}, ErrInvalidCredentials
	}

	claims, err := v.VerifyToken(ctx, raw)
	if err != nil {
		return VerifiedIdentity{}, err
	}

	user, err := v.resolve(ctx, claims)
	if err != nil {
		return VerifiedIdentity{}, err
	}

	return VerifiedIdentity{
		User:          user,
		IDToken:       raw,
		IDTokenJTI:    cryptox.FingerprintToken(raw),
		IDTokenExpiry: claims.ExpiresAt.Time,
	}, nil
}

func (v *CognitoVerifier) exchange(ctx context.Context, c Credentials) (string, error) {
	if v.oauth == nil {
		return "", fmt.Errorf("%w: cognito code flow is not configured", ErrUnsupportedProvider)
	}

	callCtx, cancel := upstreamContext(ctx, v.client, v.cfg.Timeout)
	defer cancel()

	var opts []oauth2.AuthCodeOption
	if c.RedirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", c.RedirectURI))
	}
	tok, err := v.oauth.Exchange(callCtx, c.Code, opts...)
	if err != nil {
		return "", upstreamError("cognito token exchange", err)
	}

	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return "", fmt.Errorf("%w: token response has no id_token", ErrMalformedToken)
	}
	return raw, nil
}

// VerifyToken checks signature, issuer, audience and expiry of a Cognito id
// token.
func (v *CognitoVerifier) VerifyToken(ctx context.Context, raw string) (cognitoClaims, error) {
	var claims cognitoClaims
	err := v.verifier.Verify(ctx, raw, &claims)
	switch {
	case err == nil:
	case errors.Is(err, jwtx.ErrUnknownKID):
		return cognitoClaims{}, ErrKeyNotFound
	case errors.Is(err, jwtx.ErrKeyFetch):
		return cognitoClaims{}, fmt.Errorf("%w: cognito jwks: %v", ErrUpstream, err)
	case errors.Is(err, jwtx.ErrExpired):
		return cognitoClaims{}, ErrExpiredSignature
	case errors.Is(err, jwtx.ErrMalformed):
		return cognitoClaims{}, ErrMalformedToken
	default:
		return cognitoClaims{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	if claims.Subject == "" {
		return cognitoClaims{}, fmt.Errorf("%w: id token has no sub", ErrMalformedToken)
	}
	if claims.TokenUse != "" && claims.TokenUse != "id" {
		return cognitoClaims{}, fmt.Errorf("%w: token_use %q", ErrInvalidCredentials, claims.TokenUse)
	}
	return claims, nil
}

// Authenticate verifies a bearer id token and returns its owner, creating
// the account on first sight.
func (v *CognitoVerifier) Authenticate(ctx context.Context, raw string) (domain.Principal, error) {
	claims, err := v.VerifyToken(ctx, raw)
	if err != nil {
		return domain.Principal{}, err
	}
	user, err := v.resolve(ctx, claims)
	if err != nil {
		return domain.Principal{}, err
	}
	return domain.Principal{
		UserID:       user.ID,
		Email:        user.Email,
		Name:         user.Name,
		AuthProvider: user.AuthProvider,
		TokenKind:    domain.KindIDToken,
		JTI:          claims.ID,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}

func (v *CognitoVerifier) resolve(ctx context.Context, claims cognitoClaims) (domain.User, error) {
	sub := claims.Subject
	return federatedUser(ctx, v.Store, domain.ProviderCognito,
		func(ctx context.Context) (domain.User, error) {
			return v.Store.Users().GetUserByCognitoSub(ctx, sub)
		},
		domain.User{
			Email:           normalizeEmail(claims.Email),
			Name:            claims.Name,
			CognitoSub:      &sub,
			IsEmailVerified: claims.EmailVerified,
		},
	)
}
