package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// expiryBuffer refreshes access tokens this long before they expire.
const expiryBuffer = 30 * time.Second

// ErrSessionClosed is returned by a Session after Logout.
var ErrSessionClosed = errors.New("authsdk: session closed")

// Session is an authenticated caller. Its methods refresh the access token
// when it is about to expire. Safe for concurrent use.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	closed       bool
}

func newSession(client *SDKClient, tok *TokenResponse) *Session {
	return &Session{
		client:       client,
		accessToken:  tok.AccessToken,
		refreshToken: tok.RefreshToken,
		expiresAt:    time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - expiryBuffer),
	}
}

// AccessToken returns the current access token without checking expiration.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// getValidToken returns a valid access token, refreshing it if it expired.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return "", ErrSessionClosed
	}
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed already.
	if s.closed {
		return "", ErrSessionClosed
	}
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if s.refreshToken == "" {
		return "", fmt.Errorf("access token expired and no refresh token available")
	}

	tok, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	s.accessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		s.refreshToken = tok.RefreshToken
	}
	s.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - expiryBuffer)
	return s.accessToken, nil
}

func (s *Session) call(ctx context.Context, method, path string, body, target any, expectedStatus int) error {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return err
	}
	return s.client.call(ctx, method, path, token, body, target, expectedStatus)
}

// Me returns the caller behind the session.
func (s *Session) Me(ctx context.Context) (*MeResponse, error) {
	var out MeResponse
	if err := s.call(ctx, http.MethodGet, "/v1/auth/me", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// EnrollTOTP returns the authenticator secret for the caller, creating it on
// first use.
func (s *Session) EnrollTOTP(ctx context.Context) (*TOTPEnrollResponse, error) {
	var out TOTPEnrollResponse
	if err := s.call(ctx, http.MethodPost, "/v1/auth/2fa/enroll", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChangePassword replaces the password. Every other session is revoked and
// this one continues with the returned tokens.
func (s *Session) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	var out TokenResponse
	req := ChangePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}
	if err := s.call(ctx, http.MethodPost, "/v1/auth/password/change", req, &out, http.StatusOK); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = out.AccessToken
	s.refreshToken = out.RefreshToken
	s.expiresAt = time.Now().Add(time.Duration(out.ExpiresIn)*time.Second - expiryBuffer)
	return nil
}

// Logout revokes the access token and closes the session.
func (s *Session) Logout(ctx context.Context) error {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return err
	}
	if err := s.client.call(ctx, http.MethodPost, "/v1/auth/logout", token, nil, nil, http.StatusNoContent); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
