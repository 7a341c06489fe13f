package http

import (
	"net/http"

	"github.com/aussiebroadwan/tokenauth/internal/auth/domain"
	"github.com/aussiebroadwan/tokenauth/internal/auth/service"
	"github.com/aussiebroadwan/tokenauth/pkg/authsdk"
	"github.com/aussiebroadwan/tokenauth/pkg/httpx"
	"github.com/aussiebroadwan/tokenauth/pkg/slogx"
)

// AuthHandler serves the login flows and the session endpoints.
type AuthHandler struct {
	Authenticator *service.Authenticator
}

// HandleLogin handles POST /v1/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	h.login(w, r, service.Credentials{
		Provider: domain.ProviderEmail,
		Email:    req.Email,
		Password: req.Password,
	})
}

// HandleGoogle handles POST /v1/auth/google
func (h *AuthHandler) HandleGoogle(w http.ResponseWriter, r *http.Request) {
	var req authsdk.GoogleLoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	h.login(w, r, service.Credentials{
		Provider:    domain.ProviderGoogle,
		Code:        req.Code,
		RedirectURI: req.RedirectURI,
	})
}

// HandleCognito handles POST /v1/auth/cognito
func (h *AuthHandler) HandleCognito(w http.ResponseWriter, r *http.Request) {
	var req authsdk.CognitoLoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	h.login(w, r, service.Credentials{
		Provider:    domain.ProviderCognito,
		Code:        req.Code,
		IDToken:     req.IDToken,
		RedirectURI: req.RedirectURI,
	})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, c service.Credentials) {
	res, err := h.Authenticator.Login(r.Context(), c)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loginResponse(res))
}

// HandleVerify2FA handles POST /v1/auth/2fa/verify
func (h *AuthHandler) HandleVerify2FA(w http.ResponseWriter, r *http.Request) {
	var req authsdk.TwoFactorVerifyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	ctx := slogx.WithUserID(r.Context(), req.UserID)
	res, err := h.Authenticator.Verify2FA(ctx, req.UserID, req.Code)
	if err != nil {
		writeServiceError(w, r.WithContext(ctx), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loginResponse(res))
}

// HandleRefresh handles POST /v1/auth/refresh
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	pair, err := h.Authenticator.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

// HandleLogout handles POST /v1/auth/logout. The bearer token itself is
// revoked.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.Authenticator.Logout(r.Context(), httpx.BearerFromContext(r.Context())); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe handles GET /v1/auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFromContext(r.Context()).(domain.Principal)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MeResponse{
		UserID:       p.UserID,
		Email:        p.Email,
		Name:         p.Name,
		AuthProvider: string(p.AuthProvider),
		TokenType:    string(p.TokenKind),
		ExpiresAt:    p.ExpiresAt,
	})
}

func loginResponse(res domain.LoginResult) authsdk.LoginResponse {
	out := authsdk.LoginResponse{
		State:       string(res.State),
		UserID:      res.UserID,
		Requires2FA: res.Requires2FA,
	}
	if res.TOTPSetup != nil {
		setup := totpEnrollResponse(*res.TOTPSetup)
		out.TOTPSetup = &setup
	}
	if res.Tokens != nil {
		tok := tokenResponse(*res.Tokens)
		out.Tokens = &tok
	}
	return out
}

func tokenResponse(p domain.TokenPair) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        p.TokenType,
		ExpiresIn:        p.ExpiresIn,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}
