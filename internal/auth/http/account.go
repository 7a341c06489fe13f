package http

import (
	"net/http"

	"github.com/aussiebroadwan/tokenauth/internal/auth/service"
	"github.com/aussiebroadwan/tokenauth/pkg/authsdk"
	"github.com/aussiebroadwan/tokenauth/pkg/httpx"
)

// AccountHandler serves registration, email verification and password
// recovery.
type AccountHandler struct {
	Accounts *service.AccountService
}

// HandleRegister handles POST /v1/auth/register
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	user, err := h.Accounts.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.RegisterResponse{
		UserID: user.ID,
		Email:  user.Email,
	})
}

// HandleVerifyEmail handles POST /v1/auth/verify-email
func (h *AccountHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyEmailRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	if _, err := h.Accounts.VerifyEmail(r.Context(), req.Token); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Status: "verified"})
}

// HandleResendVerification handles POST /v1/auth/verify-email/resend. The
// answer does not reveal whether the address exists.
func (h *AccountHandler) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResendVerificationRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	if err := h.Accounts.ResendVerification(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, authsdk.StatusResponse{Status: "accepted"})
}

// HandleForgotPassword handles POST /v1/auth/password/forgot. The answer
// does not reveal whether the address exists.
func (h *AccountHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ForgotPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	if err := h.Accounts.ForgotPassword(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, authsdk.StatusResponse{Status: "accepted"})
}

// HandleResetPassword handles POST /v1/auth/password/reset
func (h *AccountHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	if err := h.Accounts.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Status: "password_reset"})
}

// HandleSendOTP handles POST /v1/auth/otp/send. The answer does not reveal
// whether the address exists.
func (h *AccountHandler) HandleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SendOTPRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	if err := h.Accounts.SendOTP(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, authsdk.StatusResponse{Status: "accepted"})
}

// HandleVerifyOTP handles POST /v1/auth/otp/verify
func (h *AccountHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyOTPRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	if err := h.Accounts.VerifyOTP(r.Context(), req.OTP); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Status: "valid"})
}

// HandleResetPasswordOTP handles POST /v1/auth/password/reset-otp
func (h *AccountHandler) HandleResetPasswordOTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordOTPRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	if err := h.Accounts.ResetPasswordWithOTP(r.Context(), req.OTP, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Status: "password_reset"})
}

// HandleChangePassword handles POST /v1/auth/password/change. The caller
// gets a fresh pair; every other session is revoked.
func (h *AccountHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.ChangePasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	pair, err := h.Accounts.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}
