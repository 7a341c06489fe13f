package http

import (
	"net/http"

	"github.com/aussiebroadwan/tokenauth/internal/auth/domain"
	"github.com/aussiebroadwan/tokenauth/internal/auth/service"
	"github.com/aussiebroadwan/tokenauth/pkg/authsdk"
	"github.com/aussiebroadwan/tokenauth/pkg/httpx"
)

type TOTPHandler struct {
	TOTP *service.TOTPService
}

// HandleEnroll handles POST /v1/auth/2fa/enroll. Enrolling twice returns the
// same secret.
func (h *TOTPHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	enrollment, err := h.TOTP.Enroll(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, totpEnrollResponse(enrollment))
}

func totpEnrollResponse(e domain.TOTPEnrollment) authsdk.TOTPEnrollResponse {
	return authsdk.TOTPEnrollResponse{
		Secret:          e.Secret,
		ProvisioningURI: e.ProvisioningURI,
		Issuer:          e.Issuer,
		Account:         e.Account,
		QRCode:          e.QRCode,
	}
}
