package domain

// LoginState is where an authentication attempt ended up.
type LoginState string

const (
	StateRejected                  LoginState = "rejected"
	StateAwaitingEmailVerification LoginState = "awaiting_email_verification"
	StateAwaitingSecondFactor      LoginState = "awaiting_second_factor"
	StateAuthenticated             LoginState = "authenticated"
)

// LoginResult is the outcome of Login or Verify2FA. Tokens is set only in
// StateAuthenticated; UserID is set whenever the primary credential passed.
// TOTPSetup is set in StateAwaitingSecondFactor while the user has no
// confirmed authenticator app.
type LoginResult struct {
	State       LoginState      `json:"state"`
	UserID      string          `json:"user_id,omitempty"`
	Requires2FA bool            `json:"requires_2fa,omitempty"`
	TOTPSetup   *TOTPEnrollment `json:"totp_setup,omitempty"`
	Tokens      *TokenPair      `json:"tokens,omitempty"`
}

// TOTPEnrollment is returned when a user enrols an authenticator app.
type TOTPEnrollment struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
	Issuer          string `json:"issuer"`
	Account         string `json:"account"`
	QRCode          string `json:"qr_code"` // data:image/png;base64,...
}
