package domain

import "time"

// TokenKind is the token_type of a token row and of the signed claim.
type TokenKind string

const (
	KindAccess     TokenKind = "access"
	KindRefresh    TokenKind = "refresh"
	KindReset      TokenKind = "reset"
	KindVerifyMail TokenKind = "verify_mail"
	KindOTP        TokenKind = "otp"
	KindGoogle     TokenKind = "google"
	KindIDToken    TokenKind = "id_token"
)

// SingleUse reports whether a user may hold at most one live row of k.
func (k TokenKind) SingleUse() bool {
	switch k {
	case KindReset, KindVerifyMail, KindOTP:
		return true
	}
	return false
}

// Valid reports whether k is a known kind.
func (k TokenKind) Valid() bool {
	switch k {
	case KindAccess, KindRefresh, KindReset, KindVerifyMail, KindOTP, KindGoogle, KindIDToken:
		return true
	}
	return false
}

// Token is a stored token row.
type Token struct {
	ID            string
	UserID        string
	Kind          TokenKind
	JTI           string
	Raw           string // optional
	ExpiresAt     time.Time
	BlacklistedAt *time.Time
	CreatedAt     time.Time
}

// Expired reports whether the row is past expiry at now.
func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Blacklisted reports whether the row has been revoked.
func (t Token) Blacklisted() bool {
	return t.BlacklistedAt != nil
}

// IssuedToken is a freshly signed token together with its row.
type IssuedToken struct {
	Raw       string
	JTI       string
	Kind      TokenKind
	ExpiresAt time.Time
}

// TokenPair is what a successful login or refresh hands back.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"` // seconds
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitzero"`
}
