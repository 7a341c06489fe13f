package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Token sizes in bytes before encoding.
const (
	// TokenSize128 carries 128 bits of entropy and encodes to 22 characters.
	TokenSize128 = 16
	// TokenSize256 carries 256 bits of entropy and encodes to 43 characters.
	TokenSize256 = 32
	// TokenSize512 carries 512 bits of entropy and encodes to 86 characters.
	TokenSize512 = 64
)

// GenerateToken returns size random bytes, base64url encoded without padding.
// It fails only if size is not positive or the system random source does.
//
// Common sizes:
//   - TokenSize128: throwaway values such as the dummy password hash input
//   - TokenSize256: API keys and other long-lived bearer secrets
//   - TokenSize512: high-value secrets that are rarely rotated
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MustGenerateToken is GenerateToken for init paths where failure is fatal.
func MustGenerateToken(size int) string {
	token, err := GenerateToken(size)
	if err != nil {
		panic(fmt.Sprintf("cryptox: failed to generate token: %v", err))
	}
	return token
}

// FingerprintToken returns the base64url SHA-256 of token. Provider issued
// credentials are stored under their fingerprint as the revocation handle so
// the same upstream token always maps to the same row key.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
