package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"net/url"
	"strconv"
	"time"

	"github.com/aussiebroadwan/tokenauth/internal/auth/domain"
	"github.com/aussiebroadwan/tokenauth/internal/auth/store"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30
	totpSkew   = 1
	totpDigits = otp.DigitsSix
	totpAlg    = otp.AlgorithmSHA1

	// qrSize is the edge of the provisioning QR code in pixels.
	qrSize = 200
)

// TOTPService manages authenticator app secrets. A secret is generated once
// per user and never replaced.
type TOTPService struct {
	Store  store.Store
	Issuer string // shown in the authenticator app

	now func() time.Time
}

func NewTOTPService(s store.Store, issuer string) *TOTPService {
	return &TOTPService{Store: s, Issuer: issuer, now: time.Now}
}

// WithClock replaces the time source used to check codes.
func (s *TOTPService) WithClock(now func() time.Time) *TOTPService {
	s.now = now
	return s
}

// Enroll returns the user's secret and provisioning URI, generating the
// secret on first call. Later calls return the stored secret.
func (s *TOTPService) Enroll(ctx context.Context, userID string) (domain.TOTPEnrollment, error) {
	user, err := s.Store.Users().FindLiveUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TOTPEnrollment{}, ErrInvalidPrincipal
		}
		return domain.TOTPEnrollment{}, fmt.Errorf("totp: lookup user: %w", err)
	}

	if !user.HasTOTP() {
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      s.Issuer,
			AccountName: user.Email,
			Period:      totpPeriod,
			Digits:      totpDigits,
			Algorithm:   totpAlg,
		})
		if err != nil {
			return domain.TOTPEnrollment{}, fmt.Errorf("totp: generate: %w", err)
		}

		if _, err := s.Store.Users().SetTOTPSecret(ctx, userID, key.Secret()); err != nil {
			return domain.TOTPEnrollment{}, fmt.Errorf("totp: store secret: %w", err)
		}

		// Re-read so a concurrent enrolment that won the write is what we hand back.
		user, err = s.Store.Users().GetUserByID(ctx, userID)
		if err != nil {
			return domain.TOTPEnrollment{}, fmt.Errorf("totp: reload user: %w", err)
		}
	}

	return s.enrollment(user)
}

func (s *TOTPService) enrollment(user domain.User) (domain.TOTPEnrollment, error) {
	key, err := otp.NewKeyFromURL(provisioningURI(s.Issuer, user.Email, *user.TOTPSecret))
	if err != nil {
		return domain.TOTPEnrollment{}, fmt.Errorf("totp: build uri: %w", err)
	}
	qr, err := qrDataURI(key)
	if err != nil {
		return domain.TOTPEnrollment{}, err
	}
	return domain.TOTPEnrollment{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		Issuer:          key.Issuer(),
		Account:         key.AccountName(),
		QRCode:          qr,
	}, nil
}

// qrDataURI renders key as a PNG QR code in a data: URI that can be used
// directly as an image source.
func qrDataURI(key *otp.Key) (string, error) {
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return "", fmt.Errorf("totp: render qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("totp: encode qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// provisioningURI renders the otpauth:// URI for a stored secret, with the
// same parameters totp.Generate would have used.
func provisioningURI(issuer, account, secret string) string {
	v := url.Values{}
	v.Set("secret", secret)
	if issuer != "" {
		v.Set("issuer", issuer)
	}
	v.Set("period", strconv.Itoa(totpPeriod))
	v.Set("algorithm", totpAlg.String())
	v.Set("digits", totpDigits.String())

	label := account
	if issuer != "" {
		label = issuer + ":" + account
	}
	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + label,
		RawQuery: v.Encode(),
	}
	return u.String()
}

// Verify checks code against the user's secret, allowing one step of drift
// either way.
func (s *TOTPService) Verify(ctx context.Context, userID, code string) error {
	user, err := s.Store.Users().FindLiveUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCode
		}
		return fmt.Errorf("totp: lookup user: %w", err)
	}
	if !user.HasTOTP() {
		return ErrTOTPNotEnrolled
	}

	now := time.Now()
	if s.now != nil {
		now = s.now()
	}
	ok, err := totp.ValidateCustom(code, *user.TOTPSecret, now.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    totpDigits,
		Algorithm: totpAlg,
	})
	if err != nil || !ok {
		return ErrInvalidCode
	}
	return nil
}
