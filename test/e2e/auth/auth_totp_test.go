package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tokenauth/pkg/authsdk"
)

// TestTOTPEnrollmentAndLogin sets up an authenticator app from the first
// login and completes the two step login with it.
func TestTOTPEnrollmentAndLogin(t *testing.T) {
	svc := setupAuthContainer(t, map[string]string{"AUTH_ENABLE_2FA": "true"})
	ctx := t.Context()

	userID := svc.registerVerified(t, "frank@example.com", testPassword)

	login, err := svc.client.Login(ctx, "frank@example.com", testPassword)
	require.NoError(t, err)
	require.Equal(t, authsdk.LoginStateAwaitingSecondFactor, login.State)
	require.True(t, login.Requires2FA)
	require.Equal(t, userID, login.UserID)
	require.Nil(t, login.Tokens)

	enrollment := login.TOTPSetup
	require.NotNil(t, enrollment)
	require.Equal(t, "TokenAuthE2E", enrollment.Issuer)
	require.True(t, strings.HasPrefix(enrollment.ProvisioningURI, "otpauth://totp/"))
	require.True(t, strings.HasPrefix(enrollment.QRCode, "data:image/png;base64,"))
	require.NotEmpty(t, enrollment.Secret)

	_, err = svc.client.Verify2FA(ctx, userID, "000000")
	require.ErrorIs(t, err, authsdk.ErrInvalidCode)

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)

	login, err = svc.client.Verify2FA(ctx, userID, code)
	require.NoError(t, err)
	require.Equal(t, authsdk.LoginStateAuthenticated, login.State)
	assertTokenResponse(t, login.Tokens)

	me, err := svc.client.NewSession(login).Me(ctx)
	require.NoError(t, err)
	require.Equal(t, userID, me.UserID)

	login, err = svc.client.Login(ctx, "frank@example.com", testPassword)
	require.NoError(t, err)
	require.Equal(t, authsdk.LoginStateAwaitingSecondFactor, login.State)
	require.Nil(t, login.TOTPSetup)
}

// TestTOTPIgnoredWhenDisabled verifies that an enrolled user logs straight
// in when the deployment does not require a second factor.
func TestTOTPIgnoredWhenDisabled(t *testing.T) {
	svc := setupAuthContainer(t, nil)
	ctx := t.Context()

	svc.registerVerified(t, "gina@example.com", testPassword)
	session := svc.login(t, "gina@example.com", testPassword)

	_, err := session.EnrollTOTP(ctx)
	require.NoError(t, err)

	svc.login(t, "gina@example.com", testPassword)
}
