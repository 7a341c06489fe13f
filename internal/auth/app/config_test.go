package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"15m", 15 * time.Minute, true},
		{"90s", 90 * time.Second, true},
		{"7d", 7 * 24 * time.Hour, true},
		{"30", 30 * time.Minute, true},
		{"soon", 0, false},
		{"d", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := parseDuration(tt.in)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

// LoadConfig reads the process environment, so these tests do not run in
// parallel.
func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV_FILE", "")

	cfg := LoadConfig()
	require.Equal(t, "HS256", cfg.Algorithm)
	require.Equal(t, 15*time.Minute, cfg.Lifetimes.Access)
	require.Equal(t, 7*24*time.Hour, cfg.Lifetimes.Refresh)
	require.Equal(t, time.Hour, cfg.Lifetimes.Reset)
	require.Equal(t, 24*time.Hour, cfg.Lifetimes.VerifyMail)
	require.Equal(t, 5*time.Minute, cfg.Lifetimes.OTP)
	require.False(t, cfg.RotateRefresh)
	require.False(t, cfg.Enable2FA)
	require.Equal(t, "UTC", cfg.CleanupTimezone)
	require.False(t, cfg.GoogleEnabled())
	require.False(t, cfg.CognitoEnabled())
	require.Equal(t, 8080, cfg.Port)
	require.NoError(t, cfg.Validate())

	cc, err := cfg.Cleanup()
	require.NoError(t, err)
	require.Equal(t, "0 0 * * *", cc.Spec())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTH_ALGORITHM", "hs512")
	t.Setenv("AUTH_REFRESH_TTL", "30d")
	t.Setenv("AUTH_ROTATE_REFRESH", "true")
	t.Setenv("AUTH_ENABLE_2FA", "1")
	t.Setenv("CLEANUP_HOUR", "3")
	t.Setenv("CLEANUP_MINUTE", "30")
	t.Setenv("CLEANUP_TIMEZONE", "Etc/GMT-10")
	t.Setenv("COGNITO_REGION", "ap-southeast-2")
	t.Setenv("COGNITO_USER_POOL_ID", "ap-southeast-2_abc")
	t.Setenv("COGNITO_CLIENT_ID", "client")
	t.Setenv("COGNITO_DOMAIN", "https://auth.example.com/")
	t.Setenv("COGNITO_REDIRECT_URI", "https://app.example.com/cb")
	t.Setenv("RATELIMIT_STRICT_REQUESTS", "50")

	cfg := LoadConfig()
	require.Equal(t, "HS512", cfg.Algorithm)
	require.Equal(t, 30*24*time.Hour, cfg.Lifetimes.Refresh)
	require.True(t, cfg.RotateRefresh)
	require.True(t, cfg.Enable2FA)
	require.True(t, cfg.CognitoEnabled())
	require.Equal(t, "https://auth.example.com", cfg.Cognito.Domain)
	require.Equal(t, 50, cfg.RateLimits.Strict.Requests)
	require.NoError(t, cfg.Validate())

	cc, err := cfg.Cleanup()
	require.NoError(t, err)
	require.Equal(t, "30 3 * * *", cc.Spec())
	require.Equal(t, "Etc/GMT-10", cc.Location.String())
}

func TestLoadConfigEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	file := filepath.Join(dir, "custom.env")
	require.NoError(t, os.WriteFile(file, []byte("AUTH_TOTP_ISSUER=FromFile\nPORT=9090\n"), 0o600))

	t.Setenv("ENV_FILE", file)
	t.Setenv("PORT", "9191")
	// godotenv.Load sets variables for the whole process.
	t.Setenv("AUTH_TOTP_ISSUER", "")
	require.NoError(t, os.Unsetenv("AUTH_TOTP_ISSUER"))

	cfg := LoadConfig()
	require.Equal(t, "FromFile", cfg.TOTPIssuer)
	require.Equal(t, 9191, cfg.Port, "the environment wins over the file")
}

func TestConfigValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	base := LoadConfig()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad algorithm", func(c *Config) { c.Algorithm = "RS256" }},
		{"no secret source", func(c *Config) { c.SecretKey = ""; c.SecretFile = "" }},
		{"zero lifetime", func(c *Config) { c.Lifetimes.OTP = 0 }},
		{"hour out of range", func(c *Config) { c.CleanupHour = 24 }},
		{"minute out of range", func(c *Config) { c.CleanupMinute = -1 }},
		{"unknown timezone", func(c *Config) { c.CleanupTimezone = "Mars/Olympus_Mons" }},
		{"half configured google", func(c *Config) { c.Google.ClientID = "id" }},
		{"google secret without id", func(c *Config) { c.Google.ClientSecret = "secret" }},
		{"half configured cognito", func(c *Config) { c.Cognito.UserPoolID = "pool" }},
		{"cognito domain without redirect", func(c *Config) {
			c.Cognito = base.Cognito
			c.Cognito.Region, c.Cognito.UserPoolID, c.Cognito.ClientID = "r", "p", "c"
			c.Cognito.Domain = "https://auth.example.com"
		}},
		{"bad port", func(c *Config) { c.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
