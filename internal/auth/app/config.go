package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // CLEANUP_TIMEZONE must resolve in minimal images

	"github.com/joho/godotenv"

	"github.com/aussiebroadwan/tokenauth/internal/auth/service"
	"github.com/aussiebroadwan/tokenauth/pkg/httpx"
)

type Config struct {
	SecretKey  string // Optional: HMAC secret; takes precedence over SecretFile
	SecretFile string // Optional: secret file, generated on first use (default: ./secret.key)
	Algorithm  string // Optional: HS256, HS384 or HS512 (default: HS256)

	Lifetimes     service.TokenLifetimes
	RotateRefresh bool   // Optional: spend refresh tokens on use (default: false)
	Enable2FA     bool   // Optional: require TOTP on every login (default: false)
	TOTPIssuer    string // Optional: issuer shown in authenticator apps (default: TokenAuth)

	Google  service.GoogleConfig  // Enabled when ClientID is set
	Cognito service.CognitoConfig // Enabled when UserPoolID is set

	CleanupHour     int    // Optional: 0-23 (default: 0)
	CleanupMinute   int    // Optional: 0-59 (default: 0)
	CleanupTimezone string // Optional: IANA zone (default: UTC)

	RateLimits httpx.RateLimitProfiles

	DatabaseFile        string        // Optional: path to SQLite database file (default: ./auth.db)
	PepperFile          string        // Optional: path to file containing pepper for password hashing (default: ./pepper)
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

// LoadConfig reads the environment. A .env file, or the file named by
// ENV_FILE, is loaded first when present; variables already set win.
func LoadConfig() Config {
	loadEnvFile()

	defaults := service.DefaultTokenLifetimes()
	cfg := Config{
		SecretKey:  os.Getenv("AUTH_SECRET_KEY"),
		SecretFile: getEnvOrDefault("AUTH_SECRET_FILE", "secret.key"),
		Algorithm:  strings.ToUpper(getEnvOrDefault("AUTH_ALGORITHM", "HS256")),

		Lifetimes: service.TokenLifetimes{
			Access:     getEnvDurationOrDefault("AUTH_ACCESS_TTL", defaults.Access),
			Refresh:    getEnvDurationOrDefault("AUTH_REFRESH_TTL", defaults.Refresh),
			Reset:      getEnvDurationOrDefault("AUTH_RESET_TTL", defaults.Reset),
			VerifyMail: getEnvDurationOrDefault("AUTH_VERIFY_TTL", defaults.VerifyMail),
			OTP:        getEnvDurationOrDefault("AUTH_OTP_TTL", defaults.OTP),
		},
		RotateRefresh: getEnvBoolOrDefault("AUTH_ROTATE_REFRESH", false),
		Enable2FA:     getEnvBoolOrDefault("AUTH_ENABLE_2FA", false),
		TOTPIssuer:    getEnvOrDefault("AUTH_TOTP_ISSUER", "TokenAuth"),

		Google: service.GoogleConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURI:  os.Getenv("GOOGLE_REDIRECT_URI"),
			TokenURL:     os.Getenv("GOOGLE_TOKEN_URL"),
			CertsURL:     os.Getenv("GOOGLE_CERTS_URL"),
			RevokeURL:    os.Getenv("GOOGLE_REVOKE_URL"),
			Timeout:      getEnvDurationOrDefault("GOOGLE_TIMEOUT", 10*time.Second),
		},
		Cognito: service.CognitoConfig{
			Region:       os.Getenv("COGNITO_REGION"),
			UserPoolID:   os.Getenv("COGNITO_USER_POOL_ID"),
			ClientID:     os.Getenv("COGNITO_CLIENT_ID"),
			ClientSecret: os.Getenv("COGNITO_CLIENT_SECRET"),
			Domain:       strings.TrimSuffix(os.Getenv("COGNITO_DOMAIN"), "/"),
			RedirectURI:  os.Getenv("COGNITO_REDIRECT_URI"),
			JWKSURL:      os.Getenv("COGNITO_JWKS_URL"),
			Timeout:      getEnvDurationOrDefault("COGNITO_TIMEOUT", 10*time.Second),
		},

		CleanupHour:     getEnvIntOrDefault("CLEANUP_HOUR", 0),
		CleanupMinute:   getEnvIntOrDefault("CLEANUP_MINUTE", 0),
		CleanupTimezone: getEnvOrDefault("CLEANUP_TIMEZONE", "UTC"),

		RateLimits: httpx.RateLimitProfilesFromEnv(os.Getenv),

		DatabaseFile:        getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:          getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	return cfg
}

func loadEnvFile() {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	// Load never overrides variables that are already set.
	_ = godotenv.Load(path)
}

// GoogleEnabled reports whether Google login is configured.
func (c Config) GoogleEnabled() bool { return c.Google.ClientID != "" }

// CognitoEnabled reports whether Cognito login is configured.
func (c Config) CognitoEnabled() bool { return c.Cognito.UserPoolID != "" }

// Cleanup resolves the sweep schedule.
func (c Config) Cleanup() (service.CleanupConfig, error) {
	loc, err := time.LoadLocation(c.CleanupTimezone)
	if err != nil {
		return service.CleanupConfig{}, fmt.Errorf("CLEANUP_TIMEZONE: %w", err)
	}
	cc := service.CleanupConfig{Hour: c.CleanupHour, Minute: c.CleanupMinute, Location: loc}
	if err := cc.Validate(); err != nil {
		return service.CleanupConfig{}, err
	}
	return cc, nil
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("AUTH_ALGORITHM: unsupported %q, want HS256, HS384 or HS512", c.Algorithm))
	}
	if c.SecretKey == "" && c.SecretFile == "" {
		errs = append(errs, errors.New("AUTH_SECRET_KEY or AUTH_SECRET_FILE is required"))
	}

	for name, d := range map[string]time.Duration{
		"AUTH_ACCESS_TTL":  c.Lifetimes.Access,
		"AUTH_REFRESH_TTL": c.Lifetimes.Refresh,
		"AUTH_RESET_TTL":   c.Lifetimes.Reset,
		"AUTH_VERIFY_TTL":  c.Lifetimes.VerifyMail,
		"AUTH_OTP_TTL":     c.Lifetimes.OTP,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive", name))
		}
	}

	if _, err := c.Cleanup(); err != nil {
		errs = append(errs, err)
	}

	if c.GoogleEnabled() || c.Google.ClientSecret != "" {
		if c.Google.ClientID == "" || c.Google.ClientSecret == "" || c.Google.RedirectURI == "" {
			errs = append(errs, errors.New("google: GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REDIRECT_URI must be set together"))
		}
	}

	if c.CognitoEnabled() || c.Cognito.ClientID != "" {
		if c.Cognito.Region == "" || c.Cognito.UserPoolID == "" || c.Cognito.ClientID == "" {
			errs = append(errs, errors.New("cognito: COGNITO_REGION, COGNITO_USER_POOL_ID and COGNITO_CLIENT_ID must be set together"))
		}
		if c.Cognito.Domain != "" && c.Cognito.RedirectURI == "" {
			errs = append(errs, errors.New("cognito: COGNITO_REDIRECT_URI is required with COGNITO_DOMAIN"))
		}
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT: %d out of range", c.Port))
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if d, ok := parseDuration(value); ok {
		return d
	}

	return defaultValue
}

// parseDuration accepts Go durations ("90s", "15m"), whole days ("7d") and
// bare integers as minutes.
func parseDuration(value string) (time.Duration, bool) {
	if d, err := time.ParseDuration(value); err == nil {
		return d, true
	}

	if days, ok := strings.CutSuffix(value, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil {
			return time.Duration(n) * 24 * time.Hour, true
		}
	}

	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute, true
	}

	return 0, false
}
