package service_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokenauth/internal/auth/domain"
	"github.com/aussiebroadwan/tokenauth/internal/auth/service"
	"github.com/aussiebroadwan/tokenauth/internal/auth/store"
	"github.com/aussiebroadwan/tokenauth/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/tokenauth/pkg/cryptox"
	"github.com/aussiebroadwan/tokenauth/pkg/idx"
	"github.com/aussiebroadwan/tokenauth/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-that-is-at-least-32-bytes!!")

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "service-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

// fakeClock is a settable time source shared by the services under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTokenService(t *testing.T, s store.Store, clock *fakeClock) *service.TokenService {
	t.Helper()
	codec, err := jwtx.NewHMAC("HS256", testSecret)
	require.NoError(t, err)
	return service.NewTokenService(s, codec, service.DefaultTokenLifetimes()).WithClock(clock.Now)
}

type userOpts struct {
	password   string
	unverified bool
	provider   domain.AuthProvider
}

func seedUser(t *testing.T, s store.Store, email string, o userOpts) domain.User {
	t.Helper()
	if o.provider == "" {
		o.provider = domain.ProviderEmail
	}
	u := domain.User{
		ID:              idx.New().String(),
		Email:           email,
		Name:            "Test User",
		AuthProvider:    o.provider,
		IsActive:        true,
		IsEmailVerified: !o.unverified,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if o.password != "" {
		h, err := cryptox.HashPassword(o.password)
		require.NoError(t, err)
		u.PasswordHash = &h
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func countTokens(t *testing.T, s store.Store, userID string, kind domain.TokenKind) int64 {
	t.Helper()
	n, err := s.Tokens().CountUserTokens(context.Background(), userID, kind)
	require.NoError(t, err)
	return n
}

// captureMailer keeps every message for inspection.
type captureMailer struct {
	mu   sync.Mutex
	sent []service.Message
}

func (m *captureMailer) Send(_ context.Context, msg service.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) last(t *testing.T) service.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}
