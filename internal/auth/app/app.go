package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpapi "github.com/aussiebroadwan/tokenauth/internal/auth/http"
	"github.com/aussiebroadwan/tokenauth/internal/auth/service"
	"github.com/aussiebroadwan/tokenauth/internal/auth/store"
	"github.com/aussiebroadwan/tokenauth/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/tokenauth/pkg/cryptox"
	"github.com/aussiebroadwan/tokenauth/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	registry *prometheus.Registry
	metrics  *service.Metrics

	tokenService  *service.TokenService
	totpService   *service.TOTPService
	authenticator *service.Authenticator
	accounts      *service.AccountService
	cleanup       *service.CleanupScheduler

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "tokenauth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.cleanup.Start()
	app.logger.Info("token cleanup scheduled", "next_run", app.cleanup.Next())

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"providers", app.authenticator.Providers(),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Waits for a running sweep before the database goes away.
	app.cleanup.Stop(ctx)

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// RunCleanup performs one expired token sweep and closes the database. It
// backs the "cleanup" command.
func (app *Application) RunCleanup(ctx context.Context) (int64, error) {
	defer func() {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
		}
	}()
	return app.cleanup.RunOnce(ctx)
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = service.NewMetrics(app.registry)

	codec, err := InitCodec(app.cfg, app.logger)
	if err != nil {
		return err
	}

	app.tokenService = service.NewTokenService(app.db, codec, app.cfg.Lifetimes)
	app.tokenService.Metrics = app.metrics

	app.totpService = service.NewTOTPService(app.db, app.cfg.TOTPIssuer)

	verifiers := []service.Verifier{&service.PasswordVerifier{Store: app.db}}
	if app.cfg.GoogleEnabled() {
		verifiers = append(verifiers, service.NewGoogleVerifier(app.db, app.cfg.Google))
		app.logger.Info("google login enabled")
	}
	if app.cfg.CognitoEnabled() {
		verifiers = append(verifiers, service.NewCognitoVerifier(app.db, app.cfg.Cognito))
		app.logger.Info("cognito login enabled", "issuer", app.cfg.Cognito.Issuer())
	}

	app.authenticator = service.NewAuthenticator(app.tokenService, app.totpService,
		service.AuthenticatorOptions{
			Enable2FA:     app.cfg.Enable2FA,
			RotateRefresh: app.cfg.RotateRefresh,
		},
		verifiers...,
	)
	app.authenticator.Metrics = app.metrics

	app.accounts = &service.AccountService{
		Store:  app.db,
		Tokens: app.tokenService,
		Mailer: service.LogMailer{Logger: app.logger.With("component", "mailer")},
	}

	cleanupCfg, err := app.cfg.Cleanup()
	if err != nil {
		return err
	}
	app.cleanup, err = service.NewCleanupScheduler(app.db, app.logger, cleanupCfg)
	if err != nil {
		return err
	}
	app.cleanup.Metrics = app.metrics

	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger, app.cfg.RateLimits)

	router.Authenticator = app.authenticator
	router.Accounts = app.accounts
	router.TOTP = app.totpService
	router.Gatherer = app.registry
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
