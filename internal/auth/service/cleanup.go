package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tokenauth/internal/auth/store"
	"github.com/aussiebroadwan/tokenauth/pkg/slogx"
	"github.com/robfig/cron/v3"
)

type CleanupConfig struct {
	Hour     int // 0-23
	Minute   int // 0-59
	Location *time.Location
}

// Spec renders the daily cron expression.
func (c CleanupConfig) Spec() string {
	return fmt.Sprintf("%d %d * * *", c.Minute, c.Hour)
}

func (c CleanupConfig) Validate() error {
	if c.Hour < 0 || c.Hour > 23 {
		return fmt.Errorf("cleanup: hour %d out of range 0-23", c.Hour)
	}
	if c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("cleanup: minute %d out of range 0-59", c.Minute)
	}
	return nil
}

// CleanupScheduler deletes expired token rows once a day so the tokens
// table stays bounded regardless of traffic.
type CleanupScheduler struct {
	Store   store.Store
	Logger  *slog.Logger
	Metrics *Metrics

	cfg   CleanupConfig
	cron  *cron.Cron
	entry cron.EntryID
	now   func() time.Time
}

func NewCleanupScheduler(s store.Store, logger *slog.Logger, cfg CleanupConfig) (*CleanupScheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "cleanup")

	cl := slogx.CronLogger{Logger: logger}
	c := cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	sc := &CleanupScheduler{
		Store:  s,
		Logger: logger,
		cfg:    cfg,
		cron:   c,
		now:    time.Now,
	}

	id, err := c.AddFunc(cfg.Spec(), sc.run)
	if err != nil {
		return nil, fmt.Errorf("cleanup: schedule %q: %w", cfg.Spec(), err)
	}
	sc.entry = id
	return sc, nil
}

// WithClock replaces the time used to decide what has expired.
func (s *CleanupScheduler) WithClock(now func() time.Time) *CleanupScheduler {
	s.now = now
	return s
}

// Start begins the schedule. It does not block.
func (s *CleanupScheduler) Start() {
	s.cron.Start()
	s.Logger.Info("cleanup scheduler started",
		"schedule", s.cfg.Spec(),
		"timezone", s.cfg.Location.String(),
		"next_run", s.Next())
}

// Stop halts the schedule and waits for a running sweep to finish, or for
// ctx to end.
func (s *CleanupScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.Logger.Warn("cleanup scheduler stop timed out")
		return
	}
	s.Logger.Info("cleanup scheduler stopped")
}

// Next is the time of the next scheduled sweep, or zero before Start.
func (s *CleanupScheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

func (s *CleanupScheduler) run() {
	_, _ = s.RunOnce(context.Background())
}

// RunOnce deletes every token row whose expiry has passed and reports how
// many went.
func (s *CleanupScheduler) RunOnce(ctx context.Context) (int64, error) {
	began := time.Now()
	n, err := s.Store.Tokens().DeleteExpiredTokens(ctx, s.now())
	s.Metrics.cleanup(n, err)
	if err != nil {
		s.Logger.Error("expired token sweep failed", "error", err)
		return 0, fmt.Errorf("cleanup: %w", err)
	}

	s.Logger.Info("expired token sweep completed",
		"deleted", n,
		"duration", time.Since(began))
	return n, nil
}
