package slogx

import "log/slog"

// CronLogger adapts a slog.Logger to the logger interface robfig/cron
// expects (Info and Error with alternating key/value pairs).
type CronLogger struct {
	Logger *slog.Logger
}

func (c CronLogger) Info(msg string, keysAndValues ...any) {
	// cron is chatty at info (every wake/run), keep it at debug.
	c.Logger.Debug(msg, keysAndValues...)
}

func (c CronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.Logger.Error(msg, append(keysAndValues, "error", err)...)
}
