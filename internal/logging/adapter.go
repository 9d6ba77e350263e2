package logging

import (
	"io"
	"log/slog"
)

// Logger is the canonical interface for structured logging throughout the application.
// Components of the assistant loop accept a Logger so tests can capture or
// silence output without touching the global slog default.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// SlogAdapter adapts an slog.Logger to the Logger interface.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter wrapping the given slog.Logger.
// If logger is nil, slog.Default() is used.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger}
}

// Debug logs a debug message with key-value pairs.
func (a *SlogAdapter) Debug(msg string, args ...interface{}) {
	a.logger.Debug(msg, args...)
}

// Info logs an info message with key-value pairs.
func (a *SlogAdapter) Info(msg string, args ...interface{}) {
	a.logger.Info(msg, args...)
}

// Warn logs a warning message with key-value pairs.
func (a *SlogAdapter) Warn(msg string, args ...interface{}) {
	a.logger.Warn(msg, args...)
}

// Error logs an error message with key-value pairs.
func (a *SlogAdapter) Error(msg string, args ...interface{}) {
	a.logger.Error(msg, args...)
}

// With returns an adapter whose lines all carry the given attributes.
func (a *SlogAdapter) With(args ...interface{}) *SlogAdapter {
	return &SlogAdapter{logger: a.logger.With(args...)}
}

// Logger returns the underlying slog.Logger for direct access when needed.
func (a *SlogAdapter) Logger() *slog.Logger {
	return a.logger
}

// DefaultLogger returns a Logger using the default slog.Logger.
func DefaultLogger() *SlogAdapter {
	return NewSlogAdapter(slog.Default())
}

// Discard returns a Logger that drops every line.
func Discard() *SlogAdapter {
	return NewSlogAdapter(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// With returns a Logger whose lines all carry args. Loggers other than
// *SlogAdapter are wrapped.
func With(l Logger, args ...interface{}) Logger {
	if len(args) == 0 {
		return l
	}
	if a, ok := l.(*SlogAdapter); ok {
		return a.With(args...)
	}
	return &withLogger{l: l, args: args}
}

type withLogger struct {
	l    Logger
	args []interface{}
}

func (w *withLogger) merge(args []interface{}) []interface{} {
	out := make([]interface{}, 0, len(w.args)+len(args))
	out = append(out, w.args...)
	return append(out, args...)
}

func (w *withLogger) Debug(msg string, args ...interface{}) { w.l.Debug(msg, w.merge(args)...) }
func (w *withLogger) Info(msg string, args ...interface{})  { w.l.Info(msg, w.merge(args)...) }
func (w *withLogger) Warn(msg string, args ...interface{})  { w.l.Warn(msg, w.merge(args)...) }
func (w *withLogger) Error(msg string, args ...interface{}) { w.l.Error(msg, w.merge(args)...) }
