// Package logger provides logging abstractions for norm.
// It ships adapters for log/slog, zap and zerolog and allows custom implementations.
package logger

import (
	"log/slog"

	"github.com/rs/zerolog"
	"go.uber.org/zap"
)

// Logger defines the logging interface for norm.
// Implementations should handle structured logging with key-value pairs.
type Logger interface {
	// Debug logs debug-level messages with optional key-value pairs
	Debug(msg string, args ...any)
	// Info logs informational messages with optional key-value pairs
	Info(msg string, args ...any)
	// Warn logs warning messages with optional key-value pairs
	Warn(msg string, args ...any)
	// Error logs error messages with optional key-value pairs
	Error(msg string, args ...any)
}

// NoopLogger is a logger that does nothing.
// This is the default logger used when no logger is configured.
type NoopLogger struct{}

// Debug does nothing.
func (n *NoopLogger) Debug(_ string, _ ...any) {}

// Info does nothing.
func (n *NoopLogger) Info(_ string, _ ...any) {}

// Warn does nothing.
func (n *NoopLogger) Warn(_ string, _ ...any) {}

// Error does nothing.
func (n *NoopLogger) Error(_ string, _ ...any) {}

// SlogAdapter wraps log/slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new logger adapter wrapping an slog.Logger.
// The provided logger must not be nil.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Debug logs a debug-level message with structured key-value pairs.
func (a *SlogAdapter) Debug(msg string, args ...any) {
	a.logger.Debug(msg, args...)
}

// Info logs an info-level message with structured key-value pairs.
func (a *SlogAdapter) Info(msg string, args ...any) {
	a.logger.Info(msg, args...)
}

// Warn logs a warning-level message with structured key-value pairs.
func (a *SlogAdapter) Warn(msg string, args ...any) {
	a.logger.Warn(msg, args...)
}

// Error logs an error-level message with structured key-value pairs.
func (a *SlogAdapter) Error(msg string, args ...any) {
	a.logger.Error(msg, args...)
}

// ZapAdapter wraps a zap.Logger. Key-value pairs go through the sugared API.
type ZapAdapter struct {
	logger *zap.SugaredLogger
}

// NewZapAdapter creates a new logger adapter wrapping a zap.Logger.
// A nil logger is replaced by zap.NewNop().
func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapAdapter{logger: logger.Sugar()}
}

// Debug logs a debug-level message.
func (a *ZapAdapter) Debug(msg string, args ...any) {
	a.logger.Debugw(msg, args...)
}

// Info logs an info-level message.
func (a *ZapAdapter) Info(msg string, args ...any) {
	a.logger.Infow(msg, args...)
}

// Warn logs a warning-level message.
func (a *ZapAdapter) Warn(msg string, args ...any) {
	a.logger.Warnw(msg, args...)
}

// Error logs an error-level message.
func (a *ZapAdapter) Error(msg string, args ...any) {
	a.logger.Errorw(msg, args...)
}

// ZerologAdapter wraps a zerolog.Logger.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a new logger adapter wrapping a zerolog.Logger.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// Debug logs a debug-level message.
func (a *ZerologAdapter) Debug(msg string, args ...any) {
	a.logger.Debug().Fields(args).Msg(msg)
}

// Info logs an info-level message.
func (a *ZerologAdapter) Info(msg string, args ...any) {
	a.logger.Info().Fields(args).Msg(msg)
}

// Warn logs a warning-level message.
func (a *ZerologAdapter) Warn(msg string, args ...any) {
	a.logger.Warn().Fields(args).Msg(msg)
}

// Error logs an error-level message.
func (a *ZerologAdapter) Error(msg string, args ...any) {
	a.logger.Error().Fields(args).Msg(msg)
}
