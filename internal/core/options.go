package core

import (
	"log/slog"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/coregx/norm/internal/logger"
	"github.com/coregx/norm/internal/security"
	"github.com/coregx/norm/internal/tracer"
)

// Option is a functional option for configuring DB.
// Options are applied before the connection is opened.
type Option func(*DB)

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(n int) Option {
	return func(db *DB) {
		db.pool.maxOpen = n
	}
}

// WithMaxIdleConns sets the maximum number of idle connections.
func WithMaxIdleConns(n int) Option {
	return func(db *DB) {
		db.pool.maxIdle = n
	}
}

// WithConnMaxLifetime sets the maximum time a connection may be reused.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(db *DB) {
		db.pool.maxLifetime = d
	}
}

// WithLogger sets the query logger. A nil logger disables logging.
func WithLogger(l logger.Logger) Option {
	return func(db *DB) {
		if l == nil {
			l = &logger.NoopLogger{}
		}
		db.logger = l
	}
}

// WithSlogLogger logs through a log/slog logger.
func WithSlogLogger(l *slog.Logger) Option {
	return WithLogger(logger.NewSlogAdapter(l))
}

// WithZapLogger logs through a zap logger.
func WithZapLogger(l *zap.Logger) Option {
	return WithLogger(logger.NewZapAdapter(l))
}

// WithZerologLogger logs through a zerolog logger.
func WithZerologLogger(l zerolog.Logger) Option {
	return WithLogger(logger.NewZerologAdapter(l))
}

// WithSensitiveFields replaces the column names whose values are masked in
// logs and hook events.
func WithSensitiveFields(fields ...string) Option {
	return func(db *DB) {
		db.sanitizer = logger.NewSanitizer(fields)
	}
}

// WithTracer records a span per query and per Atomic transaction.
// A nil tracer uses the globally registered OpenTelemetry provider.
func WithTracer(t trace.Tracer) Option {
	return func(db *DB) {
		db.tracer = tracer.NewOtelTracer(t)
	}
}

// WithQueryHook sets a callback invoked after every query.
func WithQueryHook(hook QueryHook) Option {
	return func(db *DB) {
		db.queryHook = hook
	}
}

// WithValidator screens statements and parameters before they are prepared.
// A nil validator uses the default patterns.
func WithValidator(v *security.Validator) Option {
	return func(db *DB) {
		if v == nil {
			v = security.NewValidator()
		}
		db.validator = v
	}
}

// WithHealthCheck enables a background check that pings the database every
// interval and reconnects when the ping fails.
func WithHealthCheck(interval time.Duration) Option {
	return func(db *DB) {
		db.healthInterval = interval
	}
}

// WithLazyConnect defers opening the connection until the first query.
func WithLazyConnect() Option {
	return func(db *DB) {
		db.lazy = true
	}
}
