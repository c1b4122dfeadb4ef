package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/coregx/norm/internal/adapters"
	"github.com/coregx/norm/internal/dialects"
	"github.com/coregx/norm/internal/logger"
	"github.com/coregx/norm/internal/security"
	"github.com/coregx/norm/internal/tracer"
)

// DB is a database handle: a connection opened through an adapter, the
// SQL dialect of its backend and the logging, tracing and validation
// applied to every query. A DB may be shared by many builders.
type DB struct {
	conn           *connection
	driverName     string
	dialect        dialects.Dialect
	logger         logger.Logger
	sanitizer      *logger.Sanitizer
	tracer         tracer.Tracer
	queryHook      QueryHook
	validator      *security.Validator
	health         *healthChecker
	healthInterval time.Duration
	lazy           bool
	pool           poolOptions
	ctx            context.Context
}

// connection is the reopenable *sql.DB shared by every copy of a DB
// made with WithContext.
type connection struct {
	mu      sync.RWMutex
	sqlDB   *sql.DB
	adapter adapters.Adapter // nil for handles passed to WrapDB
	closed  bool             // set by Disconnect, cleared by Connect
}

type poolOptions struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
}

func (p poolOptions) apply(db *sql.DB) {
	if p.maxOpen > 0 {
		db.SetMaxOpenConns(p.maxOpen)
	}
	if p.maxIdle > 0 {
		db.SetMaxIdleConns(p.maxIdle)
	}
	if p.maxLifetime > 0 {
		db.SetConnMaxLifetime(p.maxLifetime)
	}
}

// Tx represents a database transaction.
type Tx struct {
	tx  *sql.Tx
	db  *DB
	ctx context.Context
	id  string
}

// TxOptions represents transaction options including isolation level.
type TxOptions struct {
	// Isolation level for the transaction (e.g., sql.LevelReadCommitted)
	Isolation sql.IsolationLevel
	// ReadOnly indicates whether the transaction is read-only
	ReadOnly bool
}

func newDB(name string, conn *connection, opts []Option) (*DB, error) {
	dialect, ok := dialects.GetDialect(name)
	if !ok {
		return nil, fmt.Errorf("%w: no SQL dialect for %s", ErrUnsupportedBackend, name)
	}

	db := &DB{
		conn:       conn,
		driverName: name,
		dialect:    dialect,
		logger:     &logger.NoopLogger{},
		sanitizer:  logger.NewSanitizer(nil),
		tracer:     &tracer.NoopTracer{},
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Init creates a DB for the named backend (mysql, sqlite, sqlite3,
// postgres or any registered adapter) and connects to it, unless
// WithLazyConnect is given.
//
// Example:
//
//	db, err := norm.Init("sqlite", norm.Config{File: "app.db"},
//	    norm.WithSlogLogger(slog.Default()))
func Init(backend string, cfg adapters.Config, opts ...Option) (*DB, error) {
	adapter, err := adapters.New(backend, cfg)
	if err != nil {
		return nil, err
	}

	db, err := newDB(adapter.Name(), &connection{adapter: adapter}, opts)
	if err != nil {
		return nil, err
	}

	if !db.lazy {
		if err := db.Connect(context.Background()); err != nil {
			return nil, err
		}
	}

	db.startHealthCheck()
	return db, nil
}

// InitFromFile loads a YAML configuration and calls Init with its backend.
func InitFromFile(path string, opts ...Option) (*DB, error) {
	cfg, err := adapters.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return Init(cfg.Backend, cfg, opts...)
}

// Open creates a DB from a driver name and a ready connection string.
// Like sql.Open it does not verify the connection.
func Open(driverName, dsn string, opts ...Option) (*DB, error) {
	adapter := adapters.FromDSN(driverName, dsn)

	db, err := newDB(driverName, &connection{adapter: adapter}, opts)
	if err != nil {
		return nil, err
	}

	if !db.lazy {
		db.conn.mu.Lock()
		err = db.connectLocked(context.Background(), false)
		db.conn.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}

	db.startHealthCheck()
	return db, nil
}

// WrapDB creates a DB around an existing *sql.DB. The wrapped handle cannot
// be reopened once Disconnect or Close has closed it.
func WrapDB(sqlDB *sql.DB, driverName string, opts ...Option) (*DB, error) {
	db, err := newDB(driverName, &connection{sqlDB: sqlDB}, opts)
	if err != nil {
		return nil, err
	}
	db.pool.apply(sqlDB)
	db.startHealthCheck()
	return db, nil
}

// DriverName returns the backend name used for dialect selection and logs.
func (db *DB) DriverName() string {
	return db.driverName
}

// WithContext returns a copy of the DB whose queries use ctx by default.
// The copy shares the underlying connection.
func (db *DB) WithContext(ctx context.Context) *DB {
	cp := *db
	cp.ctx = ctx
	return &cp
}

// With starts a query builder for a table expression.
func (db *DB) With(table string) *QueryBuilder {
	return newQueryBuilder(db, table)
}

// handle returns the open *sql.DB, connecting on first use for lazy handles.
func (db *DB) handle(ctx context.Context) (*sql.DB, error) {
	db.conn.mu.RLock()
	h, closed := db.conn.sqlDB, db.conn.closed
	db.conn.mu.RUnlock()

	if h != nil {
		return h, nil
	}
	if closed {
		return nil, ErrNotConnected
	}

	db.conn.mu.Lock()
	defer db.conn.mu.Unlock()
	if err := db.connectLocked(ctx, true); err != nil {
		return nil, err
	}
	return db.conn.sqlDB, nil
}

// connectLocked opens the pool. The caller holds conn.mu.
func (db *DB) connectLocked(ctx context.Context, ping bool) error {
	c := db.conn
	if c.sqlDB != nil {
		return nil
	}
	if c.adapter == nil {
		return fmt.Errorf("%w: wrapped connection cannot be reopened", ErrNotConnected)
	}

	sqlDB, err := sql.Open(c.adapter.DriverName(), c.adapter.DSN())
	if err != nil {
		return WrapError(err, "failed to open "+db.driverName)
	}
	c.adapter.Configure(sqlDB)
	db.pool.apply(sqlDB)

	if ping {
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			db.logger.Error("database connection failed", "database", db.driverName, "error", err)
			return WrapError(err, "failed to connect to "+db.driverName)
		}
	}

	c.sqlDB = sqlDB
	c.closed = false
	db.logger.Info("database connected", "database", db.driverName)
	return nil
}

// Connect opens and verifies the connection. It is a no-op when already connected.
func (db *DB) Connect(ctx context.Context) error {
	db.conn.mu.Lock()
	defer db.conn.mu.Unlock()
	return db.connectLocked(ctx, true)
}

// Disconnect closes the connection. Queries fail with ErrNotConnected
// until Connect or Reconnect is called.
func (db *DB) Disconnect() error {
	db.conn.mu.Lock()
	defer db.conn.mu.Unlock()
	return db.disconnectLocked()
}

func (db *DB) disconnectLocked() error {
	c := db.conn
	c.closed = true
	if c.sqlDB == nil {
		return nil
	}
	err := c.sqlDB.Close()
	c.sqlDB = nil
	db.logger.Info("database disconnected", "database", db.driverName)
	return err
}

// Reconnect closes the current connection and opens a new one.
func (db *DB) Reconnect(ctx context.Context) error {
	db.conn.mu.Lock()
	defer db.conn.mu.Unlock()

	if db.conn.adapter == nil {
		return fmt.Errorf("%w: wrapped connection cannot be reopened", ErrNotConnected)
	}
	if err := db.disconnectLocked(); err != nil {
		db.logger.Warn("closing stale connection failed", "database", db.driverName, "error", err)
	}
	return db.connectLocked(ctx, true)
}

// Ping reports whether the database answers.
func (db *DB) Ping(ctx context.Context) bool {
	db.conn.mu.RLock()
	h := db.conn.sqlDB
	db.conn.mu.RUnlock()

	return h != nil && h.PingContext(ctx) == nil
}

// EnsureConnection reconnects when the database does not answer a ping.
// After Disconnect it returns ErrNotConnected and leaves the DB closed;
// only Connect or Reconnect reopen it.
func (db *DB) EnsureConnection(ctx context.Context) error {
	if db.Ping(ctx) {
		return nil
	}

	db.conn.mu.RLock()
	closed := db.conn.closed
	db.conn.mu.RUnlock()
	if closed {
		return ErrNotConnected
	}

	db.logger.Warn("database connection lost, reconnecting", "database", db.driverName)
	return db.Reconnect(ctx)
}

// Close stops the health checker and closes the connection.
func (db *DB) Close() error {
	if db.health != nil {
		db.health.shutdown()
	}
	return db.Disconnect()
}

func (db *DB) startHealthCheck() {
	if db.healthInterval <= 0 {
		return
	}
	db.health = newHealthChecker(db.EnsureConnection, db.logger, db.healthInterval)
	db.health.start()
}

// IsHealthy returns the outcome of the last health check, or of an
// immediate ping when health checks are disabled.
func (db *DB) IsHealthy() bool {
	if db.health == nil {
		return db.Ping(context.Background())
	}
	return db.health.isHealthy()
}

// LastHealthCheck returns the time of the last health check, zero when
// none has run.
func (db *DB) LastHealthCheck() time.Time {
	if db.health == nil {
		return time.Time{}
	}
	return db.health.lastCheck()
}

// PoolStats combines connection pool statistics with health status.
type PoolStats struct {
	sql.DBStats
	// Healthy is the result of the last health check (or a ping)
	Healthy bool
	// LastHealthCheck is zero when health checks are disabled
	LastHealthCheck time.Time
}

// Stats returns pool statistics. A disconnected DB reports zero counters.
func (db *DB) Stats() PoolStats {
	db.conn.mu.RLock()
	h := db.conn.sqlDB
	db.conn.mu.RUnlock()

	var stats PoolStats
	if h != nil {
		stats.DBStats = h.Stats()
	}
	stats.Healthy = db.IsHealthy()
	stats.LastHealthCheck = db.LastHealthCheck()
	return stats
}

// HealthError returns the error of the last failed health check.
func (db *DB) HealthError() error {
	if db.health == nil {
		return nil
	}
	return db.health.lastError()
}

// Begin starts a transaction with default options.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	return db.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with specified options.
// Options can specify isolation level and read-only mode.
func (db *DB) BeginTx(ctx context.Context, opts *TxOptions) (*Tx, error) {
	var sqlOpts *sql.TxOptions
	if opts != nil {
		sqlOpts = &sql.TxOptions{
			Isolation: opts.Isolation,
			ReadOnly:  opts.ReadOnly,
		}
	}

	h, err := db.handle(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := h.BeginTx(ctx, sqlOpts)
	if err != nil {
		db.logger.Error("transaction begin failed", "database", db.driverName, "error", err)
		return nil, err
	}

	id := uuid.NewString()
	db.logger.Debug("transaction started", "database", db.driverName, "tx_id", id)

	return &Tx{
		tx:  tx,
		db:  db,
		ctx: ctx,
		id:  id,
	}, nil
}

// ID returns the transaction id used in logs, spans and hook events.
func (tx *Tx) ID() string {
	return tx.id
}

// With starts a query builder that executes within the transaction and
// inherits its context.
func (tx *Tx) With(table string) *QueryBuilder {
	qb := newQueryBuilder(tx.db, table)
	qb.tx = tx.tx
	qb.txID = tx.id
	qb.ctx = tx.ctx
	return qb
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	if err := tx.tx.Commit(); err != nil {
		tx.db.logger.Error("transaction commit failed", "tx_id", tx.id, "error", err)
		return err
	}
	tx.db.logger.Debug("transaction committed", "tx_id", tx.id)
	return nil
}

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error {
	err := tx.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		tx.db.logger.Error("transaction rollback failed", "tx_id", tx.id, "error", err)
		return err
	}
	tx.db.logger.Debug("transaction rolled back", "tx_id", tx.id)
	return err
}

// Atomic runs fn inside a transaction. The transaction commits when fn
// returns nil. When fn returns an error it is rolled back and the error is
// returned unchanged; when fn panics it is rolled back and the panic
// continues.
//
// Example:
//
//	err := db.Atomic(ctx, func(tx *norm.Tx) error {
//	    if _, err := tx.With("user").Where("id", 2).Delete(); err != nil {
//	        return err
//	    }
//	    _, err := tx.With("balance").Where("user_id", 2).Delete()
//	    return err
//	})
func (db *DB) Atomic(ctx context.Context, fn func(tx *Tx) error) error {
	ctx, span := db.tracer.StartSpan(ctx, "norm.transaction")
	defer span.End()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(
		attribute.String("db.system", db.driverName),
		attribute.String("db.transaction_id", tx.id),
	)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			span.SetStatus(codes.Error, fmt.Sprint("panic: ", p))
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ExecDDL executes a statement verbatim, without placeholder rewriting or
// preparation, and returns the number of affected rows.
func (db *DB) ExecDDL(ctx context.Context, statement string) (int64, error) {
	q := db.newQuery(statement, nil, nil, "", ctx)
	q.direct = true

	result, err := q.Execute()
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// Quote quotes s as a string literal of the backend dialect.
func (db *DB) Quote(s string) string {
	return db.dialect.QuoteLiteral(s)
}

// QuoteIdentifier quotes a table or column name.
// For schema-prefixed identifiers like "schema.table", each part is quoted separately.
//
// Example:
//
//	PostgreSQL: users → "users", public.users → "public"."users"
//	MySQL: users → `users`, mydb.users → `mydb`.`users`
func (db *DB) QuoteIdentifier(identifier string) string {
	parts := strings.Split(identifier, ".")
	for i, part := range parts {
		parts[i] = db.dialect.QuoteIdentifier(strings.TrimSpace(part))
	}
	return strings.Join(parts, ".")
}

// ExecContext executes a raw SQL statement with driver placeholders.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	h, err := db.handle(ctx)
	if err != nil {
		return nil, err
	}
	return h.ExecContext(ctx, query, args...)
}

// QueryContext executes a raw SQL query with driver placeholders and returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	h, err := db.handle(ctx)
	if err != nil {
		return nil, err
	}
	return h.QueryContext(ctx, query, args...)
}
