// Package norm provides a fluent SQL query builder for MySQL, SQLite and
// PostgreSQL. Conditions are grouped and bound as named parameters,
// results come back as maps, positional slices or structs, and every
// statement is logged, traced and optionally validated.
//
// Example:
//
//	db, err := norm.Init("sqlite", norm.Config{File: "app.db"})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	name, err := db.With("user").Where("id", "<", 2).Where("id", 1).Value("name")
package norm

import (
	"github.com/coregx/norm/internal/adapters"
	"github.com/coregx/norm/internal/core"
	"github.com/coregx/norm/internal/logger"
	"github.com/coregx/norm/internal/security"
)

type (
	// DB represents a database handle with logging, tracing and validation.
	DB = core.DB
	// Tx represents a database transaction.
	Tx = core.Tx
	// TxOptions represents transaction options including isolation level.
	TxOptions = core.TxOptions
	// Option is a functional option for configuring DB.
	Option = core.Option
	// QueryBuilder builds and executes one statement against a table expression.
	QueryBuilder = core.QueryBuilder
	// ConditionBuilder accumulates the clauses of one WHERE group.
	ConditionBuilder = core.ConditionBuilder
	// Query is a statement with named parameters.
	Query = core.Query
	// Params maps named placeholders (":p1", ...) to values.
	Params = core.Params
	// Row is one result row keyed by column name.
	Row = core.Row
	// Raw marks a value inlined into SQL verbatim.
	Raw = core.Raw
	// QueryEvent describes one executed query.
	QueryEvent = core.QueryEvent
	// QueryHook is invoked after each query.
	QueryHook = core.QueryHook
	// PoolStats combines pool statistics with health status.
	PoolStats = core.PoolStats

	// Config holds backend connection settings.
	Config = adapters.Config
	// Adapter describes how to open a connection for one database engine.
	Adapter = adapters.Adapter
	// AdapterConstructor builds an Adapter from configuration.
	AdapterConstructor = adapters.Constructor

	// Logger is the logging interface used for query logs.
	Logger = logger.Logger
	// Validator screens statements and parameters for injection patterns.
	Validator = security.Validator
)

// Re-export core functions.
var (
	Init         = core.Init
	InitFromFile = core.InitFromFile
	Open         = core.Open
	WrapDB       = core.WrapDB

	WithLogger          = core.WithLogger
	WithSlogLogger      = core.WithSlogLogger
	WithZapLogger       = core.WithZapLogger
	WithZerologLogger   = core.WithZerologLogger
	WithSensitiveFields = core.WithSensitiveFields
	WithTracer          = core.WithTracer
	WithQueryHook       = core.WithQueryHook
	WithValidator       = core.WithValidator
	WithHealthCheck     = core.WithHealthCheck
	WithLazyConnect     = core.WithLazyConnect
	WithMaxOpenConns    = core.WithMaxOpenConns
	WithMaxIdleConns    = core.WithMaxIdleConns
	WithConnMaxLifetime = core.WithConnMaxLifetime

	RegisterAdapter = adapters.Register
	Backends        = adapters.Backends
	LoadConfig      = adapters.LoadConfig
	ParseConfig     = adapters.ParseConfig

	NewValidator = security.NewValidator
	WithStrict   = security.WithStrict
	WithPatterns = security.WithPatterns
)

// Errors returned by norm, checked with errors.Is.
var (
	ErrNoRows             = core.ErrNoRows
	ErrTxDone             = core.ErrTxDone
	ErrInvalidOperation   = core.ErrInvalidOperation
	ErrInvalidState       = core.ErrInvalidState
	ErrUnmappedColumn     = core.ErrUnmappedColumn
	ErrMissingParam       = core.ErrMissingParam
	ErrNotConnected       = core.ErrNotConnected
	ErrUnsupportedBackend = core.ErrUnsupportedBackend
	ErrMissingFile        = adapters.ErrMissingFile
	ErrDangerousQuery     = security.ErrDangerousQuery
	ErrSuspiciousParam    = security.ErrSuspiciousParam
)

// GetClass returns the first matching row mapped onto a new T. Columns map
// to fields by db tag or exact field name; a column without a field
// returns ErrUnmappedColumn.
//
//	type User struct {
//	    ID   int64  `db:"id"`
//	    Name string `db:"name"`
//	}
//	u, err := norm.GetClass[User](db.With("user").Where("id", 1), "id", "name")
func GetClass[T any](qb *QueryBuilder, fields ...string) (*T, error) {
	return core.GetClass[T](qb, fields...)
}

// AllClass returns every matching row mapped onto T.
func AllClass[T any](qb *QueryBuilder, fields ...string) ([]T, error) {
	return core.AllClass[T](qb, fields...)
}
