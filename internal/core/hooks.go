package core

import (
	"context"
	"time"
)

// QueryEvent contains information about an executed query.
// This is passed to QueryHook callbacks for logging, metrics, or tracing.
type QueryEvent struct {
	// SQL is the statement with named placeholders
	SQL string
	// Params are the bound values, with sensitive columns masked
	Params map[string]any
	// Duration is how long the query took to execute
	Duration time.Duration
	// RowsAffected is the number of rows affected or returned
	RowsAffected int64
	// Error is any error that occurred during query execution (nil on success)
	Error error
	// Operation is the SQL operation type (SELECT, INSERT, UPDATE, DELETE, DDL, UNKNOWN)
	Operation string
	// TxID identifies the enclosing transaction, empty outside one
	TxID string
}

// QueryHook is a callback function invoked after each query execution.
// Use this for metrics, auditing, or debugging.
//
// Example:
//
//	db, _ := norm.Init("sqlite", cfg,
//	    norm.WithQueryHook(func(ctx context.Context, e norm.QueryEvent) {
//	        slog.Info("query", "sql", e.SQL, "duration", e.Duration, "err", e.Error)
//	    }))
type QueryHook func(ctx context.Context, event QueryEvent)

// invokeHook calls the query hook if set.
func (db *DB) invokeHook(ctx context.Context, event QueryEvent) {
	if db.queryHook != nil {
		db.queryHook(ctx, event)
	}
}
