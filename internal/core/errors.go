package core

import (
	"database/sql"
	"errors"

	"github.com/coregx/norm/internal/adapters"
)

// Predefined errors returned by norm database operations.
var (
	// ErrNoRows is returned when a single-row read matches nothing.
	// It is sql.ErrNoRows so callers can check either.
	ErrNoRows = sql.ErrNoRows
	// ErrTxDone is returned when operating on an already committed or rolled back transaction.
	ErrTxDone = sql.ErrTxDone
	// ErrInvalidOperation is returned for an UPDATE or DELETE without a condition.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrInvalidState is returned when a condition group is ended without a parent.
	ErrInvalidState = errors.New("invalid builder state")
	// ErrUnmappedColumn is returned when a result column has no matching struct field.
	ErrUnmappedColumn = errors.New("column has no matching field")
	// ErrMissingParam is returned when a statement names a parameter that was never bound.
	ErrMissingParam = errors.New("missing parameter")
	// ErrNotConnected is returned when the connection was closed with Disconnect.
	ErrNotConnected = errors.New("database is not connected")
	// ErrUnsupportedBackend is returned for an unknown adapter name.
	ErrUnsupportedBackend = adapters.ErrUnsupportedBackend
)

// WrapError wraps an error with additional context message.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
