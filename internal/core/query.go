package core

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/coregx/norm/internal/tracer"
)

// Query is one statement with named parameters, ready to execute on a DB
// or, when tx is not nil, within a transaction. Every execution is logged,
// traced and reported to the query hook.
type Query struct {
	sql    string
	params Params
	db     *DB
	tx     *sql.Tx // nil for non-transactional queries
	txID   string
	ctx    context.Context
	table  string
	direct bool // skip placeholder rewriting and prepare
}

// newQuery resolves the execution context: explicit ctx, then the
// transaction context captured in ctx by the caller, then the DB context.
func (db *DB) newQuery(sql string, params Params, tx *sql.Tx, txID string, ctx context.Context) *Query {
	if ctx == nil {
		ctx = db.ctx
	}
	if params == nil {
		params = make(Params)
	}
	return &Query{
		sql:    sql,
		params: params,
		db:     db,
		tx:     tx,
		txID:   txID,
		ctx:    ctx,
	}
}

// NewQuery creates a raw statement using named placeholders (":p1", ...).
//
//	row, err := db.NewQuery("SELECT name FROM user WHERE id = :p1").
//	    Bind(norm.Params{":p1": 1}).
//	    Map()
func (db *DB) NewQuery(sql string) *Query {
	return db.newQuery(sql, nil, nil, "", nil)
}

// NewQuery creates a raw statement that executes within the transaction.
func (tx *Tx) NewQuery(sql string) *Query {
	return tx.db.newQuery(sql, nil, tx.tx, tx.id, tx.ctx)
}

// Bind adds named parameter values to the query.
func (q *Query) Bind(params Params) *Query {
	q.params.merge(params)
	return q
}

// WithContext sets the context used to execute the query.
func (q *Query) WithContext(ctx context.Context) *Query {
	q.ctx = ctx
	return q
}

// SQL returns the statement with named placeholders.
func (q *Query) SQL() string {
	return q.sql
}

// Params returns a copy of the bound parameters.
func (q *Query) Params() Params {
	return q.params.clone()
}

// Execute runs a statement that returns no rows (INSERT/UPDATE/DELETE/DDL).
func (q *Query) Execute() (sql.Result, error) {
	var result sql.Result
	err := q.run("exec", func(ctx context.Context, stmt *sql.Stmt, query string, args []any) (int64, error) {
		var err error
		switch {
		case stmt != nil:
			result, err = stmt.ExecContext(ctx, args...)
		case q.tx != nil:
			result, err = q.tx.ExecContext(ctx, query, args...)
		default:
			var handle *sql.DB
			if handle, err = q.db.handle(ctx); err == nil {
				result, err = handle.ExecContext(ctx, query, args...)
			}
		}
		if err != nil {
			return 0, err
		}
		n, _ := result.RowsAffected()
		return n, nil
	})
	return result, err
}

// Row runs the query and calls scan for the first row only.
// It returns ErrNoRows when the result is empty.
func (q *Query) Row(scan func(*sql.Rows) error) error {
	return q.query("row", func(rows *sql.Rows) (int64, error) {
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return 0, err
			}
			return 0, ErrNoRows
		}
		if err := scan(rows); err != nil {
			return 0, err
		}
		return 1, nil
	})
}

// Rows runs the query and calls scan once per result row.
func (q *Query) Rows(scan func(*sql.Rows) error) error {
	return q.query("rows", func(rows *sql.Rows) (int64, error) {
		var n int64
		for rows.Next() {
			if err := scan(rows); err != nil {
				return n, err
			}
			n++
		}
		return n, rows.Err()
	})
}

// One scans the first row into dest, a pointer to struct.
func (q *Query) One(dest any) error {
	return q.Row(func(rows *sql.Rows) error {
		return globalScanner.scanStruct(rows, dest)
	})
}

// All scans every row into dest, a pointer to a slice of structs.
func (q *Query) All(dest any) error {
	var appendRow func() error
	err := q.Rows(func(rows *sql.Rows) error {
		if appendRow == nil {
			var err error
			if appendRow, err = globalScanner.structAppender(rows, dest); err != nil {
				return err
			}
		}
		return appendRow()
	})
	if err == nil && appendRow == nil {
		resetSlice(dest)
	}
	return err
}

// Map returns the first row keyed by column name.
func (q *Query) Map() (Row, error) {
	var row Row
	err := q.Row(func(rows *sql.Rows) error {
		columns, err := rows.Columns()
		if err != nil {
			return err
		}
		row, err = scanMap(rows, columns)
		return err
	})
	return row, err
}

// Maps returns every row keyed by column name.
func (q *Query) Maps() ([]Row, error) {
	var columns []string
	result := []Row{}
	err := q.Rows(func(rows *sql.Rows) error {
		if columns == nil {
			var err error
			if columns, err = rows.Columns(); err != nil {
				return err
			}
		}
		row, err := scanMap(rows, columns)
		if err != nil {
			return err
		}
		result = append(result, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Slice returns the first row as positional values.
func (q *Query) Slice() ([]any, error) {
	var values []any
	err := q.Row(func(rows *sql.Rows) error {
		columns, err := rows.Columns()
		if err != nil {
			return err
		}
		values, err = scanValues(rows, len(columns))
		return err
	})
	return values, err
}

// Slices returns every row as positional values.
func (q *Query) Slices() ([][]any, error) {
	n := -1
	result := [][]any{}
	err := q.Rows(func(rows *sql.Rows) error {
		if n < 0 {
			columns, err := rows.Columns()
			if err != nil {
				return err
			}
			n = len(columns)
		}
		values, err := scanValues(rows, n)
		if err != nil {
			return err
		}
		result = append(result, values)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// query executes a statement that returns rows and hands them to consume.
func (q *Query) query(op string, consume func(*sql.Rows) (int64, error)) error {
	return q.run(op, func(ctx context.Context, stmt *sql.Stmt, _ string, args []any) (int64, error) {
		rows, err := stmt.QueryContext(ctx, args...)
		if err != nil {
			return 0, err
		}
		defer func() { _ = rows.Close() }()
		return consume(rows)
	})
}

// run is the shared execution path: rewrite placeholders, validate,
// prepare on the transaction or the pool, call exec, then log, trace and
// invoke the hook with the outcome. Direct queries skip the rewrite and
// the prepare step and receive a nil stmt.
func (q *Query) run(op string, exec func(ctx context.Context, stmt *sql.Stmt, query string, args []any) (int64, error)) error {
	ctx := q.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := q.db.tracer.StartSpan(ctx, "norm.query."+op)
	defer span.End()

	start := time.Now()

	query, args := q.sql, []any(nil)
	if !q.direct {
		var err error
		if query, args, err = q.db.processSQL(q.sql, q.params); err != nil {
			q.finish(ctx, span, "query preparation failed", time.Since(start), 0, err)
			return err
		}
	}

	if v := q.db.validator; v != nil {
		err := v.ValidateQuery(query)
		if err == nil {
			err = v.ValidateParams(q.params)
		}
		if err != nil {
			q.finish(ctx, span, "query rejected by validator", time.Since(start), 0, err)
			return err
		}
	}

	var stmt *sql.Stmt
	if !q.direct {
		var err error
		if stmt, err = q.prepare(ctx, query); err != nil {
			q.finish(ctx, span, "query preparation failed", time.Since(start), 0, err)
			return err
		}
		defer func() { _ = stmt.Close() }()
	}

	n, err := exec(ctx, stmt, query, args)
	q.finish(ctx, span, "query execution failed", time.Since(start), n, err)
	return err
}

// prepare prepares the rewritten statement on the transaction or the pool.
func (q *Query) prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	if q.tx != nil {
		return q.tx.PrepareContext(ctx, query)
	}
	handle, err := q.db.handle(ctx)
	if err != nil {
		return nil, err
	}
	return handle.PrepareContext(ctx, query)
}

// finish reports one execution to the logger, the span and the query hook.
// failMsg is used when err is a real failure.
func (q *Query) finish(ctx context.Context, span tracer.Span, failMsg string, elapsed time.Duration, rows int64, err error) {
	fields := []any{
		"sql", q.sql,
		"params", q.db.sanitizer.FormatParams(q.db.sanitizer.MaskParams(q.sql, q.params)),
		"duration_ms", elapsed.Milliseconds(),
		"database", q.db.driverName,
	}
	if q.txID != "" {
		fields = append(fields, "tx_id", q.txID)
	}

	switch {
	case errors.Is(err, ErrNoRows):
		q.db.logger.Warn("query returned no rows", fields...)
	case err != nil:
		q.db.logger.Error(failMsg, append(fields, "error", err)...)
	default:
		q.db.logger.Info("query executed", append(fields, "rows", rows)...)
	}

	operation := tracer.DetectOperation(q.sql)

	tracer.AddQueryAttributes(span, &tracer.QueryMetadata{
		SQL:          q.sql,
		ParamCount:   len(q.params),
		Duration:     elapsed,
		RowsAffected: rows,
		Error:        err,
		Database:     q.db.driverName,
		Operation:    operation,
		Table:        q.table,
		TxID:         q.txID,
	})

	q.db.invokeHook(ctx, QueryEvent{
		SQL:          q.sql,
		Params:       q.db.sanitizer.MaskParams(q.sql, q.params),
		Duration:     elapsed,
		RowsAffected: rows,
		Error:        err,
		Operation:    operation,
		TxID:         q.txID,
	})
}
