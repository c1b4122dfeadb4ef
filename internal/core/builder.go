package core

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// Raw marks an INSERT or UPDATE value that is inlined into the statement
// verbatim instead of being bound, e.g. Raw("NOW()").
type Raw string

// QueryBuilder builds and executes one statement against a single table
// expression. When tx is not nil, the statement executes within that
// transaction. A builder is single-use and not safe for concurrent use.
type QueryBuilder struct {
	db      *DB
	tx      *sql.Tx // nil for non-transactional queries
	txID    string
	ctx     context.Context // context for the statement built by this builder
	table   string
	orderBy string
	limit   int
	offset  int
	where   *ConditionBuilder
	alloc   paramAllocator
}

func newQueryBuilder(db *DB, table string) *QueryBuilder {
	qb := &QueryBuilder{db: db, table: table}
	qb.where = newConditionBuilder(qb, nil)
	return qb
}

// WithContext sets the context for the statement built by this builder.
// It takes priority over the transaction and DB contexts.
func (qb *QueryBuilder) WithContext(ctx context.Context) *QueryBuilder {
	qb.ctx = ctx
	return qb
}

// Join appends an inner join to the table expression.
//
//	db.With("user").Join("balance", "balance.user_id = user.id")
//	// FROM user JOIN balance ON balance.user_id = user.id
func (qb *QueryBuilder) Join(table, on string) *QueryBuilder {
	qb.table += " JOIN " + table + " ON " + on
	return qb
}

// LeftJoin appends a left outer join to the table expression.
func (qb *QueryBuilder) LeftJoin(table, on string) *QueryBuilder {
	qb.table += " LEFT JOIN " + table + " ON " + on
	return qb
}

// Where adds an AND clause to the root condition group. See ConditionBuilder.Where.
func (qb *QueryBuilder) Where(field string, args ...any) *QueryBuilder {
	qb.where.Where(field, args...)
	return qb
}

// WhereOR adds an OR clause to the root condition group.
func (qb *QueryBuilder) WhereOR(field string, args ...any) *QueryBuilder {
	qb.where.WhereOR(field, args...)
	return qb
}

// WhereRaw adds an AND clause with an inlined right-hand side.
func (qb *QueryBuilder) WhereRaw(field, op, fragment string) *QueryBuilder {
	qb.where.WhereRaw(field, op, fragment)
	return qb
}

// WhereORRaw adds an OR clause with an inlined right-hand side.
func (qb *QueryBuilder) WhereORRaw(field, op, fragment string) *QueryBuilder {
	qb.where.WhereORRaw(field, op, fragment)
	return qb
}

// BeginWhereGroup opens a nested group under the root condition group.
func (qb *QueryBuilder) BeginWhereGroup() *ConditionBuilder {
	return qb.where.BeginWhereGroup()
}

// Conditions returns the root condition group.
func (qb *QueryBuilder) Conditions() *ConditionBuilder {
	return qb.where
}

// OrderBy sets the ORDER BY expressions, replacing any previous ordering.
func (qb *QueryBuilder) OrderBy(exprs ...string) *QueryBuilder {
	qb.orderBy = strings.Join(exprs, ",")
	return qb
}

// Limit caps the number of returned rows and optionally skips offset rows.
// A count of zero or less means no limit. Single-row reads (Get, GetNum,
// GetStruct, Value) always read the first matching row and ignore it.
func (qb *QueryBuilder) Limit(count int, offset ...int) *QueryBuilder {
	qb.limit = count
	qb.offset = 0
	if len(offset) > 0 {
		qb.offset = offset[0]
	}
	return qb
}

// SelectSQL returns the SELECT statement and its parameters without executing it.
func (qb *QueryBuilder) SelectSQL(fields ...string) (string, map[string]any) {
	return qb.selectSQL(fields, qb.limit, qb.offset), qb.where.Params()
}

func (qb *QueryBuilder) selectSQL(fields []string, limit, offset int) string {
	cols := "*"
	if len(fields) > 0 {
		cols = strings.Join(fields, ",")
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(cols)
	b.WriteString(" FROM ")
	b.WriteString(qb.table)

	if cond := qb.where.CondStr(); cond != "" {
		b.WriteString(" WHERE ")
		b.WriteString(cond)
	}
	if qb.orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(qb.orderBy)
	}
	if limit > 0 {
		b.WriteString(" ")
		b.WriteString(qb.db.dialect.LimitClause(limit, offset))
	}
	return b.String()
}

// aggregateSQL renders "SELECT fn FROM t WHERE cond" without ordering or limit.
func (qb *QueryBuilder) aggregateSQL(fn string) string {
	query := "SELECT " + fn + " FROM " + qb.table
	if cond := qb.where.CondStr(); cond != "" {
		query += " WHERE " + cond
	}
	return query
}

// build wraps query and params into a Query bound to this builder's
// connection, transaction and context.
func (qb *QueryBuilder) build(query string, params Params) *Query {
	q := qb.db.newQuery(query, params, qb.tx, qb.txID, qb.ctx)
	q.table = qb.table
	return q
}

// selectQuery builds the SELECT for multi-row reads, honoring Limit.
func (qb *QueryBuilder) selectQuery(fields []string) *Query {
	return qb.build(qb.selectSQL(fields, qb.limit, qb.offset), qb.where.params.clone())
}

// firstQuery builds the SELECT for single-row reads: LIMIT 1 from the first
// matching row, whatever Limit was called with.
func (qb *QueryBuilder) firstQuery(fields []string) *Query {
	return qb.build(qb.selectSQL(fields, 1, 0), qb.where.params.clone())
}

// Get returns the first matching row keyed by column name.
// It returns ErrNoRows when nothing matches.
func (qb *QueryBuilder) Get(fields ...string) (Row, error) {
	return qb.firstQuery(fields).Map()
}

// GetNum returns the first matching row as positional values.
func (qb *QueryBuilder) GetNum(fields ...string) ([]any, error) {
	return qb.firstQuery(fields).Slice()
}

// GetStruct scans the first matching row into dest, a pointer to struct.
func (qb *QueryBuilder) GetStruct(dest any, fields ...string) error {
	return qb.firstQuery(fields).One(dest)
}

// All returns every matching row keyed by column name.
func (qb *QueryBuilder) All(fields ...string) ([]Row, error) {
	return qb.selectQuery(fields).Maps()
}

// AllNum returns every matching row as positional values.
func (qb *QueryBuilder) AllNum(fields ...string) ([][]any, error) {
	return qb.selectQuery(fields).Slices()
}

// AllStruct scans every matching row into dest, a pointer to a slice of
// structs or struct pointers.
func (qb *QueryBuilder) AllStruct(dest any, fields ...string) error {
	return qb.selectQuery(fields).All(dest)
}

// Value returns a single column of the first matching row.
func (qb *QueryBuilder) Value(field string) (any, error) {
	var v any
	err := qb.firstQuery([]string{field}).Row(func(rows *sql.Rows) error {
		if err := rows.Scan(&v); err != nil {
			return err
		}
		v = normalizeValue(v)
		return nil
	})
	return v, err
}

// Count returns the number of matching rows. The counted expression defaults to "*".
func (qb *QueryBuilder) Count(field ...string) (int64, error) {
	expr := "*"
	if len(field) > 0 && field[0] != "" {
		expr = field[0]
	}

	var n int64
	err := qb.build(qb.aggregateSQL("COUNT("+expr+")"), qb.where.params.clone()).Row(func(rows *sql.Rows) error {
		return rows.Scan(&n)
	})
	return n, err
}

// Max returns the largest value of a numeric field. Valid is false when no
// row matches. Use MaxValue for text or date columns.
func (qb *QueryBuilder) Max(field string) (sql.NullFloat64, error) {
	return qb.aggregate("MAX", field)
}

// Min returns the smallest value of a numeric field. Valid is false when no
// row matches. Use MinValue for text or date columns.
func (qb *QueryBuilder) Min(field string) (sql.NullFloat64, error) {
	return qb.aggregate("MIN", field)
}

// MaxValue returns the largest value of field as the driver reports it,
// nil when no row matches.
func (qb *QueryBuilder) MaxValue(field string) (any, error) {
	return qb.aggregateValue("MAX", field)
}

// MinValue returns the smallest value of field as the driver reports it,
// nil when no row matches.
func (qb *QueryBuilder) MinValue(field string) (any, error) {
	return qb.aggregateValue("MIN", field)
}

// Avg returns the mean of field. Valid is false when no row matches.
func (qb *QueryBuilder) Avg(field string) (sql.NullFloat64, error) {
	return qb.aggregate("AVG", field)
}

func (qb *QueryBuilder) aggregate(fn, field string) (sql.NullFloat64, error) {
	var v sql.NullFloat64
	err := qb.build(qb.aggregateSQL(fn+"("+field+")"), qb.where.params.clone()).Row(func(rows *sql.Rows) error {
		return rows.Scan(&v)
	})
	return v, err
}

func (qb *QueryBuilder) aggregateValue(fn, field string) (any, error) {
	var v any
	err := qb.build(qb.aggregateSQL(fn+"("+field+")"), qb.where.params.clone()).Row(func(rows *sql.Rows) error {
		if err := rows.Scan(&v); err != nil {
			return err
		}
		v = normalizeValue(v)
		return nil
	})
	return v, err
}

// Insert inserts one row and returns its generated id. Columns are emitted
// in sorted order; Raw values are inlined, all others are bound.
//
//	id, err := db.With("user").Insert(map[string]any{
//	    "name": "jack",
//	    "dob":  norm.Raw("CURRENT_TIMESTAMP"),
//	})
//	// INSERT INTO user (dob,name) VALUES (CURRENT_TIMESTAMP,:p1)
func (qb *QueryBuilder) Insert(data map[string]any) (int64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: insert into %s without values", ErrInvalidOperation, qb.table)
	}

	keys := getKeys(data)
	params := make(Params, len(keys))
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = qb.placeholder(params, data[k])
	}

	query := "INSERT INTO " + qb.table + " (" + strings.Join(keys, ",") + ") VALUES (" + strings.Join(values, ",") + ")"

	if suffix := qb.db.dialect.ReturningID(); suffix != "" {
		var id int64
		err := qb.build(query+suffix, params).Row(func(rows *sql.Rows) error {
			return rows.Scan(&id)
		})
		return id, err
	}

	result, err := qb.build(query, params).Execute()
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// BatchInsert inserts rows with one multi-row INSERT and returns the number
// of affected rows. Each row lists values in column order; Raw values are
// inlined. Wrap the call in DB.Atomic when all-or-nothing semantics across
// several batches are needed.
//
//	db.With("user").BatchInsert([][]any{{"jack", 1}, {"rose", 2}}, "name", "rank")
//	// INSERT INTO user (name,rank) VALUES (:p1,:p2),(:p3,:p4)
func (qb *QueryBuilder) BatchInsert(rows [][]any, columns ...string) (int64, error) {
	params := make(Params)
	tuples := make([]string, len(rows))
	for i, row := range rows {
		values := make([]string, len(row))
		for j, v := range row {
			values[j] = qb.placeholder(params, v)
		}
		tuples[i] = "(" + strings.Join(values, ",") + ")"
	}

	query := "INSERT INTO " + qb.table + " (" + strings.Join(columns, ",") + ") VALUES " + strings.Join(tuples, ",")

	result, err := qb.build(query, params).Execute()
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Update sets columns on the matching rows and returns the number of
// affected rows. A builder without conditions returns ErrInvalidOperation
// before anything is sent to the database.
func (qb *QueryBuilder) Update(data map[string]any) (int64, error) {
	if qb.where.Len() == 0 {
		return 0, fmt.Errorf("%w: update of %s without conditions", ErrInvalidOperation, qb.table)
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: update of %s without values", ErrInvalidOperation, qb.table)
	}

	params := qb.where.params.clone()
	keys := getKeys(data)
	sets := make([]string, len(keys))
	for i, k := range keys {
		sets[i] = k + " = " + qb.placeholder(params, data[k])
	}

	query := "UPDATE " + qb.table + " SET " + strings.Join(sets, ",") + " WHERE " + qb.where.CondStr()

	result, err := qb.build(query, params).Execute()
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Delete removes the matching rows and returns how many were deleted.
// A builder without conditions returns ErrInvalidOperation.
func (qb *QueryBuilder) Delete() (int64, error) {
	if qb.where.Len() == 0 {
		return 0, fmt.Errorf("%w: delete from %s without conditions", ErrInvalidOperation, qb.table)
	}

	query := "DELETE FROM " + qb.table + " WHERE " + qb.where.CondStr()

	result, err := qb.build(query, qb.where.params.clone()).Execute()
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// placeholder returns the SQL text for v: Raw values verbatim, anything
// else as a freshly allocated named parameter recorded in params.
func (qb *QueryBuilder) placeholder(params Params, v any) string {
	if raw, ok := v.(Raw); ok {
		return string(raw)
	}
	name := qb.alloc.nextParamName()
	params[name] = v
	return name
}

// getKeys returns the map keys in sorted order for deterministic SQL.
func getKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetClass returns the first matching row mapped onto a new T.
func GetClass[T any](qb *QueryBuilder, fields ...string) (*T, error) {
	dest := new(T)
	if err := qb.GetStruct(dest, fields...); err != nil {
		return nil, err
	}
	return dest, nil
}

// AllClass returns every matching row mapped onto T.
func AllClass[T any](qb *QueryBuilder, fields ...string) ([]T, error) {
	var dest []T
	if err := qb.AllStruct(&dest, fields...); err != nil {
		return nil, err
	}
	return dest, nil
}
