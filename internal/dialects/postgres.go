package dialects

import (
	"strconv"
	"strings"
)

// PostgresDialect implements PostgreSQL-specific SQL dialect.
type PostgresDialect struct{}

func init() {
	RegisterDialect("postgres", &PostgresDialect{})
	RegisterDialect("postgresql", &PostgresDialect{})
}

// Name returns "postgres".
func (d *PostgresDialect) Name() string {
	return "postgres"
}

// QuoteIdentifier quotes a PostgreSQL identifier using double quotes.
func (d *PostgresDialect) QuoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// QuoteLiteral quotes a PostgreSQL string literal (standard_conforming_strings on).
func (d *PostgresDialect) QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Placeholder returns PostgreSQL placeholder format ($1, $2, etc.).
func (d *PostgresDialect) Placeholder(index int) string {
	return "$" + strconv.Itoa(index)
}

// LimitClause renders "LIMIT count OFFSET offset"; PostgreSQL has no comma form.
func (d *PostgresDialect) LimitClause(count, offset int) string {
	if offset > 0 {
		return "LIMIT " + strconv.Itoa(count) + " OFFSET " + strconv.Itoa(offset)
	}
	return "LIMIT " + strconv.Itoa(count)
}

// ReturningID returns the RETURNING suffix; lib/pq does not implement LastInsertId.
func (d *PostgresDialect) ReturningID() string {
	return " RETURNING id"
}
