package dialects

import (
	"strconv"
	"strings"
)

// MySQLDialect implements MySQL-specific SQL dialect.
type MySQLDialect struct{}

func init() {
	RegisterDialect("mysql", &MySQLDialect{})
}

// Name returns "mysql".
func (d *MySQLDialect) Name() string {
	return "mysql"
}

// QuoteIdentifier quotes a MySQL identifier using backticks.
func (d *MySQLDialect) QuoteIdentifier(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// QuoteLiteral quotes a MySQL string literal. Backslashes are escaped as well,
// since MySQL treats them as escape characters by default.
func (d *MySQLDialect) QuoteLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Placeholder returns MySQL placeholder format (always "?").
func (d *MySQLDialect) Placeholder(_ int) string {
	return "?"
}

// LimitClause renders "LIMIT offset, count" or "LIMIT count".
func (d *MySQLDialect) LimitClause(count, offset int) string {
	return offsetCommaLimit(count, offset)
}

// ReturningID returns "" since the MySQL driver reports LastInsertId.
func (d *MySQLDialect) ReturningID() string {
	return ""
}

func offsetCommaLimit(count, offset int) string {
	if offset > 0 {
		return "LIMIT " + strconv.Itoa(offset) + ", " + strconv.Itoa(count)
	}
	return "LIMIT " + strconv.Itoa(count)
}
