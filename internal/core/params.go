// Package core provides connection management, fluent query building and
// result scanning for norm.
package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Params maps named placeholders (":p1", ":p2", ...) to bound values.
type Params map[string]any

// merge copies every entry of src into p.
func (p Params) merge(src Params) {
	for name, value := range src {
		p[name] = value
	}
}

// clone returns a shallow copy of p.
func (p Params) clone() Params {
	out := make(Params, len(p))
	out.merge(p)
	return out
}

// paramAllocator hands out placeholder names unique within one QueryBuilder.
// It is shared by every condition group of the builder and by the
// INSERT/UPDATE value bindings issued from it.
type paramAllocator struct {
	n int
}

// nextParamName returns ":p<N>", N starting at 1.
func (a *paramAllocator) nextParamName() string {
	a.n++
	return ":p" + strconv.Itoa(a.n)
}

// processSQL replaces named placeholders with dialect-specific positional
// placeholders ($1, $2 for PostgreSQL; ?, ? for MySQL/SQLite) and returns
// the positional argument list.
//
// Example:
//
//	sql := "SELECT * FROM user WHERE id < :p1 AND name = :p2"
//	newSQL, args, err := db.processSQL(sql, Params{":p1": 2, ":p2": "jack"})
//	// PostgreSQL: "SELECT * FROM user WHERE id < $1 AND name = $2", [2 "jack"]
//	// MySQL:      "SELECT * FROM user WHERE id < ? AND name = ?", [2 "jack"]
//
// Only names allocated by paramAllocator (":p" followed by digits) are
// rewritten, and never inside quoted literals or identifiers, so raw
// fragments such as 'x:p1' reach the database unchanged. A placeholder with
// no entry in params is reported as ErrMissingParam.
func (db *DB) processSQL(sql string, params Params) (string, []any, error) {
	var (
		b     strings.Builder
		names []string
		quote byte
	)
	b.Grow(len(sql))

	for i := 0; i < len(sql); i++ {
		c := sql[i]

		if quote != 0 {
			b.WriteByte(c)
			if c == quote {
				// A doubled quote is an escaped quote inside the literal.
				if i+1 < len(sql) && sql[i+1] == quote {
					b.WriteByte(sql[i+1])
					i++
				} else {
					quote = 0
				}
			}
			continue
		}

		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == ':':
			if end := placeholderEnd(sql, i); end > 0 {
				names = append(names, sql[i:end])
				b.WriteString(db.dialect.Placeholder(len(names)))
				i = end - 1
				continue
			}
		}
		b.WriteByte(c)
	}

	args, err := bindParams(params, names)
	if err != nil {
		return "", nil, err
	}
	return b.String(), args, nil
}

// placeholderEnd returns the end of the ":p<digits>" name starting at i,
// or 0 when there is none. The name must not run into further word
// characters, so ":p1x" and ":param" are left alone.
func placeholderEnd(sql string, i int) int {
	j := i + 1
	if j >= len(sql) || sql[j] != 'p' {
		return 0
	}
	j++
	start := j
	for j < len(sql) && isDigit(sql[j]) {
		j++
	}
	if j == start {
		return 0
	}
	if j < len(sql) && isWordChar(sql[j]) {
		return 0
	}
	return j
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordChar(c byte) bool {
	return isDigit(c) || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// bindParams converts named parameters to positional values based on the parameter order.
//
// Example:
//
//	names := []string{":p1", ":p2", ":p1"}
//	params := Params{":p1": 1, ":p2": "active"}
//	values, err := bindParams(params, names)
//	// Returns: []any{1, "active", 1}, nil
func bindParams(params Params, names []string) ([]any, error) {
	values := make([]any, len(names))

	for i, name := range names {
		value, ok := params[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingParam, name)
		}
		values[i] = value
	}

	return values, nil
}
