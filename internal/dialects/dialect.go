// Package dialects provides database-specific SQL dialect implementations for
// MySQL, SQLite and PostgreSQL, handling positional placeholders, LIMIT syntax,
// literal and identifier quoting, and generated-key retrieval.
package dialects

import (
	"sort"
	"sync"
)

// Dialect defines database-specific behaviors.
type Dialect interface {
	// Name returns the canonical dialect name (mysql, sqlite, postgres).
	Name() string
	// QuoteIdentifier quotes a table or column name.
	QuoteIdentifier(string) string
	// QuoteLiteral quotes a string literal for inlining into SQL text.
	QuoteLiteral(string) string
	// Placeholder returns the positional placeholder for the n-th (1-based) argument.
	Placeholder(int) string
	// LimitClause renders the row cap and skip count.
	LimitClause(count, offset int) string
	// ReturningID returns the suffix that makes an INSERT yield its generated id,
	// or "" when the driver supports LastInsertId.
	ReturningID() string
}

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// RegisterDialect registers a database dialect by backend or driver name.
// Built-in dialects register themselves in init.
func RegisterDialect(name string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[name] = d
}

// GetDialect retrieves a registered dialect by backend or driver name.
func GetDialect(name string) (Dialect, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dialects[name]
	return d, ok
}

// Names returns all registered dialect names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
