package core

import (
	"fmt"
	"sort"
	"strconv"
)

// Row is one result row keyed by column name. Driver []byte values are
// converted to string; NULL is nil.
//
// Example:
//
//	row, err := db.With("user").Where("id", 1).Get()
//	name := row.String("name")
//	if !row.IsNull("dob") {
//	    dob := row.String("dob")
//	}
type Row map[string]any

// String returns the value for key formatted as a string.
// Returns empty string if key doesn't exist or value is NULL.
func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the value for key as an int64. Non-numeric, missing and
// NULL values yield 0.
func (r Row) Int64(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case uint64:
		return int64(v) //nolint:gosec // ids fit in int64
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

// IsNull checks if the value for the given key is NULL or doesn't exist.
func (r Row) IsNull(key string) bool {
	return r[key] == nil
}

// Has checks if the key exists in the row (regardless of NULL status).
func (r Row) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Keys returns all column names in sorted order.
func (r Row) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the raw value for the given key and whether it exists.
func (r Row) Get(key string) (any, bool) {
	v, ok := r[key]
	return v, ok
}
