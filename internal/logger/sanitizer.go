package logger

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const maskValue = "***REDACTED***"

var (
	// comparisonRegex attributes a named parameter to the column it is compared
	// with or assigned to: "password = :p2", "u.token LIKE :p3".
	comparisonRegex = regexp.MustCompile(`(?i)([\w.]+)\s*(?:=|<>|!=|<=|>=|<|>|\bLIKE\b|\bIN\b)\s*(:\w+)`)
	// insertRegex splits an INSERT into its column list and VALUES tail.
	insertRegex = regexp.MustCompile(`(?is)^\s*INSERT\s+INTO\s+\S+\s*\(([^)]*)\)\s*VALUES\s*(.*)$`)
	// tupleRegex matches one parenthesized VALUES tuple.
	tupleRegex = regexp.MustCompile(`\(([^()]*)\)`)
)

// Sanitizer masks sensitive data in query parameters to prevent accidental logging of secrets.
// Parameters are attributed to columns through the statement text; a parameter
// bound to a sensitive column is masked.
type Sanitizer struct {
	sensitiveFields []string
	patterns        []*regexp.Regexp
}

// NewSanitizer creates a new sanitizer with the specified sensitive field names.
// If no fields are provided, a default set of common sensitive field names is used.
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		sensitiveFields = []string{
			"password", "passwd", "pwd", "pass",
			"token", "api_key", "apikey", "api_token",
			"secret", "auth", "authorization",
			"credit_card", "card_number", "cvv", "cvc",
			"ssn", "social_security",
			"private_key", "priv_key",
		}
	}

	patterns := make([]*regexp.Regexp, 0, len(sensitiveFields))
	for _, field := range sensitiveFields {
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(field)+`\b`))
	}

	return &Sanitizer{
		sensitiveFields: sensitiveFields,
		patterns:        patterns,
	}
}

// MaskParams returns a copy of params with values bound to sensitive columns
// replaced by a mask. When the statement mentions a sensitive field but a
// parameter cannot be attributed to a column, that parameter is masked too.
// The original map is not modified.
func (s *Sanitizer) MaskParams(query string, params map[string]any) map[string]any {
	if len(params) == 0 || !s.containsSensitivePattern(query) {
		return params
	}

	columns := attributeColumns(query)
	masked := make(map[string]any, len(params))
	for name, value := range params {
		col, ok := columns[name]
		if !ok || s.isSensitiveColumn(col) {
			masked[name] = maskValue
			continue
		}
		masked[name] = value
	}
	return masked
}

// attributeColumns maps parameter names to the column they belong to.
func attributeColumns(query string) map[string]string {
	columns := make(map[string]string)

	if m := insertRegex.FindStringSubmatch(query); m != nil {
		cols := splitList(m[1])
		for _, tuple := range tupleRegex.FindAllStringSubmatch(m[2], -1) {
			for i, value := range splitList(tuple[1]) {
				if i < len(cols) && strings.HasPrefix(value, ":") {
					columns[value] = cols[i]
				}
			}
		}
	}

	for _, m := range comparisonRegex.FindAllStringSubmatch(query, -1) {
		columns[m[2]] = m[1]
	}
	return columns
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func (s *Sanitizer) isSensitiveColumn(col string) bool {
	if i := strings.LastIndex(col, "."); i >= 0 {
		col = col[i+1:]
	}
	return s.containsSensitivePattern(col)
}

// containsSensitivePattern checks if text contains any sensitive field patterns.
func (s *Sanitizer) containsSensitivePattern(text string) bool {
	for _, pattern := range s.patterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// FormatParams renders parameters in allocation order for logging:
// "{:p1=jack, :p2=***REDACTED***}".
// Sensitive values should be masked using MaskParams before calling this.
func (s *Sanitizer) FormatParams(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + formatValue(params[name])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single parameter value for logging.
// Truncates very long strings to prevent log pollution.
func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}

	str := fmt.Sprintf("%v", v)

	const maxLen = 100
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}
