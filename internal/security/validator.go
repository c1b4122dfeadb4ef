// Package security provides SQL injection screening for statements assembled
// by norm and for the values bound to them.
package security

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	// ErrDangerousQuery is returned when a statement matches a known injection pattern.
	ErrDangerousQuery = errors.New("dangerous SQL pattern detected")

	// ErrSuspiciousParam is returned when a bound string value looks like an injection payload.
	ErrSuspiciousParam = errors.New("suspicious parameter value")
)

// Validator validates SQL statements and named parameters against dangerous patterns.
type Validator struct {
	patterns []*regexp.Regexp
	strict   bool
}

// ValidatorOption configures the Validator.
type ValidatorOption func(*Validator)

// WithStrict enables strict validation mode (more aggressive).
// Strict mode rejects any AND/OR, so it is only suitable for
// applications that never build compound conditions.
func WithStrict(strict bool) ValidatorOption {
	return func(v *Validator) {
		v.strict = strict
	}
}

// WithPatterns adds caller-supplied patterns. They are matched against
// the upper-cased statement. Invalid expressions are ignored.
func WithPatterns(patterns ...string) ValidatorOption {
	return func(v *Validator) {
		v.patterns = append(v.patterns, compilePatterns(patterns)...)
	}
}

// NewValidator creates a new SQL injection validator with default dangerous patterns.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		patterns: compilePatterns(dangerousPatterns),
	}

	for _, opt := range opts {
		opt(v)
	}

	if v.strict {
		v.patterns = append(v.patterns, compilePatterns(strictPatterns)...)
	}

	return v
}

// dangerousPatterns contains SQL injection patterns to block (OWASP Top 10).
var dangerousPatterns = []string{
	// Comments
	`--[\s]`,
	`/\*.*\*/`,
	`#[\s]`,

	// Stacked statements
	`;\s*DROP\s+`,
	`;\s*DELETE\s+`,
	`;\s*TRUNCATE\s+`,
	`;\s*ALTER\s+`,
	`;\s*CREATE\s+`,

	// UNION-based exfiltration
	`UNION\s+ALL\s+SELECT`,
	`UNION\s+SELECT`,

	// Engine-specific procedures
	`XP_CMDSHELL`,
	`\bEXEC\s*\(`,
	`\bEXECUTE\s*\(`,
	`SP_EXECUTESQL`,
	`\bEXEC\s+XP_`,
	`\bEXEC\s+SP_`,

	// Metadata access and timing attacks
	`INFORMATION_SCHEMA`,
	`PG_SLEEP\s*\(`,
	`BENCHMARK\s*\(`,
	`WAITFOR\s+DELAY`,

	// Tautologies
	`\s+OR\s+1\s*=\s*1\b`,
	`\s+OR\s+'1'\s*=\s*'1'`,
	`\s+AND\s+1\s*=\s*0\b`,
}

// strictPatterns may have false positives.
var strictPatterns = []string{
	`\bOR\b`,
	`\bAND\b`,
	`\bUNION\b`,
	`\bEXEC\b`,
	`\bEXECUTE\b`,
}

// ValidateQuery checks if a statement contains dangerous SQL injection patterns.
// The returned error wraps ErrDangerousQuery.
func (v *Validator) ValidateQuery(query string) error {
	normalized := strings.ToUpper(query)

	for _, pattern := range v.patterns {
		if pattern.MatchString(normalized) {
			return fmt.Errorf("%w: statement contains unsafe construct", ErrDangerousQuery)
		}
	}

	return nil
}

// ValidateParams checks named parameter values for injection attempts.
// Values are bound through prepared statements, so this only catches
// payloads aimed at code that later splices them into SQL. Names are
// checked in sorted order so the reported name is deterministic.
func (v *Validator) ValidateParams(params map[string]any) error {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		str, ok := params[name].(string)
		if !ok {
			continue
		}
		if containsSQLInjection(str) {
			return fmt.Errorf("%w: :%s contains SQL injection patterns", ErrSuspiciousParam, name)
		}
	}

	return nil
}

// ValidateFragment checks a raw fragment (a WhereRaw expression or a Raw
// insert value) before it is spliced into a statement.
func (v *Validator) ValidateFragment(fragment string) error {
	if strings.Contains(fragment, ";") {
		return fmt.Errorf("%w: raw fragment contains a statement separator", ErrDangerousQuery)
	}
	return v.ValidateQuery(fragment)
}

func containsSQLInjection(value string) bool {
	indicators := []string{
		"'--",
		"';",
		"' OR ",
		"' AND ",
		"/*",
		"*/",
		"' UNION ",
		"' DROP ",
		"XP_",
	}

	upper := strings.ToUpper(value)
	for _, indicator := range indicators {
		if strings.Contains(upper, indicator) {
			return true
		}
	}

	return false
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}
