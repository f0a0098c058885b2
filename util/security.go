package util

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrDangerousContent indicates the input contained a disallowed pattern
// (script-injection-like substrings, path traversal sequences, control bytes).
var ErrDangerousContent = errors.New("query contains disallowed content")

var dangerousPatterns = []struct {
	pattern *regexp.Regexp
	label   string
}{
	{regexp.MustCompile(`(?i)<\s*script`), "script tag"},
	{regexp.MustCompile(`(?i)javascript\s*:`), "javascript URI"},
	{regexp.MustCompile(`(?i)on(load|error|click|mouseover)\s*=`), "event handler"},
	{regexp.MustCompile(`\.\./`), "path traversal"},
	{regexp.MustCompile(`\.\.\\`), "path traversal"},
	{regexp.MustCompile("`"), "backtick"},
	{regexp.MustCompile(`\$\(`), "command substitution"},
	{regexp.MustCompile(`\$\{`), "template expansion"},
}

// CheckQueryContent validates raw query text against disallowed content
// patterns. The query language has no escape hatch into any interpreter, so
// these substrings never appear in a legitimate query; rejecting them early
// keeps hostile input out of logs and downstream error messages.
func CheckQueryContent(query string) error {
	// Null bytes and other control characters are never valid query text
	for _, r := range query {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return fmt.Errorf("%w: control character 0x%02x", ErrDangerousContent, r)
		}
	}

	for _, p := range dangerousPatterns {
		if p.pattern.MatchString(query) {
			return fmt.Errorf("%w: %s", ErrDangerousContent, p.label)
		}
	}

	return nil
}

// TruncateForLog bounds a string for safe inclusion in log output.
func TruncateForLog(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "... [truncated]"
}

// SanitizeString removes credential-shaped substrings from a string before
// it is logged. Vendor API errors occasionally echo request headers back.
func SanitizeString(s string) string {
	if s == "" {
		return ""
	}

	replacements := []struct {
		pattern     *regexp.Regexp
		replacement string
	}{
		{regexp.MustCompile(`(?i)(token|authorization|api[_-]?key)[\s:=]+[^\s\n]+`), "$1=REDACTED"},
		{regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-\.]+`), "bearer REDACTED"},
		{regexp.MustCompile(`eyJ[a-zA-Z0-9_\-]+\.eyJ[a-zA-Z0-9_\-]+\.[a-zA-Z0-9_\-]+`), "REDACTED_JWT"},
	}

	result := s
	for _, p := range replacements {
		result = p.pattern.ReplaceAllString(result, p.replacement)
	}
	return result
}

// SanitizeError formats an error for logging with credentials redacted.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error())
}

// BalancedGrouping reports whether parentheses and double quotes in the
// input are balanced. Quoted sections are opaque: parentheses inside quotes
// do not count toward nesting depth.
func BalancedGrouping(s string) bool {
	depth := 0
	inQuotes := false
	escaped := false

	for _, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inQuotes {
				escaped = true
			}
		case '"':
			inQuotes = !inQuotes
		case '(':
			if !inQuotes {
				depth++
			}
		case ')':
			if !inQuotes {
				depth--
				if depth < 0 {
					return false
				}
			}
		}
	}

	return depth == 0 && !inQuotes
}

// NormalizeWhitespace collapses runs of whitespace to single spaces.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
