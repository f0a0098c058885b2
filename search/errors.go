package search

import (
	"fmt"
	"strings"
)

// SyntaxError reports a structural problem in the query text. Position is a
// zero-based byte offset into the query; Near carries the offending fragment
// when one is available.
type SyntaxError struct {
	Message  string
	Position int
	Near     string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	if e.Near != "" {
		return fmt.Sprintf("syntax error at position %d near %q: %s", e.Position, e.Near, e.Message)
	}
	return fmt.Sprintf("syntax error at position %d: %s", e.Position, e.Message)
}

// Is implements error matching for errors.Is().
func (e *SyntaxError) Is(target error) bool {
	_, ok := target.(*SyntaxError)
	return ok
}

// Issue is a single validation finding. Field is empty for query-level
// findings such as an oversized query.
type Issue struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationErrors aggregates every validation finding for one query. The
// validator never stops at the first problem; callers get the complete list
// in one round trip.
type ValidationErrors struct {
	Issues []Issue
}

// Error implements the error interface.
func (e *ValidationErrors) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("query validation failed: %s", e.Issues[0].Message)
	}
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.Message
	}
	return fmt.Sprintf("query validation failed with %d issues: %s", len(e.Issues), strings.Join(parts, "; "))
}

// Is implements error matching for errors.Is().
func (e *ValidationErrors) Is(target error) bool {
	_, ok := target.(*ValidationErrors)
	return ok
}

// add appends a finding.
func (e *ValidationErrors) add(field, format string, args ...interface{}) {
	e.Issues = append(e.Issues, Issue{Field: field, Message: fmt.Sprintf(format, args...)})
}

// orNil returns the collected error or nil when nothing was found.
func (e *ValidationErrors) orNil() error {
	if len(e.Issues) == 0 {
		return nil
	}
	return e
}

// CursorError reports an invalid or stale pagination cursor. Callers must
// surface it to the client rather than silently restarting from offset zero.
type CursorError struct {
	Message string
}

// Error implements the error interface.
func (e *CursorError) Error() string {
	return fmt.Sprintf("invalid cursor: %s", e.Message)
}

// Is implements error matching for errors.Is().
func (e *CursorError) Is(target error) bool {
	_, ok := target.(*CursorError)
	return ok
}
