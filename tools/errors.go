package tools

import (
	"errors"
	"fmt"

	"firewatch/client"
	"firewatch/correlate"
	"firewatch/search"
	"firewatch/util"
)

// Error types surfaced to tool callers.
const (
	TypeValidation  = "validation_error"
	TypeSyntax      = "syntax_error"
	TypeCursor      = "cursor_error"
	TypeCorrelation = "correlation_error"
	TypeUpstream    = "search_error"
	TypeUnknownTool = "unknown_tool"
	TypeInternal    = "internal_error"
)

// ToolError is the structured error payload every tool returns on failure.
// Validation failures carry the complete issue list so a caller can fix all
// problems in one round trip.
type ToolError struct {
	IsError bool           `json:"error"`
	Message string         `json:"message"`
	Type    string         `json:"error_type"`
	Issues  []search.Issue `json:"validation_errors,omitempty"`
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// AsToolError classifies any error from the engine layers into the payload
// shape. Messages pass through the credential scrubber on the way out.
func AsToolError(err error) *ToolError {
	var validationErrs *search.ValidationErrors
	if errors.As(err, &validationErrs) {
		return &ToolError{
			IsError: true,
			Message: util.SanitizeString(validationErrs.Error()),
			Type:    TypeValidation,
			Issues:  validationErrs.Issues,
		}
	}

	var syntaxErr *search.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ToolError{
			IsError: true,
			Message: util.SanitizeString(syntaxErr.Error()),
			Type:    TypeSyntax,
		}
	}

	var cursorErr *search.CursorError
	if errors.As(err, &cursorErr) {
		return &ToolError{
			IsError: true,
			Message: cursorErr.Error(),
			Type:    TypeCursor,
		}
	}

	var corrErr *correlate.CorrelationError
	if errors.As(err, &corrErr) {
		return &ToolError{
			IsError: true,
			Message: corrErr.Error(),
			Type:    TypeCorrelation,
		}
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return &ToolError{
			IsError: true,
			Message: util.SanitizeString(apiErr.Error()),
			Type:    TypeUpstream,
		}
	}

	return &ToolError{
		IsError: true,
		Message: util.SanitizeString(err.Error()),
		Type:    TypeInternal,
	}
}

// requestError wraps a request-shape complaint as a validation failure.
func requestError(format string, args ...interface{}) *ToolError {
	return &ToolError{
		IsError: true,
		Message: fmt.Sprintf(format, args...),
		Type:    TypeValidation,
	}
}
