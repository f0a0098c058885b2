package correlate

import "fmt"

// CorrelationError reports a correlation request that cannot run as
// specified. The whole request is rejected; the engine never silently
// drops an incompatible field and correlates on the remainder.
type CorrelationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *CorrelationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("correlation rejected: field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("correlation rejected: %s", e.Message)
}

// Is implements error matching for errors.Is().
func (e *CorrelationError) Is(target error) bool {
	_, ok := target.(*CorrelationError)
	return ok
}
