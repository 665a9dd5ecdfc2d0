package workflow

import (
	"errors"
	"fmt"
)

// ValidationError reports the first rule a workflow or route definition
// violated. Registration never silently rejects.
type ValidationError struct {
	Violation string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Violation
}

// NewValidationError formats a ValidationError.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Violation: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is a registration validation
// failure.
func IsValidationError(err error) bool {
	var validationErr *ValidationError

	return errors.As(err, &validationErr)
}
