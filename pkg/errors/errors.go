// Package errors defines the typed error taxonomy shared by the scoring
// pipeline components.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Standard error functions re-exported for callers that only import this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

// SchemaError indicates that required fields or columns are absent from an
// input. It is fatal to the operation that raised it and always names the
// missing fields.
type SchemaError struct {
	Op      string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required field(s): %s", e.Op, strings.Join(e.Missing, ", "))
}

// NewSchemaError builds a SchemaError for the given operation and missing fields.
func NewSchemaError(op string, missing ...string) *SchemaError {
	return &SchemaError{Op: op, Missing: missing}
}

// ValidationError indicates that a field is present but its value is
// malformed in a way that cannot be safely inferred (non-numeric score,
// NaN feature value). It names the offending rows where feasible.
type ValidationError struct {
	Op     string
	Field  string
	Rows   []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Rows) == 0 {
		return fmt.Sprintf("%s: invalid %q: %s", e.Op, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: invalid %q in row(s) %s: %s", e.Op, e.Field, strings.Join(e.Rows, ", "), e.Reason)
}

// NewValidationError builds a ValidationError.
func NewValidationError(op, field, reason string, rows ...string) *ValidationError {
	return &ValidationError{Op: op, Field: field, Reason: reason, Rows: rows}
}

// IsSchema reports whether err is (or wraps) a SchemaError.
func IsSchema(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
