package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaErrorNamesMissingFields(t *testing.T) {
	err := NewSchemaError("features: parse records", "dest_host", "success")
	assert.Contains(t, err.Error(), "dest_host")
	assert.Contains(t, err.Error(), "success")
	assert.True(t, IsSchema(err))
	assert.False(t, IsValidation(err))
}

func TestValidationErrorNamesRows(t *testing.T) {
	err := NewValidationError("anomaly: score", "failed_login_ratio", "non-numeric value", "u03", "u07")
	assert.Contains(t, err.Error(), "failed_login_ratio")
	assert.Contains(t, err.Error(), "u03, u07")
	assert.True(t, IsValidation(err))
	assert.False(t, IsSchema(err))
}

func TestValidationErrorWithoutRows(t *testing.T) {
	err := NewValidationError("training: decide", "risk_score", "non-numeric value")
	assert.NotContains(t, err.Error(), "row(s)")
}

func TestWrappedErrorsStillMatch(t *testing.T) {
	inner := NewSchemaError("scoring: blend", "anomaly_score")
	wrapped := fmt.Errorf("pipeline run failed: %w", inner)

	assert.True(t, IsSchema(wrapped))

	var se *SchemaError
	require.True(t, As(wrapped, &se))
	assert.Equal(t, []string{"anomaly_score"}, se.Missing)
}
