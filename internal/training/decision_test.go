package training

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/securaware/platform/pkg/errors"
	"github.com/securaware/platform/pkg/models"
)

func TestDecideBands(t *testing.T) {
	d := NewDecider("https://t.example.com/micro", "https://t.example.com/mandatory")

	cases := []struct {
		score float64
		want  models.TrainingAction
	}{
		{0.0, models.TrainingNone},
		{0.2999, models.TrainingNone},
		{0.3, models.TrainingMicro},
		{0.45, models.TrainingMicro},
		{0.5999, models.TrainingMicro},
		{0.6, models.TrainingMandatory},
		{0.95, models.TrainingMandatory},
		{1.0, models.TrainingMandatory},
	}

	for _, tc := range cases {
		dec, err := d.Decide("alice", tc.score)
		require.NoError(t, err, "score %v", tc.score)
		assert.Equal(t, tc.want, dec.Action, "score %v", tc.score)
	}
}

func TestDecideAttachesURLs(t *testing.T) {
	d := NewDecider("https://t.example.com/micro", "https://t.example.com/mandatory")

	micro, err := d.Decide("alice", 0.4)
	require.NoError(t, err)
	assert.Equal(t, "https://t.example.com/micro", micro.MicroTrainingURL)
	assert.Empty(t, micro.MandatoryTrainingURL)

	mandatory, err := d.Decide("alice", 0.8)
	require.NoError(t, err)
	assert.Equal(t, "https://t.example.com/mandatory", mandatory.MandatoryTrainingURL)
	assert.Empty(t, mandatory.MicroTrainingURL)

	none, err := d.Decide("alice", 0.1)
	require.NoError(t, err)
	assert.Empty(t, none.MicroTrainingURL)
	assert.Empty(t, none.MandatoryTrainingURL)
}

func TestDecideNonNumericRejected(t *testing.T) {
	d := NewDecider("", "")

	for _, score := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := d.Decide("bob", score)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	}
}

func TestDecideBatchCollectsAllBadRows(t *testing.T) {
	d := NewDecider("", "")

	_, err := d.DecideBatch([]UserScore{
		{User: "ok", Score: 0.5},
		{User: "bad1", Score: math.NaN()},
		{User: "bad2", Score: math.Inf(-1)},
	})
	require.Error(t, err)

	var ve *apperrors.ValidationError
	require.True(t, apperrors.As(err, &ve))
	assert.Equal(t, []string{"bad1", "bad2"}, ve.Rows)
}

func TestDecideBatchEmpty(t *testing.T) {
	d := NewDecider("", "")
	decisions, err := d.DecideBatch(nil)
	require.NoError(t, err)
	assert.Empty(t, decisions)
}
