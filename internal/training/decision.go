// Package training maps risk scores to discrete remediation actions.
//
// Thresholds are fixed by design, not runtime-configurable: bands keep the
// triage transparent and easy to justify. Boundaries are inclusive on the
// lower bound of each band and exclusive on the upper.
package training

import (
	"math"

	"github.com/securaware/platform/pkg/errors"
	"github.com/securaware/platform/pkg/models"
)

const (
	// ThresholdMicro is the lower bound of the MICRO band.
	ThresholdMicro = 0.3
	// ThresholdMandatory is the lower bound of the MANDATORY band.
	ThresholdMandatory = 0.6
)

// Decider annotates users with training recommendations. URL fields point at
// the remediation pages handed out with MICRO and MANDATORY actions.
type Decider struct {
	MicroURL     string
	MandatoryURL string
}

// NewDecider creates a Decider with the given remediation page URLs.
func NewDecider(microURL, mandatoryURL string) *Decider {
	return &Decider{MicroURL: microURL, MandatoryURL: mandatoryURL}
}

// Decide maps one user's risk score to a remediation action. Non-numeric
// scores (NaN, ±Inf) fail with a ValidationError naming the user, never
// silently coerced to a default band. Pure function: no side effects.
func (d *Decider) Decide(user string, score float64) (models.TrainingDecision, error) {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return models.TrainingDecision{}, errors.NewValidationError(
			"training: decide", "risk_score", "non-numeric value", user)
	}

	decision := models.TrainingDecision{User: user, Action: models.TrainingNone}
	switch {
	case score >= ThresholdMandatory:
		decision.Action = models.TrainingMandatory
		decision.MandatoryTrainingURL = d.MandatoryURL
	case score >= ThresholdMicro:
		decision.Action = models.TrainingMicro
		decision.MicroTrainingURL = d.MicroURL
	}
	return decision, nil
}

// UserScore is one (user, risk score) input pair for batch decisions.
type UserScore struct {
	User  string
	Score float64
}

// DecideBatch annotates a batch of users, collecting every offending row
// into a single ValidationError instead of failing on the first.
func (d *Decider) DecideBatch(pairs []UserScore) ([]models.TrainingDecision, error) {
	var bad []string
	decisions := make([]models.TrainingDecision, 0, len(pairs))
	for _, p := range pairs {
		dec, err := d.Decide(p.User, p.Score)
		if err != nil {
			bad = append(bad, p.User)
			continue
		}
		decisions = append(decisions, dec)
	}
	if len(bad) > 0 {
		return nil, errors.NewValidationError(
			"training: decide batch", "risk_score", "non-numeric value", bad...)
	}
	return decisions, nil
}
