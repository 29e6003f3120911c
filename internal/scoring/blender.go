// Package scoring blends the ML anomaly signal and a rule-based signal into
// one explainable final risk score per user.
package scoring

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/securaware/platform/pkg/errors"
	"github.com/securaware/platform/pkg/models"
)

// Blend weights are fixed, not tunable at runtime.
const (
	mlWeight   = 0.5
	ruleWeight = 0.5
)

// Rule-based component weights.
const (
	weightFailedRatio = 0.4
	weightLoginCount  = 0.2
	weightUniqueSrc   = 0.2
	weightUniqueDst   = 0.2
)

// Risk reason texts, selected per user in precedence order.
const (
	ReasonCombined   = "Combined statistical anomaly and rule-based deviations"
	ReasonML         = "Behavior deviates significantly from historical baseline"
	ReasonRule       = "Multiple behavioral deviations detected (frequency, access pattern, failure rate)"
	ReasonNone       = "No strong evidence of deviation"
	ReasonSingleUser = "Single-user data: insufficient variation to assess deviation"
)

// Overrides optionally supply per-user scores instead of deriving them from
// the vectors. Keys are user identifiers.
type Overrides struct {
	RuleScores map[string]float64
	MLScores   map[string]float64
}

// Blend produces one RiskRecord per input vector, ordered by descending
// final score (stable, so ties preserve input order).
//
// The ML component is the min-max normalized anomaly score; when every
// anomaly score in the batch is identical (including the single-user case)
// the normalized value is 0.0 for every row: no discriminative signal, not
// an error. A NaN anomaly score with no ML override is a SchemaError: the
// blender cannot invent an ML signal from nothing. Empty input returns an
// empty result.
func Blend(vectors []models.ScoredVector, overrides *Overrides) ([]models.RiskRecord, error) {
	if len(vectors) == 0 {
		return []models.RiskRecord{}, nil
	}
	if overrides == nil {
		overrides = &Overrides{}
	}

	mlScores, err := mlComponent(vectors, overrides.MLScores)
	if err != nil {
		return nil, err
	}
	ruleScores := ruleComponent(vectors, overrides.RuleScores)

	singleUser := len(vectors) == 1

	records := make([]models.RiskRecord, len(vectors))
	for i, v := range vectors {
		ml := mlScores[i]
		rule := ruleScores[i]
		records[i] = models.RiskRecord{
			ScoredVector:   v,
			MLAnomalyScore: ml,
			RuleBasedScore: rule,
			FinalRiskScore: mlWeight*ml + ruleWeight*rule,
			RiskReason:     selectReason(ml, rule, singleUser),
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].FinalRiskScore > records[j].FinalRiskScore
	})
	return records, nil
}

func mlComponent(vectors []models.ScoredVector, override map[string]float64) ([]float64, error) {
	scores := make([]float64, len(vectors))

	if override != nil {
		for i, v := range vectors {
			scores[i] = override[v.User]
		}
		return scores, nil
	}

	raw := make([]float64, len(vectors))
	for i, v := range vectors {
		if math.IsNaN(v.AnomalyScore) {
			return nil, errors.NewSchemaError("scoring: blend", "anomaly_score")
		}
		raw[i] = v.AnomalyScore
	}
	return minMaxNormalize(raw), nil
}

func ruleComponent(vectors []models.ScoredVector, override map[string]float64) []float64 {
	scores := make([]float64, len(vectors))

	if override != nil {
		for i, v := range vectors {
			scores[i] = override[v.User]
		}
		return scores
	}

	n := len(vectors)
	ratio := make([]float64, n)
	logins := make([]float64, n)
	srcs := make([]float64, n)
	dsts := make([]float64, n)
	for i, v := range vectors {
		ratio[i] = v.FailedLoginRatio
		logins[i] = float64(v.LoginCount)
		srcs[i] = float64(v.UniqueSourceHosts)
		dsts[i] = float64(v.UniqueDestHosts)
	}

	ratio = minMaxNormalize(ratio)
	logins = minMaxNormalize(logins)
	srcs = minMaxNormalize(srcs)
	dsts = minMaxNormalize(dsts)

	for i := range vectors {
		scores[i] = weightFailedRatio*ratio[i] +
			weightLoginCount*logins[i] +
			weightUniqueSrc*srcs[i] +
			weightUniqueDst*dsts[i]
	}
	return scores
}

// minMaxNormalize rescales values to [0,1]. When all values in the batch are
// identical, every output is 0.0: a "no discriminative signal" rule rather
// than a division-by-zero edge case.
func minMaxNormalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo := floats.Min(values)
	hi := floats.Max(values)
	if hi == lo {
		return out
	}
	for i, v := range values {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

func selectReason(ml, rule float64, singleUser bool) string {
	if singleUser {
		return ReasonSingleUser
	}
	switch {
	case ml > 0.7 && rule > 0.7:
		return ReasonCombined
	case ml >= rule && ml > 0.6:
		return ReasonML
	case rule > ml && rule > 0.6:
		return ReasonRule
	default:
		return ReasonNone
	}
}
