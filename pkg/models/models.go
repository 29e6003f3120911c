// Package models holds the typed records exchanged between pipeline stages.
package models

import "time"

// AuthRecord is one observed authentication-style action, immutable once
// recorded. Timestamp is nil when the raw value could not be parsed; the
// record is retained regardless because the aggregate features below do not
// depend on it.
type AuthRecord struct {
	User       string
	SourceHost string
	DestHost   string
	Timestamp  *time.Time
	Success    bool
}

// FeatureVector is the per-user behavioral aggregate derived from the full
// set of that user's AuthRecords. Recomputed from scratch on every pipeline
// run; there is no incremental update.
type FeatureVector struct {
	User              string
	LoginCount        int
	FailedLoginRatio  float64
	UniqueSourceHosts int
	UniqueDestHosts   int
}

// ScoredVector is a FeatureVector augmented with the unbounded outlier
// magnitude from the anomaly model. Higher means more anomalous.
type ScoredVector struct {
	FeatureVector
	AnomalyScore float64
}

// RiskRecord is the canonical scored output for one user in one pipeline
// run. FinalRiskScore is always 0.5*MLAnomalyScore + 0.5*RuleBasedScore.
type RiskRecord struct {
	ScoredVector
	MLAnomalyScore float64
	RuleBasedScore float64
	FinalRiskScore float64
	RiskReason     string
}

// TrainingAction is the discrete remediation tier derived from a risk score.
type TrainingAction string

const (
	TrainingNone      TrainingAction = "NONE"
	TrainingMicro     TrainingAction = "MICRO"
	TrainingMandatory TrainingAction = "MANDATORY"
)

// TrainingDecision annotates one user with the recommended remediation.
// URLs are populated only for the matching action.
type TrainingDecision struct {
	User                 string         `json:"user"`
	Action               TrainingAction `json:"training_action"`
	MicroTrainingURL     string         `json:"micro_training_url"`
	MandatoryTrainingURL string         `json:"mandatory_training_url"`
}
