// Package pipeline orchestrates the full scoring run: export events, extract
// features, score anomalies, blend risk, and persist the scored table.
package pipeline

import "time"

// ScoredRecord is the persisted canonical scored-table row, one per user.
// The latest run overwrites prior state wholesale; no history is retained
// in this table.
type ScoredRecord struct {
	User              string    `gorm:"primaryKey" json:"user"`
	LoginCount        int       `json:"login_count"`
	FailedLoginRatio  float64   `json:"failed_login_ratio"`
	UniqueSourceHosts int       `json:"unique_source_hosts"`
	UniqueDestHosts   int       `json:"unique_dest_hosts"`
	AnomalyScore      float64   `json:"anomaly_score"`
	MLAnomalyScore    float64   `json:"ml_anomaly_score"`
	RuleBasedScore    float64   `json:"rule_based_score"`
	FinalRiskScore    float64   `gorm:"index" json:"final_risk_score"`
	RiskReason        string    `json:"risk_reason"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// RunRecord tracks one pipeline run for the dashboard and for failure
// reporting. A failed run keeps its reason here and leaves the previously
// persisted scored table untouched.
type RunRecord struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	StartedAt  time.Time  `gorm:"not null" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `gorm:"default:running" json:"status"`
	EventCount int        `json:"event_count"`
	UserCount  int        `json:"user_count"`
	Error      string     `gorm:"default:''" json:"error,omitempty"`
}

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusSkipped   = "skipped"
)
