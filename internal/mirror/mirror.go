// Package mirror defines the best-effort external sync capability. Callers
// invoke it fire-and-forget: a failed publish is logged and counted, never
// propagated, retried, or allowed to block the caller.
package mirror

import (
	"context"
	"time"
)

// StateEvent mirrors one accepted state-machine transition.
type StateEvent struct {
	UserID    string    `json:"user_id"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	Trigger   string    `json:"trigger"`
	At        time.Time `json:"at"`
}

// ScoreEvent mirrors one user's final risk score after a pipeline run.
type ScoreEvent struct {
	User           string    `json:"user"`
	FinalRiskScore float64   `json:"final_risk_score"`
	At             time.Time `json:"at"`
}

// Mirror publishes platform state to an external consumer. Implementations
// must be safe for concurrent use.
type Mirror interface {
	PublishState(ctx context.Context, ev StateEvent) error
	PublishScores(ctx context.Context, evs []ScoreEvent) error
	Close() error
}

// Noop satisfies Mirror when the feature is disabled.
type Noop struct{}

func (Noop) PublishState(context.Context, StateEvent) error    { return nil }
func (Noop) PublishScores(context.Context, []ScoreEvent) error { return nil }
func (Noop) Close() error                                      { return nil }
