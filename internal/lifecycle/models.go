package lifecycle

import "time"

// UserState is the persisted current-state row for one user. Rows are never
// deleted; a user absent from the table is implicitly CLEAN.
type UserState struct {
	UserID       string    `gorm:"primaryKey" json:"user_id"`
	CurrentState string    `gorm:"not null;default:CLEAN" json:"current_state"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

// TransitionLogEntry is one append-only audit record, written for every
// accepted transition including auto-chained ones. Never mutated or deleted.
type TransitionLogEntry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	FromState string    `gorm:"not null" json:"from_state"`
	ToState   string    `gorm:"not null" json:"to_state"`
	Trigger   string    `gorm:"not null" json:"trigger"`
	Reason    string    `gorm:"default:''" json:"reason"`
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
}

// TransitionResult reports the outcome of one apply call. A rejected trigger
// is a first-class result (Success=false), not an error. Chained carries the
// results of auto-chained transitions applied in the same operation.
type TransitionResult struct {
	UserID    string              `json:"user_id"`
	FromState State               `json:"from_state"`
	ToState   State               `json:"to_state"`
	Trigger   Trigger             `json:"trigger"`
	Reason    string              `json:"reason,omitempty"`
	Success   bool                `json:"success"`
	Message   string              `json:"message"`
	Chained   []*TransitionResult `json:"chained,omitempty"`
}

// FinalState returns the state the user ends in after the whole chain.
func (r *TransitionResult) FinalState() State {
	if len(r.Chained) > 0 {
		return r.Chained[len(r.Chained)-1].FinalState()
	}
	return r.ToState
}
