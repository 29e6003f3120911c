// Package mailer dispatches simulated-phishing campaigns: it gates on the
// user's compliance state, picks a scenario by risk tier, records the
// delivery, and feeds interaction callbacks back into the state machine.
package mailer

import "time"

// SentEmail is one logged simulated-phishing delivery.
type SentEmail struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	EmailID       string    `gorm:"uniqueIndex;not null" json:"email_id"`
	TrackingToken string    `gorm:"uniqueIndex;not null" json:"tracking_token"`
	UserID        string    `gorm:"index;not null" json:"user_id"`
	Recipient     string    `gorm:"default:''" json:"recipient"`
	Subject       string    `gorm:"default:''" json:"subject"`
	Scenario      string    `gorm:"default:''" json:"scenario"`
	TemplateID    string    `gorm:"default:''" json:"template_id"`
	RiskScore     float64   `json:"risk_score"`
	SentVia       string    `gorm:"default:log_only" json:"sent_via"`
	SentAt        time.Time `gorm:"not null" json:"sent_at"`
	Status        string    `gorm:"default:sent" json:"status"`
}

// Interaction is one tracked response to a sent email (open, click, report).
type Interaction struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	EmailID       string    `gorm:"index;not null" json:"email_id"`
	TrackingToken string    `gorm:"index;not null" json:"tracking_token"`
	UserID        string    `gorm:"index;not null" json:"user_id"`
	Kind          string    `gorm:"not null" json:"interaction"`
	Timestamp     time.Time `gorm:"not null" json:"timestamp"`
}

// Interaction kinds.
const (
	InteractionOpen   = "open"
	InteractionClick  = "click"
	InteractionReport = "report"
)

// Message is the rendered delivery handed to a Sender. Body wording is left
// to template content owned elsewhere; the core carries identifiers only.
type Message struct {
	Recipient     string
	Subject       string
	TemplateID    string
	TrackingToken string
	PhishingLink  string
	TrackingPixel string
}

// Template identifies one phishing scenario. Subjects are the only content
// carried here.
type Template struct {
	ID       string
	Scenario string
	Subject  string
}
