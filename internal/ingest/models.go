// Package ingest persists raw behavioral events and adapts them into the
// authentication-log shape the scoring pipeline consumes.
package ingest

import "time"

// BehavioralEvent is one collected browser/agent event. Only behavioral
// patterns are stored, keyed by opaque user and session identifiers.
type BehavioralEvent struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	SessionID string    `gorm:"index;not null" json:"session_id"`
	EventType string    `gorm:"index;not null" json:"event_type"`
	EventData string    `gorm:"default:'{}'" json:"event_data"`
	PageURL   string    `gorm:"default:''" json:"page_url"`
	Timestamp string    `gorm:"index;not null" json:"timestamp"`
	IPAddress string    `gorm:"default:''" json:"ip_address"`
	UserAgent string    `gorm:"default:''" json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// RawEvent is the ingestion payload shape accepted from collectors.
type RawEvent struct {
	Type      string         `json:"type" binding:"required"`
	Data      map[string]any `json:"data"`
	URL       string         `json:"url"`
	Timestamp string         `json:"timestamp"`
}

// EventStats summarizes the collected event population.
type EventStats struct {
	TotalEvents    int64            `json:"total_events"`
	UniqueUsers    int64            `json:"unique_users"`
	UniqueSessions int64            `json:"unique_sessions"`
	EventTypes     map[string]int64 `json:"event_types"`
	LastEventAt    string           `json:"last_event_at,omitempty"`
}

// EventFilter narrows event queries.
type EventFilter struct {
	UserID    string
	EventType string
	Since     string
	Limit     int
}
