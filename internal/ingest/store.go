package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store is the gorm-backed behavioral event store.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore creates the store and ensures its schema.
func NewStore(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := db.AutoMigrate(&BehavioralEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate event tables: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// InsertEvents persists a batch of raw events for one user session. Returns
// the number inserted.
func (s *Store) InsertEvents(ctx context.Context, userID, sessionID string, events []RawEvent, ip, userAgent string) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	rows := make([]BehavioralEvent, 0, len(events))
	for _, ev := range events {
		data := "{}"
		if ev.Data != nil {
			if b, err := json.Marshal(ev.Data); err == nil {
				data = string(b)
			}
		}
		ts := ev.Timestamp
		if ts == "" {
			ts = time.Now().UTC().Format(time.RFC3339)
		}
		rows = append(rows, BehavioralEvent{
			UserID:    userID,
			SessionID: sessionID,
			EventType: ev.Type,
			EventData: data,
			PageURL:   ev.URL,
			Timestamp: ts,
			IPAddress: ip,
			UserAgent: userAgent,
		})
	}

	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return 0, fmt.Errorf("failed to insert events: %w", err)
	}

	s.logger.Info("inserted behavioral events",
		zap.Int("count", len(rows)),
		zap.String("user_id", userID),
		zap.String("session_id", sessionID))
	return len(rows), nil
}

// GetEvents queries events with optional filters, newest first.
func (s *Store) GetEvents(ctx context.Context, filter EventFilter) ([]BehavioralEvent, error) {
	query := s.db.WithContext(ctx).Model(&BehavioralEvent{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	if filter.Since != "" {
		query = query.Where("timestamp >= ?", filter.Since)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}

	var rows []BehavioralEvent
	if err := query.Order("timestamp DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return rows, nil
}

// CountEvents returns the total number of stored events; the scheduler uses
// it as a new-data watermark.
func (s *Store) CountEvents(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&BehavioralEvent{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return total, nil
}

// GetStats summarizes the collected event population for the dashboard.
func (s *Store) GetStats(ctx context.Context) (*EventStats, error) {
	stats := &EventStats{EventTypes: map[string]int64{}}

	db := s.db.WithContext(ctx).Model(&BehavioralEvent{})
	if err := db.Count(&stats.TotalEvents).Error; err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&BehavioralEvent{}).
		Distinct("user_id").Count(&stats.UniqueUsers).Error; err != nil {
		return nil, fmt.Errorf("failed to count distinct users: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&BehavioralEvent{}).
		Distinct("session_id").Count(&stats.UniqueSessions).Error; err != nil {
		return nil, fmt.Errorf("failed to count distinct sessions: %w", err)
	}

	type typeCount struct {
		EventType string
		Count     int64
	}
	var byType []typeCount
	if err := s.db.WithContext(ctx).Model(&BehavioralEvent{}).
		Select("event_type, COUNT(*) as count").
		Group("event_type").
		Order("count DESC").
		Find(&byType).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate event types: %w", err)
	}
	for _, tc := range byType {
		stats.EventTypes[tc.EventType] = tc.Count
	}

	var last BehavioralEvent
	err := s.db.WithContext(ctx).Order("timestamp DESC").First(&last).Error
	if err == nil {
		stats.LastEventAt = last.Timestamp
	} else if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to load last event: %w", err)
	}

	return stats, nil
}
