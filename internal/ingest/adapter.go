package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/securaware/platform/internal/features"
	"github.com/securaware/platform/pkg/models"
)

// Event types that indicate failed or suspicious activity when mapped to the
// authentication-log success flag.
var failureEventTypes = map[string]bool{
	"error":            true,
	"suspicious_copy":  true,
	"rapid_navigation": true,
	"unusual_hours":    true,
}

// ExportAuthRecords converts the full stored event history into the
// authentication-log schema the feature extractor consumes:
//
//   - source host is a session-derived identifier (or IP fallback)
//   - dest host is the page URL host (or a page slug)
//   - success is derived from the event type
//
// This translation lets the scoring pipeline process live behavioral data
// without knowing about browsers.
func (s *Store) ExportAuthRecords(ctx context.Context) ([]models.AuthRecord, error) {
	var rows []BehavioralEvent
	if err := s.db.WithContext(ctx).Order("timestamp").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to export events: %w", err)
	}

	raw := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		raw = append(raw, map[string]any{
			"user":        r.UserID,
			"source_host": sourceHost(r),
			"dest_host":   destHost(r.PageURL),
			"timestamp":   r.Timestamp,
			"success":     !failureEventTypes[r.EventType],
		})
	}
	return features.ParseRecords(raw, s.logger)
}

func sourceHost(r BehavioralEvent) string {
	if r.SessionID != "" {
		id := r.SessionID
		if len(id) > 8 {
			id = id[:8]
		}
		return "SESSION_" + id
	}
	return "IP_" + r.IPAddress
}

func destHost(pageURL string) string {
	if pageURL == "" {
		pageURL = "unknown"
	}
	if strings.HasPrefix(pageURL, "http") {
		parts := strings.Split(pageURL, "/")
		if len(parts) > 2 && parts[2] != "" {
			return parts[2]
		}
	}
	slug := strings.ReplaceAll(pageURL, "/", "_")
	if len(slug) > 20 {
		slug = slug[:20]
	}
	return "PAGE_" + slug
}
