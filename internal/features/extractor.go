// Package features turns raw authentication-style logs into per-user
// behavioral feature vectors for downstream scoring.
package features

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/securaware/platform/pkg/errors"
	"github.com/securaware/platform/pkg/models"
)

// Field names required on every raw authentication row.
var requiredFields = []string{"user", "source_host", "dest_host", "timestamp", "success"}

// Aliases accepted for flexibility with sample datasets.
var fieldAliases = map[string]string{
	"src":      "source_host",
	"src_host": "source_host",
	"dst":      "dest_host",
	"dst_host": "dest_host",
}

// timestampLayouts are tried in order when parsing raw timestamp values.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseRecords validates and converts raw authentication rows into typed
// AuthRecords. Rows missing any required field fail the whole batch with a
// SchemaError naming the missing fields. Unparseable timestamps are retained
// as nil rather than dropping the record, and success coercion never fails.
func ParseRecords(rows []map[string]any, logger *zap.Logger) ([]models.AuthRecord, error) {
	records := make([]models.AuthRecord, 0, len(rows))
	missing := map[string]bool{}
	unparsedTS := 0

	for _, row := range rows {
		normalized := make(map[string]any, len(row))
		for k, v := range row {
			if canonical, ok := fieldAliases[k]; ok {
				k = canonical
			}
			normalized[k] = v
		}

		for _, f := range requiredFields {
			if _, ok := normalized[f]; !ok {
				missing[f] = true
			}
		}
		if len(missing) > 0 {
			continue
		}

		ts := parseTimestamp(normalized["timestamp"])
		if ts == nil {
			unparsedTS++
		}

		records = append(records, models.AuthRecord{
			User:       fmt.Sprint(normalized["user"]),
			SourceHost: fmt.Sprint(normalized["source_host"]),
			DestHost:   fmt.Sprint(normalized["dest_host"]),
			Timestamp:  ts,
			Success:    CoerceSuccess(normalized["success"]),
		})
	}

	if len(missing) > 0 {
		fields := make([]string, 0, len(missing))
		for f := range missing {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		return nil, errors.NewSchemaError("features: parse records", fields...)
	}

	if unparsedTS > 0 && logger != nil {
		logger.Info("some timestamps could not be parsed; records retained",
			zap.Int("count", unparsedTS))
	}

	return records, nil
}

// CoerceSuccess maps any raw success representation to a boolean. Recognized
// truthy/falsy string and numeric encodings map correctly; anything
// unrecognized, including nil, maps to false. This never fails.
func CoerceSuccess(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	}

	s := strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
	switch s {
	case "true", "t", "1", "yes", "y":
		return true
	case "false", "f", "0", "no", "n", "":
		return false
	}
	if num, err := strconv.ParseFloat(s, 64); err == nil {
		return num != 0
	}
	return false
}

func parseTimestamp(v any) *time.Time {
	if t, ok := v.(time.Time); ok {
		return &t
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	// Unix seconds as a last resort.
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil && sec > 0 {
		t := time.Unix(sec, 0).UTC()
		return &t
	}
	return nil
}

// Extract aggregates AuthRecords into one FeatureVector per distinct user.
// Grouping is by exact string identity of the user field; users with zero
// events are simply absent from the output. The result is sorted by user
// identifier for deterministic ordering.
func Extract(events []models.AuthRecord) []models.FeatureVector {
	type agg struct {
		total   int
		failed  int
		sources map[string]struct{}
		dests   map[string]struct{}
	}

	byUser := make(map[string]*agg)
	for _, ev := range events {
		a, ok := byUser[ev.User]
		if !ok {
			a = &agg{sources: map[string]struct{}{}, dests: map[string]struct{}{}}
			byUser[ev.User] = a
		}
		a.total++
		if !ev.Success {
			a.failed++
		}
		a.sources[ev.SourceHost] = struct{}{}
		a.dests[ev.DestHost] = struct{}{}
	}

	vectors := make([]models.FeatureVector, 0, len(byUser))
	for user, a := range byUser {
		ratio := 0.0
		if a.total > 0 {
			ratio = float64(a.failed) / float64(a.total)
		}
		vectors = append(vectors, models.FeatureVector{
			User:              user,
			LoginCount:        a.total,
			FailedLoginRatio:  ratio,
			UniqueSourceHosts: len(a.sources),
			UniqueDestHosts:   len(a.dests),
		})
	}

	sort.Slice(vectors, func(i, j int) bool { return vectors[i].User < vectors[j].User })
	return vectors
}
