package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store, err := NewStore(db, zap.NewNop())
	require.NoError(t, err)
	return store
}

func seedSession(t *testing.T, s *Store, userID, sessionID string, events []RawEvent) {
	t.Helper()
	n, err := s.InsertEvents(context.Background(), userID, sessionID, events, "10.0.0.5", "test-agent")
	require.NoError(t, err)
	require.Equal(t, len(events), n)
}

func TestInsertAndCountEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedSession(t, store, "alice", "sess-alice-1", []RawEvent{
		{Type: "click", URL: "https://intranet.example.com/home", Timestamp: "2026-03-10T09:00:00Z"},
		{Type: "error", URL: "https://intranet.example.com/login", Timestamp: "2026-03-10T09:01:00Z"},
	})

	total, err := store.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestInsertEventsEmptyBatch(t *testing.T) {
	store := newTestStore(t)
	n, err := store.InsertEvents(context.Background(), "alice", "s1", nil, "", "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetEventsFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedSession(t, store, "alice", "s1", []RawEvent{
		{Type: "click", Timestamp: "2026-03-10T09:00:00Z"},
		{Type: "error", Timestamp: "2026-03-10T09:05:00Z"},
	})
	seedSession(t, store, "bob", "s2", []RawEvent{
		{Type: "click", Timestamp: "2026-03-10T10:00:00Z"},
	})

	byUser, err := store.GetEvents(ctx, EventFilter{UserID: "alice"})
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byType, err := store.GetEvents(ctx, EventFilter{EventType: "click"})
	require.NoError(t, err)
	assert.Len(t, byType, 2)

	since, err := store.GetEvents(ctx, EventFilter{Since: "2026-03-10T09:30:00Z"})
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, "bob", since[0].UserID)
}

func TestGetStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedSession(t, store, "alice", "s1", []RawEvent{
		{Type: "click", Timestamp: "2026-03-10T09:00:00Z"},
		{Type: "click", Timestamp: "2026-03-10T09:01:00Z"},
		{Type: "error", Timestamp: "2026-03-10T09:02:00Z"},
	})
	seedSession(t, store, "bob", "s2", []RawEvent{
		{Type: "scroll", Timestamp: "2026-03-10T09:30:00Z"},
	})

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalEvents)
	assert.Equal(t, int64(2), stats.UniqueUsers)
	assert.Equal(t, int64(2), stats.UniqueSessions)
	assert.Equal(t, int64(2), stats.EventTypes["click"])
	assert.Equal(t, int64(1), stats.EventTypes["error"])
	assert.Equal(t, "2026-03-10T09:30:00Z", stats.LastEventAt)
}

func TestExportAuthRecordsMapping(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedSession(t, store, "alice", "longsessionid123", []RawEvent{
		{Type: "click", URL: "https://portal.example.com/dashboard", Timestamp: "2026-03-10T09:00:00Z"},
		{Type: "error", URL: "/local/settings/page", Timestamp: "2026-03-10T09:01:00Z"},
		{Type: "suspicious_copy", URL: "", Timestamp: "2026-03-10T09:02:00Z"},
	})

	records, err := store.ExportAuthRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "alice", records[0].User)
	assert.Equal(t, "SESSION_longsess", records[0].SourceHost)
	assert.Equal(t, "portal.example.com", records[0].DestHost)
	assert.True(t, records[0].Success)

	assert.Equal(t, "PAGE__local_settings_page", records[1].DestHost)
	assert.False(t, records[1].Success)

	assert.Equal(t, "PAGE_unknown", records[2].DestHost)
	assert.False(t, records[2].Success)
}

func TestExportAuthRecordsEmpty(t *testing.T) {
	store := newTestStore(t)
	records, err := store.ExportAuthRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}
