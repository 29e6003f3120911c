package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/securaware/platform/internal/anomaly"
	"github.com/securaware/platform/internal/ingest"
	"github.com/securaware/platform/internal/mirror"
)

func newTestRunner(t *testing.T) (*Runner, *ingest.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store, err := ingest.NewStore(db, zap.NewNop())
	require.NoError(t, err)

	runner, err := NewRunner(db, store, anomaly.NewScorer(anomaly.DefaultConfig()), nil, zap.NewNop())
	require.NoError(t, err)
	return runner, store
}

func seedEvents(t *testing.T, store *ingest.Store) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := store.InsertEvents(ctx, "routine", "sess-r", []ingest.RawEvent{
			{Type: "click", URL: "https://portal.example.com/home",
				Timestamp: fmt.Sprintf("2026-03-10T09:%02d:00Z", i)},
		}, "10.0.0.1", "agent")
		require.NoError(t, err)
	}
	for i := 0; i < 30; i++ {
		_, err := store.InsertEvents(ctx, "erratic", fmt.Sprintf("sess-%02d", i), []ingest.RawEvent{
			{Type: "error", URL: fmt.Sprintf("https://host%02d.example.com/admin", i%12),
				Timestamp: fmt.Sprintf("2026-03-10T10:%02d:00Z", i)},
		}, "10.0.0.2", "agent")
		require.NoError(t, err)
	}
	for i := 0; i < 8; i++ {
		_, err := store.InsertEvents(ctx, "steady", "sess-s", []ingest.RawEvent{
			{Type: "scroll", URL: "https://portal.example.com/docs",
				Timestamp: fmt.Sprintf("2026-03-10T11:%02d:00Z", i)},
		}, "10.0.0.3", "agent")
		require.NoError(t, err)
	}
}

func TestRunOverEmptyStoreSkips(t *testing.T) {
	runner, _ := newTestRunner(t)
	ctx := context.Background()

	result, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.UserCount)

	runs, err := runner.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunStatusSkipped, runs[0].Status)

	scored, err := runner.Latest(ctx)
	require.NoError(t, err)
	assert.Empty(t, scored)
}

func TestRunScoresAndPersists(t *testing.T) {
	runner, store := newTestRunner(t)
	ctx := context.Background()
	seedEvents(t, store)

	result, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 48, result.EventCount)
	assert.Equal(t, 3, result.UserCount)

	scored, err := runner.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, scored, 3)
	assert.Equal(t, "erratic", scored[0].User)
	for i := 1; i < len(scored); i++ {
		assert.GreaterOrEqual(t, scored[i-1].FinalRiskScore, scored[i].FinalRiskScore)
	}

	runs, err := runner.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunStatusCompleted, runs[0].Status)
	assert.Equal(t, 3, runs[0].UserCount)
	require.NotNil(t, runs[0].FinishedAt)
}

func TestRunIsIdempotentAcrossReruns(t *testing.T) {
	runner, store := newTestRunner(t)
	ctx := context.Background()
	seedEvents(t, store)

	first, err := runner.Run(ctx)
	require.NoError(t, err)
	second, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.UserCount, second.UserCount)

	// The table is overwritten, never appended.
	scored, err := runner.Latest(ctx)
	require.NoError(t, err)
	assert.Len(t, scored, 3)

	runs, err := runner.Runs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunWithOneUserCompletes(t *testing.T) {
	runner, store := newTestRunner(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.InsertEvents(ctx, "solo", "sess-solo", []ingest.RawEvent{
			{Type: "click", URL: "https://portal.example.com/home",
				Timestamp: fmt.Sprintf("2026-03-10T09:%02d:00Z", i)},
		}, "10.0.0.9", "agent")
		require.NoError(t, err)
	}

	result, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.UserCount)

	scored, err := runner.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, 0.0, scored[0].FinalRiskScore)
	assert.Equal(t, "Single-user data: insufficient variation to assess deviation", scored[0].RiskReason)
}

func TestRunSingleFlight(t *testing.T) {
	runner, _ := newTestRunner(t)

	runner.running.Store(true)
	_, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunInProgress)
	runner.running.Store(false)
}

// failingMirror always errors, standing in for an unreachable backend.
type failingMirror struct{}

func (failingMirror) PublishState(context.Context, mirror.StateEvent) error {
	return fmt.Errorf("mirror unavailable")
}

func (failingMirror) PublishScores(context.Context, []mirror.ScoreEvent) error {
	return fmt.Errorf("mirror unavailable")
}

func (failingMirror) Close() error { return nil }

func TestRunSucceedsWhenScoreMirrorFails(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store, err := ingest.NewStore(db, zap.NewNop())
	require.NoError(t, err)
	runner, err := NewRunner(db, store, anomaly.NewScorer(anomaly.DefaultConfig()), failingMirror{}, zap.NewNop())
	require.NoError(t, err)

	seedEvents(t, store)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.UserCount)

	scored, err := runner.Latest(context.Background())
	require.NoError(t, err)
	assert.Len(t, scored, 3)
}
