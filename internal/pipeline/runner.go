package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/securaware/platform/internal/anomaly"
	"github.com/securaware/platform/internal/features"
	"github.com/securaware/platform/internal/ingest"
	"github.com/securaware/platform/internal/mirror"
	"github.com/securaware/platform/internal/scoring"
	"github.com/securaware/platform/pkg/metrics"
	"github.com/securaware/platform/pkg/models"
)

// ErrRunInProgress is returned when a run is requested while another run has
// not yet finished. Concurrent runs against the same scored table are not
// safe to interleave, so callers must serialize.
var ErrRunInProgress = fmt.Errorf("pipeline run already in progress")

// Runner executes scoring runs and owns the persisted scored table.
type Runner struct {
	db     *gorm.DB
	events *ingest.Store
	scorer *anomaly.Scorer
	mirror mirror.Mirror
	logger *zap.Logger

	running atomic.Bool
}

// NewRunner creates a runner and ensures the scored-table schema.
func NewRunner(db *gorm.DB, events *ingest.Store, scorer *anomaly.Scorer, m mirror.Mirror, logger *zap.Logger) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if events == nil {
		return nil, fmt.Errorf("event store is required")
	}
	if scorer == nil {
		return nil, fmt.Errorf("anomaly scorer is required")
	}
	if m == nil {
		m = mirror.Noop{}
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := db.AutoMigrate(&ScoredRecord{}, &RunRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate pipeline tables: %w", err)
	}
	return &Runner{db: db, events: events, scorer: scorer, mirror: m, logger: logger}, nil
}

// Result summarizes one completed run.
type Result struct {
	RunID      uint
	UserCount  int
	EventCount int
	Records    []models.RiskRecord
}

// Run executes one full scoring pass. Only one run may be in flight at a
// time; a second caller gets ErrRunInProgress. Schema or validation errors
// halt the run, record the failure reason against the run record, and leave
// the previously persisted scored table untouched. A run over zero events
// completes as "skipped" without touching the scored table.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)

	started := time.Now()

	records, err := r.events.ExportAuthRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export auth records: %w", err)
	}

	run := RunRecord{StartedAt: started.UTC(), Status: RunStatusRunning, EventCount: len(records)}
	if err := r.db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}

	if len(records) == 0 {
		r.finishRun(ctx, &run, RunStatusSkipped, "no events to process")
		r.logger.Info("pipeline run skipped: no events")
		metrics.PipelineRuns.WithLabelValues(RunStatusSkipped).Inc()
		return &Result{RunID: run.ID}, nil
	}

	vectors := features.Extract(records)
	run.UserCount = len(vectors)

	scored, err := r.scorer.Score(vectors)
	if err != nil {
		r.failRun(ctx, &run, err)
		return nil, err
	}

	blended, err := scoring.Blend(scored, nil)
	if err != nil {
		r.failRun(ctx, &run, err)
		return nil, err
	}

	if err := r.persist(ctx, blended); err != nil {
		r.failRun(ctx, &run, err)
		return nil, err
	}

	r.finishRun(ctx, &run, RunStatusCompleted, "")
	metrics.PipelineRuns.WithLabelValues(RunStatusCompleted).Inc()
	metrics.PipelineDuration.Observe(time.Since(started).Seconds())
	metrics.UsersScored.Set(float64(len(blended)))

	r.logger.Info("pipeline run completed",
		zap.Uint("run_id", run.ID),
		zap.Int("events", len(records)),
		zap.Int("users", len(blended)),
		zap.Duration("elapsed", time.Since(started)))

	r.mirrorScores(blended)

	return &Result{
		RunID:      run.ID,
		UserCount:  len(blended),
		EventCount: len(records),
		Records:    blended,
	}, nil
}

// persist overwrites the scored table wholesale in one transaction, so a
// reader either sees the previous run's table or the new one in full.
func (r *Runner) persist(ctx context.Context, records []models.RiskRecord) error {
	now := time.Now().UTC()
	rows := make([]ScoredRecord, len(records))
	for i, rec := range records {
		rows[i] = ScoredRecord{
			User:              rec.User,
			LoginCount:        rec.LoginCount,
			FailedLoginRatio:  rec.FailedLoginRatio,
			UniqueSourceHosts: rec.UniqueSourceHosts,
			UniqueDestHosts:   rec.UniqueDestHosts,
			AnomalyScore:      rec.AnomalyScore,
			MLAnomalyScore:    rec.MLAnomalyScore,
			RuleBasedScore:    rec.RuleBasedScore,
			FinalRiskScore:    rec.FinalRiskScore,
			RiskReason:        rec.RiskReason,
			UpdatedAt:         now,
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&ScoredRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear scored table: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to write scored table: %w", err)
		}
		return nil
	})
}

func (r *Runner) mirrorScores(records []models.RiskRecord) {
	evs := make([]mirror.ScoreEvent, len(records))
	now := time.Now().UTC()
	for i, rec := range records {
		evs[i] = mirror.ScoreEvent{User: rec.User, FinalRiskScore: rec.FinalRiskScore, At: now}
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := r.mirror.PublishScores(ctx, evs); err != nil {
			metrics.MirrorFailures.WithLabelValues("scores").Inc()
			r.logger.Warn("score mirror publish failed", zap.Error(err))
		}
	}()
}

func (r *Runner) failRun(ctx context.Context, run *RunRecord, cause error) {
	r.finishRun(ctx, run, RunStatusFailed, cause.Error())
	metrics.PipelineRuns.WithLabelValues(RunStatusFailed).Inc()
	r.logger.Error("pipeline run failed",
		zap.Uint("run_id", run.ID),
		zap.Error(cause))
}

func (r *Runner) finishRun(ctx context.Context, run *RunRecord, status, errText string) {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = status
	run.Error = errText
	if err := r.db.WithContext(ctx).Save(run).Error; err != nil {
		r.logger.Error("failed to record run completion", zap.Error(err))
	}
}

// Latest returns the persisted scored table, highest risk first.
func (r *Runner) Latest(ctx context.Context) ([]ScoredRecord, error) {
	var rows []ScoredRecord
	if err := r.db.WithContext(ctx).Order("final_risk_score DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load scored table: %w", err)
	}
	return rows, nil
}

// Runs returns recent run records, newest first.
func (r *Runner) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []RunRecord
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load run records: %w", err)
	}
	return rows, nil
}
