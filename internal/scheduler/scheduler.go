// Package scheduler runs the scoring pipeline on an interval and
// auto-dispatches phishing simulations to high-risk users.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/securaware/platform/internal/ingest"
	"github.com/securaware/platform/internal/mailer"
	"github.com/securaware/platform/internal/pipeline"
)

// Status reports the coordinator's current state for the API.
type Status struct {
	Running        bool          `json:"running"`
	Interval       time.Duration `json:"interval"`
	LastEventCount int64         `json:"last_event_count"`
	LastCycleAt    *time.Time    `json:"last_cycle_at,omitempty"`
}

// Coordinator owns the interval loop. All state is instance-scoped; Start
// and Stop bound the lifecycle explicitly. A cycle in progress is never
// interrupted; Stop only prevents the next one.
type Coordinator struct {
	interval      time.Duration
	riskThreshold float64

	runner   *pipeline.Runner
	campaign *mailer.Campaign
	events   *ingest.Store
	logger   *zap.Logger

	mu             sync.Mutex
	running        bool
	cancel         context.CancelFunc
	done           chan struct{}
	lastEventCount int64
	lastCycleAt    *time.Time
}

// NewCoordinator wires the scheduler. riskThreshold is the minimum final
// risk score for auto-dispatching a phishing simulation.
func NewCoordinator(interval time.Duration, riskThreshold float64, runner *pipeline.Runner, campaign *mailer.Campaign, events *ingest.Store, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		interval:      interval,
		riskThreshold: riskThreshold,
		runner:        runner,
		campaign:      campaign,
		events:        events,
		logger:        logger,
	}
}

// Start launches the interval loop. Returns an error if already running.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("scheduler is already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go c.loop(ctx)
	c.logger.Info("scheduler started", zap.Duration("interval", c.interval))
	return nil
}

// Stop cancels the loop between cycles and waits for it to exit. Returns an
// error if not running.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	cancel := c.cancel
	done := c.done
	c.running = false
	c.mu.Unlock()

	cancel()
	<-done
	c.logger.Info("scheduler stopped")
	return nil
}

// GetStatus returns a snapshot of the coordinator state.
func (c *Coordinator) GetStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Running:        c.running,
		Interval:       c.interval,
		LastEventCount: c.lastEventCount,
		LastCycleAt:    c.lastCycleAt,
	}
}

func (c *Coordinator) loop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cycle(ctx)
		}
	}
}

// cycle runs one scheduler pass: skip when no new events arrived since the
// last pass, otherwise run the pipeline and auto-dispatch to high-risk
// eligible users. Cycle errors are logged, never fatal to the loop.
func (c *Coordinator) cycle(ctx context.Context) {
	// Stop's cancel bounds the wait in loop, not work already underway; a
	// cycle that has started always runs to completion.
	ctx = context.WithoutCancel(ctx)

	total, err := c.events.CountEvents(ctx)
	if err != nil {
		c.logger.Error("scheduler: event count failed", zap.Error(err))
		return
	}

	c.mu.Lock()
	last := c.lastEventCount
	c.mu.Unlock()

	if total <= last {
		c.logger.Debug("scheduler: no new events, skipping cycle",
			zap.Int64("total", total))
		return
	}

	c.logger.Info("scheduler: new events detected, running pipeline",
		zap.Int64("new", total-last))

	result, err := c.runner.Run(ctx)
	if err != nil {
		if err == pipeline.ErrRunInProgress {
			c.logger.Warn("scheduler: previous run still in progress, skipping")
			return
		}
		c.logger.Error("scheduler: pipeline cycle failed", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	c.mu.Lock()
	c.lastEventCount = total
	c.lastCycleAt = &now
	c.mu.Unlock()

	c.dispatchHighRisk(ctx, result)
}

func (c *Coordinator) dispatchHighRisk(ctx context.Context, result *pipeline.Result) {
	for _, rec := range result.Records {
		if rec.FinalRiskScore < c.riskThreshold {
			continue
		}
		reason := fmt.Sprintf("Auto-sent by scheduler (risk=%.2f)", rec.FinalRiskScore)
		_, err := c.campaign.Dispatch(ctx, rec.User, rec.FinalRiskScore, reason)
		if err == mailer.ErrNotEligible {
			continue
		}
		if err != nil {
			c.logger.Warn("scheduler: failed to dispatch phishing email",
				zap.String("user_id", rec.User), zap.Error(err))
			continue
		}
		c.logger.Info("scheduler: phishing simulation sent",
			zap.String("user_id", rec.User),
			zap.Float64("risk_score", rec.FinalRiskScore))
	}
}
