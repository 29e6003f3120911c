package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/securaware/platform/internal/mirror"
	"github.com/securaware/platform/pkg/metrics"
)

// Machine is the persisted user compliance state machine. Concurrent Apply
// calls for the same user are serialized with a per-user lock; different
// users proceed in parallel.
type Machine struct {
	db     *gorm.DB
	logger *zap.Logger
	mirror mirror.Mirror

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMachine creates the state machine and ensures its tables exist.
func NewMachine(db *gorm.DB, logger *zap.Logger, m mirror.Mirror) (*Machine, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if m == nil {
		m = mirror.Noop{}
	}
	if err := db.AutoMigrate(&UserState{}, &TransitionLogEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate state tables: %w", err)
	}
	return &Machine{db: db, logger: logger, mirror: m, locks: map[string]*sync.Mutex{}}, nil
}

func (m *Machine) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[userID] = l
	}
	return l
}

// Apply attempts the trigger against the user's current state.
//
// A (state, trigger) pair absent from the table is a no-op: the result has
// Success=false and a diagnostic message, and nothing is written, since
// out-of-order external events must not crash calling code. On acceptance
// the state row upsert and the audit entry are committed atomically, the
// full auto-chain is computed up front and written in the same transaction,
// and each step is mirrored fire-and-forget afterwards.
func (m *Machine) Apply(ctx context.Context, userID string, trigger Trigger, reason string) (*TransitionResult, error) {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	current, err := m.currentState(ctx, userID)
	if err != nil {
		return nil, err
	}

	next, ok := transitions[transitionKey{current, trigger}]
	if !ok {
		metrics.StateTransitions.WithLabelValues(string(trigger), "rejected").Inc()
		return &TransitionResult{
			UserID:    userID,
			FromState: current,
			ToState:   current,
			Trigger:   trigger,
			Success:   false,
			Message:   fmt.Sprintf("No transition from %q with trigger %q", current, trigger),
		}, nil
	}

	// Compute the full chain before committing anything. The table is
	// acyclic under chained triggers, so this terminates (at most 2 hops).
	steps := []chainStep{{from: current, to: next, trigger: trigger, reason: reason}}
	for {
		chain, ok := chained[steps[len(steps)-1].to]
		if !ok {
			break
		}
		last := steps[len(steps)-1]
		chainedNext, ok := transitions[transitionKey{last.to, chain.trigger}]
		if !ok {
			break
		}
		steps = append(steps, chainStep{from: last.to, to: chainedNext, trigger: chain.trigger, reason: chain.reason})
	}

	now := time.Now().UTC()
	finalState := steps[len(steps)-1].to

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := UserState{
			UserID:       userID,
			CurrentState: string(finalState),
			UpdatedAt:    now,
			CreatedAt:    now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"current_state", "updated_at"}),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to upsert user state: %w", err)
		}

		for _, s := range steps {
			entry := TransitionLogEntry{
				UserID:    userID,
				FromState: string(s.from),
				ToState:   string(s.to),
				Trigger:   string(s.trigger),
				Reason:    s.reason,
				Timestamp: now,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return fmt.Errorf("failed to append transition log: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &TransitionResult{
		UserID:    userID,
		FromState: current,
		ToState:   next,
		Trigger:   trigger,
		Reason:    reason,
		Success:   true,
		Message:   fmt.Sprintf("Transitioned from %q to %q", current, next),
	}
	parent := result
	for _, s := range steps[1:] {
		child := &TransitionResult{
			UserID:    userID,
			FromState: s.from,
			ToState:   s.to,
			Trigger:   s.trigger,
			Reason:    s.reason,
			Success:   true,
			Message:   fmt.Sprintf("Transitioned from %q to %q", s.from, s.to),
		}
		parent.Chained = append(parent.Chained, child)
		parent = child
	}

	for _, s := range steps {
		m.logger.Info("state transition",
			zap.String("user_id", userID),
			zap.String("from", string(s.from)),
			zap.String("to", string(s.to)),
			zap.String("trigger", string(s.trigger)),
			zap.String("reason", s.reason))
		metrics.StateTransitions.WithLabelValues(string(s.trigger), "accepted").Inc()
		m.publishState(userID, s, now)
	}

	return result, nil
}

// chainStep is one resolved transition in an apply chain.
type chainStep struct {
	from, to State
	trigger  Trigger
	reason   string
}

// publishState mirrors one accepted step fire-and-forget. A mirror timeout
// or error never blocks or fails the caller and never triggers a retry.
func (m *Machine) publishState(userID string, s chainStep, at time.Time) {
	ev := mirror.StateEvent{
		UserID:    userID,
		FromState: string(s.from),
		ToState:   string(s.to),
		Trigger:   string(s.trigger),
		At:        at,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := m.mirror.PublishState(ctx, ev); err != nil {
			metrics.MirrorFailures.WithLabelValues("state").Inc()
			m.logger.Warn("state mirror publish failed",
				zap.String("user_id", userID), zap.Error(err))
		}
	}()
}

func (m *Machine) currentState(ctx context.Context, userID string) (State, error) {
	var row UserState
	err := m.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return StateClean, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load user state: %w", err)
	}
	return State(row.CurrentState), nil
}

// GetState returns the user's current state, defaulting to CLEAN for users
// with no row.
func (m *Machine) GetState(ctx context.Context, userID string) (State, error) {
	return m.currentState(ctx, userID)
}

// GetAllStates returns every persisted user-state row, most recently updated
// first.
func (m *Machine) GetAllStates(ctx context.Context) ([]UserState, error) {
	var rows []UserState
	if err := m.db.WithContext(ctx).Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list user states: %w", err)
	}
	return rows, nil
}

// GetStateDistribution returns the user count per state, zero-filled so all
// seven states are always present.
func (m *Machine) GetStateDistribution(ctx context.Context) (map[State]int, error) {
	dist := make(map[State]int, len(States))
	for _, s := range States {
		dist[s] = 0
	}

	type bucket struct {
		CurrentState string
		Count        int
	}
	var buckets []bucket
	err := m.db.WithContext(ctx).
		Model(&UserState{}).
		Select("current_state, COUNT(*) as count").
		Group("current_state").
		Find(&buckets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate state distribution: %w", err)
	}

	for _, b := range buckets {
		if _, ok := dist[State(b.CurrentState)]; ok {
			dist[State(b.CurrentState)] = b.Count
		}
	}
	return dist, nil
}

// GetHistory returns the user's transition log entries, most recent first.
// Ordering is by insertion id so entries within one auto-chain burst are
// well-ordered despite sharing a timestamp.
func (m *Machine) GetHistory(ctx context.Context, userID string, limit int) ([]TransitionLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []TransitionLogEntry
	err := m.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load transition history: %w", err)
	}
	return entries, nil
}
