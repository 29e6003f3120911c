package mailer

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/securaware/platform/internal/lifecycle"
)

func newTestCampaign(t *testing.T) (*Campaign, *lifecycle.Machine) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	machine, err := lifecycle.NewMachine(db, zap.NewNop(), nil)
	require.NoError(t, err)

	campaign, err := NewCampaign(db, machine, NewLogOnlySender(zap.NewNop()),
		zap.NewNop(), "http://localhost:8000/", "example.com")
	require.NoError(t, err)
	return campaign, machine
}

func TestDispatchFromCleanState(t *testing.T) {
	campaign, machine := newTestCampaign(t)
	ctx := context.Background()

	sent, err := campaign.Dispatch(ctx, "alice", 0.75, "manual test send")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", sent.Recipient)
	assert.NotEmpty(t, sent.TrackingToken)
	assert.Equal(t, "log_only", sent.SentVia)

	// High-risk users get a high-pressure scenario.
	assert.Contains(t, []string{"payroll_update", "it_security_alert"}, sent.Scenario)

	state, err := machine.GetState(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatePhishSent, state)
}

func TestDispatchGatedMidCycle(t *testing.T) {
	campaign, _ := newTestCampaign(t)
	ctx := context.Background()

	_, err := campaign.Dispatch(ctx, "bob", 0.5, "first send")
	require.NoError(t, err)

	// PHISH_SENT is mid-cycle: a second send must be refused.
	_, err = campaign.Dispatch(ctx, "bob", 0.5, "second send")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotEligible)

	eligible, err := campaign.Eligible(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, eligible)
}

func TestDispatchAllowedAgainOnceCompliant(t *testing.T) {
	campaign, machine := newTestCampaign(t)
	ctx := context.Background()

	_, err := campaign.Dispatch(ctx, "carol", 0.2, "")
	require.NoError(t, err)
	_, err = machine.Apply(ctx, "carol", lifecycle.TriggerPhishReported, "reported")
	require.NoError(t, err)

	sent, err := campaign.Dispatch(ctx, "carol", 0.2, "")
	require.NoError(t, err)
	assert.NotEmpty(t, sent.EmailID)
}

func TestRecordClickTransitionsAndChains(t *testing.T) {
	campaign, machine := newTestCampaign(t)
	ctx := context.Background()

	sent, err := campaign.Dispatch(ctx, "dave", 0.4, "")
	require.NoError(t, err)

	result, err := campaign.RecordInteraction(ctx, sent.TrackingToken, InteractionClick)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, lifecycle.StateMicroRequired, result.FinalState())

	state, err := machine.GetState(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateMicroRequired, state)
}

func TestRecordOpenLogsWithoutTransition(t *testing.T) {
	campaign, machine := newTestCampaign(t)
	ctx := context.Background()

	sent, err := campaign.Dispatch(ctx, "erin", 0.4, "")
	require.NoError(t, err)

	result, err := campaign.RecordInteraction(ctx, sent.TrackingToken, InteractionOpen)
	require.NoError(t, err)
	assert.Nil(t, result)

	state, err := machine.GetState(ctx, "erin")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatePhishSent, state)
}

func TestRecordInteractionUnknownToken(t *testing.T) {
	campaign, _ := newTestCampaign(t)

	_, err := campaign.RecordInteraction(context.Background(), "no-such-token", InteractionClick)
	require.Error(t, err)
}

func TestRecordInteractionUnknownKind(t *testing.T) {
	campaign, _ := newTestCampaign(t)
	ctx := context.Background()

	sent, err := campaign.Dispatch(ctx, "frank", 0.4, "")
	require.NoError(t, err)

	_, err = campaign.RecordInteraction(ctx, sent.TrackingToken, "forward")
	require.Error(t, err)
}

func TestHistoryNewestFirst(t *testing.T) {
	campaign, machine := newTestCampaign(t)
	ctx := context.Background()

	first, err := campaign.Dispatch(ctx, "gail", 0.1, "")
	require.NoError(t, err)
	_, err = machine.Apply(ctx, "gail", lifecycle.TriggerPhishIgnored, "")
	require.NoError(t, err)
	second, err := campaign.Dispatch(ctx, "gail", 0.1, "")
	require.NoError(t, err)

	history, err := campaign.History(ctx, "gail", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.EmailID, history[0].EmailID)
	assert.Equal(t, first.EmailID, history[1].EmailID)
}

func TestConcurrentDispatchSendsExactlyOnce(t *testing.T) {
	campaign, machine := newTestCampaign(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = campaign.Dispatch(ctx, "hank", 0.7, "race check")
		}(i)
	}
	wg.Wait()

	sent := 0
	for _, err := range errs {
		if err == nil {
			sent++
		} else {
			assert.ErrorIs(t, err, ErrNotEligible)
		}
	}
	assert.Equal(t, 1, sent)

	history, err := campaign.History(ctx, "hank", 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	state, err := machine.GetState(ctx, "hank")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatePhishSent, state)
}

type failingSender struct{}

func (failingSender) Send(context.Context, Message) error {
	return fmt.Errorf("relay refused connection")
}

func (failingSender) Via() string { return "smtp" }

func TestDispatchRecordsFailedDelivery(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	machine, err := lifecycle.NewMachine(db, zap.NewNop(), nil)
	require.NoError(t, err)
	campaign, err := NewCampaign(db, machine, failingSender{},
		zap.NewNop(), "http://localhost:8000", "example.com")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = campaign.Dispatch(ctx, "ivy", 0.7, "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotEligible)

	// The transition had already won, so the attempt is logged as failed.
	history, err := campaign.History(ctx, "ivy", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "failed", history[0].Status)

	state, err := machine.GetState(ctx, "ivy")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatePhishSent, state)
}

func TestTemplateForTiersAndDeterminism(t *testing.T) {
	low := templateFor("alice", 0.1)
	medium := templateFor("alice", 0.45)
	high := templateFor("alice", 0.9)

	assert.Contains(t, []string{"newsletter", "survey"}, low.Scenario)
	assert.Contains(t, []string{"password_reset", "shared_document"}, medium.Scenario)
	assert.Contains(t, []string{"payroll_update", "it_security_alert"}, high.Scenario)

	assert.Equal(t, high, templateFor("alice", 0.9))
}
