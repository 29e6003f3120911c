package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/securaware/platform/internal/lifecycle"
	"github.com/securaware/platform/pkg/metrics"
)

// ErrNotEligible is returned when a user's compliance state does not permit
// a new simulated-phishing email (they are mid-cycle).
var ErrNotEligible = fmt.Errorf("user is not eligible for a phishing simulation")

// Campaign dispatches simulated-phishing emails and routes interaction
// callbacks into the state machine.
type Campaign struct {
	db              *gorm.DB
	machine         *lifecycle.Machine
	sender          Sender
	logger          *zap.Logger
	baseURL         string
	recipientDomain string
}

// NewCampaign creates the campaign service and ensures its tables.
func NewCampaign(db *gorm.DB, machine *lifecycle.Machine, sender Sender, logger *zap.Logger, baseURL, recipientDomain string) (*Campaign, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if machine == nil {
		return nil, fmt.Errorf("state machine is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := db.AutoMigrate(&SentEmail{}, &Interaction{}); err != nil {
		return nil, fmt.Errorf("failed to migrate mailer tables: %w", err)
	}
	return &Campaign{
		db:              db,
		machine:         machine,
		sender:          sender,
		logger:          logger,
		baseURL:         strings.TrimRight(baseURL, "/"),
		recipientDomain: recipientDomain,
	}, nil
}

// Eligible reports whether the user may receive a new simulation email.
// Checked before any dispatch; the state machine is the single authority.
func (c *Campaign) Eligible(ctx context.Context, userID string) (bool, error) {
	state, err := c.machine.GetState(ctx, userID)
	if err != nil {
		return false, err
	}
	return lifecycle.CanReceiveEmail(state), nil
}

// Dispatch applies the email_sent transition, then sends one
// simulated-phishing email to the user and logs the delivery. Reason
// records how the dispatch originated ("auto-sent by scheduler
// (risk=0.82)", manual, ...).
//
// The transition goes first: the machine serializes per user, so of two
// concurrent dispatches exactly one wins the transition and sends.
func (c *Campaign) Dispatch(ctx context.Context, userID string, riskScore float64, reason string) (*SentEmail, error) {
	result, err := c.machine.Apply(ctx, userID, lifecycle.TriggerEmailSent, reason)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, ErrNotEligible
	}

	token := uuid.NewString()
	tmpl := templateFor(userID, riskScore)

	msg := Message{
		Recipient:     fmt.Sprintf("%s@%s", userID, c.recipientDomain),
		Subject:       tmpl.Subject,
		TemplateID:    tmpl.ID,
		TrackingToken: token,
		PhishingLink:  fmt.Sprintf("%s/track/click/%s", c.baseURL, token),
		TrackingPixel: fmt.Sprintf("%s/track/open/%s", c.baseURL, token),
	}
	sent := SentEmail{
		EmailID:       "em_" + uuid.NewString()[:12],
		TrackingToken: token,
		UserID:        userID,
		Recipient:     msg.Recipient,
		Subject:       tmpl.Subject,
		Scenario:      tmpl.Scenario,
		TemplateID:    tmpl.ID,
		RiskScore:     riskScore,
		SentVia:       c.sender.Via(),
		SentAt:        time.Now().UTC(),
		Status:        "sent",
	}
	if err := c.sender.Send(ctx, msg); err != nil {
		// The user is already PHISH_SENT; record the failed attempt so
		// the tracking token still resolves.
		sent.Status = "failed"
		if dbErr := c.db.WithContext(ctx).Create(&sent).Error; dbErr != nil {
			c.logger.Error("failed to log failed delivery", zap.Error(dbErr))
		}
		return nil, fmt.Errorf("failed to send phishing email: %w", err)
	}
	if err := c.db.WithContext(ctx).Create(&sent).Error; err != nil {
		return nil, fmt.Errorf("failed to log sent email: %w", err)
	}

	metrics.EmailsDispatched.WithLabelValues(sent.SentVia).Inc()
	c.logger.Info("phishing simulation dispatched",
		zap.String("user_id", userID),
		zap.String("scenario", tmpl.Scenario),
		zap.Float64("risk_score", riskScore))
	return &sent, nil
}

// RecordInteraction logs a tracked response by token and fires the matching
// state-machine trigger. Opens are logged without a transition. Unknown
// tokens are an error; a rejected transition is not (the result carries it).
func (c *Campaign) RecordInteraction(ctx context.Context, token, kind string) (*lifecycle.TransitionResult, error) {
	var sent SentEmail
	err := c.db.WithContext(ctx).Where("tracking_token = ?", token).First(&sent).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("unknown tracking token")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up tracking token: %w", err)
	}

	row := Interaction{
		EmailID:       sent.EmailID,
		TrackingToken: token,
		UserID:        sent.UserID,
		Kind:          kind,
		Timestamp:     time.Now().UTC(),
	}
	if err := c.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to log interaction: %w", err)
	}

	var trigger lifecycle.Trigger
	switch kind {
	case InteractionClick:
		trigger = lifecycle.TriggerPhishClicked
	case InteractionReport:
		trigger = lifecycle.TriggerPhishReported
	case InteractionOpen:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown interaction kind %q", kind)
	}

	return c.machine.Apply(ctx, sent.UserID, trigger,
		fmt.Sprintf("Tracked %s on email %s", kind, sent.EmailID))
}

// History returns the user's sent emails, newest first.
func (c *Campaign) History(ctx context.Context, userID string, limit int) ([]SentEmail, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []SentEmail
	err := c.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load email history: %w", err)
	}
	return rows, nil
}
