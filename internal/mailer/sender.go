package mailer

import (
	"context"

	"go.uber.org/zap"
)

// Sender delivers a rendered message. SMTP mechanics live behind this
// interface; the core never touches a mail server directly.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	// Via labels deliveries in the campaign log ("smtp", "log_only", ...).
	Via() string
}

// LogOnlySender records deliveries without sending anything. It is the
// default in development and test deployments.
type LogOnlySender struct {
	logger *zap.Logger
}

// NewLogOnlySender creates a sender that only logs.
func NewLogOnlySender(logger *zap.Logger) *LogOnlySender {
	return &LogOnlySender{logger: logger}
}

func (s *LogOnlySender) Send(_ context.Context, msg Message) error {
	s.logger.Info("simulated phishing email (log only)",
		zap.String("recipient", msg.Recipient),
		zap.String("subject", msg.Subject),
		zap.String("template_id", msg.TemplateID),
		zap.String("tracking_token", msg.TrackingToken))
	return nil
}

func (s *LogOnlySender) Via() string { return "log_only" }
