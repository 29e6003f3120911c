package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// SMTPSender delivers over STARTTLS using net/smtp. Without credentials a
// deployment should stay on LogOnlySender instead.
type SMTPSender struct {
	host     string
	port     int
	email    string
	password string
	logger   *zap.Logger

	// send is swapped in tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates a sender that authenticates as email/password
// against host:port.
func NewSMTPSender(host string, port int, email, password string, logger *zap.Logger) (*SMTPSender, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("smtp mode requires smtp_email and smtp_password")
	}
	return &SMTPSender{
		host:     host,
		port:     port,
		email:    email,
		password: password,
		logger:   logger,
		send:     smtp.SendMail,
	}, nil
}

func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := smtp.PlainAuth("", s.email, s.password, s.host)

	raw := buildMIMEMessage(s.email, msg)
	if err := s.send(addr, auth, s.email, []string{msg.Recipient}, raw); err != nil {
		return fmt.Errorf("smtp delivery to %s: %w", msg.Recipient, err)
	}
	s.logger.Info("simulated phishing email delivered",
		zap.String("recipient", msg.Recipient),
		zap.String("template_id", msg.TemplateID))
	return nil
}

func (s *SMTPSender) Via() string { return "smtp" }

// buildMIMEMessage renders the wire form of one simulated phishing email.
// The X-Phishing-Simulation header marks the traffic for mail filters run
// by the security team itself.
func buildMIMEMessage(from string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.Recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("X-Phishing-Simulation: true\r\n")
	fmt.Fprintf(&b, "X-Tracking-Token: %s\r\n", msg.TrackingToken)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "<html><body><p>%s</p>", msg.Subject)
	fmt.Fprintf(&b, `<p><a href="%s">Review now</a></p>`, msg.PhishingLink)
	fmt.Fprintf(&b, `<img src="%s" width="1" height="1" alt=""/>`, msg.TrackingPixel)
	b.WriteString("</body></html>\r\n")
	return []byte(b.String())
}
