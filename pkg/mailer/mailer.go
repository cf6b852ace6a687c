package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/gembotlabs/gembot-backend/pkg/config"
	"github.com/gembotlabs/gembot-backend/pkg/logger"
)

const (
	maxSendAttempts    = 3
	initialSendBackoff = 500 * time.Millisecond
)

// Sender is the outbound-mail surface consumed by auth and wallet flows.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Mailer delivers transactional email over SMTP. When SMTP is not
// configured delivery degrades to a log line so signup flows keep working
// in development.
type Mailer struct {
	cfg    config.SMTPConfig
	logger *logger.Logger
	send   func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// New builds a Mailer around the provided SMTP settings.
func New(cfg config.SMTPConfig, logg *logger.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		logger: logg,
		send:   smtp.SendMail,
	}
}

// Send delivers one message, retrying transient failures with backoff.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("recipient is required")
	}

	if !m.cfg.Configured() {
		if m.logger != nil {
			ctx := m.logger.WithFields(ctx, map[string]any{"subject": subject})
			m.logger.Warn(ctx, "smtp not configured, skipping email delivery")
		}
		return nil
	}

	msg := m.buildMessage(to, subject, body)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	backoff := retry.WithMaxRetries(maxSendAttempts-1, retry.NewFibonacci(initialSendBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := m.send(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		if m.logger != nil {
			m.logger.Error(ctx, "email delivery failed", err)
		}
		return fmt.Errorf("sending email: %w", err)
	}

	if m.logger != nil {
		m.logger.Info(m.logger.WithFields(ctx, map[string]any{"subject": subject}), "email delivered")
	}
	return nil
}

func (m *Mailer) buildMessage(to, subject, body string) []byte {
	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.From)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
