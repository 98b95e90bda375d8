package notification

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Mailer delivers a single email. Implementations must be safe for
// concurrent use.
type Mailer interface {
	Send(to, subject, body string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends via a plain-auth SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	auth smtp.Auth
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		cfg:  cfg,
		auth: smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host),
	}
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := smtp.SendMail(addr, m.auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

// LogMailer writes mail to the log instead of a relay, for local
// development and tests.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) Send(to, subject, body string) error {
	m.Logger.Info("mail delivery (log only)",
		"to", to,
		"subject", subject,
		"body", body)
	return nil
}
