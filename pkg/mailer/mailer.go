package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/noah-isme/enrol-pay-api/pkg/config"
)

// Mailer delivers plain-text notifications. The purchase flow uses it for
// welcome mail and administrator alerts; tests substitute a fake.
type Mailer interface {
	Send(to, from, subject, body, replyTo string) error
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

// NewSMTP constructs an SMTP-backed mailer.
func NewSMTP(cfg config.SMTPConfig) *SMTPMailer {
	if cfg.Sender == "" {
		cfg.Sender = "no-reply@localhost"
	}
	return &SMTPMailer{cfg: cfg}
}

// Send delivers a single message. An empty from falls back to the configured
// sender address; replyTo is optional.
func (m *SMTPMailer) Send(to, from, subject, body, replyTo string) error {
	if to == "" {
		return fmt.Errorf("mailer: empty recipient")
	}
	if from == "" {
		from = m.cfg.Sender
	}

	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", from, to, subject)
	if replyTo != "" {
		headers += fmt.Sprintf("Reply-To: %s\r\n", replyTo)
	}
	msg := []byte(headers + "MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n" + body)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := smtp.SendMail(addr, auth, m.cfg.Sender, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
