package infra

import (
	"errors"
	"fmt"
	"net/smtp"

	"github.com/agntsupport/hospitalsystem-sub004/internal/config"

	"github.com/jordan-wright/email"
)

// ErrMailerDisabled is returned by Send when no SMTP host is configured.
var ErrMailerDisabled = errors.New("mailer: SMTP_HOST not configured")

// Mailer sends notification emails, optionally with a PDF attachment.
// Every send goes through a circuit breaker.
type Mailer struct {
	host     string
	user     string
	password string
	from     string
	addr     string
	cb       *Breaker
}

func NewMailer(cfg *config.Config, cb *Breaker) *Mailer {
	if cb == nil {
		cb = NewBreaker(SMTPBreakerConfig(nil))
	}
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		cb:       cb,
	}
}

func (m *Mailer) Enabled() bool { return m.host != "" }

// BreakerState is reported by /health.
func (m *Mailer) BreakerState() BreakerState { return m.cb.State() }

// Send delivers one message to all recipients. attachmentPath may be empty.
func (m *Mailer) Send(to []string, subject, body, attachmentPath string) error {
	if !m.Enabled() {
		return ErrMailerDisabled
	}
	if len(to) == 0 {
		return errors.New("mailer: no recipients")
	}

	e := email.NewEmail()
	e.From = m.from
	e.To = to
	e.Subject = subject
	e.Text = []byte(body)

	if attachmentPath != "" {
		if _, err := e.AttachFile(attachmentPath); err != nil {
			return fmt.Errorf("mailer: attach PDF: %w", err)
		}
	}

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	return m.cb.Execute(func() error { return e.Send(m.addr, auth) })
}
