package notify

import (
	"time"

	gomail "gopkg.in/mail.v2"

	"github.com/shanehull/idxscraper/internal/platform/config"
)

var dialAndSend = func(d *gomail.Dialer, m *gomail.Message) error {
	return d.DialAndSend(m)
}

// EmailSender delivers messages via SMTP.
type EmailSender struct {
	cfg config.SMTP
}

// NewEmailSender creates a sender with the given SMTP configuration.
func NewEmailSender(cfg config.SMTP) *EmailSender {
	return &EmailSender{cfg: cfg}
}

// Send delivers an email with HTML body and plain text fallback. It is a
// no-op when SMTP is not fully configured.
func (s *EmailSender) Send(msg *RenderedMessage) error {
	if !s.cfg.Enabled() {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.Sender())
	m.SetHeader("To", s.cfg.To)
	m.SetHeader("Subject", msg.Subject)

	if msg.HTML != "" && msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	} else if msg.HTML != "" {
		m.SetBody("text/html", msg.HTML)
	} else {
		m.SetBody("text/plain", msg.Text)
	}

	dialer := gomail.NewDialer(s.cfg.Server, s.cfg.Port, s.cfg.User, s.cfg.Pass)
	dialer.Timeout = 10 * time.Second

	return dialAndSend(dialer, m)
}
