// Package notify is the e-mail notification sink used by fulfillment.
// Sending is fire-and-forget from the caller's point of view: errors are
// returned for logging only.
package notify

import (
	"context"
	"fmt"
	"log"

	"gopkg.in/gomail.v2"

	"github.com/papegu/senegal-livres/internal/config"
)

// Mailer sends one HTML message.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SMTPMailer delivers through an SMTP relay.
type SMTPMailer struct {
	from   string
	dialer *gomail.Dialer
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass),
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// LogMailer writes messages to the log.  It is used when no SMTP host is
// configured so local runs still show what would have been sent.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, html string) error {
	log.Printf("mailer: to=%s subject=%q bytes=%d (smtp disabled)", to, subject, len(html))
	return nil
}

// New picks the SMTP mailer when a host is configured.
func New(cfg config.MailConfig) Mailer {
	if cfg.Host == "" {
		log.Printf("mailer: SMTP_HOST not set, notifications go to the log")
		return LogMailer{}
	}
	return NewSMTPMailer(cfg)
}
