// Package notify delivers outbound notifications. The core only depends
// on the interface boundary; delivery content and transport live here.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"docshare/internal/server/config"

	"github.com/wneessen/go-mail"
)

// ErrNotConfigured is returned when SMTP settings are absent.
var ErrNotConfigured = errors.New("smtp is not configured")

// Mailer sends contact-form messages over SMTP.
type Mailer struct {
	host      string
	port      int
	username  string
	password  string
	from      string
	recipient string
}

// NewMailer creates a mailer from config. The mailer is inert (and
// SendContact fails with ErrNotConfigured) when SMTP_HOST is unset.
func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:      cfg.SMTPHost,
		port:      cfg.SMTPPort,
		username:  cfg.SMTPUsername,
		password:  cfg.SMTPPassword,
		from:      cfg.MailFrom,
		recipient: cfg.ContactRecipient,
	}
}

// Configured reports whether the mailer has enough settings to send.
func (m *Mailer) Configured() bool {
	return m.host != "" && m.from != "" && m.recipient != ""
}

// SendContact delivers a contact-form message to the configured
// recipient, with Reply-To set to the submitter's address.
func (m *Mailer) SendContact(ctx context.Context, fromEmail, message string) error {
	if !m.Configured() {
		return ErrNotConfigured
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(m.recipient); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	if err := msg.ReplyTo(fromEmail); err != nil {
		return fmt.Errorf("invalid reply-to address: %w", err)
	}
	msg.Subject("New contact message")
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf("From: %s\n\n%s", fromEmail, message))

	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password),
		)
	}

	client, err := mail.NewClient(m.host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send contact message: %w", err)
	}

	slog.Info("contact message sent", "reply_to", fromEmail)
	return nil
}
