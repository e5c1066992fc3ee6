// Package email delivers relay notifications: login codes and new device notices.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

var (
	ErrKeyMissing           = errors.New("sendgrid api key is not set")
	ErrInvalidMailSender    = errors.New("invalid mail sender")
	ErrInvalidMailRecipient = errors.New("invalid mail recipient")
)

type Sender interface {
	Send(ctx context.Context, data *EmailInfo) error
}

// New returns a sendgrid sender when email is enabled and a sender that only
// logs otherwise.
func New(config *Config) Sender {
	if !config.Enabled {
		slog.Warn("email delivery disabled, messages are only logged")
		return LogSender{}
	}
	return &SendgridSender{apiKey: config.SendgridAPIKey, from: config.FromEmail, fromName: config.FromName}
}

type SendgridSender struct {
	apiKey   string
	from     string
	fromName string
}

func (s *SendgridSender) Send(ctx context.Context, data *EmailInfo) error {
	if s.apiKey == "" {
		return ErrKeyMissing
	}
	if data.FromEmail == "" {
		data.FromEmail, data.FromName = s.from, s.fromName
	}
	if err := data.Validate(); err != nil {
		return err
	}

	from := mail.NewEmail(data.FromName, data.FromEmail)
	to := mail.NewEmail(data.ToName, data.ToEmail)
	message := mail.NewSingleEmail(from, data.Subject, to, data.TextBody, data.HTMLBody)

	resp, err := sendgrid.NewSendClient(s.apiKey).SendWithContext(ctx, message)
	if err != nil {
		slog.Error("failed to send email", "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("failed to send email: sendgrid status %d: %s", resp.StatusCode, resp.Body)
	}

	slog.Debug("email sent", "to", data.ToEmail, "status", resp.StatusCode, "messageId", resp.Headers["X-Message-Id"])
	return nil
}

// LogSender writes messages to the log instead of delivering them. Dev relays only.
type LogSender struct{}

func (LogSender) Send(_ context.Context, data *EmailInfo) error {
	if data.ToEmail == "" {
		return ErrInvalidMailRecipient
	}
	slog.Info("email (not sent)", "to", data.ToEmail, "subject", data.Subject, "body", data.TextBody)
	return nil
}
