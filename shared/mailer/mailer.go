package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/batch-sync/internal/runner/domain"
	"github.com/wneessen/go-mail"
)

// Config holds SMTP relay configuration
type Config struct {
	Host      string
	Port      int
	Sender    string
	Password  string
	Recipient string
}

// Sender delivers built messages; *mail.Client satisfies it
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Notifier sends plain-text mails to a single configured recipient
type Notifier struct {
	config *Config
	sender Sender
	logger *slog.Logger
}

// NewNotifier creates a notifier that authenticates against the relay with
// PLAIN auth over a mandatory STARTTLS session
func NewNotifier(config *Config, logger *slog.Logger) (*Notifier, error) {
	client, err := mail.NewClient(config.Host,
		mail.WithPort(config.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(config.Sender),
		mail.WithPassword(config.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	return NewNotifierWithSender(config, client, logger), nil
}

// NewNotifierWithSender creates a notifier on top of an existing sender
func NewNotifierWithSender(config *Config, sender Sender, logger *slog.Logger) *Notifier {
	return &Notifier{
		config: config,
		sender: sender,
		logger: logger,
	}
}

// BuildMessage renders a single-part text/plain message
func (n *Notifier) BuildMessage(subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.config.Sender); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(n.config.Recipient); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

// Notify sends subject and body to the configured recipient
func (n *Notifier) Notify(ctx context.Context, subject, body string) error {
	msg, err := n.BuildMessage(subject, body)
	if err != nil {
		return &domain.NotificationError{Err: err}
	}

	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		n.logger.Error("Failed to send email",
			slog.String("host", n.config.Host),
			slog.Int("port", n.config.Port),
			slog.Any("error", err),
		)
		return &domain.NotificationError{Err: err}
	}

	n.logger.Info("Email sent",
		slog.String("subject", subject),
		slog.String("recipient", n.config.Recipient),
	)
	return nil
}
