// Package mail sends transactional email over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/1001stories/stories-api/internal/config"
	"github.com/1001stories/stories-api/internal/redact"
)

// ErrInvalidMessage is returned for a message without a recipient or subject.
var ErrInvalidMessage = errors.New("invalid email message")

// Message is a plain-text email to one recipient.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
}

func (m Message) validate() error {
	if m.To == "" {
		return fmt.Errorf("%w: missing recipient", ErrInvalidMessage)
	}
	if m.Subject == "" {
		return fmt.Errorf("%w: missing subject", ErrInvalidMessage)
	}
	return nil
}

// Sender delivers email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns an SMTP sender for cfg, or a Sender that only logs
// when cfg.Host is empty.
func NewSender(cfg config.MailConfig, logger *slog.Logger) (Sender, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "mail"))

	if cfg.Host == "" {
		logger.Warn("mail host not configured, email delivery disabled")
		return &LogSender{logger: logger}, nil
	}
	return NewSMTPSender(cfg, logger)
}

// SMTPSender delivers through an SMTP relay.
type SMTPSender struct {
	client   *gomail.Client
	from     string
	fromName string
	logger   *slog.Logger
}

// NewSMTPSender configures an SMTP client. No connection is made until Send.
func NewSMTPSender(cfg config.MailConfig, logger *slog.Logger) (*SMTPSender, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password))
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SMTPSender{
		client:   client,
		from:     cfg.From,
		fromName: cfg.FromName,
		logger:   logger,
	}, nil
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	msg, err := s.build(m)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.logger.DebugContext(ctx, "email sent", slog.String("subject", m.Subject))
	return nil
}

func (s *SMTPSender) build(m Message) (*gomail.Msg, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if m.ToName != "" {
		if err := msg.AddToFormat(m.ToName, m.To); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidMessage, redact.Error(err))
		}
	} else if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMessage, redact.Error(err))
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, m.Text)
	return msg, nil
}

// LogSender drops messages after logging them. It stands in for SMTP when
// no relay is configured.
type LogSender struct {
	logger *slog.Logger
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, m Message) error {
	if err := m.validate(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "email delivery disabled, message dropped",
		slog.String("subject", m.Subject))
	return nil
}
