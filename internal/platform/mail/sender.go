// Package mail delivers transactional email through an SMTP relay.
package mail

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/lumashop/api/internal/platform/config"
)

// Message is a single outbound email.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender sends through a gomail dialer.
type SMTPSender struct {
	dialer dialer
	from   string
}

// LogSender records messages instead of sending them. Used when no SMTP host is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewSender returns an SMTPSender for cfg, or a LogSender when cfg.Host is empty.
func NewSender(cfg config.MailConfig, logger *zap.Logger) Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Host) == "" {
		logger.Info("mail relay not configured; messages will be logged only")
		return &LogSender{logger: logger}
	}
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	switch {
	case msg.HTML != "" && msg.Text != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}
	return s.dialer.DialAndSend(m)
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	s.logger.Info("mail suppressed", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

func validate(msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("mail: no recipients")
	}
	for _, to := range msg.To {
		if !strings.Contains(to, "@") {
			return errors.New("mail: invalid recipient " + to)
		}
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return errors.New("mail: subject is required")
	}
	return nil
}
