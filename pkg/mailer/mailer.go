package mailer

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/trivsel-api/pkg/config"
)

// Message is a single outbound email with both plain-text and HTML bodies.
type Message struct {
	To      string `json:"to"`
	ToName  string `json:"to_name"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// Mailer delivers messages to students and staff.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NewFromConfig selects the SendGrid transport when email is enabled and an API
// key is configured, falling back to the console transport otherwise.
func NewFromConfig(cfg config.EmailConfig, logger *zap.Logger) Mailer {
	if cfg.Enabled && cfg.SendGridKey != "" {
		return NewSendGrid(cfg, logger)
	}
	return NewConsole(logger)
}

// Console logs messages instead of delivering them. Used in development and
// whenever outbound email is disabled.
type Console struct {
	logger *zap.Logger
}

// NewConsole builds a console mailer.
func NewConsole(logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{logger: logger}
}

// Send logs the message and reports success.
func (m *Console) Send(_ context.Context, msg Message) error {
	m.logger.Info("email (console)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("text_len", len(msg.Text)),
	)
	return nil
}
