package mailer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/noah-isme/trivsel-api/pkg/config"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

// SendGrid delivers messages through the SendGrid v3 mail API.
type SendGrid struct {
	key         string
	from        *sgmail.Email
	subjPrefix  string
	sendTimeout time.Duration
	logger      *zap.Logger
}

// NewSendGrid builds a SendGrid mailer from the email configuration.
func NewSendGrid(cfg config.EmailConfig, logger *zap.Logger) *SendGrid {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SendGrid{
		key:         cfg.SendGridKey,
		from:        sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		subjPrefix:  cfg.SubjectPrefix,
		sendTimeout: timeout,
		logger:      logger,
	}
}

// Send delivers a single message. The call is bounded by the configured send
// timeout; any failure is returned to the caller for logging, never panicked.
func (m *SendGrid) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("email recipient missing")
	}

	ctx, cancel := context.WithTimeout(ctx, m.sendTimeout)
	defer cancel()

	req := sendgrid.GetRequest(m.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("send email to %s: %w", msg.To, err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		m.logger.Error("sendgrid rejected message",
			zap.String("to", msg.To),
			zap.Int("status", res.StatusCode),
			zap.String("body", res.Body),
		)
		return fmt.Errorf("send email to %s: status %d", msg.To, res.StatusCode)
	}
	return nil
}

func (m *SendGrid) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.To))

	out := sgmail.NewV3Mail()
	out.SetFrom(m.from)
	out.AddPersonalizations(p)
	out.AddContent(
		sgmail.NewContent("text/plain", msg.Text),
		sgmail.NewContent("text/html", msg.HTML),
	)
	return out
}
