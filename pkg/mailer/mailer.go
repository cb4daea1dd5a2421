package mailer

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/klaslab/school-api/pkg/config"
)

// Mailer delivers notification emails. Delivery is best effort: every
// implementation swallows and logs errors so a failed email can never
// fail the surrounding business operation.
type Mailer interface {
	Send(toEmail, toName, subject, htmlBody string)
}

// New selects a backend from config: SendGrid when enabled and keyed,
// a log-only console mailer otherwise.
func New(cfg config.MailConfig, logger *zap.Logger) Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Enabled && cfg.SendgridKey != "" {
		return &sendgridMailer{cfg: cfg, logger: logger}
	}
	return &consoleMailer{logger: logger}
}

type sendgridMailer struct {
	cfg    config.MailConfig
	logger *zap.Logger
}

func (m *sendgridMailer) Send(toEmail, toName, subject, htmlBody string) {
	go func() {
		from := sgmail.NewEmail(m.cfg.SenderName, m.cfg.SenderEmail)
		to := sgmail.NewEmail(toName, toEmail)
		message := sgmail.NewSingleEmail(from, subject, to, "", htmlBody)

		client := sendgrid.NewSendClient(m.cfg.SendgridKey)
		resp, err := client.Send(message)
		if err != nil {
			m.logger.Error("failed to send email", zap.String("to", toEmail), zap.Error(err))
			return
		}
		if resp.StatusCode >= 400 {
			m.logger.Error("mail provider rejected email",
				zap.String("to", toEmail),
				zap.Int("status", resp.StatusCode))
			return
		}
		m.logger.Info("email sent", zap.String("to", toEmail), zap.String("subject", subject))
	}()
}

type consoleMailer struct {
	logger *zap.Logger
}

func (m *consoleMailer) Send(toEmail, toName, subject, htmlBody string) {
	m.logger.Info("email (console backend)",
		zap.String("to", fmt.Sprintf("%s <%s>", toName, toEmail)),
		zap.String("subject", subject))
}
