package mailer

import (
	"fmt"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/TP-Master1-GL/terra-notification-service/internal/config"
)

const (
	smtpHost = "smtp.gmail.com"
	smtpPort = 587
)

// DeliveryError signals that the SMTP transport rejected the message.
// Callers decide whether that is fatal; the event handlers treat it as
// best-effort and only log it.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("mailer: delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Sender is the capability the event handlers depend on
type Sender interface {
	Send(to, subject, body string) error
}

// Mailer sends transactional email over the Gmail SMTP transport
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

func New(cfg *config.EmailConfig, logger *zap.Logger) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(smtpHost, smtpPort, cfg.User, cfg.Pass),
		from:   cfg.User,
		logger: logger,
	}
}

// Send dispatches a plain-text email. Returns a *DeliveryError on
// transport rejection.
func (m *Mailer) Send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return &DeliveryError{Err: err}
	}

	m.logger.Info("Email sent",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}
