package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/TP-Master1-GL/terra-notification-service/internal/mailer"
	"github.com/TP-Master1-GL/terra-notification-service/internal/models"
	"github.com/TP-Master1-GL/terra-notification-service/internal/notification"
)

// UserRegisteredHandler sends the welcome email and records the audit
// row for a freshly registered user.
type UserRegisteredHandler struct {
	mail   mailer.Sender
	store  notification.Recorder
	logger *zap.Logger
}

func NewUserRegisteredHandler(mail mailer.Sender, store notification.Recorder, logger *zap.Logger) *UserRegisteredHandler {
	return &UserRegisteredHandler{mail: mail, store: store, logger: logger}
}

func (h *UserRegisteredHandler) Handle(ctx context.Context, payload *models.Payload) error {
	displayName := payload.DisplayName()
	subject := "Welcome to terrabia"
	message := fmt.Sprintf("Hi %s, your account has been created successfully!", displayName)

	// Email is best-effort: a transport failure must not block the
	// audit record or reject the message.
	if payload.Email != "" {
		if err := h.mail.Send(payload.Email, subject, message); err != nil {
			h.logger.Warn("Welcome email failed",
				zap.String("email", payload.Email),
				zap.Error(err),
			)
		}
	}

	_, err := h.store.Save(ctx, models.EventUserRegistered, payload.Email, message, payload.ID, displayName, payload.Role)
	return err
}
