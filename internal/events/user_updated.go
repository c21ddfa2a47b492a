package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/TP-Master1-GL/terra-notification-service/internal/mailer"
	"github.com/TP-Master1-GL/terra-notification-service/internal/models"
	"github.com/TP-Master1-GL/terra-notification-service/internal/notification"
)

// UserUpdatedHandler notifies a user that their profile changed
type UserUpdatedHandler struct {
	mail   mailer.Sender
	store  notification.Recorder
	logger *zap.Logger
}

func NewUserUpdatedHandler(mail mailer.Sender, store notification.Recorder, logger *zap.Logger) *UserUpdatedHandler {
	return &UserUpdatedHandler{mail: mail, store: store, logger: logger}
}

func (h *UserUpdatedHandler) Handle(ctx context.Context, payload *models.Payload) error {
	subject := "Profile updated"
	message := fmt.Sprintf("Hi %s, your profile was updated.", payload.DisplayName())

	if payload.Email != "" {
		if err := h.mail.Send(payload.Email, subject, message); err != nil {
			h.logger.Warn("Profile update email failed",
				zap.String("email", payload.Email),
				zap.Error(err),
			)
		}
	}

	_, err := h.store.Save(ctx, models.EventUserUpdated, payload.Email, message, payload.ID, payload.Username, payload.Role)
	return err
}
