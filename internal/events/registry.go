package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/TP-Master1-GL/terra-notification-service/internal/mailer"
	"github.com/TP-Master1-GL/terra-notification-service/internal/models"
	"github.com/TP-Master1-GL/terra-notification-service/internal/notification"
)

// Handler processes one normalized event payload. Email failures are
// the handler's own business (logged, swallowed); a returned error means
// the audit record was not written and the message must be dead-lettered.
type Handler interface {
	Handle(ctx context.Context, payload *models.Payload) error
}

// Registry maps an event type to its handler. Handlers are registered
// during startup; lookups afterwards are read-only, so no locking.
type Registry struct {
	handlers map[models.EventType]Handler
	logger   *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[models.EventType]Handler),
		logger:   logger,
	}
}

// NewDefaultRegistry wires the canonical user event handlers
func NewDefaultRegistry(mail mailer.Sender, store notification.Recorder, logger *zap.Logger) *Registry {
	registry := NewRegistry(logger)
	registry.Register(models.EventUserRegistered, NewUserRegisteredHandler(mail, store, logger))
	registry.Register(models.EventUserUpdated, NewUserUpdatedHandler(mail, store, logger))
	return registry
}

func (r *Registry) Register(eventType models.EventType, handler Handler) {
	r.handlers[eventType] = handler
	r.logger.Debug("Event handler registered", zap.String("event_type", string(eventType)))
}

func (r *Registry) Lookup(eventType models.EventType) (Handler, bool) {
	handler, ok := r.handlers[eventType]
	return handler, ok
}
