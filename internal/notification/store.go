package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/TP-Master1-GL/terra-notification-service/internal/models"
)

// PersistenceError signals that the audit record could not be written.
// The dispatcher dead-letters the message that produced it.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("notification: save failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Recorder is the capability the event handlers depend on
type Recorder interface {
	Save(ctx context.Context, eventType models.EventType, userEmail, message string, userID *int64, username, role string) (*models.Notification, error)
}

// Store persists one immutable audit record per processed event.
// Insert-only: no update or delete operation exists on purpose.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Save creates the audit record and returns it. Empty username, role
// and message become NULL columns.
func (s *Store) Save(ctx context.Context, eventType models.EventType, userEmail, message string, userID *int64, username, role string) (*models.Notification, error) {
	record := &models.Notification{
		Type:      string(eventType),
		UserID:    userID,
		UserEmail: userEmail,
		Username:  nullable(username),
		Role:      nullable(role),
		Message:   nullable(message),
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, &PersistenceError{Err: err}
	}

	s.logger.Info("Notification saved",
		zap.Uint("id", record.ID),
		zap.String("type", record.Type),
		zap.String("user_email", record.UserEmail),
	)
	return record, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
