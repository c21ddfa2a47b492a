package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/TP-Master1-GL/terra-notification-service/internal/models"
)

// Migrate creates the notifications table if it does not exist.
// The subsystem owns a single append-only table, so auto-migration of
// the model is the whole schema.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(&models.Notification{}); err != nil {
		return fmt.Errorf("failed to migrate notifications table: %w", err)
	}
	if logger != nil {
		logger.Info("Database schema synchronized")
	}
	return nil
}
