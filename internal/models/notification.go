package models

import (
	"time"
)

// Notification is the immutable audit record written once per handled
// event. Rows are insert-only: this service never updates or deletes
// them, so there is no gorm UpdatedAt column.
type Notification struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Type      string    `gorm:"not null" json:"type"`
	UserID    *int64    `json:"userId"`
	UserEmail string    `gorm:"not null" json:"userEmail"`
	Username  *string   `json:"username"`
	Role      *string   `json:"role"`
	Message   *string   `gorm:"type:text" json:"message"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
}

func (Notification) TableName() string {
	return "notifications"
}
