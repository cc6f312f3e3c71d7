// Package domain contains the notification rows emitted on batch completion.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const TypeGenerationCompleted = "generation_completed"

// Notification is a durable in-app notification.
type Notification struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID      `gorm:"not null;index" json:"org_id"`
	UserID    snowflake.ID      `gorm:"not null;index" json:"user_id"`
	Type      string            `gorm:"type:text;not null" json:"type"`
	Title     string            `gorm:"type:text;not null" json:"title"`
	Body      string            `gorm:"type:text" json:"body"`
	Link      string            `gorm:"type:text" json:"link"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`
	ReadAt    *time.Time        `json:"read_at,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Notification) TableName() string { return "notifications" }

// Message is what collaborators hand to the sink.
type Message struct {
	Type     string
	UserID   snowflake.ID
	OrgID    snowflake.ID
	Title    string
	Body     string
	Link     string
	Metadata map[string]any
}

// Sink delivers a notification. Delivery is best effort for external
// channels; the row insert is the durable part.
type Sink interface {
	Notify(ctx context.Context, msg Message) error
}
