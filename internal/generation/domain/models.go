// Package domain contains the durable queue models for the generation engine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// BatchStatus is the lifecycle of one generation request.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
	BatchStatusCancelled  BatchStatus = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions.
func (s BatchStatus) IsTerminal() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusCancelled:
		return true
	}
	return false
}

// EntryStatus is the lifecycle of one queue entry.
type EntryStatus string

const (
	EntryStatusPending    EntryStatus = "pending"
	EntryStatusProcessing EntryStatus = "processing"
	EntryStatusCompleted  EntryStatus = "completed"
	EntryStatusFailed     EntryStatus = "failed"
)

// UniquenessEntry records one already-generated item so later prompts can
// forbid topical repeats.
type UniquenessEntry struct {
	Title string `json:"title"`
	Hook  string `json:"hook"`
	Topic string `json:"topic"`
}

// GenerationBatch represents one generation request spanning many items.
// Counters are mutated only by the worker owning the corresponding claim.
type GenerationBatch struct {
	ID                snowflake.ID                          `gorm:"primaryKey" json:"id"`
	Reference         string                                `gorm:"type:text;not null;uniqueIndex:ux_generation_batches_ref" json:"reference"`
	OrgID             snowflake.ID                          `gorm:"not null;index" json:"org_id"`
	UserID            snowflake.ID                          `gorm:"not null" json:"user_id"`
	ModelID           string                                `gorm:"type:text;not null" json:"model_id"`
	Status            BatchStatus                           `gorm:"type:text;not null;default:'pending';index" json:"status"`
	TotalItems        int                                   `gorm:"not null" json:"total_items"`
	CompletedItems    int                                   `gorm:"not null;default:0" json:"completed_items"`
	FailedItems       int                                   `gorm:"not null;default:0" json:"failed_items"`
	UniquenessLog     datatypes.JSONType[[]UniquenessEntry] `gorm:"type:jsonb" json:"uniqueness_log"`
	SelectedVariables datatypes.JSONType[[]string]          `gorm:"type:jsonb" json:"selected_variables"`
	CompletedAt       *time.Time                            `json:"completed_at,omitempty"`
	CreatedAt         time.Time                             `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time                             `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (GenerationBatch) TableName() string { return "generation_batches" }

// QueueEntry is the unit of work and the locking primitive. At most one
// worker holds a processing entry; LockedAt bounds how long a crashed worker
// can keep it.
type QueueEntry struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	BatchID       snowflake.ID `gorm:"not null;index" json:"batch_id"`
	ContentItemID snowflake.ID `gorm:"not null" json:"content_item_id"`
	OrgID         snowflake.ID `gorm:"not null;index" json:"org_id"`
	Status        EntryStatus  `gorm:"type:text;not null;default:'pending';index" json:"status"`
	Priority      int          `gorm:"not null;default:0" json:"priority"`
	AttemptCount  int          `gorm:"not null;default:0" json:"attempt_count"`
	MaxAttempts   int          `gorm:"not null;default:3" json:"max_attempts"`
	LockedAt      *time.Time   `json:"locked_at,omitempty"`
	LockToken     string       `gorm:"type:text" json:"-"`
	ErrorMessage  string       `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (QueueEntry) TableName() string { return "generation_queue_entries" }
