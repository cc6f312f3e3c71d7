// Package domain contains the append-only usage ledger row written once per
// successful generation.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// UsageRecord stores the token accounting for one completed generation.
// Rows are never mutated after insert.
type UsageRecord struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID `gorm:"not null;index" json:"org_id"`
	UserID         snowflake.ID `gorm:"not null" json:"user_id"`
	Feature        string       `gorm:"type:text;not null" json:"feature"`
	ModelID        string       `gorm:"type:text;not null" json:"model_id"`
	Provider       string       `gorm:"type:text;not null" json:"provider"`
	FreeTier       bool         `gorm:"not null" json:"free_tier"`
	InputTokens    int          `gorm:"not null" json:"input_tokens"`
	OutputTokens   int          `gorm:"not null" json:"output_tokens"`
	CreditsCharged float64      `gorm:"not null" json:"credits_charged"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }

// FeatureContentGeneration tags records produced by the generation engine.
const FeatureContentGeneration = "content_generation"

type Repository interface {
	Insert(ctx context.Context, record *UsageRecord) error
	ListByOrg(ctx context.Context, orgID snowflake.ID, limit int) ([]*UsageRecord, error)
}
