// Package domain contains the content-item placeholder mutated by the
// generation engine.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ContentItemStatus tracks the planning lifecycle of one placeholder.
type ContentItemStatus string

const (
	StatusDraft    ContentItemStatus = "draft"
	StatusScripted ContentItemStatus = "scripted"
)

// Format categories drive format-specific validation minimums.
const (
	FormatCarousel = "carousel"
	FormatStatic   = "static"
	FormatReel     = "reel"
	FormatLongform = "longform"
)

// PlatformVariant is the per-platform caption derived from the primary copy.
type PlatformVariant struct {
	Caption  string   `json:"caption"`
	Hashtags []string `json:"hashtags"`
}

// ContentItem is a planned placeholder. Planning fields are written by the
// calling product; generated fields are written only by the generation engine
// after validation.
type ContentItem struct {
	ID    snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID snowflake.ID `gorm:"not null;index" json:"org_id"`

	// planning fields
	Format          string                       `gorm:"type:text;not null" json:"format"`
	FunnelStage     string                       `gorm:"type:text" json:"funnel_stage"`
	StoryStage      string                       `gorm:"type:text" json:"story_stage"`
	TargetPlatforms datatypes.JSONType[[]string] `gorm:"type:jsonb" json:"target_platforms"`

	// generated fields
	Topic            string                                         `gorm:"type:text" json:"topic"`
	Hook             string                                         `gorm:"type:text" json:"hook"`
	Body             string                                         `gorm:"type:text" json:"body"`
	CTA              string                                         `gorm:"type:text;column:cta" json:"cta"`
	Caption          string                                         `gorm:"type:text" json:"caption"`
	Hashtags         datatypes.JSONType[[]string]                   `gorm:"type:jsonb" json:"hashtags"`
	PlatformVariants datatypes.JSONType[map[string]PlatformVariant] `gorm:"type:jsonb" json:"platform_variants"`
	Slides           datatypes.JSONType[[]string]                   `gorm:"type:jsonb" json:"slides"`

	Status      ContentItemStatus `gorm:"type:text;not null;default:'draft'" json:"status"`
	GeneratedAt *time.Time        `json:"generated_at,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (ContentItem) TableName() string { return "content_items" }

// GeneratedContent is the validated output applied to an item.
type GeneratedContent struct {
	Topic            string
	Hook             string
	Body             string
	CTA              string
	Caption          string
	Hashtags         []string
	Slides           []string
	PlatformVariants map[string]PlatformVariant
}

// RecentItem is a slim projection used to build uniqueness context.
type RecentItem struct {
	Title string
	Hook  string
	Topic string
}

type Repository interface {
	GetByID(ctx context.Context, orgID, id snowflake.ID) (*ContentItem, error)
	// ApplyGeneratedContent persists the generated fields and flips the
	// status to scripted, then re-reads the row to confirm the write landed.
	ApplyGeneratedContent(ctx context.Context, orgID, id snowflake.ID, content GeneratedContent, at time.Time) error
	ListRecentGenerated(ctx context.Context, orgID snowflake.ID, limit int) ([]RecentItem, error)
	Create(ctx context.Context, item *ContentItem) error
}

var (
	ErrItemNotFound   = errors.New("content_item_not_found")
	ErrWriteRejected  = errors.New("content_write_rejected")
	ErrInvalidContent = errors.New("invalid_generated_content")
)
