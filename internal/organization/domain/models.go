// Package domain contains persistence models for the org service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Organization represents a tenant.
type Organization struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name           string            `gorm:"type:text;not null" json:"name"`
	Slug           string            `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	DefaultModelID string            `gorm:"type:text;column:default_model_id" json:"default_model_id"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// BrandProfile stores the brand identity fed into generation prompts.
// Variables holds named brand facts ("mission", "audience", "offer", ...);
// ContentThemes is the rotation of declared topics for topic hints.
type BrandProfile struct {
	ID            snowflake.ID                          `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID                          `gorm:"not null;uniqueIndex:ux_brand_profiles_org" json:"org_id"`
	BrandName     string                                `gorm:"type:text;not null" json:"brand_name"`
	Tone          string                                `gorm:"type:text" json:"tone"`
	Variables     datatypes.JSONType[map[string]string] `gorm:"type:jsonb" json:"variables"`
	ContentThemes datatypes.JSONType[[]string]          `gorm:"type:jsonb" json:"content_themes"`
	CreatedAt     time.Time                             `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time                             `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (BrandProfile) TableName() string { return "brand_profiles" }
