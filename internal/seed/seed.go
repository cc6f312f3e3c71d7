package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	contentdomain "github.com/storyforge/storyforge/internal/contentitem/domain"
	creditdomain "github.com/storyforge/storyforge/internal/credit/domain"
	organizationdomain "github.com/storyforge/storyforge/internal/organization/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	demoOrgName = "Demo Studio"
	demoOrgSlug = "demo-studio"

	demoStartingCredits = 250
)

// EnsureDemoWorkspace seeds a demo organization with a brand profile, a
// starter credit balance and a handful of draft content items. Safe to run
// on every startup; existing rows are left untouched.
func EnsureDemoWorkspace(conn *gorm.DB, node *snowflake.Node) error {
	if conn == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, created, err := ensureDemoOrg(tx, node)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		if err := ensureBrandProfile(tx, node, org.ID); err != nil {
			return err
		}
		if err := ensureCreditBalance(tx, org.ID); err != nil {
			return err
		}
		return ensureDraftItems(tx, node, org.ID)
	})
}

func ensureDemoOrg(tx *gorm.DB, node *snowflake.Node) (*organizationdomain.Organization, bool, error) {
	var existing organizationdomain.Organization
	err := tx.Where("slug = ?", demoOrgSlug).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	org := organizationdomain.Organization{
		ID:   node.Generate(),
		Name: demoOrgName,
		Slug: demoOrgSlug,
	}
	if err := tx.Create(&org).Error; err != nil {
		return nil, false, err
	}
	return &org, true, nil
}

func ensureBrandProfile(tx *gorm.DB, node *snowflake.Node, orgID snowflake.ID) error {
	profile := organizationdomain.BrandProfile{
		ID:        node.Generate(),
		OrgID:     orgID,
		BrandName: demoOrgName,
		Tone:      "warm, practical, no hype",
		Variables: datatypes.NewJSONType(map[string]string{
			"mission":  "help small studios publish consistently",
			"audience": "solo creators and two-person teams",
			"offer":    "a weekly content planning service",
		}),
		ContentThemes: datatypes.NewJSONType([]string{
			"behind the scenes",
			"client wins",
			"planning rituals",
		}),
	}
	return tx.Create(&profile).Error
}

func ensureCreditBalance(tx *gorm.DB, orgID snowflake.ID) error {
	balance := creditdomain.CreditBalance{
		OrgID:   orgID,
		Balance: demoStartingCredits,
	}
	return tx.Create(&balance).Error
}

func ensureDraftItems(tx *gorm.DB, node *snowflake.Node, orgID snowflake.ID) error {
	drafts := []contentdomain.ContentItem{
		{
			Format:          "reel",
			FunnelStage:     "awareness",
			TargetPlatforms: datatypes.NewJSONType([]string{"instagram", "tiktok"}),
		},
		{
			Format:          "static",
			FunnelStage:     "consideration",
			TargetPlatforms: datatypes.NewJSONType([]string{"linkedin"}),
		},
		{
			Format:          "longform",
			FunnelStage:     "conversion",
			TargetPlatforms: datatypes.NewJSONType([]string{"youtube"}),
		},
	}
	for i := range drafts {
		drafts[i].ID = node.Generate()
		drafts[i].OrgID = orgID
		drafts[i].Status = contentdomain.StatusDraft
	}
	return tx.Create(&drafts).Error
}
