package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrganization(ctx context.Context, org *Organization) error
	GetOrganization(ctx context.Context, id snowflake.ID) (*Organization, error)
	GetBrandProfile(ctx context.Context, orgID snowflake.ID) (*BrandProfile, error)
	SaveBrandProfile(ctx context.Context, profile *BrandProfile) error
}
