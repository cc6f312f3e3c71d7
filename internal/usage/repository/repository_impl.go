package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/storyforge/storyforge/internal/usage/domain"
	"github.com/storyforge/storyforge/pkg/db/option"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, record *domain.UsageRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) ListByOrg(ctx context.Context, orgID snowflake.ID, limit int) ([]*domain.UsageRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Where("org_id = ?", orgID)
	query = option.WithOrder("created_at DESC").Apply(query)
	query = option.WithLimit(limit).Apply(query)

	var records []*domain.UsageRecord
	err := query.Find(&records).Error
	return records, err
}
