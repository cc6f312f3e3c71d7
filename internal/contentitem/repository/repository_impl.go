package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/storyforge/storyforge/internal/contentitem/domain"
	"github.com/storyforge/storyforge/pkg/db/option"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, item *domain.ContentItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) GetByID(ctx context.Context, orgID, id snowflake.ID) (*domain.ContentItem, error) {
	var item domain.ContentItem
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repository) ApplyGeneratedContent(ctx context.Context, orgID, id snowflake.ID, content domain.GeneratedContent, at time.Time) error {
	if strings.TrimSpace(content.Topic) == "" {
		return domain.ErrInvalidContent
	}

	updates := map[string]any{
		"topic":             content.Topic,
		"hook":              content.Hook,
		"body":              content.Body,
		"cta":               content.CTA,
		"caption":           content.Caption,
		"hashtags":          datatypes.NewJSONType(content.Hashtags),
		"slides":            datatypes.NewJSONType(content.Slides),
		"platform_variants": datatypes.NewJSONType(content.PlatformVariants),
		"status":            domain.StatusScripted,
		"generated_at":      at,
		"updated_at":        at,
	}

	err := r.db.WithContext(ctx).
		Model(&domain.ContentItem{}).
		Where("org_id = ? AND id = ?", orgID, id).
		Updates(updates).Error
	if err != nil {
		return err
	}

	// An update swallowed by a row policy reports success with zero effect;
	// verify the write actually landed before treating it as committed.
	verified, err := r.GetByID(ctx, orgID, id)
	if err != nil {
		return err
	}
	if verified == nil || verified.Topic != content.Topic || verified.Status != domain.StatusScripted {
		return domain.ErrWriteRejected
	}
	return nil
}

func (r *repository) ListRecentGenerated(ctx context.Context, orgID snowflake.ID, limit int) ([]domain.RecentItem, error) {
	if limit <= 0 {
		limit = 10
	}

	query := r.db.WithContext(ctx).
		Where("org_id = ? AND status = ?", orgID, domain.StatusScripted)
	query = option.WithOrder("generated_at DESC").Apply(query)
	query = option.WithLimit(limit).Apply(query)

	var rows []domain.ContentItem
	err := query.Find(&rows).Error
	if err != nil {
		return nil, err
	}

	items := make([]domain.RecentItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, domain.RecentItem{
			Title: row.Topic,
			Hook:  row.Hook,
			Topic: row.Topic,
		})
	}
	return items, nil
}
