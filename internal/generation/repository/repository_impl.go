package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/storyforge/storyforge/internal/generation/domain"
	"github.com/storyforge/storyforge/pkg/db/option"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var terminalStatuses = []domain.BatchStatus{
	domain.BatchStatusCompleted,
	domain.BatchStatusFailed,
	domain.BatchStatusCancelled,
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) CreateBatchWithEntries(ctx context.Context, batch *domain.GenerationBatch, entries []*domain.QueueEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(batch).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.Create(entries).Error
	})
}

func (r *repository) GetBatch(ctx context.Context, batchID snowflake.ID) (*domain.GenerationBatch, error) {
	var batch domain.GenerationBatch
	err := r.db.WithContext(ctx).Where("id = ?", batchID).First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, err
	}
	return &batch, nil
}

func (r *repository) ListBatches(ctx context.Context, orgID snowflake.ID, req domain.ListBatchesRequest) ([]*domain.GenerationBatch, error) {
	query := r.db.WithContext(ctx).Where("org_id = ?", orgID)
	query = option.ApplyPagination(req.Pagination).Apply(query)

	var batches []*domain.GenerationBatch
	if err := query.Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// ReclaimStale resets processing entries whose lock predates cutoff. The
// attempt already consumed happens-before the crash, so the counter is left
// as the claim set it.
func (r *repository) ReclaimStale(ctx context.Context, cutoff time.Time) (int, error) {
	result := r.db.WithContext(ctx).Model(&domain.QueueEntry{}).
		Where("status = ? AND locked_at < ?", domain.EntryStatusProcessing, cutoff).
		Updates(map[string]any{
			"status":     domain.EntryStatusPending,
			"locked_at":  nil,
			"lock_token": "",
			"updated_at": time.Now().UTC(),
		})
	return int(result.RowsAffected), result.Error
}

func (r *repository) PendingCandidates(ctx context.Context, batchID snowflake.ID, limit int) ([]snowflake.ID, error) {
	if limit <= 0 {
		limit = 1
	}

	query := r.db.WithContext(ctx).Model(&domain.QueueEntry{}).
		Where("status = ?", domain.EntryStatusPending)
	if batchID != 0 {
		query = query.Where("batch_id = ?", batchID)
	}

	var ids []snowflake.ID
	err := query.Order("priority DESC, created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// ClaimPending is the pending to processing compare-and-set. The WHERE clause
// on the current status means exactly one concurrent caller sees a row
// affected; everyone else gets nil back and moves to the next candidate.
func (r *repository) ClaimPending(ctx context.Context, entryID snowflake.ID, lockToken string, now time.Time) (*domain.QueueEntry, error) {
	result := r.db.WithContext(ctx).Model(&domain.QueueEntry{}).
		Where("id = ? AND status = ?", entryID, domain.EntryStatusPending).
		Updates(map[string]any{
			"status":        domain.EntryStatusProcessing,
			"locked_at":     now,
			"lock_token":    lockToken,
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"updated_at":    now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	var entry domain.QueueEntry
	if err := r.db.WithContext(ctx).Where("id = ?", entryID).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) MarkEntryCompleted(ctx context.Context, entry *domain.QueueEntry, logEntry domain.UniquenessEntry, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.releaseEntry(tx, entry, domain.EntryStatusCompleted, "", now); err != nil {
			return err
		}

		var batch domain.GenerationBatch
		if err := tx.Where("id = ?", entry.BatchID).First(&batch).Error; err != nil {
			return err
		}
		log := append(batch.UniquenessLog.Data(), logEntry)

		// a batch cancelled mid-flight keeps its final counters
		return tx.Model(&domain.GenerationBatch{}).
			Where("id = ? AND status NOT IN ?", entry.BatchID, terminalStatuses).
			Updates(map[string]any{
				"completed_items": gorm.Expr("completed_items + 1"),
				"status":          domain.BatchStatusProcessing,
				"uniqueness_log":  datatypes.NewJSONType(log),
				"updated_at":      now,
			}).Error
	})
}

func (r *repository) MarkEntryFailed(ctx context.Context, entry *domain.QueueEntry, reason string, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.releaseEntry(tx, entry, domain.EntryStatusFailed, reason, now); err != nil {
			return err
		}

		return tx.Model(&domain.GenerationBatch{}).
			Where("id = ? AND status NOT IN ?", entry.BatchID, terminalStatuses).
			Updates(map[string]any{
				"failed_items": gorm.Expr("failed_items + 1"),
				"status":       domain.BatchStatusProcessing,
				"updated_at":   now,
			}).Error
	})
}

func (r *repository) RequeueEntry(ctx context.Context, entry *domain.QueueEntry, reason string, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.releaseEntry(tx, entry, domain.EntryStatusPending, reason, now)
	})
}

// releaseEntry transitions a processing entry owned by entry.LockToken. A
// zero row count means a sweeper reclaimed the lock while we worked; the
// caller must not double-account the outcome.
func (r *repository) releaseEntry(tx *gorm.DB, entry *domain.QueueEntry, status domain.EntryStatus, reason string, now time.Time) error {
	result := tx.Model(&domain.QueueEntry{}).
		Where("id = ? AND status = ? AND lock_token = ?",
			entry.ID, domain.EntryStatusProcessing, entry.LockToken).
		Updates(map[string]any{
			"status":        status,
			"locked_at":     nil,
			"lock_token":    "",
			"error_message": reason,
			"updated_at":    now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrLockLost
	}
	return nil
}

func (r *repository) CountActiveEntries(ctx context.Context, batchID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.QueueEntry{}).
		Where("batch_id = ? AND status IN ?", batchID,
			[]domain.EntryStatus{domain.EntryStatusPending, domain.EntryStatusProcessing}).
		Count(&count).Error
	return count, err
}

func (r *repository) CountPendingEntries(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.QueueEntry{}).
		Where("status = ?", domain.EntryStatusPending).
		Count(&count).Error
	return count, err
}

func (r *repository) RecentFailureReasons(ctx context.Context, batchID snowflake.ID, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}
	var reasons []string
	err := r.db.WithContext(ctx).Model(&domain.QueueEntry{}).
		Where("batch_id = ? AND status = ? AND error_message <> ''", batchID, domain.EntryStatusFailed).
		Order("updated_at DESC").
		Limit(limit).
		Pluck("error_message", &reasons).Error
	return reasons, err
}

func (r *repository) DeletePendingEntries(ctx context.Context, batchID snowflake.ID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("batch_id = ? AND status = ?", batchID, domain.EntryStatusPending).
		Delete(&domain.QueueEntry{})
	return result.RowsAffected, result.Error
}

func (r *repository) FinalizeBatch(ctx context.Context, batchID snowflake.ID, status domain.BatchStatus, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.GenerationBatch{}).
		Where("id = ? AND status NOT IN ?", batchID, terminalStatuses).
		Updates(map[string]any{
			"status":       status,
			"completed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
