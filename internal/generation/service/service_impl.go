package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	sfclock "github.com/storyforge/storyforge/internal/clock"
	"github.com/storyforge/storyforge/internal/config"
	contentdomain "github.com/storyforge/storyforge/internal/contentitem/domain"
	"github.com/storyforge/storyforge/internal/generation/domain"
	"github.com/storyforge/storyforge/internal/modelcatalog"
	notificationdomain "github.com/storyforge/storyforge/internal/notification/domain"
	"github.com/storyforge/storyforge/internal/observability/metrics"
	"github.com/storyforge/storyforge/internal/orgcontext"
	"github.com/storyforge/storyforge/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// maxUniquenessContext caps the combined uniqueness entries handed to one
// generation call. Batch-local entries come first and are never evicted by
// org history.
const maxUniquenessContext = 12

// recentStatusWindow bounds the completed-item and failure previews on the
// status projection.
const recentStatusWindow = 5

type ServiceParam struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     sfclock.Clock
	Cfg       config.Config
	Repo      domain.Repository
	Items     contentdomain.Repository
	Generator domain.Generator
	Catalog   *modelcatalog.Catalog
	Notifier  notificationdomain.Sink
}

type Service struct {
	log       *zap.Logger
	genID     *snowflake.Node
	clock     sfclock.Clock
	cfg       config.GenerationConfig
	repo      domain.Repository
	items     contentdomain.Repository
	generator domain.Generator
	catalog   *modelcatalog.Catalog
	notifier  notificationdomain.Sink
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		log:       p.Log.Named("generation.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		cfg:       p.Cfg.Generation,
		repo:      p.Repo,
		items:     p.Items,
		generator: p.Generator,
		catalog:   p.Catalog,
		notifier:  p.Notifier,
	}
}

func (s *Service) EnqueueBatch(ctx context.Context, req domain.EnqueueRequest) (*domain.EnqueueResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrgContext
	}
	userID, _ := orgcontext.UserIDFromContext(ctx)

	if len(req.ItemIDs) == 0 {
		return nil, domain.ErrEmptyBatch
	}

	modelID := strings.TrimSpace(req.ModelID)
	if modelID == "" {
		modelID = s.cfg.DefaultModelID
	}
	model, err := s.catalog.Get(modelID)
	if err != nil {
		return nil, domain.ErrModelNotAllowed
	}

	itemIDs := req.ItemIDs
	if !orgcontext.IsPrivileged(ctx) {
		batchCap := s.cfg.PaidBatchCap
		if model.FreeTier {
			batchCap = s.cfg.FreeTierBatchCap
		}
		if batchCap > 0 && len(itemIDs) > batchCap {
			itemIDs = itemIDs[:batchCap]
		}
	}

	// drop IDs that do not resolve to an item of this org; enqueueing them
	// would burn queue attempts on permanent failures
	accepted := make([]snowflake.ID, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		item, err := s.items.GetByID(ctx, orgID, itemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			s.log.Warn("skipping unknown content item",
				zap.Stringer("org_id", orgID),
				zap.Stringer("content_item_id", itemID))
			continue
		}
		accepted = append(accepted, itemID)
	}
	if len(accepted) == 0 {
		return nil, domain.ErrEmptyBatch
	}

	now := s.clock.Now()
	batch := &domain.GenerationBatch{
		ID:                s.genID.Generate(),
		Reference:         ulid.Make().String(),
		OrgID:             orgID,
		UserID:            userID,
		ModelID:           model.ID,
		Status:            domain.BatchStatusPending,
		TotalItems:        len(accepted),
		UniquenessLog:     datatypes.NewJSONType([]domain.UniquenessEntry{}),
		SelectedVariables: datatypes.NewJSONType(req.SelectedVariables),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	entries := make([]*domain.QueueEntry, 0, len(accepted))
	for _, itemID := range accepted {
		entries = append(entries, &domain.QueueEntry{
			ID:            s.genID.Generate(),
			BatchID:       batch.ID,
			ContentItemID: itemID,
			OrgID:         orgID,
			Status:        domain.EntryStatusPending,
			MaxAttempts:   s.cfg.MaxAttempts,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	if err := s.repo.CreateBatchWithEntries(ctx, batch, entries); err != nil {
		s.log.Error("batch setup failed", zap.Stringer("org_id", orgID), zap.Error(err))
		return nil, domain.ErrBatchSetup
	}

	s.log.Info("batch enqueued",
		zap.Stringer("batch_id", batch.ID),
		zap.String("reference", batch.Reference),
		zap.Int("items", len(entries)),
		zap.String("model_id", model.ID))

	return &domain.EnqueueResponse{
		BatchID:       batch.ID,
		Reference:     batch.Reference,
		AcceptedCount: len(entries),
	}, nil
}

// ProcessNextItems recovers stale locks, then claims and executes up to
// limit pending entries in global age order.
func (s *Service) ProcessNextItems(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		return 0, domain.ErrInvalidLimit
	}

	s.reclaimStale(ctx)

	if depth, err := s.repo.CountPendingEntries(ctx); err == nil {
		metrics.Generation().SetQueueDepth(depth)
	}

	processed := 0
	for processed < limit {
		entry, err := s.claimNext(ctx, 0)
		if err != nil {
			return processed, err
		}
		if entry == nil {
			break
		}
		metrics.Generation().IncClaim("sweep")
		s.executeEntry(ctx, entry)
		processed++
	}
	return processed, nil
}

// ProcessOneBatchItem claims and executes one entry of the given batch,
// guaranteeing forward progress for a batch a client is actively polling.
func (s *Service) ProcessOneBatchItem(ctx context.Context, batchID snowflake.ID) (bool, error) {
	batch, err := s.getScopedBatch(ctx, batchID)
	if err != nil {
		return false, err
	}
	if batch.Status.IsTerminal() {
		return false, nil
	}

	s.reclaimStale(ctx)

	entry, err := s.claimNext(ctx, batchID)
	if err != nil {
		return false, err
	}
	if entry == nil {
		// nothing pending; a concurrent worker may hold the last entries
		s.finalizeIfComplete(ctx, batchID)
		return false, nil
	}

	metrics.Generation().IncClaim("targeted")
	s.executeEntry(ctx, entry)
	return true, nil
}

func (s *Service) GetBatchStatus(ctx context.Context, batchID snowflake.ID) (*domain.BatchStatusResponse, error) {
	batch, err := s.getScopedBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	percentage := 100
	if batch.TotalItems > 0 {
		percentage = (batch.CompletedItems + batch.FailedItems) * 100 / batch.TotalItems
	}

	log := batch.UniquenessLog.Data()
	if len(log) > recentStatusWindow {
		log = log[len(log)-recentStatusWindow:]
	}

	failures, err := s.repo.RecentFailureReasons(ctx, batchID, recentStatusWindow)
	if err != nil {
		return nil, err
	}

	return &domain.BatchStatusResponse{
		BatchID:              batch.ID.String(),
		Status:               batch.Status,
		TotalItems:           batch.TotalItems,
		CompletedItems:       batch.CompletedItems,
		FailedItems:          batch.FailedItems,
		Percentage:           percentage,
		RecentCompletedItems: log,
		RecentFailures:       failures,
	}, nil
}

func (s *Service) ListBatches(ctx context.Context, req domain.ListBatchesRequest) (domain.ListBatchesResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListBatchesResponse{}, domain.ErrInvalidOrgContext
	}

	size := req.PageSize
	if size <= 0 {
		size = 20
	}

	rows, err := s.repo.ListBatches(ctx, orgID, req)
	if err != nil {
		return domain.ListBatchesResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(rows, size, func(b *domain.GenerationBatch) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        b.ID.String(),
			CreatedAt: b.CreatedAt.Format(time.RFC3339),
		})
		return token
	})

	if len(rows) > size {
		rows = rows[:size]
	}
	batches := make([]domain.GenerationBatch, 0, len(rows))
	for _, row := range rows {
		batches = append(batches, *row)
	}

	return domain.ListBatchesResponse{
		PageInfo: *pageInfo,
		Batches:  batches,
	}, nil
}

// CancelBatch stops a batch by deleting its pending entries and finalizing
// the batch as cancelled. Entries already processing finish their current
// attempt; their outcomes no longer mutate the batch.
func (s *Service) CancelBatch(ctx context.Context, batchID snowflake.ID) error {
	batch, err := s.getScopedBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if batch.Status.IsTerminal() {
		return domain.ErrBatchTerminal
	}

	removed, err := s.repo.DeletePendingEntries(ctx, batchID)
	if err != nil {
		return err
	}

	finalized, err := s.repo.FinalizeBatch(ctx, batchID, domain.BatchStatusCancelled, s.clock.Now())
	if err != nil {
		return err
	}
	if finalized {
		metrics.Generation().IncBatchFinalized(string(domain.BatchStatusCancelled))
	}

	s.log.Info("batch cancelled",
		zap.Stringer("batch_id", batchID),
		zap.Int64("removed_pending", removed))
	return nil
}

// getScopedBatch loads a batch and enforces org ownership. A batch of a
// different org reads as not found so batch IDs cannot be probed.
func (s *Service) getScopedBatch(ctx context.Context, batchID snowflake.ID) (*domain.GenerationBatch, error) {
	if batchID == 0 {
		return nil, domain.ErrInvalidBatchID
	}
	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if !orgcontext.IsPrivileged(ctx) {
		orgID, ok := orgcontext.OrgIDFromContext(ctx)
		if !ok || orgID != batch.OrgID {
			return nil, domain.ErrBatchNotFound
		}
	}
	return batch, nil
}

func (s *Service) reclaimStale(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.cfg.LockTimeout)
	reclaimed, err := s.repo.ReclaimStale(ctx, cutoff)
	if err != nil {
		s.log.Error("stale lock sweep failed", zap.Error(err))
		return
	}
	if reclaimed > 0 {
		metrics.Generation().AddStaleReclaims(reclaimed)
		s.log.Warn("reclaimed stale queue locks", zap.Int("count", reclaimed))
	}
}

// claimNext races the conditional claim over the current candidate list.
// Losing a candidate to a concurrent worker is normal; the loop just moves
// to the next one.
func (s *Service) claimNext(ctx context.Context, batchID snowflake.ID) (*domain.QueueEntry, error) {
	candidates, err := s.repo.PendingCandidates(ctx, batchID, s.cfg.SweepBatchSize)
	if err != nil {
		return nil, err
	}
	for _, candidateID := range candidates {
		entry, err := s.repo.ClaimPending(ctx, candidateID, uuid.NewString(), s.clock.Now())
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return entry, nil
		}
	}
	return nil, nil
}

// executeEntry runs one claimed entry end to end and settles its outcome.
// Failures here never propagate: the entry's own bookkeeping is the record.
func (s *Service) executeEntry(ctx context.Context, entry *domain.QueueEntry) {
	batch, err := s.repo.GetBatch(ctx, entry.BatchID)
	if err != nil {
		s.log.Error("claimed entry has no batch",
			zap.Stringer("entry_id", entry.ID),
			zap.Error(err))
		s.settleFailure(ctx, entry, "batch_missing", false)
		return
	}
	if batch.Status.IsTerminal() {
		// cancelled after the claim; drop the attempt quietly
		if err := s.repo.MarkEntryFailed(ctx, entry, "batch_"+string(batch.Status), s.clock.Now()); err != nil && err != domain.ErrLockLost {
			s.log.Error("entry settle failed", zap.Stringer("entry_id", entry.ID), zap.Error(err))
		}
		return
	}

	uniqueness, err := s.buildUniquenessContext(ctx, batch)
	if err != nil {
		s.log.Warn("uniqueness context unavailable",
			zap.Stringer("batch_id", batch.ID),
			zap.Error(err))
	}

	result, err := s.generator.GenerateSingleItem(ctx, domain.GenerateRequest{
		OrgID:             entry.OrgID,
		UserID:            batch.UserID,
		ContentItemID:     entry.ContentItemID,
		ModelOverride:     batch.ModelID,
		Uniqueness:        uniqueness,
		SelectedVariables: batch.SelectedVariables.Data(),
		RejectionFeedback: entry.ErrorMessage,
	})

	if err != nil {
		s.settleFailure(ctx, entry, err.Error(), domain.IsRetryable(err))
		s.finalizeIfComplete(ctx, batch.ID)
		return
	}

	if err := s.repo.MarkEntryCompleted(ctx, entry, result.Entry, s.clock.Now()); err != nil {
		if err == domain.ErrLockLost {
			// the item committed but a sweeper reclaimed the entry; the
			// rerun will fail content validation against the scripted item
			s.log.Warn("lock lost after successful generation",
				zap.Stringer("entry_id", entry.ID))
			return
		}
		s.log.Error("completion bookkeeping failed",
			zap.Stringer("entry_id", entry.ID),
			zap.Error(err))
		return
	}

	metrics.Generation().IncItemOutcome(metrics.OutcomeCompleted)
	s.log.Info("queue entry completed",
		zap.Stringer("entry_id", entry.ID),
		zap.Stringer("batch_id", batch.ID),
		zap.String("title", result.Entry.Title),
		zap.Float64("credits", result.Credits))

	s.finalizeIfComplete(ctx, batch.ID)
}

// settleFailure requeues the entry when another attempt remains and the
// failure is retryable, and fails it permanently otherwise.
func (s *Service) settleFailure(ctx context.Context, entry *domain.QueueEntry, reason string, retryable bool) {
	now := s.clock.Now()

	if retryable && entry.AttemptCount < entry.MaxAttempts {
		if err := s.repo.RequeueEntry(ctx, entry, reason, now); err != nil {
			if err != domain.ErrLockLost {
				s.log.Error("requeue failed", zap.Stringer("entry_id", entry.ID), zap.Error(err))
			}
			return
		}
		metrics.Generation().IncItemOutcome(metrics.OutcomeRequeued)
		s.log.Warn("queue entry requeued",
			zap.Stringer("entry_id", entry.ID),
			zap.Int("attempt", entry.AttemptCount),
			zap.String("reason", reason))
		return
	}

	if err := s.repo.MarkEntryFailed(ctx, entry, reason, now); err != nil {
		if err != domain.ErrLockLost {
			s.log.Error("entry settle failed", zap.Stringer("entry_id", entry.ID), zap.Error(err))
		}
		return
	}

	outcome := metrics.OutcomeFailed
	if !retryable {
		outcome = metrics.OutcomeNonRetryable
	}
	metrics.Generation().IncItemOutcome(outcome)
	s.log.Warn("queue entry failed permanently",
		zap.Stringer("entry_id", entry.ID),
		zap.Int("attempt", entry.AttemptCount),
		zap.Bool("retryable", retryable),
		zap.String("reason", reason))
}

// buildUniquenessContext merges the batch's own log with the org's recently
// generated items, deduplicated by title. Batch entries keep priority.
func (s *Service) buildUniquenessContext(ctx context.Context, batch *domain.GenerationBatch) ([]domain.UniquenessEntry, error) {
	merged := make([]domain.UniquenessEntry, 0, maxUniquenessContext)
	seen := make(map[string]struct{}, maxUniquenessContext)

	appendEntry := func(entry domain.UniquenessEntry) {
		key := strings.ToLower(strings.TrimSpace(entry.Title))
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		merged = append(merged, entry)
	}

	for _, entry := range batch.UniquenessLog.Data() {
		appendEntry(entry)
	}

	recent, err := s.items.ListRecentGenerated(ctx, batch.OrgID, s.cfg.RecentContextWindow)
	if err != nil {
		return merged, err
	}
	for _, item := range recent {
		appendEntry(domain.UniquenessEntry{Title: item.Title, Hook: item.Hook, Topic: item.Topic})
	}

	if len(merged) > maxUniquenessContext {
		merged = merged[:maxUniquenessContext]
	}
	return merged, nil
}

// finalizeIfComplete transitions the batch to its terminal status once no
// active entries remain. The guarded update makes redundant calls harmless.
func (s *Service) finalizeIfComplete(ctx context.Context, batchID snowflake.ID) {
	active, err := s.repo.CountActiveEntries(ctx, batchID)
	if err != nil || active > 0 {
		return
	}

	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return
	}
	if batch.Status.IsTerminal() {
		return
	}

	status := domain.BatchStatusCompleted
	if batch.CompletedItems == 0 && batch.FailedItems > 0 {
		status = domain.BatchStatusFailed
	}

	finalized, err := s.repo.FinalizeBatch(ctx, batchID, status, s.clock.Now())
	if err != nil {
		s.log.Error("batch finalize failed", zap.Stringer("batch_id", batchID), zap.Error(err))
		return
	}
	if !finalized {
		return
	}

	metrics.Generation().IncBatchFinalized(string(status))
	s.log.Info("batch finalized",
		zap.Stringer("batch_id", batchID),
		zap.String("status", string(status)),
		zap.Int("completed", batch.CompletedItems),
		zap.Int("failed", batch.FailedItems))

	if err := s.notifier.Notify(ctx, notificationdomain.Message{
		Type:   notificationdomain.TypeGenerationCompleted,
		OrgID:  batch.OrgID,
		UserID: batch.UserID,
		Title:  "Content generation finished",
		Body: fmt.Sprintf("%d of %d items generated (%d failed)",
			batch.CompletedItems, batch.TotalItems, batch.FailedItems),
		Link: "/generation/batches/" + batch.Reference,
		Metadata: map[string]any{
			"batchId":   batch.ID.String(),
			"reference": batch.Reference,
			"status":    string(status),
		},
	}); err != nil {
		s.log.Warn("completion notification failed",
			zap.Stringer("batch_id", batchID),
			zap.Error(err))
	}
}
