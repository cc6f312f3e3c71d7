package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	contentdomain "github.com/storyforge/storyforge/internal/contentitem/domain"
	"github.com/storyforge/storyforge/pkg/db/pagination"
)

// EnqueueRequest asks for a batch of placeholders to be generated.
type EnqueueRequest struct {
	ItemIDs           []snowflake.ID
	ModelID           string
	SelectedVariables []string
}

// EnqueueResponse reports the created batch and how many items were admitted
// (possibly fewer than requested when the batch cap clamps the list).
type EnqueueResponse struct {
	BatchID       snowflake.ID `json:"batch_id"`
	Reference     string       `json:"reference"`
	AcceptedCount int          `json:"accepted_count"`
}

// BatchStatus is the read-only progress projection for polling clients.
type BatchStatusResponse struct {
	BatchID              string            `json:"batch_id"`
	Status               BatchStatus       `json:"status"`
	TotalItems           int               `json:"total_items"`
	CompletedItems       int               `json:"completed_items"`
	FailedItems          int               `json:"failed_items"`
	Percentage           int               `json:"percentage"`
	RecentCompletedItems []UniquenessEntry `json:"recent_completed_items"`
	RecentFailures       []string          `json:"recent_failures"`
}

// ListBatchesRequest filters the batch listing for dashboards.
type ListBatchesRequest struct {
	pagination.Pagination
}

type ListBatchesResponse struct {
	pagination.PageInfo
	Batches []GenerationBatch `json:"batches"`
}

// Service is the queue engine exposed to callers.
type Service interface {
	EnqueueBatch(ctx context.Context, req EnqueueRequest) (*EnqueueResponse, error)
	// ProcessNextItems sweeps up to limit globally oldest pending entries.
	ProcessNextItems(ctx context.Context, limit int) (int, error)
	// ProcessOneBatchItem claims and executes the oldest pending entry of one
	// batch, guaranteeing forward progress for an actively polled batch.
	ProcessOneBatchItem(ctx context.Context, batchID snowflake.ID) (bool, error)
	GetBatchStatus(ctx context.Context, batchID snowflake.ID) (*BatchStatusResponse, error)
	ListBatches(ctx context.Context, req ListBatchesRequest) (ListBatchesResponse, error)
	CancelBatch(ctx context.Context, batchID snowflake.ID) error
}

// GenerateRequest is the single-item generation contract.
type GenerateRequest struct {
	OrgID             snowflake.ID
	UserID            snowflake.ID
	ContentItemID     snowflake.ID
	ModelOverride     string
	Uniqueness        []UniquenessEntry
	SelectedVariables []string
	RejectionFeedback string
}

// GenerateResult is a successful single-item generation.
type GenerateResult struct {
	Content      contentdomain.GeneratedContent
	Entry        UniquenessEntry
	ModelID      string
	InputTokens  int
	OutputTokens int
	Credits      float64
}

// Generator produces one validated, persisted, billed content item.
type Generator interface {
	GenerateSingleItem(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

// ItemError classifies a single-item failure for the queue's retry decision.
type ItemError struct {
	Reason    string
	Retryable bool
	Cause     error
}

func (e *ItemError) Error() string {
	if e.Cause != nil {
		return e.Reason + ": " + e.Cause.Error()
	}
	return e.Reason
}

func (e *ItemError) Unwrap() error { return e.Cause }

// NewItemError builds a classified single-item failure.
func NewItemError(reason string, retryable bool, cause error) *ItemError {
	return &ItemError{Reason: reason, Retryable: retryable, Cause: cause}
}

// IsRetryable reports whether err allows another queue attempt. Unclassified
// errors default to retryable so transient storage hiccups are not fatal.
func IsRetryable(err error) bool {
	var ierr *ItemError
	if errors.As(err, &ierr) {
		return ierr.Retryable
	}
	return true
}

// Repository owns the durable queue store. Claim transitions must be atomic
// conditional updates so concurrent drivers can never both own one entry.
type Repository interface {
	CreateBatchWithEntries(ctx context.Context, batch *GenerationBatch, entries []*QueueEntry) error
	GetBatch(ctx context.Context, batchID snowflake.ID) (*GenerationBatch, error)
	ListBatches(ctx context.Context, orgID snowflake.ID, req ListBatchesRequest) ([]*GenerationBatch, error)

	// ReclaimStale resets processing entries whose lock predates cutoff.
	ReclaimStale(ctx context.Context, cutoff time.Time) (int, error)
	// PendingCandidates lists claimable entry IDs ordered by (priority,
	// created_at); batchID zero means global.
	PendingCandidates(ctx context.Context, batchID snowflake.ID, limit int) ([]snowflake.ID, error)
	// ClaimPending performs the pending→processing compare-and-set. It
	// returns the claimed entry, or nil when another worker won the race.
	ClaimPending(ctx context.Context, entryID snowflake.ID, lockToken string, now time.Time) (*QueueEntry, error)

	MarkEntryCompleted(ctx context.Context, entry *QueueEntry, logEntry UniquenessEntry, now time.Time) error
	MarkEntryFailed(ctx context.Context, entry *QueueEntry, reason string, now time.Time) error
	RequeueEntry(ctx context.Context, entry *QueueEntry, reason string, now time.Time) error

	CountActiveEntries(ctx context.Context, batchID snowflake.ID) (int64, error)
	CountPendingEntries(ctx context.Context) (int64, error)
	RecentFailureReasons(ctx context.Context, batchID snowflake.ID, limit int) ([]string, error)
	DeletePendingEntries(ctx context.Context, batchID snowflake.ID) (int64, error)
	// FinalizeBatch transitions a non-terminal batch to status, guarding on
	// the current status so redundant callers cannot double-finalize.
	FinalizeBatch(ctx context.Context, batchID snowflake.ID, status BatchStatus, now time.Time) (bool, error)
}

var (
	ErrEmptyBatch        = errors.New("empty_batch")
	ErrBatchNotFound     = errors.New("batch_not_found")
	ErrBatchSetup        = errors.New("batch_setup_failed")
	ErrBatchTerminal     = errors.New("batch_already_terminal")
	ErrInvalidBatchID    = errors.New("invalid_batch_id")
	ErrLockLost          = errors.New("entry_lock_lost")
	ErrInvalidLimit      = errors.New("invalid_limit")
	ErrModelNotAllowed   = errors.New("model_not_allowed")
	ErrInvalidOrgContext = errors.New("invalid_organization")
)
