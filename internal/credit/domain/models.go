// Package domain contains persistence models for the prepaid credit ledger.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/storyforge/storyforge/internal/modelcatalog/domain"
)

// CreditTransactionType represents grant or debit postings.
type CreditTransactionType string

const (
	TransactionTypeGrant CreditTransactionType = "grant"
	TransactionTypeDebit CreditTransactionType = "debit"
)

// CreditBalance is the organization's current prepaid balance.
type CreditBalance struct {
	OrgID     snowflake.ID `gorm:"primaryKey" json:"org_id"`
	Balance   float64      `gorm:"not null;default:0" json:"balance"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (CreditBalance) TableName() string { return "credit_balances" }

// CreditTransaction is an immutable posting against the balance. Debits
// reference exactly one usage record; the unique index keeps a usage record
// from ever being billed twice.
type CreditTransaction struct {
	ID            snowflake.ID          `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID          `gorm:"not null;index" json:"org_id"`
	UserID        snowflake.ID          `gorm:"not null" json:"user_id"`
	Type          CreditTransactionType `gorm:"type:text;not null" json:"type"`
	Amount        float64               `gorm:"not null" json:"amount"`
	UsageRecordID *snowflake.ID         `gorm:"uniqueIndex:ux_credit_transactions_usage" json:"usage_record_id,omitempty"`
	Memo          string                `gorm:"type:text" json:"memo"`
	CreatedAt     time.Time             `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (CreditTransaction) TableName() string { return "credit_transactions" }

// CheckResult reports whether a pre-check passed and what remains.
type CheckResult struct {
	HasCredits bool    `json:"has_credits"`
	Remaining  float64 `json:"remaining"`
}

type Service interface {
	CheckCredits(ctx context.Context, orgID snowflake.ID, estimatedCost float64, userID snowflake.ID) (CheckResult, error)
	DeductCredits(ctx context.Context, orgID, userID snowflake.ID, amount float64, usageRecordID snowflake.ID, memo string) error
	GrantCredits(ctx context.Context, orgID, userID snowflake.ID, amount float64, memo string) error
	CalculateCreditCost(model domain.Model, inputTokens, outputTokens int) float64
}

var (
	ErrInsufficientCredits = errors.New("insufficient_credits")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrDuplicateDebit      = errors.New("duplicate_debit")
)
