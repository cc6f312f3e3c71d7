package service

import (
	"context"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	creditdomain "github.com/storyforge/storyforge/internal/credit/domain"
	catalogdomain "github.com/storyforge/storyforge/internal/modelcatalog/domain"
	"github.com/storyforge/storyforge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p ServiceParam) creditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("credit.service"),
		genID: p.GenID,
	}
}

func (s *Service) CheckCredits(ctx context.Context, orgID snowflake.ID, estimatedCost float64, userID snowflake.ID) (creditdomain.CheckResult, error) {
	var balance creditdomain.CreditBalance
	err := s.db.WithContext(ctx).Where("org_id = ?", orgID).First(&balance).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return creditdomain.CheckResult{HasCredits: estimatedCost <= 0}, nil
		}
		return creditdomain.CheckResult{}, err
	}

	return creditdomain.CheckResult{
		HasCredits: balance.Balance >= estimatedCost,
		Remaining:  balance.Balance,
	}, nil
}

// DeductCredits atomically posts a debit transaction and decrements the
// balance. The balance update is conditional on sufficient funds so two
// concurrent debits can never drive the balance negative, and the unique
// usage-record index rejects a second debit for the same record.
func (s *Service) DeductCredits(ctx context.Context, orgID, userID snowflake.ID, amount float64, usageRecordID snowflake.ID, memo string) error {
	if amount < 0 {
		return creditdomain.ErrInvalidAmount
	}
	if amount == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		usageRef := usageRecordID
		txn := &creditdomain.CreditTransaction{
			ID:            s.genID.Generate(),
			OrgID:         orgID,
			UserID:        userID,
			Type:          creditdomain.TransactionTypeDebit,
			Amount:        amount,
			UsageRecordID: &usageRef,
			Memo:          memo,
			CreatedAt:     time.Now().UTC(),
		}
		if err := tx.Create(txn).Error; err != nil {
			if db.IsDuplicateKeyErr(err) {
				return creditdomain.ErrDuplicateDebit
			}
			return err
		}

		result := tx.Model(&creditdomain.CreditBalance{}).
			Where("org_id = ? AND balance >= ?", orgID, amount).
			Updates(map[string]any{
				"balance":    gorm.Expr("balance - ?", amount),
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return creditdomain.ErrInsufficientCredits
		}
		return nil
	})
}

func (s *Service) GrantCredits(ctx context.Context, orgID, userID snowflake.ID, amount float64, memo string) error {
	if amount <= 0 {
		return creditdomain.ErrInvalidAmount
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn := &creditdomain.CreditTransaction{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			UserID:    userID,
			Type:      creditdomain.TransactionTypeGrant,
			Amount:    amount,
			Memo:      memo,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(txn).Error; err != nil {
			return err
		}

		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "org_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"balance":    gorm.Expr("credit_balances.balance + ?", amount),
				"updated_at": time.Now().UTC(),
			}),
		}).Create(&creditdomain.CreditBalance{
			OrgID:     orgID,
			Balance:   amount,
			UpdatedAt: time.Now().UTC(),
		}).Error
	})
}

// CalculateCreditCost prices a completion call. Free-tier models cost zero.
func (s *Service) CalculateCreditCost(model catalogdomain.Model, inputTokens, outputTokens int) float64 {
	if model.FreeTier {
		return 0
	}
	cost := float64(inputTokens)/1000*model.InputRatePerK +
		float64(outputTokens)/1000*model.OutputRatePerK
	return math.Round(cost*10000) / 10000
}
