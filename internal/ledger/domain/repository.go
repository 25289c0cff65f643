package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tx *Transaction) error
	// SumByUserAndType returns the signed sum of amount_cents for one
	// transaction type, zero when no rows exist.
	SumByUserAndType(ctx context.Context, db *gorm.DB, userID snowflake.ID, txType TransactionType) (int64, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]Transaction, error)
}

// AvailableBalanceCents derives the payable balance from commission credits
// and payout debits. Payout rows are stored negative, so a plain sum works.
func AvailableBalanceCents(commissionSum, payoutSum int64) int64 {
	return commissionSum + payoutSum
}
