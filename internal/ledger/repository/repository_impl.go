package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/steadfastapp/steadfast/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() ledgerdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tx *ledgerdomain.Transaction) error {
	return db.WithContext(ctx).Create(tx).Error
}

func (r *repo) SumByUserAndType(ctx context.Context, db *gorm.DB, userID snowflake.ID, txType ledgerdomain.TransactionType) (int64, error) {
	var sum *int64
	err := db.WithContext(ctx).
		Model(&ledgerdomain.Transaction{}).
		Select("SUM(amount_cents)").
		Where("user_id = ? AND type = ?", userID, txType).
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]ledgerdomain.Transaction, error) {
	var rows []ledgerdomain.Transaction
	stmt := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
