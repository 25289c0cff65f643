package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	compliancedomain "github.com/steadfastapp/steadfast/internal/compliance/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() compliancedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, violation *compliancedomain.Violation) error {
	return db.WithContext(ctx).Create(violation).Error
}

func (r *repo) CountInRange(ctx context.Context, db *gorm.DB, userID snowflake.ID, from, to time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&compliancedomain.Violation{}).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, from, to).
		Count(&count).Error
	return count, err
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]compliancedomain.Violation, error) {
	var rows []compliancedomain.Violation
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
