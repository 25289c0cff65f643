package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	affiliatedomain "github.com/steadfastapp/steadfast/internal/affiliate/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() affiliatedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, referral *affiliatedomain.Referral) error {
	// ON CONFLICT DO NOTHING keeps a second attribution from erroring. A
	// failed INSERT would poison an open postgres transaction, so the
	// conflict has to be absorbed by the statement itself.
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "referred_id"}},
			DoNothing: true,
		}).
		Create(referral).Error
}

func (r *repo) FindByReferredID(ctx context.Context, db *gorm.DB, referredID snowflake.ID) (*affiliatedomain.Referral, error) {
	var referral affiliatedomain.Referral
	err := db.WithContext(ctx).Where("referred_id = ?", referredID).First(&referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &referral, nil
}

func (r *repo) FindByReferredIDForUpdate(ctx context.Context, db *gorm.DB, referredID snowflake.ID) (*affiliatedomain.Referral, error) {
	var referral affiliatedomain.Referral
	stmt := db.WithContext(ctx)
	if db.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := stmt.Where("referred_id = ?", referredID).First(&referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &referral, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	return db.WithContext(ctx).Model(&affiliatedomain.Referral{}).Where("id = ?", id).Updates(fields).Error
}

func (r *repo) CountByReferrer(ctx context.Context, db *gorm.DB, referrerID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&affiliatedomain.Referral{}).
		Where("referrer_id = ?", referrerID).
		Count(&count).Error
	return count, err
}

func (r *repo) CountByReferrerAndStatus(ctx context.Context, db *gorm.DB, referrerID snowflake.ID, status affiliatedomain.ReferralStatus) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&affiliatedomain.Referral{}).
		Where("referrer_id = ? AND status = ?", referrerID, status).
		Count(&count).Error
	return count, err
}

func (r *repo) ListByReferrer(ctx context.Context, db *gorm.DB, referrerID snowflake.ID) ([]affiliatedomain.Referral, error) {
	var rows []affiliatedomain.Referral
	err := db.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
