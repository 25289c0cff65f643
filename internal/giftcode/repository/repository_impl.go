package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/steadfastapp/steadfast/internal/giftcode/domain"
)

type giftCodeRepository struct{}

func Provide() domain.Repository {
	return &giftCodeRepository{}
}

func (r *giftCodeRepository) Insert(ctx context.Context, db *gorm.DB, gc *domain.GiftCode) error {
	return db.WithContext(ctx).Create(gc).Error
}

func (r *giftCodeRepository) FindByCodeForUpdate(ctx context.Context, db *gorm.DB, code string) (*domain.GiftCode, error) {
	tx := db.WithContext(ctx)
	if db.Dialector.Name() != "sqlite" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var gc domain.GiftCode
	if err := tx.Where("code = ?", code).First(&gc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &gc, nil
}

func (r *giftCodeRepository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.GiftCode, error) {
	var gc domain.GiftCode
	if err := db.WithContext(ctx).Where("id = ?", id).First(&gc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &gc, nil
}

func (r *giftCodeRepository) UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	return db.WithContext(ctx).
		Model(&domain.GiftCode{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *giftCodeRepository) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.GiftCode{}).Error
}

func (r *giftCodeRepository) List(ctx context.Context, db *gorm.DB) ([]domain.GiftCode, error) {
	var codes []domain.GiftCode
	if err := db.WithContext(ctx).Order("created_at DESC").Find(&codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}
