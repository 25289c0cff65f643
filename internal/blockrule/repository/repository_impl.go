package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/steadfastapp/steadfast/internal/blockrule/domain"
	"gorm.io/gorm"
)

type blockRuleRepository struct{}

func Provide() domain.Repository {
	return &blockRuleRepository{}
}

func (r *blockRuleRepository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.BlockRule, error) {
	var rule domain.BlockRule
	if err := db.WithContext(ctx).Where("id = ?", id).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

func (r *blockRuleRepository) LatestActive(ctx context.Context, db *gorm.DB, platform domain.Platform) (*domain.BlockRule, error) {
	var rule domain.BlockRule
	err := db.WithContext(ctx).
		Where("platform = ? AND active = ?", platform, true).
		Order("version DESC").
		First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

func (r *blockRuleRepository) ListActive(ctx context.Context, db *gorm.DB) ([]domain.BlockRule, error) {
	var rules []domain.BlockRule
	err := db.WithContext(ctx).
		Where("active = ?", true).
		Order("platform ASC, version DESC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}
