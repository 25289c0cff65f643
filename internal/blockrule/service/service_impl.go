package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/steadfastapp/steadfast/internal/blockrule/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	repo domain.Repository
}

type ServiceParam struct {
	fx.In

	DB   *gorm.DB
	Repo domain.Repository
}

func NewService(p ServiceParam) domain.Service {
	return &Service{db: p.DB, repo: p.Repo}
}

// LatestActive implements domain.Service.
func (s *Service) LatestActive(ctx context.Context, platform domain.Platform) (*domain.BlockRule, error) {
	rule, err := s.repo.LatestActive(ctx, s.db, platform)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, domain.ErrRuleNotFound
	}
	return rule, nil
}

// GetByID implements domain.Service.
func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.BlockRule, error) {
	rule, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, domain.ErrRuleNotFound
	}
	return rule, nil
}

// ListActive implements domain.Service.
func (s *Service) ListActive(ctx context.Context) ([]domain.BlockRule, error) {
	return s.repo.ListActive(ctx, s.db)
}
