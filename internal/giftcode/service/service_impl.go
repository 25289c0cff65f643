package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/steadfastapp/steadfast/internal/clock"
	"github.com/steadfastapp/steadfast/internal/entitlement"
	giftcodedomain "github.com/steadfastapp/steadfast/internal/giftcode/domain"
	"github.com/steadfastapp/steadfast/internal/observability/metrics"
	userdomain "github.com/steadfastapp/steadfast/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    giftcodedomain.Repository
	users   userdomain.Repository
	metrics *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    giftcodedomain.Repository
	Users   userdomain.Repository
	Metrics *metrics.Metrics
}

func NewService(p ServiceParam) giftcodedomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("giftcode.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		users:   p.Users,
		metrics: p.Metrics,
	}
}

func (s *Service) requireAdmin(ctx context.Context, actorID snowflake.ID) error {
	actor, err := s.users.FindByID(ctx, s.db, actorID)
	if err != nil {
		return err
	}
	if actor == nil {
		return userdomain.ErrUserNotFound
	}
	if !actor.IsAdmin() {
		return giftcodedomain.ErrAdminRequired
	}
	return nil
}

// Generate implements domain.Service.
func (s *Service) Generate(ctx context.Context, actorID snowflake.ID, durationMonths int) (*giftcodedomain.GiftCode, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if !giftcodedomain.ValidDuration(durationMonths) {
		return nil, giftcodedomain.ErrInvalidDuration
	}

	gc := &giftcodedomain.GiftCode{
		ID:             s.genID.Generate(),
		Code:           giftcodedomain.NewCode(),
		DurationMonths: durationMonths,
		Status:         giftcodedomain.StatusAvailable,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, gc); err != nil {
		return nil, err
	}

	s.log.Info("gift code generated",
		zap.Int64("actor_id", int64(actorID)),
		zap.Int("duration_months", durationMonths),
	)
	return gc, nil
}

// Redeem implements domain.Service. The code row and the user row are both
// locked inside one transaction so a code flips to redeemed exactly once and
// the entitlement write it pays for cannot be lost to a concurrent attempt.
func (s *Service) Redeem(ctx context.Context, userID snowflake.ID, code string) (*giftcodedomain.RedeemResult, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, giftcodedomain.ErrCodeNotRedeemable
	}
	now := s.clock.Now()

	var result giftcodedomain.RedeemResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		gc, err := s.repo.FindByCodeForUpdate(ctx, tx, normalized)
		if err != nil {
			return err
		}
		if gc == nil || gc.Status != giftcodedomain.StatusAvailable {
			return giftcodedomain.ErrCodeNotRedeemable
		}

		user, err := s.users.FindByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return userdomain.ErrUserNotFound
		}

		endsAt := entitlement.ExtendByMonths(user.SubscriptionEndsAt, now, gc.DurationMonths)
		if err := s.users.UpdateFields(ctx, tx, userID, map[string]any{
			"subscription_status":  userdomain.SubscriptionActive,
			"subscription_ends_at": endsAt,
			"updated_at":           now,
		}); err != nil {
			return err
		}

		if err := s.repo.UpdateFields(ctx, tx, gc.ID, map[string]any{
			"status":         giftcodedomain.StatusRedeemed,
			"redeemed_by_id": userID,
			"redeemed_at":    now,
		}); err != nil {
			return err
		}

		result = giftcodedomain.RedeemResult{
			Code:               gc.Code,
			DurationMonths:     gc.DurationMonths,
			SubscriptionEndsAt: endsAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.GiftCodeRedemptions.Inc()
	s.log.Info("gift code redeemed",
		zap.Int64("user_id", int64(userID)),
		zap.Int("duration_months", result.DurationMonths),
	)
	return &result, nil
}

// Delete implements domain.Service.
func (s *Service) Delete(ctx context.Context, actorID snowflake.ID, id snowflake.ID) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		gc, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if gc == nil {
			return giftcodedomain.ErrGiftCodeNotFound
		}
		if gc.Status != giftcodedomain.StatusAvailable {
			return giftcodedomain.ErrCodeNotDeletable
		}
		return s.repo.Delete(ctx, tx, id)
	})
}

// List implements domain.Service.
func (s *Service) List(ctx context.Context, actorID snowflake.ID) ([]giftcodedomain.GiftCode, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, s.db)
}
