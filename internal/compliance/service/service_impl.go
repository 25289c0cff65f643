package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/steadfastapp/steadfast/internal/clock"
	compliancedomain "github.com/steadfastapp/steadfast/internal/compliance/domain"
	"github.com/steadfastapp/steadfast/internal/config"
	"github.com/steadfastapp/steadfast/internal/observability/metrics"
	userdomain "github.com/steadfastapp/steadfast/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxScore = 100
	minScore = 0

	msgStreakBroken      = "Your streak was broken. Start again today - one clean day at a time."
	msgViolationRecorded = "Violation recorded"
	msgHadViolations     = "Had violations today"
	msgScoreRecovered    = "Score recovered"
)

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	policy  *config.PolicyHolder
	repo    compliancedomain.Repository
	users   userdomain.Repository
	metrics *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Policy  *config.PolicyHolder
	Repo    compliancedomain.Repository
	Users   userdomain.Repository
	Metrics *metrics.Metrics
}

func NewService(p ServiceParam) compliancedomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("compliance.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		policy:  p.Policy,
		repo:    p.Repo,
		users:   p.Users,
		metrics: p.Metrics,
	}
}

// CompleteOnboarding implements domain.Service.
func (s *Service) CompleteOnboarding(ctx context.Context, userID snowflake.ID) error {
	now := s.clock.Now()
	return s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.users.FindByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return userdomain.ErrUserNotFound
		}
		return s.users.UpdateFields(ctx, tx, userID, map[string]any{
			"compliance_score":  maxScore,
			"streak_days":       1,
			"streak_started_at": now,
			"updated_at":        now,
		})
	})
}

// RecordViolation implements domain.Service.
//
// The streak resets on either of two independent conditions: the violation is
// a manual disable, or the single-event score drop exceeds the configured
// threshold. Both are checked even though only the manual-disable penalty can
// currently clear the threshold; the magnitude rule is a general guard, not a
// restatement of the type rule.
func (s *Service) RecordViolation(ctx context.Context, req compliancedomain.RecordViolationRequest) (*compliancedomain.RecordViolationResult, error) {
	if !req.Type.Valid() {
		return nil, compliancedomain.ErrInvalidViolationType
	}

	policy := s.policy.Get()
	now := s.clock.Now()

	var result compliancedomain.RecordViolationResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.users.FindByIDForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return userdomain.ErrUserNotFound
		}

		penalty := policy.AttemptPenalty
		if req.Type == compliancedomain.ViolationManualDisable {
			penalty = policy.ManualDisablePenalty
		}

		newScore := user.ComplianceScore - penalty
		if newScore < minScore {
			newScore = minScore
		}

		streakReset := req.Type == compliancedomain.ViolationManualDisable ||
			penalty > policy.StreakResetDrop

		fields := map[string]any{
			"compliance_score":       newScore,
			"total_blocked_attempts": user.TotalBlockedAttempts + 1,
			"last_violation_at":      now,
			"updated_at":             now,
		}
		if streakReset {
			fields["streak_days"] = 0
			fields["streak_started_at"] = nil
		} else {
			// Refresh the cached counter from the streak start.
			fields["streak_days"] = compliancedomain.StreakDays(user.StreakStartedAt, now)
		}

		if err := s.users.UpdateFields(ctx, tx, req.UserID, fields); err != nil {
			return err
		}

		violation := &compliancedomain.Violation{
			ID:        s.genID.Generate(),
			UserID:    req.UserID,
			RuleID:    req.RuleID,
			Type:      req.Type,
			CreatedAt: now,
		}
		if err := s.repo.Insert(ctx, tx, violation); err != nil {
			return err
		}

		result = compliancedomain.RecordViolationResult{
			NewScore:    newScore,
			StreakReset: streakReset,
			Message:     msgViolationRecorded,
		}
		if streakReset {
			result.Message = msgStreakBroken
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ViolationsRecorded.WithLabelValues(string(req.Type)).Inc()
	s.log.Info("violation recorded",
		zap.Int64("user_id", int64(req.UserID)),
		zap.String("type", string(req.Type)),
		zap.Int("new_score", result.NewScore),
		zap.Bool("streak_reset", result.StreakReset),
	)

	return &result, nil
}

// GetStatus implements domain.Service. Read-only; recomputes the same-day
// window and streak from stored rows on every call.
func (s *Service) GetStatus(ctx context.Context, userID snowflake.ID) (*compliancedomain.Status, error) {
	user, err := s.users.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrUserNotFound
	}

	now := s.clock.Now()
	today := clock.StartOfDay(now)
	count, err := s.repo.CountInRange(ctx, s.db, userID, today, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	return &compliancedomain.Status{
		ComplianceScore:      user.ComplianceScore,
		StreakDays:           compliancedomain.StreakDays(user.StreakStartedAt, now),
		TotalBlockedAttempts: user.TotalBlockedAttempts,
		LastViolationAt:      user.LastViolationAt,
		ViolationsToday:      int(count),
		Label:                compliancedomain.LabelForScore(user.ComplianceScore),
	}, nil
}

// RecoverScore implements domain.Service.
//
// Eligibility is a single bundled condition: no violation today AND score
// below the cap. Both failure reasons surface the same message, and repeated
// clean-day calls each pass the check and each add a point; only the cap
// bounds the total.
func (s *Service) RecoverScore(ctx context.Context, userID snowflake.ID) (*compliancedomain.RecoverResult, error) {
	policy := s.policy.Get()
	now := s.clock.Now()
	today := clock.StartOfDay(now)

	var result compliancedomain.RecoverResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.users.FindByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return userdomain.ErrUserNotFound
		}

		count, err := s.repo.CountInRange(ctx, tx, userID, today, today.AddDate(0, 0, 1))
		if err != nil {
			return err
		}

		if count > 0 || user.ComplianceScore >= maxScore {
			result = compliancedomain.RecoverResult{
				Success:  false,
				NewScore: user.ComplianceScore,
				Message:  msgHadViolations,
			}
			return nil
		}

		newScore := user.ComplianceScore + policy.RecoveryPoints
		if newScore > maxScore {
			newScore = maxScore
		}

		if err := s.users.UpdateFields(ctx, tx, userID, map[string]any{
			"compliance_score": newScore,
			"updated_at":       now,
		}); err != nil {
			return err
		}

		result = compliancedomain.RecoverResult{
			Success:  true,
			NewScore: newScore,
			Message:  msgScoreRecovered,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Success {
		s.metrics.ScoreRecoveries.Inc()
	}
	return &result, nil
}
