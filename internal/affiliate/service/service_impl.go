package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	affiliatedomain "github.com/steadfastapp/steadfast/internal/affiliate/domain"
	"github.com/steadfastapp/steadfast/internal/clock"
	"github.com/steadfastapp/steadfast/internal/config"
	"github.com/steadfastapp/steadfast/internal/entitlement"
	ledgerdomain "github.com/steadfastapp/steadfast/internal/ledger/domain"
	"github.com/steadfastapp/steadfast/internal/observability/metrics"
	"github.com/steadfastapp/steadfast/internal/providers/email"
	userdomain "github.com/steadfastapp/steadfast/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const leaderboardSize = 10

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	policy  *config.PolicyHolder
	repo    affiliatedomain.Repository
	users   userdomain.Repository
	ledger  ledgerdomain.Repository
	email   email.Provider
	metrics *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Policy  *config.PolicyHolder
	Repo    affiliatedomain.Repository
	Users   userdomain.Repository
	Ledger  ledgerdomain.Repository
	Email   email.Provider
	Metrics *metrics.Metrics
}

func NewService(p ServiceParam) affiliatedomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("affiliate.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		policy:  p.Policy,
		repo:    p.Repo,
		users:   p.Users,
		ledger:  p.Ledger,
		email:   p.Email,
		metrics: p.Metrics,
	}
}

// ValidateCode implements domain.Service.
func (s *Service) ValidateCode(ctx context.Context, code string) (*affiliatedomain.CodeOwner, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, affiliatedomain.ErrCodeNotFound
	}

	owner, err := s.users.FindByAffiliateCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if owner == nil || !entitlement.IsActive(owner, s.clock.Now()) {
		return nil, affiliatedomain.ErrCodeNotFound
	}

	return &affiliatedomain.CodeOwner{Name: owner.Name}, nil
}

// GetStats implements domain.Service. Pure read; every aggregate is
// recomputed from the transaction and referral rows.
func (s *Service) GetStats(ctx context.Context, userID snowflake.ID) (*affiliatedomain.Stats, error) {
	user, err := s.users.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrUserNotFound
	}

	earnings, err := s.ledger.SumByUserAndType(ctx, s.db, userID, ledgerdomain.TransactionTypeCommission)
	if err != nil {
		return nil, err
	}
	payouts, err := s.ledger.SumByUserAndType(ctx, s.db, userID, ledgerdomain.TransactionTypePayout)
	if err != nil {
		return nil, err
	}

	total, err := s.repo.CountByReferrer(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	converted, err := s.repo.CountByReferrerAndStatus(ctx, s.db, userID, affiliatedomain.ReferralConverted)
	if err != nil {
		return nil, err
	}

	referrals, err := s.repo.ListByReferrer(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	views := make([]affiliatedomain.ReferralView, 0, len(referrals))
	for _, ref := range referrals {
		views = append(views, affiliatedomain.ReferralView{
			ID:         ref.ID,
			ReferredID: ref.ReferredID,
			Status:     ref.Status,
			CreatedAt:  ref.CreatedAt,
		})
	}

	code := ""
	if user.AffiliateCode != nil {
		code = *user.AffiliateCode
	}

	return &affiliatedomain.Stats{
		AffiliateCode:         code,
		TotalEarningsCents:    earnings,
		AvailableBalanceCents: ledgerdomain.AvailableBalanceCents(earnings, payouts),
		TotalReferrals:        total,
		ConvertedReferrals:    converted,
		ConversionRate:        conversionRate(converted, total),
		Referrals:             views,
	}, nil
}

// GetLeaderboard implements domain.Service. Ties rank by user id ascending so
// the order is stable across calls on the same snapshot.
func (s *Service) GetLeaderboard(ctx context.Context) ([]affiliatedomain.LeaderboardEntry, error) {
	users, err := s.users.ListTopEarners(ctx, s.db, leaderboardSize)
	if err != nil {
		return nil, err
	}

	entries := make([]affiliatedomain.LeaderboardEntry, 0, len(users))
	for i, u := range users {
		code := ""
		if u.AffiliateCode != nil {
			code = *u.AffiliateCode
		}
		entries = append(entries, affiliatedomain.LeaderboardEntry{
			Rank:          i + 1,
			Name:          u.Name,
			AffiliateCode: code,
			EarningsCents: u.AffiliateEarningsCents,
		})
	}
	return entries, nil
}

// RequestPayout implements domain.Service.
//
// The debit is posted inside the same transaction that re-reads the balance
// under a user-row lock, so two concurrent requests cannot both validate
// against the same stale balance.
func (s *Service) RequestPayout(ctx context.Context, req affiliatedomain.PayoutRequest) (*affiliatedomain.PayoutResult, error) {
	if req.AmountCents <= 0 {
		return nil, affiliatedomain.ErrInvalidAmount
	}

	policy := s.policy.Get()
	if req.AmountCents < policy.MinPayoutCents {
		return nil, affiliatedomain.ErrBelowMinimum
	}

	now := s.clock.Now()
	var result affiliatedomain.PayoutResult
	var userEmail string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.users.FindByIDForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return userdomain.ErrUserNotFound
		}
		userEmail = user.Email

		earnings, err := s.ledger.SumByUserAndType(ctx, tx, req.UserID, ledgerdomain.TransactionTypeCommission)
		if err != nil {
			return err
		}
		payouts, err := s.ledger.SumByUserAndType(ctx, tx, req.UserID, ledgerdomain.TransactionTypePayout)
		if err != nil {
			return err
		}
		balance := ledgerdomain.AvailableBalanceCents(earnings, payouts)
		if req.AmountCents > balance {
			return affiliatedomain.ErrInsufficientBalance
		}

		if req.Method == affiliatedomain.PayoutMethodBank && strings.TrimSpace(req.BankDetails) == "" {
			return affiliatedomain.ErrMissingBankDetails
		}

		payout := &ledgerdomain.Transaction{
			ID:          s.genID.Generate(),
			UserID:      req.UserID,
			Type:        ledgerdomain.TransactionTypePayout,
			AmountCents: -req.AmountCents,
			Description: fmt.Sprintf("Payout via %s", req.Method),
			CreatedAt:   now,
		}
		if err := s.ledger.Insert(ctx, tx, payout); err != nil {
			return err
		}

		result = affiliatedomain.PayoutResult{
			TransactionID: payout.ID,
			AmountCents:   req.AmountCents,
			NewBalance:    balance - req.AmountCents,
			Message:       "Payout requested",
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PayoutsRequested.Inc()
	s.log.Info("payout requested",
		zap.Int64("user_id", int64(req.UserID)),
		zap.Int64("amount_cents", req.AmountCents),
		zap.String("method", string(req.Method)),
	)

	// Confirmation email is fire-and-forget; a send failure never rolls the
	// payout back.
	if err := s.email.Send(ctx, []string{userEmail}, "Payout requested",
		fmt.Sprintf("<p>Your payout of $%.2f is being processed.</p>", float64(req.AmountCents)/100)); err != nil {
		s.log.Warn("payout confirmation email failed", zap.Error(err), zap.Int64("user_id", int64(req.UserID)))
	}

	return &result, nil
}

func conversionRate(converted, total int64) float64 {
	if total == 0 {
		return 0
	}
	// One decimal place for display.
	return math.Round(float64(converted)/float64(total)*1000) / 10
}
