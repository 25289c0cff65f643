package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	affiliatedomain "github.com/steadfastapp/steadfast/internal/affiliate/domain"
	"github.com/steadfastapp/steadfast/internal/clock"
	"github.com/steadfastapp/steadfast/internal/config"
	"github.com/steadfastapp/steadfast/internal/entitlement"
	ledgerdomain "github.com/steadfastapp/steadfast/internal/ledger/domain"
	"github.com/steadfastapp/steadfast/internal/observability/metrics"
	paymentdomain "github.com/steadfastapp/steadfast/internal/payment/domain"
	"github.com/steadfastapp/steadfast/internal/providers/dns"
	"github.com/steadfastapp/steadfast/internal/providers/email"
	userdomain "github.com/steadfastapp/steadfast/internal/user/domain"
	"github.com/steadfastapp/steadfast/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	billingPeriodMonths = 1
	codeAssignAttempts  = 5
)

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	policy    *config.PolicyHolder
	secret    []byte
	events    paymentdomain.Repository
	users     userdomain.Repository
	referrals affiliatedomain.Repository
	ledger    ledgerdomain.Repository
	dns       dns.Client
	email     email.Provider
	metrics   *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Policy    *config.PolicyHolder
	Cfg       config.Config
	Events    paymentdomain.Repository
	Users     userdomain.Repository
	Referrals affiliatedomain.Repository
	Ledger    ledgerdomain.Repository
	DNS       dns.Client
	Email     email.Provider
	Metrics   *metrics.Metrics
}

func NewService(p ServiceParam) paymentdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("payment.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		policy:    p.Policy,
		secret:    []byte(p.Cfg.PaymentWebhookSecret),
		events:    p.Events,
		users:     p.Users,
		referrals: p.Referrals,
		ledger:    p.Ledger,
		dns:       p.DNS,
		email:     p.Email,
		metrics:   p.Metrics,
	}
}

// VerifySignature checks the hex HMAC-SHA256 of the raw body against the
// shared webhook secret. A "sha256=" prefix on the header value is accepted.
func (s *Service) VerifySignature(rawBody []byte, signature string) bool {
	if len(s.secret) == 0 {
		return false
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(rawBody)
	return hmac.Equal(provided, mac.Sum(nil))
}

// ProcessWebhook implements domain.Service.
func (s *Service) ProcessWebhook(ctx context.Context, rawBody []byte, signature string) (*paymentdomain.ProcessResult, error) {
	if !s.VerifySignature(rawBody, signature) {
		return nil, paymentdomain.ErrInvalidSignature
	}

	var event paymentdomain.Event
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if event.ProviderEventID == "" || event.CustomerEmail == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}

	var (
		result *paymentdomain.ProcessResult
		err    error
	)
	switch event.EventType {
	case paymentdomain.EventTypeCompleted:
		result, err = s.processCompleted(ctx, rawBody, event)
	case paymentdomain.EventTypeRefunded:
		result, err = s.processRefunded(ctx, rawBody, event)
	default:
		return nil, paymentdomain.ErrUnknownEventType
	}
	if err != nil {
		s.metrics.WebhookEvents.WithLabelValues(event.EventType, "error").Inc()
		return nil, err
	}

	outcome := "processed"
	if result.Duplicate {
		outcome = "duplicate"
	}
	s.metrics.WebhookEvents.WithLabelValues(event.EventType, outcome).Inc()
	return result, nil
}

// processCompleted applies one successful billing charge: entitlement, ledger
// line, affiliate code assignment, referral attribution/conversion and the
// referrer commission, all in one transaction keyed by the provider event id.
// Vendor side effects (DNS profile, email) run only after commit.
func (s *Service) processCompleted(ctx context.Context, rawBody []byte, event paymentdomain.Event) (*paymentdomain.ProcessResult, error) {
	now := s.clock.Now()
	policy := s.policy.Get()

	var (
		duplicate    bool
		userID       snowflake.ID
		userEmail    string
		userName     string
		needsProfile bool
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.users.FindByEmail(ctx, tx, event.CustomerEmail)
		if err != nil {
			return err
		}
		if user == nil {
			return paymentdomain.ErrUnknownCustomer
		}

		record := &paymentdomain.EventRecord{
			ID:              s.genID.Generate(),
			ProviderEventID: event.ProviderEventID,
			EventType:       event.EventType,
			UserID:          user.ID,
			AmountCents:     event.OrderTotalCents,
			Payload:         datatypes.JSON(rawBody),
			ReceivedAt:      now,
		}
		inserted, err := s.events.InsertEvent(ctx, tx, record)
		if err != nil {
			return err
		}
		if !inserted {
			duplicate = true
			return nil
		}

		user, err = s.users.FindByIDForUpdate(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		userID = user.ID
		userEmail = user.Email
		userName = user.Name
		needsProfile = user.DNSProfileID == nil

		endsAt := entitlement.ExtendByMonths(user.SubscriptionEndsAt, now, billingPeriodMonths)
		if err := s.users.UpdateFields(ctx, tx, user.ID, map[string]any{
			"subscription_status":  userdomain.SubscriptionActive,
			"subscription_ends_at": endsAt,
			"updated_at":           now,
		}); err != nil {
			return err
		}

		if err := s.ledger.Insert(ctx, tx, &ledgerdomain.Transaction{
			ID:          s.genID.Generate(),
			UserID:      user.ID,
			Type:        ledgerdomain.TransactionTypeSubscription,
			AmountCents: event.OrderTotalCents,
			Description: "Subscription payment",
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		if err := s.ensureAffiliateCode(ctx, tx, user); err != nil {
			return err
		}
		if err := s.attributeReferral(ctx, tx, user.ID, event.ReferralCode, now); err != nil {
			return err
		}
		if err := s.convertAndCredit(ctx, tx, user.ID, event.OrderTotalCents, policy.CommissionRate, now); err != nil {
			return err
		}

		return s.events.MarkProcessed(ctx, tx, record.ID, now)
	})
	if err != nil {
		return nil, err
	}
	if duplicate {
		return &paymentdomain.ProcessResult{EventType: event.EventType, Duplicate: true}, nil
	}

	s.provisionDNS(ctx, userID, userEmail, needsProfile)
	s.sendSetupEmail(ctx, userEmail, userName)

	s.log.Info("payment completed",
		zap.String("provider_event_id", event.ProviderEventID),
		zap.Int64("user_id", int64(userID)),
		zap.Int64("amount_cents", event.OrderTotalCents),
	)
	return &paymentdomain.ProcessResult{EventType: event.EventType}, nil
}

// processRefunded revokes the entitlement and expires the referral when the
// refund lands inside the attribution window. Commission already credited
// stays on the referrer's ledger.
func (s *Service) processRefunded(ctx context.Context, rawBody []byte, event paymentdomain.Event) (*paymentdomain.ProcessResult, error) {
	now := s.clock.Now()
	policy := s.policy.Get()
	window := time.Duration(policy.ReferralWindowDays) * 24 * time.Hour

	var (
		duplicate bool
		userID    snowflake.ID
		profileID string
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.users.FindByEmail(ctx, tx, event.CustomerEmail)
		if err != nil {
			return err
		}
		if user == nil {
			return paymentdomain.ErrUnknownCustomer
		}

		record := &paymentdomain.EventRecord{
			ID:              s.genID.Generate(),
			ProviderEventID: event.ProviderEventID,
			EventType:       event.EventType,
			UserID:          user.ID,
			AmountCents:     event.OrderTotalCents,
			Payload:         datatypes.JSON(rawBody),
			ReceivedAt:      now,
		}
		inserted, err := s.events.InsertEvent(ctx, tx, record)
		if err != nil {
			return err
		}
		if !inserted {
			duplicate = true
			return nil
		}

		user, err = s.users.FindByIDForUpdate(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		userID = user.ID
		if user.DNSProfileID != nil {
			profileID = *user.DNSProfileID
		}

		if err := s.users.UpdateFields(ctx, tx, user.ID, map[string]any{
			"subscription_status": userdomain.SubscriptionExpired,
			"updated_at":          now,
		}); err != nil {
			return err
		}

		referral, err := s.referrals.FindByReferredIDForUpdate(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		if referral != nil &&
			now.Sub(referral.CreatedAt) <= window &&
			affiliatedomain.CanTransition(referral.Status, affiliatedomain.ReferralExpired) {
			if err := s.referrals.UpdateStatus(ctx, tx, referral.ID, map[string]any{
				"status": affiliatedomain.ReferralExpired,
			}); err != nil {
				return err
			}
		}

		return s.events.MarkProcessed(ctx, tx, record.ID, now)
	})
	if err != nil {
		return nil, err
	}
	if duplicate {
		return &paymentdomain.ProcessResult{EventType: event.EventType, Duplicate: true}, nil
	}

	s.teardownDNS(ctx, userID, profileID)

	s.log.Info("payment refunded",
		zap.String("provider_event_id", event.ProviderEventID),
		zap.Int64("user_id", int64(userID)),
	)
	return &paymentdomain.ProcessResult{EventType: event.EventType}, nil
}

// ensureAffiliateCode assigns the write-once referral code on the first
// successful charge. Collisions with another user's code retry with a fresh
// one; each attempt runs under a savepoint so a failed UPDATE cannot abort
// the enclosing postgres transaction.
func (s *Service) ensureAffiliateCode(ctx context.Context, tx *gorm.DB, user *userdomain.User) error {
	if user.AffiliateCode != nil {
		return nil
	}
	var lastErr error
	for i := 0; i < codeAssignAttempts; i++ {
		if err := tx.SavePoint("assign_code").Error; err != nil {
			return err
		}
		code := affiliatedomain.NewCode(8)
		err := s.users.UpdateFields(ctx, tx, user.ID, map[string]any{
			"affiliate_code": code,
		})
		if err == nil {
			return nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return err
		}
		if err := tx.RollbackTo("assign_code").Error; err != nil {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("assign affiliate code: %w", lastErr)
}

// attributeReferral records the pending referral carried on the checkout. An
// unknown or self-referencing code is ignored, and a referral that already
// exists for this user stands untouched: Insert absorbs the referred_id
// conflict in-statement, so first-referrer-wins never errors the enclosing
// transaction.
func (s *Service) attributeReferral(ctx context.Context, tx *gorm.DB, referredID snowflake.ID, code string, now time.Time) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	referrer, err := s.users.FindByAffiliateCode(ctx, tx, code)
	if err != nil {
		return err
	}
	if referrer == nil || referrer.ID == referredID {
		return nil
	}

	return s.referrals.Insert(ctx, tx, &affiliatedomain.Referral{
		ID:         s.genID.Generate(),
		ReferrerID: referrer.ID,
		ReferredID: referredID,
		Status:     affiliatedomain.ReferralPending,
		CreatedAt:  now,
	})
}

// convertAndCredit flips a pending referral to converted and credits the
// referrer's recurring commission for this billing period. An expired
// referral earns nothing.
func (s *Service) convertAndCredit(ctx context.Context, tx *gorm.DB, referredID snowflake.ID, orderTotalCents int64, rate float64, now time.Time) error {
	referral, err := s.referrals.FindByReferredIDForUpdate(ctx, tx, referredID)
	if err != nil {
		return err
	}
	if referral == nil {
		return nil
	}

	if referral.Status == affiliatedomain.ReferralPending {
		if err := s.referrals.UpdateStatus(ctx, tx, referral.ID, map[string]any{
			"status":       affiliatedomain.ReferralConverted,
			"converted_at": now,
		}); err != nil {
			return err
		}
		referral.Status = affiliatedomain.ReferralConverted
	}
	if referral.Status != affiliatedomain.ReferralConverted {
		return nil
	}

	commission := affiliatedomain.CommissionCents(orderTotalCents, rate)
	if commission <= 0 {
		return nil
	}

	referrer, err := s.users.FindByIDForUpdate(ctx, tx, referral.ReferrerID)
	if err != nil {
		return err
	}
	if referrer == nil {
		return nil
	}

	if err := s.ledger.Insert(ctx, tx, &ledgerdomain.Transaction{
		ID:          s.genID.Generate(),
		UserID:      referrer.ID,
		Type:        ledgerdomain.TransactionTypeCommission,
		AmountCents: commission,
		Description: "Referral commission",
		CreatedAt:   now,
	}); err != nil {
		return err
	}
	return s.users.UpdateFields(ctx, tx, referrer.ID, map[string]any{
		"affiliate_earnings_cents": referrer.AffiliateEarningsCents + commission,
		"updated_at":               now,
	})
}

// provisionDNS creates the vendor filtering profile after the entitlement is
// committed. Failure is logged, never surfaced to the provider.
func (s *Service) provisionDNS(ctx context.Context, userID snowflake.ID, userEmail string, needsProfile bool) {
	if !needsProfile {
		return
	}
	profile, err := s.dns.CreateProfile(ctx, userEmail)
	if err != nil {
		s.log.Warn("dns profile creation failed", zap.Int64("user_id", int64(userID)), zap.Error(err))
		return
	}
	if profile == nil {
		return
	}
	if err := s.users.UpdateFields(ctx, s.db, userID, map[string]any{
		"dns_profile_id": profile.ID,
		"dns_endpoint":   profile.Endpoint,
	}); err != nil {
		s.log.Warn("dns profile persist failed", zap.Int64("user_id", int64(userID)), zap.Error(err))
	}
}

func (s *Service) teardownDNS(ctx context.Context, userID snowflake.ID, profileID string) {
	if profileID == "" {
		return
	}
	if err := s.dns.DeleteProfile(ctx, profileID); err != nil {
		s.log.Warn("dns profile deletion failed", zap.Int64("user_id", int64(userID)), zap.Error(err))
		return
	}
	if err := s.users.UpdateFields(ctx, s.db, userID, map[string]any{
		"dns_profile_id": nil,
		"dns_endpoint":   nil,
	}); err != nil {
		s.log.Warn("dns profile clear failed", zap.Int64("user_id", int64(userID)), zap.Error(err))
	}
}

func (s *Service) sendSetupEmail(ctx context.Context, to, name string) {
	subject := "Your Steadfast protection is active"
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your subscription is active. Open the app to finish DNS setup on your devices.</p>",
		name,
	)
	if err := s.email.Send(ctx, []string{to}, subject, body); err != nil {
		s.log.Warn("setup email failed", zap.String("to", to), zap.Error(err))
	}
}
