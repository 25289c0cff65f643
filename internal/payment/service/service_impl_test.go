package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	affiliatedomain "github.com/steadfastapp/steadfast/internal/affiliate/domain"
	affiliaterepo "github.com/steadfastapp/steadfast/internal/affiliate/repository"
	"github.com/steadfastapp/steadfast/internal/clock"
	"github.com/steadfastapp/steadfast/internal/config"
	ledgerdomain "github.com/steadfastapp/steadfast/internal/ledger/domain"
	ledgerrepo "github.com/steadfastapp/steadfast/internal/ledger/repository"
	"github.com/steadfastapp/steadfast/internal/observability/metrics"
	paymentdomain "github.com/steadfastapp/steadfast/internal/payment/domain"
	paymentrepo "github.com/steadfastapp/steadfast/internal/payment/repository"
	"github.com/steadfastapp/steadfast/internal/providers/dns"
	"github.com/steadfastapp/steadfast/internal/providers/email"
	userdomain "github.com/steadfastapp/steadfast/internal/user/domain"
	userrepo "github.com/steadfastapp/steadfast/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "test-webhook-secret"

var testNode = func() *snowflake.Node {
	node, err := snowflake.NewNode(4)
	if err != nil {
		panic(err)
	}
	return node
}()

func setupPaymentService(t *testing.T) (paymentdomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&userdomain.User{},
		&affiliatedomain.Referral{},
		&ledgerdomain.Transaction{},
		&paymentdomain.EventRecord{},
	))

	fake := clock.NewFakeClock(time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC))
	svc := NewService(ServiceParam{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     testNode,
		Clock:     fake,
		Policy:    config.NewStaticPolicyHolder(config.DefaultPolicyConfig()),
		Cfg:       config.Config{PaymentWebhookSecret: testSecret},
		Events:    paymentrepo.Provide(),
		Users:     userrepo.Provide(),
		Referrals: affiliaterepo.Provide(),
		Ledger:    ledgerrepo.Provide(),
		DNS:       &dns.NoOpClient{},
		Email:     &email.NoOpProvider{},
		Metrics:   metrics.NewNop(),
	})
	return svc, db, fake
}

func createCustomer(t *testing.T, db *gorm.DB, fake *clock.FakeClock, code string) *userdomain.User {
	t.Helper()

	now := fake.Now()
	user := &userdomain.User{
		ID:                 testNode.Generate(),
		Email:              testNode.Generate().String() + "@example.com",
		Name:               "Customer",
		Role:               userdomain.RoleNormal,
		ComplianceScore:    100,
		SubscriptionStatus: userdomain.SubscriptionNone,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if code != "" {
		user.AffiliateCode = &code
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func reloadCustomer(t *testing.T, db *gorm.DB, id snowflake.ID) *userdomain.User {
	t.Helper()
	var user userdomain.User
	require.NoError(t, db.First(&user, "id = ?", id).Error)
	return &user
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookBody(t *testing.T, event paymentdomain.Event) []byte {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return raw
}

func ledgerRows(t *testing.T, db *gorm.DB, userID snowflake.ID) []ledgerdomain.Transaction {
	t.Helper()
	var rows []ledgerdomain.Transaction
	require.NoError(t, db.Where("user_id = ?", userID).Order("id asc").Find(&rows).Error)
	return rows
}

func TestVerifySignature(t *testing.T) {
	svc, _, _ := setupPaymentService(t)
	impl := svc.(*Service)
	body := []byte(`{"event_id":"evt_1"}`)

	assert.True(t, impl.VerifySignature(body, signBody(body)))
	assert.True(t, impl.VerifySignature(body, "sha256="+signBody(body)))
	assert.True(t, impl.VerifySignature(body, " "+signBody(body)+" "))
	assert.False(t, impl.VerifySignature(body, signBody([]byte("other"))))
	assert.False(t, impl.VerifySignature(body, "not-hex"))
	assert.False(t, impl.VerifySignature(body, ""))

	unconfigured := &Service{}
	assert.False(t, unconfigured.VerifySignature(body, signBody(body)))
}

func TestProcessWebhookRejectsBadInput(t *testing.T) {
	svc, _, _ := setupPaymentService(t)
	ctx := context.Background()

	body := []byte(`{"event_id":"evt_bad","event_type":"completed","customer_email":"a@b.c"}`)
	_, err := svc.ProcessWebhook(ctx, body, "deadbeef")
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	malformed := []byte(`{"event_id":`)
	_, err = svc.ProcessWebhook(ctx, malformed, signBody(malformed))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)

	missing := []byte(`{"event_type":"completed","customer_email":"a@b.c"}`)
	_, err = svc.ProcessWebhook(ctx, missing, signBody(missing))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)

	unknown := []byte(`{"event_id":"evt_x","event_type":"chargeback","customer_email":"a@b.c"}`)
	_, err = svc.ProcessWebhook(ctx, unknown, signBody(unknown))
	assert.ErrorIs(t, err, paymentdomain.ErrUnknownEventType)
}

func TestProcessWebhookUnknownCustomer(t *testing.T) {
	svc, _, _ := setupPaymentService(t)

	body := webhookBody(t, paymentdomain.Event{
		ProviderEventID: "evt_nobody",
		EventType:       paymentdomain.EventTypeCompleted,
		CustomerEmail:   "nobody@example.com",
		OrderTotalCents: 3300,
	})
	_, err := svc.ProcessWebhook(context.Background(), body, signBody(body))
	assert.ErrorIs(t, err, paymentdomain.ErrUnknownCustomer)
}

func TestCompletedActivatesSubscription(t *testing.T) {
	svc, db, fake := setupPaymentService(t)
	user := createCustomer(t, db, fake, "")
	ctx := context.Background()

	body := webhookBody(t, paymentdomain.Event{
		ProviderEventID: "evt_first",
		EventType:       paymentdomain.EventTypeCompleted,
		CustomerEmail:   user.Email,
		OrderTotalCents: 3300,
	})
	result, err := svc.ProcessWebhook(ctx, body, signBody(body))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.EventTypeCompleted, result.EventType)
	assert.False(t, result.Duplicate)

	reloaded := reloadCustomer(t, db, user.ID)
	assert.Equal(t, userdomain.SubscriptionActive, reloaded.SubscriptionStatus)
	require.NotNil(t, reloaded.SubscriptionEndsAt)
	assert.Equal(t, fake.Now().AddDate(0, 1, 0).Unix(), reloaded.SubscriptionEndsAt.Unix())

	// First charge assigns the shareable code.
	require.NotNil(t, reloaded.AffiliateCode)
	assert.Len(t, *reloaded.AffiliateCode, 8)

	rows := ledgerRows(t, db, user.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, ledgerdomain.TransactionTypeSubscription, rows[0].Type)
	assert.Equal(t, int64(3300), rows[0].AmountCents)
	assert.Equal(t, "Subscription payment", rows[0].Description)
}

func TestCompletedDuplicateEventID(t *testing.T) {
	svc, db, fake := setupPaymentService(t)
	user := createCustomer(t, db, fake, "")
	ctx := context.Background()

	body := webhookBody(t, paymentdomain.Event{
		ProviderEventID: "evt_dup",
		EventType:       paymentdomain.EventTypeCompleted,
		CustomerEmail:   user.Email,
		OrderTotalCents: 3300,
	})
	_, err := svc.ProcessWebhook(ctx, body, signBody(body))
	require.NoError(t, err)

	result, err := svc.ProcessWebhook(ctx, body, signBody(body))
	require.NoError(t, err)
	assert.True(t, result.Duplicate)

	// Replay must not extend the entitlement or post a second ledger line.
	reloaded := reloadCustomer(t, db, user.ID)
	assert.Equal(t, fake.Now().AddDate(0, 1, 0).Unix(), reloaded.SubscriptionEndsAt.Unix())
	assert.Len(t, ledgerRows(t, db, user.ID), 1)
}

func TestCompletedAttributesAndCreditsReferral(t *testing.T) {
	svc, db, fake := setupPaymentService(t)
	referrer := createCustomer(t, db, fake, "REFER123")
	referred := createCustomer(t, db, fake, "")
	ctx := context.Background()

	body := webhookBody(t, paymentdomain.Event{
		ProviderEventID: "evt_ref_1",
		EventType:       paymentdomain.EventTypeCompleted,
		CustomerEmail:   referred.Email,
		OrderTotalCents: 3300,
		ReferralCode:    "refer123",
	})
	_, err := svc.ProcessWebhook(ctx, body, signBody(body))
	require.NoError(t, err)

	var referral affiliatedomain.Referral
	require.NoError(t, db.First(&referral, "referred_id = ?", referred.ID).Error)
	assert.Equal(t, referrer.ID, referral.ReferrerID)
	assert.Equal(t, affiliatedomain.ReferralConverted, referral.Status)
	require.NotNil(t, referral.ConvertedAt)

	rows := ledgerRows(t, db, referrer.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, ledgerdomain.TransactionTypeCommission, rows[0].Type)
	assert.Equal(t, int64(990), rows[0].AmountCents)

	assert.Equal(t, int64(990), reloadCustomer(t, db, referrer.ID).AffiliateEarningsCents)
}

func TestCompletedRecurringCommission(t *testing.T) {
	svc, db, fake := setupPaymentService(t)
	referrer := createCustomer(t, db, fake, "REFER456")
	referred := createCustomer(t, db, fake, "")
	ctx := context.Background()

	for _, eventID := range []string{"evt_rec_1", "evt_rec_2"} {
		body := webhookBody(t, paymentdomain.Event{
			ProviderEventID: eventID,
			EventType:       paymentdomain.EventTypeCompleted,
			CustomerEmail:   referred.Email,
			OrderTotalCents: 3300,
			ReferralCode:    "REFER456",
		})
		_, err := svc.ProcessWebhook(ctx, body, signBody(body))
		require.NoError(t, err)
	}

	// The commission recurs on every billing charge of the referred user.
	rows := ledgerRows(t, db, referrer.ID)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1980), reloadCustomer(t, db, referrer.ID).AffiliateEarningsCents)
}

func TestCompletedIgnoresSelfReferral(t *testing.T) {
	svc, db, fake := setupPaymentService(t)
	user := createCustomer(t, db, fake, "MYOWN123")
	ctx := context.Background()

	body := webhookBody(t, paymentdomain.Event{
		ProviderEventID: "evt_self",
		EventType:       paymentdomain.EventTypeCompleted,
		CustomerEmail:   user.Email,
		OrderTotalCents: 3300,
		ReferralCode:    "MYOWN123",
	})
	_, err := svc.ProcessWebhook(ctx, body, signBody(body))
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&affiliatedomain.Referral{}).Where("referred_id = ?", user.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCompletedFirstReferrerWins(t *testing.T) {
	svc, db, fake := setupPaymentService(t)
	first := createCustomer(t, db, fake, "FIRST111")
	second := createCustomer(t, db, fake, "SECOND22")
	referred := createCustomer(t, db, fake, "")
	ctx := context.Background()

	for i, code := range []string{"FIRST111", "SECOND22"} {
		body := webhookBody(t, paymentdomain.Event{
			ProviderEventID: "evt_win_" + string(rune('a'+i)),
			EventType:       paymentdomain.EventTypeCompleted,
			CustomerEmail:   referred.Email,
			OrderTotalCents: 3300,
			ReferralCode:    code,
		})
		_, err := svc.ProcessWebhook(ctx, body, signBody(body))
		require.NoError(t, err)
	}

	var referral affiliatedomain.Referral
	require.NoError(t, db.First(&referral, "referred_id = ?", referred.ID).Error)
	assert.Equal(t, first.ID, referral.ReferrerID)
	assert.Empty(t, ledgerRows(t, db, second.ID))
}

func TestRefundedDeactivatesAndExpiresReferral(t *testing.T) {
	svc, db, fake := setupPaymentService(t)
	referrer := createCustomer(t, db, fake, "REFER789")
	referred := createCustomer(t, db, fake, "")
	ctx := context.Background()

	charge := webhookBody(t, paymentdomain.Event{
		ProviderEventID: "evt_chg_1",
		EventType:       paymentdomain.EventTypeCompleted,
		CustomerEmail:   referred.Email,
		OrderTotalCents: 3300,
		ReferralCode:    "REFER789",
	})
	_, err := svc.ProcessWebhook(ctx, charge, signBody(charge))
	require.NoError(t, err)

	fake.Advance(10 * 24 * time.Hour)

	refund := webhookBody(t, paymentdomain.Event{
		ProviderEventID: "evt_rfd_1",
		EventType:       paymentdomain.EventTypeRefunded,
		CustomerEmail:   referred.Email,
		OrderTotalCents: 3300,
	})
	result, err := svc.ProcessWebhook(ctx, refund, signBody(refund))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.EventTypeRefunded, result.EventType)

	reloaded := reloadCustomer(t, db, referred.ID)
	assert.Equal(t, userdomain.SubscriptionExpired, reloaded.SubscriptionStatus)

	var referral affiliatedomain.Referral
	require.NoError(t, db.First(&referral, "referred_id = ?", referred.ID).Error)
	assert.Equal(t, affiliatedomain.ReferralExpired, referral.Status)

	// Commission already credited is never clawed back.
	require.Len(t, ledgerRows(t, db, referrer.ID), 1)
}

func TestRefundedOutsideWindowKeepsReferral(t *testing.T) {
	svc, db, fake := setupPaymentService(t)
	createCustomer(t, db, fake, "REFER999")
	referred := createCustomer(t, db, fake, "")
	ctx := context.Background()

	charge := webhookBody(t, paymentdomain.Event{
		ProviderEventID: "evt_chg_2",
		EventType:       paymentdomain.EventTypeCompleted,
		CustomerEmail:   referred.Email,
		OrderTotalCents: 3300,
		ReferralCode:    "REFER999",
	})
	_, err := svc.ProcessWebhook(ctx, charge, signBody(charge))
	require.NoError(t, err)

	fake.Advance(31 * 24 * time.Hour)

	refund := webhookBody(t, paymentdomain.Event{
		ProviderEventID: "evt_rfd_2",
		EventType:       paymentdomain.EventTypeRefunded,
		CustomerEmail:   referred.Email,
		OrderTotalCents: 3300,
	})
	_, err = svc.ProcessWebhook(ctx, refund, signBody(refund))
	require.NoError(t, err)

	var referral affiliatedomain.Referral
	require.NoError(t, db.First(&referral, "referred_id = ?", referred.ID).Error)
	assert.Equal(t, affiliatedomain.ReferralConverted, referral.Status)
}
