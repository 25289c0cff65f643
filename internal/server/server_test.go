package server

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	affiliatedomain "github.com/steadfastapp/steadfast/internal/affiliate/domain"
	affiliaterepo "github.com/steadfastapp/steadfast/internal/affiliate/repository"
	affiliateservice "github.com/steadfastapp/steadfast/internal/affiliate/service"
	authdomain "github.com/steadfastapp/steadfast/internal/auth/domain"
	authrepo "github.com/steadfastapp/steadfast/internal/auth/repository"
	authservice "github.com/steadfastapp/steadfast/internal/auth/service"
	"github.com/steadfastapp/steadfast/internal/auth/session"
	blockruledomain "github.com/steadfastapp/steadfast/internal/blockrule/domain"
	blockrulerepo "github.com/steadfastapp/steadfast/internal/blockrule/repository"
	blockruleservice "github.com/steadfastapp/steadfast/internal/blockrule/service"
	"github.com/steadfastapp/steadfast/internal/clock"
	compliancedomain "github.com/steadfastapp/steadfast/internal/compliance/domain"
	compliancerepo "github.com/steadfastapp/steadfast/internal/compliance/repository"
	complianceservice "github.com/steadfastapp/steadfast/internal/compliance/service"
	"github.com/steadfastapp/steadfast/internal/config"
	giftcodedomain "github.com/steadfastapp/steadfast/internal/giftcode/domain"
	giftcoderepo "github.com/steadfastapp/steadfast/internal/giftcode/repository"
	giftcodeservice "github.com/steadfastapp/steadfast/internal/giftcode/service"
	ledgerdomain "github.com/steadfastapp/steadfast/internal/ledger/domain"
	ledgerrepo "github.com/steadfastapp/steadfast/internal/ledger/repository"
	"github.com/steadfastapp/steadfast/internal/observability/metrics"
	paymentdomain "github.com/steadfastapp/steadfast/internal/payment/domain"
	paymentrepo "github.com/steadfastapp/steadfast/internal/payment/repository"
	paymentservice "github.com/steadfastapp/steadfast/internal/payment/service"
	"github.com/steadfastapp/steadfast/internal/providers/dns"
	"github.com/steadfastapp/steadfast/internal/providers/email"
	"github.com/steadfastapp/steadfast/internal/ratelimit"
	userdomain "github.com/steadfastapp/steadfast/internal/user/domain"
	userrepo "github.com/steadfastapp/steadfast/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNode = func() *snowflake.Node {
	node, err := snowflake.NewNode(7)
	if err != nil {
		panic(err)
	}
	return node
}()

type serverFixture struct {
	server  *Server
	engine  *gin.Engine
	db      *gorm.DB
	clock   *clock.FakeClock
	authSvc authdomain.Service
}

func setupServer(t *testing.T) *serverFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&userdomain.User{},
		&authdomain.Session{},
		&compliancedomain.Violation{},
		&affiliatedomain.Referral{},
		&ledgerdomain.Transaction{},
		&giftcodedomain.GiftCode{},
		&paymentdomain.EventRecord{},
		&blockruledomain.BlockRule{},
	))

	// Sessions outlive the subscription so gate tests can advance the clock
	// past the entitlement without also expiring the login.
	cfg := config.Config{
		SessionTTLHours:      24 * 90,
		PaymentWebhookSecret: "test-webhook-secret",
	}
	fake := clock.NewFakeClock(time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	policy := config.NewStaticPolicyHolder(config.DefaultPolicyConfig())
	nopMetrics := metrics.NewNop()
	users := userrepo.Provide()
	ledgerRepo := ledgerrepo.Provide()
	referrals := affiliaterepo.Provide()
	emailProv := &email.NoOpProvider{}

	authSvc := authservice.NewService(authservice.ServiceParam{
		DB: db, Log: log, GenID: testNode, Clock: fake, Cfg: cfg,
		Users: users, Sessions: authrepo.New(db),
	})
	complianceSvc := complianceservice.NewService(complianceservice.ServiceParam{
		DB: db, Log: log, GenID: testNode, Clock: fake, Policy: policy,
		Repo: compliancerepo.Provide(), Users: users, Metrics: nopMetrics,
	})
	affiliateSvc := affiliateservice.NewService(affiliateservice.ServiceParam{
		DB: db, Log: log, GenID: testNode, Clock: fake, Policy: policy,
		Repo: referrals, Users: users, Ledger: ledgerRepo,
		Email: emailProv, Metrics: nopMetrics,
	})
	giftCodeSvc := giftcodeservice.NewService(giftcodeservice.ServiceParam{
		DB: db, Log: log, GenID: testNode, Clock: fake,
		Repo: giftcoderepo.Provide(), Users: users, Metrics: nopMetrics,
	})
	paymentSvc := paymentservice.NewService(paymentservice.ServiceParam{
		DB: db, Log: log, GenID: testNode, Clock: fake, Policy: policy, Cfg: cfg,
		Events: paymentrepo.Provide(), Users: users, Referrals: referrals,
		Ledger: ledgerRepo, DNS: &dns.NoOpClient{}, Email: emailProv, Metrics: nopMetrics,
	})
	blockRuleSvc := blockruleservice.NewService(blockruleservice.ServiceParam{
		DB: db, Repo: blockrulerepo.Provide(),
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware(log))

	srv := NewServer(ServerParams{
		Gin:             engine,
		Cfg:             cfg,
		Clock:           fake,
		Sessions:        session.NewManager(cfg),
		AuthSvc:         authSvc,
		ComplianceSvc:   complianceSvc,
		AffiliateSvc:    affiliateSvc,
		GiftCodeSvc:     giftCodeSvc,
		PaymentSvc:      paymentSvc,
		BlockRuleSvc:    blockRuleSvc,
		ValidateLimiter: ratelimit.NewValidateLimiter(cfg, log),
	})

	return &serverFixture{server: srv, engine: engine, db: db, clock: fake, authSvc: authSvc}
}

// loginAs registers a fresh account and returns its user row and bearer token.
func (f *serverFixture) loginAs(t *testing.T, role userdomain.Role, activeSubscription bool) (*userdomain.User, string) {
	t.Helper()

	ctx := context.Background()
	emailAddr := fmt.Sprintf("user%s@example.com", testNode.Generate())
	user, err := f.authSvc.Register(ctx, authdomain.RegisterRequest{
		Email:    emailAddr,
		Password: "long enough password",
	})
	require.NoError(t, err)

	fields := map[string]any{"role": role}
	if activeSubscription {
		fields["subscription_status"] = userdomain.SubscriptionActive
		fields["subscription_ends_at"] = f.clock.Now().AddDate(0, 1, 0)
	}
	require.NoError(t, f.db.Model(&userdomain.User{}).Where("id = ?", user.ID).Updates(fields).Error)

	result, err := f.authSvc.Login(ctx, authdomain.LoginRequest{
		Email:    emailAddr,
		Password: "long enough password",
	})
	require.NoError(t, err)
	return user, result.RawToken
}

func (f *serverFixture) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestAuthRequired(t *testing.T) {
	f := setupServer(t)

	rec := f.request(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Type)

	rec = f.request(t, http.MethodGet, "/api/me", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubscriptionGate(t *testing.T) {
	f := setupServer(t)

	_, token := f.loginAs(t, userdomain.RoleNormal, false)
	rec := f.request(t, http.MethodGet, "/api/compliance/status", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "subscription_required", payload.Type)
	assert.Equal(t, "Active subscription required", payload.Message)

	_, token = f.loginAs(t, userdomain.RoleNormal, true)
	rec = f.request(t, http.MethodGet, "/api/compliance/status", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubscriptionGateAfterExpiry(t *testing.T) {
	f := setupServer(t)

	_, token := f.loginAs(t, userdomain.RoleNormal, true)
	rec := f.request(t, http.MethodGet, "/api/affiliate/stats", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	f.clock.Advance(32 * 24 * time.Hour)
	rec = f.request(t, http.MethodGet, "/api/affiliate/stats", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "subscription_required", decodeError(t, rec).Type)
}

func TestAdminGate(t *testing.T) {
	f := setupServer(t)
	body := map[string]any{"duration_months": 3}

	_, token := f.loginAs(t, userdomain.RoleNormal, true)
	rec := f.request(t, http.MethodPost, "/api/gift-codes", token, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decodeError(t, rec).Type)

	_, token = f.loginAs(t, userdomain.RoleAdmin, false)
	rec = f.request(t, http.MethodPost, "/api/gift-codes", token, body)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestDomainErrorEnvelope(t *testing.T) {
	f := setupServer(t)

	_, token := f.loginAs(t, userdomain.RoleNormal, false)
	rec := f.request(t, http.MethodPost, "/api/gift-codes/redeem", token, map[string]any{"code": "NOSUCHCODE99"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "not_found", payload.Type)
	assert.Equal(t, "Invalid or already redeemed code", payload.Message)
}

func TestStorageOutageMapsToServiceUnavailable(t *testing.T) {
	f := setupServer(t)
	f.engine.GET("/boom", func(c *gin.Context) {
		AbortWithError(c, fmt.Errorf("load user: %w", driver.ErrBadConn))
	})

	rec := f.request(t, http.MethodGet, "/boom", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "service_unavailable", payload.Type)
	assert.Equal(t, "Service temporarily unavailable", payload.Message)
}

func TestMapErrorTaxonomy(t *testing.T) {
	cases := []struct {
		err    error
		status int
		typ    string
	}{
		{giftcodedomain.ErrInvalidDuration, http.StatusBadRequest, "validation_error"},
		{authdomain.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized"},
		{giftcodedomain.ErrAdminRequired, http.StatusForbidden, "forbidden"},
		{ErrSubscriptionRequired, http.StatusForbidden, "subscription_required"},
		{affiliatedomain.ErrCodeNotFound, http.StatusNotFound, "not_found"},
		{affiliatedomain.ErrInsufficientBalance, http.StatusConflict, "invalid_state"},
		{authdomain.ErrUserExists, http.StatusConflict, "conflict"},
		{ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{context.DeadlineExceeded, http.StatusServiceUnavailable, "service_unavailable"},
		{gorm.ErrInvalidDB, http.StatusServiceUnavailable, "service_unavailable"},
		{fmt.Errorf("some unexpected failure"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, payload := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.typ)
		assert.Equal(t, tc.typ, payload.Type, tc.typ)
	}
}
