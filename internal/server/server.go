package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/steadfastapp/steadfast/internal/affiliate"
	affiliatedomain "github.com/steadfastapp/steadfast/internal/affiliate/domain"
	"github.com/steadfastapp/steadfast/internal/auth"
	authdomain "github.com/steadfastapp/steadfast/internal/auth/domain"
	"github.com/steadfastapp/steadfast/internal/auth/session"
	"github.com/steadfastapp/steadfast/internal/blockrule"
	blockruledomain "github.com/steadfastapp/steadfast/internal/blockrule/domain"
	"github.com/steadfastapp/steadfast/internal/clock"
	"github.com/steadfastapp/steadfast/internal/compliance"
	compliancedomain "github.com/steadfastapp/steadfast/internal/compliance/domain"
	"github.com/steadfastapp/steadfast/internal/config"
	"github.com/steadfastapp/steadfast/internal/giftcode"
	giftcodedomain "github.com/steadfastapp/steadfast/internal/giftcode/domain"
	"github.com/steadfastapp/steadfast/internal/ledger"
	"github.com/steadfastapp/steadfast/internal/observability"
	obsmiddleware "github.com/steadfastapp/steadfast/internal/observability/logger"
	obsmetrics "github.com/steadfastapp/steadfast/internal/observability/metrics"
	"github.com/steadfastapp/steadfast/internal/payment"
	paymentdomain "github.com/steadfastapp/steadfast/internal/payment/domain"
	"github.com/steadfastapp/steadfast/internal/providers/dns"
	"github.com/steadfastapp/steadfast/internal/providers/email"
	"github.com/steadfastapp/steadfast/internal/ratelimit"
	"github.com/steadfastapp/steadfast/internal/user"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	config.Module,
	observability.Module,
	fx.Provide(registerGin),
	auth.Module,
	user.Module,
	compliance.Module,
	affiliate.Module,
	ledger.Module,
	giftcode.Module,
	payment.Module,
	blockrule.Module,
	email.Module,
	dns.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(log.Named("http")))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware(log.Named("http.errors")))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(log, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	clock           clock.Clock
	sessions        *session.Manager
	authSvc         authdomain.Service
	complianceSvc   compliancedomain.Service
	affiliateSvc    affiliatedomain.Service
	giftCodeSvc     giftcodedomain.Service
	paymentSvc      paymentdomain.Service
	blockRuleSvc    blockruledomain.Service
	validateLimiter *ratelimit.ValidateLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Clock           clock.Clock
	Sessions        *session.Manager
	AuthSvc         authdomain.Service
	ComplianceSvc   compliancedomain.Service
	AffiliateSvc    affiliatedomain.Service
	GiftCodeSvc     giftcodedomain.Service
	PaymentSvc      paymentdomain.Service
	BlockRuleSvc    blockruledomain.Service
	ValidateLimiter *ratelimit.ValidateLimiter
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		clock:           p.Clock,
		sessions:        p.Sessions,
		authSvc:         p.AuthSvc,
		complianceSvc:   p.ComplianceSvc,
		affiliateSvc:    p.AffiliateSvc,
		giftCodeSvc:     p.GiftCodeSvc,
		paymentSvc:      p.PaymentSvc,
		blockRuleSvc:    p.BlockRuleSvc,
		validateLimiter: p.ValidateLimiter,
	}

	s.registerPublicRoutes()
	s.registerAPIRoutes()
	s.registerAdminRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPublicRoutes() {
	s.engine.POST("/api/auth/register", s.Register)
	s.engine.POST("/api/auth/login", s.Login)
	s.engine.POST("/api/auth/logout", s.Logout)

	s.engine.GET("/api/affiliate/validate", s.RateLimitValidate(), s.ValidateAffiliateCode)
	s.engine.GET("/api/rules", s.GetBlockRules)

	s.engine.POST("/webhooks/payment", s.PaymentWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	api.GET("/me", s.Me)
	api.POST("/onboarding/complete", s.CompleteOnboarding)
	api.GET("/affiliate/leaderboard", s.GetAffiliateLeaderboard)
	api.POST("/gift-codes/redeem", s.RedeemGiftCode)

	gated := api.Group("", s.SubscriptionRequired())
	gated.POST("/violations", s.RecordViolation)
	gated.GET("/compliance/status", s.GetComplianceStatus)
	gated.POST("/compliance/recover", s.RecoverScore)
	gated.GET("/affiliate/stats", s.GetAffiliateStats)
	gated.POST("/affiliate/payout", s.RequestPayout)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api", s.AuthRequired(), s.RequireAdmin())

	admin.POST("/gift-codes", s.CreateGiftCode)
	admin.GET("/gift-codes", s.ListGiftCodes)
	admin.DELETE("/gift-codes/:id", s.DeleteGiftCode)
}
