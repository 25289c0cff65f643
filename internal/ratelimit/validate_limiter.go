package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/steadfastapp/steadfast/internal/config"
	"go.uber.org/zap"
)

const keyValidateIP = "affiliate:validate:ip:%s"

// ValidateLimiter throttles the public affiliate code validation endpoint per
// client IP. Without a redis address it is disabled and allows everything;
// when redis is down requests pass through rather than failing checkout.
type ValidateLimiter struct {
	enabled bool
	bucket  *TokenBucket
	log     *zap.Logger
	rate    float64
	burst   int
}

func NewValidateLimiter(cfg config.Config, log *zap.Logger) *ValidateLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return &ValidateLimiter{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
	})
	return &ValidateLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		log:     log.Named("ratelimit.validate"),
		rate:    cfg.RateLimit.ValidateRate,
		burst:   cfg.RateLimit.ValidateBurst,
	}
}

func (l *ValidateLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *ValidateLimiter) Allow(ctx context.Context, clientIP string) bool {
	if !l.Enabled() {
		return true
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyValidateIP, strings.TrimSpace(clientIP)), l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limit check failed, allowing request", zap.Error(err))
		return true
	}
	return res.Allowed
}
