package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidDuration   = errors.New("Duration must be 1, 3, 6 or 12 months")
	ErrCodeNotRedeemable = errors.New("Invalid or already redeemed code")
	ErrCodeNotDeletable  = errors.New("Only unredeemed codes can be deleted")
	ErrAdminRequired     = errors.New("admin access required")
)

// RedeemResult reports the entitlement granted by a successful redemption.
type RedeemResult struct {
	Code               string    `json:"code"`
	DurationMonths     int       `json:"duration_months"`
	SubscriptionEndsAt time.Time `json:"subscription_ends_at"`
}

type Service interface {
	// Generate creates a fresh available code. Admin only.
	Generate(ctx context.Context, actorID snowflake.ID, durationMonths int) (*GiftCode, error)
	// Redeem consumes a code and extends the caller's subscription. A code
	// redeems at most once regardless of concurrent attempts.
	Redeem(ctx context.Context, userID snowflake.ID, code string) (*RedeemResult, error)
	// Delete removes an available code. Redeemed codes are immutable history.
	Delete(ctx context.Context, actorID snowflake.ID, id snowflake.ID) error
	List(ctx context.Context, actorID snowflake.ID) ([]GiftCode, error)
}
