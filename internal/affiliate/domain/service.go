package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrCodeNotFound        = errors.New("affiliate code not found")
	ErrInvalidAmount       = errors.New("Invalid payout amount")
	ErrBelowMinimum        = errors.New("Minimum payout is $10")
	ErrInsufficientBalance = errors.New("Insufficient balance")
	ErrMissingBankDetails  = errors.New("Bank details are required for bank payouts")
	ErrIllegalTransition   = errors.New("illegal referral status transition")
)

// CodeOwner is the public projection returned by code validation. Nothing
// beyond the display name may leak to the checkout page.
type CodeOwner struct {
	Name string `json:"name"`
}

type ReferralView struct {
	ID         snowflake.ID   `json:"id"`
	ReferredID snowflake.ID   `json:"referred_id"`
	Status     ReferralStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
}

type Stats struct {
	AffiliateCode         string         `json:"affiliate_code"`
	TotalEarningsCents    int64          `json:"total_earnings_cents"`
	AvailableBalanceCents int64          `json:"available_balance_cents"`
	TotalReferrals        int64          `json:"total_referrals"`
	ConvertedReferrals    int64          `json:"converted_referrals"`
	ConversionRate        float64        `json:"conversion_rate"`
	Referrals             []ReferralView `json:"referrals"`
}

type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	Name          string `json:"name"`
	AffiliateCode string `json:"affiliate_code"`
	EarningsCents int64  `json:"earnings_cents"`
}

type PayoutMethod string

const (
	PayoutMethodPaypal PayoutMethod = "paypal"
	PayoutMethodBank   PayoutMethod = "bank"
)

type PayoutRequest struct {
	UserID      snowflake.ID `json:"-"`
	AmountCents int64        `json:"amount_cents"`
	Method      PayoutMethod `json:"method"`
	BankDetails string       `json:"bank_details,omitempty"`
}

type PayoutResult struct {
	TransactionID snowflake.ID `json:"transaction_id"`
	AmountCents   int64        `json:"amount_cents"`
	NewBalance    int64        `json:"new_balance_cents"`
	Message       string       `json:"message"`
}

type Service interface {
	// ValidateCode resolves a public referral code to its owner's display
	// name, only while the owner holds an active subscription.
	ValidateCode(ctx context.Context, code string) (*CodeOwner, error)
	GetStats(ctx context.Context, userID snowflake.ID) (*Stats, error)
	GetLeaderboard(ctx context.Context) ([]LeaderboardEntry, error)
	RequestPayout(ctx context.Context, req PayoutRequest) (*PayoutResult, error)
}
