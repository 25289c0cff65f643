// Package domain contains referral rows and the affiliate code/commission
// rules.
package domain

import (
	"crypto/rand"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ReferralStatus is a closed set. Legal transitions are pending->converted
// and pending->expired (plus converted->expired when the referred
// subscription later lapses); nothing ever moves back to pending.
type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralConverted ReferralStatus = "converted"
	ReferralExpired   ReferralStatus = "expired"
)

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to ReferralStatus) bool {
	switch from {
	case ReferralPending:
		return to == ReferralConverted || to == ReferralExpired
	case ReferralConverted:
		return to == ReferralExpired
	default:
		return false
	}
}

// Referral links a referred signup to its referrer. referred_id is unique:
// attribution is first-referrer-wins and immutable.
type Referral struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	ReferrerID  snowflake.ID   `gorm:"not null;index" json:"referrer_id"`
	ReferredID  snowflake.ID   `gorm:"not null;uniqueIndex" json:"referred_id"`
	Status      ReferralStatus `gorm:"type:text;not null" json:"status"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	ConvertedAt *time.Time     `json:"converted_at,omitempty"`
}

// TableName sets the database table name.
func (Referral) TableName() string { return "affiliate_referrals" }

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewCode generates a shareable referral code. The alphabet drops 0/O/1/I to
// keep codes readable over the phone.
func NewCode(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(buf)
}

// CommissionCents computes the recurring per-period commission on a billing
// charge, rounded to the nearest cent.
func CommissionCents(orderTotalCents int64, rate float64) int64 {
	return int64(math.Round(float64(orderTotalCents) * rate))
}
