// Package domain contains gift code rows and their lifecycle rules.
package domain

import (
	"crypto/rand"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusRedeemed  Status = "redeemed"
	StatusVoid      Status = "void"
)

// GiftCode grants a fixed-duration entitlement without payment. Codes are
// strictly single-use: available -> redeemed happens exactly once, atomically
// with the entitlement grant.
type GiftCode struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	Code           string        `gorm:"type:text;not null;uniqueIndex" json:"code"`
	DurationMonths int           `gorm:"not null" json:"duration_months"`
	Status         Status        `gorm:"type:text;not null" json:"status"`
	RedeemedByID   *snowflake.ID `gorm:"index" json:"redeemed_by_id,omitempty"`
	CreatedAt      time.Time     `gorm:"not null" json:"created_at"`
	RedeemedAt     *time.Time    `json:"redeemed_at,omitempty"`
}

// TableName sets the database table name.
func (GiftCode) TableName() string { return "gift_codes" }

// ValidDuration reports whether months is a sellable gift length.
func ValidDuration(months int) bool {
	switch months {
	case 1, 3, 6, 12:
		return true
	default:
		return false
	}
}

const codeLength = 12
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewCode generates a human-enterable gift code. Stored uppercase; redemption
// lookups normalize input to uppercase.
func NewCode() string {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(buf)
}
