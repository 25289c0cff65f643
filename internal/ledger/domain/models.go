// Package domain contains the append-only financial records. Balances are
// always reconstructed from these rows; they are never updated or deleted.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type TransactionType string

const (
	TransactionTypeSubscription TransactionType = "subscription"
	TransactionTypeCommission   TransactionType = "commission"
	TransactionTypePayout       TransactionType = "payout"
)

// Transaction is a single ledger line. Credits are positive, debits
// (payouts) negative.
type Transaction struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID      snowflake.ID    `gorm:"not null;index" json:"user_id"`
	Type        TransactionType `gorm:"type:text;not null;index" json:"type"`
	AmountCents int64           `gorm:"not null" json:"amount_cents"`
	Description string          `gorm:"type:text;not null" json:"description"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "transactions" }
