// Package domain defines the inbound payment event shape and its processing
// record. One row per provider event keeps webhook handling idempotent:
// retries hit the unique provider_event_id and change nothing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	EventTypeCompleted = "completed"
	EventTypeRefunded  = "refunded"
)

// Event is the parsed webhook payload from the payment provider.
type Event struct {
	ProviderEventID string `json:"event_id"`
	EventType       string `json:"event_type"`
	CustomerEmail   string `json:"customer_email"`
	OrderTotalCents int64  `json:"order_total_cents"`
	ReferralCode    string `json:"referral_code,omitempty"`
}

// EventRecord is the stored processing record for one provider event.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null;uniqueIndex"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	UserID          snowflake.ID   `json:"user_id" gorm:"not null;index"`
	AmountCents     int64          `json:"amount_cents" gorm:"not null"`
	Payload         datatypes.JSON `json:"payload" gorm:"not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }
