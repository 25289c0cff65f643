// Package domain contains persistence models for user accounts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Role controls access to admin-only operations.
type Role string

const (
	RoleNormal Role = "normal"
	RoleAdmin  Role = "admin"
)

// SubscriptionStatus is the entitlement state of a user.
type SubscriptionStatus string

const (
	SubscriptionNone    SubscriptionStatus = "none"
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionExpired SubscriptionStatus = "expired"
)

// User is the central account row. Compliance and affiliate aggregates live
// here as denormalized fields maintained transactionally alongside the event
// rows (violations, transactions) they are derived from.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Email        string       `gorm:"type:text;not null;uniqueIndex" json:"email"`
	Name         string       `gorm:"type:text;not null" json:"name"`
	Role         Role         `gorm:"type:text;not null;default:normal" json:"role"`
	PasswordHash string       `gorm:"type:text" json:"-"`

	ComplianceScore      int        `gorm:"not null;default:100" json:"compliance_score"`
	StreakDays           int        `gorm:"not null;default:0" json:"streak_days"`
	StreakStartedAt      *time.Time `json:"streak_started_at,omitempty"`
	TotalBlockedAttempts int        `gorm:"not null;default:0" json:"total_blocked_attempts"`
	LastViolationAt      *time.Time `json:"last_violation_at,omitempty"`

	AffiliateCode          *string `gorm:"type:text;uniqueIndex" json:"affiliate_code,omitempty"`
	AffiliateEarningsCents int64   `gorm:"not null;default:0" json:"affiliate_earnings_cents"`

	SubscriptionStatus SubscriptionStatus `gorm:"type:text;not null;default:none" json:"subscription_status"`
	SubscriptionEndsAt *time.Time         `json:"subscription_ends_at,omitempty"`

	DNSProfileID *string `gorm:"type:text" json:"dns_profile_id,omitempty"`
	DNSEndpoint  *string `gorm:"type:text" json:"dns_endpoint,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// IsAdmin reports whether the user may call admin-only operations.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
