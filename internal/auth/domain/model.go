// Package domain contains session types for the auth service. Account rows
// live with the user domain; auth only owns the session table.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Session is a persisted login. Only the SHA-256 hash of the token is
// stored; the raw token exists client-side only.
type Session struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	UserID           snowflake.ID `gorm:"column:user_id;not null;index"`
	SessionTokenHash string       `gorm:"column:session_token_hash;type:text;not null;uniqueIndex"`
	UserAgent        string       `gorm:"column:user_agent;type:text"`
	IPAddress        string       `gorm:"column:ip_address;type:text"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time   `gorm:"column:revoked_at"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null"`
	LastSeenAt       time.Time    `gorm:"column:last_seen_at;not null"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }
