// Package domain contains the violation event log and scoring types.
package domain

import (
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ViolationType distinguishes a blocked access attempt from the user turning
// their filtering off. The two carry very different penalties.
type ViolationType string

const (
	ViolationAttempt       ViolationType = "attempt"
	ViolationManualDisable ViolationType = "manual_disable"
)

func (t ViolationType) Valid() bool {
	return t == ViolationAttempt || t == ViolationManualDisable
}

// Violation is an append-only event row. Never updated or deleted.
type Violation struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID  `gorm:"not null;index" json:"user_id"`
	RuleID    *snowflake.ID `gorm:"index" json:"rule_id,omitempty"`
	Type      ViolationType `gorm:"type:text;not null" json:"type"`
	CreatedAt time.Time     `gorm:"not null;index" json:"created_at"`
}

// TableName sets the database table name.
func (Violation) TableName() string { return "violations" }

// StatusLabel buckets a score for display.
type StatusLabel string

const (
	StatusActive StatusLabel = "ACTIVE"
	StatusAtRisk StatusLabel = "AT_RISK"
	StatusBroken StatusLabel = "BROKEN"
)

// LabelForScore maps a score to its display label. Bounds are exclusive:
// 80 is AT_RISK, 50 is BROKEN.
func LabelForScore(score int) StatusLabel {
	switch {
	case score > 80:
		return StatusActive
	case score > 50:
		return StatusAtRisk
	default:
		return StatusBroken
	}
}

// StreakDays derives the consecutive-clean-day count from the streak start.
// The stored streak_days column is a cache of this value, recomputed whenever
// the user row is written.
func StreakDays(startedAt *time.Time, now time.Time) int {
	if startedAt == nil {
		return 0
	}
	start := startOfDay(*startedAt)
	today := startOfDay(now)
	if today.Before(start) {
		return 0
	}
	// Rounding absorbs DST days that are not exactly 24h long.
	return int(math.Round(today.Sub(start).Hours()/24)) + 1
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
