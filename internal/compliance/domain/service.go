package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidViolationType = errors.New("invalid violation type")
)

type RecordViolationRequest struct {
	UserID snowflake.ID
	Type   ViolationType
	RuleID *snowflake.ID
}

type RecordViolationResult struct {
	NewScore    int    `json:"new_score"`
	StreakReset bool   `json:"streak_reset"`
	Message     string `json:"message"`
}

type Status struct {
	ComplianceScore      int         `json:"compliance_score"`
	StreakDays           int         `json:"streak_days"`
	TotalBlockedAttempts int         `json:"total_blocked_attempts"`
	LastViolationAt      *time.Time  `json:"last_violation_at,omitempty"`
	ViolationsToday      int         `json:"violations_today"`
	Label                StatusLabel `json:"status"`
}

type RecoverResult struct {
	Success  bool   `json:"success"`
	NewScore int    `json:"new_score"`
	Message  string `json:"message"`
}

type Service interface {
	// CompleteOnboarding initializes the score and streak fields
	// (score=100, streak=1) once the user finishes setup.
	CompleteOnboarding(ctx context.Context, userID snowflake.ID) error
	RecordViolation(ctx context.Context, req RecordViolationRequest) (*RecordViolationResult, error)
	GetStatus(ctx context.Context, userID snowflake.ID) (*Status, error)
	// RecoverScore grants one point back on a violation-free day. Each call
	// re-checks the violation log, not prior calls, so several clean-day calls
	// each increment.
	RecoverScore(ctx context.Context, userID snowflake.ID) (*RecoverResult, error)
}
