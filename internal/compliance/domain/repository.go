package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, violation *Violation) error
	// CountInRange counts violations with from <= created_at < to.
	CountInRange(ctx context.Context, db *gorm.DB, userID snowflake.ID, from, to time.Time) (int64, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]Violation, error)
}
