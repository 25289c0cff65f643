package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert records the referral. A row already attributed to this
	// referred_id wins; the insert then succeeds without writing anything.
	Insert(ctx context.Context, db *gorm.DB, referral *Referral) error
	FindByReferredID(ctx context.Context, db *gorm.DB, referredID snowflake.ID) (*Referral, error)
	// FindByReferredIDForUpdate locks the referral row for a status
	// transition inside the enclosing transaction.
	FindByReferredIDForUpdate(ctx context.Context, db *gorm.DB, referredID snowflake.ID) (*Referral, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
	CountByReferrer(ctx context.Context, db *gorm.DB, referrerID snowflake.ID) (int64, error)
	CountByReferrerAndStatus(ctx context.Context, db *gorm.DB, referrerID snowflake.ID, status ReferralStatus) (int64, error)
	ListByReferrer(ctx context.Context, db *gorm.DB, referrerID snowflake.ID) ([]Referral, error)
}
