package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var ErrRuleNotFound = errors.New("block rule not found")

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*BlockRule, error)
	// LatestActive returns the highest-version active rule set for the
	// platform, (nil, nil) when none is published.
	LatestActive(ctx context.Context, db *gorm.DB, platform Platform) (*BlockRule, error)
	ListActive(ctx context.Context, db *gorm.DB) ([]BlockRule, error)
}
