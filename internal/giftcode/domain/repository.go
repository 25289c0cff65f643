package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var ErrGiftCodeNotFound = errors.New("gift code not found")

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, gc *GiftCode) error
	// FindByCodeForUpdate locks the row for the duration of the surrounding
	// transaction. Returns (nil, nil) when no row matches.
	FindByCodeForUpdate(ctx context.Context, db *gorm.DB, code string) (*GiftCode, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*GiftCode, error)
	UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	List(ctx context.Context, db *gorm.DB) ([]GiftCode, error)
}
