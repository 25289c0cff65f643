package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

// Repository methods take the *gorm.DB explicitly so services can run them
// inside their own transactions.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	// FindByIDForUpdate locks the user row for the duration of the enclosing
	// transaction. Every read-modify-write on score, streak, balance or
	// subscription fields must go through this.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	FindByAffiliateCode(ctx context.Context, db *gorm.DB, code string) (*User, error)
	UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
	ListTopEarners(ctx context.Context, db *gorm.DB, limit int) ([]User, error)
}
