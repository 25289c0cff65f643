package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/steadfastapp/steadfast/internal/user/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() userdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *userdomain.User) error {
	return db.WithContext(ctx).Create(user).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*userdomain.User, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*userdomain.User, error) {
	var user userdomain.User
	stmt := db.WithContext(ctx)
	// SQLite has a single writer and rejects FOR UPDATE, so the lock is only
	// emitted on dialects that support it.
	if db.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := stmt.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*userdomain.User, error) {
	return r.findOne(ctx, db, "lower(email) = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *repo) FindByAffiliateCode(ctx context.Context, db *gorm.DB, code string) (*userdomain.User, error) {
	return r.findOne(ctx, db, "affiliate_code = ?", code)
}

func (r *repo) UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	return db.WithContext(ctx).Model(&userdomain.User{}).Where("id = ?", id).Updates(fields).Error
}

func (r *repo) ListTopEarners(ctx context.Context, db *gorm.DB, limit int) ([]userdomain.User, error) {
	var users []userdomain.User
	err := db.WithContext(ctx).
		Where("affiliate_earnings_cents > 0").
		Order("affiliate_earnings_cents DESC, id ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*userdomain.User, error) {
	var user userdomain.User
	err := db.WithContext(ctx).Where(query, args...).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
