// Package seed bootstraps the first admin account from environment
// configuration. It runs after migrations and is a no-op when the account
// already exists or no bootstrap credentials are set.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/steadfastapp/steadfast/internal/auth/password"
	"github.com/steadfastapp/steadfast/internal/config"
	userdomain "github.com/steadfastapp/steadfast/internal/user/domain"
	"gorm.io/gorm"
)

func EnsureAdmin(db *gorm.DB, cfg config.BootstrapConfig) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" || cfg.AdminPassword == "" {
		return nil
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&userdomain.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		hashed, err := password.Hash(cfg.AdminPassword)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		return tx.Create(&userdomain.User{
			ID:                 node.Generate(),
			Email:              email,
			Name:               "Steadfast Admin",
			Role:               userdomain.RoleAdmin,
			PasswordHash:       hashed,
			ComplianceScore:    100,
			SubscriptionStatus: userdomain.SubscriptionNone,
			CreatedAt:          now,
			UpdatedAt:          now,
		}).Error
	})
}
