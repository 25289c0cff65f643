package migration

import (
	"github.com/steadfastapp/steadfast/internal/config"
	"github.com/steadfastapp/steadfast/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// Migrations run against postgres only; test databases are built
		// with gorm AutoMigrate instead.
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		}
		return seed.EnsureAdmin(conn, cfg.Bootstrap)
	}),
)
