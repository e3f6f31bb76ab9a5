package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/kadkita/kadkita/internal/config"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// Embedded migrations are postgres dialect; sqlite installs
		// (tests, scratch environments) build their schema directly.
		if cfg.DBType != "postgres" {
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
