package migration

import (
	activitydomain "github.com/outboundiq/costwatch/internal/activity/domain"
	"github.com/outboundiq/costwatch/internal/config"
	costsdomain "github.com/outboundiq/costwatch/internal/costs/domain"
	usagedomain "github.com/outboundiq/costwatch/internal/usage/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// sqlite dev databases migrate through gorm.
			return conn.AutoMigrate(
				&usagedomain.UsageRecord{},
				&activitydomain.ActivityRecord{},
				&costsdomain.MonthlySummary{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
