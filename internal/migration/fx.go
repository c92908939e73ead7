package migration

import (
	authdomain "github.com/smallbiznis/tenantry/internal/auth/domain"
	billingdomain "github.com/smallbiznis/tenantry/internal/billing/domain"
	"github.com/smallbiznis/tenantry/internal/config"
	workspacedomain "github.com/smallbiznis/tenantry/internal/workspace/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// Non-postgres databases are development conveniences; let gorm
		// derive the schema from the models instead of versioned SQL.
		return conn.AutoMigrate(
			&authdomain.User{},
			&authdomain.Session{},
			&authdomain.LoginCode{},
			&workspacedomain.Organization{},
			&workspacedomain.OrganizationMember{},
			&workspacedomain.OrganizationInvitation{},
			&billingdomain.Subscription{},
		)
	}),
)
