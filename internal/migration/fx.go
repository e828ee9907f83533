package migration

import (
	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/domain"
	carrierdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier/domain"
	commissiondomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/commission/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/config"
	dealdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/deal/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, genID *snowflake.Node) error {
		if conn.Name() == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// The embedded migrations target postgres; lighter
			// dialects build their schema from the models.
			if err := conn.AutoMigrate(
				&agentdomain.Agent{},
				&carrierdomain.Carrier{},
				&carrierdomain.CarrierRate{},
				&dealdomain.Deal{},
				&commissiondomain.CommissionSplit{},
				&commissiondomain.SplitAudit{},
			); err != nil {
				return err
			}
		}

		if cfg.IsStandalone() {
			return seed.EnsureDemoAgency(conn, genID)
		}
		return nil
	}),
)
