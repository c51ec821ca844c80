package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/leadmarket/leadnotify/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createLeadsTable(),
		createBuyersTable(),
		createNotificationAttemptsTable(),
	})

	return m.Migrate()
}

func createLeadsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_leads",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.LeadModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_leads_service_location ON leads (service_type, location)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.LeadModel{})
		},
	}
}

func createBuyersTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_buyers",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.BuyerModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_buyers_email_enabled ON buyers (email_enabled)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BuyerModel{})
		},
	}
}

func createNotificationAttemptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_notification_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.AttemptModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_attempts_lead_id ON notification_attempts (lead_id)`,
				`CREATE INDEX IF NOT EXISTS idx_attempts_attempted_at ON notification_attempts (attempted_at)`,
				`CREATE INDEX IF NOT EXISTS idx_attempts_stale ON notification_attempts (attempted_at) WHERE status IN ('PENDING', 'RETRYING')`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.AttemptModel{})
		},
	}
}
