package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/widget-claims/internal/repository"
	"gorm.io/gorm"
)

// Indexes (email, unique token, subscriber id, ip_hash+created_at) come from the model tags.
func createWidgetClaimsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_widget_claims",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.ClaimModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ClaimModel{})
		},
	}
}
