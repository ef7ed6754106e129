package database

import (
	"gorm.io/gorm"

	"github.com/creditiq/creditiq-api/internal/models"
)

// Migrate applies the schema for all registered models
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.LoanApplication{},
		&models.LoanDecision{},
		&models.AuditLog{},
		&models.Notification{},
		&models.ModelVersion{},
	)
}
