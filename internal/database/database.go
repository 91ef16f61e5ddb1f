package database

import (
	"fmt"
	"log/slog"

	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/pkg/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg *config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Warn)
	if cfg.SSLMode == "disable" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying db: %w", err)
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Info("connected to database", "host", cfg.Host, "database", cfg.Name)

	return db, nil
}

// AllModels lists every table in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.EmergencyContact{},
		&models.SecuritySetting{},
		&models.NotificationPreference{},
		&models.DisplayPreference{},
		&models.SocialLinks{},
		&models.Permission{},
		&models.Form{},
		&models.FormField{},
		&models.FormSubmission{},
		&models.SubmissionData{},
		&models.Project{},
		&models.ProjectUser{},
		&models.Task{},
		&models.TaskUserAssign{},
		&models.IndividualTask{},
		&models.BusinessLead{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
