package users

import (
	"fmt"

	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/permissions"
	"gorm.io/gorm"
)

// Provision creates u's profile satellites and seeds its permissions. It runs
// inside the transaction that created u.
func Provision(tx *gorm.DB, u *models.User) error {
	satellites := []interface{}{
		&models.EmergencyContact{UserID: u.ID},
		&models.SecuritySetting{UserID: u.ID, LoginAlerts: true},
		&models.NotificationPreference{UserID: u.ID, EmailEnabled: true, PushEnabled: true, TaskUpdates: true, ProjectUpdate: true},
		&models.DisplayPreference{UserID: u.ID, Theme: "light", Language: "en", Timezone: "UTC"},
		&models.SocialLinks{UserID: u.ID},
	}
	for _, s := range satellites {
		if err := tx.Create(s).Error; err != nil {
			return fmt.Errorf("creating profile record: %w", err)
		}
	}
	return permissions.Seed(tx, u)
}

// removeOwned hard-deletes u's satellites and permissions.
func removeOwned(tx *gorm.DB, userID interface{}) error {
	owned := []interface{}{
		&models.EmergencyContact{},
		&models.SecuritySetting{},
		&models.NotificationPreference{},
		&models.DisplayPreference{},
		&models.SocialLinks{},
		&models.Permission{},
		&models.ProjectUser{},
	}
	for _, m := range owned {
		if err := tx.Unscoped().Where("user_id = ?", userID).Delete(m).Error; err != nil {
			return fmt.Errorf("deleting owned records: %w", err)
		}
	}
	return nil
}
