package models

import "github.com/google/uuid"

// Profile satellites are 1:1 with a user and created alongside it.

type EmergencyContact struct {
	Base
	UserID       uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Name         string    `json:"name"`
	Relationship string    `json:"relationship"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
}

func (EmergencyContact) TableName() string {
	return "emergency_contacts"
}

type SecuritySetting struct {
	Base
	UserID           uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	TwoFactorEnabled bool      `gorm:"default:false" json:"two_factor_enabled"`
	LoginAlerts      bool      `gorm:"default:true" json:"login_alerts"`
}

func (SecuritySetting) TableName() string {
	return "security_settings"
}

type NotificationPreference struct {
	Base
	UserID        uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	EmailEnabled  bool      `gorm:"default:true" json:"email_enabled"`
	PushEnabled   bool      `gorm:"default:true" json:"push_enabled"`
	TaskUpdates   bool      `gorm:"default:true" json:"task_updates"`
	ProjectUpdate bool      `gorm:"default:true" json:"project_updates"`
}

func (NotificationPreference) TableName() string {
	return "notification_preferences"
}

type DisplayPreference struct {
	Base
	UserID   uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Theme    string    `gorm:"default:'light'" json:"theme"`
	Language string    `gorm:"default:'en'" json:"language"`
	Timezone string    `gorm:"default:'UTC'" json:"timezone"`
}

func (DisplayPreference) TableName() string {
	return "display_preferences"
}

type SocialLinks struct {
	Base
	UserID   uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Website  string    `json:"website"`
	LinkedIn string    `gorm:"column:linkedin" json:"linkedin"`
	Twitter  string    `json:"twitter"`
	Facebook string    `json:"facebook"`
	GitHub   string    `gorm:"column:github" json:"github"`
}

func (SocialLinks) TableName() string {
	return "social_links"
}
