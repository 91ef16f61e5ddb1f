package models

import "github.com/google/uuid"

// Permission gates one HTTP method on one feature for one user.
type Permission struct {
	Base
	UserID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_permission_user_feature_method" json:"user_id"`
	Feature string    `gorm:"not null;uniqueIndex:idx_permission_user_feature_method" json:"feature"`
	Method  string    `gorm:"not null;uniqueIndex:idx_permission_user_feature_method" json:"method"`
	Status  bool      `gorm:"not null;default:false" json:"status"`
}

func (Permission) TableName() string {
	return "permissions"
}
