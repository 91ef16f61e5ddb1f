package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleLeader Role = "leader"
	RoleMember Role = "member"
	RoleClient Role = "client"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleLeader, RoleMember, RoleClient:
		return true
	}
	return false
}

// User is either an organization root (ParentID == nil, role admin) or a
// member of exactly one root. Organizations are one level deep.
type User struct {
	Base
	Email           string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash    string     `gorm:"not null" json:"-"`
	Name            string     `json:"name"`
	Phone           string     `json:"phone,omitempty"`
	Role            Role       `gorm:"not null;default:'admin';index" json:"role"`
	ParentID        *uuid.UUID `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	IsSubscribed    bool       `gorm:"default:false" json:"is_subscribed"`
	IsSuspended     bool       `gorm:"default:false" json:"is_suspended"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	AvatarPath      string     `json:"avatar_path,omitempty"`

	Parent                 *User                   `gorm:"foreignKey:ParentID" json:"-"`
	EmergencyContact       *EmergencyContact       `gorm:"foreignKey:UserID" json:"emergency_contact,omitempty"`
	SecuritySetting        *SecuritySetting        `gorm:"foreignKey:UserID" json:"security_setting,omitempty"`
	NotificationPreference *NotificationPreference `gorm:"foreignKey:UserID" json:"notification_preference,omitempty"`
	DisplayPreference      *DisplayPreference      `gorm:"foreignKey:UserID" json:"display_preference,omitempty"`
	SocialLinks            *SocialLinks            `gorm:"foreignKey:UserID" json:"social_links,omitempty"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsVerified() bool {
	return u.EmailVerifiedAt != nil
}

func (u *User) IsOrganizationRoot() bool {
	return u.ParentID == nil
}
