package dto

import (
	"time"

	"github.com/hugh/bizops/internal/api/validation"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/scope"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Name     string `json:"name" validate:"required,max=255"`
	Phone    string `json:"phone" validate:"max=50"`
}

func (r RegisterRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r LoginRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type ResendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r ResendRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type AuthResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

type UserDTO struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	Phone           string     `json:"phone,omitempty"`
	Role            string     `json:"role"`
	OrganizationID  string     `json:"organization_id"`
	ParentID        *string    `json:"parent_id,omitempty"`
	IsSubscribed    bool       `json:"is_subscribed"`
	IsSuspended     bool       `json:"is_suspended"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	AvatarURL       string     `json:"avatar_url,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`

	EmergencyContact       *models.EmergencyContact       `json:"emergency_contact,omitempty"`
	SecuritySetting        *models.SecuritySetting        `json:"security_setting,omitempty"`
	NotificationPreference *models.NotificationPreference `json:"notification_preference,omitempty"`
	DisplayPreference      *models.DisplayPreference      `json:"display_preference,omitempty"`
	SocialLinks            *models.SocialLinks            `json:"social_links,omitempty"`
}

// URLer resolves a stored file path.
type URLer interface {
	URL(relPath string) string
}

func NewUserDTO(u *models.User, urls URLer) UserDTO {
	out := UserDTO{
		ID:                     u.ID.String(),
		Email:                  u.Email,
		Name:                   u.Name,
		Phone:                  u.Phone,
		Role:                   string(u.Role),
		OrganizationID:         scope.ResolveOrgID(u).String(),
		IsSubscribed:           u.IsSubscribed,
		IsSuspended:            u.IsSuspended,
		EmailVerifiedAt:        u.EmailVerifiedAt,
		CreatedAt:              u.CreatedAt,
		EmergencyContact:       u.EmergencyContact,
		SecuritySetting:        u.SecuritySetting,
		NotificationPreference: u.NotificationPreference,
		DisplayPreference:      u.DisplayPreference,
		SocialLinks:            u.SocialLinks,
	}
	if u.ParentID != nil {
		p := u.ParentID.String()
		out.ParentID = &p
	}
	if u.AvatarPath != "" && urls != nil {
		out.AvatarURL = urls.URL(u.AvatarPath)
	}
	return out
}

func NewUserDTOs(list []models.User, urls URLer) []UserDTO {
	out := make([]UserDTO, len(list))
	for i := range list {
		out[i] = NewUserDTO(&list[i], urls)
	}
	return out
}
