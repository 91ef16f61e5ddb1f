package users

import (
	"errors"

	"github.com/hugh/bizops/internal/database/models"
)

var ErrUnknownSection = errors.New("unknown profile section")

// SectionInput is a full replacement of one profile satellite.
type SectionInput interface {
	model() interface{}
	columns() map[string]interface{}
}

type EmergencyContactInput struct {
	Name         string `json:"name" validate:"max=255"`
	Relationship string `json:"relationship" validate:"max=100"`
	Phone        string `json:"phone" validate:"max=50"`
	Email        string `json:"email" validate:"omitempty,email"`
}

func (EmergencyContactInput) model() interface{} { return &models.EmergencyContact{} }

func (in EmergencyContactInput) columns() map[string]interface{} {
	return map[string]interface{}{
		"name":         in.Name,
		"relationship": in.Relationship,
		"phone":        in.Phone,
		"email":        in.Email,
	}
}

type SecurityInput struct {
	TwoFactorEnabled bool `json:"two_factor_enabled"`
	LoginAlerts      bool `json:"login_alerts"`
}

func (SecurityInput) model() interface{} { return &models.SecuritySetting{} }

func (in SecurityInput) columns() map[string]interface{} {
	return map[string]interface{}{
		"two_factor_enabled": in.TwoFactorEnabled,
		"login_alerts":       in.LoginAlerts,
	}
}

type NotificationInput struct {
	EmailEnabled   bool `json:"email_enabled"`
	PushEnabled    bool `json:"push_enabled"`
	TaskUpdates    bool `json:"task_updates"`
	ProjectUpdates bool `json:"project_updates"`
}

func (NotificationInput) model() interface{} { return &models.NotificationPreference{} }

func (in NotificationInput) columns() map[string]interface{} {
	return map[string]interface{}{
		"email_enabled":  in.EmailEnabled,
		"push_enabled":   in.PushEnabled,
		"task_updates":   in.TaskUpdates,
		"project_update": in.ProjectUpdates,
	}
}

type DisplayInput struct {
	Theme    string `json:"theme" validate:"omitempty,oneof=light dark system"`
	Language string `json:"language" validate:"omitempty,max=10"`
	Timezone string `json:"timezone" validate:"omitempty,timezone"`
}

func (DisplayInput) model() interface{} { return &models.DisplayPreference{} }

func (in DisplayInput) columns() map[string]interface{} {
	return map[string]interface{}{
		"theme":    in.Theme,
		"language": in.Language,
		"timezone": in.Timezone,
	}
}

type SocialInput struct {
	Website  string `json:"website" validate:"omitempty,url"`
	LinkedIn string `json:"linkedin" validate:"omitempty,url"`
	Twitter  string `json:"twitter" validate:"omitempty,url"`
	Facebook string `json:"facebook" validate:"omitempty,url"`
	GitHub   string `json:"github" validate:"omitempty,url"`
}

func (SocialInput) model() interface{} { return &models.SocialLinks{} }

func (in SocialInput) columns() map[string]interface{} {
	return map[string]interface{}{
		"website":  in.Website,
		"linkedin": in.LinkedIn,
		"twitter":  in.Twitter,
		"facebook": in.Facebook,
		"github":   in.GitHub,
	}
}

// NewSectionInput returns an empty input for the named section, ready to be
// decoded into.
func NewSectionInput(section string) (SectionInput, error) {
	switch section {
	case "emergency-contact":
		return &EmergencyContactInput{}, nil
	case "security":
		return &SecurityInput{}, nil
	case "notifications":
		return &NotificationInput{}, nil
	case "display":
		return &DisplayInput{}, nil
	case "social":
		return &SocialInput{}, nil
	}
	return nil, ErrUnknownSection
}
