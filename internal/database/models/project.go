package models

import (
	"time"

	"github.com/google/uuid"
)

type ProjectStatus int

const (
	ProjectPending ProjectStatus = iota
	ProjectActive
	ProjectCompleted
	ProjectOnHold
)

func (s ProjectStatus) Valid() bool {
	return s >= ProjectPending && s <= ProjectOnHold
}

type Project struct {
	Base
	ProjectCode   string        `gorm:"uniqueIndex;not null" json:"project_code"`
	Name          string        `gorm:"not null" json:"name"`
	Description   string        `json:"description,omitempty"`
	Status        ProjectStatus `gorm:"not null;default:0;index" json:"status"`
	Progress      int           `gorm:"not null;default:0" json:"progress"`
	Priority      Priority      `gorm:"not null;default:'medium'" json:"priority"`
	ThumbnailPath string        `json:"thumbnail_path,omitempty"`
	StartDate     *time.Time    `json:"start_date,omitempty"`
	EndDate       *time.Time    `json:"end_date,omitempty"`
	ClientID      *uuid.UUID    `gorm:"type:uuid;index" json:"client_id,omitempty"`
	AdminID       uuid.UUID     `gorm:"type:uuid;index;not null" json:"admin_id"`
	CreatedBy     uuid.UUID     `gorm:"type:uuid;not null" json:"created_by"`

	Members []ProjectUser `gorm:"foreignKey:ProjectID" json:"members,omitempty"`
	Tasks   []Task        `gorm:"foreignKey:ProjectID" json:"-"`
}

func (Project) TableName() string {
	return "projects"
}

// ProjectUser is the explicit join between projects and their assigned users.
type ProjectUser struct {
	Base
	ProjectID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_project_user" json:"project_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_project_user" json:"user_id"`
}

func (ProjectUser) TableName() string {
	return "project_users"
}
