package models

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus int

const (
	TaskPending TaskStatus = iota
	TaskInProgress
	TaskDone
	TaskBlocked
)

func (s TaskStatus) Valid() bool {
	return s >= TaskPending && s <= TaskBlocked
}

// Task belongs to a project, or stands alone when ProjectID is nil.
type Task struct {
	Base
	ProjectID   *uuid.UUID `gorm:"type:uuid;index" json:"project_id,omitempty"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `gorm:"not null;default:0;index" json:"status"`
	Priority    Priority   `gorm:"not null;default:'medium'" json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	AdminID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"admin_id"`
	CreatedBy   uuid.UUID  `gorm:"type:uuid;not null" json:"created_by"`

	Assignments []TaskUserAssign `gorm:"foreignKey:TaskID" json:"assignments,omitempty"`
}

func (Task) TableName() string {
	return "tasks"
}

// TaskUserAssign assigns a user to a task with per-user tracking.
type TaskUserAssign struct {
	Base
	TaskID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_task_user" json:"task_id"`
	UserID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_task_user;index" json:"user_id"`
	DueDate  *time.Time `json:"due_date,omitempty"`
	Status   TaskStatus `gorm:"not null;default:0" json:"status"`
	Feedback string     `gorm:"type:text" json:"feedback,omitempty"`

	Items []IndividualTask `gorm:"foreignKey:AssignID" json:"items,omitempty"`
}

func (TaskUserAssign) TableName() string {
	return "task_user_assigns"
}

// IndividualTask is a checklist item under one assignment.
type IndividualTask struct {
	Base
	AssignID  uuid.UUID  `gorm:"type:uuid;index;not null" json:"assign_id"`
	Title     string     `gorm:"not null" json:"title"`
	Status    TaskStatus `gorm:"not null;default:0" json:"status"`
	IsChecked bool       `gorm:"default:false" json:"is_checked"`
}

func (IndividualTask) TableName() string {
	return "individual_tasks"
}
