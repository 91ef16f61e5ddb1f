package models

import "github.com/google/uuid"

type BusinessLead struct {
	Base
	BusinessName string     `gorm:"uniqueIndex;not null" json:"business_name"`
	ContactName  string     `json:"contact_name,omitempty"`
	Email        *string    `gorm:"uniqueIndex" json:"email,omitempty"`
	Phone        *string    `gorm:"uniqueIndex" json:"phone,omitempty"`
	Website      *string    `gorm:"uniqueIndex" json:"website,omitempty"`
	BusinessType string     `gorm:"index" json:"business_type,omitempty"`
	Location     string     `json:"location,omitempty"`
	Status       string     `gorm:"default:'new'" json:"status"`
	Notes        string     `gorm:"type:text" json:"notes,omitempty"`
	AssignedTo   *uuid.UUID `gorm:"type:uuid;index" json:"assigned_to,omitempty"`
	AdminID      uuid.UUID  `gorm:"type:uuid;index;not null" json:"admin_id"`
	CreatedBy    uuid.UUID  `gorm:"type:uuid;index;not null" json:"created_by"`
}

func (BusinessLead) TableName() string {
	return "business_leads"
}
