package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldEmail    FieldType = "email"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldDropdown FieldType = "dropdown"
	FieldRadio    FieldType = "radio"
	FieldCheckbox FieldType = "checkbox"
	FieldFile     FieldType = "file"
	FieldImage    FieldType = "image"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldTextarea, FieldEmail, FieldNumber, FieldDate,
		FieldDropdown, FieldRadio, FieldCheckbox, FieldFile, FieldImage:
		return true
	}
	return false
}

// IsUpload reports whether answers to this field are stored in the blob store.
func (t FieldType) IsUpload() bool {
	return t == FieldFile || t == FieldImage
}

func (t FieldType) IsChoice() bool {
	return t == FieldDropdown || t == FieldRadio || t == FieldCheckbox
}

type Form struct {
	Base
	AdminID     uuid.UUID `gorm:"type:uuid;index;not null" json:"admin_id"`
	CreatedBy   uuid.UUID `gorm:"type:uuid;index;not null" json:"created_by"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `json:"description,omitempty"`

	Fields []FormField `gorm:"foreignKey:FormID" json:"fields"`
}

func (Form) TableName() string {
	return "forms"
}

type FormField struct {
	Base
	FormID     uuid.UUID      `gorm:"type:uuid;index;not null" json:"form_id"`
	Type       FieldType      `gorm:"not null" json:"type"`
	Label      string         `gorm:"not null" json:"label"`
	IsRequired bool           `gorm:"default:false" json:"is_required"`
	Options    datatypes.JSON `json:"options,omitempty"`
	OrderIndex int            `gorm:"not null;default:0" json:"order_index"`
}

func (FormField) TableName() string {
	return "form_fields"
}

// Key is the synthetic request key answers for this field are submitted under.
func (f FormField) Key() string {
	return FieldKey(f.ID)
}

func FieldKey(id uuid.UUID) string {
	return "field_" + id.String()
}

type FormSubmission struct {
	Base
	FormID      uuid.UUID `gorm:"type:uuid;index;not null" json:"form_id"`
	SubmittedBy uuid.UUID `gorm:"type:uuid;index;not null" json:"submitted_by"`
	AdminID     uuid.UUID `gorm:"type:uuid;index;not null" json:"admin_id"`
	Status      int       `gorm:"not null;default:0" json:"status"`

	Form *Form            `gorm:"foreignKey:FormID" json:"form,omitempty"`
	Data []SubmissionData `gorm:"foreignKey:SubmissionID" json:"data,omitempty"`
}

func (FormSubmission) TableName() string {
	return "form_submissions"
}

type SubmissionData struct {
	Base
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_submission_field" json:"submission_id"`
	FieldID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_submission_field" json:"field_id"`
	Value        *string   `gorm:"type:text" json:"value"`
}

func (SubmissionData) TableName() string {
	return "submission_data"
}
