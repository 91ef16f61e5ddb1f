package dto

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/api/validation"
)

type FieldRequest struct {
	ID         *uuid.UUID      `json:"id"`
	Type       string          `json:"type" validate:"required"`
	Label      string          `json:"label" validate:"required,max=255"`
	IsRequired bool            `json:"is_required"`
	Options    json.RawMessage `json:"options"`
}

type FormRequest struct {
	Title       string         `json:"title" validate:"required,max=255"`
	Description string         `json:"description"`
	Fields      []FieldRequest `json:"fields" validate:"dive"`
}

func (r FormRequest) Validate() map[string]string {
	return validation.Struct(r)
}

// FormUpdateRequest replaces the field list when fields is present.
type FormUpdateRequest struct {
	Title       *string        `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string        `json:"description"`
	Fields      []FieldRequest `json:"fields" validate:"omitempty,dive"`
}

func (r FormUpdateRequest) Validate() map[string]string {
	return validation.Struct(r)
}
