package dto

import (
	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/api/validation"
)

type LeadRequest struct {
	BusinessName string     `json:"business_name" validate:"required,max=255"`
	ContactName  string     `json:"contact_name" validate:"max=255"`
	Email        *string    `json:"email" validate:"omitempty,email,max=255"`
	Phone        *string    `json:"phone" validate:"omitempty,max=50"`
	Website      *string    `json:"website" validate:"omitempty,max=255"`
	BusinessType string     `json:"business_type" validate:"max=100"`
	Location     string     `json:"location" validate:"max=255"`
	Status       string     `json:"status" validate:"max=50"`
	Notes        string     `json:"notes"`
	AssignedTo   *uuid.UUID `json:"assigned_to"`
}

func (r LeadRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type LeadUpdateRequest struct {
	BusinessName *string    `json:"business_name" validate:"omitempty,min=1,max=255"`
	ContactName  *string    `json:"contact_name" validate:"omitempty,max=255"`
	Email        *string    `json:"email" validate:"omitempty,email,max=255"`
	Phone        *string    `json:"phone" validate:"omitempty,max=50"`
	Website      *string    `json:"website" validate:"omitempty,max=255"`
	BusinessType *string    `json:"business_type" validate:"omitempty,max=100"`
	Location     *string    `json:"location" validate:"omitempty,max=255"`
	Status       *string    `json:"status" validate:"omitempty,max=50"`
	Notes        *string    `json:"notes"`
	AssignedTo   *uuid.UUID `json:"assigned_to"`
}

func (r LeadUpdateRequest) Validate() map[string]string {
	return validation.Struct(r)
}
