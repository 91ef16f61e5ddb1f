package dto

import (
	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/api/validation"
)

type CreateMemberRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Name     string `json:"name" validate:"required,max=255"`
	Phone    string `json:"phone" validate:"max=50"`
	Role     string `json:"role" validate:"required,oneof=leader member client"`
}

func (r CreateMemberRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type UpdateUserRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=255"`
	Phone *string `json:"phone" validate:"omitempty,max=50"`
	Role  *string `json:"role" validate:"omitempty,oneof=leader member client"`
}

func (r UpdateUserRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type SuspendRequest struct {
	Suspended *bool `json:"suspended" validate:"required"`
}

func (r SuspendRequest) Validate() map[string]string {
	return validation.Struct(r)
}

// DeleteUserRequest names the member who takes over an organization.
type DeleteUserRequest struct {
	SuccessorID *uuid.UUID `json:"successor_id"`
}

type PermissionUpdateRequest struct {
	Status *bool `json:"status" validate:"required"`
}

func (r PermissionUpdateRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type SubscribeResponse struct {
	IsSubscribed bool `json:"is_subscribed"`
}
