package dto

import (
	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/api/validation"
)

type ProjectRequest struct {
	Name        string      `json:"name" validate:"required,max=255"`
	Description string      `json:"description"`
	Status      int         `json:"status" validate:"min=0,max=3"`
	Priority    string      `json:"priority" validate:"omitempty,oneof=low medium high"`
	StartDate   *Date       `json:"start_date"`
	EndDate     *Date       `json:"end_date"`
	ClientID    *uuid.UUID  `json:"client_id"`
	MemberIDs   []uuid.UUID `json:"member_ids"`
}

func (r ProjectRequest) Validate() map[string]string {
	errs := validation.Struct(r)
	if r.StartDate.Ptr() != nil && r.EndDate.Ptr() != nil && r.EndDate.Before(r.StartDate.Time) {
		errs["end_date"] = "The end date must be a date after or equal to start date."
	}
	return errs
}

type ProjectUpdateRequest struct {
	Name        *string    `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority" validate:"omitempty,oneof=low medium high"`
	StartDate   *Date      `json:"start_date"`
	EndDate     *Date      `json:"end_date"`
	ClientID    *uuid.UUID `json:"client_id"`
}

func (r ProjectUpdateRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type ProgressRequest struct {
	Progress *int `json:"progress" validate:"required"`
}

func (r ProgressRequest) Validate() map[string]string {
	return validation.Struct(r)
}

// StatusRequest replaces a status. Range checks belong to the service.
type StatusRequest struct {
	Status *int `json:"status" validate:"required"`
}

func (r StatusRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type MembersRequest struct {
	MemberIDs []uuid.UUID `json:"member_ids"`
}

type TaskRequest struct {
	ProjectID   *uuid.UUID  `json:"project_id"`
	Title       string      `json:"title" validate:"required,max=255"`
	Description string      `json:"description"`
	Status      int         `json:"status" validate:"min=0,max=3"`
	Priority    string      `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     *Date       `json:"due_date"`
	AssigneeIDs []uuid.UUID `json:"assignee_ids"`
}

func (r TaskRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type TaskUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
	Status      *int    `json:"status" validate:"omitempty,min=0,max=3"`
	Priority    *string `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     *Date   `json:"due_date"`
}

func (r TaskUpdateRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type AssignRequest struct {
	UserID  uuid.UUID `json:"user_id"`
	DueDate *Date     `json:"due_date"`
}

func (r AssignRequest) Validate() map[string]string {
	errs := validation.Struct(r)
	if r.UserID == uuid.Nil {
		errs["user_id"] = "The user id field is required."
	}
	return errs
}

type AssignmentUpdateRequest struct {
	DueDate  *Date   `json:"due_date"`
	Status   *int    `json:"status" validate:"omitempty,min=0,max=3"`
	Feedback *string `json:"feedback" validate:"omitempty,max=5000"`
}

func (r AssignmentUpdateRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type ItemRequest struct {
	Title string `json:"title" validate:"required,max=255"`
}

func (r ItemRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type ItemUpdateRequest struct {
	Title  *string `json:"title" validate:"omitempty,min=1,max=255"`
	Status *int    `json:"status" validate:"omitempty,min=0,max=3"`
}

func (r ItemUpdateRequest) Validate() map[string]string {
	return validation.Struct(r)
}
