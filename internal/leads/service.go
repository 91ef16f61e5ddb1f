// Package leads stores business leads and bulk-imports them from
// spreadsheets.
package leads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/scope"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("lead not found")
	ErrDuplicate       = errors.New("a lead with this business name, email, phone or website already exists")
	ErrInvalidAssignee = errors.New("assignee must belong to the organization")
)

const defaultStatus = "new"

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

type LeadInput struct {
	BusinessName string
	ContactName  string
	Email        *string
	Phone        *string
	Website      *string
	BusinessType string
	Location     string
	Status       string
	Notes        string
	AssignedTo   *uuid.UUID
}

type LeadUpdate struct {
	BusinessName *string
	ContactName  *string
	Email        *string
	Phone        *string
	Website      *string
	BusinessType *string
	Location     *string
	Status       *string
	Notes        *string
	AssignedTo   *uuid.UUID
}

type LeadFilter struct {
	Status       string
	BusinessType string
	Search       string
}

// optional maps blank strings to NULL so unique indexes ignore them.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func (s *Service) checkAssignee(ctx context.Context, orgID uuid.UUID, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND (id = ? OR parent_id = ?)", *id, orgID, orgID).
		Count(&n).Error
	if err != nil {
		return fmt.Errorf("checking assignee: %w", err)
	}
	if n == 0 {
		return ErrInvalidAssignee
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p scope.Principal, in LeadInput) (*models.BusinessLead, error) {
	if err := s.checkAssignee(ctx, p.OrgID, in.AssignedTo); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = defaultStatus
	}

	lead := &models.BusinessLead{
		BusinessName: strings.TrimSpace(in.BusinessName),
		ContactName:  in.ContactName,
		Email:        optional(in.Email),
		Phone:        optional(in.Phone),
		Website:      optional(in.Website),
		BusinessType: in.BusinessType,
		Location:     in.Location,
		Status:       in.Status,
		Notes:        in.Notes,
		AssignedTo:   in.AssignedTo,
		AdminID:      p.OrgID,
		CreatedBy:    p.UserID,
	}
	if err := s.db.WithContext(ctx).Create(lead).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating lead: %w", err)
	}
	return lead, nil
}

func (s *Service) List(ctx context.Context, p scope.Principal, f LeadFilter, offset, limit int) ([]models.BusinessLead, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.BusinessLead{}).Scopes(scope.Apply(p, scope.Leads))
	if f.Status != "" {
		query = query.Where("business_leads.status = ?", f.Status)
	}
	if f.BusinessType != "" {
		query = query.Where("business_leads.business_type = ?", f.BusinessType)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		query = query.Where("(LOWER(business_leads.business_name) LIKE ? OR LOWER(business_leads.contact_name) LIKE ? OR LOWER(business_leads.location) LIKE ?)", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting leads: %w", err)
	}

	var leads []models.BusinessLead
	if err := query.Order("business_leads.created_at DESC").Offset(offset).Limit(limit).Find(&leads).Error; err != nil {
		return nil, 0, fmt.Errorf("listing leads: %w", err)
	}
	return leads, total, nil
}

func (s *Service) Get(ctx context.Context, p scope.Principal, id uuid.UUID) (*models.BusinessLead, error) {
	var lead models.BusinessLead
	err := s.db.WithContext(ctx).
		Scopes(scope.Apply(p, scope.Leads)).
		Where("business_leads.id = ?", id).
		First(&lead).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading lead: %w", err)
	}
	return &lead, nil
}

func (s *Service) Update(ctx context.Context, p scope.Principal, id uuid.UUID, in LeadUpdate) (*models.BusinessLead, error) {
	lead, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, p.OrgID, in.AssignedTo); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	set := func(col string, v *string) {
		if v != nil {
			updates[col] = *v
		}
	}
	set("business_name", in.BusinessName)
	set("contact_name", in.ContactName)
	set("business_type", in.BusinessType)
	set("location", in.Location)
	set("status", in.Status)
	set("notes", in.Notes)
	for col, v := range map[string]*string{"email": in.Email, "phone": in.Phone, "website": in.Website} {
		if v != nil {
			updates[col] = optional(v)
		}
	}
	if in.AssignedTo != nil {
		updates["assigned_to"] = *in.AssignedTo
	}
	if len(updates) == 0 {
		return lead, nil
	}

	if err := s.db.WithContext(ctx).Model(lead).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("updating lead: %w", err)
	}
	return s.Get(ctx, p, id)
}

// Delete removes the lead for good so its unique values can be reused.
func (s *Service) Delete(ctx context.Context, p scope.Principal, id uuid.UUID) error {
	lead, err := s.Get(ctx, p, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Unscoped().Delete(lead).Error; err != nil {
		return fmt.Errorf("deleting lead: %w", err)
	}
	return nil
}
