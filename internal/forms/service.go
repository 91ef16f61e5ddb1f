package forms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/scope"
	"github.com/hugh/bizops/internal/storage"
	"github.com/tidwall/gjson"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrFormNotFound = errors.New("form not found")

// Service manages form definitions. Answers are handled by the submission
// store; removing a form or one of its fields removes the answers with it.
type Service struct {
	db     *gorm.DB
	blobs  storage.Store
	logger *slog.Logger
}

func NewService(db *gorm.DB, blobs storage.Store, logger *slog.Logger) *Service {
	return &Service{db: db, blobs: blobs, logger: logger}
}

// FieldInput describes one field. ID is set when updating an existing field.
type FieldInput struct {
	ID         *uuid.UUID
	Type       models.FieldType
	Label      string
	IsRequired bool
	Options    []byte
}

type FormInput struct {
	Title       string
	Description string
	Fields      []FieldInput
}

// FormUpdate replaces the field list when Fields is non-nil. Fields left out
// are deleted together with their answers.
type FormUpdate struct {
	Title       *string
	Description *string
	Fields      []FieldInput
}

func checkFields(fields []FieldInput) *ValidationError {
	errs := make(map[string]string)
	for i, f := range fields {
		prefix := fmt.Sprintf("fields.%d.", i)
		if !f.Type.Valid() {
			errs[prefix+"type"] = "The selected type is invalid."
		}
		if strings.TrimSpace(f.Label) == "" {
			errs[prefix+"label"] = "The label field is required."
		}
		if f.Type.IsChoice() {
			opts := gjson.ParseBytes(f.Options)
			if len(f.Options) == 0 || !opts.IsArray() || len(opts.Array()) == 0 {
				errs[prefix+"options"] = "Choice fields need at least one option."
			}
		} else if len(f.Options) > 0 && !gjson.ValidBytes(f.Options) {
			errs[prefix+"options"] = "The options field must be valid JSON."
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func buildField(formID uuid.UUID, order int, in FieldInput) models.FormField {
	f := models.FormField{
		FormID:     formID,
		Type:       in.Type,
		Label:      strings.TrimSpace(in.Label),
		IsRequired: in.IsRequired,
		OrderIndex: order,
	}
	if len(in.Options) > 0 {
		f.Options = datatypes.JSON(in.Options)
	}
	return f
}

func (s *Service) Create(ctx context.Context, p scope.Principal, in FormInput) (*models.Form, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, Invalid("title", "The title field is required.")
	}
	if verr := checkFields(in.Fields); verr != nil {
		return nil, verr
	}

	form := &models.Form{
		AdminID:     p.OrgID,
		CreatedBy:   p.UserID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Fields").Create(form).Error; err != nil {
			return fmt.Errorf("creating form: %w", err)
		}
		for i, fin := range in.Fields {
			field := buildField(form.ID, i, fin)
			if err := tx.Create(&field).Error; err != nil {
				return fmt.Errorf("creating field %d: %w", i, err)
			}
			form.Fields = append(form.Fields, field)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("created form", "form_id", form.ID, "fields", len(form.Fields))
	return form, nil
}

func (s *Service) List(ctx context.Context, p scope.Principal, search string, offset, limit int) ([]models.Form, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Form{}).Scopes(scope.Apply(p, scope.Forms))
	if search != "" {
		query = query.Where("LOWER(forms.title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting forms: %w", err)
	}

	var list []models.Form
	err := query.
		Preload("Fields", fieldOrder).
		Order("forms.created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, 0, fmt.Errorf("listing forms: %w", err)
	}
	return list, total, nil
}

func fieldOrder(db *gorm.DB) *gorm.DB {
	return db.Order("order_index ASC, created_at ASC")
}

// Get loads a form visible to p with its fields in display order.
func (s *Service) Get(ctx context.Context, p scope.Principal, id uuid.UUID) (*models.Form, error) {
	var form models.Form
	err := s.db.WithContext(ctx).
		Scopes(scope.Apply(p, scope.Forms)).
		Preload("Fields", fieldOrder).
		Where("forms.id = ?", id).
		First(&form).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, fmt.Errorf("loading form: %w", err)
	}
	return &form, nil
}

func (s *Service) Update(ctx context.Context, p scope.Principal, id uuid.UUID, in FormUpdate) (*models.Form, error) {
	form, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, Invalid("title", "The title field is required.")
	}
	if in.Fields != nil {
		if verr := checkFields(in.Fields); verr != nil {
			return nil, verr
		}
	}

	current := make(map[uuid.UUID]models.FormField, len(form.Fields))
	for _, f := range form.Fields {
		current[f.ID] = f
	}
	for i, f := range in.Fields {
		if f.ID != nil {
			if _, ok := current[*f.ID]; !ok {
				return nil, Invalid(fmt.Sprintf("fields.%d.id", i), "The field does not belong to this form.")
			}
		}
	}

	var files []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{}
		if in.Title != nil {
			updates["title"] = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			updates["description"] = *in.Description
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.Form{}).Where("id = ?", form.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("updating form: %w", err)
			}
		}
		if in.Fields == nil {
			return nil
		}

		keep := make(map[uuid.UUID]bool)
		for i, fin := range in.Fields {
			if fin.ID == nil {
				field := buildField(form.ID, i, fin)
				if err := tx.Create(&field).Error; err != nil {
					return fmt.Errorf("creating field %d: %w", i, err)
				}
				continue
			}
			keep[*fin.ID] = true
			next := buildField(form.ID, i, fin)
			err := tx.Model(&models.FormField{}).Where("id = ?", *fin.ID).Updates(map[string]interface{}{
				"type":        next.Type,
				"label":       next.Label,
				"is_required": next.IsRequired,
				"options":     next.Options,
				"order_index": i,
			}).Error
			if err != nil {
				return fmt.Errorf("updating field %d: %w", i, err)
			}
		}

		var dropped []models.FormField
		for fid, f := range current {
			if !keep[fid] {
				dropped = append(dropped, f)
			}
		}
		removed, err := removeFields(tx, dropped)
		files = removed
		return err
	})
	if err != nil {
		return nil, err
	}

	s.discard(ctx, files)
	return s.Get(ctx, p, id)
}

// removeFields deletes fields and their answers inside tx and returns the
// stored paths of upload answers that went with them.
func removeFields(tx *gorm.DB, fields []models.FormField) ([]string, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(fields))
	var uploads []uuid.UUID
	for _, f := range fields {
		ids = append(ids, f.ID)
		if f.Type.IsUpload() {
			uploads = append(uploads, f.ID)
		}
	}

	var files []string
	if len(uploads) > 0 {
		err := tx.Model(&models.SubmissionData{}).
			Where("field_id IN ? AND value IS NOT NULL AND value <> ''", uploads).
			Pluck("value", &files).Error
		if err != nil {
			return nil, fmt.Errorf("collecting files: %w", err)
		}
	}

	if err := tx.Unscoped().Where("field_id IN ?", ids).Delete(&models.SubmissionData{}).Error; err != nil {
		return nil, fmt.Errorf("deleting answers: %w", err)
	}
	if err := tx.Unscoped().Where("id IN ?", ids).Delete(&models.FormField{}).Error; err != nil {
		return nil, fmt.Errorf("deleting fields: %w", err)
	}
	return files, nil
}

// Delete removes the form, its fields, its submissions and their answers in
// one transaction. Uploaded files are removed afterwards.
func (s *Service) Delete(ctx context.Context, p scope.Principal, id uuid.UUID) error {
	form, err := s.Get(ctx, p, id)
	if err != nil {
		return err
	}

	var files []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removed, err := removeFields(tx, form.Fields)
		if err != nil {
			return err
		}
		files = removed

		subs := tx.Session(&gorm.Session{NewDB: true}).Model(&models.FormSubmission{}).Select("id").Where("form_id = ?", form.ID)
		if err := tx.Unscoped().Where("submission_id IN (?)", subs).Delete(&models.SubmissionData{}).Error; err != nil {
			return fmt.Errorf("deleting answers: %w", err)
		}
		if err := tx.Where("form_id = ?", form.ID).Delete(&models.FormSubmission{}).Error; err != nil {
			return fmt.Errorf("deleting submissions: %w", err)
		}
		if err := tx.Delete(&models.Form{}, "id = ?", form.ID).Error; err != nil {
			return fmt.Errorf("deleting form: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.discard(ctx, files)
	s.logger.Info("deleted form", "form_id", form.ID)
	return nil
}

func (s *Service) discard(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := s.blobs.Delete(ctx, p); err != nil {
			s.logger.Warn("failed to delete stored file", "path", p, "error", err)
		}
	}
}
