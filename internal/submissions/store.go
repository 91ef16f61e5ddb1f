// Package submissions persists form answers and reshapes them for display.
package submissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/forms"
	"github.com/hugh/bizops/internal/scope"
	"github.com/hugh/bizops/internal/storage"
	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("submission not found")
	ErrMixedForms   = errors.New("submissions belong to different forms")
	ErrFormNotFound = errors.New("form not loaded for submission")

	ErrStatusForbidden = errors.New("only admins and leaders may set a submission's status")
)

// Store writes submissions and their answers. Concurrent updates to the same
// answer are last-writer-wins; there is no version check.
type Store struct {
	db     *gorm.DB
	blobs  storage.Store
	logger *slog.Logger
}

func NewStore(db *gorm.DB, blobs storage.Store, logger *slog.Logger) *Store {
	return &Store{db: db, blobs: blobs, logger: logger}
}

func namespace(formID uuid.UUID) string {
	return "form-submissions/" + formID.String()
}

func orderedFields(db *gorm.DB) *gorm.DB {
	return db.Order("order_index ASC, created_at ASC")
}

// Get loads a submission visible to p together with its form and answers.
func (s *Store) Get(ctx context.Context, p scope.Principal, id uuid.UUID) (*models.FormSubmission, error) {
	var sub models.FormSubmission
	err := s.db.WithContext(ctx).
		Scopes(scope.Apply(p, scope.Submissions)).
		Preload("Form").
		Preload("Form.Fields", orderedFields).
		Preload("Data").
		Where("form_submissions.id = ?", id).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading submission: %w", err)
	}
	return &sub, nil
}

// ListByForm returns one page of the submissions to formID that p may see.
func (s *Store) ListByForm(ctx context.Context, p scope.Principal, formID uuid.UUID, offset, limit int) ([]models.FormSubmission, int64, error) {
	query := s.db.WithContext(ctx).
		Model(&models.FormSubmission{}).
		Scopes(scope.Apply(p, scope.Submissions)).
		Where("form_submissions.form_id = ?", formID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting submissions: %w", err)
	}

	var subs []models.FormSubmission
	err := query.
		Preload("Form").
		Preload("Form.Fields", orderedFields).
		Preload("Data").
		Order("form_submissions.created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&subs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("listing submissions: %w", err)
	}
	return subs, total, nil
}

// Create validates in against form and records one answer row per field.
// Fields must be loaded in display order.
func (s *Store) Create(ctx context.Context, form *models.Form, submitter scope.Principal, status int, in forms.Input) (*models.FormSubmission, error) {
	if status != 0 && !submitter.CanManage() {
		return nil, ErrStatusForbidden
	}
	rules := forms.BuildRules(form.Fields, forms.OpCreate, nil)
	if errs := rules.Validate(in); len(errs) > 0 {
		return nil, &forms.ValidationError{Fields: errs}
	}

	sub := &models.FormSubmission{
		FormID:      form.ID,
		SubmittedBy: submitter.UserID,
		AdminID:     form.AdminID,
		Status:      status,
	}

	var written []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sub).Error; err != nil {
			return fmt.Errorf("creating submission: %w", err)
		}
		for _, f := range form.Fields {
			var raw *string
			if v, ok := in.Values[f.Key()]; ok {
				raw = &v
			}
			data, err := s.RecordAnswer(ctx, tx, sub.ID, f, raw, in.Files[f.Key()])
			if err != nil {
				return err
			}
			if f.Type.IsUpload() && data.Value != nil {
				written = append(written, *data.Value)
			}
			sub.Data = append(sub.Data, *data)
		}
		return nil
	})
	if err != nil {
		s.discard(ctx, written)
		return nil, err
	}

	sub.Form = form
	s.logger.Info("recorded submission", "submission_id", sub.ID, "form_id", form.ID, "answers", len(sub.Data))
	return sub, nil
}

// RecordAnswer stores one answer inside tx. Uploads are written to the blob
// store and their relative path recorded; other values are kept as sent, with
// blank answers stored as NULL.
func (s *Store) RecordAnswer(ctx context.Context, tx *gorm.DB, submissionID uuid.UUID, field models.FormField, raw *string, upload *multipart.FileHeader) (*models.SubmissionData, error) {
	data := &models.SubmissionData{
		SubmissionID: submissionID,
		FieldID:      field.ID,
	}

	if field.Type.IsUpload() {
		if upload != nil {
			rel, err := s.blobs.Put(ctx, namespace(field.FormID), upload)
			if err != nil {
				return nil, fmt.Errorf("storing upload for %s: %w", field.Key(), err)
			}
			data.Value = &rel
		}
	} else {
		data.Value = normalize(raw)
	}

	if err := tx.Create(data).Error; err != nil {
		if field.Type.IsUpload() && data.Value != nil {
			s.discard(ctx, []string{*data.Value})
		}
		return nil, fmt.Errorf("recording answer for %s: %w", field.Key(), err)
	}
	return data, nil
}

// Update rewrites the answers present in the request. Omitted fields keep
// their stored value. A replaced file is removed from the blob store once the
// new path is committed; failing to remove it is logged and ignored.
func (s *Store) Update(ctx context.Context, sub *models.FormSubmission, in forms.Input) (*models.FormSubmission, error) {
	if sub.Form == nil {
		return nil, ErrFormNotFound
	}

	var rows []models.SubmissionData
	if err := s.db.WithContext(ctx).Where("submission_id = ?", sub.ID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading answers: %w", err)
	}
	byField := make(map[uuid.UUID]models.SubmissionData, len(rows))
	stored := make(map[uuid.UUID]string, len(rows))
	for _, row := range rows {
		byField[row.FieldID] = row
		if row.Value != nil {
			stored[row.FieldID] = *row.Value
		}
	}

	rules := forms.BuildRules(sub.Form.Fields, forms.OpUpdate, stored)
	if errs := rules.Validate(in); len(errs) > 0 {
		return nil, &forms.ValidationError{Fields: errs}
	}

	var written, stale []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, f := range sub.Form.Fields {
			key := f.Key()
			var value *string

			switch {
			case f.Type.IsUpload() && in.Files[key] != nil:
				rel, err := s.blobs.Put(ctx, namespace(f.FormID), in.Files[key])
				if err != nil {
					return fmt.Errorf("storing upload for %s: %w", key, err)
				}
				written = append(written, rel)
				if old := stored[f.ID]; old != "" {
					stale = append(stale, old)
				}
				value = &rel
			case !f.Type.IsUpload() && in.Provided(key):
				v := in.Values[key]
				value = normalize(&v)
			default:
				continue
			}

			row, ok := byField[f.ID]
			if !ok {
				row = models.SubmissionData{SubmissionID: sub.ID, FieldID: f.ID, Value: value}
				if err := tx.Create(&row).Error; err != nil {
					return fmt.Errorf("recording answer for %s: %w", key, err)
				}
				continue
			}
			if err := tx.Model(&row).Update("value", value).Error; err != nil {
				return fmt.Errorf("updating answer for %s: %w", key, err)
			}
		}
		return tx.Model(sub).Update("updated_at", time.Now()).Error
	})
	if err != nil {
		s.discard(ctx, written)
		return nil, err
	}

	s.discard(ctx, stale)

	if err := s.db.WithContext(ctx).Where("submission_id = ?", sub.ID).Find(&sub.Data).Error; err != nil {
		return nil, fmt.Errorf("reloading answers: %w", err)
	}
	return sub, nil
}

// UpdateStatus replaces the workflow status. Any integer is accepted, but
// only from an admin or leader.
func (s *Store) UpdateStatus(ctx context.Context, p scope.Principal, sub *models.FormSubmission, status int) error {
	if !p.CanManage() {
		return ErrStatusForbidden
	}
	if err := s.db.WithContext(ctx).Model(sub).Update("status", status).Error; err != nil {
		return fmt.Errorf("updating submission status: %w", err)
	}
	return nil
}

// Delete removes a submission with its answers, then its files.
func (s *Store) Delete(ctx context.Context, sub *models.FormSubmission) error {
	var files []string
	if sub.Form != nil {
		uploads := make(map[uuid.UUID]bool)
		for _, f := range sub.Form.Fields {
			uploads[f.ID] = f.Type.IsUpload()
		}
		for _, d := range sub.Data {
			if uploads[d.FieldID] && d.Value != nil && *d.Value != "" {
				files = append(files, *d.Value)
			}
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("submission_id = ?", sub.ID).Delete(&models.SubmissionData{}).Error; err != nil {
			return fmt.Errorf("deleting answers: %w", err)
		}
		if err := tx.Delete(sub).Error; err != nil {
			return fmt.Errorf("deleting submission: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.discard(ctx, files)
	return nil
}

func (s *Store) discard(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := s.blobs.Delete(ctx, p); err != nil {
			s.logger.Warn("failed to delete stored file", "path", p, "error", err)
		}
	}
}

func normalize(raw *string) *string {
	if raw == nil {
		return nil
	}
	v := strings.TrimSpace(*raw)
	if v == "" {
		return nil
	}
	return &v
}
