// Package projects tracks projects, their tasks, per-user task assignments
// and the checklist items under each assignment.
package projects

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
	ErrNotFound      = errors.New("project not found")
	ErrInvalidMember = errors.New("assigned users must belong to the organization")
	ErrInvalidClient = errors.New("client must be a client of the organization")
)

const (
	codePrefix         = "PRJ-"
	thumbnailNamespace = "project-thumbnails"
)

type Service struct {
	db     *gorm.DB
	blobs  storage.Store
	logger *slog.Logger
}

func NewService(db *gorm.DB, blobs storage.Store, logger *slog.Logger) *Service {
	return &Service{db: db, blobs: blobs, logger: logger}
}

type ProjectInput struct {
	Name        string
	Description string
	Status      models.ProjectStatus
	Priority    models.Priority
	StartDate   *time.Time
	EndDate     *time.Time
	ClientID    *uuid.UUID
	MemberIDs   []uuid.UUID
}

type ProjectUpdate struct {
	Name        *string
	Description *string
	Priority    *models.Priority
	StartDate   *time.Time
	EndDate     *time.Time
	ClientID    *uuid.UUID
}

type ProjectFilter struct {
	Status *models.ProjectStatus
	Search string
}

// newCode returns an unused project code.
func newCode(tx *gorm.DB) (string, error) {
	for i := 0; i < 5; i++ {
		code := codePrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
		var n int64
		if err := tx.Unscoped().Model(&models.Project{}).Where("project_code = ?", code).Count(&n).Error; err != nil {
			return "", fmt.Errorf("checking project code: %w", err)
		}
		if n == 0 {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique project code")
}

// checkUsers verifies every id is a user of orgID, optionally restricted to
// one role.
func checkUsers(tx *gorm.DB, orgID uuid.UUID, ids []uuid.UUID, role models.Role) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	unique := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}

	query := tx.Model(&models.User{}).
		Where("id IN ?", ids).
		Where("(id = ? OR parent_id = ?)", orgID, orgID)
	if role != "" {
		query = query.Where("role = ?", role)
	}
	var n int64
	if err := query.Count(&n).Error; err != nil {
		return false, fmt.Errorf("checking users: %w", err)
	}
	return int(n) == len(unique), nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// CreateProject stores a project and its member list in one transaction.
func (s *Service) CreateProject(ctx context.Context, p scope.Principal, in ProjectInput) (*models.Project, error) {
	if !in.Status.Valid() {
		return nil, forms.Invalid("status", "The selected status is invalid.")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, forms.Invalid("priority", "The selected priority is invalid.")
	}

	project := &models.Project{
		Name:        in.Name,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		ClientID:    in.ClientID,
		AdminID:     p.OrgID,
		CreatedBy:   p.UserID,
	}
	members := in.MemberIDs
	if !p.CanManage() {
		members = append(members, p.UserID)
	}
	members = dedupe(members)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.ClientID != nil {
			ok, err := checkUsers(tx, p.OrgID, []uuid.UUID{*in.ClientID}, models.RoleClient)
			if err != nil {
				return err
			}
			if !ok {
				return ErrInvalidClient
			}
		}
		ok, err := checkUsers(tx, p.OrgID, members, "")
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidMember
		}

		code, err := newCode(tx)
		if err != nil {
			return err
		}
		project.ProjectCode = code

		if err := tx.Create(project).Error; err != nil {
			return fmt.Errorf("creating project: %w", err)
		}
		return syncMembers(tx, project.ID, members)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("project created", "project_id", project.ID, "code", project.ProjectCode, "members", len(members))
	return s.GetProject(ctx, p, project.ID)
}

// syncMembers makes the project's member set exactly userIDs.
func syncMembers(tx *gorm.DB, projectID uuid.UUID, userIDs []uuid.UUID) error {
	del := tx.Unscoped().Where("project_id = ?", projectID)
	if len(userIDs) > 0 {
		del = del.Where("user_id NOT IN ?", userIDs)
	}
	if err := del.Delete(&models.ProjectUser{}).Error; err != nil {
		return fmt.Errorf("removing members: %w", err)
	}

	var existing []uuid.UUID
	if err := tx.Model(&models.ProjectUser{}).Where("project_id = ?", projectID).Pluck("user_id", &existing).Error; err != nil {
		return fmt.Errorf("loading members: %w", err)
	}
	have := make(map[uuid.UUID]bool, len(existing))
	for _, id := range existing {
		have[id] = true
	}

	for _, id := range userIDs {
		if have[id] {
			continue
		}
		if err := tx.Create(&models.ProjectUser{ProjectID: projectID, UserID: id}).Error; err != nil {
			return fmt.Errorf("adding member: %w", err)
		}
	}
	return nil
}

func (s *Service) ListProjects(ctx context.Context, p scope.Principal, f ProjectFilter, offset, limit int) ([]models.Project, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Project{}).Scopes(scope.Apply(p, scope.Projects))
	if f.Status != nil {
		query = query.Where("projects.status = ?", *f.Status)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		query = query.Where("(LOWER(projects.name) LIKE ? OR LOWER(projects.project_code) LIKE ?)", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting projects: %w", err)
	}

	var projects []models.Project
	err := query.Preload("Members").
		Order("projects.created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&projects).Error
	if err != nil {
		return nil, 0, fmt.Errorf("listing projects: %w", err)
	}
	return projects, total, nil
}

func (s *Service) GetProject(ctx context.Context, p scope.Principal, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := s.db.WithContext(ctx).
		Scopes(scope.Apply(p, scope.Projects)).
		Preload("Members").
		Where("projects.id = ?", id).
		First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading project: %w", err)
	}
	return &project, nil
}

func (s *Service) UpdateProject(ctx context.Context, p scope.Principal, id uuid.UUID, in ProjectUpdate) (*models.Project, error) {
	project, err := s.GetProject(ctx, p, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return nil, forms.Invalid("priority", "The selected priority is invalid.")
		}
		updates["priority"] = *in.Priority
	}
	if in.StartDate != nil {
		updates["start_date"] = *in.StartDate
	}
	if in.EndDate != nil {
		updates["end_date"] = *in.EndDate
	}
	if in.ClientID != nil {
		ok, err := checkUsers(s.db.WithContext(ctx), p.OrgID, []uuid.UUID{*in.ClientID}, models.RoleClient)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrInvalidClient
		}
		updates["client_id"] = *in.ClientID
	}
	if len(updates) == 0 {
		return project, nil
	}

	if err := s.db.WithContext(ctx).Model(project).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating project: %w", err)
	}
	return s.GetProject(ctx, p, id)
}

// UpdateProgress sets the completion percentage, 0 to 100.
func (s *Service) UpdateProgress(ctx context.Context, p scope.Principal, id uuid.UUID, progress int) (*models.Project, error) {
	if progress < 0 || progress > 100 {
		return nil, forms.Invalid("progress", "The progress field must be between 0 and 100.")
	}
	project, err := s.GetProject(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(project).Update("progress", progress).Error; err != nil {
		return nil, fmt.Errorf("updating progress: %w", err)
	}
	project.Progress = progress
	return project, nil
}

func (s *Service) UpdateStatus(ctx context.Context, p scope.Principal, id uuid.UUID, status models.ProjectStatus) (*models.Project, error) {
	if !status.Valid() {
		return nil, forms.Invalid("status", "The selected status is invalid.")
	}
	project, err := s.GetProject(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(project).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("updating status: %w", err)
	}
	project.Status = status
	return project, nil
}

// SyncMembers replaces the project's member set.
func (s *Service) SyncMembers(ctx context.Context, p scope.Principal, id uuid.UUID, userIDs []uuid.UUID) (*models.Project, error) {
	project, err := s.GetProject(ctx, p, id)
	if err != nil {
		return nil, err
	}
	members := dedupe(userIDs)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := checkUsers(tx, p.OrgID, members, "")
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidMember
		}
		return syncMembers(tx, project.ID, members)
	})
	if err != nil {
		return nil, err
	}
	return s.GetProject(ctx, p, id)
}

// UpdateThumbnail stores a new thumbnail and removes the old file after the
// new path is saved.
func (s *Service) UpdateThumbnail(ctx context.Context, p scope.Principal, id uuid.UUID, fh *multipart.FileHeader) (*models.Project, error) {
	if msg := forms.CheckImage("thumbnail", fh); msg != "" {
		return nil, forms.Invalid("thumbnail", msg)
	}
	project, err := s.GetProject(ctx, p, id)
	if err != nil {
		return nil, err
	}
	old := project.ThumbnailPath

	rel, err := s.blobs.Put(ctx, thumbnailNamespace, fh)
	if err != nil {
		return nil, fmt.Errorf("storing thumbnail: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(project).Update("thumbnail_path", rel).Error; err != nil {
		s.removeFile(ctx, rel)
		return nil, fmt.Errorf("saving thumbnail: %w", err)
	}
	project.ThumbnailPath = rel

	if old != "" {
		s.removeFile(ctx, old)
	}
	return project, nil
}

// DeleteProject removes the project with its members, tasks, assignments and
// checklist items in one transaction.
func (s *Service) DeleteProject(ctx context.Context, p scope.Principal, id uuid.UUID) error {
	project, err := s.GetProject(ctx, p, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taskIDs []uuid.UUID
		if err := tx.Model(&models.Task{}).Where("project_id = ?", project.ID).Pluck("id", &taskIDs).Error; err != nil {
			return fmt.Errorf("loading tasks: %w", err)
		}
		if err := deleteTaskTrees(tx, taskIDs); err != nil {
			return err
		}
		if err := tx.Unscoped().Where("project_id = ?", project.ID).Delete(&models.ProjectUser{}).Error; err != nil {
			return fmt.Errorf("deleting members: %w", err)
		}
		if err := tx.Unscoped().Delete(project).Error; err != nil {
			return fmt.Errorf("deleting project: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if project.ThumbnailPath != "" {
		s.removeFile(ctx, project.ThumbnailPath)
	}
	s.logger.Info("project deleted", "project_id", project.ID, "by", p.UserID)
	return nil
}

func (s *Service) removeFile(ctx context.Context, rel string) {
	if err := s.blobs.Delete(ctx, rel); err != nil {
		s.logger.Warn("failed to delete stored file", "path", rel, "error", err)
	}
}
