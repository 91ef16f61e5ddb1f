package projects

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/forms"
	"github.com/hugh/bizops/internal/scope"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrItemNotFound       = errors.New("checklist item not found")
	ErrAlreadyAssigned    = errors.New("user is already assigned to this task")
	ErrNotAssignee        = errors.New("only the assignee may change this assignment")
)

type TaskInput struct {
	ProjectID   *uuid.UUID
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.Priority
	DueDate     *time.Time
	AssigneeIDs []uuid.UUID
}

type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *models.TaskStatus
	Priority    *models.Priority
	DueDate     *time.Time
}

type TaskFilter struct {
	ProjectID *uuid.UUID
	Status    *models.TaskStatus
}

type AssignmentUpdate struct {
	DueDate  *time.Time
	Status   *models.TaskStatus
	Feedback *string
}

type ItemUpdate struct {
	Title  *string
	Status *models.TaskStatus
}

func withAssignments(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Assignments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Assignments.Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") })
}

// CreateTask stores a task and its assignments in one transaction. A task
// may stand alone or belong to a project p can see.
func (s *Service) CreateTask(ctx context.Context, p scope.Principal, in TaskInput) (*models.Task, error) {
	if !in.Status.Valid() {
		return nil, forms.Invalid("status", "The selected status is invalid.")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, forms.Invalid("priority", "The selected priority is invalid.")
	}
	if in.ProjectID != nil {
		if _, err := s.GetProject(ctx, p, *in.ProjectID); err != nil {
			return nil, err
		}
	}

	task := &models.Task{
		ProjectID:   in.ProjectID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		AdminID:     p.OrgID,
		CreatedBy:   p.UserID,
	}
	assignees := in.AssigneeIDs
	if !p.CanManage() {
		assignees = append(assignees, p.UserID)
	}
	assignees = dedupe(assignees)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := checkUsers(tx, p.OrgID, assignees, "")
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidMember
		}
		if err := tx.Create(task).Error; err != nil {
			return fmt.Errorf("creating task: %w", err)
		}
		for _, id := range assignees {
			assign := &models.TaskUserAssign{TaskID: task.ID, UserID: id, DueDate: in.DueDate}
			if err := tx.Create(assign).Error; err != nil {
				return fmt.Errorf("assigning task: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task created", "task_id", task.ID, "assignees", len(assignees))
	return s.GetTask(ctx, p, task.ID)
}

func (s *Service) ListTasks(ctx context.Context, p scope.Principal, f TaskFilter, offset, limit int) ([]models.Task, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Task{}).Scopes(scope.Apply(p, scope.Tasks))
	if f.ProjectID != nil {
		query = query.Where("tasks.project_id = ?", *f.ProjectID)
	}
	if f.Status != nil {
		query = query.Where("tasks.status = ?", *f.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting tasks: %w", err)
	}

	var tasks []models.Task
	err := query.Scopes(withAssignments).
		Order("tasks.created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, total, nil
}

func (s *Service) GetTask(ctx context.Context, p scope.Principal, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).
		Scopes(scope.Apply(p, scope.Tasks), withAssignments).
		Where("tasks.id = ?", id).
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("loading task: %w", err)
	}
	return &task, nil
}

func (s *Service) UpdateTask(ctx context.Context, p scope.Principal, id uuid.UUID, in TaskUpdate) (*models.Task, error) {
	task, err := s.GetTask(ctx, p, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = *in.Title
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, forms.Invalid("status", "The selected status is invalid.")
		}
		updates["status"] = *in.Status
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return nil, forms.Invalid("priority", "The selected priority is invalid.")
		}
		updates["priority"] = *in.Priority
	}
	if in.DueDate != nil {
		updates["due_date"] = *in.DueDate
	}
	if len(updates) == 0 {
		return task, nil
	}

	if err := s.db.WithContext(ctx).Model(task).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}
	return s.GetTask(ctx, p, id)
}

// DeleteTask removes checklist items, then assignments, then the task, in
// one transaction.
func (s *Service) DeleteTask(ctx context.Context, p scope.Principal, id uuid.UUID) error {
	task, err := s.GetTask(ctx, p, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteTaskTrees(tx, []uuid.UUID{task.ID})
	})
	if err != nil {
		return err
	}

	s.logger.Info("task deleted", "task_id", task.ID, "by", p.UserID)
	return nil
}

func deleteTaskTrees(tx *gorm.DB, taskIDs []uuid.UUID) error {
	if len(taskIDs) == 0 {
		return nil
	}
	assigns := tx.Session(&gorm.Session{NewDB: true}).
		Model(&models.TaskUserAssign{}).
		Select("id").
		Where("task_id IN ?", taskIDs)

	if err := tx.Unscoped().Where("assign_id IN (?)", assigns).Delete(&models.IndividualTask{}).Error; err != nil {
		return fmt.Errorf("deleting checklist items: %w", err)
	}
	if err := tx.Unscoped().Where("task_id IN ?", taskIDs).Delete(&models.TaskUserAssign{}).Error; err != nil {
		return fmt.Errorf("deleting assignments: %w", err)
	}
	if err := tx.Unscoped().Where("id IN ?", taskIDs).Delete(&models.Task{}).Error; err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	return nil
}

// Assign adds userID to the task. Assigning the same user twice conflicts.
func (s *Service) Assign(ctx context.Context, p scope.Principal, taskID, userID uuid.UUID, dueDate *time.Time) (*models.TaskUserAssign, error) {
	task, err := s.GetTask(ctx, p, taskID)
	if err != nil {
		return nil, err
	}
	for _, a := range task.Assignments {
		if a.UserID == userID {
			return nil, ErrAlreadyAssigned
		}
	}

	ok, err := checkUsers(s.db.WithContext(ctx), p.OrgID, []uuid.UUID{userID}, "")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidMember
	}

	assign := &models.TaskUserAssign{TaskID: task.ID, UserID: userID, DueDate: dueDate}
	if err := s.db.WithContext(ctx).Create(assign).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyAssigned
		}
		return nil, fmt.Errorf("assigning task: %w", err)
	}
	return assign, nil
}

// assignment loads an assignment of a task p can see. Members may only touch
// their own assignments.
func (s *Service) assignment(ctx context.Context, p scope.Principal, taskID, assignID uuid.UUID) (*models.TaskUserAssign, error) {
	if _, err := s.GetTask(ctx, p, taskID); err != nil {
		return nil, err
	}

	var assign models.TaskUserAssign
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND task_id = ?", assignID, taskID).
		First(&assign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("loading assignment: %w", err)
	}
	if !p.CanManage() && assign.UserID != p.UserID {
		return nil, ErrNotAssignee
	}
	return &assign, nil
}

func (s *Service) UpdateAssignment(ctx context.Context, p scope.Principal, taskID, assignID uuid.UUID, in AssignmentUpdate) (*models.TaskUserAssign, error) {
	assign, err := s.assignment(ctx, p, taskID, assignID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.DueDate != nil {
		updates["due_date"] = *in.DueDate
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, forms.Invalid("status", "The selected status is invalid.")
		}
		updates["status"] = *in.Status
	}
	if in.Feedback != nil {
		updates["feedback"] = *in.Feedback
	}
	if len(updates) == 0 {
		return assign, nil
	}

	if err := s.db.WithContext(ctx).Model(assign).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating assignment: %w", err)
	}
	return s.assignment(ctx, p, taskID, assignID)
}

// Unassign removes an assignment and its checklist items.
func (s *Service) Unassign(ctx context.Context, p scope.Principal, taskID, assignID uuid.UUID) error {
	if !p.CanManage() {
		return ErrNotAssignee
	}
	assign, err := s.assignment(ctx, p, taskID, assignID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("assign_id = ?", assign.ID).Delete(&models.IndividualTask{}).Error; err != nil {
			return fmt.Errorf("deleting checklist items: %w", err)
		}
		if err := tx.Unscoped().Delete(assign).Error; err != nil {
			return fmt.Errorf("deleting assignment: %w", err)
		}
		return nil
	})
}

func (s *Service) AddItem(ctx context.Context, p scope.Principal, taskID, assignID uuid.UUID, title string) (*models.IndividualTask, error) {
	assign, err := s.assignment(ctx, p, taskID, assignID)
	if err != nil {
		return nil, err
	}

	item := &models.IndividualTask{AssignID: assign.ID, Title: title}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, fmt.Errorf("creating checklist item: %w", err)
	}
	return item, nil
}

// item loads a checklist item through its assignment and task, so the same
// visibility rules apply.
func (s *Service) item(ctx context.Context, p scope.Principal, itemID uuid.UUID) (*models.IndividualTask, error) {
	var item models.IndividualTask
	if err := s.db.WithContext(ctx).First(&item, "id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("loading checklist item: %w", err)
	}

	var assign models.TaskUserAssign
	if err := s.db.WithContext(ctx).Select("id", "task_id").First(&assign, "id = ?", item.AssignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("loading assignment: %w", err)
	}
	if _, err := s.assignment(ctx, p, assign.TaskID, assign.ID); err != nil {
		if errors.Is(err, ErrTaskNotFound) || errors.Is(err, ErrAssignmentNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Service) UpdateItem(ctx context.Context, p scope.Principal, itemID uuid.UUID, in ItemUpdate) (*models.IndividualTask, error) {
	item, err := s.item(ctx, p, itemID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = *in.Title
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, forms.Invalid("status", "The selected status is invalid.")
		}
		updates["status"] = *in.Status
	}
	if len(updates) == 0 {
		return item, nil
	}
	if err := s.db.WithContext(ctx).Model(item).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating checklist item: %w", err)
	}
	return s.item(ctx, p, itemID)
}

// ToggleItem flips the checkbox and returns the item.
func (s *Service) ToggleItem(ctx context.Context, p scope.Principal, itemID uuid.UUID) (*models.IndividualTask, error) {
	item, err := s.item(ctx, p, itemID)
	if err != nil {
		return nil, err
	}
	checked := !item.IsChecked
	if err := s.db.WithContext(ctx).Model(item).Update("is_checked", checked).Error; err != nil {
		return nil, fmt.Errorf("toggling checklist item: %w", err)
	}
	item.IsChecked = checked
	return item, nil
}

func (s *Service) DeleteItem(ctx context.Context, p scope.Principal, itemID uuid.UUID) error {
	item, err := s.item(ctx, p, itemID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Unscoped().Delete(item).Error; err != nil {
		return fmt.Errorf("deleting checklist item: %w", err)
	}
	return nil
}
