package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/bizops/internal/api/dto"
	"github.com/hugh/bizops/internal/api/middleware"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/projects"
)

type TaskHandler struct {
	projects *projects.Service
	logger   *slog.Logger
}

func NewTaskHandler(projectService *projects.Service, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{projects: projectService, logger: logger}
}

func taskStatusPtr(n *int) *models.TaskStatus {
	if n == nil {
		return nil
	}
	s := models.TaskStatus(*n)
	return &s
}

// List handles GET /api/v1/tasks?project_id=&status=
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination(r)
	projectID, err := optionalUUID(r, "project_id")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	status, err := optionalInt(r, "status")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	list, total, err := h.projects.ListTasks(r.Context(), middleware.GetPrincipal(r.Context()), projects.TaskFilter{
		ProjectID: projectID,
		Status:    taskStatusPtr(status),
	}, page.Offset(), page.PerPage)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.Page(w, "Tasks retrieved.", list, page.Paginate(total))
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.TaskRequest
	if !decode(w, r, &req) {
		return
	}

	task, err := h.projects.CreateTask(r.Context(), middleware.GetPrincipal(r.Context()), projects.TaskInput{
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		Status:      models.TaskStatus(req.Status),
		Priority:    models.Priority(req.Priority),
		DueDate:     req.DueDate.Ptr(),
		AssigneeIDs: req.AssigneeIDs,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.Created(w, "Task created.", task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	task, err := h.projects.GetTask(r.Context(), middleware.GetPrincipal(r.Context()), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Task retrieved.", task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.TaskUpdateRequest
	if !decode(w, r, &req) {
		return
	}

	task, err := h.projects.UpdateTask(r.Context(), middleware.GetPrincipal(r.Context()), id, projects.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Status:      taskStatusPtr(req.Status),
		Priority:    priorityPtr(req.Priority),
		DueDate:     req.DueDate.Ptr(),
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Task updated.", task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.projects.DeleteTask(r.Context(), middleware.GetPrincipal(r.Context()), id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Task deleted.", nil)
}

// Assign handles POST /api/v1/tasks/{id}/assignments
func (h *TaskHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.AssignRequest
	if !decode(w, r, &req) {
		return
	}

	assign, err := h.projects.Assign(r.Context(), middleware.GetPrincipal(r.Context()), id, req.UserID, req.DueDate.Ptr())
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.Created(w, "User assigned.", assign)
}

// UpdateAssignment handles PUT /api/v1/tasks/{id}/assignments/{aid}
func (h *TaskHandler) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	aid, ok := pathID(w, r, "aid")
	if !ok {
		return
	}
	var req dto.AssignmentUpdateRequest
	if !decode(w, r, &req) {
		return
	}

	assign, err := h.projects.UpdateAssignment(r.Context(), middleware.GetPrincipal(r.Context()), id, aid, projects.AssignmentUpdate{
		DueDate:  req.DueDate.Ptr(),
		Status:   taskStatusPtr(req.Status),
		Feedback: req.Feedback,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Assignment updated.", assign)
}

func (h *TaskHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	aid, ok := pathID(w, r, "aid")
	if !ok {
		return
	}
	if err := h.projects.Unassign(r.Context(), middleware.GetPrincipal(r.Context()), id, aid); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "User unassigned.", nil)
}

// AddItem handles POST /api/v1/tasks/{id}/assignments/{aid}/items
func (h *TaskHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	aid, ok := pathID(w, r, "aid")
	if !ok {
		return
	}
	var req dto.ItemRequest
	if !decode(w, r, &req) {
		return
	}

	item, err := h.projects.AddItem(r.Context(), middleware.GetPrincipal(r.Context()), id, aid, req.Title)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.Created(w, "Item added.", item)
}

// UpdateItem handles PUT /api/v1/tasks/items/{iid}
func (h *TaskHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	iid, ok := pathID(w, r, "iid")
	if !ok {
		return
	}
	var req dto.ItemUpdateRequest
	if !decode(w, r, &req) {
		return
	}

	item, err := h.projects.UpdateItem(r.Context(), middleware.GetPrincipal(r.Context()), iid, projects.ItemUpdate{
		Title:  req.Title,
		Status: taskStatusPtr(req.Status),
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Item updated.", item)
}

// ToggleItem handles POST /api/v1/tasks/items/{iid}/toggle
func (h *TaskHandler) ToggleItem(w http.ResponseWriter, r *http.Request) {
	iid, ok := pathID(w, r, "iid")
	if !ok {
		return
	}
	item, err := h.projects.ToggleItem(r.Context(), middleware.GetPrincipal(r.Context()), iid)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Item toggled.", item)
}

func (h *TaskHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	iid, ok := pathID(w, r, "iid")
	if !ok {
		return
	}
	if err := h.projects.DeleteItem(r.Context(), middleware.GetPrincipal(r.Context()), iid); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Item deleted.", nil)
}
