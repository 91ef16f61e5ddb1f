package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/bizops/internal/api/dto"
	"github.com/hugh/bizops/internal/api/middleware"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/forms"
	"github.com/hugh/bizops/internal/projects"
)

type ProjectHandler struct {
	projects *projects.Service
	urls     dto.URLer
	logger   *slog.Logger
}

func NewProjectHandler(projectService *projects.Service, urls dto.URLer, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projectService, urls: urls, logger: logger}
}

// ProjectResponse adds the resolved thumbnail URL to a project.
type ProjectResponse struct {
	*models.Project
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

func (h *ProjectHandler) respond(p *models.Project) ProjectResponse {
	resp := ProjectResponse{Project: p}
	if p.ThumbnailPath != "" {
		resp.ThumbnailURL = h.urls.URL(p.ThumbnailPath)
	}
	return resp
}

func priorityPtr(s *string) *models.Priority {
	if s == nil {
		return nil
	}
	p := models.Priority(*s)
	return &p
}

// List handles GET /api/v1/projects?status=&search=
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination(r)
	status, err := optionalInt(r, "status")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	filter := projects.ProjectFilter{Search: r.URL.Query().Get("search")}
	if status != nil {
		s := models.ProjectStatus(*status)
		filter.Status = &s
	}

	list, total, err := h.projects.ListProjects(r.Context(), middleware.GetPrincipal(r.Context()), filter, page.Offset(), page.PerPage)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	out := make([]ProjectResponse, len(list))
	for i := range list {
		out[i] = h.respond(&list[i])
	}
	dto.Page(w, "Projects retrieved.", out, page.Paginate(total))
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.ProjectRequest
	if !decode(w, r, &req) {
		return
	}

	project, err := h.projects.CreateProject(r.Context(), middleware.GetPrincipal(r.Context()), projects.ProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      models.ProjectStatus(req.Status),
		Priority:    models.Priority(req.Priority),
		StartDate:   req.StartDate.Ptr(),
		EndDate:     req.EndDate.Ptr(),
		ClientID:    req.ClientID,
		MemberIDs:   req.MemberIDs,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.Created(w, "Project created.", h.respond(project))
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	project, err := h.projects.GetProject(r.Context(), middleware.GetPrincipal(r.Context()), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Project retrieved.", h.respond(project))
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.ProjectUpdateRequest
	if !decode(w, r, &req) {
		return
	}

	project, err := h.projects.UpdateProject(r.Context(), middleware.GetPrincipal(r.Context()), id, projects.ProjectUpdate{
		Name:        req.Name,
		Description: req.Description,
		Priority:    priorityPtr(req.Priority),
		StartDate:   req.StartDate.Ptr(),
		EndDate:     req.EndDate.Ptr(),
		ClientID:    req.ClientID,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Project updated.", h.respond(project))
}

// UpdateProgress handles PUT /api/v1/projects/{id}/progress
func (h *ProjectHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.ProgressRequest
	if !decode(w, r, &req) {
		return
	}

	project, err := h.projects.UpdateProgress(r.Context(), middleware.GetPrincipal(r.Context()), id, *req.Progress)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Progress updated.", h.respond(project))
}

// UpdateStatus handles PUT /api/v1/projects/{id}/status
func (h *ProjectHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.StatusRequest
	if !decode(w, r, &req) {
		return
	}

	project, err := h.projects.UpdateStatus(r.Context(), middleware.GetPrincipal(r.Context()), id, models.ProjectStatus(*req.Status))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Status updated.", h.respond(project))
}

// SyncMembers handles PUT /api/v1/projects/{id}/members
func (h *ProjectHandler) SyncMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.MembersRequest
	if !decode(w, r, &req) {
		return
	}

	project, err := h.projects.SyncMembers(r.Context(), middleware.GetPrincipal(r.Context()), id, req.MemberIDs)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Members updated.", h.respond(project))
}

// UpdateThumbnail handles POST /api/v1/projects/{id}/thumbnail with a
// multipart "thumbnail" part.
func (h *ProjectHandler) UpdateThumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		handleError(w, r, h.logger, forms.Invalid("thumbnail", "The thumbnail field is required."))
		return
	}
	_, fh, err := r.FormFile("thumbnail")
	if err != nil {
		handleError(w, r, h.logger, forms.Invalid("thumbnail", "The thumbnail field is required."))
		return
	}

	project, err := h.projects.UpdateThumbnail(r.Context(), middleware.GetPrincipal(r.Context()), id, fh)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Thumbnail updated.", h.respond(project))
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.projects.DeleteProject(r.Context(), middleware.GetPrincipal(r.Context()), id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Project deleted.", nil)
}
