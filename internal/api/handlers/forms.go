package handlers

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/hugh/bizops/internal/api/dto"
	"github.com/hugh/bizops/internal/api/middleware"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/forms"
)

type FormHandler struct {
	forms  *forms.Service
	logger *slog.Logger
}

func NewFormHandler(formService *forms.Service, logger *slog.Logger) *FormHandler {
	return &FormHandler{forms: formService, logger: logger}
}

func fieldInputs(reqs []dto.FieldRequest) []forms.FieldInput {
	if reqs == nil {
		return nil
	}
	out := make([]forms.FieldInput, len(reqs))
	for i, f := range reqs {
		var options []byte
		if len(f.Options) > 0 && !bytes.Equal(f.Options, []byte("null")) {
			options = f.Options
		}
		out[i] = forms.FieldInput{
			ID:         f.ID,
			Type:       models.FieldType(f.Type),
			Label:      f.Label,
			IsRequired: f.IsRequired,
			Options:    options,
		}
	}
	return out
}

// List handles GET /api/v1/forms?search=
func (h *FormHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination(r)
	list, total, err := h.forms.List(r.Context(), middleware.GetPrincipal(r.Context()), r.URL.Query().Get("search"), page.Offset(), page.PerPage)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.Page(w, "Forms retrieved.", list, page.Paginate(total))
}

func (h *FormHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.FormRequest
	if !decode(w, r, &req) {
		return
	}

	form, err := h.forms.Create(r.Context(), middleware.GetPrincipal(r.Context()), forms.FormInput{
		Title:       req.Title,
		Description: req.Description,
		Fields:      fieldInputs(req.Fields),
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.Created(w, "Form created.", form)
}

func (h *FormHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	form, err := h.forms.Get(r.Context(), middleware.GetPrincipal(r.Context()), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Form retrieved.", form)
}

// Update handles PUT /api/v1/forms/{id}. A fields array replaces the whole
// field list.
func (h *FormHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.FormUpdateRequest
	if !decode(w, r, &req) {
		return
	}

	form, err := h.forms.Update(r.Context(), middleware.GetPrincipal(r.Context()), id, forms.FormUpdate{
		Title:       req.Title,
		Description: req.Description,
		Fields:      fieldInputs(req.Fields),
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Form updated.", form)
}

func (h *FormHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.forms.Delete(r.Context(), middleware.GetPrincipal(r.Context()), id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Form deleted.", nil)
}
