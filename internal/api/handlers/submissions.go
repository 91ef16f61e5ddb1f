package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/bizops/internal/api/dto"
	"github.com/hugh/bizops/internal/api/middleware"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/forms"
	"github.com/hugh/bizops/internal/submissions"
)

type SubmissionHandler struct {
	forms  *forms.Service
	store  *submissions.Store
	urls   submissions.URLer
	logger *slog.Logger
}

func NewSubmissionHandler(formService *forms.Service, store *submissions.Store, urls submissions.URLer, logger *slog.Logger) *SubmissionHandler {
	return &SubmissionHandler{forms: formService, store: store, urls: urls, logger: logger}
}

// table lays out subs against form, which is used for the header when the
// page is empty.
func (h *SubmissionHandler) table(form *models.Form, subs []models.FormSubmission) (*submissions.Table, error) {
	t, err := submissions.FormatForDisplay(subs, h.urls)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 && form != nil {
		empty := []models.FormSubmission{{Form: form}}
		if t, err = submissions.FormatForDisplay(empty, h.urls); err != nil {
			return nil, err
		}
		t.Rows = []submissions.Row{}
	}
	return t, nil
}

// Create handles POST /api/v1/forms/{id}/submissions. Answers are keyed by
// field key; uploads come as multipart parts under the same keys.
func (h *SubmissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	formID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p := middleware.GetPrincipal(r.Context())

	form, err := h.forms.Get(r.Context(), p, formID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	in, status, err := readAnswers(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	initial := 0
	if status != nil {
		initial = *status
	}

	sub, err := h.store.Create(r.Context(), form, p, initial, in)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	t, err := h.table(form, []models.FormSubmission{*sub})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.Created(w, "Submission recorded.", t)
}

// List handles GET /api/v1/forms/{id}/submissions
func (h *SubmissionHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

// Table handles GET /api/v1/forms/{id}/submissions/table
func (h *SubmissionHandler) Table(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *SubmissionHandler) list(w http.ResponseWriter, r *http.Request, asTable bool) {
	formID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p := middleware.GetPrincipal(r.Context())
	page := pagination(r)

	form, err := h.forms.Get(r.Context(), p, formID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	subs, total, err := h.store.ListByForm(r.Context(), p, formID, page.Offset(), page.PerPage)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	if !asTable {
		dto.Page(w, "Submissions retrieved.", subs, page.Paginate(total))
		return
	}
	t, err := h.table(form, subs)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.Page(w, "Submissions retrieved.", t, page.Paginate(total))
}

func (h *SubmissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sub, err := h.store.Get(r.Context(), middleware.GetPrincipal(r.Context()), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	t, err := h.table(sub.Form, []models.FormSubmission{*sub})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Submission retrieved.", t)
}

// Update handles PUT /api/v1/submissions/{id}. Fields left out keep their
// answers; a status key also replaces the status.
func (h *SubmissionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p := middleware.GetPrincipal(r.Context())
	sub, err := h.store.Get(r.Context(), p, id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	in, status, err := readAnswers(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if status != nil && !p.CanManage() {
		handleError(w, r, h.logger, submissions.ErrStatusForbidden)
		return
	}

	updated, err := h.store.Update(r.Context(), sub, in)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if status != nil {
		if err := h.store.UpdateStatus(r.Context(), p, updated, *status); err != nil {
			handleError(w, r, h.logger, err)
			return
		}
		updated.Status = *status
	}

	t, err := h.table(updated.Form, []models.FormSubmission{*updated})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Submission updated.", t)
}

// UpdateStatus handles PUT /api/v1/submissions/{id}/status
func (h *SubmissionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.StatusRequest
	if !decode(w, r, &req) {
		return
	}
	p := middleware.GetPrincipal(r.Context())
	sub, err := h.store.Get(r.Context(), p, id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if err := h.store.UpdateStatus(r.Context(), p, sub, *req.Status); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Status updated.", map[string]int{"status": *req.Status})
}

func (h *SubmissionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sub, err := h.store.Get(r.Context(), middleware.GetPrincipal(r.Context()), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if err := h.store.Delete(r.Context(), sub); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Submission deleted.", nil)
}
