package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/bizops/internal/api/dto"
	"github.com/hugh/bizops/internal/api/middleware"
	"github.com/hugh/bizops/internal/forms"
	"github.com/hugh/bizops/internal/leads"
)

type LeadHandler struct {
	leads  *leads.Service
	logger *slog.Logger
}

func NewLeadHandler(leadService *leads.Service, logger *slog.Logger) *LeadHandler {
	return &LeadHandler{leads: leadService, logger: logger}
}

// List handles GET /api/v1/leads?status=&business_type=&search=
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination(r)
	q := r.URL.Query()

	list, total, err := h.leads.List(r.Context(), middleware.GetPrincipal(r.Context()), leads.LeadFilter{
		Status:       q.Get("status"),
		BusinessType: q.Get("business_type"),
		Search:       q.Get("search"),
	}, page.Offset(), page.PerPage)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.Page(w, "Leads retrieved.", list, page.Paginate(total))
}

func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.LeadRequest
	if !decode(w, r, &req) {
		return
	}

	lead, err := h.leads.Create(r.Context(), middleware.GetPrincipal(r.Context()), leads.LeadInput{
		BusinessName: req.BusinessName,
		ContactName:  req.ContactName,
		Email:        req.Email,
		Phone:        req.Phone,
		Website:      req.Website,
		BusinessType: req.BusinessType,
		Location:     req.Location,
		Status:       req.Status,
		Notes:        req.Notes,
		AssignedTo:   req.AssignedTo,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.Created(w, "Lead created.", lead)
}

func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	lead, err := h.leads.Get(r.Context(), middleware.GetPrincipal(r.Context()), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Lead retrieved.", lead)
}

func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.LeadUpdateRequest
	if !decode(w, r, &req) {
		return
	}

	lead, err := h.leads.Update(r.Context(), middleware.GetPrincipal(r.Context()), id, leads.LeadUpdate{
		BusinessName: req.BusinessName,
		ContactName:  req.ContactName,
		Email:        req.Email,
		Phone:        req.Phone,
		Website:      req.Website,
		BusinessType: req.BusinessType,
		Location:     req.Location,
		Status:       req.Status,
		Notes:        req.Notes,
		AssignedTo:   req.AssignedTo,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Lead updated.", lead)
}

func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.leads.Delete(r.Context(), middleware.GetPrincipal(r.Context()), id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Lead deleted.", nil)
}

// Import handles POST /api/v1/leads/import with a multipart "file" part
// holding a CSV or XLSX sheet.
func (h *LeadHandler) Import(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		handleError(w, r, h.logger, forms.Invalid("file", "The file field is required."))
		return
	}
	file, fh, err := r.FormFile("file")
	if err != nil {
		handleError(w, r, h.logger, forms.Invalid("file", "The file field is required."))
		return
	}
	defer file.Close()

	result, err := h.leads.Import(r.Context(), middleware.GetPrincipal(r.Context()), fh.Filename, file)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Leads imported.", result)
}
