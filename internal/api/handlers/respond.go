package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/api/dto"
	"github.com/hugh/bizops/internal/auth"
	"github.com/hugh/bizops/internal/forms"
	"github.com/hugh/bizops/internal/leads"
	"github.com/hugh/bizops/internal/permissions"
	"github.com/hugh/bizops/internal/projects"
	"github.com/hugh/bizops/internal/submissions"
	"github.com/hugh/bizops/internal/users"
	"gorm.io/gorm"
)

const maxUploadBytes = 32 << 20

var (
	unprocessable = []error{
		users.ErrInvalidRole, users.ErrInvalidParent, users.ErrInvalidSuccessor, users.ErrSelfAction,
		projects.ErrInvalidMember, projects.ErrInvalidClient,
		leads.ErrInvalidAssignee,
	}
	notFound = []error{
		auth.ErrUserNotFound, users.ErrNotFound, users.ErrUnknownSection, permissions.ErrNotFound,
		projects.ErrNotFound, projects.ErrTaskNotFound, projects.ErrAssignmentNotFound, projects.ErrItemNotFound,
		leads.ErrNotFound, forms.ErrFormNotFound, submissions.ErrNotFound,
	}
	conflict = []error{
		auth.ErrUserExists, auth.ErrAlreadyVerified, users.ErrEmailTaken, users.ErrOrganizationHasMembers,
		projects.ErrAlreadyAssigned, leads.ErrDuplicate, gorm.ErrDuplicatedKey,
	}
	unauthorized = []error{
		auth.ErrInvalidCredentials, auth.ErrInvalidToken, auth.ErrExpiredToken,
	}
	forbidden = []error{
		auth.ErrEmailNotVerified, auth.ErrSuspended, auth.ErrInvalidSignature, auth.ErrLinkExpired,
		users.ErrForbidden, projects.ErrNotAssignee, submissions.ErrStatusForbidden,
	}
)

func matches(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// handleError maps service errors onto the response envelope. Anything
// unrecognised is logged and answered with a generic 500.
func handleError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *forms.ValidationError
	switch {
	case errors.As(err, &verr):
		dto.Invalid(w, verr.Fields)
	case matches(err, unprocessable):
		dto.Write(w, dto.Response{Status: http.StatusUnprocessableEntity, Message: capitalize(err.Error())})
	case matches(err, notFound):
		dto.Error(w, http.StatusNotFound, capitalize(err.Error()))
	case matches(err, conflict):
		dto.Error(w, http.StatusConflict, capitalize(err.Error()))
	case matches(err, unauthorized):
		dto.Error(w, http.StatusUnauthorized, capitalize(err.Error()))
	case matches(err, forbidden):
		dto.Error(w, http.StatusForbidden, capitalize(err.Error()))
	default:
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimw.GetReqID(r.Context()),
			"error", err,
		)
		dto.Error(w, http.StatusInternalServerError, "Something went wrong.")
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:] + "."
}

type validatable interface {
	Validate() map[string]string
}

// decode reads a JSON body into v and runs its validation. It writes the
// response and returns false when the request cannot proceed.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		dto.Error(w, http.StatusBadRequest, "Invalid request body.")
		return false
	}
	if val, ok := v.(validatable); ok {
		if errs := val.Validate(); len(errs) > 0 {
			dto.Invalid(w, errs)
			return false
		}
	}
	return true
}

// pathID parses a UUID route parameter. Malformed ids are answered as 404.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		dto.Error(w, http.StatusNotFound, "Not found.")
		return uuid.Nil, false
	}
	return id, true
}

func pagination(r *http.Request) dto.PaginationParams {
	q := r.URL.Query()
	p := dto.PaginationParams{}
	p.Page, _ = strconv.Atoi(q.Get("page"))
	p.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	p.Normalize()
	return p
}

func optionalInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, forms.Invalid(name, fmt.Sprintf("The %s must be an integer.", name))
	}
	return &n, nil
}

func optionalUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, forms.Invalid(name, fmt.Sprintf("The %s must be a valid UUID.", name))
	}
	return &id, nil
}

// readAnswers collects answers from a multipart, urlencoded or JSON body. The
// "status" key is pulled out as the submission status.
func readAnswers(r *http.Request) (forms.Input, *int, error) {
	in := forms.Input{Values: map[string]string{}, Files: map[string]*multipart.FileHeader{}}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch ct {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return in, nil, forms.Invalid("_", "The request body could not be read.")
		}
		for key, vs := range r.MultipartForm.Value {
			if len(vs) > 0 {
				in.Values[key] = vs[0]
			}
		}
		for key, fhs := range r.MultipartForm.File {
			if len(fhs) > 0 {
				in.Files[key] = fhs[0]
			}
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return in, nil, forms.Invalid("_", "The request body could not be read.")
		}
		for key, vs := range r.PostForm {
			if len(vs) > 0 {
				in.Values[key] = vs[0]
			}
		}
	default:
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return in, nil, forms.Invalid("_", "The request body must be a JSON object.")
		}
		for key, v := range body {
			in.Values[key] = stringify(v)
		}
	}

	raw, ok := in.Values["status"]
	if !ok {
		return in, nil, nil
	}
	delete(in.Values, "status")
	status, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return in, nil, forms.Invalid("status", "The status must be an integer.")
	}
	return in, &status, nil
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []interface{}:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = stringify(item)
		}
		return strings.Join(parts, ",")
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
