package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/bizops/internal/api/dto"
	"github.com/hugh/bizops/internal/api/middleware"
	"github.com/hugh/bizops/internal/api/validation"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/forms"
	"github.com/hugh/bizops/internal/permissions"
	"github.com/hugh/bizops/internal/users"
)

type UserHandler struct {
	users  *users.Service
	perms  *permissions.Service
	urls   dto.URLer
	logger *slog.Logger
}

func NewUserHandler(userService *users.Service, perms *permissions.Service, urls dto.URLer, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: userService, perms: perms, urls: urls, logger: logger}
}

// Me handles GET /api/v1/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Me(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Profile retrieved.", dto.NewUserDTO(user, h.urls))
}

// UpdateSection handles PUT /api/v1/me/profile/{section}
func (h *UserHandler) UpdateSection(w http.ResponseWriter, r *http.Request) {
	in, err := users.NewSectionInput(chi.URLParam(r, "section"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if err := json.NewDecoder(r.Body).Decode(in); err != nil {
		dto.Error(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if errs := validation.Struct(in); len(errs) > 0 {
		dto.Invalid(w, errs)
		return
	}

	user, err := h.users.UpdateSection(r.Context(), middleware.GetUserID(r.Context()), in)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Profile updated.", dto.NewUserDTO(user, h.urls))
}

// UpdateAvatar handles POST /api/v1/me/avatar with a multipart "avatar" part.
func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		handleError(w, r, h.logger, forms.Invalid("avatar", "The avatar field is required."))
		return
	}
	_, fh, err := r.FormFile("avatar")
	if err != nil {
		handleError(w, r, h.logger, forms.Invalid("avatar", "The avatar field is required."))
		return
	}

	user, err := h.users.UpdateAvatar(r.Context(), middleware.GetUserID(r.Context()), fh)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Avatar updated.", dto.NewUserDTO(user, h.urls))
}

// ToggleSubscribe handles POST /api/v1/me/subscribe
func (h *UserHandler) ToggleSubscribe(w http.ResponseWriter, r *http.Request) {
	subscribed, err := h.users.ToggleSubscribe(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Subscription updated.", dto.SubscribeResponse{IsSubscribed: subscribed})
}

// List handles GET /api/v1/users?role=&search=&page=&per_page=
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination(r)
	q := r.URL.Query()

	list, total, err := h.users.List(r.Context(), middleware.GetPrincipal(r.Context()), users.ListFilter{
		Role:   models.Role(q.Get("role")),
		Search: q.Get("search"),
	}, page.Offset(), page.PerPage)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.Page(w, "Users retrieved.", dto.NewUserDTOs(list, h.urls), page.Paginate(total))
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateMemberRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.users.CreateMember(r.Context(), middleware.GetPrincipal(r.Context()), users.CreateMemberInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
		Role:     models.Role(req.Role),
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.Created(w, "User created.", dto.NewUserDTO(user, h.urls))
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	user, err := h.users.Get(r.Context(), middleware.GetPrincipal(r.Context()), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "User retrieved.", dto.NewUserDTO(user, h.urls))
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.UpdateUserRequest
	if !decode(w, r, &req) {
		return
	}

	in := users.UpdateInput{Name: req.Name, Phone: req.Phone}
	if req.Role != nil {
		role := models.Role(*req.Role)
		in.Role = &role
	}

	user, err := h.users.Update(r.Context(), middleware.GetPrincipal(r.Context()), id, in)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "User updated.", dto.NewUserDTO(user, h.urls))
}

// Suspend handles PUT /api/v1/users/{id}/suspend
func (h *UserHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.SuspendRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.users.SetSuspended(r.Context(), middleware.GetPrincipal(r.Context()), id, *req.Suspended)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "User updated.", dto.NewUserDTO(user, h.urls))
}

// Delete handles DELETE /api/v1/users/{id}. Deleting an organization root
// with members requires a successor_id in the body.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.DeleteUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		dto.Error(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if err := h.users.Delete(r.Context(), middleware.GetPrincipal(r.Context()), id, req.SuccessorID); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "User deleted.", nil)
}

// Permissions handles GET /api/v1/users/{id}/permissions
func (h *UserHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	list, err := h.perms.ListForUser(r.Context(), middleware.GetPrincipal(r.Context()), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Permissions retrieved.", list)
}

// UpdatePermission handles PUT /api/v1/permissions/{id}
func (h *UserHandler) UpdatePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.PermissionUpdateRequest
	if !decode(w, r, &req) {
		return
	}

	perm, err := h.perms.Update(r.Context(), middleware.GetOrganizationID(r.Context()), id, *req.Status)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	dto.OK(w, "Permission updated.", perm)
}
