package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/api/dto"
	"github.com/hugh/bizops/internal/api/middleware"
	"github.com/hugh/bizops/internal/auth"
)

// LoginRecorder is told about every successful login.
type LoginRecorder interface {
	LoggedIn(ctx context.Context, userID uuid.UUID, ip, userAgent string) error
}

type AuthHandler struct {
	authService *auth.Service
	urls        dto.URLer
	logins      LoginRecorder
	logger      *slog.Logger
}

func NewAuthHandler(authService *auth.Service, urls dto.URLer, logins LoginRecorder, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, urls: urls, logins: logins, logger: logger}
}

// Register handles POST /api/v1/auth/register. The account cannot log in
// until its email is verified.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.authService.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	dto.Created(w, "Registered. Check your email for a verification link.", dto.NewUserDTO(user, h.urls))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	resp, err := h.authService.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	if h.logins != nil {
		if err := h.logins.LoggedIn(r.Context(), resp.User.ID, middleware.ByIP(r), r.UserAgent()); err != nil {
			h.logger.Warn("login alert not queued", "user_id", resp.User.ID, "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    resp.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400,
	})

	dto.OK(w, "Logged in.", dto.AuthResponse{
		Token: resp.Token,
		User:  dto.NewUserDTO(resp.User, h.urls),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	dto.OK(w, "Logged out.", nil)
}

// Verify handles GET /api/v1/email/verify/{id}/{hash}?expires=&signature=
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.logger, auth.ErrInvalidSignature)
		return
	}

	q := r.URL.Query()
	user, err := h.authService.VerifyEmail(r.Context(), auth.VerifyInput{
		UserID:    userID,
		Hash:      chi.URLParam(r, "hash"),
		Expires:   q.Get("expires"),
		Signature: q.Get("signature"),
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	dto.OK(w, "Email verified.", dto.NewUserDTO(user, h.urls))
}

// Resend handles POST /api/v1/auth/email/resend. Unknown addresses get the
// same answer as known ones.
func (h *AuthHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req dto.ResendRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.authService.ResendVerification(r.Context(), req.Email); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	dto.OK(w, "If the address is registered, a verification link has been sent.", nil)
}

// ChatToken handles GET /api/v1/chat/token.
func (h *AuthHandler) ChatToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.authService.ChatToken(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	dto.OK(w, "Chat token issued.", token)
}
