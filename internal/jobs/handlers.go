package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/bizops/internal/database/models"
	"gorm.io/gorm"
)

// LinkBuilder produces the signed verification link for a user.
type LinkBuilder interface {
	Link(u *models.User) string
}

type Handler struct {
	db     *gorm.DB
	links  LinkBuilder
	mailer Mailer
	from   string
	logger *slog.Logger
}

func NewHandler(db *gorm.DB, links LinkBuilder, mailer Mailer, from string, logger *slog.Logger) *Handler {
	return &Handler{
		db:     db,
		links:  links,
		mailer: mailer,
		from:   from,
		logger: logger,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeVerificationMail, h.HandleVerificationMail)
	mux.HandleFunc(TypeLoginAlert, h.HandleLoginAlert)
}

// loadUser returns asynq.SkipRetry when the user is gone; retrying will not
// bring them back.
func (h *Handler) loadUser(ctx context.Context, id interface{}) (*models.User, error) {
	var user models.User
	if err := h.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %v not found: %w", id, asynq.SkipRetry)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

func (h *Handler) HandleVerificationMail(ctx context.Context, t *asynq.Task) error {
	var payload VerificationMailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	user, err := h.loadUser(ctx, payload.UserID)
	if err != nil {
		return err
	}
	if user.IsVerified() {
		h.logger.Info("user already verified, skipping mail", "user_id", user.ID)
		return nil
	}

	msg := Message{
		From:    h.from,
		To:      user.Email,
		Subject: "Verify your email address",
		Body: fmt.Sprintf("Hello %s,\n\nConfirm your email address by opening the link below:\n\n%s\n",
			user.Name, h.links.Link(user)),
	}
	if err := h.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send verification mail: %w", err)
	}

	h.logger.Info("sent verification mail", "user_id", user.ID)
	return nil
}

func (h *Handler) HandleLoginAlert(ctx context.Context, t *asynq.Task) error {
	var payload LoginAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	user, err := h.loadUser(ctx, payload.UserID)
	if err != nil {
		return err
	}

	var sec models.SecuritySetting
	err = h.db.WithContext(ctx).Where("user_id = ?", user.ID).First(&sec).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("load security settings: %w", err)
	}
	if err == nil && !sec.LoginAlerts {
		return nil
	}

	msg := Message{
		From:    h.from,
		To:      user.Email,
		Subject: "New sign-in to your account",
		Body: fmt.Sprintf("Hello %s,\n\nYour account was signed in to at %s from %s (%s).\n",
			user.Name, time.Unix(payload.At, 0).UTC().Format(time.RFC1123), payload.IP, payload.UserAgent),
	}
	if err := h.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send login alert: %w", err)
	}
	return nil
}
