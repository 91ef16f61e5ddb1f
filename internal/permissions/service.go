// Package permissions stores per-user feature flags and answers whether a
// caller may use an HTTP method on a feature.
package permissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/scope"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("permission not found")

const cacheTTL = 5 * time.Minute

// Seed replaces u's permission rows with its role template. It runs inside
// the caller's transaction.
func Seed(tx *gorm.DB, u *models.User) error {
	if err := tx.Unscoped().Where("user_id = ?", u.ID).Delete(&models.Permission{}).Error; err != nil {
		return fmt.Errorf("clearing permissions: %w", err)
	}

	rows := Template(u.Role)
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		rows[i].UserID = u.ID
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("seeding permissions: %w", err)
	}
	return nil
}

type Service struct {
	db     *gorm.DB
	cache  *redis.Client
	logger *slog.Logger
}

// NewService builds the service. cache may be nil.
func NewService(db *gorm.DB, cache *redis.Client, logger *slog.Logger) *Service {
	return &Service{db: db, cache: cache, logger: logger}
}

func cacheKey(userID uuid.UUID, feature, method string) string {
	return fmt.Sprintf("perm:%s:%s:%s", userID, feature, method)
}

// Allowed reports whether p may use method on feature. Admins always may;
// everyone else needs an enabled row.
func (s *Service) Allowed(ctx context.Context, p scope.Principal, feature, method string) (bool, error) {
	if p.IsAdmin() {
		return true, nil
	}
	method = NormalizeMethod(method)
	key := cacheKey(p.UserID, feature, method)

	if s.cache != nil {
		v, err := s.cache.Get(ctx, key).Result()
		switch {
		case err == nil:
			return v == "1", nil
		case !errors.Is(err, redis.Nil):
			s.logger.Warn("permission cache read failed", "key", key, "error", err)
		}
	}

	var perm models.Permission
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND feature = ? AND method = ?", p.UserID, feature, method).
		First(&perm).Error
	allowed := DefaultDecision
	switch {
	case err == nil:
		allowed = perm.Status
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return false, fmt.Errorf("loading permission: %w", err)
	}

	if s.cache != nil {
		v := "0"
		if allowed {
			v = "1"
		}
		if err := s.cache.Set(ctx, key, v, cacheTTL).Err(); err != nil {
			s.logger.Warn("permission cache write failed", "key", key, "error", err)
		}
	}
	return allowed, nil
}

// ListForUser returns userID's rows if p can see that user.
func (s *Service) ListForUser(ctx context.Context, p scope.Principal, userID uuid.UUID) ([]models.Permission, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Scopes(scope.Apply(p, scope.Users)).
		Where("users.id = ?", userID).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("checking user: %w", err)
	}
	if count == 0 {
		return nil, ErrNotFound
	}

	var perms []models.Permission
	err = s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("feature ASC, method ASC").
		Find(&perms).Error
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	return perms, nil
}

// Update sets one row's status. The row must belong to a member of orgID.
// Setting the current value again is a no-op.
func (s *Service) Update(ctx context.Context, orgID, id uuid.UUID, status bool) (*models.Permission, error) {
	var perm models.Permission
	err := s.db.WithContext(ctx).
		Joins("JOIN users ON users.id = permissions.user_id AND users.deleted_at IS NULL").
		Where("permissions.id = ? AND (users.id = ? OR users.parent_id = ?)", id, orgID, orgID).
		First(&perm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading permission: %w", err)
	}

	if perm.Status != status {
		if err := s.db.WithContext(ctx).Model(&perm).Update("status", status).Error; err != nil {
			return nil, fmt.Errorf("updating permission: %w", err)
		}
		perm.Status = status
	}
	s.Invalidate(ctx, perm.UserID, perm.Feature, perm.Method)

	s.logger.Info("permission updated", "permission_id", perm.ID, "user_id", perm.UserID, "feature", perm.Feature, "method", perm.Method, "status", status)
	return &perm, nil
}

// Invalidate drops a cached decision.
func (s *Service) Invalidate(ctx context.Context, userID uuid.UUID, feature, method string) {
	if s.cache == nil {
		return
	}
	key := cacheKey(userID, feature, method)
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("permission cache delete failed", "key", key, "error", err)
	}
}

// InvalidateUser drops every cached decision for userID.
func (s *Service) InvalidateUser(ctx context.Context, userID uuid.UUID) {
	for _, f := range Features {
		for _, m := range Methods {
			s.Invalidate(ctx, userID, f, m)
		}
	}
}
