// Package users manages organization members and their profiles.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/forms"
	"github.com/hugh/bizops/internal/permissions"
	"github.com/hugh/bizops/internal/scope"
	"github.com/hugh/bizops/internal/storage"
	"github.com/hugh/bizops/pkg/crypto"
	"gorm.io/gorm"
)

var (
	ErrNotFound               = errors.New("user not found")
	ErrEmailTaken             = errors.New("email already taken")
	ErrInvalidRole            = errors.New("invalid role")
	ErrInvalidParent          = errors.New("parent must be an organization root")
	ErrForbidden              = errors.New("not allowed to manage this user")
	ErrSelfAction             = errors.New("cannot perform this action on yourself")
	ErrOrganizationHasMembers = errors.New("organization still has members; name a successor")
	ErrInvalidSuccessor       = errors.New("successor must be a member of the organization")
)

const avatarNamespace = "avatars"

// orgTables hold rows owned by an organization through admin_id.
var orgTables = []interface{}{
	&models.Form{},
	&models.FormSubmission{},
	&models.Project{},
	&models.Task{},
	&models.BusinessLead{},
}

type Service struct {
	db     *gorm.DB
	blobs  storage.Store
	perms  *permissions.Service
	logger *slog.Logger
}

func NewService(db *gorm.DB, blobs storage.Store, perms *permissions.Service, logger *slog.Logger) *Service {
	return &Service{db: db, blobs: blobs, perms: perms, logger: logger}
}

type CreateMemberInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Role     models.Role
}

// CreateMember adds a user under p's organization with satellites and
// permissions, in one transaction. Members are created verified.
func (s *Service) CreateMember(ctx context.Context, p scope.Principal, in CreateMemberInput) (*models.User, error) {
	if !p.CanManage() {
		return nil, ErrForbidden
	}
	if !in.Role.Valid() || in.Role == models.RoleAdmin {
		return nil, ErrInvalidRole
	}
	if in.Role == models.RoleLeader && !p.IsAdmin() {
		return nil, ErrForbidden
	}

	hash, err := crypto.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	orgID := p.OrgID
	user := &models.User{
		Email:           strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash:    hash,
		Name:            in.Name,
		Phone:           in.Phone,
		Role:            in.Role,
		ParentID:        &orgID,
		EmailVerifiedAt: &now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkParent(tx, orgID); err != nil {
			return err
		}
		if err := tx.Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return fmt.Errorf("creating user: %w", err)
		}
		return Provision(tx, user)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("member created", "user_id", user.ID, "org_id", orgID, "role", user.Role)
	return user, nil
}

// checkParent enforces single-depth organizations.
func checkParent(tx *gorm.DB, parentID uuid.UUID) error {
	var parent models.User
	if err := tx.Select("id", "parent_id").First(&parent, "id = ?", parentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidParent
		}
		return fmt.Errorf("loading parent: %w", err)
	}
	if !parent.IsOrganizationRoot() {
		return ErrInvalidParent
	}
	return nil
}

type ListFilter struct {
	Role   models.Role
	Search string
}

func (s *Service) List(ctx context.Context, p scope.Principal, f ListFilter, offset, limit int) ([]models.User, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.User{}).Scopes(scope.Apply(p, scope.Users))
	if f.Role != "" {
		query = query.Where("users.role = ?", f.Role)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		query = query.Where("(LOWER(users.name) LIKE ? OR LOWER(users.email) LIKE ?)", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}

	var users []models.User
	if err := query.Order("users.created_at DESC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	return users, total, nil
}

func withProfile(db *gorm.DB) *gorm.DB {
	return db.
		Preload("EmergencyContact").
		Preload("SecuritySetting").
		Preload("NotificationPreference").
		Preload("DisplayPreference").
		Preload("SocialLinks")
}

// Get loads a user visible to p with its profile.
func (s *Service) Get(ctx context.Context, p scope.Principal, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Scopes(scope.Apply(p, scope.Users), withProfile).
		Where("users.id = ?", id).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return &user, nil
}

// Me loads the caller's own record with its profile.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.Get(ctx, scope.Principal{UserID: userID, Role: models.RoleMember}, userID)
}

type UpdateInput struct {
	Name  *string
	Phone *string
	Role  *models.Role
}

// Update changes a member's details. Changing the role reseeds permissions.
// An organization root keeps its role.
func (s *Service) Update(ctx context.Context, p scope.Principal, id uuid.UUID, in UpdateInput) (*models.User, error) {
	user, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if user.ID != p.UserID && !p.CanManage() {
		return nil, ErrForbidden
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Phone != nil {
		updates["phone"] = *in.Phone
	}
	reseed := false
	if in.Role != nil && *in.Role != user.Role {
		if user.IsOrganizationRoot() || !in.Role.Valid() || *in.Role == models.RoleAdmin {
			return nil, ErrInvalidRole
		}
		if !p.IsAdmin() {
			return nil, ErrForbidden
		}
		updates["role"] = *in.Role
		reseed = true
	}
	if len(updates) == 0 {
		return user, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Updates(updates).Error; err != nil {
			return fmt.Errorf("updating user: %w", err)
		}
		if reseed {
			user.Role = *in.Role
			return permissions.Seed(tx, user)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if reseed && s.perms != nil {
		s.perms.InvalidateUser(ctx, user.ID)
	}
	return s.Get(ctx, p, id)
}

// UpdateSection replaces one profile satellite of userID.
func (s *Service) UpdateSection(ctx context.Context, userID uuid.UUID, in SectionInput) (*models.User, error) {
	res := s.db.WithContext(ctx).
		Model(in.model()).
		Where("user_id = ?", userID).
		Updates(in.columns())
	if res.Error != nil {
		return nil, fmt.Errorf("updating profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.Me(ctx, userID)
}

// UpdateAvatar stores a new avatar and removes the previous one once the new
// path is saved.
func (s *Service) UpdateAvatar(ctx context.Context, userID uuid.UUID, fh *multipart.FileHeader) (*models.User, error) {
	if msg := forms.CheckImage("avatar", fh); msg != "" {
		return nil, forms.Invalid("avatar", msg)
	}

	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	old := user.AvatarPath

	rel, err := s.blobs.Put(ctx, avatarNamespace, fh)
	if err != nil {
		return nil, fmt.Errorf("storing avatar: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(user).Update("avatar_path", rel).Error; err != nil {
		s.removeFile(ctx, rel)
		return nil, fmt.Errorf("saving avatar: %w", err)
	}
	user.AvatarPath = rel

	if old != "" {
		s.removeFile(ctx, old)
	}
	return user, nil
}

// ToggleSubscribe flips the subscription flag and returns the new value.
func (s *Service) ToggleSubscribe(ctx context.Context, userID uuid.UUID) (bool, error) {
	var subscribed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("is_subscribed", gorm.Expr("NOT is_subscribed"))
		if res.Error != nil {
			return fmt.Errorf("toggling subscription: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		var user models.User
		if err := tx.Select("is_subscribed").First(&user, "id = ?", userID).Error; err != nil {
			return fmt.Errorf("reloading user: %w", err)
		}
		subscribed = user.IsSubscribed
		return nil
	})
	return subscribed, err
}

// SetSuspended suspends or reinstates a user of p's organization.
func (s *Service) SetSuspended(ctx context.Context, p scope.Principal, id uuid.UUID, suspended bool) (*models.User, error) {
	if id == p.UserID {
		return nil, ErrSelfAction
	}
	if !p.CanManage() {
		return nil, ErrForbidden
	}
	user, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if user.IsOrganizationRoot() {
		return nil, ErrForbidden
	}

	if err := s.db.WithContext(ctx).Model(user).Update("is_suspended", suspended).Error; err != nil {
		return nil, fmt.Errorf("updating suspension: %w", err)
	}
	user.IsSuspended = suspended

	s.logger.Info("user suspension changed", "user_id", id, "suspended", suspended, "by", p.UserID)
	return user, nil
}

// Delete removes a user with its satellites, permissions and assignments.
// Deleting an organization root that still has members requires a successor,
// who becomes the new root and takes over every organization row.
func (s *Service) Delete(ctx context.Context, p scope.Principal, id uuid.UUID, successorID *uuid.UUID) error {
	if !p.IsAdmin() {
		return ErrForbidden
	}
	user, err := s.Get(ctx, p, id)
	if err != nil {
		return err
	}

	var successor *models.User
	if user.IsOrganizationRoot() {
		var members int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("parent_id = ?", user.ID).Count(&members).Error; err != nil {
			return fmt.Errorf("counting members: %w", err)
		}
		if members > 0 {
			if successorID == nil {
				return ErrOrganizationHasMembers
			}
			var next models.User
			err := s.db.WithContext(ctx).Where("id = ? AND parent_id = ?", *successorID, user.ID).First(&next).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrInvalidSuccessor
				}
				return fmt.Errorf("loading successor: %w", err)
			}
			successor = &next
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch {
		case successor != nil:
			if err := handOver(tx, user.ID, successor); err != nil {
				return err
			}
		case user.IsOrganizationRoot():
			for _, m := range orgTables {
				if err := tx.Where("admin_id = ?", user.ID).Delete(m).Error; err != nil {
					return fmt.Errorf("deleting organization rows: %w", err)
				}
			}
		}
		if err := detach(tx, user.ID); err != nil {
			return err
		}
		if err := removeOwned(tx, user.ID); err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(user).Error; err != nil {
			return fmt.Errorf("deleting user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.perms != nil {
		s.perms.InvalidateUser(ctx, user.ID)
		if successor != nil {
			s.perms.InvalidateUser(ctx, successor.ID)
		}
	}
	if user.AvatarPath != "" {
		s.removeFile(ctx, user.AvatarPath)
	}

	attrs := []any{"user_id", user.ID, "by", p.UserID}
	if successor != nil {
		attrs = append(attrs, "successor_id", successor.ID)
	}
	s.logger.Info("user deleted", attrs...)
	return nil
}

// handOver makes successor the root of rootID's organization.
func handOver(tx *gorm.DB, rootID uuid.UUID, successor *models.User) error {
	err := tx.Model(successor).Updates(map[string]interface{}{
		"parent_id": nil,
		"role":      models.RoleAdmin,
	}).Error
	if err != nil {
		return fmt.Errorf("promoting successor: %w", err)
	}
	successor.ParentID = nil
	successor.Role = models.RoleAdmin
	if err := permissions.Seed(tx, successor); err != nil {
		return err
	}

	err = tx.Unscoped().Model(&models.User{}).
		Where("parent_id = ?", rootID).
		Update("parent_id", successor.ID).Error
	if err != nil {
		return fmt.Errorf("moving members: %w", err)
	}

	for _, m := range orgTables {
		if err := tx.Unscoped().Model(m).Where("admin_id = ?", rootID).Update("admin_id", successor.ID).Error; err != nil {
			return fmt.Errorf("reassigning organization rows: %w", err)
		}
	}
	return nil
}

// detach clears references other rows hold to userID.
func detach(tx *gorm.DB, userID uuid.UUID) error {
	assigns := tx.Session(&gorm.Session{NewDB: true}).
		Model(&models.TaskUserAssign{}).
		Select("id").
		Where("user_id = ?", userID)
	if err := tx.Unscoped().Where("assign_id IN (?)", assigns).Delete(&models.IndividualTask{}).Error; err != nil {
		return fmt.Errorf("deleting checklist items: %w", err)
	}
	if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&models.TaskUserAssign{}).Error; err != nil {
		return fmt.Errorf("deleting assignments: %w", err)
	}
	if err := tx.Unscoped().Model(&models.Project{}).Where("client_id = ?", userID).Update("client_id", nil).Error; err != nil {
		return fmt.Errorf("clearing project client: %w", err)
	}
	if err := tx.Unscoped().Model(&models.BusinessLead{}).Where("assigned_to = ?", userID).Update("assigned_to", nil).Error; err != nil {
		return fmt.Errorf("clearing lead assignee: %w", err)
	}
	return nil
}

func (s *Service) removeFile(ctx context.Context, rel string) {
	if err := s.blobs.Delete(ctx, rel); err != nil {
		s.logger.Warn("failed to delete stored file", "path", rel, "error", err)
	}
}
