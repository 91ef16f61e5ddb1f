package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/users"
	"github.com/hugh/bizops/pkg/crypto"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email is not verified")
	ErrSuspended          = errors.New("account is suspended")
	ErrAlreadyVerified    = errors.New("email is already verified")
)

type Service struct {
	db       *gorm.DB
	jwt      *JWTService
	verifier *Verifier
	notifier Notifier
	logger   *slog.Logger
}

func NewService(db *gorm.DB, jwt *JWTService, verifier *Verifier, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{db: db, jwt: jwt, verifier: verifier, notifier: notifier, logger: logger}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

type LoginInput struct {
	Email    string
	Password string
}

type VerifyInput struct {
	UserID    uuid.UUID
	Hash      string
	Expires   string
	Signature string
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified organization root and asks for a
// verification mail. No session is issued until the email is verified.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:        normalizeEmail(input.Email),
		PasswordHash: hash,
		Name:         input.Name,
		Phone:        input.Phone,
		Role:         models.RoleAdmin,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrUserExists
			}
			return fmt.Errorf("creating user: %w", err)
		}
		return users.Provision(tx, &user)
	})
	if err != nil {
		return nil, err
	}

	s.requestVerification(ctx, user.ID)
	s.logger.Info("user registered", "user_id", user.ID)
	return &user, nil
}

func (s *Service) requestVerification(ctx context.Context, userID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.VerificationRequested(ctx, userID); err != nil {
		s.logger.Error("failed to queue verification mail", "user_id", userID, "error", err)
	}
}

// Login checks credentials first, then the verification and suspension
// gates, in that order.
func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Where("email = ?", normalizeEmail(input.Email)).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !crypto.CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsVerified() {
		return nil, ErrEmailNotVerified
	}
	if user.IsSuspended {
		return nil, ErrSuspended
	}

	token, err := s.jwt.TokenFor(&user)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		Token: token,
		User:  &user,
	}, nil
}

// VerifyEmail marks the user verified if the link is authentic, unexpired
// and still matches the user's current email. Verifying twice is a no-op.
func (s *Service) VerifyEmail(ctx context.Context, input VerifyInput) (*models.User, error) {
	if err := s.verifier.Check(input.UserID, input.Hash, input.Expires, input.Signature); err != nil {
		return nil, err
	}

	user, err := s.GetUserByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if crypto.EmailHash(user.Email) != input.Hash {
		return nil, ErrInvalidSignature
	}
	if user.IsVerified() {
		return user, nil
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(user).Update("email_verified_at", now).Error; err != nil {
		return nil, fmt.Errorf("marking email verified: %w", err)
	}
	user.EmailVerifiedAt = &now

	s.logger.Info("email verified", "user_id", user.ID)
	return user, nil
}

// ResendVerification queues another verification mail. Unknown emails are
// ignored so the endpoint does not reveal which addresses exist.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if user.IsVerified() {
		return ErrAlreadyVerified
	}

	s.requestVerification(ctx, user.ID)
	return nil
}

// ChatToken issues a chat-service token for an active user.
func (s *Service) ChatToken(ctx context.Context, userID uuid.UUID) (*ChatToken, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsSuspended {
		return nil, ErrSuspended
	}
	return s.jwt.GenerateChatToken(user)
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// VerificationLink builds the link mailed to user.
func (s *Service) VerificationLink(user *models.User) string {
	return s.verifier.Link(user)
}
