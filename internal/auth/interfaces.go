package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/database/models"
)

// Authenticator defines the interface for user authentication operations.
type Authenticator interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, input LoginInput) (*AuthResponse, error)
	VerifyEmail(ctx context.Context, input VerifyInput) (*models.User, error)
	ResendVerification(ctx context.Context, email string) error
	ChatToken(ctx context.Context, userID uuid.UUID) (*ChatToken, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TokenService defines the interface for JWT token operations.
type TokenService interface {
	GenerateToken(userID, orgID uuid.UUID, email, role string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// Notifier is told when a user needs a verification email.
type Notifier interface {
	VerificationRequested(ctx context.Context, userID uuid.UUID) error
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator = (*Service)(nil)
	_ TokenService  = (*JWTService)(nil)
)
