package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/api/dto"
	"github.com/hugh/bizops/internal/auth"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/scope"
)

type contextKey string

const (
	UserIDKey         contextKey = "user_id"
	OrganizationIDKey contextKey = "organization_id"
	UserEmailKey      contextKey = "user_email"
	UserRoleKey       contextKey = "user_role"
)

// TokenValidator checks a bearer token.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// UserLoader fetches the current state of a token's subject.
type UserLoader interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Auth authenticates the request and stores the caller in the context. The
// token only names the user; role, organization and suspension come from the
// stored user on every request.
func Auth(tokens TokenValidator, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string

			// 1. Check Authorization header (API requests)
			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}

			// 2. Check cookie set at login
			if token == "" {
				if cookie, err := r.Cookie("token"); err == nil && cookie.Value != "" {
					token = cookie.Value
				}
			}

			if token == "" {
				dto.Error(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				dto.Error(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			}

			user, err := users.GetUserByID(r.Context(), claims.UserID)
			switch {
			case errors.Is(err, auth.ErrUserNotFound):
				dto.Error(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			case err != nil:
				dto.Error(w, http.StatusInternalServerError, "Something went wrong.")
				return
			case user.IsSuspended:
				dto.Error(w, http.StatusForbidden, "Account is suspended.")
				return
			}

			p := scope.PrincipalFor(user)
			ctx := r.Context()
			ctx = context.WithValue(ctx, UserIDKey, p.UserID)
			ctx = context.WithValue(ctx, OrganizationIDKey, p.OrgID)
			ctx = context.WithValue(ctx, UserEmailKey, user.Email)
			ctx = context.WithValue(ctx, UserRoleKey, string(p.Role))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Helper functions to extract values from context
func GetUserID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(UserIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func GetOrganizationID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(OrganizationIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func GetUserEmail(ctx context.Context) string {
	if email, ok := ctx.Value(UserEmailKey).(string); ok {
		return email
	}
	return ""
}

func GetUserRole(ctx context.Context) string {
	if role, ok := ctx.Value(UserRoleKey).(string); ok {
		return role
	}
	return ""
}

// GetPrincipal returns the authenticated caller.
func GetPrincipal(ctx context.Context) scope.Principal {
	return scope.Principal{
		UserID: GetUserID(ctx),
		OrgID:  GetOrganizationID(ctx),
		Role:   models.Role(GetUserRole(ctx)),
	}
}

// RequireRole middleware ensures user has specific role
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRole := models.Role(GetUserRole(r.Context()))

			for _, role := range roles {
				if userRole == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			dto.Error(w, http.StatusForbidden, "This action is unauthorized.")
		})
	}
}
