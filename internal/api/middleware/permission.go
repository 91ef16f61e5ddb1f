package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hugh/bizops/internal/api/dto"
	"github.com/hugh/bizops/internal/scope"
)

// PermissionChecker decides whether a principal may use a feature with an
// HTTP method.
type PermissionChecker interface {
	Allowed(ctx context.Context, p scope.Principal, feature, method string) (bool, error)
}

// RequirePermission gates every request on feature by the caller's
// permission flag for the request method.
func RequirePermission(checker PermissionChecker, feature string, logger *slog.Logger) func(http.Handler) http.Handler {
	return gate(checker, feature, logger, false)
}

// RequireWritePermission is RequirePermission for mutating methods only.
// Reads fall through to the scope filters.
func RequireWritePermission(checker PermissionChecker, feature string, logger *slog.Logger) func(http.Handler) http.Handler {
	return gate(checker, feature, logger, true)
}

// RequirePermissionAs checks the caller's flag for a fixed method whatever
// the request method. Checklist routes use it so that ticking or adding an
// item counts as editing the task.
func RequirePermissionAs(checker PermissionChecker, feature, method string, logger *slog.Logger) func(http.Handler) http.Handler {
	return check(checker, feature, logger, func(*http.Request) string { return method })
}

func gate(checker PermissionChecker, feature string, logger *slog.Logger, writesOnly bool) func(http.Handler) http.Handler {
	return check(checker, feature, logger, func(r *http.Request) string {
		if writesOnly && (r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions) {
			return ""
		}
		return r.Method
	})
}

// check asks checker about the method chosen by methodFor; an empty method
// skips the check.
func check(checker PermissionChecker, feature string, logger *slog.Logger, methodFor func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method := methodFor(r)
			if method == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := checker.Allowed(r.Context(), GetPrincipal(r.Context()), feature, method)
			if err != nil {
				logger.Error("permission check failed", "feature", feature, "method", method, "error", err)
				dto.Error(w, http.StatusInternalServerError, "Something went wrong.")
				return
			}
			if !allowed {
				dto.Error(w, http.StatusForbidden, "This action is unauthorized.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
