package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hugh/bizops/internal/api/dto"
	"github.com/hugh/bizops/internal/api/handlers"
	"github.com/hugh/bizops/internal/api/middleware"
	"github.com/hugh/bizops/internal/auth"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/forms"
	"github.com/hugh/bizops/internal/leads"
	"github.com/hugh/bizops/internal/permissions"
	"github.com/hugh/bizops/internal/projects"
	"github.com/hugh/bizops/internal/storage"
	"github.com/hugh/bizops/internal/submissions"
	"github.com/hugh/bizops/internal/users"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB          *gorm.DB
	Redis       *redis.Client // optional; caches permission lookups
	Logger      *slog.Logger
	JWTService  *auth.JWTService
	AuthService *auth.Service
	Blobs       storage.Store
	StoragePath string                 // URL path local blobs are served under
	Logins      handlers.LoginRecorder // optional
	Limiter     *middleware.RateLimiter
	// AllowedOrigins defaults to local development hosts when empty.
	AllowedOrigins []string
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		dto.Error(w, http.StatusNotFound, "Not found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		dto.Error(w, http.StatusMethodNotAllowed, "Method not allowed.")
	})

	// Initialize services
	permService := permissions.NewService(cfg.DB, cfg.Redis, cfg.Logger)
	userService := users.NewService(cfg.DB, cfg.Blobs, permService, cfg.Logger)
	projectService := projects.NewService(cfg.DB, cfg.Blobs, cfg.Logger)
	leadService := leads.NewService(cfg.DB, cfg.Logger)
	formService := forms.NewService(cfg.DB, cfg.Blobs, cfg.Logger)
	submissionStore := submissions.NewStore(cfg.DB, cfg.Blobs, cfg.Logger)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.Blobs, cfg.Logins, cfg.Logger)
	userHandler := handlers.NewUserHandler(userService, permService, cfg.Blobs, cfg.Logger)
	projectHandler := handlers.NewProjectHandler(projectService, cfg.Blobs, cfg.Logger)
	taskHandler := handlers.NewTaskHandler(projectService, cfg.Logger)
	leadHandler := handlers.NewLeadHandler(leadService, cfg.Logger)
	formHandler := handlers.NewFormHandler(formService, cfg.Logger)
	submissionHandler := handlers.NewSubmissionHandler(formService, submissionStore, cfg.Blobs, cfg.Logger)

	gate := func(feature string) func(http.Handler) http.Handler {
		return middleware.RequirePermission(permService, feature, cfg.Logger)
	}
	writeGate := func(feature string) func(http.Handler) http.Handler {
		return middleware.RequireWritePermission(permService, feature, cfg.Logger)
	}

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	if local, ok := cfg.Blobs.(*storage.Local); ok {
		prefix := "/" + strings.Trim(cfg.StoragePath, "/")
		if prefix == "/" {
			prefix = "/storage"
		}
		r.Handle(prefix+"/*", http.StripPrefix(prefix, local.Handler()))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Group(func(r chi.Router) {
			if cfg.Limiter != nil {
				r.Use(middleware.RateLimit(cfg.Limiter, middleware.ByIP))
			}
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/email/resend", authHandler.Resend)
		})
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/email/verify/{id}/{hash}", authHandler.Verify)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService, cfg.AuthService))

			r.Route("/me", func(r chi.Router) {
				r.Get("/", userHandler.Me)
				r.Put("/profile/{section}", userHandler.UpdateSection)
				r.Post("/avatar", userHandler.UpdateAvatar)
				r.Post("/subscribe", userHandler.ToggleSubscribe)
			})
			r.Get("/chat/token", authHandler.ChatToken)

			r.Route("/users", func(r chi.Router) {
				r.Use(gate(permissions.FeatureUsers))
				r.Get("/", userHandler.List)
				r.Post("/", userHandler.Create)
				r.Get("/{id}", userHandler.Get)
				r.Put("/{id}", userHandler.Update)
				r.Patch("/{id}", userHandler.Update)
				r.Delete("/{id}", userHandler.Delete)
				r.Put("/{id}/suspend", userHandler.Suspend)
				r.Get("/{id}/permissions", userHandler.Permissions)
			})

			r.With(middleware.RequireRole(models.RoleAdmin)).
				Put("/permissions/{id}", userHandler.UpdatePermission)

			r.Route("/projects", func(r chi.Router) {
				r.Use(writeGate(permissions.FeatureProjects))
				r.Get("/", projectHandler.List)
				r.Post("/", projectHandler.Create)
				r.Get("/{id}", projectHandler.Get)
				r.Put("/{id}", projectHandler.Update)
				r.Patch("/{id}", projectHandler.Update)
				r.Delete("/{id}", projectHandler.Delete)
				r.Put("/{id}/progress", projectHandler.UpdateProgress)
				r.Put("/{id}/status", projectHandler.UpdateStatus)
				r.Put("/{id}/members", projectHandler.SyncMembers)
				r.Post("/{id}/thumbnail", projectHandler.UpdateThumbnail)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermissionAs(permService, permissions.FeatureTasks, http.MethodPut, cfg.Logger))
					r.Put("/items/{iid}", taskHandler.UpdateItem)
					r.Patch("/items/{iid}", taskHandler.UpdateItem)
					r.Post("/items/{iid}/toggle", taskHandler.ToggleItem)
					r.Delete("/items/{iid}", taskHandler.DeleteItem)
					r.Post("/{id}/assignments/{aid}/items", taskHandler.AddItem)
				})
				r.Group(func(r chi.Router) {
					r.Use(writeGate(permissions.FeatureTasks))
					r.Get("/", taskHandler.List)
					r.Post("/", taskHandler.Create)
					r.Get("/{id}", taskHandler.Get)
					r.Put("/{id}", taskHandler.Update)
					r.Patch("/{id}", taskHandler.Update)
					r.Delete("/{id}", taskHandler.Delete)
					r.Post("/{id}/assignments", taskHandler.Assign)
					r.Put("/{id}/assignments/{aid}", taskHandler.UpdateAssignment)
					r.Delete("/{id}/assignments/{aid}", taskHandler.Unassign)
				})
			})

			r.Route("/leads", func(r chi.Router) {
				r.Use(gate(permissions.FeatureLeads))
				r.Get("/", leadHandler.List)
				r.Post("/", leadHandler.Create)
				r.Post("/import", leadHandler.Import)
				r.Get("/{id}", leadHandler.Get)
				r.Put("/{id}", leadHandler.Update)
				r.Patch("/{id}", leadHandler.Update)
				r.Delete("/{id}", leadHandler.Delete)
			})

			r.Route("/forms", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(writeGate(permissions.FeatureForms))
					r.Get("/", formHandler.List)
					r.Post("/", formHandler.Create)
					r.Get("/{id}", formHandler.Get)
					r.Put("/{id}", formHandler.Update)
					r.Patch("/{id}", formHandler.Update)
					r.Delete("/{id}", formHandler.Delete)
				})
				r.Route("/{id}/submissions", func(r chi.Router) {
					r.Use(writeGate(permissions.FeatureSubmissions))
					r.Get("/", submissionHandler.List)
					r.Post("/", submissionHandler.Create)
					r.Get("/table", submissionHandler.Table)
				})
			})

			r.Route("/submissions/{id}", func(r chi.Router) {
				r.Use(writeGate(permissions.FeatureSubmissions))
				r.Get("/", submissionHandler.Get)
				r.Put("/", submissionHandler.Update)
				r.Post("/", submissionHandler.Update)
				r.Delete("/", submissionHandler.Delete)
				r.Put("/status", submissionHandler.UpdateStatus)
			})
		})
	})

	return &Router{r}
}
