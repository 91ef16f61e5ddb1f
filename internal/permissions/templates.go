package permissions

import (
	"net/http"
	"strings"

	"github.com/hugh/bizops/internal/database/models"
)

const (
	FeatureProjects    = "projects"
	FeatureTasks       = "tasks"
	FeatureLeads       = "leads"
	FeatureForms       = "forms"
	FeatureSubmissions = "submissions"
	FeatureUsers       = "users"
)

// DefaultDecision applies when a user has no row for a feature and method.
const DefaultDecision = false

var (
	Features = []string{FeatureProjects, FeatureTasks, FeatureLeads, FeatureForms, FeatureSubmissions, FeatureUsers}
	Methods  = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}
)

type grants map[string][]string

// templates lists what each role is allowed on creation. Anything not listed
// is seeded as denied.
var templates = map[models.Role]grants{
	models.RoleLeader: {
		FeatureProjects:    Methods,
		FeatureTasks:       Methods,
		FeatureLeads:       Methods,
		FeatureForms:       Methods,
		FeatureSubmissions: Methods,
		FeatureUsers:       {http.MethodGet, http.MethodPost, http.MethodPut},
	},
	models.RoleMember: {
		FeatureProjects:    {http.MethodGet},
		FeatureTasks:       {http.MethodGet, http.MethodPut},
		FeatureLeads:       {http.MethodGet, http.MethodPost, http.MethodPut},
		FeatureForms:       {http.MethodGet},
		FeatureSubmissions: {http.MethodGet, http.MethodPost, http.MethodPut},
		FeatureUsers:       {http.MethodGet},
	},
}

// Template returns the seeded rows for role. Roles without a template get
// none.
func Template(role models.Role) []models.Permission {
	g, ok := templates[role]
	if !ok {
		return nil
	}

	out := make([]models.Permission, 0, len(Features)*len(Methods))
	for _, feature := range Features {
		allowed := make(map[string]bool)
		for _, m := range g[feature] {
			allowed[m] = true
		}
		for _, method := range Methods {
			out = append(out, models.Permission{
				Feature: feature,
				Method:  method,
				Status:  allowed[method],
			})
		}
	}
	return out
}

// NormalizeMethod folds HTTP methods onto the four stored ones.
func NormalizeMethod(method string) string {
	switch m := strings.ToUpper(method); m {
	case http.MethodPatch:
		return http.MethodPut
	case http.MethodHead, http.MethodOptions:
		return http.MethodGet
	default:
		return m
	}
}
