// Package scope decides which organization a user belongs to and which rows
// of each tenant-owned table that user may see.
package scope

import (
	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/database/models"
	"gorm.io/gorm"
)

// ResolveOrgID returns the organization root id for u: its own id when it has
// no parent, otherwise the parent reference. The parent is not looked up.
func ResolveOrgID(u *models.User) uuid.UUID {
	if u.ParentID == nil {
		return u.ID
	}
	return *u.ParentID
}

// Principal is the authenticated caller as seen by query filters.
type Principal struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Role   models.Role
}

func PrincipalFor(u *models.User) Principal {
	return Principal{
		UserID: u.ID,
		OrgID:  ResolveOrgID(u),
		Role:   u.Role,
	}
}

func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// CanManage reports whether p sees the whole organization (admin or leader).
func (p Principal) CanManage() bool {
	return p.Role == models.RoleAdmin || p.Role == models.RoleLeader
}

type Kind string

const (
	Projects    Kind = "projects"
	Tasks       Kind = "tasks"
	Leads       Kind = "leads"
	Users       Kind = "users"
	Forms       Kind = "forms"
	Submissions Kind = "submissions"
)

// Apply returns a gorm scope narrowing a query on kind's table to the rows p
// may see. Every branch is bounded by p's organization; unknown roles and
// unknown kinds see nothing.
func Apply(p Principal, kind Kind) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch kind {
		case Projects:
			return projects(db, p)
		case Tasks:
			return tasks(db, p)
		case Leads:
			return leads(db, p)
		case Users:
			return users(db, p)
		case Forms:
			return forms(db, p)
		case Submissions:
			return submissions(db, p)
		}
		return none(db)
	}
}

func none(db *gorm.DB) *gorm.DB {
	return db.Where("1 = 0")
}

func projects(db *gorm.DB, p Principal) *gorm.DB {
	db = db.Where("projects.admin_id = ?", p.OrgID)
	switch p.Role {
	case models.RoleAdmin, models.RoleLeader:
		return db
	case models.RoleMember:
		return db.Where("projects.id IN (?)",
			db.Session(&gorm.Session{NewDB: true}).
				Model(&models.ProjectUser{}).
				Select("project_id").
				Where("user_id = ?", p.UserID))
	case models.RoleClient:
		return db.Where("projects.client_id = ?", p.UserID)
	}
	return none(db)
}

func tasks(db *gorm.DB, p Principal) *gorm.DB {
	db = db.Where("tasks.admin_id = ?", p.OrgID)
	switch p.Role {
	case models.RoleAdmin, models.RoleLeader:
		return db
	case models.RoleMember:
		return db.Where("tasks.id IN (?)",
			db.Session(&gorm.Session{NewDB: true}).
				Model(&models.TaskUserAssign{}).
				Select("task_id").
				Where("user_id = ?", p.UserID))
	case models.RoleClient:
		return db.Where("tasks.project_id IN (?)",
			db.Session(&gorm.Session{NewDB: true}).
				Model(&models.Project{}).
				Select("id").
				Where("client_id = ? AND admin_id = ?", p.UserID, p.OrgID))
	}
	return none(db)
}

func leads(db *gorm.DB, p Principal) *gorm.DB {
	db = db.Where("business_leads.admin_id = ?", p.OrgID)
	switch p.Role {
	case models.RoleAdmin, models.RoleLeader:
		return db
	case models.RoleMember:
		return db.Where("(business_leads.created_by = ? OR business_leads.assigned_to = ?)", p.UserID, p.UserID)
	}
	return none(db)
}

func users(db *gorm.DB, p Principal) *gorm.DB {
	switch p.Role {
	case models.RoleAdmin, models.RoleLeader:
		return db.Where("(users.id = ? OR users.parent_id = ?)", p.OrgID, p.OrgID)
	case models.RoleMember, models.RoleClient:
		return db.Where("users.id = ?", p.UserID)
	}
	return none(db)
}

func forms(db *gorm.DB, p Principal) *gorm.DB {
	if !p.Role.Valid() {
		return none(db)
	}
	return db.Where("forms.admin_id = ?", p.OrgID)
}

func submissions(db *gorm.DB, p Principal) *gorm.DB {
	db = db.Where("form_submissions.admin_id = ?", p.OrgID)
	switch p.Role {
	case models.RoleAdmin, models.RoleLeader:
		return db
	case models.RoleMember, models.RoleClient:
		return db.Where("form_submissions.submitted_by = ?", p.UserID)
	}
	return none(db)
}
