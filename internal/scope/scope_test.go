package scope_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/scope"
	"github.com/hugh/bizops/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestResolveOrgID(t *testing.T) {
	root := uuid.New()
	child := uuid.New()

	assert.Equal(t, root, scope.ResolveOrgID(&models.User{Base: models.Base{ID: root}}))
	assert.Equal(t, root, scope.ResolveOrgID(&models.User{Base: models.Base{ID: child}, ParentID: &root}))
}

func projectIDs(t *testing.T, db *gorm.DB, p scope.Principal) []uuid.UUID {
	t.Helper()
	var ids []uuid.UUID
	require.NoError(t, db.Model(&models.Project{}).Scopes(scope.Apply(p, scope.Projects)).Pluck("projects.id", &ids).Error)
	return ids
}

func TestProjects(t *testing.T) {
	ts := testutil.NewTestContext(t)
	member := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleMember)
	leader := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleLeader)
	client := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleClient)

	assigned := testutil.CreateTestProject(t, ts.DB, ts.Admin, "Assigned", member)
	other := testutil.CreateTestProject(t, ts.DB, ts.Admin, "Other")
	ts.DB.Model(other).Update("client_id", client.ID)

	foreignRoot := testutil.CreateTestOrgAdmin(t, ts.DB)
	testutil.CreateTestProject(t, ts.DB, foreignRoot, "Foreign", member)

	assert.ElementsMatch(t, []uuid.UUID{assigned.ID, other.ID}, projectIDs(t, ts.DB, scope.PrincipalFor(ts.Admin)))
	assert.ElementsMatch(t, []uuid.UUID{assigned.ID, other.ID}, projectIDs(t, ts.DB, scope.PrincipalFor(leader)))
	assert.Equal(t, []uuid.UUID{assigned.ID}, projectIDs(t, ts.DB, scope.PrincipalFor(member)))
	assert.Equal(t, []uuid.UUID{other.ID}, projectIDs(t, ts.DB, scope.PrincipalFor(client)))

	stranger := scope.PrincipalFor(member)
	stranger.Role = models.Role("auditor")
	assert.Empty(t, projectIDs(t, ts.DB, stranger))
}

func TestTasks(t *testing.T) {
	ts := testutil.NewTestContext(t)
	member := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleMember)
	client := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleClient)

	project := testutil.CreateTestProject(t, ts.DB, ts.Admin, "Client work")
	ts.DB.Model(project).Update("client_id", client.ID)

	mine := testutil.CreateTestTask(t, ts.DB, ts.Admin, nil, "Mine", member)
	forClient := testutil.CreateTestTask(t, ts.DB, ts.Admin, project, "For client")

	ids := func(p scope.Principal) []uuid.UUID {
		var out []uuid.UUID
		require.NoError(t, ts.DB.Model(&models.Task{}).Scopes(scope.Apply(p, scope.Tasks)).Pluck("tasks.id", &out).Error)
		return out
	}

	assert.ElementsMatch(t, []uuid.UUID{mine.ID, forClient.ID}, ids(scope.PrincipalFor(ts.Admin)))
	assert.Equal(t, []uuid.UUID{mine.ID}, ids(scope.PrincipalFor(member)))
	assert.Equal(t, []uuid.UUID{forClient.ID}, ids(scope.PrincipalFor(client)))
	assert.Empty(t, ids(scope.PrincipalFor(testutil.CreateTestOrgAdmin(t, ts.DB))))
}

func TestLeads(t *testing.T) {
	ts := testutil.NewTestContext(t)
	member := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleMember)
	client := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleClient)

	own := testutil.CreateTestLead(t, ts.DB, ts.Admin, member, "Own lead")
	assigned := testutil.CreateTestLead(t, ts.DB, ts.Admin, ts.Admin, "Assigned lead")
	ts.DB.Model(assigned).Update("assigned_to", member.ID)
	unrelated := testutil.CreateTestLead(t, ts.DB, ts.Admin, ts.Admin, "Unrelated lead")

	ids := func(p scope.Principal) []uuid.UUID {
		var out []uuid.UUID
		require.NoError(t, ts.DB.Model(&models.BusinessLead{}).Scopes(scope.Apply(p, scope.Leads)).Pluck("business_leads.id", &out).Error)
		return out
	}

	assert.ElementsMatch(t, []uuid.UUID{own.ID, assigned.ID, unrelated.ID}, ids(scope.PrincipalFor(ts.Admin)))
	assert.ElementsMatch(t, []uuid.UUID{own.ID, assigned.ID}, ids(scope.PrincipalFor(member)))
	assert.Empty(t, ids(scope.PrincipalFor(client)))
}

func TestUsers(t *testing.T) {
	ts := testutil.NewTestContext(t)
	leader := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleLeader)
	member := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleMember)
	testutil.CreateTestOrgAdmin(t, ts.DB)

	ids := func(p scope.Principal) []uuid.UUID {
		var out []uuid.UUID
		require.NoError(t, ts.DB.Model(&models.User{}).Scopes(scope.Apply(p, scope.Users)).Pluck("users.id", &out).Error)
		return out
	}

	assert.ElementsMatch(t, []uuid.UUID{ts.Admin.ID, leader.ID, member.ID}, ids(scope.PrincipalFor(leader)))
	assert.Equal(t, []uuid.UUID{member.ID}, ids(scope.PrincipalFor(member)))
}

func TestFormsAndSubmissions(t *testing.T) {
	ts := testutil.NewTestContext(t)
	member := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleMember)
	form := testutil.CreateTestForm(t, ts.DB, ts.Admin)

	mine := &models.FormSubmission{FormID: form.ID, SubmittedBy: member.ID, AdminID: ts.Admin.ID}
	theirs := &models.FormSubmission{FormID: form.ID, SubmittedBy: ts.Admin.ID, AdminID: ts.Admin.ID}
	require.NoError(t, ts.DB.Create(mine).Error)
	require.NoError(t, ts.DB.Create(theirs).Error)

	var formIDs []uuid.UUID
	require.NoError(t, ts.DB.Model(&models.Form{}).Scopes(scope.Apply(scope.PrincipalFor(member), scope.Forms)).Pluck("forms.id", &formIDs).Error)
	assert.Equal(t, []uuid.UUID{form.ID}, formIDs)

	other := testutil.CreateTestOrgAdmin(t, ts.DB)
	formIDs = nil
	require.NoError(t, ts.DB.Model(&models.Form{}).Scopes(scope.Apply(scope.PrincipalFor(other), scope.Forms)).Pluck("forms.id", &formIDs).Error)
	assert.Empty(t, formIDs)

	var subIDs []uuid.UUID
	require.NoError(t, ts.DB.Model(&models.FormSubmission{}).Scopes(scope.Apply(scope.PrincipalFor(member), scope.Submissions)).Pluck("form_submissions.id", &subIDs).Error)
	assert.Equal(t, []uuid.UUID{mine.ID}, subIDs)
}

func TestUnknownKind(t *testing.T) {
	ts := testutil.NewTestContext(t)
	testutil.CreateTestProject(t, ts.DB, ts.Admin, "Any")

	var n int64
	require.NoError(t, ts.DB.Model(&models.Project{}).Scopes(scope.Apply(scope.PrincipalFor(ts.Admin), scope.Kind("invoices"))).Count(&n).Error)
	assert.Zero(t, n)
}
