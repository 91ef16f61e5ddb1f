package projects_test

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/forms"
	"github.com/hugh/bizops/internal/projects"
	"github.com/hugh/bizops/internal/scope"
	"github.com/hugh/bizops/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*projects.Service, *testutil.TestSetup) {
	t.Helper()
	ts := testutil.NewTestContext(t)
	return projects.NewService(ts.DB, ts.Blobs, testutil.Logger()), ts
}

func TestCreateProject(t *testing.T) {
	svc, ts := newService(t)
	ctx := testutil.TestContext(t)
	admin := scope.PrincipalFor(ts.Admin)
	m1 := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleMember)
	m2 := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleMember)
	client := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleClient)

	project, err := svc.CreateProject(ctx, admin, projects.ProjectInput{
		Name:      "Website",
		ClientID:  &client.ID,
		MemberIDs: []uuid.UUID{m1.ID, m2.ID, m1.ID},
	})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^PRJ-[0-9A-F]{8}$`), project.ProjectCode)
	assert.Equal(t, ts.Admin.ID, project.AdminID)
	assert.Equal(t, models.PriorityMedium, project.Priority)
	assert.Len(t, project.Members, 2)

	t.Run("codes are unique", func(t *testing.T) {
		other, err := svc.CreateProject(ctx, admin, projects.ProjectInput{Name: "Other"})
		require.NoError(t, err)
		assert.NotEqual(t, project.ProjectCode, other.ProjectCode)
	})

	t.Run("foreign member rolls back", func(t *testing.T) {
		stranger := testutil.CreateTestOrgAdmin(t, ts.DB)
		_, err := svc.CreateProject(ctx, admin, projects.ProjectInput{Name: "Leaky", MemberIDs: []uuid.UUID{stranger.ID}})
		assert.ErrorIs(t, err, projects.ErrInvalidMember)

		var n int64
		ts.DB.Model(&models.Project{}).Where("name = ?", "Leaky").Count(&n)
		assert.Zero(t, n)
	})

	t.Run("client must have client role", func(t *testing.T) {
		_, err := svc.CreateProject(ctx, admin, projects.ProjectInput{Name: "Bad client", ClientID: &m1.ID})
		assert.ErrorIs(t, err, projects.ErrInvalidClient)
	})

	t.Run("invalid status", func(t *testing.T) {
		_, err := svc.CreateProject(ctx, admin, projects.ProjectInput{Name: "Bad", Status: 9})
		var verr *forms.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "status")
	})

	t.Run("member creator is added to members", func(t *testing.T) {
		created, err := svc.CreateProject(ctx, scope.PrincipalFor(m2), projects.ProjectInput{Name: "Mine"})
		require.NoError(t, err)
		require.Len(t, created.Members, 1)
		assert.Equal(t, m2.ID, created.Members[0].UserID)
	})
}

func TestProjectVisibility(t *testing.T) {
	svc, ts := newService(t)
	ctx := testutil.TestContext(t)

	member := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleMember)
	assigned := testutil.CreateTestProject(t, ts.DB, ts.Admin, "Assigned", member)
	hidden := testutil.CreateTestProject(t, ts.DB, ts.Admin, "Hidden")

	list, total, err := svc.ListProjects(ctx, scope.PrincipalFor(member), projects.ProjectFilter{}, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, assigned.ID, list[0].ID)

	_, err = svc.GetProject(ctx, scope.PrincipalFor(member), hidden.ID)
	assert.ErrorIs(t, err, projects.ErrNotFound)

	other := testutil.CreateTestOrgAdmin(t, ts.DB)
	_, err = svc.GetProject(ctx, scope.PrincipalFor(other), assigned.ID)
	assert.ErrorIs(t, err, projects.ErrNotFound)
}

func TestUpdateProgressAndStatus(t *testing.T) {
	svc, ts := newService(t)
	ctx := testutil.TestContext(t)
	admin := scope.PrincipalFor(ts.Admin)
	project := testutil.CreateTestProject(t, ts.DB, ts.Admin, "Progress")

	for _, tc := range []struct {
		progress int
		ok       bool
	}{{0, true}, {55, true}, {100, true}, {-1, false}, {101, false}} {
		updated, err := svc.UpdateProgress(ctx, admin, project.ID, tc.progress)
		if tc.ok {
			require.NoError(t, err)
			assert.Equal(t, tc.progress, updated.Progress)
			continue
		}
		var verr *forms.ValidationError
		assert.ErrorAs(t, err, &verr, "progress %d", tc.progress)
	}

	updated, err := svc.UpdateStatus(ctx, admin, project.ID, models.ProjectCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectCompleted, updated.Status)

	_, err = svc.UpdateStatus(ctx, admin, project.ID, 4)
	var verr *forms.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSyncMembers(t *testing.T) {
	svc, ts := newService(t)
	ctx := testutil.TestContext(t)
	admin := scope.PrincipalFor(ts.Admin)

	a := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleMember)
	b := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleMember)
	c := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleLeader)
	project := testutil.CreateTestProject(t, ts.DB, ts.Admin, "Sync", a, b)

	updated, err := svc.SyncMembers(ctx, admin, project.ID, []uuid.UUID{b.ID, c.ID})
	require.NoError(t, err)

	ids := map[uuid.UUID]bool{}
	for _, m := range updated.Members {
		ids[m.UserID] = true
	}
	assert.Equal(t, map[uuid.UUID]bool{b.ID: true, c.ID: true}, ids)

	updated, err = svc.SyncMembers(ctx, admin, project.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, updated.Members)
}

func TestUpdateThumbnail(t *testing.T) {
	svc, ts := newService(t)
	ctx := testutil.TestContext(t)
	admin := scope.PrincipalFor(ts.Admin)
	project := testutil.CreateTestProject(t, ts.DB, ts.Admin, "Thumb")

	first, err := svc.UpdateThumbnail(ctx, admin, project.ID, testutil.FileHeader(t, "a.png", []byte("a")))
	require.NoError(t, err)
	old := first.ThumbnailPath

	second, err := svc.UpdateThumbnail(ctx, admin, project.ID, testutil.FileHeader(t, "b.webp", []byte("b")))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(ts.Blobs.Root(), second.ThumbnailPath))
	_, err = os.Stat(filepath.Join(ts.Blobs.Root(), old))
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteProject(t *testing.T) {
	svc, ts := newService(t)
	ctx := testutil.TestContext(t)
	member := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleMember)
	project := testutil.CreateTestProject(t, ts.DB, ts.Admin, "Doomed", member)
	task := testutil.CreateTestTask(t, ts.DB, ts.Admin, project, "child", member)

	require.NoError(t, svc.DeleteProject(ctx, scope.PrincipalFor(ts.Admin), project.ID))

	var n int64
	ts.DB.Unscoped().Model(&models.Task{}).Where("id = ?", task.ID).Count(&n)
	assert.Zero(t, n)
	ts.DB.Unscoped().Model(&models.Project{}).Where("id = ?", project.ID).Count(&n)
	assert.Zero(t, n)
	ts.DB.Model(&models.ProjectUser{}).Where("project_id = ?", project.ID).Count(&n)
	assert.Zero(t, n)
	ts.DB.Model(&models.TaskUserAssign{}).Where("task_id = ?", task.ID).Count(&n)
	assert.Zero(t, n)
}
