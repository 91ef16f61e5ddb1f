package users_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/forms"
	"github.com/hugh/bizops/internal/permissions"
	"github.com/hugh/bizops/internal/scope"
	"github.com/hugh/bizops/internal/testutil"
	"github.com/hugh/bizops/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*users.Service, *testutil.TestSetup) {
	t.Helper()
	ts := testutil.NewTestContext(t)
	perms := permissions.NewService(ts.DB, nil, testutil.Logger())
	return users.NewService(ts.DB, ts.Blobs, perms, testutil.Logger()), ts
}

func createMember(t *testing.T, svc *users.Service, admin *models.User, role models.Role) *models.User {
	t.Helper()
	u, err := svc.CreateMember(testutil.TestContext(t), scope.PrincipalFor(admin), users.CreateMemberInput{
		Email:    uuid.NewString()[:8] + "@example.com",
		Password: "password123",
		Name:     "Member",
		Role:     role,
	})
	require.NoError(t, err)
	return u
}

func count(t *testing.T, db *gorm.DB, model interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func TestCreateMember(t *testing.T) {
	svc, ts := newService(t)
	ctx := testutil.TestContext(t)
	admin := scope.PrincipalFor(ts.Admin)

	t.Run("creates satellites and permissions", func(t *testing.T) {
		u := createMember(t, svc, ts.Admin, models.RoleMember)

		assert.Equal(t, ts.Admin.ID, *u.ParentID)
		assert.True(t, u.IsVerified())
		assert.Equal(t, int64(1), count(t, ts.DB, &models.EmergencyContact{}, "user_id = ?", u.ID))
		assert.Equal(t, int64(1), count(t, ts.DB, &models.SecuritySetting{}, "user_id = ?", u.ID))
		assert.Equal(t, int64(1), count(t, ts.DB, &models.NotificationPreference{}, "user_id = ?", u.ID))
		assert.Equal(t, int64(1), count(t, ts.DB, &models.DisplayPreference{}, "user_id = ?", u.ID))
		assert.Equal(t, int64(1), count(t, ts.DB, &models.SocialLinks{}, "user_id = ?", u.ID))
		assert.Equal(t, int64(len(permissions.Features)*len(permissions.Methods)),
			count(t, ts.DB, &models.Permission{}, "user_id = ?", u.ID))
	})

	t.Run("admin role is rejected", func(t *testing.T) {
		_, err := svc.CreateMember(ctx, admin, users.CreateMemberInput{Email: "a2@example.com", Password: "password123", Role: models.RoleAdmin})
		assert.ErrorIs(t, err, users.ErrInvalidRole)
	})

	t.Run("duplicate email", func(t *testing.T) {
		in := users.CreateMemberInput{Email: "dup@example.com", Password: "password123", Role: models.RoleClient}
		_, err := svc.CreateMember(ctx, admin, in)
		require.NoError(t, err)
		_, err = svc.CreateMember(ctx, admin, in)
		assert.ErrorIs(t, err, users.ErrEmailTaken)
	})

	t.Run("leader cannot create leaders", func(t *testing.T) {
		leader := createMember(t, svc, ts.Admin, models.RoleLeader)
		_, err := svc.CreateMember(ctx, scope.PrincipalFor(leader), users.CreateMemberInput{Email: "l2@example.com", Password: "password123", Role: models.RoleLeader})
		assert.ErrorIs(t, err, users.ErrForbidden)
	})

	t.Run("member cannot create users", func(t *testing.T) {
		member := createMember(t, svc, ts.Admin, models.RoleMember)
		_, err := svc.CreateMember(ctx, scope.PrincipalFor(member), users.CreateMemberInput{Email: "m2@example.com", Password: "password123", Role: models.RoleMember})
		assert.ErrorIs(t, err, users.ErrForbidden)
	})

	t.Run("organizations are one level deep", func(t *testing.T) {
		member := createMember(t, svc, ts.Admin, models.RoleMember)
		nested := scope.Principal{UserID: member.ID, OrgID: member.ID, Role: models.RoleAdmin}
		_, err := svc.CreateMember(ctx, nested, users.CreateMemberInput{Email: "deep@example.com", Password: "password123", Role: models.RoleMember})
		assert.ErrorIs(t, err, users.ErrInvalidParent)
		assert.Equal(t, int64(0), count(t, ts.DB, &models.User{}, "email = ?", "deep@example.com"))
	})
}

func TestListAndGet(t *testing.T) {
	svc, ts := newService(t)
	ctx := testutil.TestContext(t)

	member := createMember(t, svc, ts.Admin, models.RoleMember)
	createMember(t, svc, ts.Admin, models.RoleClient)
	other := testutil.CreateTestOrgAdmin(t, ts.DB)

	t.Run("admin sees the whole organization", func(t *testing.T) {
		list, total, err := svc.List(ctx, scope.PrincipalFor(ts.Admin), users.ListFilter{}, 0, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, list, 3)
	})

	t.Run("role filter", func(t *testing.T) {
		_, total, err := svc.List(ctx, scope.PrincipalFor(ts.Admin), users.ListFilter{Role: models.RoleClient}, 0, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("member sees only itself", func(t *testing.T) {
		list, total, err := svc.List(ctx, scope.PrincipalFor(member), users.ListFilter{}, 0, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, member.ID, list[0].ID)
	})

	t.Run("other organization gets not found", func(t *testing.T) {
		_, err := svc.Get(ctx, scope.PrincipalFor(other), member.ID)
		assert.ErrorIs(t, err, users.ErrNotFound)
	})

	t.Run("get preloads profile", func(t *testing.T) {
		u, err := svc.Get(ctx, scope.PrincipalFor(ts.Admin), member.ID)
		require.NoError(t, err)
		require.NotNil(t, u.DisplayPreference)
		assert.Equal(t, "light", u.DisplayPreference.Theme)
	})
}

func TestUpdate(t *testing.T) {
	svc, ts := newService(t)
	ctx := testutil.TestContext(t)
	member := createMember(t, svc, ts.Admin, models.RoleMember)

	t.Run("role change reseeds permissions", func(t *testing.T) {
		role := models.RoleLeader
		u, err := svc.Update(ctx, scope.PrincipalFor(ts.Admin), member.ID, users.UpdateInput{Role: &role})
		require.NoError(t, err)
		assert.Equal(t, models.RoleLeader, u.Role)

		var perm models.Permission
		require.NoError(t, ts.DB.Where("user_id = ? AND feature = ? AND method = ?", member.ID, permissions.FeatureProjects, "DELETE").First(&perm).Error)
		assert.True(t, perm.Status)
	})

	t.Run("root keeps its role", func(t *testing.T) {
		role := models.RoleMember
		_, err := svc.Update(ctx, scope.PrincipalFor(ts.Admin), ts.Admin.ID, users.UpdateInput{Role: &role})
		assert.ErrorIs(t, err, users.ErrInvalidRole)
	})
}

func TestUpdateSection(t *testing.T) {
	svc, ts := newService(t)
	ctx := testutil.TestContext(t)
	member := createMember(t, svc, ts.Admin, models.RoleMember)

	in, err := users.NewSectionInput("display")
	require.NoError(t, err)
	display := in.(*users.DisplayInput)
	display.Theme = "dark"
	display.Language = "fr"
	display.Timezone = "Europe/Paris"

	u, err := svc.UpdateSection(ctx, member.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "dark", u.DisplayPreference.Theme)
	assert.Equal(t, "Europe/Paris", u.DisplayPreference.Timezone)

	t.Run("other sections untouched", func(t *testing.T) {
		assert.True(t, u.NotificationPreference.EmailEnabled)
	})

	t.Run("booleans can be cleared", func(t *testing.T) {
		u, err := svc.UpdateSection(ctx, member.ID, &users.NotificationInput{PushEnabled: true})
		require.NoError(t, err)
		assert.False(t, u.NotificationPreference.EmailEnabled)
		assert.True(t, u.NotificationPreference.PushEnabled)
	})

	t.Run("unknown section", func(t *testing.T) {
		_, err := users.NewSectionInput("billing")
		assert.ErrorIs(t, err, users.ErrUnknownSection)
	})
}

func TestUpdateAvatar(t *testing.T) {
	svc, ts := newService(t)
	ctx := testutil.TestContext(t)
	root := ts.Blobs.Root()

	first, err := svc.UpdateAvatar(ctx, ts.Admin.ID, testutil.FileHeader(t, "me.png", []byte("one")))
	require.NoError(t, err)
	firstPath := first.AvatarPath
	assert.FileExists(t, filepath.Join(root, firstPath))

	second, err := svc.UpdateAvatar(ctx, ts.Admin.ID, testutil.FileHeader(t, "me.jpg", []byte("two")))
	require.NoError(t, err)
	assert.NotEqual(t, firstPath, second.AvatarPath)
	assert.FileExists(t, filepath.Join(root, second.AvatarPath))
	_, err = os.Stat(filepath.Join(root, firstPath))
	assert.True(t, os.IsNotExist(err), "previous avatar removed")

	t.Run("rejects non-images", func(t *testing.T) {
		_, err := svc.UpdateAvatar(ctx, ts.Admin.ID, testutil.FileHeader(t, "me.exe", []byte("x")))
		var verr *forms.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "avatar")
	})
}

func TestToggleSubscribe(t *testing.T) {
	svc, ts := newService(t)
	ctx := testutil.TestContext(t)

	original := ts.Admin.IsSubscribed

	first, err := svc.ToggleSubscribe(ctx, ts.Admin.ID)
	require.NoError(t, err)
	assert.Equal(t, !original, first)

	second, err := svc.ToggleSubscribe(ctx, ts.Admin.ID)
	require.NoError(t, err)
	assert.Equal(t, original, second)

	_, err = svc.ToggleSubscribe(ctx, uuid.New())
	assert.ErrorIs(t, err, users.ErrNotFound)
}

func TestSetSuspended(t *testing.T) {
	svc, ts := newService(t)
	ctx := testutil.TestContext(t)
	member := createMember(t, svc, ts.Admin, models.RoleMember)

	u, err := svc.SetSuspended(ctx, scope.PrincipalFor(ts.Admin), member.ID, true)
	require.NoError(t, err)
	assert.True(t, u.IsSuspended)

	_, err = svc.SetSuspended(ctx, scope.PrincipalFor(ts.Admin), ts.Admin.ID, true)
	assert.ErrorIs(t, err, users.ErrSelfAction)

	_, err = svc.SetSuspended(ctx, scope.PrincipalFor(member), ts.Admin.ID, true)
	assert.ErrorIs(t, err, users.ErrForbidden)
}

func TestDelete(t *testing.T) {
	t.Run("member with satellites", func(t *testing.T) {
		svc, ts := newService(t)
		ctx := testutil.TestContext(t)
		member := createMember(t, svc, ts.Admin, models.RoleMember)
		testutil.CreateTestTask(t, ts.DB, ts.Admin, nil, "assigned", member)

		require.NoError(t, svc.Delete(ctx, scope.PrincipalFor(ts.Admin), member.ID, nil))

		assert.Equal(t, int64(0), count(t, ts.DB.Unscoped(), &models.User{}, "id = ?", member.ID))
		assert.Equal(t, int64(0), count(t, ts.DB.Unscoped(), &models.EmergencyContact{}, "user_id = ?", member.ID))
		assert.Equal(t, int64(0), count(t, ts.DB.Unscoped(), &models.Permission{}, "user_id = ?", member.ID))
		assert.Equal(t, int64(0), count(t, ts.DB.Unscoped(), &models.TaskUserAssign{}, "user_id = ?", member.ID))
	})

	t.Run("root with members needs a successor", func(t *testing.T) {
		svc, ts := newService(t)
		ctx := testutil.TestContext(t)
		createMember(t, svc, ts.Admin, models.RoleMember)
		testutil.CreateTestProject(t, ts.DB, ts.Admin, "Kept")

		err := svc.Delete(ctx, scope.PrincipalFor(ts.Admin), ts.Admin.ID, nil)
		assert.ErrorIs(t, err, users.ErrOrganizationHasMembers)
		assert.Equal(t, int64(1), count(t, ts.DB, &models.User{}, "id = ?", ts.Admin.ID))
		assert.Equal(t, int64(1), count(t, ts.DB, &models.Project{}, "admin_id = ?", ts.Admin.ID))
	})

	t.Run("successor must be a member", func(t *testing.T) {
		svc, ts := newService(t)
		ctx := testutil.TestContext(t)
		createMember(t, svc, ts.Admin, models.RoleMember)
		stranger := testutil.CreateTestOrgAdmin(t, ts.DB)

		err := svc.Delete(ctx, scope.PrincipalFor(ts.Admin), ts.Admin.ID, &stranger.ID)
		assert.ErrorIs(t, err, users.ErrInvalidSuccessor)
	})

	t.Run("successor takes over the organization", func(t *testing.T) {
		svc, ts := newService(t)
		ctx := testutil.TestContext(t)
		heir := createMember(t, svc, ts.Admin, models.RoleLeader)
		other := createMember(t, svc, ts.Admin, models.RoleMember)
		project := testutil.CreateTestProject(t, ts.DB, ts.Admin, "Moved")

		require.NoError(t, svc.Delete(ctx, scope.PrincipalFor(ts.Admin), ts.Admin.ID, &heir.ID))

		var promoted models.User
		require.NoError(t, ts.DB.First(&promoted, "id = ?", heir.ID).Error)
		assert.Nil(t, promoted.ParentID)
		assert.Equal(t, models.RoleAdmin, promoted.Role)

		var moved models.User
		require.NoError(t, ts.DB.First(&moved, "id = ?", other.ID).Error)
		assert.Equal(t, heir.ID, *moved.ParentID)

		var p models.Project
		require.NoError(t, ts.DB.First(&p, "id = ?", project.ID).Error)
		assert.Equal(t, heir.ID, p.AdminID)

		assert.Equal(t, int64(0), count(t, ts.DB, &models.Permission{}, "user_id = ?", heir.ID))
	})

	t.Run("only admins delete", func(t *testing.T) {
		svc, ts := newService(t)
		ctx := testutil.TestContext(t)
		leader := createMember(t, svc, ts.Admin, models.RoleLeader)
		member := createMember(t, svc, ts.Admin, models.RoleMember)

		err := svc.Delete(ctx, scope.PrincipalFor(leader), member.ID, nil)
		assert.ErrorIs(t, err, users.ErrForbidden)
	})
}
