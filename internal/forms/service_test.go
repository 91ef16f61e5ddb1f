package forms_test

import (
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/forms"
	"github.com/hugh/bizops/internal/scope"
	"github.com/hugh/bizops/internal/submissions"
	"github.com/hugh/bizops/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFormService(t *testing.T) (*forms.Service, *testutil.TestSetup) {
	t.Helper()
	ts := testutil.NewTestContext(t)
	return forms.NewService(ts.DB, ts.Blobs, testutil.Logger()), ts
}

func TestServiceCreate(t *testing.T) {
	svc, ts := newFormService(t)
	ctx := testutil.TestContext(t)
	admin := scope.PrincipalFor(ts.Admin)

	form, err := svc.Create(ctx, admin, forms.FormInput{
		Title: "Intake",
		Fields: []forms.FieldInput{
			{Type: models.FieldText, Label: "Name", IsRequired: true},
			{Type: models.FieldDropdown, Label: "Plan", Options: []byte(`["basic","pro"]`)},
			{Type: models.FieldFile, Label: "Brief"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, ts.Admin.ID, form.AdminID)
	require.Len(t, form.Fields, 3)
	for i, f := range form.Fields {
		assert.Equal(t, i, f.OrderIndex)
	}

	loaded, err := svc.Get(ctx, admin, form.ID)
	require.NoError(t, err)
	assert.Equal(t, "Plan", loaded.Fields[1].Label)

	t.Run("member created forms belong to the organization", func(t *testing.T) {
		leader := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleLeader)
		f, err := svc.Create(ctx, scope.PrincipalFor(leader), forms.FormInput{Title: "Leader form"})
		require.NoError(t, err)
		assert.Equal(t, ts.Admin.ID, f.AdminID)
		assert.Equal(t, leader.ID, f.CreatedBy)
		assert.Empty(t, f.Fields)
	})

	t.Run("invalid fields", func(t *testing.T) {
		_, err := svc.Create(ctx, admin, forms.FormInput{
			Title: "Broken",
			Fields: []forms.FieldInput{
				{Type: "signature", Label: "Sign"},
				{Type: models.FieldRadio, Label: "Pick"},
				{Type: models.FieldText},
			},
		})
		var verr *forms.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "fields.0.type")
		assert.Contains(t, verr.Fields, "fields.1.options")
		assert.Contains(t, verr.Fields, "fields.2.label")
	})

	t.Run("title required", func(t *testing.T) {
		_, err := svc.Create(ctx, admin, forms.FormInput{Title: "  "})
		var verr *forms.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "title")
	})
}

func TestServiceVisibility(t *testing.T) {
	svc, ts := newFormService(t)
	ctx := testutil.TestContext(t)
	form := testutil.CreateTestForm(t, ts.DB, ts.Admin)

	client := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleClient)
	_, err := svc.Get(ctx, scope.PrincipalFor(client), form.ID)
	assert.NoError(t, err)

	other := testutil.CreateTestOrgAdmin(t, ts.DB)
	_, err = svc.Get(ctx, scope.PrincipalFor(other), form.ID)
	assert.ErrorIs(t, err, forms.ErrFormNotFound)

	list, total, err := svc.List(ctx, scope.PrincipalFor(other), "", 0, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestServiceUpdateFields(t *testing.T) {
	svc, ts := newFormService(t)
	ctx := testutil.TestContext(t)
	admin := scope.PrincipalFor(ts.Admin)

	form := testutil.CreateTestForm(t, ts.DB, ts.Admin,
		models.FormField{Type: models.FieldText, Label: "Keep"},
		models.FormField{Type: models.FieldFile, Label: "Drop"},
	)
	keep, drop := form.Fields[0], form.Fields[1]

	store := submissions.NewStore(ts.DB, ts.Blobs, testutil.Logger())
	sub, err := store.Create(ctx, form, admin, 0, forms.Input{
		Values: map[string]string{keep.Key(): "kept"},
		Files:  map[string]*multipart.FileHeader{drop.Key(): testutil.FileHeader(t, "x.txt", []byte("x"))},
	})
	require.NoError(t, err)
	var path string
	for _, d := range sub.Data {
		if d.FieldID == drop.ID {
			path = *d.Value
		}
	}
	require.NotEmpty(t, path)

	title := "Renamed"
	updated, err := svc.Update(ctx, admin, form.ID, forms.FormUpdate{
		Title: &title,
		Fields: []forms.FieldInput{
			{Type: models.FieldEmail, Label: "New first"},
			{ID: &keep.ID, Type: models.FieldText, Label: "Kept", IsRequired: true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	require.Len(t, updated.Fields, 2)
	assert.Equal(t, "New first", updated.Fields[0].Label)
	assert.Equal(t, keep.ID, updated.Fields[1].ID)
	assert.True(t, updated.Fields[1].IsRequired)

	var n int64
	ts.DB.Model(&models.SubmissionData{}).Where("field_id = ?", drop.ID).Count(&n)
	assert.Zero(t, n)
	ts.DB.Model(&models.SubmissionData{}).Where("field_id = ?", keep.ID).Count(&n)
	assert.Equal(t, int64(1), n)
	_, err = os.Stat(filepath.Join(ts.Blobs.Root(), path))
	assert.True(t, os.IsNotExist(err))

	t.Run("foreign field id", func(t *testing.T) {
		stray := uuid.New()
		_, err := svc.Update(ctx, admin, form.ID, forms.FormUpdate{
			Fields: []forms.FieldInput{{ID: &stray, Type: models.FieldText, Label: "X"}},
		})
		var verr *forms.ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("nil fields leaves them alone", func(t *testing.T) {
		desc := "described"
		updated, err := svc.Update(ctx, admin, form.ID, forms.FormUpdate{Description: &desc})
		require.NoError(t, err)
		assert.Len(t, updated.Fields, 2)
		assert.Equal(t, "described", updated.Description)
	})
}

func TestServiceDelete(t *testing.T) {
	svc, ts := newFormService(t)
	ctx := testutil.TestContext(t)
	admin := scope.PrincipalFor(ts.Admin)
	form := testutil.CreateTestForm(t, ts.DB, ts.Admin, models.FormField{Type: models.FieldText, Label: "Q"})

	store := submissions.NewStore(ts.DB, ts.Blobs, testutil.Logger())
	sub, err := store.Create(ctx, form, admin, 0, forms.Input{Values: map[string]string{form.Fields[0].Key(): "a"}})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, admin, form.ID))
	_, err = svc.Get(ctx, admin, form.ID)
	assert.ErrorIs(t, err, forms.ErrFormNotFound)

	var n int64
	ts.DB.Model(&models.FormSubmission{}).Where("id = ?", sub.ID).Count(&n)
	assert.Zero(t, n)
	ts.DB.Model(&models.SubmissionData{}).Where("submission_id = ?", sub.ID).Count(&n)
	assert.Zero(t, n)

	assert.ErrorIs(t, svc.Delete(ctx, admin, form.ID), forms.ErrFormNotFound)
}
