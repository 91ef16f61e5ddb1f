package leads_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/forms"
	"github.com/hugh/bizops/internal/leads"
	"github.com/hugh/bizops/internal/scope"
	"github.com/hugh/bizops/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newService(t *testing.T) (*leads.Service, *testutil.TestSetup) {
	t.Helper()
	ts := testutil.NewTestContext(t)
	return leads.NewService(ts.DB, testutil.Logger()), ts
}

func strPtr(s string) *string { return &s }

func TestCreateLead(t *testing.T) {
	svc, ts := newService(t)
	ctx := testutil.TestContext(t)
	admin := scope.PrincipalFor(ts.Admin)

	lead, err := svc.Create(ctx, admin, leads.LeadInput{
		BusinessName: "Acme",
		Email:        strPtr("hello@acme.test"),
		Phone:        strPtr(" "),
	})
	require.NoError(t, err)
	assert.Equal(t, "new", lead.Status)
	assert.Equal(t, ts.Admin.ID, lead.AdminID)
	assert.Nil(t, lead.Phone)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.Create(ctx, admin, leads.LeadInput{BusinessName: "Acme 2", Email: strPtr("hello@acme.test")})
		assert.ErrorIs(t, err, leads.ErrDuplicate)
	})

	t.Run("blank phones do not collide", func(t *testing.T) {
		_, err := svc.Create(ctx, admin, leads.LeadInput{BusinessName: "Blank phone", Phone: strPtr("")})
		assert.NoError(t, err)
	})

	t.Run("assignee outside organization", func(t *testing.T) {
		stranger := testutil.CreateTestOrgAdmin(t, ts.DB)
		_, err := svc.Create(ctx, admin, leads.LeadInput{BusinessName: "Foreign", AssignedTo: &stranger.ID})
		assert.ErrorIs(t, err, leads.ErrInvalidAssignee)
	})
}

func TestLeadVisibility(t *testing.T) {
	svc, ts := newService(t)
	ctx := testutil.TestContext(t)
	member := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleMember)

	own, err := svc.Create(ctx, scope.PrincipalFor(member), leads.LeadInput{BusinessName: "Member lead"})
	require.NoError(t, err)
	hidden := testutil.CreateTestLead(t, ts.DB, ts.Admin, ts.Admin, "Admin lead")

	list, total, err := svc.List(ctx, scope.PrincipalFor(member), leads.LeadFilter{}, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, own.ID, list[0].ID)

	_, err = svc.Get(ctx, scope.PrincipalFor(member), hidden.ID)
	assert.ErrorIs(t, err, leads.ErrNotFound)

	other := testutil.CreateTestOrgAdmin(t, ts.DB)
	_, err = svc.Get(ctx, scope.PrincipalFor(other), own.ID)
	assert.ErrorIs(t, err, leads.ErrNotFound)

	_, total, err = svc.List(ctx, scope.PrincipalFor(ts.Admin), leads.LeadFilter{Search: "admin"}, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestUpdateAndDeleteLead(t *testing.T) {
	svc, ts := newService(t)
	ctx := testutil.TestContext(t)
	admin := scope.PrincipalFor(ts.Admin)
	member := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleMember)

	lead, err := svc.Create(ctx, admin, leads.LeadInput{BusinessName: "Before", Website: strPtr("before.test")})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, admin, lead.ID, leads.LeadUpdate{
		BusinessName: strPtr("After"),
		Status:       strPtr("contacted"),
		Website:      strPtr(""),
		AssignedTo:   &member.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.BusinessName)
	assert.Equal(t, "contacted", updated.Status)
	assert.Nil(t, updated.Website)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, member.ID, *updated.AssignedTo)

	require.NoError(t, svc.Delete(ctx, admin, lead.ID))
	_, err = svc.Get(ctx, admin, lead.ID)
	assert.ErrorIs(t, err, leads.ErrNotFound)

	_, err = svc.Create(ctx, admin, leads.LeadInput{BusinessName: "After"})
	assert.NoError(t, err, "deleted lead must free its unique values")

	assert.ErrorIs(t, svc.Delete(ctx, admin, uuid.New()), leads.ErrNotFound)
}

func csvSheet(rows int, duplicates int) string {
	var b strings.Builder
	b.WriteString("Business Name,Contact Name,Email,Phone,business-type\n")
	for i := 0; i < rows-duplicates; i++ {
		fmt.Fprintf(&b, "Company %d,Person %d,c%d@example.test,555-%04d,retail\n", i, i, i, i)
	}
	for i := 0; i < duplicates; i++ {
		fmt.Fprintf(&b, "Company %d,Someone,other%d@example.test,,retail\n", i, i)
	}
	return b.String()
}

func TestImportCSV(t *testing.T) {
	svc, ts := newService(t)
	ctx := testutil.TestContext(t)
	admin := scope.PrincipalFor(ts.Admin)

	result, err := svc.Import(ctx, admin, "leads.csv", strings.NewReader(csvSheet(10, 2)))
	require.NoError(t, err)
	assert.Equal(t, leads.ImportResult{InsertedCount: 8, SkippedCount: 2, TotalRows: 10}, *result)

	var n int64
	ts.DB.Model(&models.BusinessLead{}).Where("admin_id = ?", ts.Admin.ID).Count(&n)
	assert.Equal(t, int64(8), n)

	var lead models.BusinessLead
	require.NoError(t, ts.DB.Where("business_name = ?", "Company 3").First(&lead).Error)
	assert.Equal(t, "retail", lead.BusinessType)
	assert.Equal(t, "Person 3", lead.ContactName)
	assert.Equal(t, ts.Admin.ID, lead.CreatedBy)
}

func TestImportSkipsInvalidRows(t *testing.T) {
	svc, ts := newService(t)
	sheet := "business_name,email\n" +
		"Valid Co,valid@example.test\n" +
		",missing@example.test\n" +
		"Bad Email Co,not-an-email\n" +
		",\n"

	result, err := svc.Import(testutil.TestContext(t), scope.PrincipalFor(ts.Admin), "leads.csv", strings.NewReader(sheet))
	require.NoError(t, err)
	assert.Equal(t, 1, result.InsertedCount)
	assert.Equal(t, 2, result.SkippedCount)
	assert.Equal(t, 3, result.TotalRows)
}

func TestImportXLSX(t *testing.T) {
	svc, ts := newService(t)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Business Name", "Location", "Website"},
		{"Sheet Co", "Berlin", "sheet.test"},
		{"Sheet Co", "Paris", "dup.test"},
		{"Other Co", "Rome", ""},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	result, err := svc.Import(testutil.TestContext(t), scope.PrincipalFor(ts.Admin), "Leads.XLSX", &buf)
	require.NoError(t, err)
	assert.Equal(t, leads.ImportResult{InsertedCount: 2, SkippedCount: 1, TotalRows: 3}, *result)

	var lead models.BusinessLead
	require.NoError(t, ts.DB.Where("business_name = ?", "Sheet Co").First(&lead).Error)
	assert.Equal(t, "Berlin", lead.Location)
}

func TestImportRejectsUnknownType(t *testing.T) {
	svc, ts := newService(t)
	_, err := svc.Import(testutil.TestContext(t), scope.PrincipalFor(ts.Admin), "leads.pdf", strings.NewReader("x"))
	var verr *forms.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "file")
}

func TestImportStripsByteOrderMark(t *testing.T) {
	svc, ts := newService(t)
	sheet := "\uFEFFBusiness Name,Email\nMarked Co,marked@example.test\n"

	result, err := svc.Import(testutil.TestContext(t), scope.PrincipalFor(ts.Admin), "excel-export.csv", strings.NewReader(sheet))
	require.NoError(t, err)
	assert.Equal(t, leads.ImportResult{InsertedCount: 1, SkippedCount: 0, TotalRows: 1}, *result)

	var lead models.BusinessLead
	require.NoError(t, ts.DB.Where("business_name = ?", "Marked Co").First(&lead).Error)
	require.NotNil(t, lead.Email)
	assert.Equal(t, "marked@example.test", *lead.Email)
}
