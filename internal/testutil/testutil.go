package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/auth"
	"github.com/hugh/bizops/internal/database"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/storage"
	"github.com/hugh/bizops/pkg/crypto"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const TestPassword = "testpassword123"

// SetupTestDB creates a private in-memory SQLite database with every table
// migrated. A single connection is kept so all queries see the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SetupBlobs returns a local blob store rooted in a temp dir.
func SetupBlobs(t *testing.T) *storage.Local {
	t.Helper()

	blobs, err := storage.NewLocal(t.TempDir(), "http://files.test/storage")
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	return blobs
}

func createUser(t *testing.T, db *gorm.DB, role models.Role, parentID *uuid.UUID) *models.User {
	t.Helper()

	hash, err := crypto.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	now := time.Now()
	user := &models.User{
		Base:            models.Base{ID: uuid.New()},
		Email:           "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash:    hash,
		Name:            "Test " + string(role),
		Role:            role,
		ParentID:        parentID,
		EmailVerifiedAt: &now,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestOrgAdmin creates a verified organization root.
func CreateTestOrgAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return createUser(t, db, models.RoleAdmin, nil)
}

// CreateTestMember creates a verified user of the given role under root.
func CreateTestMember(t *testing.T, db *gorm.DB, root *models.User, role models.Role) *models.User {
	t.Helper()
	parent := root.ID
	return createUser(t, db, role, &parent)
}

// GrantPermission stores an explicit permission row for user.
func GrantPermission(t *testing.T, db *gorm.DB, user *models.User, feature, method string, status bool) {
	t.Helper()

	perm := &models.Permission{UserID: user.ID, Feature: feature, Method: method, Status: status}
	if err := db.Create(perm).Error; err != nil {
		t.Fatalf("failed to create permission: %v", err)
	}
}

func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.TokenFor(user)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// CreateTestForm creates a form owned by admin with the given fields, ordered
// as passed.
func CreateTestForm(t *testing.T, db *gorm.DB, admin *models.User, fields ...models.FormField) *models.Form {
	t.Helper()

	form := &models.Form{
		AdminID:   admin.ID,
		CreatedBy: admin.ID,
		Title:     "Test Form",
	}
	for i := range fields {
		fields[i].OrderIndex = i
		form.Fields = append(form.Fields, fields[i])
	}

	if err := db.Create(form).Error; err != nil {
		t.Fatalf("failed to create test form: %v", err)
	}
	return form
}

func CreateTestProject(t *testing.T, db *gorm.DB, admin *models.User, name string, members ...*models.User) *models.Project {
	t.Helper()

	project := &models.Project{
		ProjectCode: "PRJ-" + uuid.New().String()[:8],
		Name:        name,
		Priority:    models.PriorityMedium,
		AdminID:     admin.ID,
		CreatedBy:   admin.ID,
	}
	for _, m := range members {
		project.Members = append(project.Members, models.ProjectUser{UserID: m.ID})
	}

	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}
	return project
}

func CreateTestTask(t *testing.T, db *gorm.DB, admin *models.User, project *models.Project, title string, assignees ...*models.User) *models.Task {
	t.Helper()

	task := &models.Task{
		Title:     title,
		Priority:  models.PriorityMedium,
		AdminID:   admin.ID,
		CreatedBy: admin.ID,
	}
	if project != nil {
		task.ProjectID = &project.ID
	}
	for _, a := range assignees {
		task.Assignments = append(task.Assignments, models.TaskUserAssign{UserID: a.ID})
	}

	if err := db.Create(task).Error; err != nil {
		t.Fatalf("failed to create test task: %v", err)
	}
	return task
}

func CreateTestLead(t *testing.T, db *gorm.DB, admin *models.User, creator *models.User, name string) *models.BusinessLead {
	t.Helper()

	lead := &models.BusinessLead{
		BusinessName: name,
		Status:       "new",
		AdminID:      admin.ID,
		CreatedBy:    creator.ID,
	}
	if err := db.Create(lead).Error; err != nil {
		t.Fatalf("failed to create test lead: %v", err)
	}
	return lead
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// Upload is one file part of a multipart request.
type Upload struct {
	Filename string
	Content  []byte
}

// MultipartRequest builds an authenticated multipart/form-data request.
func MultipartRequest(t *testing.T, method, path string, values map[string]string, files map[string]Upload, token string) *http.Request {
	t.Helper()

	body, contentType := multipartBody(t, values, files)
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// FileHeader returns a parsed multipart file header holding content.
func FileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body, contentType := multipartBody(t, nil, map[string]Upload{"file": {Filename: filename, Content: content}})
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatalf("failed to parse multipart form: %v", err)
	}
	return req.MultipartForm.File["file"][0]
}

func multipartBody(t *testing.T, values map[string]string, files map[string]Upload) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range values {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	for k, f := range files {
		part, err := w.CreateFormFile(k, f.Filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(f.Content); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return buf, w.FormDataContentType()
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	Blobs      *storage.Local
	Admin      *models.User
	Token      string
}

// NewTestContext creates a complete test setup with DB, blob store, an
// organization root and its token.
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	admin := CreateTestOrgAdmin(t, db)
	token := GenerateTestToken(t, jwtService, admin)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		Blobs:      SetupBlobs(t),
		Admin:      admin,
		Token:      token,
	}
}

// TokenFor issues a token for another user in the same test database.
func (ts *TestSetup) TokenFor(t *testing.T, user *models.User) string {
	t.Helper()
	return GenerateTestToken(t, ts.JWTService, user)
}
