package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/task-manager/task-manager/internal/auth"
	"github.com/task-manager/task-manager/internal/db"
	"github.com/task-manager/task-manager/internal/db/repositories"
	"github.com/task-manager/task-manager/internal/middleware"
	"github.com/task-manager/task-manager/internal/services"
	"golang.org/x/crypto/bcrypt"
)

var errDB = errors.New("db error")

// ---------------------------------------------------------------------------
// Column definitions for SQL mocks
// ---------------------------------------------------------------------------

var (
	taskCols = []string{
		"id", "title", "description", "status", "priority", "category",
		"organization_id", "created_by_id", "created_at", "updated_at",
	}
	userCols  = []string{"id", "email", "password_hash", "organization_id", "role", "created_at", "updated_at"}
	orgCols   = []string{"id", "name", "parent_id", "created_at", "updated_at"}
	auditCols = []string{
		"id", "user_id", "organization_id", "action", "resource", "resource_id",
		"details", "previous_state", "new_state", "timestamp",
	}
)

// Task and organization ids are UUID columns.
const (
	taskID        = "3f1c2b4a-9d8e-4c7b-a6f5-0e1d2c3b4a51"
	newerTaskID   = "8a2e7d90-51c4-4b3f-9e6a-2d7c1f0b3e42"
	missingTaskID = "c4d9b2e1-7f3a-4e58-b1c6-9a0d2e4f6b73"

	orgA = "0b6f4c1d-2e3a-4f59-8c7b-1d2e3f4a5b60"
	orgB = "1c7a5d2e-3f4b-4a6c-9d8e-2e3f4a5b6c71"
	orgC = "2d8b6e3f-4a5c-4b7d-ae9f-3f4a5b6c7d82"
	orgX = "3e9c7f4a-5b6d-4c8e-bfa0-4a5b6c7d8e93"
	orgY = "4fad8a5b-6c7e-4d9f-80b1-5b6c7d8e9fa4"
)

func taskRow(id, orgID string) *sqlmock.Rows {
	return sqlmock.NewRows(taskCols).
		AddRow(id, "Write docs", nil, "todo", "medium", nil, orgID, "user-creator", time.Now(), time.Now())
}

// ---------------------------------------------------------------------------
// Principals
// ---------------------------------------------------------------------------

var (
	org1Owner  = &auth.Principal{SubjectID: "user-owner", Email: "owner@org1.test", OrganizationID: "org-1", Role: auth.RoleOwner}
	org1Admin  = &auth.Principal{SubjectID: "user-admin", Email: "admin@org1.test", OrganizationID: "org-1", Role: auth.RoleAdmin}
	org1Viewer = &auth.Principal{SubjectID: "user-viewer", Email: "viewer@org1.test", OrganizationID: "org-1", Role: auth.RoleViewer}
	org2Admin  = &auth.Principal{SubjectID: "user-admin-2", Email: "admin@org2.test", OrganizationID: "org-2", Role: auth.RoleAdmin}
)

// ---------------------------------------------------------------------------
// Router helper
// ---------------------------------------------------------------------------

// newTestRouter wires every handler to real services and repositories over sqlmock.
// No route requirements are attached, so these tests exercise the checks the
// services make on their own.
func newTestRouter(t *testing.T) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	dbx := sqlx.NewDb(sqlDB, "postgres")

	tx := db.NewTransactor(dbx)
	orgRepo := repositories.NewOrganizationRepository(dbx)
	userRepo := repositories.NewUserRepository(dbx)
	taskRepo := repositories.NewTaskRepository(dbx)
	auditRepo := repositories.NewAuditRepository(dbx)

	auditService := services.NewAuditService(auditRepo, nil)
	authH := NewAuthHandlers(services.NewAuthService(userRepo, orgRepo, tx, time.Hour, bcrypt.MinCost))
	orgH := NewOrganizationHandlers(services.NewOrganizationService(orgRepo))
	taskH := NewTaskHandlers(services.NewTaskService(taskRepo, auditService, tx))
	auditH := NewAuditHandlers(auditService)

	r := gin.New()
	r.Use(middleware.OptionalAuthMiddleware())
	r.POST("/auth/register", authH.RegisterHandler())
	r.POST("/auth/login", authH.LoginHandler())
	r.GET("/auth/me", authH.MeHandler())
	r.GET("/organizations", orgH.ListOrganizationsHandler())
	r.GET("/organizations/:id", orgH.GetOrganizationHandler())
	r.POST("/tasks", taskH.CreateTaskHandler())
	r.GET("/tasks", taskH.ListTasksHandler())
	r.GET("/tasks/:id", taskH.GetTaskHandler())
	r.PUT("/tasks/:id", taskH.UpdateTaskHandler())
	r.DELETE("/tasks/:id", taskH.DeleteTaskHandler())
	r.GET("/audit-log", auditH.ListAuditLogHandler())
	return mock, r
}

// do sends a request as p (anonymous when nil). body may be a string of raw JSON or
// any value to marshal.
func do(t *testing.T, r *gin.Engine, method, path string, body interface{}, p *auth.Principal) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p != nil {
		token, err := auth.GenerateJWT(p, time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getJSON(w *httptest.ResponseRecorder) map[string]interface{} {
	var m map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	return m
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func wantError(t *testing.T, w *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d: body=%s", w.Code, status, w.Body.String())
	}
	if got := getJSON(w)["error"]; got != message {
		t.Errorf("error = %v, want %q", got, message)
	}
}
