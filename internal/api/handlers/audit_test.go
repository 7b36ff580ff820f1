package handlers

import (
	"net/http"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/task-manager/task-manager/internal/auth"
	"github.com/task-manager/task-manager/internal/services"
)

func TestListAuditLog_Owner(t *testing.T) {
	mock, r := newTestRouter(t)
	mock.ExpectQuery("SELECT.*FROM audit_logs.*WHERE organization_id = \\$1.*ORDER BY timestamp DESC.*LIMIT \\$2").
		WithArgs("org-1", services.AuditLogLimit).
		WillReturnRows(sqlmock.NewRows(auditCols).
			AddRow("a-2", "user-admin", "org-1", "UPDATE", "task", taskID,
				`{"status":"done"}`, `{"title":"t","status":"todo","priority":"medium"}`, `{"title":"t","status":"done","priority":"medium"}`, time.Now()).
			AddRow("a-1", "user-admin", "org-1", "CREATE", "task", taskID,
				`{"title":"t","status":"todo"}`, nil, `{"title":"t","status":"todo","priority":"medium"}`, time.Now().Add(-time.Minute)))

	w := do(t, r, http.MethodGet, "/audit-log", nil, org1Owner)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: body=%s", w.Code, w.Body.String())
	}
	entries, _ := getJSON(w)["entries"].([]interface{})
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	second := entries[1].(map[string]interface{})
	if second["previousState"] != nil {
		t.Errorf("CREATE previousState = %v, want null", second["previousState"])
	}
	expectationsMet(t, mock)
}

func TestListAuditLog_NonOwnersForbidden(t *testing.T) {
	for _, p := range []*auth.Principal{org1Admin, org1Viewer} {
		t.Run(string(p.Role), func(t *testing.T) {
			mock, r := newTestRouter(t)

			w := do(t, r, http.MethodGet, "/audit-log", nil, p)

			wantError(t, w, http.StatusForbidden, "Insufficient permissions to view audit log")
			expectationsMet(t, mock)
		})
	}
}
