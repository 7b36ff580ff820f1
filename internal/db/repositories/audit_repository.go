// audit_repository.go implements AuditRepository. The audit trail is append-only: the
// repository can insert and read entries but has no update or delete.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/task-manager/task-manager/internal/db"
	"github.com/task-manager/task-manager/internal/db/models"
)

const auditColumns = `id, user_id, organization_id, action, resource, resource_id, details, previous_state, new_state, timestamp`

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateAuditLog appends entry, assigning its ID and timestamp.
func (r *AuditRepository) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	entry.ID = uuid.New().String()
	entry.Timestamp = time.Now().UTC()

	query := `
		INSERT INTO audit_logs (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.OrganizationID,
		entry.Action,
		entry.Resource,
		entry.ResourceID,
		entry.Details,
		entry.PreviousState,
		entry.NewState,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// ListByOrganization returns at most limit entries for organizationID, newest first.
func (r *AuditRepository) ListByOrganization(ctx context.Context, organizationID string, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE organization_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	logs := make([]*models.AuditLog, 0)
	if err := db.Conn(ctx, r.db).SelectContext(ctx, &logs, query, organizationID, limit); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}
