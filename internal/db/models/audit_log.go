// Package models - audit_log.go defines the append-only audit trail entry. Details and
// the state snapshots are stored as serialized JSON text, or NULL when absent.
package models

import "time"

// Audit actions recorded for task mutations.
const (
	AuditActionCreate = "CREATE"
	AuditActionUpdate = "UPDATE"
	AuditActionDelete = "DELETE"
)

// AuditResourceTask is the resource tag used for task entries.
const AuditResourceTask = "task"

// AuditLog is one immutable record of a mutation.
type AuditLog struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"userId" db:"user_id"`
	OrganizationID string    `json:"organizationId" db:"organization_id"`
	Action         string    `json:"action" db:"action"`
	Resource       string    `json:"resource" db:"resource"`
	ResourceID     string    `json:"resourceId" db:"resource_id"`
	Details        *string   `json:"details" db:"details"`
	PreviousState  *string   `json:"previousState" db:"previous_state"`
	NewState       *string   `json:"newState" db:"new_state"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
}
