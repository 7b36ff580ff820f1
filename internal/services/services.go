// Package services holds the business rules of the task manager: tenant isolation,
// role checks on task mutations, the audit trail and account registration. Every
// operation takes the caller's principal explicitly; nothing is read from ambient
// request state.
package services

import (
	"context"

	"github.com/task-manager/task-manager/internal/db/models"
)

// Transactor runs fn inside one database transaction. *db.Transactor satisfies it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TaskStore is the persistence surface used by TaskService.
type TaskStore interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id, organizationID string) (*models.Task, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id, organizationID string) error
}

// AuditStore is the persistence surface used by AuditService. It has no update or
// delete.
type AuditStore interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
	ListByOrganization(ctx context.Context, organizationID string, limit int) ([]*models.AuditLog, error)
}

// UserStore is the persistence surface used by AuthService.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

// OrganizationStore is the persistence surface used by AuthService and
// OrganizationService.
type OrganizationStore interface {
	GetByID(ctx context.Context, id string) (*models.Organization, error)
	GetByName(ctx context.Context, name string) (*models.Organization, error)
	List(ctx context.Context) ([]*models.Organization, error)
	Create(ctx context.Context, org *models.Organization) error
}
