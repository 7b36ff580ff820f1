// organization_repository.go implements OrganizationRepository, providing queries for
// organization lookup by id or name, the name-ordered listing and creation.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/task-manager/task-manager/internal/db"
	"github.com/task-manager/task-manager/internal/db/models"
)

const organizationColumns = `id, name, parent_id, created_at, updated_at`

// OrganizationRepository handles database operations for organizations
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// GetByID retrieves an organization by ID. It returns nil, nil when absent.
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`

	var org models.Organization
	err := db.Conn(ctx, r.db).GetContext(ctx, &org, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// GetByName retrieves an organization by its unique name. It returns nil, nil when absent.
func (r *OrganizationRepository) GetByName(ctx context.Context, name string) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE name = $1`

	var org models.Organization
	err := db.Conn(ctx, r.db).GetContext(ctx, &org, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization by name: %w", err)
	}
	return &org, nil
}

// List returns every organization ordered by name.
func (r *OrganizationRepository) List(ctx context.Context) ([]*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations ORDER BY name ASC`

	orgs := make([]*models.Organization, 0)
	if err := db.Conn(ctx, r.db).SelectContext(ctx, &orgs, query); err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return orgs, nil
}

// Create inserts org, assigning its ID and timestamps.
func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	now := time.Now().UTC()
	org.ID = uuid.New().String()
	org.CreatedAt = now
	org.UpdatedAt = now

	query := `
		INSERT INTO organizations (id, name, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, query,
		org.ID,
		org.Name,
		org.ParentID,
		org.CreatedAt,
		org.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("failed to create organization %q: %w", org.Name, db.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}
