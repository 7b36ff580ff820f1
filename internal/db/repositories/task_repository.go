// task_repository.go implements TaskRepository. Every query is scoped by organization so a
// task outside the caller's organization is indistinguishable from a missing one.
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

const taskColumns = `id, title, description, status, priority, category, organization_id, created_by_id, created_at, updated_at`

// TaskRepository handles task database operations
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts task, assigning its ID and timestamps.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	now := time.Now().UTC()
	task.ID = uuid.New().String()
	task.CreatedAt = now
	task.UpdatedAt = now

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.Category,
		task.OrganizationID,
		task.CreatedByID,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetByID retrieves the task with id inside organizationID. It returns nil, nil when
// the task does not exist or belongs to another organization.
func (r *TaskRepository) GetByID(ctx context.Context, id, organizationID string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND organization_id = $2`

	var task models.Task
	err := db.Conn(ctx, r.db).GetContext(ctx, &task, query, id, organizationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

// ListByOrganization returns the organization's tasks, newest first.
func (r *TaskRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE organization_id = $1 ORDER BY created_at DESC`

	tasks := make([]*models.Task, 0)
	if err := db.Conn(ctx, r.db).SelectContext(ctx, &tasks, query, organizationID); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Update writes the mutable fields of task and refreshes UpdatedAt. The organization
// and creator are never rewritten. sql.ErrNoRows is returned when no row matched.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, priority = $4, category = $5, updated_at = $6
		WHERE id = $7 AND organization_id = $8
	`
	result, err := db.Conn(ctx, r.db).ExecContext(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.Category,
		task.UpdatedAt,
		task.ID,
		task.OrganizationID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return requireOneRow(result, "update task")
}

// Delete removes the task with id inside organizationID. sql.ErrNoRows is returned
// when no row matched.
func (r *TaskRepository) Delete(ctx context.Context, id, organizationID string) error {
	query := `DELETE FROM tasks WHERE id = $1 AND organization_id = $2`

	result, err := db.Conn(ctx, r.db).ExecContext(ctx, query, id, organizationID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return requireOneRow(result, "delete task")
}

func requireOneRow(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to %s: %w", op, sql.ErrNoRows)
	}
	return nil
}
