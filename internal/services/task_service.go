package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/task-manager/task-manager/internal/auth"
	"github.com/task-manager/task-manager/internal/db/models"
	"github.com/task-manager/task-manager/internal/telemetry"
)

const taskNotFoundMessage = "Task not found"

// CreateTaskInput carries the fields a client may set on a new task.
type CreateTaskInput struct {
	Title       string              `json:"title"`
	Description *string             `json:"description,omitempty"`
	Status      models.TaskStatus   `json:"status,omitempty"`
	Priority    models.TaskPriority `json:"priority,omitempty"`
	Category    *string             `json:"category,omitempty"`
}

// TaskPatch is a partial update. Nil fields are left unchanged. The patch itself is
// stored as the details of the UPDATE audit entry.
type TaskPatch struct {
	Title       *string              `json:"title,omitempty"`
	Description *string              `json:"description,omitempty"`
	Status      *models.TaskStatus   `json:"status,omitempty"`
	Priority    *models.TaskPriority `json:"priority,omitempty"`
	Category    *string              `json:"category,omitempty"`
}

// TaskSnapshot is the audited view of a task's mutable state.
type TaskSnapshot struct {
	Title       string              `json:"title"`
	Description *string             `json:"description,omitempty"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	Category    *string             `json:"category,omitempty"`
}

func snapshotOf(t *models.Task) TaskSnapshot {
	return TaskSnapshot{
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		Category:    t.Category,
	}
}

type createDetails struct {
	Title  string            `json:"title"`
	Status models.TaskStatus `json:"status"`
}

type deleteDetails struct {
	Title string `json:"title"`
}

// TaskService applies tenant isolation and role checks to task operations and records
// every mutation in the audit trail within the same transaction.
type TaskService struct {
	tasks TaskStore
	audit *AuditService
	tx    Transactor
}

// NewTaskService creates a TaskService.
func NewTaskService(tasks TaskStore, audit *AuditService, tx Transactor) *TaskService {
	return &TaskService{tasks: tasks, audit: audit, tx: tx}
}

// Create stores a task in the principal's organization. Any authenticated role may call
// it; route-level requirements decide who reaches it over HTTP.
func (s *TaskService) Create(ctx context.Context, input CreateTaskInput, principal *auth.Principal) (*models.Task, error) {
	if principal == nil {
		return nil, unauthenticated("Authentication required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	task := &models.Task{
		Title:          input.Title,
		Description:    input.Description,
		Status:         input.Status,
		Priority:       input.Priority,
		Category:       input.Category,
		OrganizationID: principal.OrganizationID,
		CreatedByID:    principal.SubjectID,
	}
	if task.Status == "" {
		task.Status = models.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = models.TaskPriorityMedium
	}

	var entry *models.AuditLog
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tasks.Create(ctx, task); err != nil {
			return err
		}
		var err error
		entry, err = s.audit.Log(ctx, AuditRecord{
			ActorID:        principal.SubjectID,
			OrganizationID: principal.OrganizationID,
			Action:         models.AuditActionCreate,
			Resource:       models.AuditResourceTask,
			ResourceID:     task.ID,
			Details:        createDetails{Title: task.Title, Status: task.Status},
			NewState:       snapshotOf(task),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.committed(entry)
	return task, nil
}

// FindAll returns the organization's tasks, newest first.
func (s *TaskService) FindAll(ctx context.Context, principal *auth.Principal) ([]*models.Task, error) {
	if principal == nil {
		return nil, unauthenticated("Authentication required")
	}
	return s.tasks.ListByOrganization(ctx, principal.OrganizationID)
}

// FindOne returns the task with id. A task owned by another organization is reported
// exactly like a missing one.
func (s *TaskService) FindOne(ctx context.Context, id string, principal *auth.Principal) (*models.Task, error) {
	if principal == nil {
		return nil, unauthenticated("Authentication required")
	}
	// Ids are UUID columns; anything else cannot name a task.
	if !validID(id) {
		return nil, notFound(taskNotFoundMessage)
	}
	task, err := s.tasks.GetByID(ctx, id, principal.OrganizationID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, notFound(taskNotFoundMessage)
	}
	return task, nil
}

// Update applies patch to the task. Only admins and owners may update.
func (s *TaskService) Update(ctx context.Context, id string, patch TaskPatch, principal *auth.Principal) (*models.Task, error) {
	var (
		task  *models.Task
		entry *models.AuditLog
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		task, err = s.FindOne(ctx, id, principal)
		if err != nil {
			return err
		}
		if !auth.CanUpdateOrDeleteTask(principal.Role) {
			return forbidden("Insufficient permissions to update task")
		}
		if err := patch.validate(); err != nil {
			return err
		}

		before := snapshotOf(task)
		patch.applyTo(task)
		if err := s.tasks.Update(ctx, task); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(taskNotFoundMessage)
			}
			return err
		}

		entry, err = s.audit.Log(ctx, AuditRecord{
			ActorID:        principal.SubjectID,
			OrganizationID: principal.OrganizationID,
			Action:         models.AuditActionUpdate,
			Resource:       models.AuditResourceTask,
			ResourceID:     task.ID,
			Details:        patch,
			PreviousState:  before,
			NewState:       snapshotOf(task),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.committed(entry)
	return task, nil
}

// Remove deletes the task. Only admins and owners may delete.
func (s *TaskService) Remove(ctx context.Context, id string, principal *auth.Principal) error {
	var entry *models.AuditLog
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		task, err := s.FindOne(ctx, id, principal)
		if err != nil {
			return err
		}
		if !auth.CanUpdateOrDeleteTask(principal.Role) {
			return forbidden("Insufficient permissions to delete task")
		}

		before := snapshotOf(task)
		if err := s.tasks.Delete(ctx, task.ID, principal.OrganizationID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(taskNotFoundMessage)
			}
			return err
		}

		entry, err = s.audit.Log(ctx, AuditRecord{
			ActorID:        principal.SubjectID,
			OrganizationID: principal.OrganizationID,
			Action:         models.AuditActionDelete,
			Resource:       models.AuditResourceTask,
			ResourceID:     task.ID,
			Details:        deleteDetails{Title: task.Title},
			PreviousState:  before,
		})
		return err
	})
	if err != nil {
		return err
	}

	s.committed(entry)
	return nil
}

func validID(id string) bool {
	return uuid.Validate(id) == nil
}

func (s *TaskService) committed(entry *models.AuditLog) {
	if entry == nil {
		return
	}
	telemetry.TaskMutationsTotal.WithLabelValues(entry.Action).Inc()
	s.audit.Committed(entry)
}

func (in CreateTaskInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return invalidInput("title must not be empty")
	}
	if in.Status != "" && !in.Status.Valid() {
		return invalidInput("status must be one of todo, in_progress, done")
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return invalidInput("priority must be one of low, medium, high, critical")
	}
	return nil
}

func (p TaskPatch) validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return invalidInput("title must not be empty")
	}
	if p.Status != nil && !p.Status.Valid() {
		return invalidInput("status must be one of todo, in_progress, done")
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return invalidInput("priority must be one of low, medium, high, critical")
	}
	return nil
}

func (p TaskPatch) applyTo(t *models.Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Category != nil {
		t.Category = p.Category
	}
}
