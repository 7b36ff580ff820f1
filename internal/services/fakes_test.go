package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/task-manager/task-manager/internal/auth"
	"github.com/task-manager/task-manager/internal/db"
	"github.com/task-manager/task-manager/internal/db/models"
)

// memDB is an in-memory stand-in for the tasks, audit_logs, users and organizations
// tables. Its transactor snapshots the state and restores it when fn fails, which is
// enough to observe rollback from the outside.
type memDB struct {
	mu    sync.Mutex
	clock time.Time

	tasks map[string]models.Task
	audit []models.AuditLog
	users map[string]models.User
	orgs  map[string]models.Organization

	failAudit error
	failTask  error

	// race, when set, runs once right before the next user or organization insert.
	// It plays a concurrent registration that commits first, so its writes survive
	// the rollback of the transaction it interrupted.
	race      func(m *memDB)
	committed []func(m *memDB)
}

// runRace must be called with mu held.
func (m *memDB) runRace() {
	if m.race == nil {
		return
	}
	r := m.race
	m.race = nil
	r(m)
	m.committed = append(m.committed, r)
}

func newMemDB() *memDB {
	return &memDB{
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		tasks: map[string]models.Task{},
		users: map[string]models.User{},
		orgs:  map[string]models.Organization{},
	}
}

func (m *memDB) nextID() string {
	return uuid.NewString()
}

func (m *memDB) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

type memSnapshot struct {
	tasks map[string]models.Task
	audit []models.AuditLog
	users map[string]models.User
	orgs  map[string]models.Organization
}

func (m *memDB) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := memSnapshot{
		tasks: make(map[string]models.Task, len(m.tasks)),
		audit: append([]models.AuditLog(nil), m.audit...),
		users: make(map[string]models.User, len(m.users)),
		orgs:  make(map[string]models.Organization, len(m.orgs)),
	}
	for k, v := range m.tasks {
		s.tasks[k] = v
	}
	for k, v := range m.users {
		s.users[k] = v
	}
	for k, v := range m.orgs {
		s.orgs[k] = v
	}
	return s
}

func (m *memDB) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks, m.audit, m.users, m.orgs = s.tasks, s.audit, s.users, s.orgs
	for _, c := range m.committed {
		c(m)
	}
}

// memTx implements Transactor over memDB.
type memTx struct{ db *memDB }

func (t memTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := t.db.snapshot()
	if err := fn(ctx); err != nil {
		t.db.restore(snap)
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// TaskStore
// ---------------------------------------------------------------------------

type memTaskStore struct{ db *memDB }

func (s memTaskStore) Create(_ context.Context, task *models.Task) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.failTask != nil {
		return s.db.failTask
	}
	task.ID = s.db.nextID()
	task.CreatedAt = s.db.tick()
	task.UpdatedAt = task.CreatedAt
	s.db.tasks[task.ID] = *task
	return nil
}

func (s memTaskStore) GetByID(_ context.Context, id, organizationID string) (*models.Task, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tasks[id]
	if !ok || t.OrganizationID != organizationID {
		return nil, nil
	}
	return &t, nil
}

func (s memTaskStore) ListByOrganization(_ context.Context, organizationID string) ([]*models.Task, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]*models.Task, 0)
	for _, t := range s.db.tasks {
		if t.OrganizationID == organizationID {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s memTaskStore) Update(_ context.Context, task *models.Task) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.failTask != nil {
		return s.db.failTask
	}
	cur, ok := s.db.tasks[task.ID]
	if !ok || cur.OrganizationID != task.OrganizationID {
		return fmt.Errorf("failed to update task: %w", sql.ErrNoRows)
	}
	task.UpdatedAt = s.db.tick()
	task.CreatedByID, task.CreatedAt = cur.CreatedByID, cur.CreatedAt
	s.db.tasks[task.ID] = *task
	return nil
}

func (s memTaskStore) Delete(_ context.Context, id, organizationID string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.failTask != nil {
		return s.db.failTask
	}
	cur, ok := s.db.tasks[id]
	if !ok || cur.OrganizationID != organizationID {
		return fmt.Errorf("failed to delete task: %w", sql.ErrNoRows)
	}
	delete(s.db.tasks, id)
	return nil
}

// ---------------------------------------------------------------------------
// AuditStore
// ---------------------------------------------------------------------------

type memAuditStore struct{ db *memDB }

func (s memAuditStore) CreateAuditLog(_ context.Context, entry *models.AuditLog) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.failAudit != nil {
		return s.db.failAudit
	}
	entry.ID = s.db.nextID()
	entry.Timestamp = s.db.tick()
	s.db.audit = append(s.db.audit, *entry)
	return nil
}

func (s memAuditStore) ListByOrganization(_ context.Context, organizationID string, limit int) ([]*models.AuditLog, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]*models.AuditLog, 0)
	for i := len(s.db.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if e := s.db.audit[i]; e.OrganizationID == organizationID {
			out = append(out, &e)
		}
	}
	return out, nil
}

// auditRows returns every stored audit row, oldest first.
func (m *memDB) auditRows() []models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AuditLog(nil), m.audit...)
}

func (m *memDB) taskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// ---------------------------------------------------------------------------
// UserStore / OrganizationStore
// ---------------------------------------------------------------------------

type memUserStore struct{ db *memDB }

func (s memUserStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if u, ok := s.db.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (s memUserStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (s memUserStore) CreateUser(_ context.Context, user *models.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.runRace()
	for _, u := range s.db.users {
		if u.Email == user.Email {
			return fmt.Errorf("failed to create user: %w", db.ErrDuplicate)
		}
	}
	user.ID = s.db.nextID()
	user.CreatedAt = s.db.tick()
	user.UpdatedAt = user.CreatedAt
	s.db.users[user.ID] = *user
	return nil
}

type memOrgStore struct{ db *memDB }

func (s memOrgStore) GetByID(_ context.Context, id string) (*models.Organization, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if o, ok := s.db.orgs[id]; ok {
		return &o, nil
	}
	return nil, nil
}

func (s memOrgStore) GetByName(_ context.Context, name string) (*models.Organization, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, o := range s.db.orgs {
		if o.Name == name {
			return &o, nil
		}
	}
	return nil, nil
}

func (s memOrgStore) List(_ context.Context) ([]*models.Organization, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]*models.Organization, 0, len(s.db.orgs))
	for _, o := range s.db.orgs {
		o := o
		out = append(out, &o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s memOrgStore) Create(_ context.Context, org *models.Organization) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.runRace()
	for _, o := range s.db.orgs {
		if o.Name == org.Name {
			return fmt.Errorf("failed to create organization: %w", db.ErrDuplicate)
		}
	}
	if org.ID == "" {
		org.ID = s.db.nextID()
	}
	org.CreatedAt = s.db.tick()
	org.UpdatedAt = org.CreatedAt
	s.db.orgs[org.ID] = *org
	return nil
}

// ---------------------------------------------------------------------------
// Principals and wiring
// ---------------------------------------------------------------------------

func principal(id, org string, role auth.Role) *auth.Principal {
	return &auth.Principal{SubjectID: id, Email: id + "@example.com", OrganizationID: org, Role: role}
}

var (
	org1Owner  = principal("owner-1", "org-1", auth.RoleOwner)
	org1Admin  = principal("admin-1", "org-1", auth.RoleAdmin)
	org1Viewer = principal("viewer-1", "org-1", auth.RoleViewer)
	org2Admin  = principal("admin-2", "org-2", auth.RoleAdmin)
	org2Owner  = principal("owner-2", "org-2", auth.RoleOwner)
)

type recordingDispatcher struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (d *recordingDispatcher) Dispatch(e *models.AuditLog) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, e)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

type taskFixture struct {
	db         *memDB
	tasks      *TaskService
	audit      *AuditService
	dispatcher *recordingDispatcher
}

func newTaskFixture() *taskFixture {
	db := newMemDB()
	d := &recordingDispatcher{}
	audit := NewAuditService(memAuditStore{db}, d)
	return &taskFixture{
		db:         db,
		tasks:      NewTaskService(memTaskStore{db}, audit, memTx{db}),
		audit:      audit,
		dispatcher: d,
	}
}
