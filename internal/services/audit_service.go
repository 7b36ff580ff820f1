package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/task-manager/task-manager/internal/auth"
	"github.com/task-manager/task-manager/internal/db/models"
	"github.com/task-manager/task-manager/internal/telemetry"
)

// AuditLogLimit caps how many entries GetAuditLog returns.
const AuditLogLimit = 100

// AuditRecord describes one mutation to append to the trail. Details, PreviousState and
// NewState are serialized to JSON independently; a nil payload is stored as NULL.
type AuditRecord struct {
	ActorID        string
	OrganizationID string
	Action         string
	Resource       string
	ResourceID     string
	Details        any
	PreviousState  any
	NewState       any
}

// EntryDispatcher forwards committed entries to external shippers.
type EntryDispatcher interface {
	Dispatch(entry *models.AuditLog)
}

// AuditService appends and reads the audit trail.
type AuditService struct {
	store      AuditStore
	dispatcher EntryDispatcher
}

// NewAuditService creates an AuditService. dispatcher may be nil.
func NewAuditService(store AuditStore, dispatcher EntryDispatcher) *AuditService {
	return &AuditService{store: store, dispatcher: dispatcher}
}

// Log appends rec and returns the stored entry. When ctx carries a transaction the row
// is written inside it, so a failure here rolls the surrounding mutation back.
func (s *AuditService) Log(ctx context.Context, rec AuditRecord) (*models.AuditLog, error) {
	details, err := serializePayload(rec.Details)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize audit details: %w", err)
	}
	prev, err := serializePayload(rec.PreviousState)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize previous state: %w", err)
	}
	next, err := serializePayload(rec.NewState)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize new state: %w", err)
	}

	entry := &models.AuditLog{
		UserID:         rec.ActorID,
		OrganizationID: rec.OrganizationID,
		Action:         rec.Action,
		Resource:       rec.Resource,
		ResourceID:     rec.ResourceID,
		Details:        details,
		PreviousState:  prev,
		NewState:       next,
	}
	if err := s.store.CreateAuditLog(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Committed is called once the transaction holding entry has committed. It counts the
// entry and hands it to the dispatcher.
func (s *AuditService) Committed(entry *models.AuditLog) {
	if entry == nil {
		return
	}
	telemetry.AuditEntriesWrittenTotal.WithLabelValues(entry.Action).Inc()
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(entry)
	}
}

// GetAuditLog returns the newest AuditLogLimit entries of the principal's organization.
// Only owners may read the trail.
func (s *AuditService) GetAuditLog(ctx context.Context, principal *auth.Principal) ([]*models.AuditLog, error) {
	if principal == nil {
		return nil, unauthenticated("Authentication required")
	}
	if !auth.CanViewAuditLog(principal.Role) {
		return nil, forbidden("Insufficient permissions to view audit log")
	}
	return s.store.ListByOrganization(ctx, principal.OrganizationID, AuditLogLimit)
}

// serializePayload encodes v as JSON text. nil, including typed nil pointers, maps and
// slices, yields nil so the column stays NULL.
func serializePayload(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	s := string(data)
	return &s, nil
}
