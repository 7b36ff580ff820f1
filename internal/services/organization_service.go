package services

import (
	"context"

	"github.com/task-manager/task-manager/internal/db/models"
)

// OrganizationService reads the organization forest.
type OrganizationService struct {
	orgs OrganizationStore
}

// NewOrganizationService creates an OrganizationService.
func NewOrganizationService(orgs OrganizationStore) *OrganizationService {
	return &OrganizationService{orgs: orgs}
}

// FindAll returns every organization ordered by name.
func (s *OrganizationService) FindAll(ctx context.Context) ([]*models.Organization, error) {
	return s.orgs.List(ctx)
}

// FindByID returns the organization with id.
func (s *OrganizationService) FindByID(ctx context.Context, id string) (*models.Organization, error) {
	if !validID(id) {
		return nil, notFound("Organization not found")
	}
	org, err := s.orgs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, notFound("Organization not found")
	}
	return org, nil
}

// Ancestors walks parent links upward from org, nearest parent first. Parent links are
// not guaranteed acyclic, so the walk stops at the first organization seen twice or at
// a dangling parent id.
func (s *OrganizationService) Ancestors(ctx context.Context, org *models.Organization) ([]*models.Organization, error) {
	chain := make([]*models.Organization, 0)
	visited := map[string]bool{org.ID: true}

	next := org.ParentID
	for next != nil && !visited[*next] {
		visited[*next] = true
		parent, err := s.orgs.GetByID(ctx, *next)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break
		}
		chain = append(chain, parent)
		next = parent.ParentID
	}
	return chain, nil
}
