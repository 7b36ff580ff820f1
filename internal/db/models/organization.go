// Package models - organization.go defines the Organization tenant. Organizations form
// a forest through ParentID; nothing prevents a cycle, so walkers must track visited ids.
package models

import "time"

// Organization is a tenant. Name is unique across the system.
type Organization struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	ParentID  *string   `json:"parentId" db:"parent_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
