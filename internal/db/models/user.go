// Package models - user.go defines the User account. Each user belongs to exactly one
// organization and holds one role in it.
package models

import "time"

// User is an account that can sign in. PasswordHash never leaves the server.
type User struct {
	ID             string    `json:"id" db:"id"`
	Email          string    `json:"email" db:"email"`
	PasswordHash   string    `json:"-" db:"password_hash"`
	OrganizationID string    `json:"organizationId" db:"organization_id"`
	Role           string    `json:"role" db:"role"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}
