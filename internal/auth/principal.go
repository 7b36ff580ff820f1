// Package auth - principal.go defines the authenticated actor of a request.
package auth

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidPrincipal is returned when a decoded token lacks a subject, email or organization.
var ErrInvalidPrincipal = errors.New("auth: invalid token payload")

var principalValidate = validator.New()

// Principal is the caller of a request as established by a verified token.
// It is built once per request and passed explicitly to every service call.
type Principal struct {
	SubjectID      string `json:"sub" validate:"required"`
	Email          string `json:"email" validate:"required"`
	OrganizationID string `json:"organizationId" validate:"required"`
	Role           Role   `json:"role"`
}

// Validate rejects principals missing any of the identifying fields. The role
// is not checked here: an unknown role simply holds no privileges.
func (p *Principal) Validate() error {
	if p == nil {
		return ErrInvalidPrincipal
	}
	if err := principalValidate.Struct(p); err != nil {
		return ErrInvalidPrincipal
	}
	return nil
}
