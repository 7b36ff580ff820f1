package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/task-manager/task-manager/internal/auth"
	"github.com/task-manager/task-manager/internal/db"
	"github.com/task-manager/task-manager/internal/db/models"
)

// RegisterInput is the payload of POST /auth/register.
type RegisterInput struct {
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=6"`
	OrganizationName string `json:"organizationName" validate:"required"`
	Role             string `json:"role" validate:"required,oneof=owner admin viewer"`
}

// LoginInput is the payload of POST /auth/login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse is returned by register and login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

// AuthService registers accounts and issues access tokens.
type AuthService struct {
	users      UserStore
	orgs       OrganizationStore
	tx         Transactor
	validate   *validator.Validate
	tokenTTL   time.Duration
	bcryptCost int
}

// NewAuthService creates an AuthService. Zero tokenTTL or bcryptCost select the
// defaults.
func NewAuthService(users UserStore, orgs OrganizationStore, tx Transactor, tokenTTL time.Duration, bcryptCost int) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = auth.DefaultTokenTTL
	}
	if bcryptCost == 0 {
		bcryptCost = auth.DefaultBcryptCost
	}
	return &AuthService{
		users:      users,
		orgs:       orgs,
		tx:         tx,
		validate:   validator.New(),
		tokenTTL:   tokenTTL,
		bcryptCost: bcryptCost,
	}
}

// registerAttempts bounds how often Register retries after losing a race on the
// organization name or email unique constraint.
const registerAttempts = 3

// Register creates a user in the named organization, creating the organization first
// when no organization has that name.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*TokenResponse, error) {
	if err := s.check(input); err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		user, err := s.register(ctx, input)
		if err == nil {
			return s.issueToken(user)
		}
		if !errors.Is(err, db.ErrDuplicate) {
			return nil, err
		}
		// A concurrent registration committed the same organization or email first.
		// The next attempt sees its row: the organization is reused or the email
		// is reported as taken.
		if attempt == registerAttempts {
			return nil, conflict("Registration conflicted with a concurrent request, please retry")
		}
	}
}

func (s *AuthService) register(ctx context.Context, input RegisterInput) (*models.User, error) {
	var user *models.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.users.GetUserByEmail(ctx, input.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			return unauthenticated("User with this email already exists")
		}

		org, err := s.orgs.GetByName(ctx, input.OrganizationName)
		if err != nil {
			return err
		}
		if org == nil {
			org = &models.Organization{Name: input.OrganizationName}
			if err := s.orgs.Create(ctx, org); err != nil {
				return err
			}
		}

		hash, err := auth.HashPassword(input.Password, s.bcryptCost)
		if err != nil {
			return err
		}

		user = &models.User{
			Email:          input.Email,
			PasswordHash:   hash,
			OrganizationID: org.ID,
			Role:           input.Role,
		}
		return s.users.CreateUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies the credentials and issues a token. Unknown email and wrong password
// produce the same error.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*TokenResponse, error) {
	if err := s.check(input); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, input.Password) {
		return nil, unauthenticated("Invalid credentials")
	}

	return s.issueToken(user)
}

// CurrentUser loads the account behind principal.
func (s *AuthService) CurrentUser(ctx context.Context, principal *auth.Principal) (*models.User, error) {
	if principal == nil {
		return nil, unauthenticated("Authentication required")
	}
	user, err := s.users.GetUserByID(ctx, principal.SubjectID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, unauthenticated("User no longer exists")
	}
	return user, nil
}

func (s *AuthService) issueToken(user *models.User) (*TokenResponse, error) {
	token, err := auth.GenerateJWT(&auth.Principal{
		SubjectID:      user.ID,
		Email:          user.Email,
		OrganizationID: user.OrganizationID,
		Role:           auth.Role(user.Role),
	}, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &TokenResponse{AccessToken: token}, nil
}

// check runs struct validation and turns field errors into one invalid-input message.
func (s *AuthService) check(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return invalidInput(strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return field + " is invalid"
	}
}
