// auth.go implements account registration, login and the current-caller endpoint.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/task-manager/task-manager/internal/auth"
	"github.com/task-manager/task-manager/internal/middleware"
	"github.com/task-manager/task-manager/internal/services"
)

// AuthHandlers handles /auth endpoints
type AuthHandlers struct {
	auth *services.AuthService
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(authService *services.AuthService) *AuthHandlers {
	return &AuthHandlers{auth: authService}
}

// @Summary      Register
// @Description  Create a user, creating the named organization when it does not exist yet.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        body  body  services.RegisterInput  true  "Account details"
// @Success      201  {object}  services.TokenResponse
// @Failure      400  {object}  map[string]interface{}  "Validation failed"
// @Failure      401  {object}  map[string]interface{}  "Email already registered"
// @Router       /api/v1/auth/register [post]
// RegisterHandler creates an account and returns an access token
// POST /api/v1/auth/register
func (h *AuthHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.RegisterInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		token, err := h.auth.Register(c.Request.Context(), input)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, token)
	}
}

// @Summary      Login
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        body  body  services.LoginInput  true  "Credentials"
// @Success      200  {object}  services.TokenResponse
// @Failure      401  {object}  map[string]interface{}  "Invalid credentials"
// @Router       /api/v1/auth/login [post]
// LoginHandler exchanges credentials for an access token
// POST /api/v1/auth/login
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.LoginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		token, err := h.auth.Login(c.Request.Context(), input)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, token)
	}
}

// @Summary      Current user
// @Description  Returns the caller's account and the permissions its role grants.
// @Tags         Authentication
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "user: models.User, permissions: []string"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/v1/auth/me [get]
// MeHandler returns the authenticated caller
// GET /api/v1/auth/me
func (h *AuthHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := middleware.GetPrincipal(c)

		user, err := h.auth.CurrentUser(c.Request.Context(), principal)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user":        user,
			"role":        principal.Role,
			"permissions": auth.PermissionsFor(principal.Role),
		})
	}
}
