// organizations.go implements the read-only organization endpoints.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/task-manager/task-manager/internal/services"
)

// OrganizationHandlers handles /organizations endpoints
type OrganizationHandlers struct {
	orgs *services.OrganizationService
}

// NewOrganizationHandlers creates a new OrganizationHandlers instance
func NewOrganizationHandlers(orgService *services.OrganizationService) *OrganizationHandlers {
	return &OrganizationHandlers{orgs: orgService}
}

// @Summary      List organizations
// @Description  All organizations ordered by name. Used by the registration form.
// @Tags         Organizations
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "organizations: []models.Organization"
// @Router       /api/v1/organizations [get]
// ListOrganizationsHandler lists all organizations
// GET /api/v1/organizations
func (h *OrganizationHandlers) ListOrganizationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgs, err := h.orgs.FindAll(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"organizations": orgs})
	}
}

// @Summary      Get organization
// @Description  Retrieve an organization and its chain of parent organizations, nearest first.
// @Tags         Organizations
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Organization ID"
// @Success      200  {object}  map[string]interface{}  "organization: models.Organization, ancestors: []models.Organization"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Organization not found"
// @Router       /api/v1/organizations/{id} [get]
// GetOrganizationHandler retrieves an organization by ID
// GET /api/v1/organizations/:id
func (h *OrganizationHandlers) GetOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		org, err := h.orgs.FindByID(ctx, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		ancestors, err := h.orgs.Ancestors(ctx, org)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"organization": org,
			"ancestors":    ancestors,
		})
	}
}
