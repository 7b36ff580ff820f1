// audit.go implements the audit trail read endpoint.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/task-manager/task-manager/internal/middleware"
	"github.com/task-manager/task-manager/internal/services"
)

// AuditHandlers handles /audit-log
type AuditHandlers struct {
	audit *services.AuditService
}

// NewAuditHandlers creates a new AuditHandlers instance
func NewAuditHandlers(auditService *services.AuditService) *AuditHandlers {
	return &AuditHandlers{audit: auditService}
}

// @Summary      Audit log
// @Description  The most recent 100 entries of the caller's organization, newest first. Owners only.
// @Tags         Audit
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "entries: []models.AuditLog"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions to view audit log"
// @Router       /api/v1/audit-log [get]
// ListAuditLogHandler returns the caller's organization audit trail
// GET /api/v1/audit-log
func (h *AuditHandlers) ListAuditLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := h.audit.GetAuditLog(c.Request.Context(), middleware.GetPrincipal(c))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}
