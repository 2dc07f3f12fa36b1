package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campusdesk/report-portal-api/internal/models"
	"github.com/campusdesk/report-portal-api/pkg/response"
)

type auditReader interface {
	ListByResource(ctx context.Context, resource string, limit int) ([]models.AuditLog, error)
}

// AuditHandler exposes the audit trail for review.
type AuditHandler struct {
	audit auditReader
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(audit auditReader) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// ListByResource returns the latest audit rows for one resource name,
// newest first.
func (h *AuditHandler) ListByResource(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := h.audit.ListByResource(c.Request.Context(), c.Param("resource"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
