package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusdesk/report-portal-api/internal/dto"
	"github.com/campusdesk/report-portal-api/internal/models"
	appErrors "github.com/campusdesk/report-portal-api/pkg/errors"
	"github.com/campusdesk/report-portal-api/pkg/response"
)

type statsService interface {
	SubmitterStats(ctx context.Context, actor *models.JWTClaims) (*dto.DepartmentStats, error)
	DepartmentStats(ctx context.Context, department string, actor *models.JWTClaims) (*dto.DepartmentStats, error)
}

// StatsHandler exposes aggregated submission counts.
type StatsHandler struct {
	service statsService
}

// NewStatsHandler constructs the handler.
func NewStatsHandler(service statsService) *StatsHandler {
	return &StatsHandler{service: service}
}

// Submitter tallies the caller's records across every table.
func (h *StatsHandler) Submitter(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stats, err := h.service.SubmitterStats(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Department tallies one department's submitted records across every
// table, for reviewers.
func (h *StatsHandler) Department(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stats, err := h.service.DepartmentStats(c.Request.Context(), c.Param("department"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
