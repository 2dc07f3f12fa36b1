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

type timelineService interface {
	Upsert(ctx context.Context, req dto.UpsertTimelineRequest) (*models.Timeline, error)
	Get(ctx context.Context) (*models.Timeline, error)
}

// TimelineHandler manages the global submission window.
type TimelineHandler struct {
	service timelineService
}

// NewTimelineHandler constructs the handler.
func NewTimelineHandler(service timelineService) *TimelineHandler {
	return &TimelineHandler{service: service}
}

// Upsert replaces the submission window.
func (h *TimelineHandler) Upsert(c *gin.Context) {
	var req dto.UpsertTimelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid timeline payload"))
		return
	}
	timeline, err := h.service.Upsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timeline, nil)
}

// Get returns the current submission window.
func (h *TimelineHandler) Get(c *gin.Context) {
	timeline, err := h.service.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timeline, nil)
}
