package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusdesk/report-portal-api/internal/dto"
	"github.com/campusdesk/report-portal-api/internal/models"
	appErrors "github.com/campusdesk/report-portal-api/pkg/errors"
	"github.com/campusdesk/report-portal-api/pkg/response"
)

type workflowService interface {
	Submit(ctx context.Context, req dto.SubmitRequest, actor *models.JWTClaims) (int64, error)
	ModeratorReview(ctx context.Context, req dto.VerifyRecordRequest, actor *models.JWTClaims) (*models.DynamicRecord, error)
	AuthorityDecide(ctx context.Context, req dto.VerifyRecordRequest, actor *models.JWTClaims) (*models.DynamicRecord, error)
	BulkDecide(ctx context.Context, req dto.BulkDecisionRequest, actor *models.JWTClaims) (int64, error)
	Edit(ctx context.Context, req dto.EditRecordRequest, actor *models.JWTClaims) (*models.DynamicRecord, error)
	Delete(ctx context.Context, req dto.DeleteRecordRequest, actor *models.JWTClaims) error
}

type transitionObserver interface {
	ObserveTransition(to string)
}

// WorkflowHandler exposes the review pipeline endpoints.
type WorkflowHandler struct {
	service workflowService
	metrics transitionObserver
}

// NewWorkflowHandler constructs the handler.
func NewWorkflowHandler(service workflowService, metrics transitionObserver) *WorkflowHandler {
	return &WorkflowHandler{service: service, metrics: metrics}
}

func (h *WorkflowHandler) observe(to string) {
	if h.metrics != nil {
		h.metrics.ObserveTransition(to)
	}
}

// Submit flips the caller's pending records to submitted, either for
// one table or across every table when none is named.
func (h *WorkflowHandler) Submit(c *gin.Context) {
	// An empty body is a valid final submission across all tables.
	var req dto.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid submit payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	submitted, err := h.service.Submit(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"submitted": submitted}, nil)
}

// Review records a moderator's recommendation for one record.
func (h *WorkflowHandler) Review(c *gin.Context) {
	var req dto.VerifyRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.service.ModeratorReview(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.observe(req.Status)
	response.JSON(c, http.StatusOK, record, nil)
}

// Decide records the final authority decision for one record.
func (h *WorkflowHandler) Decide(c *gin.Context) {
	var req dto.VerifyRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.service.AuthorityDecide(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.observe(req.Status)
	response.JSON(c, http.StatusOK, record, nil)
}

// BulkDecide applies the moderator-recommended outcome to a whole
// department at once.
func (h *WorkflowHandler) BulkDecide(c *gin.Context) {
	var req dto.BulkDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid bulk decision payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	affected, err := h.service.BulkDecide(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.observe(req.Status)
	response.JSON(c, http.StatusOK, gin.H{"affected": affected}, nil)
}

// Edit patches a rejected record and re-enters it into the pipeline.
func (h *WorkflowHandler) Edit(c *gin.Context) {
	var req dto.EditRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid edit payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.service.Edit(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.observe(string(models.StatusPending))
	response.JSON(c, http.StatusOK, record, nil)
}

// Delete removes one owned record.
func (h *WorkflowHandler) Delete(c *gin.Context) {
	req := dto.DeleteRecordRequest{
		TableName:  c.Param("table"),
		DocumentID: c.Param("id"),
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), req, claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
