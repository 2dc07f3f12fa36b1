package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campusdesk/report-portal-api/internal/dto"
	"github.com/campusdesk/report-portal-api/internal/models"
	appErrors "github.com/campusdesk/report-portal-api/pkg/errors"
	"github.com/campusdesk/report-portal-api/pkg/response"
)

type recordService interface {
	Create(ctx context.Context, req dto.CreateRecordRequest, actor *models.JWTClaims) (*models.DynamicRecord, error)
	Find(ctx context.Context, query dto.RecordQuery, actor *models.JWTClaims) (*models.RecordPage, error)
	FindOne(ctx context.Context, tableName, id string, actor *models.JWTClaims) (*models.DynamicRecord, error)
	UpdateData(ctx context.Context, tableName, id string, patch models.RecordData) error
}

// RecordHandler exposes REST endpoints for dynamic table records.
type RecordHandler struct {
	service recordService
}

// NewRecordHandler constructs the handler.
func NewRecordHandler(service recordService) *RecordHandler {
	return &RecordHandler{service: service}
}

// Create inserts one record into the named table.
func (h *RecordHandler) Create(c *gin.Context) {
	var req dto.CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid record payload"))
		return
	}
	req.TableName = c.Param("table")
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// List returns one page of the table's records visible to the caller.
func (h *RecordHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.RecordQuery{
		TableName:  c.Param("table"),
		Status:     strings.TrimSpace(c.Query("status")),
		Department: strings.TrimSpace(c.Query("department")),
	}
	if raw := c.Query("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil {
			query.Page = page
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			query.Limit = limit
		}
	}
	if raw := c.Query("submitted"); raw != "" {
		if submitted, err := strconv.ParseBool(raw); err == nil {
			query.Submitted = &submitted
		}
	}
	page, err := h.service.Find(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page, nil)
}

// Patch merges fields into a record's payload without touching its
// workflow state. Reserved for authority-side data corrections; the
// submitter edit flow goes through the workflow engine.
func (h *RecordHandler) Patch(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var patch models.RecordData
	if err := c.ShouldBindJSON(&patch); err != nil || len(patch) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid patch payload"))
		return
	}
	if err := h.service.UpdateData(c.Request.Context(), c.Param("table"), c.Param("id"), patch); err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.service.FindOne(c.Request.Context(), c.Param("table"), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Get returns one record when the caller's scope covers it.
func (h *RecordHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.service.FindOne(c.Request.Context(), c.Param("table"), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}
