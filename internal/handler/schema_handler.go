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

type schemaService interface {
	Create(ctx context.Context, req dto.CreateSchemaRequest, actor *models.JWTClaims) (*dto.CreateSchemaResponse, error)
	Update(ctx context.Context, schemaID string, req dto.UpdateSchemaRequest, actor *models.JWTClaims) (*dto.CreateSchemaResponse, error)
	Delete(ctx context.Context, schemaID string, actor *models.JWTClaims) error
	List(ctx context.Context) ([]models.RawTableSchema, error)
	Get(ctx context.Context, schemaID string) (*models.RawTableSchema, error)
	GetByTableName(ctx context.Context, tableName string) (*models.RawTableSchema, error)
}

// SchemaHandler exposes REST endpoints for table schema management.
type SchemaHandler struct {
	service schemaService
}

// NewSchemaHandler constructs the handler.
func NewSchemaHandler(service schemaService) *SchemaHandler {
	return &SchemaHandler{service: service}
}

// Create registers a new dynamic table from its field descriptors.
func (h *SchemaHandler) Create(c *gin.Context) {
	var req dto.CreateSchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid schema payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Update re-derives an existing table's descriptors.
func (h *SchemaHandler) Update(c *gin.Context) {
	var req dto.UpdateSchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid schema payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete removes a table, its stored schema and all of its records.
func (h *SchemaHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List returns every stored schema with its raw descriptors.
func (h *SchemaHandler) List(c *gin.Context) {
	schemas, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schemas, nil)
}

// Get returns one schema's raw descriptors for form rendering.
func (h *SchemaHandler) Get(c *gin.Context) {
	schema, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schema, nil)
}

// GetByTable returns the raw descriptors for one table name, for
// callers that know the table but not the schema id.
func (h *SchemaHandler) GetByTable(c *gin.Context) {
	schema, err := h.service.GetByTableName(c.Request.Context(), c.Param("table"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schema, nil)
}
