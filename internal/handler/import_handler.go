package handler

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campusdesk/report-portal-api/internal/dto"
	"github.com/campusdesk/report-portal-api/internal/models"
	appErrors "github.com/campusdesk/report-portal-api/pkg/errors"
	"github.com/campusdesk/report-portal-api/pkg/response"
	"github.com/campusdesk/report-portal-api/pkg/storage"
)

type importService interface {
	Import(ctx context.Context, tableName, stagedName string, actor *models.JWTClaims) (*dto.BulkUploadResult, error)
}

type importObserver interface {
	ObserveImport(rows int)
}

// ImportHandler accepts sheet uploads and hands the staged file to the
// import service.
type ImportHandler struct {
	service     importService
	storage     *storage.LocalStorage
	metrics     importObserver
	maxFileSize int64
}

// NewImportHandler constructs the handler.
func NewImportHandler(service importService, store *storage.LocalStorage, metrics importObserver, maxFileSize int64) *ImportHandler {
	return &ImportHandler{service: service, storage: store, metrics: metrics, maxFileSize: maxFileSize}
}

// Upload stages the multipart file and runs the import. The whole file
// is validated before any row is inserted.
func (h *ImportHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "missing upload file"))
		return
	}
	if h.maxFileSize > 0 && fileHeader.Size > h.maxFileSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "upload exceeds the size limit"))
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if ext != ".csv" && ext != ".xlsx" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unsupported file type, use .csv or .xlsx"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "failed to read upload"))
		return
	}
	defer file.Close()

	stagedName, err := h.storage.SaveStream(uuid.NewString()+ext, file)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "failed to stage upload"))
		return
	}

	result, err := h.service.Import(c.Request.Context(), c.Param("table"), stagedName, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveImport(result.Inserted)
	}
	response.Created(c, result)
}
