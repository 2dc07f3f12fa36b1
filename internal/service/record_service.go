package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusdesk/report-portal-api/internal/dto"
	"github.com/campusdesk/report-portal-api/internal/models"
	"github.com/campusdesk/report-portal-api/internal/registry"
	appErrors "github.com/campusdesk/report-portal-api/pkg/errors"
)

type recordStore interface {
	Insert(ctx context.Context, ident string, record *models.DynamicRecord) error
	GetByID(ctx context.Context, ident, id string) (*models.DynamicRecord, error)
	Find(ctx context.Context, ident string, filter models.RecordFilter, page models.PageRequest) ([]models.DynamicRecord, int, error)
	ExistsFieldValue(ctx context.Context, ident, field, value string) (bool, error)
	MergeData(ctx context.Context, ident, id string, patch models.RecordData) error
}

// RecordService is the role-scoped facade over any registered table.
// It composes the visibility filter per role; the store only retrieves.
type RecordService struct {
	records  recordStore
	registry *registry.Registry
	validate *validator.Validate
	logger   *zap.Logger
}

// NewRecordService constructs the service.
func NewRecordService(records recordStore, reg *registry.Registry, validate *validator.Validate, logger *zap.Logger) *RecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordService{records: records, registry: reg, validate: validate, logger: logger}
}

func (s *RecordService) resolve(tableName string) (*registry.Collection, error) {
	name := models.NormalizeName(tableName)
	col, ok := s.registry.Resolve(name)
	if !ok {
		return nil, appErrors.ErrModelNotFound
	}
	return col, nil
}

// validatePayload checks required and unique fields against the
// collection's descriptor and fills declared defaults.
func (s *RecordService) validatePayload(ctx context.Context, col *registry.Collection, data models.RecordData) error {
	missing := make([]string, 0)
	for name, spec := range col.Schema.Fields {
		value, present := data[name]
		if !present || isEmptyValue(value) {
			if spec.Default != nil {
				data[name] = *spec.Default
				continue
			}
			if spec.Required {
				missing = append(missing, name)
			}
			continue
		}
		if spec.Unique {
			exists, err := s.records.ExistsFieldValue(ctx, col.Ident(), name, fmt.Sprint(value))
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check unique field")
			}
			if exists {
				return appErrors.Clone(appErrors.ErrConflict, "duplicate value for unique field: "+name)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return appErrors.Clone(appErrors.ErrValidation, "missing required fields: "+strings.Join(missing, ", "))
	}
	return nil
}

func isEmptyValue(value interface{}) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// Create inserts a new record on behalf of the submitter. The record
// enters the pipeline pending and unsubmitted.
func (s *RecordService) Create(ctx context.Context, req dto.CreateRecordRequest, actor *models.JWTClaims) (*models.DynamicRecord, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid record payload")
	}
	col, err := s.resolve(req.TableName)
	if err != nil {
		return nil, err
	}

	data := models.RecordData{}
	for k, v := range req.Data {
		data[models.NormalizeName(k)] = v
	}
	if err := s.validatePayload(ctx, col, data); err != nil {
		return nil, err
	}

	sctx := actor.SubmitterContextOf()
	record := &models.DynamicRecord{
		Data:        data,
		Status:      models.StatusPending,
		Submitted:   false,
		SubmittedBy: sctx.SubmittedBy,
		College:     sctx.College,
		Department:  sctx.Department,
	}
	if err := s.records.Insert(ctx, col.Ident(), record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create record")
	}
	return record, nil
}

// scopeFilter composes the role-appropriate visibility filter.
func scopeFilter(query dto.RecordQuery, actor *models.JWTClaims) (models.RecordFilter, error) {
	filter := models.RecordFilter{Department: strings.TrimSpace(query.Department)}
	if query.Status != "" {
		filter.Statuses = []models.RecordStatus{models.RecordStatus(query.Status)}
	}
	filter.Submitted = query.Submitted

	switch actor.Role {
	case models.RoleSubmitter:
		filter.SubmittedBy = actor.UserID
	case models.RoleModerator:
		if len(actor.Colleges) == 0 || len(actor.Departments) == 0 {
			return filter, appErrors.Clone(appErrors.ErrForbidden, "moderator has no assigned scope")
		}
		filter.Colleges = actor.Colleges
		filter.Departments = actor.Departments
		submitted := true
		filter.Submitted = &submitted
	case models.RoleAuthority:
		// unrestricted
	default:
		return filter, appErrors.ErrForbidden
	}
	return filter, nil
}

// Find returns one page of records visible to the actor.
func (s *RecordService) Find(ctx context.Context, query dto.RecordQuery, actor *models.JWTClaims) (*models.RecordPage, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	col, err := s.resolve(query.TableName)
	if err != nil {
		return nil, err
	}
	filter, err := scopeFilter(query, actor)
	if err != nil {
		return nil, err
	}

	page := models.PageRequest{Page: query.Page, Limit: query.Limit}.Normalize()
	records, total, err := s.records.Find(ctx, col.Ident(), filter, page)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list records")
	}

	totalPages := (total + page.Limit - 1) / page.Limit
	if records == nil {
		records = []models.DynamicRecord{}
	}
	return &models.RecordPage{
		Records:     records,
		CurrentPage: page.Page,
		TotalPages:  totalPages,
		TotalCount:  total,
	}, nil
}

// FindOne fetches one record, enforcing the actor's visibility scope.
func (s *RecordService) FindOne(ctx context.Context, tableName, id string, actor *models.JWTClaims) (*models.DynamicRecord, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	col, err := s.resolve(tableName)
	if err != nil {
		return nil, err
	}
	record, err := s.records.GetByID(ctx, col.Ident(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load record")
	}

	switch actor.Role {
	case models.RoleSubmitter:
		if record.SubmittedBy != actor.UserID {
			return nil, appErrors.ErrForbidden
		}
	case models.RoleModerator:
		if !actor.CanModerate(record.College, record.Department) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "record outside assigned scope")
		}
		// drafts stay invisible to reviewers until submitted
		if !record.Submitted {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "record not found")
		}
	}
	return record, nil
}

// UpdateData applies a partial field merge. Workflow legality is not
// enforced here; edit-on-rejection goes through the workflow engine.
func (s *RecordService) UpdateData(ctx context.Context, tableName, id string, patch models.RecordData) error {
	col, err := s.resolve(tableName)
	if err != nil {
		return err
	}
	normalized := models.RecordData{}
	for k, v := range patch {
		normalized[models.NormalizeName(k)] = v
	}
	if err := s.records.MergeData(ctx, col.Ident(), id, normalized); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update record")
	}
	return nil
}
