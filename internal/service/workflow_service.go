package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusdesk/report-portal-api/internal/dto"
	"github.com/campusdesk/report-portal-api/internal/models"
	"github.com/campusdesk/report-portal-api/internal/registry"
	"github.com/campusdesk/report-portal-api/internal/repository"
	"github.com/campusdesk/report-portal-api/internal/workflow"
	appErrors "github.com/campusdesk/report-portal-api/pkg/errors"
)

type workflowStore interface {
	GetByID(ctx context.Context, ident, id string) (*models.DynamicRecord, error)
	UpdateStatus(ctx context.Context, ident string, params repository.UpdateStatusParams) error
	EditReset(ctx context.Context, ident, id string, revision int64, patch models.RecordData) error
	MarkSubmitted(ctx context.Context, ident, submittedBy string) (int64, error)
	BulkDecide(ctx context.Context, ident string, params repository.BulkDecideParams) (int64, error)
	Delete(ctx context.Context, ident, id string) error
}

type submissionGate interface {
	WithinWindow(ctx context.Context) error
}

// WorkflowService drives every status transition through the central
// state machine table.
type WorkflowService struct {
	records       workflowStore
	registry      *registry.Registry
	gate          submissionGate
	audit         auditLogger
	validate      *validator.Validate
	enforceWindow bool
	logger        *zap.Logger
}

// NewWorkflowService constructs the service.
func NewWorkflowService(records workflowStore, reg *registry.Registry, gate submissionGate, audit auditLogger, validate *validator.Validate, enforceWindow bool, logger *zap.Logger) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		records:       records,
		registry:      reg,
		gate:          gate,
		audit:         audit,
		validate:      validate,
		enforceWindow: enforceWindow,
		logger:        logger,
	}
}

func (s *WorkflowService) resolve(tableName string) (*registry.Collection, error) {
	name := models.NormalizeName(tableName)
	col, ok := s.registry.Resolve(name)
	if !ok {
		return nil, appErrors.ErrModelNotFound
	}
	return col, nil
}

// Submit flips the caller's pending unsubmitted records to submitted,
// for one table or, when no table is named, across every registered
// table (final submission). Idempotent; gated by the submission window.
func (s *WorkflowService) Submit(ctx context.Context, req dto.SubmitRequest, actor *models.JWTClaims) (int64, error) {
	if actor == nil {
		return 0, appErrors.ErrUnauthorized
	}
	if s.enforceWindow {
		if err := s.gate.WithinWindow(ctx); err != nil {
			return 0, err
		}
	}

	var idents []string
	if strings.TrimSpace(req.TableName) != "" {
		col, err := s.resolve(req.TableName)
		if err != nil {
			return 0, err
		}
		idents = []string{col.Ident()}
	} else {
		for _, name := range s.registry.Names() {
			if col, ok := s.registry.Resolve(name); ok {
				idents = append(idents, col.Ident())
			}
		}
	}

	var total int64
	for _, ident := range idents {
		affected, err := s.records.MarkSubmitted(ctx, ident, actor.UserID)
		if err != nil {
			return total, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit records")
		}
		total += affected
	}

	s.emitAudit(ctx, actor, models.AuditActionRecordSubmit, req.TableName, "", map[string]interface{}{"submitted": total})
	return total, nil
}

// ModeratorReview records a moderator's recommendation for one record.
func (s *WorkflowService) ModeratorReview(ctx context.Context, req dto.VerifyRecordRequest, actor *models.JWTClaims) (*models.DynamicRecord, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid review payload")
	}

	target := models.RecordStatus(req.Status)
	if !workflow.ValidTarget(models.RoleModerator, target) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid moderator status")
	}
	if workflow.CommentRequired(target) && strings.TrimSpace(req.Comment) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment is required when requesting rejection")
	}

	col, err := s.resolve(req.TableName)
	if err != nil {
		return nil, err
	}
	record, err := s.loadRecord(ctx, col, req.DocumentID)
	if err != nil {
		return nil, err
	}

	if !record.Submitted {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "record has not been submitted")
	}
	if !actor.CanModerate(record.College, record.Department) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "record outside assigned scope")
	}
	if !workflow.Allowed(record.Status, models.RoleModerator, target) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "illegal status transition")
	}

	comment := strings.TrimSpace(req.Comment)
	concur := req.GoAsPerModerator
	params := repository.UpdateStatusParams{
		ID:                record.ID,
		Revision:          record.Revision,
		Status:            target,
		ModeratorComment:  &comment,
		ReviewedModerator: &actor.UserID,
		GoAsPerModerator:  &concur,
	}
	if err := s.records.UpdateStatus(ctx, col.Ident(), params); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "record was reviewed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review record")
	}

	s.emitAudit(ctx, actor, models.AuditActionRecordReview, col.Name, record.ID, req)
	return s.loadRecord(ctx, col, record.ID)
}

// AuthorityDecide records the final decision for one record.
func (s *WorkflowService) AuthorityDecide(ctx context.Context, req dto.VerifyRecordRequest, actor *models.JWTClaims) (*models.DynamicRecord, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload")
	}

	target := models.RecordStatus(req.Status)
	if !workflow.ValidTarget(models.RoleAuthority, target) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid decision status")
	}
	if workflow.CommentRequired(target) && strings.TrimSpace(req.Comment) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment is required when rejecting")
	}

	col, err := s.resolve(req.TableName)
	if err != nil {
		return nil, err
	}
	record, err := s.loadRecord(ctx, col, req.DocumentID)
	if err != nil {
		return nil, err
	}

	if !workflow.Allowed(record.Status, models.RoleAuthority, target) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "illegal status transition")
	}

	comment := strings.TrimSpace(req.Comment)
	params := repository.UpdateStatusParams{
		ID:                record.ID,
		Revision:          record.Revision,
		Status:            target,
		SuperAdminComment: &comment,
	}
	if err := s.records.UpdateStatus(ctx, col.Ident(), params); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "record was decided concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decide record")
	}

	s.emitAudit(ctx, actor, models.AuditActionRecordDecision, col.Name, record.ID, req)
	return s.loadRecord(ctx, col, record.ID)
}

// BulkDecide applies the moderator-recommended outcome to every
// concurred record of one department. Records without the concurrence
// flag are left for individual decisions.
func (s *WorkflowService) BulkDecide(ctx context.Context, req dto.BulkDecisionRequest, actor *models.JWTClaims) (int64, error) {
	if actor == nil {
		return 0, appErrors.ErrUnauthorized
	}
	if err := s.validate.Struct(req); err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid bulk decision payload")
	}

	target := models.RecordStatus(req.Status)
	if !workflow.ValidTarget(models.RoleAuthority, target) {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid decision status")
	}
	if workflow.CommentRequired(target) && strings.TrimSpace(req.Comment) == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "comment is required when rejecting")
	}

	// The bulk path only trusts a matching moderator recommendation.
	from := models.StatusRequestedForApproval
	if target == models.StatusRejected {
		from = models.StatusRequestedForRejection
	}

	col, err := s.resolve(req.TableName)
	if err != nil {
		return 0, err
	}
	affected, err := s.records.BulkDecide(ctx, col.Ident(), repository.BulkDecideParams{
		Department: req.Department,
		From:       from,
		To:         target,
		Comment:    strings.TrimSpace(req.Comment),
	})
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bulk decide records")
	}
	if affected == 0 {
		return 0, appErrors.Clone(appErrors.ErrNoContent, "no concurred records matched")
	}

	s.emitAudit(ctx, actor, models.AuditActionRecordDecision, col.Name, "", req)
	return affected, nil
}

// Edit applies a submitter's patch to a rejected record and re-enters it
// into the pipeline as pending and unsubmitted.
func (s *WorkflowService) Edit(ctx context.Context, req dto.EditRecordRequest, actor *models.JWTClaims) (*models.DynamicRecord, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid edit payload")
	}

	col, err := s.resolve(req.TableName)
	if err != nil {
		return nil, err
	}
	record, err := s.loadRecord(ctx, col, req.DocumentID)
	if err != nil {
		return nil, err
	}

	if record.SubmittedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	if !workflow.Allowed(record.Status, models.RoleSubmitter, models.StatusPending) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only rejected records can be edited")
	}

	patch := models.RecordData{}
	for k, v := range req.Data {
		patch[models.NormalizeName(k)] = v
	}
	if err := s.records.EditReset(ctx, col.Ident(), record.ID, record.Revision, patch); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "record changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to edit record")
	}

	s.emitAudit(ctx, actor, models.AuditActionRecordEdit, col.Name, record.ID, req)
	return s.loadRecord(ctx, col, record.ID)
}

// Delete removes a record owned by the caller. No status restriction;
// every delete lands in the audit trail.
func (s *WorkflowService) Delete(ctx context.Context, req dto.DeleteRecordRequest, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.validate.Struct(req); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "invalid delete payload")
	}

	col, err := s.resolve(req.TableName)
	if err != nil {
		return err
	}
	record, err := s.loadRecord(ctx, col, req.DocumentID)
	if err != nil {
		return err
	}
	if record.SubmittedBy != actor.UserID {
		return appErrors.ErrForbidden
	}

	if err := s.records.Delete(ctx, col.Ident(), record.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete record")
	}

	s.emitAudit(ctx, actor, models.AuditActionRecordDelete, col.Name, record.ID, nil)
	return nil
}

func (s *WorkflowService) loadRecord(ctx context.Context, col *registry.Collection, id string) (*models.DynamicRecord, error) {
	record, err := s.records.GetByID(ctx, col.Ident(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load record")
	}
	return record, nil
}

func (s *WorkflowService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resource, resourceID string, payload interface{}) {
	if s.audit == nil {
		return
	}
	var userID *string
	if actor != nil {
		userID = &actor.UserID
	}
	var resID *string
	if resourceID != "" {
		resID = &resourceID
	}
	var values json.RawMessage
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			values = raw
		}
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resID,
		NewValues:  values,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
