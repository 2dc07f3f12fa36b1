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
	appErrors "github.com/campusdesk/report-portal-api/pkg/errors"
)

type schemaStore interface {
	CreatePair(ctx context.Context, schema *models.TableSchema, raw *models.RawTableSchema) error
	UpdatePair(ctx context.Context, schema *models.TableSchema, raw *models.RawTableSchema) error
	DeletePair(ctx context.Context, schemaID string) error
	GetByID(ctx context.Context, id string) (*models.TableSchema, error)
	GetByName(ctx context.Context, tableName string) (*models.TableSchema, error)
	GetRawBySchemaID(ctx context.Context, schemaID string) (*models.RawTableSchema, error)
	ListRaw(ctx context.Context) ([]models.RawTableSchema, error)
	ListAll(ctx context.Context) ([]models.TableSchema, error)
}

type collectionProvisioner interface {
	CreateTable(ctx context.Context, ident string) error
	DropTable(ctx context.Context, ident string) error
	DeleteAll(ctx context.Context, ident string) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SchemaService owns the schema store and keeps the registry in sync
// with it.
type SchemaService struct {
	repo     schemaStore
	records  collectionProvisioner
	registry *registry.Registry
	audit    auditLogger
	validate *validator.Validate
	logger   *zap.Logger
}

// NewSchemaService constructs the service.
func NewSchemaService(repo schemaStore, records collectionProvisioner, reg *registry.Registry, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *SchemaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaService{
		repo:     repo,
		records:  records,
		registry: reg,
		audit:    audit,
		validate: validate,
		logger:   logger,
	}
}

// deriveDescriptors normalizes the author field list into the storage
// form. Duplicate normalized field names are last-write-wins; colliding
// with a system field is rejected outright.
func deriveDescriptors(descriptors []dto.FieldDescriptor) (models.FieldMap, models.RawFieldList, error) {
	fields := make(models.FieldMap, len(descriptors))
	raw := make(models.RawFieldList, 0, len(descriptors))

	for _, d := range descriptors {
		name := models.NormalizeName(d.FieldName)
		if !models.ValidName(name) {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid field name: "+d.FieldName)
		}
		if models.IsSystemField(name) {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "field name is reserved: "+name)
		}
		fieldType := models.FieldType(d.FieldType)
		storageType, ok := fieldType.Storage()
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown field type: "+d.FieldType)
		}
		fields[name] = models.FieldSpec{
			Type:     storageType,
			Required: strings.EqualFold(d.FieldRequired, "true"),
			Unique:   strings.EqualFold(d.FieldUnique, "true"),
		}
		raw = append(raw, models.RawFieldDescriptor{
			FieldName:     d.FieldName,
			FieldType:     fieldType,
			FieldRequired: d.FieldRequired,
			FieldUnique:   d.FieldUnique,
			Placeholder:   d.Placeholder,
		})
	}
	return fields, raw, nil
}

// Create registers a new dynamic table under the normalized name.
func (s *SchemaService) Create(ctx context.Context, req dto.CreateSchemaRequest, actor *models.JWTClaims) (*dto.CreateSchemaResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid schema payload")
	}

	name := models.NormalizeName(req.TableName)
	if !models.ValidName(name) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid table name")
	}

	fields, raw, err := deriveDescriptors(req.Data)
	if err != nil {
		return nil, err
	}

	unlock := s.registry.LockName(name)
	defer unlock()

	if _, exists := s.registry.Resolve(name); exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "table already exists")
	}

	schema := &models.TableSchema{TableName: name, Fields: fields}
	rawSchema := &models.RawTableSchema{TableName: name, Fields: raw}
	if err := s.repo.CreatePair(ctx, schema, rawSchema); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "table already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist schema")
	}

	col, ok := s.registry.Register(*schema)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrConflict, "table already exists")
	}
	if err := s.records.CreateTable(ctx, col.Ident()); err != nil {
		s.registry.Deregister(name)
		if delErr := s.repo.DeletePair(ctx, schema.ID); delErr != nil {
			s.logger.Warn("failed to roll back schema descriptors", zap.String("table", name), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to provision collection")
	}

	s.emitAudit(ctx, actor, models.AuditActionSchemaCreate, name, schema.ID, req)
	return &dto.CreateSchemaResponse{TableName: name, SchemaID: schema.ID}, nil
}

// Update re-derives a table's descriptors, optionally renaming it.
// Existing records are removed: the new shape starts empty.
func (s *SchemaService) Update(ctx context.Context, schemaID string, req dto.UpdateSchemaRequest, actor *models.JWTClaims) (*dto.CreateSchemaResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid schema payload")
	}

	existing, err := s.repo.GetByID(ctx, schemaID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schema not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schema")
	}

	newName := models.NormalizeName(req.TableName)
	if !models.ValidName(newName) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid table name")
	}

	fields, raw, err := deriveDescriptors(req.Data)
	if err != nil {
		return nil, err
	}

	// Lock both names in stable order so a concurrent rename in the
	// opposite direction cannot deadlock.
	names := []string{existing.TableName}
	if newName != existing.TableName {
		names = append(names, newName)
	}
	if len(names) == 2 && names[0] > names[1] {
		names[0], names[1] = names[1], names[0]
	}
	for _, n := range names {
		unlock := s.registry.LockName(n)
		defer unlock()
	}

	if newName != existing.TableName {
		if _, taken := s.registry.Resolve(newName); taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "table already exists")
		}
	}

	oldCol, _ := s.registry.Resolve(existing.TableName)
	if oldCol != nil {
		if err := s.records.DeleteAll(ctx, oldCol.Ident()); err != nil {
			s.logger.Warn("failed to clear collection before update", zap.String("table", existing.TableName), zap.Error(err))
		}
		if err := s.records.DropTable(ctx, oldCol.Ident()); err != nil {
			s.logger.Warn("failed to drop collection before update", zap.String("table", existing.TableName), zap.Error(err))
		}
		s.registry.Deregister(existing.TableName)
	}

	schema := &models.TableSchema{ID: schemaID, TableName: newName, Fields: fields, CreatedAt: existing.CreatedAt}
	rawSchema := &models.RawTableSchema{SchemaID: schemaID, TableName: newName, Fields: raw}
	if err := s.repo.UpdatePair(ctx, schema, rawSchema); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "table already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schema")
	}

	col := s.registry.Replace(*schema)
	if err := s.records.CreateTable(ctx, col.Ident()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to provision collection")
	}

	s.emitAudit(ctx, actor, models.AuditActionSchemaUpdate, newName, schemaID, req)
	return &dto.CreateSchemaResponse{TableName: newName, SchemaID: schemaID}, nil
}

// Delete cascades: descriptors, every record and the registry entry.
func (s *SchemaService) Delete(ctx context.Context, schemaID string, actor *models.JWTClaims) error {
	existing, err := s.repo.GetByID(ctx, schemaID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schema not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schema")
	}

	unlock := s.registry.LockName(existing.TableName)
	defer unlock()

	if err := s.repo.DeletePair(ctx, schemaID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schema not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schema")
	}

	if col, ok := s.registry.Resolve(existing.TableName); ok {
		if err := s.records.DropTable(ctx, col.Ident()); err != nil {
			s.logger.Warn("failed to drop collection on delete", zap.String("table", existing.TableName), zap.Error(err))
		}
		s.registry.Deregister(existing.TableName)
	}

	s.emitAudit(ctx, actor, models.AuditActionSchemaDelete, existing.TableName, schemaID, nil)
	return nil
}

// List returns every author-facing descriptor.
func (s *SchemaService) List(ctx context.Context) ([]models.RawTableSchema, error) {
	raws, err := s.repo.ListRaw(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schemas")
	}
	return raws, nil
}

// Get returns the author-facing descriptor for one schema.
func (s *SchemaService) Get(ctx context.Context, schemaID string) (*models.RawTableSchema, error) {
	raw, err := s.repo.GetRawBySchemaID(ctx, schemaID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schema not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schema")
	}
	return raw, nil
}

// GetByTableName returns the author-facing descriptor for one table
// name. Form renderers know table names, not schema ids.
func (s *SchemaService) GetByTableName(ctx context.Context, tableName string) (*models.RawTableSchema, error) {
	name := models.NormalizeName(tableName)
	schema, err := s.repo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrModelNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schema")
	}
	return s.Get(ctx, schema.ID)
}

// Rehydrate rebuilds the registry from the schema store. Called once at
// startup before the server accepts traffic.
func (s *SchemaService) Rehydrate(ctx context.Context) error {
	schemas, err := s.repo.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, schema := range schemas {
		col := s.registry.Replace(schema)
		if err := s.records.CreateTable(ctx, col.Ident()); err != nil {
			return err
		}
	}
	s.logger.Info("registry rehydrated", zap.Int("tables", len(schemas)))
	return nil
}

func (s *SchemaService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resource, resourceID string, payload interface{}) {
	if s.audit == nil {
		return
	}
	var userID *string
	if actor != nil {
		userID = &actor.UserID
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
		ResourceID: &resourceID,
		NewValues:  values,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
