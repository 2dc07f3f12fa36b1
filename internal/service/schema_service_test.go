package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/report-portal-api/internal/dto"
	"github.com/campusdesk/report-portal-api/internal/models"
	"github.com/campusdesk/report-portal-api/internal/registry"
	appErrors "github.com/campusdesk/report-portal-api/pkg/errors"
)

type schemaStoreStub struct {
	mu      sync.Mutex
	byID    map[string]*models.TableSchema
	rawByID map[string]*models.RawTableSchema
	names   map[string]string
}

func newSchemaStoreStub() *schemaStoreStub {
	return &schemaStoreStub{
		byID:    make(map[string]*models.TableSchema),
		rawByID: make(map[string]*models.RawTableSchema),
		names:   make(map[string]string),
	}
}

func (s *schemaStoreStub) CreatePair(ctx context.Context, schema *models.TableSchema, raw *models.RawTableSchema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.names[schema.TableName]; taken {
		return &pq.Error{Code: "23505"}
	}
	schema.ID = uuid.NewString()
	raw.ID = uuid.NewString()
	raw.SchemaID = schema.ID
	copySchema := *schema
	copyRaw := *raw
	s.byID[schema.ID] = &copySchema
	s.rawByID[schema.ID] = &copyRaw
	s.names[schema.TableName] = schema.ID
	return nil
}

func (s *schemaStoreStub) UpdatePair(ctx context.Context, schema *models.TableSchema, raw *models.RawTableSchema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[schema.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if id, taken := s.names[schema.TableName]; taken && id != schema.ID {
		return &pq.Error{Code: "23505"}
	}
	delete(s.names, existing.TableName)
	copySchema := *schema
	copyRaw := *raw
	s.byID[schema.ID] = &copySchema
	s.rawByID[schema.ID] = &copyRaw
	s.names[schema.TableName] = schema.ID
	return nil
}

func (s *schemaStoreStub) DeletePair(ctx context.Context, schemaID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	schema, ok := s.byID[schemaID]
	if !ok {
		return sql.ErrNoRows
	}
	delete(s.names, schema.TableName)
	delete(s.byID, schemaID)
	delete(s.rawByID, schemaID)
	return nil
}

func (s *schemaStoreStub) GetByID(ctx context.Context, id string) (*models.TableSchema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if schema, ok := s.byID[id]; ok {
		copySchema := *schema
		return &copySchema, nil
	}
	return nil, sql.ErrNoRows
}

func (s *schemaStoreStub) GetByName(ctx context.Context, tableName string) (*models.TableSchema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.names[tableName]; ok {
		copySchema := *s.byID[id]
		return &copySchema, nil
	}
	return nil, sql.ErrNoRows
}

func (s *schemaStoreStub) GetRawBySchemaID(ctx context.Context, schemaID string) (*models.RawTableSchema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if raw, ok := s.rawByID[schemaID]; ok {
		copyRaw := *raw
		return &copyRaw, nil
	}
	return nil, sql.ErrNoRows
}

func (s *schemaStoreStub) ListRaw(ctx context.Context) ([]models.RawTableSchema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.RawTableSchema, 0, len(s.rawByID))
	for _, raw := range s.rawByID {
		result = append(result, *raw)
	}
	return result, nil
}

func (s *schemaStoreStub) ListAll(ctx context.Context) ([]models.TableSchema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.TableSchema, 0, len(s.byID))
	for _, schema := range s.byID {
		result = append(result, *schema)
	}
	return result, nil
}

type provisionerStub struct {
	mu      sync.Mutex
	created []string
	dropped []string
	cleared []string
}

func (p *provisionerStub) CreateTable(ctx context.Context, ident string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, ident)
	return nil
}

func (p *provisionerStub) DropTable(ctx context.Context, ident string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropped = append(p.dropped, ident)
	return nil
}

func (p *provisionerStub) DeleteAll(ctx context.Context, ident string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared = append(p.cleared, ident)
	return nil
}

type auditStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func authorityClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAuthority}
}

func newSchemaFixture() (*SchemaService, *schemaStoreStub, *provisionerStub, *registry.Registry, *auditStub) {
	store := newSchemaStoreStub()
	provisioner := &provisionerStub{}
	reg := registry.New()
	audit := &auditStub{}
	svc := NewSchemaService(store, provisioner, reg, audit, validator.New(), nil)
	return svc, store, provisioner, reg, audit
}

func reportFields() []dto.FieldDescriptor {
	return []dto.FieldDescriptor{
		{FieldName: "Project Title", FieldType: "Text", FieldRequired: "true"},
		{FieldName: "Budget", FieldType: "Number"},
		{FieldName: "Contact Email", FieldType: "Email", FieldUnique: "true"},
	}
}

func TestSchemaCreateNormalizesAndProvisions(t *testing.T) {
	svc, _, provisioner, reg, audit := newSchemaFixture()

	resp, err := svc.Create(context.Background(), dto.CreateSchemaRequest{
		TableName: "  Annual   Report ",
		Data:      reportFields(),
	}, authorityClaims())
	require.NoError(t, err)
	require.Equal(t, "annual_report", resp.TableName)
	require.NotEmpty(t, resp.SchemaID)

	col, ok := reg.Resolve("annual_report")
	require.True(t, ok)
	require.Equal(t, "dt_annual_report", col.Ident())
	require.Equal(t, []string{"dt_annual_report"}, provisioner.created)

	spec, ok := col.Schema.Fields["project_title"]
	require.True(t, ok)
	require.True(t, spec.Required)
	require.Equal(t, models.StorageText, spec.Type)

	email, ok := col.Schema.Fields["contact_email"]
	require.True(t, ok)
	require.True(t, email.Unique)

	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionSchemaCreate, audit.logs[0].Action)
}

func TestSchemaCreateRejectsDuplicateName(t *testing.T) {
	svc, _, _, _, _ := newSchemaFixture()

	_, err := svc.Create(context.Background(), dto.CreateSchemaRequest{TableName: "Budget", Data: reportFields()}, authorityClaims())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), dto.CreateSchemaRequest{TableName: " budget ", Data: reportFields()}, authorityClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSchemaCreateRejectsSystemFieldCollision(t *testing.T) {
	svc, _, _, _, _ := newSchemaFixture()

	_, err := svc.Create(context.Background(), dto.CreateSchemaRequest{
		TableName: "budget",
		Data: []dto.FieldDescriptor{
			{FieldName: "Status", FieldType: "Text"},
		},
	}, authorityClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSchemaCreateRejectsUnsafeTableName(t *testing.T) {
	svc, _, _, _, _ := newSchemaFixture()

	_, err := svc.Create(context.Background(), dto.CreateSchemaRequest{
		TableName: "drop;table",
		Data:      reportFields(),
	}, authorityClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSchemaDescriptorRoundTrip(t *testing.T) {
	svc, _, _, _, _ := newSchemaFixture()

	submitted := []dto.FieldDescriptor{
		{FieldName: "Project Title", FieldType: "Text", FieldRequired: "true", Placeholder: "e.g. Solar Lab"},
		{FieldName: "Budget", FieldType: "Number", FieldUnique: "false"},
	}
	resp, err := svc.Create(context.Background(), dto.CreateSchemaRequest{TableName: "grants", Data: submitted}, authorityClaims())
	require.NoError(t, err)

	raw, err := svc.Get(context.Background(), resp.SchemaID)
	require.NoError(t, err)
	require.Equal(t, "grants", raw.TableName)
	require.Len(t, raw.Fields, 2)
	require.Equal(t, "Project Title", raw.Fields[0].FieldName)
	require.Equal(t, models.FieldTypeText, raw.Fields[0].FieldType)
	require.Equal(t, "true", raw.Fields[0].FieldRequired)
	require.Equal(t, "e.g. Solar Lab", raw.Fields[0].Placeholder)
	require.Equal(t, "Budget", raw.Fields[1].FieldName)
}

func TestSchemaGetByTableName(t *testing.T) {
	svc, _, _, _, _ := newSchemaFixture()

	resp, err := svc.Create(context.Background(), dto.CreateSchemaRequest{TableName: "grants", Data: reportFields()}, authorityClaims())
	require.NoError(t, err)

	raw, err := svc.GetByTableName(context.Background(), " Grants ")
	require.NoError(t, err)
	require.Equal(t, resp.SchemaID, raw.SchemaID)
	require.Equal(t, "grants", raw.TableName)
	require.Len(t, raw.Fields, 3)

	_, err = svc.GetByTableName(context.Background(), "no_such_table")
	require.Equal(t, appErrors.ErrModelNotFound.Code, appErrors.FromError(err).Code)
}

func TestSchemaDeleteCascades(t *testing.T) {
	svc, store, provisioner, reg, _ := newSchemaFixture()

	resp, err := svc.Create(context.Background(), dto.CreateSchemaRequest{TableName: "grants", Data: reportFields()}, authorityClaims())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), resp.SchemaID, authorityClaims()))

	_, ok := reg.Resolve("grants")
	require.False(t, ok)
	require.Equal(t, []string{"dt_grants"}, provisioner.dropped)

	_, err = store.GetByID(context.Background(), resp.SchemaID)
	require.ErrorIs(t, err, sql.ErrNoRows)

	err = svc.Delete(context.Background(), resp.SchemaID, authorityClaims())
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSchemaUpdateRenameConflicts(t *testing.T) {
	svc, _, _, _, _ := newSchemaFixture()

	_, err := svc.Create(context.Background(), dto.CreateSchemaRequest{TableName: "grants", Data: reportFields()}, authorityClaims())
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), dto.CreateSchemaRequest{TableName: "budget", Data: reportFields()}, authorityClaims())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), second.SchemaID, dto.UpdateSchemaRequest{TableName: "grants", Data: reportFields()}, authorityClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSchemaUpdateReplacesCollection(t *testing.T) {
	svc, _, provisioner, reg, _ := newSchemaFixture()

	resp, err := svc.Create(context.Background(), dto.CreateSchemaRequest{TableName: "grants", Data: reportFields()}, authorityClaims())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), resp.SchemaID, dto.UpdateSchemaRequest{
		TableName: "grants archive",
		Data: []dto.FieldDescriptor{
			{FieldName: "Summary", FieldType: "Text"},
		},
	}, authorityClaims())
	require.NoError(t, err)

	_, ok := reg.Resolve("grants")
	require.False(t, ok)
	col, ok := reg.Resolve("grants_archive")
	require.True(t, ok)
	require.Len(t, col.Schema.Fields, 1)
	require.Contains(t, provisioner.dropped, "dt_grants")
	require.Contains(t, provisioner.created, "dt_grants_archive")
}

func TestSchemaCreateConcurrentSingleWinner(t *testing.T) {
	svc, _, provisioner, reg, _ := newSchemaFixture()

	const attempts = 16
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), dto.CreateSchemaRequest{TableName: "race", Data: reportFields()}, authorityClaims())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
		conflicts++
	}
	require.Equal(t, 1, wins)
	require.Equal(t, attempts-1, conflicts)
	require.Equal(t, 1, reg.Len())
	require.Equal(t, []string{"dt_race"}, provisioner.created)
}
