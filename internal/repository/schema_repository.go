package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campusdesk/report-portal-api/internal/models"
)

// SchemaRepository persists the schema store: normalized descriptors and
// their author-facing raw companions. The pair is written and destroyed
// atomically.
type SchemaRepository struct {
	db *sqlx.DB
}

// NewSchemaRepository constructs the repository.
func NewSchemaRepository(db *sqlx.DB) *SchemaRepository {
	return &SchemaRepository{db: db}
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// failure.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// CreatePair inserts both descriptors in one transaction.
func (r *SchemaRepository) CreatePair(ctx context.Context, schema *models.TableSchema, raw *models.RawTableSchema) error {
	if schema.ID == "" {
		schema.ID = uuid.NewString()
	}
	if raw.ID == "" {
		raw.ID = uuid.NewString()
	}
	raw.SchemaID = schema.ID
	raw.TableName = schema.TableName
	now := time.Now().UTC()
	schema.CreatedAt, schema.UpdatedAt = now, now
	raw.CreatedAt, raw.UpdatedAt = now, now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create schema: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertSchema = `INSERT INTO table_schemas (id, table_name, fields, created_at, updated_at)
	VALUES (:id, :table_name, :fields, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertSchema, schema); err != nil {
		return fmt.Errorf("insert table schema: %w", err)
	}

	const insertRaw = `INSERT INTO raw_table_schemas (id, schema_id, table_name, fields, created_at, updated_at)
	VALUES (:id, :schema_id, :table_name, :fields, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertRaw, raw); err != nil {
		return fmt.Errorf("insert raw table schema: %w", err)
	}

	return tx.Commit()
}

// UpdatePair rewrites both descriptors in one transaction.
func (r *SchemaRepository) UpdatePair(ctx context.Context, schema *models.TableSchema, raw *models.RawTableSchema) error {
	now := time.Now().UTC()
	schema.UpdatedAt = now
	raw.UpdatedAt = now
	raw.TableName = schema.TableName

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update schema: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const updateSchema = `UPDATE table_schemas
	SET table_name = :table_name, fields = :fields, updated_at = :updated_at
	WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, updateSchema, schema); err != nil {
		return fmt.Errorf("update table schema: %w", err)
	}

	const updateRaw = `UPDATE raw_table_schemas
	SET table_name = :table_name, fields = :fields, updated_at = :updated_at
	WHERE schema_id = :schema_id`
	if _, err := tx.NamedExecContext(ctx, updateRaw, raw); err != nil {
		return fmt.Errorf("update raw table schema: %w", err)
	}

	return tx.Commit()
}

// DeletePair removes both descriptors; sql.ErrNoRows when the schema id
// is unknown.
func (r *SchemaRepository) DeletePair(ctx context.Context, schemaID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete schema: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM raw_table_schemas WHERE schema_id = $1`, schemaID); err != nil {
		return fmt.Errorf("delete raw table schema: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM table_schemas WHERE id = $1`, schemaID)
	if err != nil {
		return fmt.Errorf("delete table schema: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNoRows
	}

	return tx.Commit()
}

// GetByID fetches a normalized descriptor.
func (r *SchemaRepository) GetByID(ctx context.Context, id string) (*models.TableSchema, error) {
	const query = `SELECT id, table_name, fields, created_at, updated_at FROM table_schemas WHERE id = $1`
	var schema models.TableSchema
	if err := r.db.GetContext(ctx, &schema, query, id); err != nil {
		return nil, err
	}
	return &schema, nil
}

// GetByName fetches a normalized descriptor by its table name.
func (r *SchemaRepository) GetByName(ctx context.Context, tableName string) (*models.TableSchema, error) {
	const query = `SELECT id, table_name, fields, created_at, updated_at FROM table_schemas WHERE table_name = $1`
	var schema models.TableSchema
	if err := r.db.GetContext(ctx, &schema, query, tableName); err != nil {
		return nil, err
	}
	return &schema, nil
}

// GetRawBySchemaID fetches the author-facing descriptor.
func (r *SchemaRepository) GetRawBySchemaID(ctx context.Context, schemaID string) (*models.RawTableSchema, error) {
	const query = `SELECT id, schema_id, table_name, fields, created_at, updated_at
	FROM raw_table_schemas WHERE schema_id = $1`
	var raw models.RawTableSchema
	if err := r.db.GetContext(ctx, &raw, query, schemaID); err != nil {
		return nil, err
	}
	return &raw, nil
}

// ListRaw returns every author-facing descriptor, newest first.
func (r *SchemaRepository) ListRaw(ctx context.Context) ([]models.RawTableSchema, error) {
	const query = `SELECT id, schema_id, table_name, fields, created_at, updated_at
	FROM raw_table_schemas ORDER BY created_at DESC`
	var raws []models.RawTableSchema
	if err := r.db.SelectContext(ctx, &raws, query); err != nil {
		return nil, fmt.Errorf("list raw table schemas: %w", err)
	}
	return raws, nil
}

// ListAll returns every normalized descriptor. Used for registry
// rehydration at startup.
func (r *SchemaRepository) ListAll(ctx context.Context) ([]models.TableSchema, error) {
	const query = `SELECT id, table_name, fields, created_at, updated_at FROM table_schemas ORDER BY table_name`
	var schemas []models.TableSchema
	if err := r.db.SelectContext(ctx, &schemas, query); err != nil {
		return nil, fmt.Errorf("list table schemas: %w", err)
	}
	return schemas, nil
}
