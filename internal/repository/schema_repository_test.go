package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/report-portal-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSchemaRepositoryCreatePair(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSchemaRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO table_schemas")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO raw_table_schemas")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	schema := &models.TableSchema{
		TableName: "annual_report",
		Fields:    models.FieldMap{"title": {Type: models.StorageText, Required: true}},
	}
	raw := &models.RawTableSchema{
		Fields: models.RawFieldList{{FieldName: "Title", FieldType: models.FieldTypeText, FieldRequired: "true"}},
	}
	require.NoError(t, repo.CreatePair(context.Background(), schema, raw))
	require.NotEmpty(t, schema.ID)
	require.Equal(t, schema.ID, raw.SchemaID)
	require.Equal(t, "annual_report", raw.TableName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaRepositoryCreatePairUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSchemaRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO table_schemas")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.CreatePair(context.Background(), &models.TableSchema{TableName: "annual_report"}, &models.RawTableSchema{})
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaRepositoryDeletePairUnknownID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSchemaRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM raw_table_schemas")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM table_schemas")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.DeletePair(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSchemaRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "table_name", "fields", "created_at", "updated_at"}).
		AddRow("schema-1", "annual_report", []byte(`{"title":{"type":"TEXT","required":true,"unique":false}}`), now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, table_name, fields, created_at, updated_at FROM table_schemas WHERE id")).
		WithArgs("schema-1").
		WillReturnRows(rows)

	schema, err := repo.GetByID(context.Background(), "schema-1")
	require.NoError(t, err)
	require.Equal(t, "annual_report", schema.TableName)
	require.True(t, schema.Fields["title"].Required)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaRepositoryListRaw(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSchemaRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "schema_id", "table_name", "fields", "created_at", "updated_at"}).
		AddRow("raw-1", "schema-1", "annual_report", []byte(`[{"FieldName":"Title","FieldType":"Text","FieldRequired":"true","FieldUnique":""}]`), now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM raw_table_schemas ORDER BY created_at DESC")).
		WillReturnRows(rows)

	raws, err := repo.ListRaw(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 1)
	require.Equal(t, "Title", raws[0].Fields[0].FieldName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	require.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	require.False(t, IsUniqueViolation(errors.New("plain")))
}
