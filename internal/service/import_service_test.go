package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campusdesk/report-portal-api/internal/models"
	"github.com/campusdesk/report-portal-api/internal/registry"
	appErrors "github.com/campusdesk/report-portal-api/pkg/errors"
)

func (r *recordStoreStub) InsertBatch(ctx context.Context, ident string, records []models.DynamicRecord) (int, error) {
	for i := range records {
		if err := r.Insert(ctx, ident, &records[i]); err != nil {
			return i, err
		}
	}
	return len(records), nil
}

type stagingStub struct {
	dir string
}

func newStagingStub(t *testing.T) *stagingStub {
	t.Helper()
	return &stagingStub{dir: t.TempDir()}
}

func (s *stagingStub) stage(t *testing.T, name, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, name), []byte(content), 0o644))
	return name
}

func (s *stagingStub) Open(filename string) (*os.File, error) {
	return os.Open(filepath.Join(s.dir, filename))
}

func (s *stagingStub) Delete(filename string) error {
	return os.Remove(filepath.Join(s.dir, filename))
}

func (s *stagingStub) exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

func newImportFixture(t *testing.T) (*ImportService, *recordStoreStub, *stagingStub) {
	t.Helper()
	store := newRecordStoreStub()
	reg := registry.New()
	reg.Replace(grantsSchema())
	files := newStagingStub(t)
	svc := NewImportService(store, reg, files, &auditStub{}, nil)
	return svc, store, files
}

func TestImportCSV(t *testing.T) {
	svc, store, files := newImportFixture(t)
	staged := files.stage(t, "upload.csv",
		"Project Title,Budget,Contact Email\n"+
			"Solar Lab,1000,a@uni.edu\n"+
			"Wind Farm,2000,b@uni.edu\n")

	result, err := svc.Import(context.Background(), "grants", staged, submitterClaims())
	require.NoError(t, err)
	require.Equal(t, 2, result.Inserted)
	require.Equal(t, "grants", result.TableName)

	inserted := store.records["dt_grants"]
	require.Len(t, inserted, 2)
	for _, rec := range inserted {
		require.Equal(t, models.StatusPending, rec.Status)
		require.False(t, rec.Submitted)
		require.Equal(t, "user-1", rec.SubmittedBy)
		require.Equal(t, "cse", rec.Department)
	}
	require.Equal(t, "Solar Lab", inserted[0].Data["project_title"])

	// staged file cleaned up
	require.False(t, files.exists(staged))
}

func TestImportRejectsRowMissingDeclaredFields(t *testing.T) {
	svc, store, files := newImportFixture(t)
	staged := files.stage(t, "upload.csv",
		"Project Title,Budget,Contact Email\n"+
			"Solar Lab,1000,a@uni.edu\n"+
			",2000,\n")

	_, err := svc.Import(context.Background(), "grants", staged, submitterClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Contains(t, appErr.Message, "row 3")
	// every missing field of the offending row, sorted
	require.Contains(t, appErr.Message, "contact_email, project_title")

	// all-or-nothing: the valid first row must not have been inserted
	require.Len(t, store.records["dt_grants"], 0)
	require.False(t, files.exists(staged))
}

func TestImportRequiresEveryDeclaredColumn(t *testing.T) {
	svc, store, files := newImportFixture(t)

	// budget is not flagged required, but bulk rows must still carry it
	staged := files.stage(t, "upload.csv",
		"Project Title,Contact Email\n"+
			"Solar Lab,a@uni.edu\n")

	_, err := svc.Import(context.Background(), "grants", staged, submitterClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Contains(t, appErr.Message, "budget")
	require.Len(t, store.records["dt_grants"], 0)
}

func TestImportRejectsDuplicateUniqueValueWithinFile(t *testing.T) {
	svc, store, files := newImportFixture(t)
	staged := files.stage(t, "upload.csv",
		"Project Title,Budget,Contact Email\n"+
			"A,1,same@uni.edu\n"+
			"B,2,same@uni.edu\n")

	_, err := svc.Import(context.Background(), "grants", staged, submitterClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	require.Len(t, store.records["dt_grants"], 0)
}

func TestImportRejectsDuplicateAgainstExistingRecords(t *testing.T) {
	svc, store, files := newImportFixture(t)
	require.NoError(t, store.Insert(context.Background(), "dt_grants", &models.DynamicRecord{
		Data: models.RecordData{"contact_email": "taken@uni.edu"},
	}))
	staged := files.stage(t, "upload.csv",
		"Project Title,Budget,Contact Email\n"+
			"A,1,taken@uni.edu\n")

	_, err := svc.Import(context.Background(), "grants", staged, submitterClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	require.Len(t, store.records["dt_grants"], 1)
}

func TestImportUnknownTable(t *testing.T) {
	svc, _, files := newImportFixture(t)
	staged := files.stage(t, "upload.csv", "Project Title\nSolar Lab\n")

	_, err := svc.Import(context.Background(), "nope", staged, submitterClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrModelNotFound.Code, appErrors.FromError(err).Code)
	require.False(t, files.exists(staged))
}

func TestImportRejectsUnsupportedExtension(t *testing.T) {
	svc, _, files := newImportFixture(t)
	staged := files.stage(t, "upload.txt", "whatever")

	_, err := svc.Import(context.Background(), "grants", staged, submitterClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestImportRejectsHeaderOnlyFile(t *testing.T) {
	svc, _, files := newImportFixture(t)
	staged := files.stage(t, "upload.csv", "Project Title,Budget\n")

	_, err := svc.Import(context.Background(), "grants", staged, submitterClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
