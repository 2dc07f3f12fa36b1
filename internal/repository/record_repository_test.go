package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/report-portal-api/internal/models"
)

func TestRecordRepositoryCreateAndDropTable(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "dt_grants"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.CreateTable(context.Background(), "dt_grants"))

	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "dt_grants"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.DropTable(context.Background(), "dt_grants"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryInsertDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "dt_grants"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.DynamicRecord{
		Data:        models.RecordData{"project_title": "Solar Lab"},
		SubmittedBy: "user-1",
	}
	require.NoError(t, repo.Insert(context.Background(), "dt_grants", record))
	require.NotEmpty(t, record.ID)
	require.Equal(t, models.StatusPending, record.Status)
	require.Equal(t, int64(1), record.Revision)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryFindAppliesFilterAndPaging(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "dt_grants" WHERE submitted_by = $1 AND submitted = $2`)).
		WithArgs("user-1", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "data", "status", "submitted", "submitted_by", "college", "department",
		"moderator_comment", "super_admin_comment", "reviewed_moderator", "go_as_per_moderator",
		"revision", "created_at", "updated_at"})
	for i := 0; i < 10; i++ {
		rows.AddRow("rec", []byte(`{}`), "pending", true, "user-1", "engineering", "cse", "", "", nil, false, 1, now, now)
	}
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at DESC LIMIT 10 OFFSET 10`)).
		WithArgs("user-1", true).
		WillReturnRows(rows)

	submitted := true
	records, total, err := repo.Find(context.Background(), "dt_grants",
		models.RecordFilter{SubmittedBy: "user-1", Submitted: &submitted},
		models.PageRequest{Page: 2, Limit: 10})
	require.NoError(t, err)
	require.Len(t, records, 10)
	require.Equal(t, 25, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryUpdateStatusStaleWrite(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "dt_grants" SET status`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	comment := "needs revision"
	err := repo.UpdateStatus(context.Background(), "dt_grants", UpdateStatusParams{
		ID:               "rec-1",
		Revision:         3,
		Status:           models.StatusRequestedForRejection,
		ModeratorComment: &comment,
	})
	require.ErrorIs(t, err, ErrStaleWrite)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryMarkSubmitted(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectExec(regexp.QuoteMeta(`SET submitted = TRUE`)).
		WithArgs("user-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 4))

	affected, err := repo.MarkSubmitted(context.Background(), "dt_grants", "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(4), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryMarkSubmittedRowsAffectedError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectExec(regexp.QuoteMeta(`SET submitted = TRUE`)).
		WithArgs("user-1", "pending").
		WillReturnResult(sqlmock.NewErrorResult(errors.New("rows affected unavailable")))

	_, err := repo.MarkSubmitted(context.Background(), "dt_grants", "user-1")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryExistsFieldValue(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs("contact_email", "a@uni.edu").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsFieldValue(context.Background(), "dt_grants", "contact_email", "a@uni.edu")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryBulkDecide(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectExec(regexp.QuoteMeta(`go_as_per_moderator = TRUE`)).
		WithArgs("approved", "", "cse", "requestedForApproval").
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.BulkDecide(context.Background(), "dt_grants", BulkDecideParams{
		Department: "cse",
		From:       models.StatusRequestedForApproval,
		To:         models.StatusApproved,
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryBulkDecideRowsAffectedError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectExec(regexp.QuoteMeta(`go_as_per_moderator = TRUE`)).
		WithArgs("approved", "", "cse", "requestedForApproval").
		WillReturnResult(sqlmock.NewErrorResult(errors.New("rows affected unavailable")))

	_, err := repo.BulkDecide(context.Background(), "dt_grants", BulkDecideParams{
		Department: "cse",
		From:       models.StatusRequestedForApproval,
		To:         models.StatusApproved,
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "dt_grants"`)).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.Delete(context.Background(), "dt_grants", "missing"), ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryStatusCounts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("approved", 3).
		AddRow("pending", 2)
	mock.ExpectQuery(regexp.QuoteMeta(`GROUP BY status`)).
		WithArgs("user-1").
		WillReturnRows(rows)

	counts, err := repo.StatusCounts(context.Background(), "dt_grants", "user-1")
	require.NoError(t, err)
	require.Equal(t, 3, counts[models.StatusApproved])
	require.Equal(t, 2, counts[models.StatusPending])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryStatusCountsByDepartment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("rejected", 1).
		AddRow("requestedForApproval", 5)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE department = $1 AND submitted = TRUE GROUP BY status`)).
		WithArgs("cse").
		WillReturnRows(rows)

	counts, err := repo.StatusCountsByDepartment(context.Background(), "dt_grants", "cse")
	require.NoError(t, err)
	require.Equal(t, 1, counts[models.StatusRejected])
	require.Equal(t, 5, counts[models.StatusRequestedForApproval])
	require.NoError(t, mock.ExpectationsWereMet())
}
