package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campusdesk/report-portal-api/internal/models"
)

// RecordRepository is the generic collection surface over any registered
// table. Every method takes the physical identifier resolved through the
// registry; identifiers are registry-validated and still quoted before
// interpolation.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository constructs the repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// CreateTable provisions the physical table backing a new collection.
// Author-declared fields live in the data JSONB column; system fields
// are first-class columns so the workflow engine can index and guard
// them.
func (r *RecordRepository) CreateTable(ctx context.Context, ident string) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id UUID PRIMARY KEY,
	data JSONB NOT NULL DEFAULT '{}',
	status TEXT NOT NULL DEFAULT 'pending',
	submitted BOOLEAN NOT NULL DEFAULT FALSE,
	submitted_by TEXT NOT NULL DEFAULT '',
	college TEXT NOT NULL DEFAULT '',
	department TEXT NOT NULL DEFAULT '',
	moderator_comment TEXT NOT NULL DEFAULT '',
	super_admin_comment TEXT NOT NULL DEFAULT '',
	reviewed_moderator TEXT,
	go_as_per_moderator BOOLEAN NOT NULL DEFAULT FALSE,
	revision BIGINT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, pq.QuoteIdentifier(ident))
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create collection table: %w", err)
	}
	return nil
}

// DropTable removes the physical table. Destructive, no soft delete.
func (r *RecordRepository) DropTable(ctx context.Context, ident string) error {
	query := fmt.Sprintf(`DROP TABLE IF EXISTS %s`, pq.QuoteIdentifier(ident))
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("drop collection table: %w", err)
	}
	return nil
}

const recordColumns = `id, data, status, submitted, submitted_by, college, department,
	moderator_comment, super_admin_comment, reviewed_moderator, go_as_per_moderator,
	revision, created_at, updated_at`

// Insert writes one record.
func (r *RecordRepository) Insert(ctx context.Context, ident string, record *models.DynamicRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Status == "" {
		record.Status = models.StatusPending
	}
	if record.Revision == 0 {
		record.Revision = 1
	}
	now := time.Now().UTC()
	record.CreatedAt, record.UpdatedAt = now, now

	query := fmt.Sprintf(`INSERT INTO %s
	(id, data, status, submitted, submitted_by, college, department, moderator_comment,
	 super_admin_comment, reviewed_moderator, go_as_per_moderator, revision, created_at, updated_at)
	VALUES (:id, :data, :status, :submitted, :submitted_by, :college, :department, :moderator_comment,
	 :super_admin_comment, :reviewed_moderator, :go_as_per_moderator, :revision, :created_at, :updated_at)`,
		pq.QuoteIdentifier(ident))
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// InsertBatch writes records one by one and returns how many committed.
// A mid-batch failure leaves prior rows in place; the caller documents
// that partial completion.
func (r *RecordRepository) InsertBatch(ctx context.Context, ident string, records []models.DynamicRecord) (int, error) {
	for i := range records {
		if err := r.Insert(ctx, ident, &records[i]); err != nil {
			return i, err
		}
	}
	return len(records), nil
}

// GetByID fetches one record.
func (r *RecordRepository) GetByID(ctx context.Context, ident, id string) (*models.DynamicRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, recordColumns, pq.QuoteIdentifier(ident))
	var record models.DynamicRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

func buildFilter(filter models.RecordFilter) (string, []interface{}) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 6)

	if filter.SubmittedBy != "" {
		args = append(args, filter.SubmittedBy)
		conditions = append(conditions, fmt.Sprintf("submitted_by = $%d", len(args)))
	}
	if len(filter.Colleges) > 0 {
		args = append(args, pq.Array(filter.Colleges))
		conditions = append(conditions, fmt.Sprintf("college = ANY($%d)", len(args)))
	}
	if len(filter.Departments) > 0 {
		args = append(args, pq.Array(filter.Departments))
		conditions = append(conditions, fmt.Sprintf("department = ANY($%d)", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Submitted != nil {
		args = append(args, *filter.Submitted)
		conditions = append(conditions, fmt.Sprintf("submitted = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// Find returns one page of records matching the filter plus the total
// match count.
func (r *RecordRepository) Find(ctx context.Context, ident string, filter models.RecordFilter, page models.PageRequest) ([]models.DynamicRecord, int, error) {
	page = page.Normalize()
	where, args := buildFilter(filter)
	table := pq.QuoteIdentifier(ident)

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, table, where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		recordColumns, table, where, page.Limit, (page.Page-1)*page.Limit)
	var records []models.DynamicRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	return records, total, nil
}

// ExistsFieldValue reports whether any record already holds value in the
// given data field. Backs unique-field validation.
func (r *RecordRepository) ExistsFieldValue(ctx context.Context, ident, field, value string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE data->>$1 = $2)`, pq.QuoteIdentifier(ident))
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, field, value); err != nil {
		return false, fmt.Errorf("check unique field: %w", err)
	}
	return exists, nil
}

// MergeData applies a partial field merge onto a record's payload.
func (r *RecordRepository) MergeData(ctx context.Context, ident, id string, patch models.RecordData) error {
	query := fmt.Sprintf(`UPDATE %s SET data = data || $2, revision = revision + 1, updated_at = now() WHERE id = $1`,
		pq.QuoteIdentifier(ident))
	result, err := r.db.ExecContext(ctx, query, id, patch)
	if err != nil {
		return fmt.Errorf("merge record data: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNoRows
	}
	return nil
}

// UpdateStatusParams groups a guarded status write.
type UpdateStatusParams struct {
	ID                string
	Revision          int64
	Status            models.RecordStatus
	ModeratorComment  *string
	SuperAdminComment *string
	ReviewedModerator *string
	GoAsPerModerator  *bool
	Submitted         *bool
}

// UpdateStatus transitions a record, guarded by the revision the caller
// read. ErrStaleWrite when the row moved underneath them.
func (r *RecordRepository) UpdateStatus(ctx context.Context, ident string, params UpdateStatusParams) error {
	setParts := []string{"status = :status", "revision = revision + 1", "updated_at = now()"}
	if params.ModeratorComment != nil {
		setParts = append(setParts, "moderator_comment = :moderator_comment")
	}
	if params.SuperAdminComment != nil {
		setParts = append(setParts, "super_admin_comment = :super_admin_comment")
	}
	if params.ReviewedModerator != nil {
		setParts = append(setParts, "reviewed_moderator = :reviewed_moderator")
	}
	if params.GoAsPerModerator != nil {
		setParts = append(setParts, "go_as_per_moderator = :go_as_per_moderator")
	}
	if params.Submitted != nil {
		setParts = append(setParts, "submitted = :submitted")
	}

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = :id AND revision = :revision`,
		pq.QuoteIdentifier(ident), strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                  params.ID,
		"revision":            params.Revision,
		"status":              params.Status,
		"moderator_comment":   params.ModeratorComment,
		"super_admin_comment": params.SuperAdminComment,
		"reviewed_moderator":  params.ReviewedModerator,
		"go_as_per_moderator": params.GoAsPerModerator,
		"submitted":           params.Submitted,
	})
	if err != nil {
		return fmt.Errorf("update record status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrStaleWrite
	}
	return nil
}

// EditReset applies a submitter patch to a rejected record and re-enters
// it into the pipeline. Guarded by revision and the rejected status.
func (r *RecordRepository) EditReset(ctx context.Context, ident, id string, revision int64, patch models.RecordData) error {
	query := fmt.Sprintf(`UPDATE %s
	SET data = data || $3, status = $4, submitted = FALSE,
	    moderator_comment = '', super_admin_comment = '',
	    revision = revision + 1, updated_at = now()
	WHERE id = $1 AND revision = $2 AND status = $5`, pq.QuoteIdentifier(ident))
	result, err := r.db.ExecContext(ctx, query, id, revision, patch, models.StatusPending, models.StatusRejected)
	if err != nil {
		return fmt.Errorf("edit record: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrStaleWrite
	}
	return nil
}

// MarkSubmitted flips every owned, pending, unsubmitted record to
// submitted. Idempotent; returns the number of newly submitted rows.
func (r *RecordRepository) MarkSubmitted(ctx context.Context, ident, submittedBy string) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s
	SET submitted = TRUE, revision = revision + 1, updated_at = now()
	WHERE submitted_by = $1 AND status = $2 AND submitted = FALSE`, pq.QuoteIdentifier(ident))
	result, err := r.db.ExecContext(ctx, query, submittedBy, models.StatusPending)
	if err != nil {
		return 0, fmt.Errorf("mark records submitted: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark records submitted: %w", err)
	}
	return affected, nil
}

// BulkDecideParams scopes an authority bulk decision.
type BulkDecideParams struct {
	Department string
	From       models.RecordStatus
	To         models.RecordStatus
	Comment    string
}

// BulkDecide applies a decision to every concurred record of a
// department whose moderator recommendation matches. Records without the
// concurrence flag are untouched and must be decided individually.
func (r *RecordRepository) BulkDecide(ctx context.Context, ident string, params BulkDecideParams) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s
	SET status = $1, super_admin_comment = $2, revision = revision + 1, updated_at = now()
	WHERE department = $3 AND status = $4 AND go_as_per_moderator = TRUE`, pq.QuoteIdentifier(ident))
	result, err := r.db.ExecContext(ctx, query, params.To, params.Comment, params.Department, params.From)
	if err != nil {
		return 0, fmt.Errorf("bulk decide records: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk decide records: %w", err)
	}
	return affected, nil
}

// Delete removes one record; ErrNoRows when absent.
func (r *RecordRepository) Delete(ctx context.Context, ident, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, pq.QuoteIdentifier(ident))
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNoRows
	}
	return nil
}

// DeleteAll clears a collection. Used on schema update before the table
// is re-derived.
func (r *RecordRepository) DeleteAll(ctx context.Context, ident string) error {
	query := fmt.Sprintf(`DELETE FROM %s`, pq.QuoteIdentifier(ident))
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("clear collection: %w", err)
	}
	return nil
}

// StatusCounts tallies a submitter's submitted records by status.
func (r *RecordRepository) StatusCounts(ctx context.Context, ident, submittedBy string) (map[models.RecordStatus]int, error) {
	query := fmt.Sprintf(`SELECT status, COUNT(*) AS count FROM %s
	WHERE submitted_by = $1 AND submitted = TRUE GROUP BY status`, pq.QuoteIdentifier(ident))
	return r.statusCounts(ctx, query, submittedBy)
}

// StatusCountsByDepartment tallies one department's submitted records
// grouped by workflow status.
func (r *RecordRepository) StatusCountsByDepartment(ctx context.Context, ident, department string) (map[models.RecordStatus]int, error) {
	query := fmt.Sprintf(`SELECT status, COUNT(*) AS count FROM %s
	WHERE department = $1 AND submitted = TRUE GROUP BY status`, pq.QuoteIdentifier(ident))
	return r.statusCounts(ctx, query, department)
}

func (r *RecordRepository) statusCounts(ctx context.Context, query, arg string) (map[models.RecordStatus]int, error) {
	rows := []struct {
		Status models.RecordStatus `db:"status"`
		Count  int                 `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, arg); err != nil {
		return nil, fmt.Errorf("count record statuses: %w", err)
	}
	counts := make(map[models.RecordStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
