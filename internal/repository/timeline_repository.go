package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campusdesk/report-portal-api/internal/models"
)

// timelineSingletonID pins the timeline to a single row.
const timelineSingletonID = "timeline"

// TimelineRepository persists the submission window singleton.
type TimelineRepository struct {
	db *sqlx.DB
}

// NewTimelineRepository constructs the repository.
func NewTimelineRepository(db *sqlx.DB) *TimelineRepository {
	return &TimelineRepository{db: db}
}

// Upsert creates or replaces the singleton window.
func (r *TimelineRepository) Upsert(ctx context.Context, timeline *models.Timeline) error {
	timeline.ID = timelineSingletonID
	now := time.Now().UTC()
	if timeline.CreatedAt.IsZero() {
		timeline.CreatedAt = now
	}
	timeline.UpdatedAt = now

	const query = `INSERT INTO timelines (id, start_date, end_date, created_at, updated_at)
	VALUES (:id, :start_date, :end_date, :created_at, :updated_at)
	ON CONFLICT (id) DO UPDATE SET start_date = EXCLUDED.start_date,
	  end_date = EXCLUDED.end_date, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, timeline); err != nil {
		return fmt.Errorf("upsert timeline: %w", err)
	}
	return nil
}

// Get fetches the singleton window; sql.ErrNoRows when unset.
func (r *TimelineRepository) Get(ctx context.Context) (*models.Timeline, error) {
	const query = `SELECT id, start_date, end_date, created_at, updated_at FROM timelines WHERE id = $1`
	var timeline models.Timeline
	if err := r.db.GetContext(ctx, &timeline, query, timelineSingletonID); err != nil {
		return nil, err
	}
	return &timeline, nil
}
