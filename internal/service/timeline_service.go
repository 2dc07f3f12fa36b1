package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campusdesk/report-portal-api/internal/dto"
	"github.com/campusdesk/report-portal-api/internal/models"
	appErrors "github.com/campusdesk/report-portal-api/pkg/errors"
)

const timelineCacheKey = "timeline:window"

type timelineStore interface {
	Upsert(ctx context.Context, timeline *models.Timeline) error
	Get(ctx context.Context) (*models.Timeline, error)
}

// TimelineService manages the singleton submission window. Reads go
// through an optional redis cache; the cache is invalidated on writes.
type TimelineService struct {
	timelines timelineStore
	cache     *redis.Client
	cacheTTL  time.Duration
	validate  *validator.Validate
	now       func() time.Time
	logger    *zap.Logger
}

// NewTimelineService constructs the service. A nil cache client
// disables caching.
func NewTimelineService(timelines timelineStore, cache *redis.Client, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *TimelineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimelineService{
		timelines: timelines,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validate:  validate,
		now:       time.Now,
		logger:    logger,
	}
}

// Upsert replaces the submission window.
func (s *TimelineService) Upsert(ctx context.Context, req dto.UpsertTimelineRequest) (*models.Timeline, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid timeline payload")
	}
	if !models.ValidDate(req.StartDate) || !models.ValidDate(req.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dates must use the YYYY-MM-DD format")
	}
	if req.EndDate <= req.StartDate {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}

	timeline := &models.Timeline{StartDate: req.StartDate, EndDate: req.EndDate}
	if err := s.timelines.Upsert(ctx, timeline); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save timeline")
	}
	s.invalidate(ctx)
	return timeline, nil
}

// Get returns the current window.
func (s *TimelineService) Get(ctx context.Context) (*models.Timeline, error) {
	timeline, err := s.load(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNoContent, "no submission window configured")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timeline")
	}
	return timeline, nil
}

// WithinWindow succeeds only when today falls inside the configured
// window, inclusive of both bounds. A missing window counts as closed.
func (s *TimelineService) WithinWindow(ctx context.Context) error {
	timeline, err := s.load(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrWindowClosed, "no submission window configured")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timeline")
	}
	if !timeline.Contains(s.now()) {
		return appErrors.ErrWindowClosed
	}
	return nil
}

func (s *TimelineService) load(ctx context.Context) (*models.Timeline, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, timelineCacheKey).Bytes()
		if err == nil {
			var timeline models.Timeline
			if unmarshalErr := json.Unmarshal(raw, &timeline); unmarshalErr == nil {
				return &timeline, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("timeline cache read failed", zap.Error(err))
		}
	}

	timeline, err := s.timelines.Get(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(timeline); err == nil {
			if err := s.cache.Set(ctx, timelineCacheKey, raw, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("timeline cache write failed", zap.Error(err))
			}
		}
	}
	return timeline, nil
}

func (s *TimelineService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, timelineCacheKey).Err(); err != nil {
		s.logger.Warn("timeline cache invalidation failed", zap.Error(err))
	}
}
