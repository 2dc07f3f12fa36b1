package service

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/campusdesk/report-portal-api/internal/dto"
	"github.com/campusdesk/report-portal-api/internal/models"
	"github.com/campusdesk/report-portal-api/internal/registry"
	appErrors "github.com/campusdesk/report-portal-api/pkg/errors"
)

type statsStore interface {
	StatusCounts(ctx context.Context, ident, submittedBy string) (map[models.RecordStatus]int, error)
	StatusCountsByDepartment(ctx context.Context, ident, department string) (map[models.RecordStatus]int, error)
}

// StatsService aggregates one submitter's counts across every
// registered table, fanning out one query per table.
type StatsService struct {
	records     statsStore
	registry    *registry.Registry
	concurrency int
	logger      *zap.Logger
}

// NewStatsService constructs the service.
func NewStatsService(records statsStore, reg *registry.Registry, concurrency int, logger *zap.Logger) *StatsService {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{records: records, registry: reg, concurrency: concurrency, logger: logger}
}

// SubmitterStats tallies the submitter's records across all tables.
// A record still in review counts as pending.
func (s *StatsService) SubmitterStats(ctx context.Context, actor *models.JWTClaims) (*dto.DepartmentStats, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	stats := &dto.DepartmentStats{UserID: actor.UserID}
	if err := s.fanOut(ctx, stats, func(gctx context.Context, ident string) (map[models.RecordStatus]int, error) {
		return s.records.StatusCounts(gctx, ident, actor.UserID)
	}); err != nil {
		return nil, err
	}
	return stats, nil
}

// DepartmentStats tallies one department's submitted records across all
// tables. Moderators may only query departments in their assignment.
func (s *StatsService) DepartmentStats(ctx context.Context, department string, actor *models.JWTClaims) (*dto.DepartmentStats, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleModerator && !contains(actor.Departments, department) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "department is outside your assignment")
	}
	stats := &dto.DepartmentStats{Department: department}
	if err := s.fanOut(ctx, stats, func(gctx context.Context, ident string) (map[models.RecordStatus]int, error) {
		return s.records.StatusCountsByDepartment(gctx, ident, department)
	}); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *StatsService) fanOut(ctx context.Context, stats *dto.DepartmentStats, count func(context.Context, string) (map[models.RecordStatus]int, error)) error {
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, name := range s.registry.Names() {
		col, ok := s.registry.Resolve(name)
		if !ok {
			continue
		}
		g.Go(func() error {
			counts, err := count(gctx, col.Ident())
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for status, n := range counts {
				stats.TotalSubmission += n
				switch status {
				case models.StatusApproved:
					stats.AcceptedCount += n
				case models.StatusRejected:
					stats.RejectedCount += n
				default:
					stats.PendingCount += n
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate submission stats")
	}
	return nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
