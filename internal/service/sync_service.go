package service

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/tuushin/crmsync/backend-go/internal/cache"
	"github.com/tuushin/crmsync/backend-go/internal/domain"
	"github.com/tuushin/crmsync/backend-go/internal/pipeline"
	"github.com/tuushin/crmsync/backend-go/internal/repository"
)

const (
	defaultLogLimit = 20
	maxLogLimit     = 100
)

// SyncRunner executes sync requests; *pipeline.Orchestrator implements it.
type SyncRunner interface {
	Run(ctx context.Context, req domain.SyncRequest) (*domain.SyncBatchResult, error)
}

type SyncService struct {
	runner SyncRunner
	logs   repository.SyncLogRepository
	cache  cache.ReportCache
}

func NewSyncService(runner SyncRunner, logs repository.SyncLogRepository, cacheImpl cache.ReportCache) *SyncService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopReportCache()
	}
	return &SyncService{runner: runner, logs: logs, cache: cacheImpl}
}

var _ SyncRunner = (*pipeline.Orchestrator)(nil)

// Sync runs the request and drops cached reports afterwards, since even a
// failed run may have committed chunks. On failure the partial batch is
// returned alongside the error.
func (s *SyncService) Sync(ctx context.Context, req domain.SyncRequest) (*domain.SyncBatchResult, error) {
	result, err := s.runner.Run(ctx, req)
	if result != nil {
		s.invalidateReports(ctx)
	}
	return result, err
}

func (s *SyncService) invalidateReports(ctx context.Context) {
	if err := s.cache.InvalidateAll(context.WithoutCancel(ctx)); err != nil {
		log.Warn().Err(err).Msg("sync: report cache invalidation failed")
	}
}

// ListLogs returns the most recent sync log rows, newest first.
func (s *SyncService) ListLogs(ctx context.Context, limit int) ([]domain.SyncLogView, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	logs, err := s.logs.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}

	views := make([]domain.SyncLogView, 0, len(logs))
	for i := range logs {
		views = append(views, logs[i].View())
	}
	return views, nil
}
