package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tuushin/crmsync/backend-go/internal/crm"
	"github.com/tuushin/crmsync/backend-go/internal/domain"
	"github.com/tuushin/crmsync/backend-go/internal/repository"
)

// Worker executes a single (category, filter, window) sync run
type Worker struct {
	fetcher    Fetcher
	shipments  repository.ShipmentRepository
	logs       repository.SyncLogRepository
	normalizer *Normalizer
	archive    Uploader
	config     PipelineConfig
	now        Clock
}

// NewWorker creates a new sync worker. archive may be nil.
func NewWorker(fetcher Fetcher, shipments repository.ShipmentRepository, logs repository.SyncLogRepository, normalizer *Normalizer, archive Uploader, cfg PipelineConfig, now Clock) *Worker {
	if now == nil {
		now = time.Now
	}
	if normalizer == nil {
		normalizer = NewNormalizer(cfg.Location, nil, cfg.KeepUnidentified)
	}
	return &Worker{
		fetcher:    fetcher,
		shipments:  shipments,
		logs:       logs,
		normalizer: normalizer,
		archive:    archive,
		config:     cfg,
		now:        now,
	}
}

// runState carries the counters of one run across page callbacks.
type runState struct {
	logID    int64
	fetched  int
	stored   int
	skipped  int
	totals   domain.SyncTotals
	syncedAt time.Time
}

// Run creates the RUNNING log row, streams every upstream page through the
// normalizer into chunked upserts, and closes the log as SUCCESS or FAILED.
// Chunks committed before a failure stay committed.
func (w *Worker) Run(ctx context.Context, category domain.Category, filterType int, from, to time.Time) (*domain.SyncRunResult, error) {
	if err := w.fetcher.CheckCredentials(); err != nil {
		return nil, err
	}

	ft := filterType
	syncLog := &domain.SyncLog{
		Category:   category,
		FilterType: &ft,
		FromDate:   from,
		ToDate:     to,
		Status:     domain.SyncStatusRunning,
		StartedAt:  w.now(),
	}
	if err := w.logs.Create(ctx, syncLog); err != nil {
		return nil, fmt.Errorf("failed to create sync log: %w", err)
	}

	logger := log.With().
		Int64("log_id", syncLog.ID).
		Str("category", string(category)).
		Int("filter_type", filterType).
		Logger()
	logger.Info().
		Str("from", from.Format(domain.DateLayout)).
		Str("to", to.Format(domain.DateLayout)).
		Msg("sync run started")

	state := &runState{logID: syncLog.ID, syncedAt: w.now()}
	query := crm.Query{Category: category, FilterType: filterType, From: from, To: to}

	runErr := w.fetcher.FetchPages(ctx, query, func(page *crm.Page) error {
		return w.processPage(ctx, query, state, page)
	})

	syncLog.RecordCount = state.stored
	syncLog.TotalAmount = state.totals.Amount
	syncLog.TotalProfitMNT = state.totals.ProfitMNT
	syncLog.TotalProfitCur = state.totals.ProfitCur
	finished := w.now()
	syncLog.FinishedAt = &finished

	// The log must reach a terminal state even if the caller went away.
	finishCtx := context.WithoutCancel(ctx)

	if runErr != nil {
		msg := runErr.Error()
		syncLog.Status = domain.SyncStatusFailed
		syncLog.Message = &msg
		if err := w.logs.Finish(finishCtx, syncLog); err != nil {
			logger.Error().Err(err).Msg("failed to mark sync log as failed")
		}
		logger.Error().Err(runErr).Int("stored", state.stored).Msg("sync run failed")
		return nil, runErr
	}

	syncLog.Status = domain.SyncStatusSuccess
	if err := w.logs.Finish(finishCtx, syncLog); err != nil {
		return nil, fmt.Errorf("failed to complete sync log: %w", err)
	}

	logger.Info().
		Int("fetched", state.fetched).
		Int("stored", state.stored).
		Int("skipped_without_id", state.skipped).
		Msg("sync run completed")

	return &domain.SyncRunResult{
		LogID:            syncLog.ID,
		Category:         category,
		FilterType:       filterType,
		FilterTypes:      []int{filterType},
		FetchedCount:     state.fetched,
		RecordCount:      state.stored,
		SkippedWithoutID: state.skipped,
		Totals:           state.totals.View(),
	}, nil
}

func (w *Worker) processPage(ctx context.Context, q crm.Query, state *runState, page *crm.Page) error {
	w.archivePage(ctx, q, state.logID, page)

	buffer := newChunkBuffer(w.config.ChunkSize, func(ctx context.Context, records []*domain.ShipmentRecord) error {
		if err := w.shipments.UpsertChunk(ctx, state.logID, state.syncedAt, records); err != nil {
			return fmt.Errorf("upsert chunk on page %d: %w", page.Number, err)
		}
		for _, rec := range records {
			state.totals.Add(rec)
		}
		state.stored += len(records)
		log.Debug().
			Int64("log_id", state.logID).
			Int("page", page.Number).
			Int("records", len(records)).
			Msg("chunk committed")
		return nil
	})

	for _, raw := range page.Records {
		state.fetched++
		rec, identified := w.normalizer.Normalize(q.Category, q.FilterType, raw)
		if !identified {
			state.skipped++
		}
		if rec == nil {
			continue
		}
		if err := buffer.Add(ctx, rec); err != nil {
			return err
		}
	}
	return buffer.Flush(ctx)
}

func (w *Worker) archivePage(ctx context.Context, q crm.Query, logID int64, page *crm.Page) {
	if w.archive == nil || len(page.Body) == 0 {
		return
	}
	key := ArchiveKey(q.Category, logID, q.FilterType, page.Number)
	if err := w.archive.UploadObject(ctx, key, page.Body); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to archive crm page")
	}
}

// ArchivePrefix narrows an archive listing to a category and, when logID is
// positive, to one run. An empty category lists everything.
func ArchivePrefix(category domain.Category, logID int64) string {
	if category == "" {
		return "crm/"
	}
	if logID <= 0 {
		return fmt.Sprintf("crm/%s/", category)
	}
	return fmt.Sprintf("crm/%s/%d/", category, logID)
}

// ArchiveKey is the object key of one raw upstream page.
func ArchiveKey(category domain.Category, logID int64, filterType, page int) string {
	return fmt.Sprintf("crm/%s/%d/filter-%d/page-%d.json", category, logID, filterType, page)
}
