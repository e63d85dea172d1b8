package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tuushin/crmsync/backend-go/internal/domain"
)

// ErrInvalidRequest marks sync requests rejected before any run starts.
var ErrInvalidRequest = errors.New("invalid sync request")

// Orchestrator expands a sync request into (category, filter) runs and executes them in order.
type Orchestrator struct {
	worker *Worker
	cfg    PipelineConfig
	now    Clock
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(worker *Worker, cfg PipelineConfig, now Clock) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Orchestrator{
		worker: worker,
		cfg:    cfg,
		now:    now,
	}
}

// Normalize fills in default filter types and the trailing window.
func (o *Orchestrator) Normalize(req domain.SyncRequest) (domain.SyncRequest, error) {
	if len(req.Categories) == 0 {
		req.Categories = append([]domain.Category(nil), domain.Categories...)
	}
	for _, c := range req.Categories {
		if !c.Valid() {
			return req, fmt.Errorf("%w: unknown category %q", ErrInvalidRequest, c)
		}
	}

	if len(req.FilterTypes) == 0 {
		req.FilterTypes = append([]int(nil), o.cfg.DefaultFilterTypes...)
	}
	if len(req.FilterTypes) == 0 {
		req.FilterTypes = append([]int(nil), defaultFilterTypes...)
	}

	today := o.today()
	if req.To.IsZero() {
		req.To = today
	}
	if req.From.IsZero() {
		days := o.cfg.DefaultWindowDays
		if days <= 0 {
			days = defaultWindowDays
		}
		req.From = req.To.AddDate(0, 0, -days)
	}
	if req.From.After(req.To) {
		return req, fmt.Errorf("%w: begin date %s is after end date %s", ErrInvalidRequest,
			req.From.Format(domain.DateLayout), req.To.Format(domain.DateLayout))
	}
	return req, nil
}

func (o *Orchestrator) today() time.Time {
	now := o.now().In(o.cfg.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, o.cfg.Location)
}

// Run executes every (category, filter) pair sequentially and stops at the
// first failure; results of runs that already finished are returned with it.
func (o *Orchestrator) Run(ctx context.Context, req domain.SyncRequest) (*domain.SyncBatchResult, error) {
	req, err := o.Normalize(req)
	if err != nil {
		return nil, err
	}

	batch := &domain.SyncBatchResult{Runs: make([]domain.SyncRunResult, 0, len(req.Categories)*len(req.FilterTypes))}
	for _, category := range req.Categories {
		for _, filterType := range req.FilterTypes {
			result, err := o.worker.Run(ctx, category, filterType, req.From, req.To)
			if err != nil {
				batch.Summary = Summarize(batch.Runs)
				return batch, err
			}
			batch.Runs = append(batch.Runs, *result)
		}
	}
	batch.Summary = Summarize(batch.Runs)
	return batch, nil
}

// Summarize sums counts and totals across runs.
func Summarize(runs []domain.SyncRunResult) domain.SyncSummary {
	var (
		summary domain.SyncSummary
		totals  domain.SyncTotalsView
	)
	summary.Runs = len(runs)
	for _, run := range runs {
		summary.FetchedCount += run.FetchedCount
		summary.RecordCount += run.RecordCount
		summary.SkippedWithoutID += run.SkippedWithoutID
		totals.TotalAmount += run.Totals.TotalAmount
		totals.TotalProfitMNT += run.Totals.TotalProfitMNT
		totals.TotalProfitCur += run.Totals.TotalProfitCur
	}
	summary.Totals = totals
	return summary
}
