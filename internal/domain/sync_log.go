package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SyncStatus represents the lifecycle state of a sync log row
type SyncStatus string

const (
	SyncStatusRunning SyncStatus = "RUNNING"
	SyncStatusSuccess SyncStatus = "SUCCESS"
	SyncStatusFailed  SyncStatus = "FAILED"
)

// SyncLog tracks a single (category, filter, window) sync run. It is created
// RUNNING and updated exactly once to SUCCESS or FAILED.
type SyncLog struct {
	ID             int64           `db:"id"`
	Category       Category        `db:"category"`
	FilterType     *int            `db:"filter_type"`
	FromDate       time.Time       `db:"from_date"`
	ToDate         time.Time       `db:"to_date"`
	Status         SyncStatus      `db:"status"`
	RecordCount    int             `db:"record_count"`
	TotalAmount    decimal.Decimal `db:"total_amount"`
	TotalProfitMNT decimal.Decimal `db:"total_profit_mnt"`
	TotalProfitCur decimal.Decimal `db:"total_profit_cur"`
	StartedAt      time.Time       `db:"started_at"`
	FinishedAt     *time.Time      `db:"finished_at"`
	Message        *string         `db:"message"`
}

// SyncTotals accumulates money figures over a fetched batch.
type SyncTotals struct {
	Amount    decimal.Decimal
	ProfitMNT decimal.Decimal
	ProfitCur decimal.Decimal
}

// Add folds one record's figures into the totals; null values contribute nothing.
func (t *SyncTotals) Add(r *ShipmentRecord) {
	if r.TotalAmount.Valid {
		t.Amount = t.Amount.Add(r.TotalAmount.Decimal)
	}
	if r.ProfitMNT.Valid {
		t.ProfitMNT = t.ProfitMNT.Add(r.ProfitMNT.Decimal)
	}
	if r.ProfitCurrency.Valid {
		t.ProfitCur = t.ProfitCur.Add(r.ProfitCurrency.Decimal)
	}
}

// View renders the totals for JSON responses.
func (t SyncTotals) View() SyncTotalsView {
	return SyncTotalsView{
		TotalAmount:    t.Amount.InexactFloat64(),
		TotalProfitMNT: t.ProfitMNT.InexactFloat64(),
		TotalProfitCur: t.ProfitCur.InexactFloat64(),
	}
}

type SyncTotalsView struct {
	TotalAmount    float64 `json:"totalAmount"`
	TotalProfitMNT float64 `json:"totalProfitMnt"`
	TotalProfitCur float64 `json:"totalProfitCur"`
}

// SyncRunResult is the outcome of one (category, filter) run.
type SyncRunResult struct {
	LogID            int64          `json:"logId"`
	Category         Category       `json:"category"`
	FilterType       int            `json:"filterType"`
	FilterTypes      []int          `json:"filterTypes"`
	FetchedCount     int            `json:"fetchedCount"`
	RecordCount      int            `json:"recordCount"`
	SkippedWithoutID int            `json:"skippedWithoutId"`
	Totals           SyncTotalsView `json:"totals"`
}

// SyncSummary sums counts and totals across runs.
type SyncSummary struct {
	Runs             int            `json:"runs"`
	FetchedCount     int            `json:"fetchedCount"`
	RecordCount      int            `json:"recordCount"`
	SkippedWithoutID int            `json:"skippedWithoutId"`
	Totals           SyncTotalsView `json:"totals"`
}

// SyncBatchResult is returned for multi-run invocations.
type SyncBatchResult struct {
	Runs    []SyncRunResult `json:"runs"`
	Summary SyncSummary     `json:"summary"`
}

// SyncRequest describes a sync trigger after defaults are applied.
type SyncRequest struct {
	Categories  []Category
	FilterTypes []int
	From        time.Time
	To          time.Time
}

// SyncLogView is the JSON shape of a sync log row.
type SyncLogView struct {
	ID             int64      `json:"id"`
	Category       Category   `json:"category"`
	FilterType     *int       `json:"filterType"`
	FromDate       string     `json:"fromDate"`
	ToDate         string     `json:"toDate"`
	Status         SyncStatus `json:"status"`
	RecordCount    int        `json:"recordCount"`
	TotalAmount    float64    `json:"totalAmount"`
	TotalProfitMNT float64    `json:"totalProfitMnt"`
	TotalProfitCur float64    `json:"totalProfitCur"`
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     *time.Time `json:"finishedAt"`
	Message        *string    `json:"message"`
}

func (l *SyncLog) View() SyncLogView {
	return SyncLogView{
		ID:             l.ID,
		Category:       l.Category,
		FilterType:     l.FilterType,
		FromDate:       l.FromDate.Format(DateLayout),
		ToDate:         l.ToDate.Format(DateLayout),
		Status:         l.Status,
		RecordCount:    l.RecordCount,
		TotalAmount:    l.TotalAmount.InexactFloat64(),
		TotalProfitMNT: l.TotalProfitMNT.InexactFloat64(),
		TotalProfitCur: l.TotalProfitCur.InexactFloat64(),
		StartedAt:      l.StartedAt,
		FinishedAt:     l.FinishedAt,
		Message:        l.Message,
	}
}
