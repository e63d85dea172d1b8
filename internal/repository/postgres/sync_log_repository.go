package postgres

import (
	"context"
	"fmt"

	"github.com/tuushin/crmsync/backend-go/internal/domain"
	"github.com/tuushin/crmsync/backend-go/internal/repository"
)

const maxSyncLogLimit = 100

type syncLogRepository struct {
	db *DB
}

func NewSyncLogRepository(db *DB) repository.SyncLogRepository {
	return &syncLogRepository{db: db}
}

// Create inserts a new sync log row
func (r *syncLogRepository) Create(ctx context.Context, log *domain.SyncLog) error {
	query := `
		INSERT INTO crm_sync_logs (
			category, filter_type, from_date, to_date, status,
			record_count, total_amount, total_profit_mnt, total_profit_cur, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		string(log.Category), log.FilterType, log.FromDate, log.ToDate, string(log.Status),
		log.RecordCount, log.TotalAmount, log.TotalProfitMNT, log.TotalProfitCur, log.StartedAt,
	).Scan(&log.ID)
	if err != nil {
		return fmt.Errorf("failed to create sync log: %w", err)
	}
	return nil
}

// Finish writes the terminal status, counts and totals of a run
func (r *syncLogRepository) Finish(ctx context.Context, log *domain.SyncLog) error {
	query := `
		UPDATE crm_sync_logs
		SET status = $1, record_count = $2, total_amount = $3,
		    total_profit_mnt = $4, total_profit_cur = $5, finished_at = $6, message = $7
		WHERE id = $8
	`

	_, err := r.db.ExecContext(ctx, query,
		string(log.Status), log.RecordCount, log.TotalAmount,
		log.TotalProfitMNT, log.TotalProfitCur, log.FinishedAt, log.Message, log.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish sync log %d: %w", log.ID, err)
	}
	return nil
}

func (r *syncLogRepository) ListRecent(ctx context.Context, limit int) ([]domain.SyncLog, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxSyncLogLimit {
		limit = maxSyncLogLimit
	}

	query := `
		SELECT id, category, filter_type, from_date, to_date, status, record_count,
		       total_amount, total_profit_mnt, total_profit_cur, started_at, finished_at, message
		FROM crm_sync_logs
		ORDER BY started_at DESC, id DESC
		LIMIT $1
	`

	var logs []domain.SyncLog
	if err := r.db.SelectContext(ctx, &logs, query, limit); err != nil {
		return nil, fmt.Errorf("error listing sync logs: %w", err)
	}
	return logs, nil
}
