package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuushin/crmsync/backend-go/internal/domain"
)

func TestSyncLogRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSyncLogRepository(db)

	ft := 2
	started := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	log := &domain.SyncLog{
		Category:   domain.CategoryTransit,
		FilterType: &ft,
		FromDate:   windowFrom,
		ToDate:     windowTo,
		Status:     domain.SyncStatusRunning,
		StartedAt:  started,
	}

	mock.ExpectQuery(`INSERT INTO crm_sync_logs .* RETURNING id`).
		WithArgs("TRANSIT", 2, windowFrom, windowTo, "RUNNING", 0,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), started).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	require.NoError(t, repo.Create(context.Background(), log))
	assert.Equal(t, int64(42), log.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncLogRepository_Finish(t *testing.T) {
	t.Run("failed run keeps its message", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSyncLogRepository(db)

		finished := time.Date(2024, 2, 1, 9, 5, 0, 0, time.UTC)
		msg := "upstream returned 503"
		log := &domain.SyncLog{
			ID:          42,
			Status:      domain.SyncStatusFailed,
			RecordCount: 25,
			TotalAmount: decimal.NewFromInt(2500),
			FinishedAt:  &finished,
			Message:     &msg,
		}

		mock.ExpectExec(`UPDATE crm_sync_logs\s+SET status = \$1`).
			WithArgs("FAILED", 25, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), finished, msg, int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Finish(context.Background(), log))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps database errors", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`UPDATE crm_sync_logs`).WillReturnError(errors.New("connection reset"))

		err := NewSyncLogRepository(db).Finish(context.Background(), &domain.SyncLog{ID: 7, Status: domain.SyncStatusSuccess})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sync log 7")
	})
}

func TestSyncLogRepository_ListRecent(t *testing.T) {
	columns := []string{
		"id", "category", "filter_type", "from_date", "to_date", "status", "record_count",
		"total_amount", "total_profit_mnt", "total_profit_cur", "started_at", "finished_at", "message",
	}

	cases := []struct {
		name  string
		limit int
		want  int
	}{
		{"default", 0, 20},
		{"capped", 1000, maxSyncLogLimit},
		{"explicit", 5, 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			started := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

			mock.ExpectQuery(`FROM crm_sync_logs\s+ORDER BY started_at DESC, id DESC\s+LIMIT \$1`).
				WithArgs(tc.want).
				WillReturnRows(sqlmock.NewRows(columns).
					AddRow(int64(1), "IMPORT", int64(1), windowFrom, windowTo, "SUCCESS", int64(60),
						"60000", "1200", "0", started, started, nil))

			logs, err := NewSyncLogRepository(db).ListRecent(context.Background(), tc.limit)
			require.NoError(t, err)
			require.Len(t, logs, 1)
			assert.Equal(t, domain.SyncStatusSuccess, logs[0].Status)
			assert.Equal(t, 60, logs[0].RecordCount)
			assert.Equal(t, 60000.0, logs[0].View().TotalAmount)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestKPIRepository_ListByMonth(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKPIRepository(db)

	month := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM sales_kpi_measurements\s+WHERE month = \$1::date`).
		WithArgs("2024-01-01").
		WillReturnRows(sqlmock.NewRows([]string{"id", "month", "sales_name", "match_key", "planned_revenue", "planned_profit"}).
			AddRow(int64(1), month, "Unassigned", "unassigned", "500000", "0"))

	plans, err := repo.ListByMonth(context.Background(), time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "Unassigned", plans[0].SalesName)
	assert.True(t, decimal.NewFromInt(500000).Equal(plans[0].PlannedRevenue))
	assert.NoError(t, mock.ExpectationsWereMet())
}
