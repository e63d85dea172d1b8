package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/tuushin/crmsync/backend-go/internal/domain"
	"github.com/tuushin/crmsync/backend-go/internal/repository"
)

type kpiRepository struct {
	db *DB
}

func NewKPIRepository(db *DB) repository.KPIRepository {
	return &kpiRepository{db: db}
}

// ListByMonth returns the sales targets recorded for the month containing month.
func (r *kpiRepository) ListByMonth(ctx context.Context, month time.Time) ([]domain.SalesKpiMeasurement, error) {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)

	query := `
		SELECT id, month, sales_name, match_key, planned_revenue, planned_profit
		FROM sales_kpi_measurements
		WHERE month = $1::date
		ORDER BY sales_name, id
	`

	var plans []domain.SalesKpiMeasurement
	if err := r.db.SelectContext(ctx, &plans, query, first.Format(domain.DateLayout)); err != nil {
		return nil, fmt.Errorf("error listing kpi measurements: %w", err)
	}
	return plans, nil
}
