package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tuushin/crmsync/backend-go/internal/domain"
	"github.com/tuushin/crmsync/backend-go/internal/repository"
)

const upsertShipmentQuery = `
	INSERT INTO crm_shipments (
		external_id, category, filter_type, number, container_number, customer_name,
		registered_at, arrival_at, transit_entry_at, currency_code, total_amount,
		profit_mnt, profit_currency, sales_manager, manager, raw, synced_at, sync_log_id
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16::jsonb, $17, $18
	)
	ON CONFLICT (external_id, category) DO UPDATE SET
		filter_type = EXCLUDED.filter_type,
		number = EXCLUDED.number,
		container_number = EXCLUDED.container_number,
		customer_name = EXCLUDED.customer_name,
		registered_at = EXCLUDED.registered_at,
		arrival_at = EXCLUDED.arrival_at,
		transit_entry_at = EXCLUDED.transit_entry_at,
		currency_code = EXCLUDED.currency_code,
		total_amount = EXCLUDED.total_amount,
		profit_mnt = EXCLUDED.profit_mnt,
		profit_currency = EXCLUDED.profit_currency,
		sales_manager = EXCLUDED.sales_manager,
		manager = EXCLUDED.manager,
		raw = EXCLUDED.raw,
		synced_at = EXCLUDED.synced_at,
		sync_log_id = EXCLUDED.sync_log_id
`

const shipmentColumns = `
	s.id, s.external_id, s.category, s.filter_type, s.number, s.container_number,
	s.customer_name, s.registered_at, s.arrival_at, s.transit_entry_at, s.synced_at,
	s.currency_code, s.total_amount, s.profit_mnt, s.profit_currency,
	s.sales_manager, s.manager, s.sync_log_id
`

type shipmentRepository struct {
	db *DB
}

func NewShipmentRepository(db *DB) repository.ShipmentRepository {
	return &shipmentRepository{db: db}
}

func (r *shipmentRepository) UpsertChunk(ctx context.Context, logID int64, syncedAt time.Time, records []*domain.ShipmentRecord) error {
	if len(records) == 0 {
		return nil
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, rec := range records {
			raw := "null"
			if len(rec.Raw) > 0 {
				raw = string(rec.Raw)
			}
			_, err := tx.ExecContext(ctx, upsertShipmentQuery,
				rec.ExternalID,
				string(rec.Category),
				rec.FilterType,
				rec.Number,
				rec.ContainerNumber,
				rec.CustomerName,
				rec.RegisteredAt,
				rec.ArrivalAt,
				rec.TransitEntryAt,
				rec.CurrencyCode,
				rec.TotalAmount,
				rec.ProfitMNT,
				rec.ProfitCurrency,
				rec.SalesManager,
				rec.Manager,
				raw,
				syncedAt,
				logID,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert shipment %s/%s: %w", rec.Category, rec.ExternalID, err)
			}
		}
		return nil
	})
}

func (r *shipmentRepository) ListInWindow(ctx context.Context, filter domain.ShipmentFilter) ([]domain.ShipmentRecord, error) {
	where, args, _ := buildShipmentFilterClause(filter, "s", 1)
	query := `SELECT ` + shipmentColumns + `
		FROM crm_shipments s
		WHERE ` + where + `
		ORDER BY s.id`

	var records []domain.ShipmentRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("error listing shipments in window: %w", err)
	}
	return records, nil
}

func (r *shipmentRepository) FindBySalesIdentity(ctx context.Context, filter domain.ShipmentFilter, identity domain.SalesIdentity, limit, offset int) ([]domain.ShipmentRecord, error) {
	where, args, idx := buildShipmentFilterClause(filter, "s", 1)
	identityClause, identityArgs, idx := buildIdentityClause(identity, "s", idx)
	args = append(args, identityArgs...)
	args = append(args, limit, offset)

	query := fmt.Sprintf(`SELECT %s
		FROM crm_shipments s
		WHERE %s AND %s
		ORDER BY s.synced_at DESC, s.id DESC
		LIMIT $%d OFFSET $%d`, shipmentColumns, where, identityClause, idx, idx+1)

	var records []domain.ShipmentRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("error listing shipments for sales identity: %w", err)
	}
	return records, nil
}

type currencySummaryRow struct {
	Currency      string          `db:"currency"`
	ShipmentCount int             `db:"shipment_count"`
	Amount        decimal.Decimal `db:"amount"`
	ProfitMNT     decimal.Decimal `db:"profit_mnt"`
}

func (r *shipmentRepository) SummarizeBySalesIdentity(ctx context.Context, filter domain.ShipmentFilter, identity domain.SalesIdentity) (*domain.IdentitySummary, error) {
	where, args, idx := buildShipmentFilterClause(filter, "s", 1)
	identityClause, identityArgs, _ := buildIdentityClause(identity, "s", idx)
	args = append(args, identityArgs...)

	query := fmt.Sprintf(`SELECT
			COALESCE(NULLIF(UPPER(BTRIM(s.currency_code)), ''), '%s') AS currency,
			COUNT(*) AS shipment_count,
			COALESCE(SUM(s.total_amount), 0) AS amount,
			COALESCE(SUM(s.profit_mnt), 0) AS profit_mnt
		FROM crm_shipments s
		WHERE %s AND %s
		GROUP BY 1
		ORDER BY 1`, domain.DefaultCurrency, where, identityClause)

	var rows []currencySummaryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("error summarizing sales identity: %w", err)
	}

	summary := &domain.IdentitySummary{AmountByCurrency: make(map[string]decimal.Decimal)}
	for _, row := range rows {
		summary.ShipmentCount += row.ShipmentCount
		summary.AmountByCurrency[row.Currency] = summary.AmountByCurrency[row.Currency].Add(row.Amount)
		summary.ProfitMNT = summary.ProfitMNT.Add(row.ProfitMNT)
	}
	return summary, nil
}
