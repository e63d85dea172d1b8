package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is assumed for amounts whose currency code is absent.
const DefaultCurrency = "MNT"

// ShipmentRecord is one persisted upstream shipment, unique by (ExternalID, Category).
type ShipmentRecord struct {
	ID              int64               `db:"id"`
	ExternalID      string              `db:"external_id"`
	Category        Category            `db:"category"`
	FilterType      *int                `db:"filter_type"`
	Number          *string             `db:"number"`
	ContainerNumber *string             `db:"container_number"`
	CustomerName    *string             `db:"customer_name"`
	RegisteredAt    *time.Time          `db:"registered_at"`
	ArrivalAt       *time.Time          `db:"arrival_at"`
	TransitEntryAt  *time.Time          `db:"transit_entry_at"`
	SyncedAt        time.Time           `db:"synced_at"`
	CurrencyCode    *string             `db:"currency_code"`
	TotalAmount     decimal.NullDecimal `db:"total_amount"`
	ProfitMNT       decimal.NullDecimal `db:"profit_mnt"`
	ProfitCurrency  decimal.NullDecimal `db:"profit_currency"`
	SalesManager    *string             `db:"sales_manager"`
	Manager         *string             `db:"manager"`
	Raw             json.RawMessage     `db:"raw"`
	SyncLogID       *int64              `db:"sync_log_id"`
}

// Currency returns the record's currency code, or DefaultCurrency when absent.
func (r *ShipmentRecord) Currency() string {
	if r.CurrencyCode != nil {
		if code := strings.ToUpper(strings.TrimSpace(*r.CurrencyCode)); code != "" {
			return code
		}
	}
	return DefaultCurrency
}

// EventAt returns the best available lifecycle date: registered, arrival,
// transit entry, then synced.
func (r *ShipmentRecord) EventAt() time.Time {
	for _, t := range []*time.Time{r.RegisteredAt, r.ArrivalAt, r.TransitEntryAt} {
		if t != nil {
			return *t
		}
	}
	return r.SyncedAt
}

// ShipmentItem is the public view of a shipment returned by drill-down; it never carries the raw payload.
type ShipmentItem struct {
	ID              int64      `json:"id"`
	ExternalID      string     `json:"externalId"`
	Category        Category   `json:"category"`
	FilterType      *int       `json:"filterType"`
	Number          *string    `json:"number"`
	ContainerNumber *string    `json:"containerNumber"`
	CustomerName    *string    `json:"customerName"`
	RegisteredAt    *time.Time `json:"registeredAt"`
	ArrivalAt       *time.Time `json:"arrivalAt"`
	TransitEntryAt  *time.Time `json:"transitEntryAt"`
	SyncedAt        time.Time  `json:"syncedAt"`
	CurrencyCode    string     `json:"currencyCode"`
	TotalAmount     *float64   `json:"totalAmount"`
	ProfitMNT       *float64   `json:"profitMnt"`
	ProfitCurrency  *float64   `json:"profitCurrency"`
	SalesManager    *string    `json:"salesManager"`
	Manager         *string    `json:"manager"`
}

// Item converts a stored record into its public view.
func (r *ShipmentRecord) Item() ShipmentItem {
	return ShipmentItem{
		ID:              r.ID,
		ExternalID:      r.ExternalID,
		Category:        r.Category,
		FilterType:      r.FilterType,
		Number:          r.Number,
		ContainerNumber: r.ContainerNumber,
		CustomerName:    r.CustomerName,
		RegisteredAt:    r.RegisteredAt,
		ArrivalAt:       r.ArrivalAt,
		TransitEntryAt:  r.TransitEntryAt,
		SyncedAt:        r.SyncedAt,
		CurrencyCode:    r.Currency(),
		TotalAmount:     NullDecimalFloat(r.TotalAmount),
		ProfitMNT:       NullDecimalFloat(r.ProfitMNT),
		ProfitCurrency:  NullDecimalFloat(r.ProfitCurrency),
		SalesManager:    r.SalesManager,
		Manager:         r.Manager,
	}
}

// NullDecimalFloat converts a nullable decimal into a nullable float for JSON output.
func NullDecimalFloat(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}

// ShipmentFilter is the base predicate shared by aggregation and drill-down reads.
// A row matches when any of synced/registered/arrival/transit-entry falls in [From, To).
type ShipmentFilter struct {
	From        time.Time
	To          time.Time
	Categories  []Category
	FilterTypes []int
}

// SalesKpiMeasurement is a monthly sales target owned by the KPI editor.
type SalesKpiMeasurement struct {
	ID             int64           `db:"id"`
	Month          time.Time       `db:"month"`
	SalesName      string          `db:"sales_name"`
	MatchKey       string          `db:"match_key"`
	PlannedRevenue decimal.Decimal `db:"planned_revenue"`
	PlannedProfit  decimal.Decimal `db:"planned_profit"`
}
