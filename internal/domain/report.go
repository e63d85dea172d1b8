package domain

import "time"

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// Pagination is the standard page envelope. TotalPages is never below 1.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// ReportQuery holds the raw report parameters after boundary parsing.
type ReportQuery struct {
	Month       string
	Start       string
	End         string
	Categories  []Category
	FilterTypes []int
	Search      string
	SalesKey    string
	Page        int
	PageSize    int
}

// DateRange is a resolved, inclusive calendar window.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type ReportFilters struct {
	Categories  []Category `json:"categories"`
	FilterTypes []int      `json:"filterTypes"`
	Search      string     `json:"search"`
}

// SalesRow is one aggregated sales identity.
type SalesRow struct {
	SalesKey               string             `json:"salesKey"`
	SalesName              string             `json:"salesName"`
	MatchKey               string             `json:"matchKey"`
	ShipmentCount          int                `json:"shipmentCount"`
	CategoryCounts         map[Category]int   `json:"categoryCounts"`
	AmountBreakdown        map[string]float64 `json:"amountBreakdown"`
	ProfitFxBreakdown      map[string]float64 `json:"profitFxBreakdown"`
	ActualRevenue          float64            `json:"actualRevenue"`
	ActualProfit           float64            `json:"actualProfit"`
	PlannedRevenue         float64            `json:"plannedRevenue"`
	PlannedProfit          float64            `json:"plannedProfit"`
	RevenueAchievementRate *float64           `json:"revenueAchievementRate"`
	ProfitAchievementRate  *float64           `json:"profitAchievementRate"`
	HasPlan                bool               `json:"hasPlan"`
	FirstShipmentAt        *time.Time         `json:"firstShipmentAt"`
	LastShipmentAt         *time.Time         `json:"lastShipmentAt"`
}

// SalesTotals covers the whole filtered set, independent of the requested page.
// ActualRevenue sums amounts across currencies without FX conversion; the
// per-currency AmountBreakdown is the authoritative figure.
type SalesTotals struct {
	SalesCount             int                `json:"salesCount"`
	ShipmentCount          int                `json:"shipmentCount"`
	CategoryCounts         map[Category]int   `json:"categoryCounts"`
	AmountBreakdown        map[string]float64 `json:"amountBreakdown"`
	ProfitFxBreakdown      map[string]float64 `json:"profitFxBreakdown"`
	ActualRevenue          float64            `json:"actualRevenue"`
	ActualProfit           float64            `json:"actualProfit"`
	PlannedRevenue         float64            `json:"plannedRevenue"`
	PlannedProfit          float64            `json:"plannedProfit"`
	RevenueAchievementRate *float64           `json:"revenueAchievementRate"`
	ProfitAchievementRate  *float64           `json:"profitAchievementRate"`
}

// PeriodComparison contrasts the report totals with the previous month.
type PeriodComparison struct {
	Month               string   `json:"month"`
	ShipmentCount       int      `json:"shipmentCount"`
	ActualRevenue       float64  `json:"actualRevenue"`
	ActualProfit        float64  `json:"actualProfit"`
	ShipmentCountChange *float64 `json:"shipmentCountChange"`
	RevenueChange       *float64 `json:"revenueChange"`
	ProfitChange        *float64 `json:"profitChange"`
}

// SalesReport is the list-mode response.
type SalesReport struct {
	Month      string            `json:"month"`
	Range      DateRange         `json:"range"`
	Filters    ReportFilters     `json:"filters"`
	Totals     SalesTotals       `json:"totals"`
	Sales      []SalesRow        `json:"sales"`
	Pagination Pagination        `json:"pagination"`
	Comparison *PeriodComparison `json:"comparison,omitempty"`
}

// SalesDetail is the drill-down response for one sales key.
type SalesDetail struct {
	Month                  string             `json:"month"`
	Range                  DateRange          `json:"range"`
	SalesKey               string             `json:"salesKey"`
	SalesName              string             `json:"salesName"`
	ShipmentCount          int                `json:"shipmentCount"`
	AmountBreakdown        map[string]float64 `json:"amountBreakdown"`
	PlannedRevenue         float64            `json:"plannedRevenue"`
	PlannedProfit          float64            `json:"plannedProfit"`
	ActualRevenue          float64            `json:"actualRevenue"`
	ActualProfit           float64            `json:"actualProfit"`
	RevenueAchievementRate *float64           `json:"revenueAchievementRate"`
	ProfitAchievementRate  *float64           `json:"profitAchievementRate"`
	Items                  []ShipmentItem     `json:"items"`
	Pagination             Pagination         `json:"pagination"`
}
