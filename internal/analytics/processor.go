// internal/analytics/processor.go
package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tuushin/crmsync/backend-go/internal/domain"
)

// accumulator collects everything known about one match key.
type accumulator struct {
	matchKey string
	planName string
	hasPlan  bool

	plannedRevenue decimal.Decimal
	plannedProfit  decimal.Decimal

	nameVotes      map[string]int
	shipmentCount  int
	categoryCounts map[domain.Category]int
	amounts        map[string]decimal.Decimal
	profitFx       map[string]decimal.Decimal
	profitMNT      decimal.Decimal
	first          *time.Time
	last           *time.Time

	salesManagers map[string]struct{}
	managers      map[string]struct{}
	unassigned    bool
}

func newAccumulator(matchKey string) *accumulator {
	return &accumulator{
		matchKey:       matchKey,
		nameVotes:      make(map[string]int),
		categoryCounts: make(map[domain.Category]int),
		amounts:        make(map[string]decimal.Decimal),
		profitFx:       make(map[string]decimal.Decimal),
		salesManagers:  make(map[string]struct{}),
		managers:       make(map[string]struct{}),
	}
}

func (a *accumulator) add(rec *domain.ShipmentRecord, who attribution) {
	a.shipmentCount++
	a.categoryCounts[rec.Category]++
	a.nameVotes[who.display]++

	currency := rec.Currency()
	if rec.TotalAmount.Valid {
		a.amounts[currency] = a.amounts[currency].Add(rec.TotalAmount.Decimal)
	}
	if rec.ProfitCurrency.Valid {
		a.profitFx[currency] = a.profitFx[currency].Add(rec.ProfitCurrency.Decimal)
	}
	if rec.ProfitMNT.Valid {
		a.profitMNT = a.profitMNT.Add(rec.ProfitMNT.Decimal)
	}

	at := rec.EventAt()
	if !at.IsZero() {
		if a.first == nil || at.Before(*a.first) {
			t := at
			a.first = &t
		}
		if a.last == nil || at.After(*a.last) {
			t := at
			a.last = &t
		}
	}

	switch {
	case who.unassigned:
		a.unassigned = true
	case who.salesManager != "":
		a.salesManagers[who.salesManager] = struct{}{}
	default:
		a.managers[who.manager] = struct{}{}
	}
}

func (a *accumulator) mergePlan(plan domain.SalesKpiMeasurement) {
	a.hasPlan = true
	a.plannedRevenue = a.plannedRevenue.Add(plan.PlannedRevenue)
	a.plannedProfit = a.plannedProfit.Add(plan.PlannedProfit)
	if a.planName == "" {
		a.planName = CollapseSpaces(plan.SalesName)
	}

	// A plan with no shipments still needs an identity that drill-down can resolve.
	if a.shipmentCount == 0 {
		if a.matchKey == UnassignedMatchKey {
			a.unassigned = true
		} else if a.planName != "" {
			a.salesManagers[a.planName] = struct{}{}
		}
	}
}

func (a *accumulator) displayName() string {
	if a.planName != "" {
		return a.planName
	}
	best, bestVotes := "", 0
	for name, votes := range a.nameVotes {
		if votes > bestVotes || (votes == bestVotes && name < best) {
			best, bestVotes = name, votes
		}
	}
	if best == "" {
		return domain.UnassignedSalesName
	}
	return best
}

func (a *accumulator) identity() domain.SalesIdentity {
	return domain.SalesIdentity{
		SalesManagers: setKeys(a.salesManagers),
		Managers:      setKeys(a.managers),
		Unassigned:    a.unassigned,
	}
}

func (a *accumulator) actualRevenue() decimal.Decimal {
	return sumValues(a.amounts)
}

func (a *accumulator) row() domain.SalesRow {
	revenue := a.actualRevenue()
	return domain.SalesRow{
		SalesKey:               EncodeSalesKey(a.identity()),
		SalesName:              a.displayName(),
		MatchKey:               a.matchKey,
		ShipmentCount:          a.shipmentCount,
		CategoryCounts:         copyCounts(a.categoryCounts),
		AmountBreakdown:        toFloats(a.amounts),
		ProfitFxBreakdown:      toFloats(a.profitFx),
		ActualRevenue:          revenue.InexactFloat64(),
		ActualProfit:           a.profitMNT.InexactFloat64(),
		PlannedRevenue:         a.plannedRevenue.InexactFloat64(),
		PlannedProfit:          a.plannedProfit.InexactFloat64(),
		RevenueAchievementRate: AchievementRate(revenue, a.plannedRevenue),
		ProfitAchievementRate:  AchievementRate(a.profitMNT, a.plannedProfit),
		HasPlan:                a.hasPlan,
		FirstShipmentAt:        a.first,
		LastShipmentAt:         a.last,
	}
}

// Aggregation is the outcome of Process: every row that survived the search,
// already sorted, plus totals over exactly those rows.
type Aggregation struct {
	Rows   []domain.SalesRow
	Totals domain.SalesTotals
}

// Processor groups shipments by sales identity and merges monthly plans.
type Processor struct{}

func NewProcessor() *Processor {
	return &Processor{}
}

// Process aggregates records, merges plans by match key, applies the
// case-insensitive name search and sorts the result. Totals cover the whole
// filtered set, not a page of it.
func (p *Processor) Process(records []domain.ShipmentRecord, plans []domain.SalesKpiMeasurement, search string) Aggregation {
	groups := make(map[string]*accumulator)
	get := func(key string) *accumulator {
		acc, ok := groups[key]
		if !ok {
			acc = newAccumulator(key)
			groups[key] = acc
		}
		return acc
	}

	for i := range records {
		rec := &records[i]
		who := attribute(rec)
		get(MatchKey(who.display)).add(rec, who)
	}

	for _, plan := range plans {
		key := plan.MatchKey
		if strings.TrimSpace(key) == "" {
			key = plan.SalesName
		}
		// Stored keys may predate the current folding rules.
		key = MatchKey(key)
		if key == "" {
			continue
		}
		get(key).mergePlan(plan)
	}

	needle := MatchKey(search)
	accs := make([]*accumulator, 0, len(groups))
	for _, acc := range groups {
		if needle != "" && !strings.Contains(MatchKey(acc.displayName()), needle) {
			continue
		}
		accs = append(accs, acc)
	}

	rows := make([]domain.SalesRow, 0, len(accs))
	for _, acc := range accs {
		rows = append(rows, acc.row())
	}
	SortRows(rows)

	return Aggregation{Rows: rows, Totals: totalsOf(accs)}
}

// SortRows orders rows by shipment count, then actual revenue, both descending,
// with the display name and match key as tie breakers.
func SortRows(rows []domain.SalesRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.ShipmentCount != b.ShipmentCount {
			return a.ShipmentCount > b.ShipmentCount
		}
		if a.ActualRevenue != b.ActualRevenue {
			return a.ActualRevenue > b.ActualRevenue
		}
		if a.SalesName != b.SalesName {
			return a.SalesName < b.SalesName
		}
		return a.MatchKey < b.MatchKey
	})
}

func totalsOf(accs []*accumulator) domain.SalesTotals {
	var (
		shipments      int
		categories     = make(map[domain.Category]int)
		amounts        = make(map[string]decimal.Decimal)
		profitFx       = make(map[string]decimal.Decimal)
		profitMNT      decimal.Decimal
		plannedRevenue decimal.Decimal
		plannedProfit  decimal.Decimal
	)
	for _, acc := range accs {
		shipments += acc.shipmentCount
		for c, n := range acc.categoryCounts {
			categories[c] += n
		}
		for cur, v := range acc.amounts {
			amounts[cur] = amounts[cur].Add(v)
		}
		for cur, v := range acc.profitFx {
			profitFx[cur] = profitFx[cur].Add(v)
		}
		profitMNT = profitMNT.Add(acc.profitMNT)
		plannedRevenue = plannedRevenue.Add(acc.plannedRevenue)
		plannedProfit = plannedProfit.Add(acc.plannedProfit)
	}

	revenue := sumValues(amounts)
	return domain.SalesTotals{
		SalesCount:             len(accs),
		ShipmentCount:          shipments,
		CategoryCounts:         categories,
		AmountBreakdown:        toFloats(amounts),
		ProfitFxBreakdown:      toFloats(profitFx),
		ActualRevenue:          revenue.InexactFloat64(),
		ActualProfit:           profitMNT.InexactFloat64(),
		PlannedRevenue:         plannedRevenue.InexactFloat64(),
		PlannedProfit:          plannedProfit.InexactFloat64(),
		RevenueAchievementRate: AchievementRate(revenue, plannedRevenue),
		ProfitAchievementRate:  AchievementRate(profitMNT, plannedProfit),
	}
}

// SumAmounts adds per-currency amounts without FX conversion.
func SumAmounts(amounts map[string]decimal.Decimal) decimal.Decimal {
	return sumValues(amounts)
}

func sumValues(values map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// ToFloats renders a per-currency breakdown for JSON output.
func ToFloats(values map[string]decimal.Decimal) map[string]float64 {
	return toFloats(values)
}

func toFloats(values map[string]decimal.Decimal) map[string]float64 {
	out := make(map[string]float64, len(values))
	for k, v := range values {
		out[k] = v.InexactFloat64()
	}
	return out
}

func copyCounts(in map[domain.Category]int) map[domain.Category]int {
	out := make(map[domain.Category]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func setKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
