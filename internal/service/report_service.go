package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tuushin/crmsync/backend-go/internal/analytics"
	"github.com/tuushin/crmsync/backend-go/internal/cache"
	"github.com/tuushin/crmsync/backend-go/internal/domain"
	"github.com/tuushin/crmsync/backend-go/internal/repository"
)

// reportWindow is a resolved report period. Start and End are calendar days;
// Month is the first day of the month whose plans apply.
type reportWindow struct {
	Month time.Time
	Start time.Time
	End   time.Time
}

func (w reportWindow) dateRange() domain.DateRange {
	return domain.DateRange{
		Start: w.Start.Format(domain.DateLayout),
		End:   w.End.Format(domain.DateLayout),
	}
}

func (w reportWindow) filter(categories []domain.Category, filterTypes []int) domain.ShipmentFilter {
	return domain.ShipmentFilter{
		From:        w.Start,
		To:          w.End.AddDate(0, 0, 1),
		Categories:  categories,
		FilterTypes: filterTypes,
	}
}

type ReportService struct {
	shipments repository.ShipmentRepository
	kpis      repository.KPIRepository
	cache     cache.ReportCache
	processor *analytics.Processor
	loc       *time.Location
	now       func() time.Time
}

func NewReportService(shipments repository.ShipmentRepository, kpis repository.KPIRepository, cacheImpl cache.ReportCache, loc *time.Location) *ReportService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopReportCache()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{
		shipments: shipments,
		kpis:      kpis,
		cache:     cacheImpl,
		processor: analytics.NewProcessor(),
		loc:       loc,
		now:       time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (s *ReportService) WithClock(now func() time.Time) *ReportService {
	s.now = now
	return s
}

// resolveWindow turns month/start/end into a calendar window. With nothing
// given the current month is used; month and start/end are mutually exclusive.
func (s *ReportService) resolveWindow(q domain.ReportQuery) (reportWindow, error) {
	month := strings.TrimSpace(q.Month)
	start := strings.TrimSpace(q.Start)
	end := strings.TrimSpace(q.End)

	if month != "" && (start != "" || end != "") {
		return reportWindow{}, invalid("month", "month cannot be combined with start/end")
	}

	if month != "" {
		first, err := time.ParseInLocation(domain.MonthLayout, month, s.loc)
		if err != nil {
			return reportWindow{}, invalid("month", "expected YYYY-MM, got %q", month)
		}
		return monthWindow(first), nil
	}

	if start == "" && end == "" {
		now := s.now().In(s.loc)
		return monthWindow(time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)), nil
	}
	if start == "" || end == "" {
		return reportWindow{}, invalid("start", "start and end must be provided together")
	}

	from, err := time.ParseInLocation(domain.DateLayout, start, s.loc)
	if err != nil {
		return reportWindow{}, invalid("start", "expected YYYY-MM-DD, got %q", start)
	}
	to, err := time.ParseInLocation(domain.DateLayout, end, s.loc)
	if err != nil {
		return reportWindow{}, invalid("end", "expected YYYY-MM-DD, got %q", end)
	}
	if to.Before(from) {
		return reportWindow{}, invalid("end", "end %s is before start %s", end, start)
	}

	return reportWindow{
		Month: time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, s.loc),
		Start: from,
		End:   to,
	}, nil
}

func monthWindow(first time.Time) reportWindow {
	return reportWindow{
		Month: first,
		Start: first,
		End:   first.AddDate(0, 1, -1),
	}
}

// ListReport aggregates the window by sales identity and returns one page of rows.
func (s *ReportService) ListReport(ctx context.Context, q domain.ReportQuery) (*domain.SalesReport, error) {
	window, err := s.resolveWindow(q)
	if err != nil {
		return nil, err
	}

	filters := domain.ReportFilters{
		Categories:  nonNilCategories(q.Categories),
		FilterTypes: nonNilInts(q.FilterTypes),
		Search:      strings.TrimSpace(q.Search),
	}
	monthLabel := window.Month.Format(domain.MonthLayout)

	key := cache.BuildReportKey(monthLabel, window.dateRange(), filters, q.Page, q.PageSize)
	if report, ok, err := s.cache.GetReport(ctx, key); err == nil && ok {
		return report, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("sales report: cache get failed")
	}

	records, err := s.shipments.ListInWindow(ctx, window.filter(q.Categories, q.FilterTypes))
	if err != nil {
		return nil, err
	}
	plans, err := s.kpis.ListByMonth(ctx, window.Month)
	if err != nil {
		return nil, err
	}

	agg := s.processor.Process(records, plans, filters.Search)
	pagination, from, to := analytics.Paginate(len(agg.Rows), q.Page, q.PageSize)

	report := &domain.SalesReport{
		Month:      monthLabel,
		Range:      window.dateRange(),
		Filters:    filters,
		Totals:     agg.Totals,
		Sales:      agg.Rows[from:to],
		Pagination: pagination,
	}

	comparison, err := s.previousMonth(ctx, window, q, agg.Totals)
	if err != nil {
		log.Warn().Err(err).Msg("sales report: previous month comparison failed")
	} else {
		report.Comparison = comparison
	}

	if err := s.cache.SetReport(ctx, key, report); err != nil {
		log.Warn().Err(err).Msg("sales report: cache set failed")
	}

	return report, nil
}

// previousMonth totals the month before the report month under the same filters.
func (s *ReportService) previousMonth(ctx context.Context, window reportWindow, q domain.ReportQuery, current domain.SalesTotals) (*domain.PeriodComparison, error) {
	prev := monthWindow(window.Month.AddDate(0, -1, 0))

	records, err := s.shipments.ListInWindow(ctx, prev.filter(q.Categories, q.FilterTypes))
	if err != nil {
		return nil, err
	}
	totals := s.processor.Process(records, nil, strings.TrimSpace(q.Search)).Totals

	return &domain.PeriodComparison{
		Month:         prev.Month.Format(domain.MonthLayout),
		ShipmentCount: totals.ShipmentCount,
		ActualRevenue: totals.ActualRevenue,
		ActualProfit:  totals.ActualProfit,
		ShipmentCountChange: analytics.ChangeRatio(
			decimal.NewFromInt(int64(current.ShipmentCount)), decimal.NewFromInt(int64(totals.ShipmentCount))),
		RevenueChange: analytics.ChangeRatio(
			decimal.NewFromFloat(current.ActualRevenue), decimal.NewFromFloat(totals.ActualRevenue)),
		ProfitChange: analytics.ChangeRatio(
			decimal.NewFromFloat(current.ActualProfit), decimal.NewFromFloat(totals.ActualProfit)),
	}, nil
}

// Detail resolves a sales key to its shipments in the window, newest synced first.
func (s *ReportService) Detail(ctx context.Context, q domain.ReportQuery) (*domain.SalesDetail, error) {
	identity, err := analytics.DecodeSalesKey(q.SalesKey)
	if err != nil {
		return nil, err
	}
	window, err := s.resolveWindow(q)
	if err != nil {
		return nil, err
	}

	detail := &domain.SalesDetail{
		Month:           window.Month.Format(domain.MonthLayout),
		Range:           window.dateRange(),
		SalesKey:        q.SalesKey,
		SalesName:       analytics.CollapseSpaces(identity.DisplayName()),
		AmountBreakdown: map[string]float64{},
		Items:           []domain.ShipmentItem{},
	}

	plans, err := s.kpis.ListByMonth(ctx, window.Month)
	if err != nil {
		return nil, err
	}
	matchKey := identityMatchKey(identity)
	plannedRevenue, plannedProfit := decimal.Zero, decimal.Zero
	for _, plan := range plans {
		key := plan.MatchKey
		if strings.TrimSpace(key) == "" {
			key = plan.SalesName
		}
		if matchKey == "" || analytics.MatchKey(key) != matchKey {
			continue
		}
		plannedRevenue = plannedRevenue.Add(plan.PlannedRevenue)
		plannedProfit = plannedProfit.Add(plan.PlannedProfit)
		if name := analytics.CollapseSpaces(plan.SalesName); name != "" {
			detail.SalesName = name
		}
	}
	detail.PlannedRevenue = plannedRevenue.InexactFloat64()
	detail.PlannedProfit = plannedProfit.InexactFloat64()

	// A key that selects nothing must never widen into the whole table.
	if identity.Empty() {
		detail.Pagination, _, _ = analytics.Paginate(0, 1, q.PageSize)
		detail.RevenueAchievementRate = analytics.AchievementRate(decimal.Zero, plannedRevenue)
		detail.ProfitAchievementRate = analytics.AchievementRate(decimal.Zero, plannedProfit)
		return detail, nil
	}

	filter := window.filter(q.Categories, q.FilterTypes)
	summary, err := s.shipments.SummarizeBySalesIdentity(ctx, filter, identity)
	if err != nil {
		return nil, err
	}

	actualRevenue := analytics.SumAmounts(summary.AmountByCurrency)
	detail.ShipmentCount = summary.ShipmentCount
	detail.AmountBreakdown = analytics.ToFloats(summary.AmountByCurrency)
	detail.ActualRevenue = actualRevenue.InexactFloat64()
	detail.ActualProfit = summary.ProfitMNT.InexactFloat64()
	detail.RevenueAchievementRate = analytics.AchievementRate(actualRevenue, plannedRevenue)
	detail.ProfitAchievementRate = analytics.AchievementRate(summary.ProfitMNT, plannedProfit)

	pagination, offset, _ := analytics.Paginate(summary.ShipmentCount, q.Page, q.PageSize)
	detail.Pagination = pagination
	if summary.ShipmentCount == 0 {
		return detail, nil
	}

	records, err := s.shipments.FindBySalesIdentity(ctx, filter, identity, pagination.PageSize, offset)
	if err != nil {
		return nil, err
	}
	for i := range records {
		detail.Items = append(detail.Items, records[i].Item())
	}
	return detail, nil
}

// identityMatchKey returns the grouping key shared by every value of the identity.
func identityMatchKey(identity domain.SalesIdentity) string {
	switch {
	case len(identity.SalesManagers) > 0:
		return analytics.MatchKey(identity.SalesManagers[0])
	case len(identity.Managers) > 0:
		return analytics.MatchKey(identity.Managers[0])
	case identity.Unassigned:
		return analytics.UnassignedMatchKey
	default:
		return ""
	}
}

func nonNilCategories(in []domain.Category) []domain.Category {
	if in == nil {
		return []domain.Category{}
	}
	return in
}

func nonNilInts(in []int) []int {
	if in == nil {
		return []int{}
	}
	return in
}
