package postgres

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/tuushin/crmsync/backend-go/internal/domain"
)

// buildShipmentFilterClause constructs the window/category/filter predicate.
// A shipment is in the window when any of its four lifecycle timestamps is.
func buildShipmentFilterClause(filter domain.ShipmentFilter, alias string, startIndex int) (string, []interface{}, int) {
	a := normalizeAlias(alias)
	idx := startIndex

	from, to := idx, idx+1
	args := []interface{}{filter.From, filter.To}
	idx += 2

	var windows []string
	for _, col := range []string{"synced_at", "registered_at", "arrival_at", "transit_entry_at"} {
		windows = append(windows, fmt.Sprintf("(%[1]s%[2]s >= $%[3]d AND %[1]s%[2]s < $%[4]d)", a, col, from, to))
	}
	clauses := []string{"(" + strings.Join(windows, " OR ") + ")"}

	if len(filter.Categories) > 0 {
		categories := make([]string, len(filter.Categories))
		for i, c := range filter.Categories {
			categories[i] = string(c)
		}
		clauses = append(clauses, fmt.Sprintf("%scategory = ANY($%d::text[])", a, idx))
		args = append(args, pq.Array(categories))
		idx++
	}

	if len(filter.FilterTypes) > 0 {
		types := make([]int64, len(filter.FilterTypes))
		for i, t := range filter.FilterTypes {
			types[i] = int64(t)
		}
		clauses = append(clauses, fmt.Sprintf("%sfilter_type = ANY($%d::int[])", a, idx))
		args = append(args, pq.Array(types))
		idx++
	}

	return strings.Join(clauses, " AND "), args, idx
}

// buildIdentityClause mirrors the grouping rule: sales_manager wins when set,
// manager only counts when sales_manager is blank.
func buildIdentityClause(identity domain.SalesIdentity, alias string, startIndex int) (string, []interface{}, int) {
	a := normalizeAlias(alias)
	idx := startIndex
	blankSales := fmt.Sprintf("COALESCE(BTRIM(%ssales_manager), '') = ''", a)
	blankManager := fmt.Sprintf("COALESCE(BTRIM(%smanager), '') = ''", a)

	var (
		parts []string
		args  []interface{}
	)

	if len(identity.SalesManagers) > 0 {
		parts = append(parts, fmt.Sprintf("%ssales_manager = ANY($%d::text[])", a, idx))
		args = append(args, pq.Array(identity.SalesManagers))
		idx++
	}

	if len(identity.Managers) > 0 {
		parts = append(parts, fmt.Sprintf("(%s AND %smanager = ANY($%d::text[]))", blankSales, a, idx))
		args = append(args, pq.Array(identity.Managers))
		idx++
	}

	if identity.Unassigned {
		parts = append(parts, fmt.Sprintf("(%s AND %s)", blankSales, blankManager))
	}

	if len(parts) == 0 {
		return "FALSE", nil, idx
	}

	return "(" + strings.Join(parts, " OR ") + ")", args, idx
}

func normalizeAlias(alias string) string {
	if alias == "" {
		return ""
	}
	if !strings.HasSuffix(alias, ".") {
		return alias + "."
	}
	return alias
}
