package domain

import "github.com/shopspring/decimal"

// UnassignedSalesName is the identity used when neither attribution field is set.
const UnassignedSalesName = "Unassigned"

// SalesIdentity records exactly which raw attribution values were folded into
// one aggregated row. Rows match when SalesManager is one of SalesManagers,
// or SalesManager is blank and Manager is one of Managers, or (Unassigned) both are blank.
type SalesIdentity struct {
	SalesManagers []string
	Managers      []string
	Unassigned    bool
}

// Empty reports whether the identity matches no rows at all.
func (s SalesIdentity) Empty() bool {
	return len(s.SalesManagers) == 0 && len(s.Managers) == 0 && !s.Unassigned
}

// DisplayName picks a name for an identity with no aggregated context.
func (s SalesIdentity) DisplayName() string {
	switch {
	case len(s.SalesManagers) > 0:
		return s.SalesManagers[0]
	case len(s.Managers) > 0:
		return s.Managers[0]
	default:
		return UnassignedSalesName
	}
}

// IdentitySummary holds unpaginated totals for one sales identity.
type IdentitySummary struct {
	ShipmentCount    int
	AmountByCurrency map[string]decimal.Decimal
	ProfitMNT        decimal.Decimal
}
