package analytics

import (
	"strings"

	"github.com/tuushin/crmsync/backend-go/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// CollapseSpaces trims s and reduces every internal whitespace run to one space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// MatchKey folds a display name into its grouping key. Names that differ only
// in case, width or whitespace share a key.
func MatchKey(name string) string {
	collapsed := CollapseSpaces(name)
	if collapsed == "" {
		return ""
	}
	// cases.Caser is stateful, so one per call.
	return cases.Fold().String(norm.NFKC.String(collapsed))
}

// UnassignedMatchKey is the grouping key of shipments without any attribution.
var UnassignedMatchKey = MatchKey(domain.UnassignedSalesName)

// attribution is the identity a single shipment contributes to.
type attribution struct {
	display      string
	salesManager string
	manager      string
	unassigned   bool
}

// attribute prefers sales_manager, then manager, then the unassigned identity.
// The raw values are kept verbatim so drill-down can match them exactly.
func attribute(rec *domain.ShipmentRecord) attribution {
	if rec.SalesManager != nil {
		if name := CollapseSpaces(*rec.SalesManager); name != "" {
			return attribution{display: name, salesManager: *rec.SalesManager}
		}
	}
	if rec.Manager != nil {
		if name := CollapseSpaces(*rec.Manager); name != "" {
			return attribution{display: name, manager: *rec.Manager}
		}
	}
	return attribution{display: domain.UnassignedSalesName, unassigned: true}
}
