package pipeline

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tuushin/crmsync/backend-go/internal/crm"
	"github.com/tuushin/crmsync/backend-go/internal/domain"
)

// fieldMapping lists, per canonical field, the upstream keys to try in order.
// The first key holding a usable value wins, which is how category-specific
// fallbacks (e.g. arrival -> registration date) are expressed.
type fieldMapping struct {
	ExternalID      []string
	Number          []string
	ContainerNumber []string
	CustomerName    []string
	RegisteredAt    []string
	ArrivalAt       []string
	TransitEntryAt  []string
	CurrencyCode    []string
	TotalAmount     []string
	ProfitMNT       []string
	ProfitCurrency  []string
	SalesManager    []string
	Manager         []string
}

var baseMapping = fieldMapping{
	ExternalID:      []string{"id", "uuid", "_id"},
	Number:          []string{"number", "code", "shipment_number"},
	ContainerNumber: []string{"container_number", "container_no", "container"},
	CustomerName:    []string{"customer_name", "customer", "client_name"},
	RegisteredAt:    []string{"registered_date", "registration_date", "created_at"},
	CurrencyCode:    []string{"currency", "currency_code"},
	TotalAmount:     []string{"total_amount", "amount", "total"},
	ProfitMNT:       []string{"profit_mnt", "profit"},
	ProfitCurrency:  []string{"profit_currency", "profit_cur", "profit_fx"},
	SalesManager:    []string{"sales_manager", "sales_manager_name", "sales"},
	Manager:         []string{"manager", "manager_name", "responsible"},
}

func withDates(arrival, transitEntry []string) fieldMapping {
	m := baseMapping
	m.ArrivalAt = arrival
	m.TransitEntryAt = transitEntry
	return m
}

var fieldMappings = map[domain.Category]fieldMapping{
	domain.CategoryImport: withDates(
		[]string{"arrived_ub_date", "registered_date", "registration_date"},
		[]string{"transit_entry_date", "entry_date"},
	),
	domain.CategoryTransit: withDates(
		[]string{"entry_date", "registered_date", "registration_date"},
		[]string{"entry_date", "transit_entry_date"},
	),
	domain.CategoryExport: withDates(
		[]string{"transited_date", "registered_date", "registration_date"},
		[]string{"transit_entry_date", "transited_date"},
	),
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"2006.01.02",
}

// IDGenerator supplies identifiers for upstream records that carry none.
type IDGenerator interface {
	NewID() string
}

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func() string

func (f IDGeneratorFunc) NewID() string { return f() }

// UUIDGenerator generates random v4 identifiers.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return "gen-" + uuid.NewString() }

// Normalizer maps raw upstream records onto canonical shipment records.
// Malformed numbers and dates degrade to NULL instead of failing.
type Normalizer struct {
	Location         *time.Location
	IDs              IDGenerator
	KeepUnidentified bool
}

// NewNormalizer creates a Normalizer; a nil location means UTC and a nil generator means UUIDGenerator.
func NewNormalizer(loc *time.Location, ids IDGenerator, keepUnidentified bool) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	if ids == nil {
		ids = UUIDGenerator{}
	}
	return &Normalizer{Location: loc, IDs: ids, KeepUnidentified: keepUnidentified}
}

// Normalize converts one raw record. identified is false when the record had no
// upstream identifier; rec is then nil unless KeepUnidentified is set, in which
// case it carries a generated ExternalID.
func (n *Normalizer) Normalize(category domain.Category, filterType int, raw crm.RawRecord) (rec *domain.ShipmentRecord, identified bool) {
	m, ok := fieldMappings[category]
	if !ok {
		m = baseMapping
	}
	fields := raw.Fields

	externalID := lookupString(fields, m.ExternalID)
	identified = externalID != ""
	if !identified {
		if !n.KeepUnidentified {
			return nil, false
		}
		externalID = n.IDs.NewID()
	}

	ft := filterType
	rec = &domain.ShipmentRecord{
		ExternalID:      externalID,
		Category:        category,
		FilterType:      &ft,
		Number:          optionalString(lookupString(fields, m.Number)),
		ContainerNumber: optionalString(lookupString(fields, m.ContainerNumber)),
		CustomerName:    optionalString(lookupString(fields, m.CustomerName)),
		RegisteredAt:    n.lookupTime(fields, m.RegisteredAt),
		ArrivalAt:       n.lookupTime(fields, m.ArrivalAt),
		TransitEntryAt:  n.lookupTime(fields, m.TransitEntryAt),
		CurrencyCode:    optionalString(strings.ToUpper(lookupString(fields, m.CurrencyCode))),
		TotalAmount:     lookupDecimal(fields, m.TotalAmount),
		ProfitMNT:       lookupDecimal(fields, m.ProfitMNT),
		ProfitCurrency:  lookupDecimal(fields, m.ProfitCurrency),
		SalesManager:    optionalString(lookupString(fields, m.SalesManager)),
		Manager:         optionalString(lookupString(fields, m.Manager)),
		Raw:             rawPayload(raw),
	}
	return rec, identified
}

func rawPayload(raw crm.RawRecord) json.RawMessage {
	if len(raw.Body) > 0 && json.Valid(raw.Body) {
		return raw.Body
	}
	if raw.Fields != nil {
		if b, err := json.Marshal(raw.Fields); err == nil {
			return b
		}
	}
	return json.RawMessage("null")
}

func lookupString(fields map[string]any, keys []string) string {
	for _, key := range keys {
		if s := stringValue(fields[key]); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return ""
	case map[string]any:
		// Some endpoints embed people as {"id": .., "name": ..}.
		return stringValue(t["name"])
	default:
		return ""
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func lookupDecimal(fields map[string]any, keys []string) decimal.NullDecimal {
	for _, key := range keys {
		if d := ParseDecimal(fields[key]); d.Valid {
			return d
		}
	}
	return decimal.NullDecimal{}
}

// ParseDecimal parses numbers and numeric strings, stripping thousands separators
// and whitespace. Anything unparsable yields an invalid (NULL) value.
func ParseDecimal(v any) decimal.NullDecimal {
	var text string
	switch t := v.(type) {
	case json.Number:
		text = t.String()
	case float64:
		return decimal.NewNullDecimal(decimal.NewFromFloat(t))
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(t)))
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(t))
	case string:
		text = t
	default:
		return decimal.NullDecimal{}
	}

	text = strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	if text == "" {
		return decimal.NullDecimal{}
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func (n *Normalizer) lookupTime(fields map[string]any, keys []string) *time.Time {
	for _, key := range keys {
		if t := ParseDate(stringValue(fields[key]), n.Location); t != nil {
			return t
		}
	}
	return nil
}

// ParseDate parses the date formats the CRM is known to emit. Invalid dates
// (including zero dates such as 0000-00-00) yield nil.
func ParseDate(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		if t.Year() < 1900 {
			return nil
		}
		return &t
	}
	return nil
}
