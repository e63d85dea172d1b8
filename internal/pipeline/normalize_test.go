package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuushin/crmsync/backend-go/internal/crm"
	"github.com/tuushin/crmsync/backend-go/internal/domain"
)

func rawRecord(t *testing.T, body string) crm.RawRecord {
	t.Helper()
	var fields map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &fields))
	return crm.RawRecord{Fields: fields, Body: json.RawMessage(body)}
}

func TestNormalizer_Normalize(t *testing.T) {
	n := NewNormalizer(time.UTC, IDGeneratorFunc(func() string { return "gen-1" }), false)

	t.Run("maps import fields", func(t *testing.T) {
		raw := rawRecord(t, `{
			"id": 42,
			"number": "IMP-1",
			"container_number": "MSKU123",
			"customer_name": "Tuushin LLC",
			"registered_date": "2024-01-05",
			"arrived_ub_date": "2024-01-20 10:30:00",
			"currency": "usd",
			"total_amount": "1 250.50",
			"profit_mnt": "12,000",
			"profit_currency": 300,
			"sales_manager": "B. Bat",
			"manager": {"id": 7, "name": "D. Dorj"}
		}`)

		rec, identified := n.Normalize(domain.CategoryImport, 1, raw)
		require.True(t, identified)
		require.NotNil(t, rec)

		assert.Equal(t, "42", rec.ExternalID)
		assert.Equal(t, domain.CategoryImport, rec.Category)
		assert.Equal(t, 1, *rec.FilterType)
		assert.Equal(t, "IMP-1", *rec.Number)
		assert.Equal(t, "MSKU123", *rec.ContainerNumber)
		assert.Equal(t, "USD", *rec.CurrencyCode)
		assert.Equal(t, "1250.5", rec.TotalAmount.Decimal.String())
		assert.Equal(t, "12000", rec.ProfitMNT.Decimal.String())
		assert.Equal(t, "300", rec.ProfitCurrency.Decimal.String())
		assert.Equal(t, "B. Bat", *rec.SalesManager)
		assert.Equal(t, "D. Dorj", *rec.Manager)
		assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), *rec.RegisteredAt)
		assert.Equal(t, time.Date(2024, 1, 20, 10, 30, 0, 0, time.UTC), *rec.ArrivalAt)
		assert.JSONEq(t, string(raw.Body), string(rec.Raw))
	})

	t.Run("arrival falls back to registration date per category", func(t *testing.T) {
		raw := rawRecord(t, `{"id":"x","registered_date":"2024-02-01"}`)
		for _, category := range domain.Categories {
			rec, _ := n.Normalize(category, 2, raw)
			require.NotNil(t, rec)
			require.NotNil(t, rec.ArrivalAt, category)
			assert.Equal(t, "2024-02-01", rec.ArrivalAt.Format(domain.DateLayout))
		}
	})

	t.Run("category specific arrival sources", func(t *testing.T) {
		raw := rawRecord(t, `{"id":"x","registered_date":"2024-02-01","entry_date":"2024-02-10","transited_date":"2024-02-15","arrived_ub_date":"2024-02-20"}`)

		rec, _ := n.Normalize(domain.CategoryTransit, 1, raw)
		assert.Equal(t, "2024-02-10", rec.ArrivalAt.Format(domain.DateLayout))

		rec, _ = n.Normalize(domain.CategoryExport, 1, raw)
		assert.Equal(t, "2024-02-15", rec.ArrivalAt.Format(domain.DateLayout))

		rec, _ = n.Normalize(domain.CategoryImport, 1, raw)
		assert.Equal(t, "2024-02-20", rec.ArrivalAt.Format(domain.DateLayout))
	})

	t.Run("malformed values degrade to null", func(t *testing.T) {
		raw := rawRecord(t, `{"id":"bad","total_amount":"n/a","profit_mnt":"","registered_date":"0000-00-00","arrived_ub_date":"yesterday"}`)

		rec, identified := n.Normalize(domain.CategoryImport, 1, raw)
		require.True(t, identified)
		assert.False(t, rec.TotalAmount.Valid)
		assert.False(t, rec.ProfitMNT.Valid)
		assert.Nil(t, rec.RegisteredAt)
		assert.Nil(t, rec.ArrivalAt)
		assert.Nil(t, rec.CurrencyCode)
		assert.Equal(t, domain.DefaultCurrency, rec.Currency())
	})

	t.Run("records without id are skipped", func(t *testing.T) {
		rec, identified := n.Normalize(domain.CategoryImport, 1, rawRecord(t, `{"number":"X"}`))
		assert.False(t, identified)
		assert.Nil(t, rec)
	})

	t.Run("records without id can be kept under a generated id", func(t *testing.T) {
		keep := NewNormalizer(time.UTC, IDGeneratorFunc(func() string { return "gen-fixed" }), true)
		rec, identified := keep.Normalize(domain.CategoryImport, 1, rawRecord(t, `{"number":"X"}`))
		assert.False(t, identified)
		require.NotNil(t, rec)
		assert.Equal(t, "gen-fixed", rec.ExternalID)
	})
}

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		in    any
		want  string
		valid bool
	}{
		{"1,234,567.89", "1234567.89", true},
		{" 42 ", "42", true},
		{"1 000", "1000", true},
		{json.Number("12.5"), "12.5", true},
		{float64(3), "3", true},
		{"abc", "", false},
		{"", "", false},
		{nil, "", false},
		{true, "", false},
	}

	for _, tc := range cases {
		got := ParseDecimal(tc.in)
		assert.Equal(t, tc.valid, got.Valid, "%v", tc.in)
		if tc.valid {
			assert.Equal(t, tc.want, got.Decimal.String(), "%v", tc.in)
		}
	}
}

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("UB", 8*3600)

	got := ParseDate("2024-03-01", loc)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, loc), *got)

	got = ParseDate("2024-03-01T04:05:06Z", loc)
	require.NotNil(t, got)
	assert.Equal(t, 4, got.UTC().Hour())

	assert.Nil(t, ParseDate("", loc))
	assert.Nil(t, ParseDate("2024-13-45", loc))
	assert.Nil(t, ParseDate("0000-00-00 00:00:00", loc))
}
