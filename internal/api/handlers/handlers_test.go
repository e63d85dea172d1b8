package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuushin/crmsync/backend-go/internal/analytics"
	"github.com/tuushin/crmsync/backend-go/internal/crm"
	"github.com/tuushin/crmsync/backend-go/internal/domain"
	"github.com/tuushin/crmsync/backend-go/internal/pipeline"
	"github.com/tuushin/crmsync/backend-go/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSyncService struct {
	result *domain.SyncBatchResult
	err    error
	got    domain.SyncRequest
	calls  int
	limit  int
}

func (f *fakeSyncService) Sync(ctx context.Context, req domain.SyncRequest) (*domain.SyncBatchResult, error) {
	f.calls++
	f.got = req
	return f.result, f.err
}

func (f *fakeSyncService) ListLogs(ctx context.Context, limit int) ([]domain.SyncLogView, error) {
	f.limit = limit
	return []domain.SyncLogView{{ID: 1, Category: domain.CategoryImport, Status: domain.SyncStatusSuccess}}, nil
}

type fakeReportService struct {
	report *domain.SalesReport
	detail *domain.SalesDetail
	err    error
	got    domain.ReportQuery
	mode   string
}

func (f *fakeReportService) ListReport(ctx context.Context, q domain.ReportQuery) (*domain.SalesReport, error) {
	f.mode, f.got = "list", q
	return f.report, f.err
}

func (f *fakeReportService) Detail(ctx context.Context, q domain.ReportQuery) (*domain.SalesDetail, error) {
	f.mode, f.got = "detail", q
	return f.detail, f.err
}

func newTestRouter(syncSvc SyncService, reportSvc ReportService) *gin.Engine {
	r := gin.New()
	syncHandler := NewSyncHandler(syncSvc, time.UTC)
	r.POST("/sync", syncHandler.TriggerSync)
	r.GET("/sync/logs", syncHandler.ListLogs)
	r.GET("/sales-report", NewReportHandler(reportSvc).GetSalesReport)
	return r
}

func perform(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestTriggerSync(t *testing.T) {
	t.Run("single category answers with the run", func(t *testing.T) {
		svc := &fakeSyncService{result: &domain.SyncBatchResult{Runs: []domain.SyncRunResult{
			{LogID: 9, Category: domain.CategoryImport, FilterType: 1, FilterTypes: []int{1}, RecordCount: 6},
		}}}
		r := newTestRouter(svc, &fakeReportService{})

		w := perform(r, http.MethodPost, "/sync", `{"category":"import","beginDate":"2024-01-01","endDate":"2024-01-31","filterTypes":[1]}`)
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, float64(9), body["logId"])
		assert.Equal(t, float64(6), body["recordCount"])
		assert.NotContains(t, body, "summary")

		assert.Equal(t, []domain.Category{domain.CategoryImport}, svc.got.Categories)
		assert.Equal(t, []int{1}, svc.got.FilterTypes)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), svc.got.From)
		assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), svc.got.To)
	})

	t.Run("empty body syncs every category", func(t *testing.T) {
		svc := &fakeSyncService{result: &domain.SyncBatchResult{
			Runs:    make([]domain.SyncRunResult, 6),
			Summary: domain.SyncSummary{Runs: 6},
		}}
		r := newTestRouter(svc, &fakeReportService{})

		w := perform(r, http.MethodPost, "/sync", "")
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Len(t, body["runs"], 6)
		assert.Contains(t, body, "summary")
		assert.Equal(t, domain.Categories, svc.got.Categories)
		assert.True(t, svc.got.From.IsZero())
	})

	badRequests := map[string]string{
		"unknown category": `{"category":"AIR"}`,
		"malformed date":   `{"beginDate":"01/02/2024"}`,
		"negative filter":  `{"filterTypes":[-1]}`,
		"not json":         `{`,
	}
	for name, payload := range badRequests {
		t.Run(name, func(t *testing.T) {
			svc := &fakeSyncService{}
			w := perform(newTestRouter(svc, &fakeReportService{}), http.MethodPost, "/sync", payload)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Zero(t, svc.calls)
		})
	}

	errorCases := []struct {
		name   string
		err    error
		status int
	}{
		{"missing credentials", crm.ErrMissingCredentials, http.StatusInternalServerError},
		{"upstream failure", &crm.HTTPError{Method: "GET", URL: "http://crm/api", StatusCode: 503, Body: "down"}, http.StatusBadGateway},
		{"rejected window", fmt.Errorf("%w: begin after end", pipeline.ErrInvalidRequest), http.StatusBadRequest},
		{"database failure", errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeSyncService{err: tc.err, result: &domain.SyncBatchResult{}}
			w := perform(newTestRouter(svc, &fakeReportService{}), http.MethodPost, "/sync", `{"category":"EXPORT"}`)
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, decodeBody(t, w), "error")
		})
	}

	t.Run("missing credentials message", func(t *testing.T) {
		svc := &fakeSyncService{err: crm.ErrMissingCredentials}
		w := perform(newTestRouter(svc, &fakeReportService{}), http.MethodPost, "/sync", "")
		assert.Equal(t, "crm credentials are not configured", decodeBody(t, w)["error"])
	})
}

func TestListLogs(t *testing.T) {
	svc := &fakeSyncService{}
	r := newTestRouter(svc, &fakeReportService{})

	w := perform(r, http.MethodGet, "/sync/logs?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, svc.limit)
	assert.Len(t, decodeBody(t, w)["logs"], 1)

	perform(r, http.MethodGet, "/sync/logs?limit=abc", "")
	assert.Equal(t, 20, svc.limit)
}

func TestGetSalesReport(t *testing.T) {
	t.Run("list mode parses filters", func(t *testing.T) {
		svc := &fakeReportService{report: &domain.SalesReport{Month: "2024-01", Sales: []domain.SalesRow{}}}
		r := newTestRouter(&fakeSyncService{}, svc)

		w := perform(r, http.MethodGet, "/sales-report?month=2024-01&categories=import,transit&categories=IMPORT&filterTypes=2,1,2&search=bat&page=3&pageSize=50", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "list", svc.mode)
		assert.Equal(t, "2024-01", svc.got.Month)
		assert.Equal(t, []domain.Category{domain.CategoryImport, domain.CategoryTransit}, svc.got.Categories)
		assert.Equal(t, []int{2, 1}, svc.got.FilterTypes)
		assert.Equal(t, "bat", svc.got.Search)
		assert.Equal(t, 3, svc.got.Page)
		assert.Equal(t, 50, svc.got.PageSize)
	})

	t.Run("defaults", func(t *testing.T) {
		svc := &fakeReportService{report: &domain.SalesReport{}}
		perform(newTestRouter(&fakeSyncService{}, svc), http.MethodGet, "/sales-report?page=0&pageSize=-2", "")
		assert.Equal(t, 1, svc.got.Page)
		assert.Equal(t, analytics.DefaultPageSize, svc.got.PageSize)
		assert.Nil(t, svc.got.Categories)
	})

	t.Run("salesKey selects detail mode", func(t *testing.T) {
		svc := &fakeReportService{detail: &domain.SalesDetail{SalesName: "B. Bat", Items: []domain.ShipmentItem{}}}
		key := analytics.EncodeSalesKey(domain.SalesIdentity{SalesManagers: []string{"B. Bat"}})

		w := perform(newTestRouter(&fakeSyncService{}, svc), http.MethodGet, "/sales-report?salesKey="+key, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "detail", svc.mode)
		assert.Equal(t, key, svc.got.SalesKey)
		assert.Equal(t, "B. Bat", decodeBody(t, w)["salesName"])
	})

	badQueries := map[string]string{
		"unknown category":   "/sales-report?categories=IMPORT,AIR",
		"non numeric filter": "/sales-report?filterTypes=1,x",
	}
	for name, path := range badQueries {
		t.Run(name, func(t *testing.T) {
			svc := &fakeReportService{}
			w := perform(newTestRouter(&fakeSyncService{}, svc), http.MethodGet, path, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, svc.mode)
		})
	}

	t.Run("invalid sales key is a client error", func(t *testing.T) {
		svc := &fakeReportService{err: fmt.Errorf("%w: bad padding", analytics.ErrInvalidSalesKey)}
		w := perform(newTestRouter(&fakeSyncService{}, svc), http.MethodGet, "/sales-report?salesKey=zzz", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation error carries the field", func(t *testing.T) {
		svc := &fakeReportService{err: &service.ValidationError{Field: "month", Message: "expected YYYY-MM"}}
		w := perform(newTestRouter(&fakeSyncService{}, svc), http.MethodGet, "/sales-report?month=jan", "")
		require.Equal(t, http.StatusBadRequest, w.Code)

		details, ok := decodeBody(t, w)["details"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "month", details["field"])
	})

	t.Run("unexpected failure", func(t *testing.T) {
		svc := &fakeReportService{err: errors.New("boom")}
		w := perform(newTestRouter(&fakeSyncService{}, svc), http.MethodGet, "/sales-report", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
