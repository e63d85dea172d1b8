package crm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuushin/crmsync/backend-go/internal/config"
	"github.com/tuushin/crmsync/backend-go/internal/domain"
)

func testQuery(category domain.Category) Query {
	return Query{
		Category:   category,
		FilterType: 1,
		From:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:         time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

func pageBody(current, last int, ids ...string) string {
	next := "null"
	if current < last {
		next = fmt.Sprintf(`"https://crm.example/api?page=%d"`, current+1)
	}
	data := "["
	for i, id := range ids {
		if i > 0 {
			data += ","
		}
		data += fmt.Sprintf(`{"id":%q,"total_amount":"1,000"}`, id)
	}
	data += "]"
	return fmt.Sprintf(`{"current_page":%d,"last_page":%d,"next_page_url":%s,"data":%s}`, current, last, next, data)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.CRMConfig{BaseURL: srv.URL, Username: "user", Password: "secret"}, srv.Client())
}

func TestClient_FetchAll(t *testing.T) {
	t.Run("walks every page in order", func(t *testing.T) {
		var calls int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)

			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "user", user)
			assert.Equal(t, "secret", pass)
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/v1/shipments/import", r.URL.Path)
			assert.Equal(t, "1", r.URL.Query().Get("filter_type"))
			assert.Equal(t, "2024-01-01", r.URL.Query().Get("begin_date"))
			assert.Equal(t, "2024-01-31", r.URL.Query().Get("end_date"))

			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			ids := []string{fmt.Sprintf("p%d-a", page), fmt.Sprintf("p%d-b", page)}
			fmt.Fprint(w, pageBody(page, 3, ids...))
		})

		records, err := client.FetchAll(context.Background(), testQuery(domain.CategoryImport))
		require.NoError(t, err)
		require.Len(t, records, 6)
		assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
		assert.Equal(t, "p1-a", records[0].Fields["id"])
		assert.Equal(t, "p3-b", records[5].Fields["id"])
		assert.NotEmpty(t, records[0].Body)
	})

	t.Run("export uses POST", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/shipments/export", r.URL.Path)
			fmt.Fprint(w, pageBody(1, 1, "e1"))
		})

		records, err := client.FetchAll(context.Background(), testQuery(domain.CategoryExport))
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("stops on an empty page", func(t *testing.T) {
		var calls int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			fmt.Fprint(w, `{"current_page":1,"last_page":5,"next_page_url":"x","data":[]}`)
		})

		records, err := client.FetchAll(context.Background(), testQuery(domain.CategoryTransit))
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	})

	t.Run("stops without a next page url", func(t *testing.T) {
		var calls int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			fmt.Fprint(w, `{"current_page":"1","last_page":"9","next_page_url":null,"data":[{"id":1}]}`)
		})

		records, err := client.FetchAll(context.Background(), testQuery(domain.CategoryImport))
		require.NoError(t, err)
		assert.Len(t, records, 1)
		assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	})

	t.Run("non-2xx aborts with the body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("page") == "2" {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, "upstream exploded")
				return
			}
			fmt.Fprint(w, pageBody(1, 4, "a", "b"))
		})

		records, err := client.FetchAll(context.Background(), testQuery(domain.CategoryImport))
		require.Error(t, err)
		assert.Nil(t, records)

		var httpErr *HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
		assert.Equal(t, "upstream exploded", httpErr.Body)
		assert.Contains(t, err.Error(), "upstream exploded")
	})

	t.Run("missing credentials never reach the network", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
		}))
		defer srv.Close()

		client := NewClient(config.CRMConfig{BaseURL: srv.URL, Username: "user"}, srv.Client())
		_, err := client.FetchAll(context.Background(), testQuery(domain.CategoryImport))
		assert.ErrorIs(t, err, ErrMissingCredentials)
		assert.EqualValues(t, 0, atomic.LoadInt32(&calls))
	})

	t.Run("page cap aborts runaway pagination", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			fmt.Fprint(w, pageBody(page, 100, "x"))
		}))
		defer srv.Close()

		client := NewClient(config.CRMConfig{BaseURL: srv.URL, Username: "u", Password: "p", MaxPages: 2}, srv.Client())
		_, err := client.FetchAll(context.Background(), testQuery(domain.CategoryImport))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after 2 pages")
	})
}

func TestClient_FetchPagesCallbackError(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, pageBody(1, 3, "a"))
	})

	stop := errors.New("stop")
	err := client.FetchPages(context.Background(), testQuery(domain.CategoryImport), func(p *Page) error {
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(config.CRMConfig{BaseURL: "  "}, nil)
	assert.Equal(t, config.DefaultCRMBaseURL, client.baseURL)
	assert.Equal(t, defaultMaxPages, client.maxPages)
	assert.ErrorIs(t, client.CheckCredentials(), ErrMissingCredentials)
}
