// Package crm fetches shipment records from the upstream CRM API.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tuushin/crmsync/backend-go/internal/config"
	"github.com/tuushin/crmsync/backend-go/internal/domain"
)

// ErrMissingCredentials is returned before any network call when basic auth is not configured.
var ErrMissingCredentials = errors.New("crm credentials are not configured")

// HTTPError is returned for any non-2xx upstream response.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("crm %s %s failed with status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

type endpoint struct {
	Method string
	Path   string
}

// One path and verb per category; not configurable per call.
var endpoints = map[domain.Category]endpoint{
	domain.CategoryImport:  {Method: http.MethodGet, Path: "/v1/shipments/import"},
	domain.CategoryTransit: {Method: http.MethodGet, Path: "/v1/shipments/transit"},
	domain.CategoryExport:  {Method: http.MethodPost, Path: "/v1/shipments/export"},
}

const defaultMaxPages = 1000

// Query selects one category and sub-filter over an inclusive date window.
type Query struct {
	Category   domain.Category
	FilterType int
	From       time.Time
	To         time.Time
}

// RawRecord is one loosely-typed upstream record together with its original bytes.
type RawRecord struct {
	Fields map[string]any
	Body   json.RawMessage
}

// Page is a decoded upstream page.
type Page struct {
	Number      int
	CurrentPage int
	LastPage    int
	HasNext     bool
	Records     []RawRecord
	Body        []byte
}

type pageEnvelope struct {
	CurrentPage flexInt           `json:"current_page"`
	LastPage    flexInt           `json:"last_page"`
	NextPageURL json.RawMessage   `json:"next_page_url"`
	Data        []json.RawMessage `json:"data"`
}

// Client is an authenticated, sequential page fetcher.
type Client struct {
	baseURL    string
	username   string
	password   string
	maxPages   int
	httpClient *http.Client
}

// NewClient builds a Client. A nil httpClient uses http.DefaultClient, which
// carries no application-level timeout.
func NewClient(cfg config.CRMConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = config.DefaultCRMBaseURL
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &Client{
		baseURL:    baseURL,
		username:   cfg.Username,
		password:   cfg.Password,
		maxPages:   maxPages,
		httpClient: httpClient,
	}
}

// CheckCredentials fails fast when either basic auth value is missing.
func (c *Client) CheckCredentials() error {
	if c.username == "" || c.password == "" {
		return ErrMissingCredentials
	}
	return nil
}

// FetchAll returns every record across all pages.
func (c *Client) FetchAll(ctx context.Context, q Query) ([]RawRecord, error) {
	var records []RawRecord
	err := c.FetchPages(ctx, q, func(p *Page) error {
		records = append(records, p.Records...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// FetchPages walks the upstream cursor one page at a time, calling fn for each
// page before requesting the next. It stops when the current page reaches the
// last page, a page is empty, or no next page is advertised.
func (c *Client) FetchPages(ctx context.Context, q Query, fn func(*Page) error) error {
	if err := c.CheckCredentials(); err != nil {
		return err
	}
	ep, ok := endpoints[q.Category]
	if !ok {
		return fmt.Errorf("crm: no endpoint for category %q", q.Category)
	}

	for number := 1; ; number++ {
		if number > c.maxPages {
			return fmt.Errorf("crm: aborting %s after %d pages", q.Category, c.maxPages)
		}

		page, err := c.fetchPage(ctx, ep, q, number)
		if err != nil {
			return err
		}

		log.Debug().
			Str("category", string(q.Category)).
			Int("filter_type", q.FilterType).
			Int("page", number).
			Int("last_page", page.LastPage).
			Int("records", len(page.Records)).
			Msg("crm page fetched")

		if err := fn(page); err != nil {
			return err
		}

		if len(page.Records) == 0 || !page.HasNext {
			return nil
		}
		if page.LastPage > 0 && page.CurrentPage >= page.LastPage {
			return nil
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, ep endpoint, q Query, number int) (*Page, error) {
	params := url.Values{}
	params.Set("filter_type", strconv.Itoa(q.FilterType))
	params.Set("begin_date", q.From.Format(domain.DateLayout))
	params.Set("end_date", q.To.Format(domain.DateLayout))
	params.Set("page", strconv.Itoa(number))

	target := c.baseURL + ep.Path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, ep.Method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("crm: build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crm: request page %d: %w", number, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("crm: read page %d: %w", number, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			Method:     ep.Method,
			URL:        c.baseURL + ep.Path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("crm: decode page %d: %w", number, err)
	}

	page := &Page{
		Number:      number,
		CurrentPage: int(env.CurrentPage),
		LastPage:    int(env.LastPage),
		HasNext:     hasNextPage(env.NextPageURL),
		Records:     make([]RawRecord, 0, len(env.Data)),
		Body:        body,
	}
	for _, raw := range env.Data {
		page.Records = append(page.Records, decodeRecord(raw))
	}
	return page, nil
}

func decodeRecord(raw json.RawMessage) RawRecord {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		// Non-object entries keep their bytes for audit but map to nothing.
		fields = nil
	}
	return RawRecord{Fields: fields, Body: raw}
}

func hasNextPage(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return strings.TrimSpace(s) != ""
}

// flexInt accepts JSON numbers, numeric strings, and null.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if text == "" || text == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("invalid page number %q", text)
	}
	*f = flexInt(n)
	return nil
}
