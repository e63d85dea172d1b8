package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tuushin/crmsync/backend-go/internal/config"
	"github.com/tuushin/crmsync/backend-go/internal/domain"
)

const (
	reportKeyPrefix = "crm:sales-report"
	scanBatchSize   = 100
)

// ReportCache stores list-mode sales reports keyed by their normalized query.
type ReportCache interface {
	GetReport(ctx context.Context, key string) (*domain.SalesReport, bool, error)
	SetReport(ctx context.Context, key string, report *domain.SalesReport) error
	InvalidateAll(ctx context.Context) error
}

// NewReportCache picks a backend from cfg: redis, memory, or a no-op when disabled.
func NewReportCache(cfg config.CacheConfig) (ReportCache, error) {
	if !cfg.Enabled {
		return &noopReportCache{}, nil
	}

	switch cfg.Backend {
	case "", "redis":
		client, err := newRedisClient(cfg)
		if err != nil {
			return nil, err
		}
		return NewRedisReportCache(client, cacheTTL(cfg)), nil
	case "memory":
		return NewMemoryReportCache(cacheTTL(cfg)), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

func NewNoopReportCache() ReportCache {
	return &noopReportCache{}
}

type redisReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisReportCache(client *redis.Client, ttl time.Duration) ReportCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisReportCache{client: client, ttl: ttl}
}

func (c *redisReportCache) GetReport(ctx context.Context, key string) (*domain.SalesReport, bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var report domain.SalesReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, false, fmt.Errorf("decode sales report cache: %w", err)
	}
	return &report, true, nil
}

func (c *redisReportCache) SetReport(ctx context.Context, key string, report *domain.SalesReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode sales report cache: %w", err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisReportCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, reportKeyPrefix, scanBatchSize)
}

type noopReportCache struct{}

func (n *noopReportCache) GetReport(ctx context.Context, key string) (*domain.SalesReport, bool, error) {
	return nil, false, nil
}

func (n *noopReportCache) SetReport(ctx context.Context, key string, report *domain.SalesReport) error {
	return nil
}

func (n *noopReportCache) InvalidateAll(ctx context.Context) error {
	return nil
}

// BuildReportKey hashes the resolved report query. Category and filter order
// does not matter; search is compared case-insensitively.
func BuildReportKey(month string, window domain.DateRange, filters domain.ReportFilters, page, pageSize int) string {
	categories := make([]string, 0, len(filters.Categories))
	for _, c := range filters.Categories {
		categories = append(categories, string(c))
	}
	sort.Strings(categories)

	filterTypes := make([]string, 0, len(filters.FilterTypes))
	for _, ft := range filters.FilterTypes {
		filterTypes = append(filterTypes, strconv.Itoa(ft))
	}
	sort.Strings(filterTypes)

	parts := []string{
		"month=" + month,
		"start=" + window.Start,
		"end=" + window.End,
		"categories=" + strings.Join(categories, ","),
		"filter_types=" + strings.Join(filterTypes, ","),
		"search=" + strings.ToLower(strings.TrimSpace(filters.Search)),
		"page=" + strconv.Itoa(page),
		"page_size=" + strconv.Itoa(pageSize),
	}

	raw := strings.Join(parts, "|")
	hash := sha1.Sum([]byte(raw))
	return fmt.Sprintf("%s:%s", reportKeyPrefix, hex.EncodeToString(hash[:]))
}
