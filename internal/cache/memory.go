package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/tuushin/crmsync/backend-go/internal/domain"
)

// memoryReportCache keeps reports in process; suitable for a single API instance.
type memoryReportCache struct {
	store *gocache.Cache
}

func NewMemoryReportCache(ttl time.Duration) ReportCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &memoryReportCache{store: gocache.New(ttl, 2*ttl)}
}

func (c *memoryReportCache) GetReport(ctx context.Context, key string) (*domain.SalesReport, bool, error) {
	value, found := c.store.Get(key)
	if !found {
		return nil, false, nil
	}
	report, ok := value.(domain.SalesReport)
	if !ok {
		c.store.Delete(key)
		return nil, false, nil
	}
	return &report, true, nil
}

// SetReport stores the report by value; callers must not mutate its slices afterwards.
func (c *memoryReportCache) SetReport(ctx context.Context, key string, report *domain.SalesReport) error {
	if report == nil {
		return nil
	}
	c.store.Set(key, *report, gocache.DefaultExpiration)
	return nil
}

func (c *memoryReportCache) InvalidateAll(ctx context.Context) error {
	for key := range c.store.Items() {
		if strings.HasPrefix(key, reportKeyPrefix) {
			c.store.Delete(key)
		}
	}
	return nil
}
