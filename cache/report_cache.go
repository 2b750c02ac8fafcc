package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"wb-seller-stats/report"
)

// LatestReportTTL keeps a report around until well after the next daily run
const LatestReportTTL = 48 * time.Hour

// CachedReport is the last table produced for a tenant
type CachedReport struct {
	RunID       string       `json:"run_id"`
	Tenant      string       `json:"tenant"`
	GeneratedAt time.Time    `json:"generated_at"`
	Attempts    int          `json:"attempts"`
	Table       report.Table `json:"table"`
}

// ReportCache stores the latest report per tenant. Without Redis it keeps
// them in process memory.
type ReportCache struct {
	redis *RedisClient

	mu    sync.RWMutex
	local map[string]CachedReport
}

// NewReportCache creates a report cache; redis may be nil
func NewReportCache(redis *RedisClient) *ReportCache {
	return &ReportCache{
		redis: redis,
		local: make(map[string]CachedReport),
	}
}

// SetLatest replaces the tenant's latest report
func (c *ReportCache) SetLatest(ctx context.Context, rep CachedReport) error {
	c.mu.Lock()
	c.local[rep.Tenant] = rep
	c.mu.Unlock()

	if c.redis == nil {
		return nil
	}
	return c.redis.Set(ctx, latestKey(rep.Tenant), rep, LatestReportTTL)
}

// GetLatest returns the tenant's latest report and whether one exists
func (c *ReportCache) GetLatest(ctx context.Context, tenant string) (CachedReport, bool, error) {
	if c.redis != nil {
		var rep CachedReport
		err := c.redis.Get(ctx, latestKey(tenant), &rep)
		if err == nil {
			return rep, true, nil
		}
		if !errors.Is(err, redis.Nil) {
			return CachedReport{}, false, err
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	rep, ok := c.local[tenant]
	return rep, ok, nil
}

func latestKey(tenant string) string {
	return fmt.Sprintf("wbstats:report:latest:%s", tenant)
}
