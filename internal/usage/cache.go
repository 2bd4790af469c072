package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vanban_gateway/internal/models"
)

// Cache shortens repeated dashboard reads. A miss or a cache failure is never
// an error: readers fall through to the ledger.
type Cache interface {
	GetSummary(ctx context.Context, subscriberID string, now time.Time) (*models.UsageSummary, bool)
	SetSummary(ctx context.Context, summary *models.UsageSummary, now time.Time)
	GetAdminStats(ctx context.Context, now time.Time) (*models.AdminStats, bool)
	SetAdminStats(ctx context.Context, stats *models.AdminStats, now time.Time)
	// Invalidate drops a subscriber's cached summary after a fresh metered
	// call so the dashboard does not serve a stale count for the full TTL.
	Invalidate(ctx context.Context, subscriberID string, now time.Time)
}

// NoopCache never hits. Used when no Redis is configured.
type NoopCache struct{}

func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

func (c *NoopCache) GetSummary(ctx context.Context, subscriberID string, now time.Time) (*models.UsageSummary, bool) {
	return nil, false
}

func (c *NoopCache) SetSummary(ctx context.Context, summary *models.UsageSummary, now time.Time) {
}

func (c *NoopCache) GetAdminStats(ctx context.Context, now time.Time) (*models.AdminStats, bool) {
	return nil, false
}

func (c *NoopCache) SetAdminStats(ctx context.Context, stats *models.AdminStats, now time.Time) {
}

func (c *NoopCache) Invalidate(ctx context.Context, subscriberID string, now time.Time) {
}

// RedisCache stores serialized reporting views under short TTLs. Keys carry
// the billing month so a period rollover can never serve last month's view.
type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisCache creates a new redis-backed cache
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{redis: client, ttl: ttl}
}

func (c *RedisCache) summaryKey(subscriberID string, now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("usage:summary:%s:%d:%02d", subscriberID, now.Year(), int(now.Month()))
}

func (c *RedisCache) adminKey(now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("usage:admin:%d:%02d", now.Year(), int(now.Month()))
}

func (c *RedisCache) GetSummary(ctx context.Context, subscriberID string, now time.Time) (*models.UsageSummary, bool) {
	data, err := c.redis.Get(ctx, c.summaryKey(subscriberID, now)).Bytes()
	if err != nil {
		return nil, false
	}
	var summary models.UsageSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, false
	}
	return &summary, true
}

func (c *RedisCache) SetSummary(ctx context.Context, summary *models.UsageSummary, now time.Time) {
	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	c.redis.Set(ctx, c.summaryKey(summary.SubscriberID, now), data, c.ttl)
}

func (c *RedisCache) GetAdminStats(ctx context.Context, now time.Time) (*models.AdminStats, bool) {
	data, err := c.redis.Get(ctx, c.adminKey(now)).Bytes()
	if err != nil {
		return nil, false
	}
	var stats models.AdminStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, false
	}
	return &stats, true
}

func (c *RedisCache) SetAdminStats(ctx context.Context, stats *models.AdminStats, now time.Time) {
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	c.redis.Set(ctx, c.adminKey(now), data, c.ttl)
}

func (c *RedisCache) Invalidate(ctx context.Context, subscriberID string, now time.Time) {
	c.redis.Del(ctx, c.summaryKey(subscriberID, now))
}
