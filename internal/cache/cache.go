// Package cache provides a Redis-backed read-through cache for per-day
// dashboard summaries. It exists for UI responsiveness only: every
// write path invalidates it, and any Redis failure degrades to a miss
// so callers always fall back to storage.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rollcall/internal/model"
)

const genKey = "rollcall:summary:gen"

// Summary caches dashboard summaries keyed by generation and date. The
// generation counter bumps on roster changes, which orphans every
// cached day at once without scanning keys.
type Summary struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a cache with the given entry TTL.
func New(client *redis.Client, ttl time.Duration) *Summary {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Summary{client: client, ttl: ttl}
}

func (c *Summary) key(ctx context.Context, date string) string {
	gen, err := c.client.Get(ctx, genKey).Result()
	if err != nil {
		gen = "0"
	}
	return fmt.Sprintf("rollcall:summary:%s:%s", gen, date)
}

// Get returns the cached summary for date, or a miss.
func (c *Summary) Get(ctx context.Context, date string) (model.DashboardSummary, bool) {
	raw, err := c.client.Get(ctx, c.key(ctx, date)).Bytes()
	if err != nil {
		return model.DashboardSummary{}, false
	}
	var sum model.DashboardSummary
	if err := json.Unmarshal(raw, &sum); err != nil {
		return model.DashboardSummary{}, false
	}
	return sum, true
}

// Set stores the summary for date. Errors are dropped: the cache is
// best-effort and storage remains the source of truth.
func (c *Summary) Set(ctx context.Context, date string, sum model.DashboardSummary) {
	raw, err := json.Marshal(sum)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key(ctx, date), raw, c.ttl).Err()
}

// Invalidate drops the cached summary for one date, after a mark.
func (c *Summary) Invalidate(ctx context.Context, date string) {
	_ = c.client.Del(ctx, c.key(ctx, date)).Err()
}

// InvalidateAll drops every cached summary by bumping the generation,
// after a roster change (register or remove touches every day's total).
func (c *Summary) InvalidateAll(ctx context.Context) {
	_ = c.client.Incr(ctx, genKey).Err()
}
