package cache

import (
	"context"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// ReportCache keeps rendered report exports in Redis so repeated downloads
// of the same report skip re-rendering.
type ReportCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewReportCache(client *redisv9.Client, ttl time.Duration) *ReportCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ReportCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *ReportCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := c.client.Get(ctx, c.cacheKey(key)).Bytes()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get report failed: %w", err)
	}
	return raw, true, nil
}

func (c *ReportCache) Set(ctx context.Context, key string, data []byte) error {
	if err := c.client.Set(ctx, c.cacheKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set report failed: %w", err)
	}
	return nil
}

func (c *ReportCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.cacheKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete report failed: %w", err)
	}
	return nil
}

func (c *ReportCache) cacheKey(key string) string {
	return "normcontrol:export:" + key
}
