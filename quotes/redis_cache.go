package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"crypto-tracker/models"
)

// RedisCache stores the snapshot so several processes share one view of
// the market.
//
// Key schema:
//
//	{key}            - hash of symbol -> JSON quote
//	{key}:updated_at - RFC 3339 timestamp of the last Replace
type RedisCache struct {
	rdb *redis.Client
	key string
}

func NewRedisCache(rdb *redis.Client, key string) *RedisCache {
	if key == "" {
		key = "crypto:quotes"
	}
	return &RedisCache{rdb: rdb, key: key}
}

func (c *RedisCache) updatedAtKey() string { return c.key + ":updated_at" }

// Replace deletes and rewrites the hash in one MULTI/EXEC so readers never
// observe a mix of two refreshes.
func (c *RedisCache) Replace(ctx context.Context, quotes map[string]models.Quote, at time.Time) error {
	fields := make([]interface{}, 0, len(quotes)*2)
	for symbol, q := range quotes {
		data, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("redis: marshal quote %s: %w", symbol, err)
		}
		fields = append(fields, symbol, data)
	}

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, c.key)
	if len(fields) > 0 {
		pipe.HSet(ctx, c.key, fields...)
	}
	pipe.Set(ctx, c.updatedAtKey(), at.UTC().Format(time.RFC3339Nano), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: replace quotes: %w", err)
	}
	return nil
}

func (c *RedisCache) Snapshot(ctx context.Context) (Snapshot, error) {
	pipe := c.rdb.TxPipeline()
	hash := pipe.HGetAll(ctx, c.key)
	stamp := pipe.Get(ctx, c.updatedAtKey())
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Snapshot{}, fmt.Errorf("redis: read quotes: %w", err)
	}

	snap := Snapshot{Quotes: make(map[string]models.Quote, len(hash.Val()))}
	for symbol, raw := range hash.Val() {
		var q models.Quote
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return Snapshot{}, fmt.Errorf("redis: unmarshal quote %s: %w", symbol, err)
		}
		snap.Quotes[symbol] = q
	}

	if s, err := stamp.Result(); err == nil {
		at, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return Snapshot{}, fmt.Errorf("redis: parse updated_at: %w", err)
		}
		snap.UpdatedAt = at
	} else if !errors.Is(err, redis.Nil) {
		return Snapshot{}, fmt.Errorf("redis: read updated_at: %w", err)
	}
	return snap, nil
}
