// Package cache holds the Redis-backed helpers: the shared currency snapshot
// and the reminder gate.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/redis/go-redis/v9"
)

const currencySnapshotKey = "settlement:currency_snapshot"

// ErrMiss reports that the cache holds no value.
var ErrMiss = errors.New("cache miss")

// SnapshotCache stores the currency snapshot so every instance prices with
// the same table between refreshes.
type SnapshotCache struct {
	redis redis.Cmdable
	ttl   time.Duration
}

func NewSnapshotCache(rdb redis.Cmdable, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{redis: rdb, ttl: ttl}
}

func (c *SnapshotCache) Get(ctx context.Context) (models.CurrencySnapshot, error) {
	var snap models.CurrencySnapshot
	val, err := c.redis.Get(ctx, currencySnapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return snap, ErrMiss
	}
	if err != nil {
		return snap, fmt.Errorf("read currency snapshot: %w", err)
	}
	if err := json.Unmarshal(val, &snap); err != nil {
		return snap, fmt.Errorf("decode currency snapshot: %w", err)
	}
	return snap, nil
}

func (c *SnapshotCache) Set(ctx context.Context, snap models.CurrencySnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode currency snapshot: %w", err)
	}
	if err := c.redis.Set(ctx, currencySnapshotKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("write currency snapshot: %w", err)
	}
	return nil
}

func (c *SnapshotCache) Invalidate(ctx context.Context) error {
	if err := c.redis.Del(ctx, currencySnapshotKey).Err(); err != nil {
		return fmt.Errorf("invalidate currency snapshot: %w", err)
	}
	return nil
}
