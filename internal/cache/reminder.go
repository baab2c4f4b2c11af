package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ReminderGate lets one reminder per session participant through per cooldown.
type ReminderGate interface {
	Allow(ctx context.Context, sessionID, participantID uuid.UUID) (bool, error)
}

type RedisReminderGate struct {
	redis    redis.Cmdable
	cooldown time.Duration
}

func NewRedisReminderGate(rdb redis.Cmdable, cooldown time.Duration) *RedisReminderGate {
	return &RedisReminderGate{redis: rdb, cooldown: cooldown}
}

func (g *RedisReminderGate) Allow(ctx context.Context, sessionID, participantID uuid.UUID) (bool, error) {
	key := fmt.Sprintf("settlement:reminder:%s:%s", sessionID, participantID)
	ok, err := g.redis.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("reminder gate: %w", err)
	}
	return ok, nil
}

// MemoryReminderGate is the single-process fallback when Redis is absent.
type MemoryReminderGate struct {
	mu       sync.Mutex
	cooldown time.Duration
	now      func() time.Time
	sent     map[[2]uuid.UUID]time.Time
}

func NewMemoryReminderGate(cooldown time.Duration) *MemoryReminderGate {
	return &MemoryReminderGate{
		cooldown: cooldown,
		now:      time.Now,
		sent:     make(map[[2]uuid.UUID]time.Time),
	}
}

func (g *MemoryReminderGate) Allow(_ context.Context, sessionID, participantID uuid.UUID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := [2]uuid.UUID{sessionID, participantID}
	now := g.now()
	if last, ok := g.sent[key]; ok && now.Sub(last) < g.cooldown {
		return false, nil
	}
	g.sent[key] = now
	return true, nil
}
