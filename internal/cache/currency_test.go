package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("Skipping integration test: REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSnapshotCacheRoundTrip(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	c := NewSnapshotCache(client, time.Minute)
	require.NoError(t, c.Invalidate(ctx))

	_, err := c.Get(ctx)
	require.ErrorIs(t, err, ErrMiss)

	snap := models.CurrencySnapshot{
		Rates:             []models.CurrencyRate{{Code: "USD", BuyRate: decimal.RequireFromString("133.5"), SellRate: decimal.RequireFromString("134")}},
		CountryCurrency:   []models.CountryCurrency{{CountryCode: "US", CurrencyCode: "USD"}},
		DefaultFeePercent: decimal.NewFromInt(10),
	}
	require.NoError(t, c.Set(ctx, snap))

	got, err := c.Get(ctx)
	require.NoError(t, err)
	require.Len(t, got.Rates, 1)
	assert.True(t, got.Rates[0].BuyRate.Equal(snap.Rates[0].BuyRate))
	assert.True(t, got.DefaultFeePercent.Equal(snap.DefaultFeePercent))

	require.NoError(t, c.Invalidate(ctx))
	_, err = c.Get(ctx)
	require.ErrorIs(t, err, ErrMiss)
}

func TestRedisReminderGate(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	g := NewRedisReminderGate(client, time.Minute)

	session, member := uuid.New(), uuid.New()
	ok, err := g.Allow(ctx, session, member)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Allow(ctx, session, member)
	require.NoError(t, err)
	assert.False(t, ok)
}
