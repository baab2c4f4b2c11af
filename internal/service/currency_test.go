package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/tutor-settlement/internal/cache"
	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/ayo6706/tutor-settlement/internal/repository"
	"github.com/ayo6706/tutor-settlement/internal/repository/memstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usdBuyRate(t *testing.T, s *CurrencyService) string {
	t.Helper()
	table, err := s.Table(context.Background())
	require.NoError(t, err)
	r, ok := table.Rate("USD")
	require.True(t, ok)
	return r.BuyRate.String()
}

func TestCurrencyTableCachedUntilTTL(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.Equal(t, "133.5", usdBuyRate(t, env.currencies))

	// Written behind the service's back: invisible until the TTL passes.
	require.NoError(t, env.store.Queries().UpsertCurrencyRate(ctx, models.CurrencyRate{Code: "USD", BuyRate: dec("140"), SellRate: dec("141")}))
	assert.Equal(t, "133.5", usdBuyRate(t, env.currencies))

	env.clock.Advance(2 * time.Minute)
	assert.Equal(t, "140", usdBuyRate(t, env.currencies))
}

func TestUpsertRateInvalidatesTable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.Equal(t, "133.5", usdBuyRate(t, env.currencies))

	_, err := env.currencies.UpsertRate(ctx, userPrincipal(uuid.New()), models.CurrencyRate{Code: "USD", BuyRate: dec("1")})
	require.ErrorIs(t, err, models.ErrForbidden)

	_, err = env.currencies.UpsertRate(ctx, testAdmin, models.CurrencyRate{Code: "USD", BuyRate: dec("-1")})
	require.ErrorIs(t, err, models.ErrInvalidAmount)

	got, err := env.currencies.UpsertRate(ctx, testAdmin, models.CurrencyRate{Code: " eur ", SellRate: dec("150")})
	require.NoError(t, err)
	assert.Equal(t, "EUR", got.Code)
	assert.True(t, got.BuyRate.Equal(dec("150")))

	_, err = env.currencies.UpsertRate(ctx, testAdmin, models.CurrencyRate{Code: "USD", BuyRate: dec("135"), SellRate: dec("136")})
	require.NoError(t, err)
	assert.Equal(t, "135", usdBuyRate(t, env.currencies))

	snap, err := env.currencies.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Rates, 5)
}

func TestCurrencyAdminOperations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.currencies.UpsertCountry(ctx, testAdmin, models.CountryCurrency{CountryCode: "gb"})
	require.ErrorIs(t, err, models.ErrInvalidRequest)

	m, err := env.currencies.UpsertCountry(ctx, testAdmin, models.CountryCurrency{CountryCode: "de", CurrencyCode: "eur"})
	require.NoError(t, err)
	assert.Equal(t, models.CountryCurrency{CountryCode: "DE", CurrencyCode: "EUR"}, m)

	require.ErrorIs(t, env.currencies.SetDefaultFee(ctx, testAdmin, dec("101")), models.ErrInvalidAmount)
	require.NoError(t, env.currencies.SetDefaultFee(ctx, testAdmin, dec("12.5")))
	table, err := env.currencies.Table(ctx)
	require.NoError(t, err)
	assert.True(t, table.DefaultFeePercent().Equal(dec("12.5")))

	teacher := uuid.New()
	require.ErrorIs(t, env.currencies.SetTeacherFeeOverride(ctx, userPrincipal(teacher), teacher, dec("1")), models.ErrForbidden)
	require.NoError(t, env.currencies.SetTeacherFeeOverride(ctx, testAdmin, teacher, dec("7")))
	fee, err := env.currencies.TeacherFeePercent(ctx, env.store.Queries(), teacher, table)
	require.NoError(t, err)
	assert.True(t, fee.Equal(dec("7")))

	entries := env.store.AuditEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, uuid.Nil, entries[0].EntityID)
	assert.Equal(t, "teacher_fee_override", entries[2].Action)
	assert.Equal(t, teacher, entries[2].EntityID)
}

// flakyStore fails currency reads while fail is set. afterRates runs once
// the rates have been read.
type flakyStore struct {
	*memstore.Store
	mu         sync.Mutex
	fail       bool
	afterRates func()
}

type flakyQuerier struct {
	repository.Querier
	store *flakyStore
}

func (q flakyQuerier) ListCurrencyRates(ctx context.Context) ([]models.CurrencyRate, error) {
	q.store.mu.Lock()
	fail := q.store.fail
	q.store.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	rates, err := q.Querier.ListCurrencyRates(ctx)
	q.store.mu.Lock()
	hook := q.store.afterRates
	q.store.afterRates = nil
	q.store.mu.Unlock()
	if hook != nil {
		hook()
	}
	return rates, err
}

func (s *flakyStore) Queries() repository.Querier {
	return flakyQuerier{Querier: s.Store.Queries(), store: s}
}

func TestCurrencyTableServesPreviousOnRefreshFailure(t *testing.T) {
	env := newTestEnv(t)
	store := &flakyStore{Store: env.store}
	svc := NewCurrencyService(store, nil, CurrencyOptions{ReferenceCurrency: "NPR", TTL: time.Minute})
	svc.now = env.clock.Now

	require.Equal(t, "133.5", usdBuyRate(t, svc))
	store.fail = true
	env.clock.Advance(time.Hour)
	assert.Equal(t, "133.5", usdBuyRate(t, svc))

	cold := NewCurrencyService(store, nil, CurrencyOptions{ReferenceCurrency: "NPR"})
	_, err := cold.Table(context.Background())
	require.Error(t, err)
}

type fakeSnapshotCache struct {
	mu   sync.Mutex
	snap *models.CurrencySnapshot
	gets int
}

func (c *fakeSnapshotCache) Get(context.Context) (models.CurrencySnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.snap == nil {
		return models.CurrencySnapshot{}, cache.ErrMiss
	}
	return *c.snap, nil
}

func (c *fakeSnapshotCache) Set(_ context.Context, snap models.CurrencySnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = &snap
	return nil
}

func (c *fakeSnapshotCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = nil
	return nil
}

func TestCurrencyTableSharedAcrossInstances(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	shared := &fakeSnapshotCache{}

	first := NewCurrencyService(env.store, shared, CurrencyOptions{ReferenceCurrency: "NPR"})
	require.Equal(t, "133.5", usdBuyRate(t, first))
	require.NotNil(t, shared.snap)

	// The second instance is served from the shared snapshot, not the store.
	require.NoError(t, env.store.Queries().UpsertCurrencyRate(ctx, models.CurrencyRate{Code: "USD", BuyRate: dec("200"), SellRate: dec("200")}))
	second := NewCurrencyService(env.store, shared, CurrencyOptions{ReferenceCurrency: "NPR"})
	assert.Equal(t, "133.5", usdBuyRate(t, second))

	_, err := second.UpsertRate(ctx, testAdmin, models.CurrencyRate{Code: "GBP", BuyRate: dec("170")})
	require.NoError(t, err)
	third := NewCurrencyService(env.store, shared, CurrencyOptions{ReferenceCurrency: "NPR"})
	assert.Equal(t, "200", usdBuyRate(t, third))
}

func TestCurrencyTableRefreshRacingAnUpdateIsNotCached(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	store := &flakyStore{Store: env.store}
	shared := &fakeSnapshotCache{}
	svc := NewCurrencyService(store, shared, CurrencyOptions{ReferenceCurrency: "NPR", TTL: time.Hour})
	svc.now = env.clock.Now

	// The rate changes after the refresh has read the old rows.
	store.afterRates = func() {
		_, err := svc.UpsertRate(ctx, testAdmin, models.CurrencyRate{Code: "USD", BuyRate: dec("140"), SellRate: dec("141")})
		require.NoError(t, err)
	}
	assert.Equal(t, "133.5", usdBuyRate(t, svc))
	assert.Nil(t, shared.snap, "stale snapshot must not reach the shared cache")

	assert.Equal(t, "140", usdBuyRate(t, svc))
	require.NotNil(t, shared.snap)
}
