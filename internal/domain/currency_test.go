package domain

import (
	"testing"

	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCurrencyTableDefaultsSingleRate(t *testing.T) {
	table := testTable(t)

	inr, ok := table.Rate("inr")
	require.True(t, ok)
	assert.True(t, inr.BuyRate.Equal(dec("1.6")))
	assert.True(t, inr.SellRate.Equal(dec("1.6")))

	ref, ok := table.Rate("NPR")
	require.True(t, ok)
	assert.True(t, ref.BuyRate.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "NPR", table.Reference())
}

func TestNewCurrencyTableRejectsBadInput(t *testing.T) {
	_, err := NewCurrencyTable("NPR", models.CurrencySnapshot{
		Rates: []models.CurrencyRate{{Code: "USD"}},
	})
	require.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = NewCurrencyTable("NPR", models.CurrencySnapshot{
		Rates: []models.CurrencyRate{{Code: "USD", BuyRate: dec("-1")}},
	})
	require.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = NewCurrencyTable("NPR", models.CurrencySnapshot{DefaultFeePercent: dec("101")})
	require.ErrorIs(t, err, models.ErrInvalidAmount)
}

func TestResolveCurrency(t *testing.T) {
	table := testTable(t)

	code, fallback := table.ResolveCurrency("gbp", "US")
	assert.Equal(t, "GBP", code)
	assert.False(t, fallback)

	code, fallback = table.ResolveCurrency("", "us")
	assert.Equal(t, "USD", code)
	assert.False(t, fallback)

	code, fallback = table.ResolveCurrency("", "ZZ")
	assert.Equal(t, "NPR", code)
	assert.True(t, fallback)
}

func TestSnapshotIsSorted(t *testing.T) {
	snap := testTable(t).Snapshot()
	require.Len(t, snap.Rates, 4)
	codes := make([]string, 0, len(snap.Rates))
	for _, r := range snap.Rates {
		codes = append(codes, r.Code)
	}
	assert.Equal(t, []string{"GBP", "INR", "NPR", "USD"}, codes)
	assert.Equal(t, "IN", snap.CountryCurrency[0].CountryCode)
	assert.True(t, snap.DefaultFeePercent.Equal(dec("10")))
}
