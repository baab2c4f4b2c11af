package domain

import (
	"fmt"
	"sort"

	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/shopspring/decimal"
)

// CurrencyTable is an immutable view of exchange rates against the reference
// currency. Build a new table instead of mutating one; readers share it freely.
type CurrencyTable struct {
	reference  string
	rates      map[string]models.CurrencyRate
	countries  map[string]string
	defaultFee decimal.Decimal
}

// NormalizeRate fills a missing buy or sell rate from the other one and
// rejects non-positive rates or rates finer than RateScale.
func NormalizeRate(r models.CurrencyRate) (models.CurrencyRate, error) {
	r.Code = NormalizeCode(r.Code)
	if r.Code == "" {
		return r, fmt.Errorf("%w: currency code is required", models.ErrUnknownCurrency)
	}
	if r.BuyRate.IsZero() {
		r.BuyRate = r.SellRate
	}
	if r.SellRate.IsZero() {
		r.SellRate = r.BuyRate
	}
	if !r.BuyRate.IsPositive() || !r.SellRate.IsPositive() {
		return r, fmt.Errorf("%w: rates for %s must be positive", models.ErrInvalidAmount, r.Code)
	}
	if err := ValidateScale(r.Code+" buy rate", r.BuyRate, RateScale); err != nil {
		return r, err
	}
	if err := ValidateScale(r.Code+" sell rate", r.SellRate, RateScale); err != nil {
		return r, err
	}
	return r, nil
}

// NewCurrencyTable validates a snapshot and indexes it.
func NewCurrencyTable(reference string, snap models.CurrencySnapshot) (*CurrencyTable, error) {
	t := &CurrencyTable{
		reference:  NormalizeCode(reference),
		rates:      make(map[string]models.CurrencyRate, len(snap.Rates)+1),
		countries:  make(map[string]string, len(snap.CountryCurrency)),
		defaultFee: snap.DefaultFeePercent,
	}
	if t.reference == "" {
		t.reference = DefaultReferenceCurrency
	}
	if err := ValidateFeePercent(t.defaultFee); err != nil {
		return nil, fmt.Errorf("default fee: %w", err)
	}
	for _, r := range snap.Rates {
		norm, err := NormalizeRate(r)
		if err != nil {
			return nil, err
		}
		t.rates[norm.Code] = norm
	}
	if _, ok := t.rates[t.reference]; !ok {
		t.rates[t.reference] = models.CurrencyRate{Code: t.reference, BuyRate: decimal.NewFromInt(1), SellRate: decimal.NewFromInt(1)}
	}
	for _, m := range snap.CountryCurrency {
		t.countries[NormalizeCode(m.CountryCode)] = NormalizeCode(m.CurrencyCode)
	}
	return t, nil
}

func (t *CurrencyTable) Reference() string {
	return t.reference
}

func (t *CurrencyTable) DefaultFeePercent() decimal.Decimal {
	return t.defaultFee
}

// Rate looks up a currency. The reference currency is always present.
func (t *CurrencyTable) Rate(code string) (models.CurrencyRate, bool) {
	r, ok := t.rates[NormalizeCode(code)]
	return r, ok
}

// CurrencyForCountry resolves a display/settlement currency from a country code.
func (t *CurrencyTable) CurrencyForCountry(country string) (string, bool) {
	c, ok := t.countries[NormalizeCode(country)]
	return c, ok
}

// ResolveCurrency prefers an explicit code, then the country mapping, then the
// reference currency. The boolean reports whether the fallback was used.
func (t *CurrencyTable) ResolveCurrency(explicit, country string) (string, bool) {
	if code := NormalizeCode(explicit); code != "" {
		return code, false
	}
	if code, ok := t.CurrencyForCountry(country); ok {
		return code, false
	}
	return t.reference, true
}

// Snapshot returns the table contents in code order.
func (t *CurrencyTable) Snapshot() models.CurrencySnapshot {
	snap := models.CurrencySnapshot{DefaultFeePercent: t.defaultFee}
	for _, r := range t.rates {
		snap.Rates = append(snap.Rates, r)
	}
	sort.Slice(snap.Rates, func(i, j int) bool { return snap.Rates[i].Code < snap.Rates[j].Code })
	for country, code := range t.countries {
		snap.CountryCurrency = append(snap.CountryCurrency, models.CountryCurrency{CountryCode: country, CurrencyCode: code})
	}
	sort.Slice(snap.CountryCurrency, func(i, j int) bool {
		return snap.CountryCurrency[i].CountryCode < snap.CountryCurrency[j].CountryCode
	})
	return snap
}
