package domain

import (
	"fmt"
	"strings"

	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Decimal places kept by storage. Inputs with more are rejected rather than
// rounded, so the persisted figure is the one that was priced.
const (
	AmountScale     = 2
	FeePercentScale = 3
	RateScale       = 8
)

// Round2 is the single rounding rule for money: two places, half away from zero,
// which is half-up for the non-negative amounts the engine handles.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Round5 rounds exchange rates.
func Round5(d decimal.Decimal) decimal.Decimal {
	return d.Round(5)
}

// Money is an amount tagged with its ISO 4217 currency.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewMoney builds a Money with a normalized currency code.
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: NormalizeCode(currency)}
}

// String returns the string representation of the money.
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(2), m.Currency)
}

// NormalizeCode upper-cases and trims a currency or country code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateAmount rejects negative amounts.
func ValidateAmount(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("%w: %s must not be negative, got %s", models.ErrInvalidAmount, field, d.String())
	}
	return nil
}

// ValidateScale rejects values with more than places decimal places.
func ValidateScale(field string, d decimal.Decimal, places int32) error {
	if !d.Equal(d.Round(places)) {
		return fmt.Errorf("%w: %s allows at most %d decimal places, got %s", models.ErrInvalidAmount, field, places, d.String())
	}
	return nil
}

// ValidateMoneyAmount rejects negative amounts and fractions of a cent.
func ValidateMoneyAmount(field string, d decimal.Decimal) error {
	if err := ValidateAmount(field, d); err != nil {
		return err
	}
	return ValidateScale(field, d, AmountScale)
}

// ValidateFeePercent enforces 0 <= p <= 100 with at most three decimal places.
func ValidateFeePercent(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(hundred) {
		return fmt.Errorf("%w: fee percent must be between 0 and 100, got %s", models.ErrInvalidAmount, p.String())
	}
	return ValidateScale("fee percent", p, FeePercentScale)
}
