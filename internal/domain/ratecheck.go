package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	RateCheckOK          = "ok"
	RateCheckSoft        = "soft_warning"
	RateCheckHard        = "hard_warning"
	RateCheckUnavailable = "unavailable"
)

// Tolerance holds the relative deviations that trigger advisory warnings.
type Tolerance struct {
	Soft decimal.Decimal
	Hard decimal.Decimal
}

func DefaultTolerance() Tolerance {
	return Tolerance{
		Soft: decimal.RequireFromString("0.05"),
		Hard: decimal.RequireFromString("0.12"),
	}
}

// RateCheck is advisory output for the admin recording a payout. It never
// blocks the payout.
type RateCheck struct {
	Level     string           `json:"level"`
	Entered   decimal.Decimal  `json:"entered"`
	Expected  *decimal.Decimal `json:"expected,omitempty"`
	Deviation *decimal.Decimal `json:"deviation,omitempty"`
	Message   string           `json:"message"`
}

// ExpectedPayoutRate is the table's rate in payout-currency units per one
// reference unit.
func ExpectedPayoutRate(table *CurrencyTable, payoutCurrency string) (decimal.Decimal, error) {
	r, ok := table.Rate(payoutCurrency)
	if !ok {
		return decimal.Zero, unknownCurrency(NormalizeCode(payoutCurrency))
	}
	return Round5(one.Div(r.SellRate)), nil
}

// CheckRate compares an entered rate with the expected one.
func CheckRate(entered, expected decimal.Decimal, tol Tolerance) RateCheck {
	rc := RateCheck{Level: RateCheckOK, Entered: entered, Expected: &expected}
	if !expected.IsPositive() {
		rc.Level = RateCheckUnavailable
		rc.Expected = nil
		rc.Message = "no expected rate to compare against"
		return rc
	}
	dev := entered.Sub(expected).Abs().Div(expected).Round(4)
	rc.Deviation = &dev
	switch {
	case dev.GreaterThan(tol.Hard):
		rc.Level = RateCheckHard
		rc.Message = fmt.Sprintf("rate %s deviates %s%% from expected %s", entered, dev.Mul(hundred).StringFixed(2), expected)
	case dev.GreaterThan(tol.Soft):
		rc.Level = RateCheckSoft
		rc.Message = fmt.Sprintf("rate %s deviates %s%% from expected %s", entered, dev.Mul(hundred).StringFixed(2), expected)
	default:
		rc.Message = "rate within tolerance"
	}
	return rc
}
