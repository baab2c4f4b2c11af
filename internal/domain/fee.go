package domain

import (
	"github.com/shopspring/decimal"
)

// FeeBreakdown is the result of splitting a gross amount into platform fee and
// teacher net.
type FeeBreakdown struct {
	Gross      decimal.Decimal `json:"gross"`
	FeePercent decimal.Decimal `json:"fee_percent"`
	Fee        decimal.Decimal `json:"fee"`
	Net        decimal.Decimal `json:"net"`
}

// ComputeFee derives fee and net from the original gross. Callers that change
// the percent must pass the original gross again, never a previous net.
func ComputeFee(gross, feePercent decimal.Decimal) (FeeBreakdown, error) {
	if err := ValidateAmount("gross amount", gross); err != nil {
		return FeeBreakdown{}, err
	}
	if err := ValidateFeePercent(feePercent); err != nil {
		return FeeBreakdown{}, err
	}
	fee := Round2(gross.Mul(feePercent).Div(hundred))
	net := Round2(gross.Sub(fee))
	if net.IsNegative() {
		net = decimal.Zero
	}
	return FeeBreakdown{Gross: gross, FeePercent: feePercent, Fee: fee, Net: net}, nil
}

// ResolveFeePercent picks a teacher override when one exists, else the
// platform default from the currency table.
func ResolveFeePercent(override *decimal.Decimal, table *CurrencyTable) (decimal.Decimal, error) {
	p := table.DefaultFeePercent()
	if override != nil {
		p = *override
	}
	if err := ValidateFeePercent(p); err != nil {
		return decimal.Zero, err
	}
	return p, nil
}
