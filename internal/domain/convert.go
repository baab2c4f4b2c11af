package domain

import (
	"fmt"

	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Convert moves an amount between currencies through the reference currency:
// amount * buy(from) / sell(to), rounded once at the end. A currency missing
// from the table counts as rate 1 so display paths never hard-fail; use
// ConvertStrict for anything authoritative.
func Convert(amount decimal.Decimal, from, to string, table *CurrencyTable) decimal.Decimal {
	from, to = NormalizeCode(from), NormalizeCode(to)
	if from == to {
		return amount
	}
	buy, sell := one, one
	if r, ok := table.Rate(from); ok {
		buy = r.BuyRate
	}
	if r, ok := table.Rate(to); ok {
		sell = r.SellRate
	}
	return Round2(amount.Mul(buy).Div(sell))
}

// ConvertStrict is Convert without the lenient fallback.
func ConvertStrict(amount decimal.Decimal, from, to string, table *CurrencyTable) (decimal.Decimal, error) {
	from, to = NormalizeCode(from), NormalizeCode(to)
	if from == to {
		return amount, nil
	}
	src, ok := table.Rate(from)
	if !ok {
		return decimal.Zero, unknownCurrency(from)
	}
	dst, ok := table.Rate(to)
	if !ok {
		return decimal.Zero, unknownCurrency(to)
	}
	return Round2(amount.Mul(src.BuyRate).Div(dst.SellRate)), nil
}

// MissingRates lists which of the codes the table cannot price.
func MissingRates(table *CurrencyTable, codes ...string) []string {
	var missing []string
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		c = NormalizeCode(c)
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		if _, ok := table.Rate(c); !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

func unknownCurrency(code string) error {
	return fmt.Errorf("%w: rate unavailable for %s", models.ErrUnknownCurrency, code)
}
