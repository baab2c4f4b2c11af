package domain

import (
	"github.com/shopspring/decimal"
)

// PreviewInput is a priced offer before the learner commits to it.
type PreviewInput struct {
	Budget           decimal.Decimal
	BudgetCurrency   string
	IsFree           bool
	SplitMode        string
	ParticipantCount int
	PayerCurrency    string
	PayoutCurrency   string
	FeePercent       decimal.Decimal
}

// PreviewResult is what the learner confirms before acceptance.
type PreviewResult struct {
	PayerAmount       decimal.Decimal `json:"payer_amount"`
	GrossAmount       decimal.Decimal `json:"gross_amount"`
	PayerCurrency     string          `json:"payer_currency"`
	FeePercent        decimal.Decimal `json:"fee_percent"`
	FeeInReference    decimal.Decimal `json:"fee_in_reference"`
	NetInReference    decimal.Decimal `json:"net_in_reference"`
	ReferenceCurrency string          `json:"reference_currency"`
	PayoutAmount      decimal.Decimal `json:"payout_amount"`
	PayoutCurrency    string          `json:"payout_currency"`
	MissingRates      []string        `json:"missing_rates,omitempty"`
}

// ComputePreview prices an offer with the lenient converter; MissingRates names
// every currency that was priced at the fallback rate.
func ComputePreview(in PreviewInput, table *CurrencyTable) (PreviewResult, error) {
	if err := ValidateMoneyAmount("budget", in.Budget); err != nil {
		return PreviewResult{}, err
	}
	if err := ValidateFeePercent(in.FeePercent); err != nil {
		return PreviewResult{}, err
	}
	ref := table.Reference()
	res := PreviewResult{
		PayerCurrency:     NormalizeCode(in.PayerCurrency),
		PayoutCurrency:    NormalizeCode(in.PayoutCurrency),
		ReferenceCurrency: ref,
		FeePercent:        in.FeePercent,
		MissingRates:      MissingRates(table, in.BudgetCurrency, in.PayerCurrency, in.PayoutCurrency),
	}
	if in.IsFree || in.Budget.IsZero() {
		return res, nil
	}

	res.GrossAmount = Convert(in.Budget, in.BudgetCurrency, in.PayerCurrency, table)
	res.PayerAmount = res.GrossAmount
	if in.SplitMode == SplitModeEqual && in.ParticipantCount > 1 {
		res.PayerAmount = allocate(res.GrossAmount, in.ParticipantCount, 0)
	}

	grossRef := Convert(in.Budget, in.BudgetCurrency, ref, table)
	fb, err := ComputeFee(grossRef, in.FeePercent)
	if err != nil {
		return PreviewResult{}, err
	}
	res.FeeInReference = fb.Fee
	res.NetInReference = fb.Net
	res.PayoutAmount = Convert(fb.Net, ref, in.PayoutCurrency, table)
	return res, nil
}

// Matches reports whether two previews quote the same figures.
func (p PreviewResult) Matches(other PreviewResult) bool {
	return p.PayerCurrency == other.PayerCurrency &&
		p.PayoutCurrency == other.PayoutCurrency &&
		p.PayerAmount.Equal(other.PayerAmount) &&
		p.GrossAmount.Equal(other.GrossAmount) &&
		p.FeePercent.Equal(other.FeePercent) &&
		p.FeeInReference.Equal(other.FeeInReference) &&
		p.NetInReference.Equal(other.NetInReference) &&
		p.PayoutAmount.Equal(other.PayoutAmount)
}
