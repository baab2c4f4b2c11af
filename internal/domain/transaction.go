package domain

import (
	"fmt"
	"time"

	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var transactionTransitions = map[string]map[string]struct{}{
	TxStatusPendingPayout: {
		TxStatusPaidToTeacher:     {},
		TxStatusRevertedToLearner: {},
	},
	TxStatusPaidToTeacher:     {},
	TxStatusRevertedToLearner: {},
}

func CanTransition(current, next string) bool {
	nextStates, ok := transactionTransitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}

func IsTerminal(status string) bool {
	next, ok := transactionTransitions[status]
	return ok && len(next) == 0
}

func invalidTransition(op string, tx models.Transaction) error {
	return fmt.Errorf("%w: cannot %s: transaction %s is %s", models.ErrInvalidTransition, op, tx.ID, tx.Status)
}

// NewTransaction prices a session into a pending_payout transaction. The gross
// is the full budget converted into the payer currency with the strict table.
func NewTransaction(id uuid.UUID, s models.Session, table *CurrencyTable, now time.Time) (models.Transaction, error) {
	if err := ValidateSession(s); err != nil {
		return models.Transaction{}, err
	}
	gross, err := ConvertStrict(s.Budget, s.BudgetCurrency, s.PayerCurrency, table)
	if err != nil {
		return models.Transaction{}, err
	}
	fb, err := ComputeFee(gross, s.FeePercent)
	if err != nil {
		return models.Transaction{}, err
	}
	now = now.UTC().Truncate(time.Microsecond)
	return models.Transaction{
		ID:                 id,
		SessionID:          s.ID,
		LearnerID:          s.LearnerID,
		TeacherID:          s.TeacherID,
		AmountPaid:         gross,
		PayerCurrency:      NormalizeCode(s.PayerCurrency),
		PlatformFeePercent: fb.FeePercent,
		PlatformFeeAmount:  fb.Fee,
		TeacherAmount:      fb.Net,
		PayoutCurrency:     NormalizeCode(s.PayoutCurrency),
		Status:             TxStatusPendingPayout,
		PaidAt:             now,
		UpdatedAt:          now,
	}, nil
}

// PayoutCommand is an admin payout edit. Nil fields fall back to derived values.
type PayoutCommand struct {
	ExchangeRate       *decimal.Decimal
	PayoutAmount       *decimal.Decimal
	OverrideFeePercent *decimal.Decimal
	Note               string
	Draft              bool
	ActorID            *uuid.UUID
	Now                time.Time
}

// PayoutOutcome carries the updated transaction and the history entry to append.
type PayoutOutcome struct {
	Transaction    models.Transaction
	Entry          models.RateHistoryEntry
	PreviousStatus string
	FeeChanged     bool
	RateCheck      RateCheck
}

// ApplyPayout computes a payout edit on a copy of tx. Nothing is applied when
// an error is returned.
func ApplyPayout(tx models.Transaction, cmd PayoutCommand, table *CurrencyTable, tol Tolerance, last *models.RateHistoryEntry) (PayoutOutcome, error) {
	out := PayoutOutcome{PreviousStatus: tx.Status}
	if tx.Status != TxStatusPendingPayout {
		return out, invalidTransition("record payout", tx)
	}
	if cmd.ExchangeRate != nil {
		if !cmd.ExchangeRate.IsPositive() {
			return out, fmt.Errorf("%w: exchange rate must be positive, got %s", models.ErrInvalidAmount, cmd.ExchangeRate)
		}
		if err := ValidateScale("exchange rate", *cmd.ExchangeRate, RateScale); err != nil {
			return out, err
		}
	}
	if cmd.PayoutAmount != nil {
		if err := ValidateMoneyAmount("payout amount", *cmd.PayoutAmount); err != nil {
			return out, err
		}
	}

	if cmd.OverrideFeePercent != nil {
		fb, err := ComputeFee(tx.AmountPaid, *cmd.OverrideFeePercent)
		if err != nil {
			return out, err
		}
		out.FeeChanged = !fb.FeePercent.Equal(tx.PlatformFeePercent)
		tx.PlatformFeePercent = fb.FeePercent
		tx.PlatformFeeAmount = fb.Fee
		tx.TeacherAmount = fb.Net
	}

	expected, expErr := ExpectedPayoutRate(table, tx.PayoutCurrency)
	var rate decimal.Decimal
	switch {
	case cmd.ExchangeRate != nil:
		rate = *cmd.ExchangeRate
	case tx.ExchangeRate != nil:
		rate = *tx.ExchangeRate
	case expErr == nil:
		rate = expected
	default:
		return out, expErr
	}

	var payout decimal.Decimal
	if cmd.PayoutAmount != nil {
		payout = Round2(*cmd.PayoutAmount)
	} else {
		netRef, err := ConvertStrict(tx.TeacherAmount, tx.PayerCurrency, table.Reference(), table)
		if err != nil {
			return out, err
		}
		payout = Round2(netRef.Mul(rate))
	}

	if expErr == nil {
		out.RateCheck = CheckRate(rate, expected, tol)
	} else {
		out.RateCheck = RateCheck{Level: RateCheckUnavailable, Entered: rate, Message: expErr.Error()}
	}

	at := NextHistoryTimestamp(cmd.Now, last)
	tx.ExchangeRate = &rate
	tx.PayoutAmount = &payout
	tx.UpdatedAt = at
	if !cmd.Draft {
		tx.Status = TxStatusPaidToTeacher
		tx.SettledAt = &at
	}

	out.Transaction = tx
	out.Entry = models.RateHistoryEntry{
		TransactionID: tx.ID,
		At:            at,
		Rate:          rate,
		PayoutAmount:  payout,
		FeePercent:    tx.PlatformFeePercent,
		Note:          cmd.Note,
		ActorID:       cmd.ActorID,
		Finalized:     !cmd.Draft,
	}
	return out, nil
}

// NextHistoryTimestamp returns a timestamp strictly after the previous entry,
// at the microsecond precision the store keeps.
func NextHistoryTimestamp(now time.Time, last *models.RateHistoryEntry) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if last != nil && !now.After(last.At) {
		return last.At.UTC().Add(time.Microsecond)
	}
	return now
}

// CheckComplaintAllowed permits disputes only before the teacher is paid.
func CheckComplaintAllowed(tx models.Transaction) error {
	if tx.Status != TxStatusPendingPayout {
		return invalidTransition("file complaint", tx)
	}
	return nil
}

// ApplyReversal returns tx moved to reverted_to_learner.
func ApplyReversal(tx models.Transaction, now time.Time) (models.Transaction, error) {
	if !CanTransition(tx.Status, TxStatusRevertedToLearner) {
		return tx, invalidTransition("reverse to learner", tx)
	}
	now = now.UTC().Truncate(time.Microsecond)
	tx.Status = TxStatusRevertedToLearner
	tx.SettledAt = &now
	tx.UpdatedAt = now
	return tx, nil
}

// DisplayPayout returns the recorded payout, or a lenient estimate flagged as such.
func DisplayPayout(tx models.Transaction, table *CurrencyTable) (decimal.Decimal, bool) {
	if tx.PayoutAmount != nil {
		return *tx.PayoutAmount, false
	}
	netRef := Convert(tx.TeacherAmount, tx.PayerCurrency, table.Reference(), table)
	return Convert(netRef, table.Reference(), tx.PayoutCurrency, table), true
}
