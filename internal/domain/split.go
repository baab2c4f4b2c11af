package domain

import (
	"fmt"

	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SplitStatus summarizes who owes what for a session.
type SplitStatus struct {
	SessionID   uuid.UUID       `json:"session_id"`
	Mode        string          `json:"mode"`
	Required    []uuid.UUID     `json:"required"`
	Paid        []uuid.UUID     `json:"paid"`
	Unpaid      []uuid.UUID     `json:"unpaid"`
	// SharePrice is the primary learner's share.
	SharePrice  decimal.Decimal `json:"share_price"`
	Currency    string          `json:"currency"`
	CanComplete bool            `json:"can_complete"`
}

// RequiredParticipants returns the learner followed by group members, without
// duplicates. In single mode only the learner is required to pay.
func RequiredParticipants(s models.Session) []uuid.UUID {
	if s.SplitMode != SplitModeEqual {
		return []uuid.UUID{s.LearnerID}
	}
	return Participants(s)
}

// Participants lists everyone attending, payer or not.
func Participants(s models.Session) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s.GroupMemberIDs)+1)
	seen := make(map[uuid.UUID]struct{}, len(s.GroupMemberIDs)+1)
	for _, id := range append([]uuid.UUID{s.LearnerID}, s.GroupMemberIDs...) {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ValidateSession checks split mode, budget and the participant ceiling.
func ValidateSession(s models.Session) error {
	switch s.SplitMode {
	case SplitModeSingle, SplitModeEqual:
	default:
		return fmt.Errorf("%w: unsupported payment split mode %q", models.ErrInvalidAmount, s.SplitMode)
	}
	if err := ValidateMoneyAmount("budget", s.Budget); err != nil {
		return err
	}
	if n := len(Participants(s)); n > MaxParticipants {
		return fmt.Errorf("%w: %d participants, at most %d allowed", models.ErrParticipantLimitExceeded, n, MaxParticipants)
	}
	return nil
}

// IsFreeSession reports sessions that need no payment at all.
func IsFreeSession(s models.Session) bool {
	return s.IsFree || s.Budget.IsZero()
}

// SharePrice is what one participant owes, in the session's budget currency.
// Equal shares always add up to the budget; the primary learner pays the
// leftover cents.
func SharePrice(s models.Session, participantID uuid.UUID) (decimal.Decimal, error) {
	return shareOf(s, participantID, s.Budget)
}

// PayerShare is a participant's part of the gross in the payer currency. The
// gross is split after conversion, so the shares add up to the transaction's
// amount paid.
func PayerShare(s models.Session, participantID uuid.UUID, table *CurrencyTable) (decimal.Decimal, error) {
	if IsFreeSession(s) {
		return shareOf(s, participantID, decimal.Zero)
	}
	gross, err := ConvertStrict(s.Budget, s.BudgetCurrency, s.PayerCurrency, table)
	if err != nil {
		return decimal.Zero, err
	}
	return shareOf(s, participantID, gross)
}

func shareOf(s models.Session, participantID uuid.UUID, total decimal.Decimal) (decimal.Decimal, error) {
	participants := Participants(s)
	idx := indexOf(participants, participantID)
	if idx < 0 {
		return decimal.Zero, fmt.Errorf("%w: %s is not part of session %s", models.ErrNotParticipant, participantID, s.ID)
	}
	if IsFreeSession(s) {
		return decimal.Zero, nil
	}
	if s.SplitMode == SplitModeEqual {
		return allocate(total, len(participants), idx), nil
	}
	if participantID == s.LearnerID {
		return total, nil
	}
	return decimal.Zero, nil
}

// allocate splits total into n shares of whole cents. Index 0 takes the
// remainder.
func allocate(total decimal.Decimal, n, idx int) decimal.Decimal {
	total = Round2(total)
	if n <= 1 {
		return total
	}
	base := total.Div(decimal.NewFromInt(int64(n))).Truncate(2)
	if idx == 0 {
		return total.Sub(base.Mul(decimal.NewFromInt(int64(n - 1))))
	}
	return base
}

// CanComplete reports whether every required share has been paid.
func CanComplete(s models.Session) bool {
	if IsFreeSession(s) {
		return true
	}
	paid := toSet(s.PaidMemberIDs)
	for _, id := range RequiredParticipants(s) {
		if _, ok := paid[id]; !ok {
			return false
		}
	}
	return true
}

// MarkPaid adds a participant to the paid set. It reports false when the
// participant had already paid.
func MarkPaid(s *models.Session, participantID uuid.UUID) (bool, error) {
	if !contains(RequiredParticipants(*s), participantID) {
		if contains(Participants(*s), participantID) {
			return false, fmt.Errorf("%w: %s owes nothing under %s split", models.ErrNotParticipant, participantID, s.SplitMode)
		}
		return false, fmt.Errorf("%w: %s is not part of session %s", models.ErrNotParticipant, participantID, s.ID)
	}
	if contains(s.PaidMemberIDs, participantID) {
		return false, nil
	}
	s.PaidMemberIDs = append(s.PaidMemberIDs, participantID)
	return true, nil
}

// SplitStatusOf computes the split summary for display and gating.
func SplitStatusOf(s models.Session) SplitStatus {
	required := RequiredParticipants(s)
	paid := toSet(s.PaidMemberIDs)
	st := SplitStatus{
		SessionID:   s.ID,
		Mode:        s.SplitMode,
		Required:    required,
		Paid:        []uuid.UUID{},
		Unpaid:      []uuid.UUID{},
		Currency:    s.BudgetCurrency,
		CanComplete: CanComplete(s),
	}
	for _, id := range required {
		if _, ok := paid[id]; ok {
			st.Paid = append(st.Paid, id)
		} else {
			st.Unpaid = append(st.Unpaid, id)
		}
	}
	if share, err := SharePrice(s, s.LearnerID); err == nil {
		st.SharePrice = share
	}
	return st
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	return indexOf(ids, id) >= 0
}

func indexOf(ids []uuid.UUID, id uuid.UUID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func toSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
