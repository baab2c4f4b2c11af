package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CurrencyRate is the value of one unit of Code expressed in the reference currency.
// BuyRate applies when the platform receives the currency, SellRate when it pays it out.
type CurrencyRate struct {
	Code      string          `json:"code"`
	BuyRate   decimal.Decimal `json:"buy_rate"`
	SellRate  decimal.Decimal `json:"sell_rate"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type CountryCurrency struct {
	CountryCode  string `json:"country_code"`
	CurrencyCode string `json:"currency_code"`
}

// CurrencySnapshot is the externally supplied currency table.
type CurrencySnapshot struct {
	Rates             []CurrencyRate    `json:"rates"`
	CountryCurrency   []CountryCurrency `json:"country_currency"`
	DefaultFeePercent decimal.Decimal   `json:"default_fee_percent"`
}

// Session mirrors an accepted request/offer. Currencies and fee percent are
// snapshotted at acceptance so later table edits never re-price it.
type Session struct {
	ID             uuid.UUID       `json:"id"`
	LearnerID      uuid.UUID       `json:"learner_id"`
	TeacherID      uuid.UUID       `json:"teacher_id"`
	GroupMemberIDs []uuid.UUID     `json:"group_member_ids"`
	Budget         decimal.Decimal `json:"budget"`
	BudgetCurrency string          `json:"budget_currency"`
	IsFree         bool            `json:"is_free"`
	SplitMode      string          `json:"payment_split_mode"`
	PaidMemberIDs  []uuid.UUID     `json:"paid_member_ids"`
	PayerCurrency  string          `json:"payer_currency"`
	PayoutCurrency string          `json:"payout_currency"`
	FeePercent     decimal.Decimal `json:"fee_percent"`
	Status         string          `json:"status"`
	AcceptedAt     time.Time       `json:"accepted_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// Transaction is the settlement record of one accepted session.
// ExchangeRate is expressed in payout-currency units per reference unit.
type Transaction struct {
	ID                  uuid.UUID          `json:"id"`
	SessionID           uuid.UUID          `json:"session_id"`
	LearnerID           uuid.UUID          `json:"learner_id"`
	TeacherID           uuid.UUID          `json:"teacher_id"`
	AmountPaid          decimal.Decimal    `json:"amount_paid"`
	PayerCurrency       string             `json:"payer_currency"`
	PlatformFeePercent  decimal.Decimal    `json:"platform_fee_percent"`
	PlatformFeeAmount   decimal.Decimal    `json:"platform_fee_amount"`
	TeacherAmount       decimal.Decimal    `json:"teacher_amount"`
	PayoutCurrency      string             `json:"payout_currency"`
	ExchangeRate        *decimal.Decimal   `json:"exchange_rate"`
	PayoutAmount        *decimal.Decimal   `json:"payout_amount"`
	Status              string             `json:"status"`
	PaidAt              time.Time          `json:"paid_at"`
	SettledAt           *time.Time         `json:"settled_at,omitempty"`
	UpdatedAt           time.Time          `json:"updated_at"`
	ExchangeRateHistory []RateHistoryEntry `json:"exchange_rate_history"`
}

// RateHistoryEntry is one immutable admin payout edit.
type RateHistoryEntry struct {
	ID            int64           `json:"id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	At            time.Time       `json:"at"`
	Rate          decimal.Decimal `json:"rate"`
	PayoutAmount  decimal.Decimal `json:"payout_amount"`
	FeePercent    decimal.Decimal `json:"fee_percent"`
	Note          string          `json:"note"`
	ActorID       *uuid.UUID      `json:"actor_id,omitempty"`
	Finalized     bool            `json:"finalized"`
}

type Complaint struct {
	ID            uuid.UUID  `json:"id"`
	TransactionID uuid.UUID  `json:"transaction_id"`
	FiledBy       uuid.UUID  `json:"filed_by"`
	Reason        string     `json:"reason"`
	ProofURLs     []string   `json:"proof_urls"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// Principal is the authenticated caller of an orchestrator operation.
type Principal struct {
	UserID uuid.UUID
	Role   string
}

// IsAdmin is true for administrators and for internal system callers such as
// the payment webhook.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin || p.Role == RoleSystem
}

const (
	RoleAdmin  = "admin"
	RoleUser   = "user"
	RoleSystem = "system"
)
