package repository

import (
	"context"
	"time"

	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Querier is the data access contract shared by the Postgres and in-memory
// stores. Lookups that find nothing return pgx.ErrNoRows.
type Querier interface {
	InsertSession(ctx context.Context, s models.Session) error
	GetSession(ctx context.Context, id uuid.UUID) (models.Session, error)
	GetSessionForUpdate(ctx context.Context, id uuid.UUID) (models.Session, error)
	UpdateSessionPayments(ctx context.Context, id uuid.UUID, paidMemberIDs []uuid.UUID) (int64, error)
	CompleteSession(ctx context.Context, id uuid.UUID, completedAt time.Time) (int64, error)
	ListSessionsAwaitingPayment(ctx context.Context, limit int32) ([]models.Session, error)

	InsertTransaction(ctx context.Context, tx models.Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (models.Transaction, error)
	GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (models.Transaction, error)
	GetTransactionBySession(ctx context.Context, sessionID uuid.UUID) (models.Transaction, error)
	UpdateTransactionSettlement(ctx context.Context, tx models.Transaction) (int64, error)
	ListTransactionsByLearner(ctx context.Context, learnerID uuid.UUID) ([]models.Transaction, error)
	ListTransactionsByTeacher(ctx context.Context, teacherID uuid.UUID) ([]models.Transaction, error)

	InsertRateHistory(ctx context.Context, e models.RateHistoryEntry) (models.RateHistoryEntry, error)
	ListRateHistory(ctx context.Context, transactionID uuid.UUID) ([]models.RateHistoryEntry, error)

	InsertComplaint(ctx context.Context, c models.Complaint) error
	ListComplaints(ctx context.Context, transactionID uuid.UUID) ([]models.Complaint, error)
	ResolveOpenComplaints(ctx context.Context, transactionID uuid.UUID, resolvedAt time.Time) (int64, error)

	ListCurrencyRates(ctx context.Context) ([]models.CurrencyRate, error)
	UpsertCurrencyRate(ctx context.Context, r models.CurrencyRate) error
	ListCountryCurrencies(ctx context.Context) ([]models.CountryCurrency, error)
	UpsertCountryCurrency(ctx context.Context, m models.CountryCurrency) error
	GetDefaultFeePercent(ctx context.Context) (decimal.Decimal, error)
	SetDefaultFeePercent(ctx context.Context, p decimal.Decimal) error
	GetTeacherFeeOverride(ctx context.Context, teacherID uuid.UUID) (decimal.Decimal, error)
	SetTeacherFeeOverride(ctx context.Context, teacherID uuid.UUID, p decimal.Decimal) error

	InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) (int64, error)
	ListReconciliationIssues(ctx context.Context) ([]ReconciliationIssue, error)

	GetIdempotencyKey(ctx context.Context, key string) (IdempotencyKey, error)
	ReserveIdempotencyKey(ctx context.Context, arg ReserveIdempotencyKeyParams) (IdempotencyKey, error)
	FinalizeIdempotencyKey(ctx context.Context, arg FinalizeIdempotencyKeyParams) (IdempotencyKey, error)
}
