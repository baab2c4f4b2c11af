package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ayo6706/tutor-settlement/internal/domain"
	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/ayo6706/tutor-settlement/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession() models.Session {
	return models.Session{
		ID:             uuid.New(),
		LearnerID:      uuid.New(),
		TeacherID:      uuid.New(),
		GroupMemberIDs: []uuid.UUID{uuid.New()},
		Budget:         decimal.NewFromInt(300),
		BudgetCurrency: "USD",
		SplitMode:      domain.SplitModeEqual,
		PayerCurrency:  "USD",
		PayoutCurrency: "NPR",
		FeePercent:     decimal.NewFromInt(10),
		Status:         domain.SessionStatusAccepted,
		AcceptedAt:     time.Now().UTC(),
	}
}

func TestMissingRowsReturnErrNoRows(t *testing.T) {
	q := New().Queries()
	ctx := context.Background()

	_, err := q.GetSession(ctx, uuid.New())
	require.ErrorIs(t, err, pgx.ErrNoRows)
	_, err = q.GetTransaction(ctx, uuid.New())
	require.ErrorIs(t, err, pgx.ErrNoRows)
	_, err = q.GetTransactionBySession(ctx, uuid.New())
	require.ErrorIs(t, err, pgx.ErrNoRows)
	_, err = q.GetDefaultFeePercent(ctx)
	require.ErrorIs(t, err, pgx.ErrNoRows)
	_, err = q.GetTeacherFeeOverride(ctx, uuid.New())
	require.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	store := New()
	ctx := context.Background()
	s := sampleSession()

	boom := errors.New("boom")
	err := store.RunInTx(ctx, func(q repository.Querier) error {
		require.NoError(t, q.InsertSession(ctx, s))
		_, err := q.InsertAuditLog(ctx, repository.InsertAuditLogParams{EntityType: "session", EntityID: s.ID, Action: "accepted"})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.Queries().GetSession(ctx, s.ID)
	require.ErrorIs(t, err, pgx.ErrNoRows)
	assert.Empty(t, store.AuditEntries())

	require.NoError(t, store.RunInTx(ctx, func(q repository.Querier) error {
		return q.InsertSession(ctx, s)
	}))
	got, err := store.Queries().GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
}

func TestOneTransactionPerSession(t *testing.T) {
	q := New().Queries()
	ctx := context.Background()
	s := sampleSession()
	require.NoError(t, q.InsertSession(ctx, s))

	tx := models.Transaction{ID: uuid.New(), SessionID: s.ID, Status: domain.TxStatusPendingPayout}
	require.NoError(t, q.InsertTransaction(ctx, tx))

	err := q.InsertTransaction(ctx, models.Transaction{ID: uuid.New(), SessionID: s.ID})
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "23505", pgErr.Code)

	awaiting, err := q.ListSessionsAwaitingPayment(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, awaiting)
}

func TestReturnedSessionsAreCopies(t *testing.T) {
	q := New().Queries()
	ctx := context.Background()
	s := sampleSession()
	require.NoError(t, q.InsertSession(ctx, s))

	got, err := q.GetSession(ctx, s.ID)
	require.NoError(t, err)
	got.PaidMemberIDs = append(got.PaidMemberIDs, s.LearnerID)

	again, err := q.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, again.PaidMemberIDs)

	n, err := q.UpdateSessionPayments(ctx, s.ID, []uuid.UUID{s.LearnerID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	again, err = q.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{s.LearnerID}, again.PaidMemberIDs)
}

func TestRateHistoryRejectsDuplicateTimestamps(t *testing.T) {
	q := New().Queries()
	ctx := context.Background()
	txID := uuid.New()
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	first, err := q.InsertRateHistory(ctx, models.RateHistoryEntry{TransactionID: txID, At: at, Rate: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	_, err = q.InsertRateHistory(ctx, models.RateHistoryEntry{TransactionID: txID, At: at})
	require.Error(t, err)

	_, err = q.InsertRateHistory(ctx, models.RateHistoryEntry{TransactionID: txID, At: at.Add(time.Microsecond)})
	require.NoError(t, err)

	items, err := q.ListRateHistory(ctx, txID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[1].At.After(items[0].At))
}

func TestIdempotencyKeyLifecycle(t *testing.T) {
	q := New().Queries()
	ctx := context.Background()

	row, err := q.ReserveIdempotencyKey(ctx, repository.ReserveIdempotencyKeyParams{IdempotencyKey: "k1", RequestHash: "h1", Method: "POST", Path: "/x"})
	require.NoError(t, err)
	assert.True(t, row.InProgress)

	_, err = q.ReserveIdempotencyKey(ctx, repository.ReserveIdempotencyKeyParams{IdempotencyKey: "k1", RequestHash: "h1"})
	require.ErrorIs(t, err, pgx.ErrNoRows)

	_, err = q.FinalizeIdempotencyKey(ctx, repository.FinalizeIdempotencyKeyParams{IdempotencyKey: "k1", RequestHash: "other"})
	require.ErrorIs(t, err, pgx.ErrNoRows)

	row, err = q.FinalizeIdempotencyKey(ctx, repository.FinalizeIdempotencyKeyParams{IdempotencyKey: "k1", RequestHash: "h1", ResponseStatus: 201, ResponseBody: []byte(`{}`)})
	require.NoError(t, err)
	assert.False(t, row.InProgress)
	assert.EqualValues(t, 201, row.ResponseStatus)
}
