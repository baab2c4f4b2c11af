package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ayo6706/tutor-settlement/internal/db"
	"github.com/ayo6706/tutor-settlement/internal/domain"
	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/ayo6706/tutor-settlement/internal/repository"
	"github.com/ayo6706/tutor-settlement/internal/testutil/dblock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = godotenv.Load("../../.env")
}

func setupStore(t *testing.T) *repository.Store {
	t.Helper()
	url := dblock.DatabaseURL(t)

	ctx := context.Background()
	pool, err := db.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool))

	_, err = pool.Exec(ctx, `TRUNCATE TABLE audit_log, complaints, exchange_rate_history, transactions, sessions,
		currency_rates, country_currencies, platform_settings, teacher_fee_overrides, idempotency_keys CASCADE`)
	require.NoError(t, err)
	return repository.NewStore(pool)
}

func TestSessionAndTransactionRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	s := models.Session{
		ID:             uuid.New(),
		LearnerID:      uuid.New(),
		TeacherID:      uuid.New(),
		GroupMemberIDs: []uuid.UUID{uuid.New(), uuid.New()},
		Budget:         decimal.RequireFromString("300.00"),
		BudgetCurrency: "USD",
		SplitMode:      domain.SplitModeEqual,
		PayerCurrency:  "USD",
		PayoutCurrency: "NPR",
		FeePercent:     decimal.RequireFromString("12.5"),
		Status:         domain.SessionStatusAccepted,
		AcceptedAt:     now,
	}
	require.NoError(t, store.Queries().InsertSession(ctx, s))

	awaiting, err := store.Queries().ListSessionsAwaitingPayment(ctx, 10)
	require.NoError(t, err)
	require.Len(t, awaiting, 1)

	err = store.RunInTx(ctx, func(q repository.Querier) error {
		locked, err := q.GetSessionForUpdate(ctx, s.ID)
		if err != nil {
			return err
		}
		_, err = q.UpdateSessionPayments(ctx, s.ID, append(locked.PaidMemberIDs, s.LearnerID))
		return err
	})
	require.NoError(t, err)

	got, err := store.Queries().GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.GroupMemberIDs, got.GroupMemberIDs)
	assert.Equal(t, []uuid.UUID{s.LearnerID}, got.PaidMemberIDs)
	assert.True(t, got.FeePercent.Equal(s.FeePercent))
	assert.True(t, got.Budget.Equal(s.Budget))

	tx := models.Transaction{
		ID:                 uuid.New(),
		SessionID:          s.ID,
		LearnerID:          s.LearnerID,
		TeacherID:          s.TeacherID,
		AmountPaid:         decimal.RequireFromString("300"),
		PayerCurrency:      "USD",
		PlatformFeePercent: decimal.RequireFromString("12.5"),
		PlatformFeeAmount:  decimal.RequireFromString("37.5"),
		TeacherAmount:      decimal.RequireFromString("262.5"),
		PayoutCurrency:     "NPR",
		Status:             domain.TxStatusPendingPayout,
		PaidAt:             now,
		UpdatedAt:          now,
	}
	require.NoError(t, store.Queries().InsertTransaction(ctx, tx))

	dup := tx
	dup.ID = uuid.New()
	require.Error(t, store.Queries().InsertTransaction(ctx, dup), "one transaction per session")

	rate := decimal.RequireFromString("133.5")
	payout := decimal.RequireFromString("35043.75")
	tx.ExchangeRate = &rate
	tx.PayoutAmount = &payout
	tx.Status = domain.TxStatusPaidToTeacher
	tx.SettledAt = &now
	n, err := store.Queries().UpdateTransactionSettlement(ctx, tx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	loaded, err := store.Queries().GetTransactionBySession(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.ExchangeRate)
	assert.True(t, loaded.ExchangeRate.Equal(rate))
	assert.True(t, loaded.PayoutAmount.Equal(payout))
	assert.Equal(t, domain.TxStatusPaidToTeacher, loaded.Status)

	byTeacher, err := store.Queries().ListTransactionsByTeacher(ctx, s.TeacherID)
	require.NoError(t, err)
	require.Len(t, byTeacher, 1)

	_, err = store.Queries().GetTransaction(ctx, uuid.New())
	require.True(t, errors.Is(err, pgx.ErrNoRows))
}

func TestCurrencyTableRows(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	q := store.Queries()

	require.NoError(t, q.UpsertCurrencyRate(ctx, models.CurrencyRate{
		Code: "USD", BuyRate: decimal.RequireFromString("133.5"), SellRate: decimal.RequireFromString("134"), UpdatedAt: time.Now(),
	}))
	require.NoError(t, q.UpsertCountryCurrency(ctx, models.CountryCurrency{CountryCode: "US", CurrencyCode: "USD"}))
	require.NoError(t, q.SetDefaultFeePercent(ctx, decimal.NewFromInt(10)))

	rates, err := q.ListCurrencyRates(ctx)
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.True(t, rates[0].SellRate.Equal(decimal.NewFromInt(134)))

	fee, err := q.GetDefaultFeePercent(ctx)
	require.NoError(t, err)
	assert.True(t, fee.Equal(decimal.NewFromInt(10)))

	_, err = q.GetTeacherFeeOverride(ctx, uuid.New())
	require.ErrorIs(t, err, pgx.ErrNoRows)
}

func insertPendingTransaction(t *testing.T, store *repository.Store) models.Transaction {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	learner := uuid.New()
	s := models.Session{
		ID:             uuid.New(),
		LearnerID:      learner,
		TeacherID:      uuid.New(),
		Budget:         decimal.RequireFromString("100"),
		BudgetCurrency: "USD",
		SplitMode:      domain.SplitModeSingle,
		PayerCurrency:  "USD",
		PayoutCurrency: "NPR",
		FeePercent:     decimal.RequireFromString("10"),
		Status:         domain.SessionStatusAccepted,
		PaidMemberIDs:  []uuid.UUID{learner},
		AcceptedAt:     now,
	}
	require.NoError(t, store.Queries().InsertSession(ctx, s))

	tx := models.Transaction{
		ID:                 uuid.New(),
		SessionID:          s.ID,
		LearnerID:          s.LearnerID,
		TeacherID:          s.TeacherID,
		AmountPaid:         decimal.RequireFromString("100"),
		PayerCurrency:      "USD",
		PlatformFeePercent: decimal.RequireFromString("10"),
		PlatformFeeAmount:  decimal.RequireFromString("10"),
		TeacherAmount:      decimal.RequireFromString("90"),
		PayoutCurrency:     "NPR",
		Status:             domain.TxStatusPendingPayout,
		PaidAt:             now,
		UpdatedAt:          now,
	}
	require.NoError(t, store.Queries().InsertTransaction(ctx, tx))
	return tx
}

func TestTransactionRowLockSerializesTerminalTransitions(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	tx := insertPendingTransaction(t, store)

	table, err := domain.NewCurrencyTable("NPR", models.CurrencySnapshot{
		Rates:             []models.CurrencyRate{{Code: "USD", BuyRate: decimal.RequireFromString("133.5")}},
		DefaultFeePercent: decimal.RequireFromString("10"),
	})
	require.NoError(t, err)

	locked := make(chan struct{})
	reverseErr := make(chan error, 1)
	go func() {
		reverseErr <- store.RunInTx(ctx, func(q repository.Querier) error {
			current, err := q.GetTransactionForUpdate(ctx, tx.ID)
			if err != nil {
				return err
			}
			close(locked)
			// Hold the row while the payout tries to read it.
			time.Sleep(200 * time.Millisecond)
			reverted, err := domain.ApplyReversal(current, time.Now())
			if err != nil {
				return err
			}
			_, err = q.UpdateTransactionSettlement(ctx, reverted)
			return err
		})
	}()

	<-locked
	payoutErr := store.RunInTx(ctx, func(q repository.Querier) error {
		current, err := q.GetTransactionForUpdate(ctx, tx.ID)
		if err != nil {
			return err
		}
		out, err := domain.ApplyPayout(current, domain.PayoutCommand{Now: time.Now()}, table, domain.DefaultTolerance(), nil)
		if err != nil {
			return err
		}
		_, err = q.UpdateTransactionSettlement(ctx, out.Transaction)
		return err
	})

	require.NoError(t, <-reverseErr)
	require.ErrorIs(t, payoutErr, models.ErrInvalidTransition)

	loaded, err := store.Queries().GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusRevertedToLearner, loaded.Status)
	assert.Nil(t, loaded.PayoutAmount)
}
