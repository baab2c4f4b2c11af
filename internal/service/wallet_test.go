package service

import (
	"context"
	"testing"

	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletShowsEstimateUntilPaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tx := pendingNPRToUSD(t, env)

	wallet, err := env.settlement.GetWallet(ctx, userPrincipal(tx.TeacherID), tx.TeacherID)
	require.NoError(t, err)
	assert.Empty(t, wallet.AsLearner)
	require.Len(t, wallet.AsTeacher, 1)
	entry := wallet.AsTeacher[0]
	assert.True(t, entry.PayoutIsEstimate)
	assert.Equal(t, "USD", entry.DisplayPayout.Currency)
	// 900 NPR at the 134 sell rate.
	assert.Equal(t, "6.72", entry.DisplayPayout.Amount.String())

	_, err = env.settlement.RecordPayout(ctx, testAdmin, tx.ID, PayoutInput{ExchangeRate: decPtr("0.0075")})
	require.NoError(t, err)

	wallet, err = env.settlement.GetWallet(ctx, userPrincipal(tx.TeacherID), tx.TeacherID)
	require.NoError(t, err)
	entry = wallet.AsTeacher[0]
	assert.False(t, entry.PayoutIsEstimate)
	assert.Equal(t, "6.75", entry.DisplayPayout.Amount.String())

	learnerWallet, err := env.settlement.GetWallet(ctx, testAdmin, tx.LearnerID)
	require.NoError(t, err)
	require.Len(t, learnerWallet.AsLearner, 1)
	assert.Equal(t, tx.ID, learnerWallet.AsLearner[0].Transaction.ID)
}

func TestWalletAndTransactionAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tx := pendingNPRToUSD(t, env)
	stranger := userPrincipal(uuid.New())

	_, err := env.settlement.GetWallet(ctx, stranger, tx.LearnerID)
	require.ErrorIs(t, err, models.ErrForbidden)

	_, err = env.settlement.GetTransaction(ctx, stranger, tx.ID)
	require.ErrorIs(t, err, models.ErrForbidden)

	_, err = env.settlement.ListComplaints(ctx, stranger, tx.ID)
	require.ErrorIs(t, err, models.ErrForbidden)

	_, err = env.settlement.GetTransaction(ctx, testAdmin, uuid.New())
	require.ErrorIs(t, err, ErrTransactionNotFound)

	got, err := env.settlement.GetTransaction(ctx, userPrincipal(tx.LearnerID), tx.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.ExchangeRateHistory)
	assert.Empty(t, got.ExchangeRateHistory)
}
