package service

import (
	"context"
	"testing"

	"github.com/ayo6706/tutor-settlement/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciliationRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reconcileSvc := NewReconciliationService(env.store)

	tx := pendingNPRToUSD(t, env)
	_, err := env.settlement.RecordPayout(ctx, testAdmin, tx.ID, PayoutInput{})
	require.NoError(t, err)
	env.accept(t, groupOffer("0", 1))

	issues, err := reconcileSvc.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, issues)

	// A fee split that no longer adds up is reported.
	require.NoError(t, env.store.RunInTx(ctx, func(q repository.Querier) error {
		stored, err := q.GetTransaction(ctx, tx.ID)
		if err != nil {
			return err
		}
		stored.TeacherAmount = dec("850")
		_, err = q.UpdateTransactionSettlement(ctx, stored)
		return err
	}))

	issues, err = reconcileSvc.Run(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, repository.IssueFeeSplitMismatch, issues[0].Kind)
	assert.Equal(t, tx.ID, issues[0].EntityID)
}
