package domain

import (
	"testing"
	"time"

	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groupSession(mode string, budget string, members int) models.Session {
	s := models.Session{
		ID:             uuid.New(),
		LearnerID:      uuid.New(),
		TeacherID:      uuid.New(),
		Budget:         dec(budget),
		BudgetCurrency: "USD",
		SplitMode:      mode,
	}
	for i := 0; i < members; i++ {
		s.GroupMemberIDs = append(s.GroupMemberIDs, uuid.New())
	}
	return s
}

func TestRequiredParticipants(t *testing.T) {
	s := groupSession(SplitModeEqual, "300", 2)
	s.GroupMemberIDs = append(s.GroupMemberIDs, s.LearnerID, s.GroupMemberIDs[0])

	required := RequiredParticipants(s)
	require.Len(t, required, 3)
	assert.Equal(t, s.LearnerID, required[0])

	s.SplitMode = SplitModeSingle
	assert.Equal(t, []uuid.UUID{s.LearnerID}, RequiredParticipants(s))
	assert.Len(t, Participants(s), 3)
}

func TestEqualSplitScenario(t *testing.T) {
	s := groupSession(SplitModeEqual, "300", 2)
	for _, id := range Participants(s) {
		share, err := SharePrice(s, id)
		require.NoError(t, err)
		assert.Equal(t, "100", share.StringFixed(0))
		assert.True(t, share.Equal(dec("100.00")))
	}

	ids := Participants(s)
	for i, id := range ids {
		assert.False(t, CanComplete(s), "complete before payment %d", i)
		added, err := MarkPaid(&s, id)
		require.NoError(t, err)
		assert.True(t, added)
	}
	assert.True(t, CanComplete(s))

	added, err := MarkPaid(&s, ids[0])
	require.NoError(t, err)
	assert.False(t, added, "paying twice is a no-op")
	assert.Len(t, s.PaidMemberIDs, 3)
}

func TestSplitCompletenessForAllGroupSizes(t *testing.T) {
	for n := 1; n <= MaxParticipants; n++ {
		s := groupSession(SplitModeEqual, "120", n-1)
		require.NoError(t, ValidateSession(s))
		ids := Participants(s)
		require.Len(t, ids, n)
		for i, id := range ids {
			require.False(t, CanComplete(s), "n=%d after %d payments", n, i)
			_, err := MarkPaid(&s, id)
			require.NoError(t, err)
		}
		require.True(t, CanComplete(s), "n=%d after all payments", n)
	}
}

func TestSingleSplitOnlyLearnerGates(t *testing.T) {
	s := groupSession(SplitModeSingle, "80", 3)

	share, err := SharePrice(s, s.LearnerID)
	require.NoError(t, err)
	assert.True(t, share.Equal(dec("80")))

	memberShare, err := SharePrice(s, s.GroupMemberIDs[0])
	require.NoError(t, err)
	assert.True(t, memberShare.IsZero())

	_, err = MarkPaid(&s, s.GroupMemberIDs[0])
	require.ErrorIs(t, err, models.ErrNotParticipant)

	_, err = MarkPaid(&s, s.LearnerID)
	require.NoError(t, err)
	assert.True(t, CanComplete(s))
}

func TestFreeSessionsCompleteImmediately(t *testing.T) {
	s := groupSession(SplitModeEqual, "0", 4)
	assert.True(t, CanComplete(s))

	s = groupSession(SplitModeEqual, "50", 4)
	s.IsFree = true
	assert.True(t, CanComplete(s))
	share, err := SharePrice(s, s.LearnerID)
	require.NoError(t, err)
	assert.True(t, share.IsZero())
}

func TestValidateSession(t *testing.T) {
	s := groupSession(SplitModeEqual, "10", MaxParticipants)
	require.ErrorIs(t, ValidateSession(s), models.ErrParticipantLimitExceeded)

	s = groupSession("thirds", "10", 1)
	require.ErrorIs(t, ValidateSession(s), models.ErrInvalidAmount)

	s = groupSession(SplitModeSingle, "-10", 0)
	require.ErrorIs(t, ValidateSession(s), models.ErrInvalidAmount)

	s = groupSession(SplitModeSingle, "100.005", 0)
	require.ErrorIs(t, ValidateSession(s), models.ErrInvalidAmount)

	s = groupSession(SplitModeSingle, "100.010", 0)
	require.NoError(t, ValidateSession(s))
}

func TestSharePriceRejectsStrangers(t *testing.T) {
	s := groupSession(SplitModeEqual, "10", 1)
	_, err := SharePrice(s, uuid.New())
	require.ErrorIs(t, err, models.ErrNotParticipant)
	_, err = MarkPaid(&s, uuid.New())
	require.ErrorIs(t, err, models.ErrNotParticipant)
}

func TestSplitStatusOf(t *testing.T) {
	s := groupSession(SplitModeEqual, "300", 2)
	_, err := MarkPaid(&s, s.GroupMemberIDs[1])
	require.NoError(t, err)

	st := SplitStatusOf(s)
	assert.Equal(t, SplitModeEqual, st.Mode)
	assert.Equal(t, []uuid.UUID{s.GroupMemberIDs[1]}, st.Paid)
	assert.Equal(t, []uuid.UUID{s.LearnerID, s.GroupMemberIDs[0]}, st.Unpaid)
	assert.True(t, st.SharePrice.Equal(dec("100")))
	assert.False(t, st.CanComplete)
}

func TestEqualSharesAddUpToBudget(t *testing.T) {
	table := testTable(t)
	budgets := []string{"100", "0.01", "0.05", "7", "10.01", "333.34", "999.99", "1234.57"}
	for n := 1; n <= MaxParticipants; n++ {
		for _, budget := range budgets {
			s := groupSession(SplitModeEqual, budget, n-1)
			s.PayerCurrency = "NPR"
			ids := Participants(s)

			collected := decimal.Zero
			payerCollected := decimal.Zero
			for i, id := range ids {
				share, err := SharePrice(s, id)
				require.NoError(t, err)
				assert.False(t, share.IsNegative())
				assert.True(t, share.Equal(Round2(share)), "n=%d budget=%s share %s has sub-cent digits", n, budget, share)
				if i > 0 {
					learnerShare, _ := SharePrice(s, s.LearnerID)
					assert.True(t, learnerShare.Sub(share).LessThan(decimal.New(int64(n), -2)), "n=%d budget=%s", n, budget)
				}
				collected = collected.Add(share)

				payerShare, err := PayerShare(s, id, table)
				require.NoError(t, err)
				payerCollected = payerCollected.Add(payerShare)
			}
			assert.True(t, collected.Equal(s.Budget), "n=%d budget=%s collected %s", n, budget, collected)

			tx, err := NewTransaction(uuid.New(), s, table, time.Now())
			require.NoError(t, err)
			assert.True(t, payerCollected.Equal(tx.AmountPaid), "n=%d budget=%s collected %s, amount paid %s", n, budget, payerCollected, tx.AmountPaid)
		}
	}
}

func TestUnevenSplitGivesRemainderToLearner(t *testing.T) {
	s := groupSession(SplitModeEqual, "100", 2)

	learnerShare, err := SharePrice(s, s.LearnerID)
	require.NoError(t, err)
	assert.Equal(t, "33.34", learnerShare.String())
	for _, id := range s.GroupMemberIDs {
		share, err := SharePrice(s, id)
		require.NoError(t, err)
		assert.Equal(t, "33.33", share.String())
	}
	assert.True(t, SplitStatusOf(s).SharePrice.Equal(learnerShare))
}
