package service

import (
	"context"
	"testing"

	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/ayo6706/tutor-settlement/internal/notify"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemindUnpaidRespectsCooldown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := env.accept(t, groupOffer("300", 2))
	_, err := env.settlement.ConfirmPayment(ctx, userPrincipal(session.LearnerID), session.ID, session.LearnerID)
	require.NoError(t, err)

	_, err = env.settlement.RemindUnpaid(ctx, userPrincipal(uuid.New()), session.ID)
	require.ErrorIs(t, err, models.ErrForbidden)

	sent, err := env.settlement.RemindUnpaid(ctx, userPrincipal(session.LearnerID), session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	events := env.notifier.ofType(notify.EventPaymentReminder)
	require.Len(t, events, 2)
	assert.Equal(t, session.GroupMemberIDs[0], events[0].UserID)
	assert.Equal(t, "100", events[0].Data["share"])

	sent, err = env.settlement.RemindUnpaid(ctx, userPrincipal(session.LearnerID), session.ID)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestSendDueRemindersSweepsUnpaidSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unpaid := env.accept(t, groupOffer("300", 2))
	env.accept(t, singleOffer("10", "USD", "NPR", "USD"))
	env.accept(t, groupOffer("0", 2))
	paid := env.accept(t, groupOffer("100", 1))
	env.payAll(t, paid)

	sent, err := env.settlement.SendDueReminders(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	for _, e := range env.notifier.ofType(notify.EventPaymentReminder) {
		require.NotNil(t, e.SessionID)
		assert.Equal(t, unpaid.ID, *e.SessionID)
	}

	sent, err = env.settlement.SendDueReminders(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, sent)
}
