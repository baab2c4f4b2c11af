package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/tutor-settlement/internal/domain"
	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/ayo6706/tutor-settlement/internal/notify"
	"github.com/ayo6706/tutor-settlement/internal/observability"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RemindUnpaid nudges participants who still owe their share. The gate keeps
// repeated calls from spamming anyone; the count of reminders sent is returned.
func (s *SettlementService) RemindUnpaid(ctx context.Context, p models.Principal, sessionID uuid.UUID) (int, error) {
	session, err := s.loadSession(ctx, p, sessionID)
	if err != nil {
		return 0, err
	}
	return s.remind(ctx, session)
}

// SendDueReminders sweeps equal-split sessions still awaiting payment.
func (s *SettlementService) SendDueReminders(ctx context.Context, limit int32) (int, error) {
	sessions, err := s.store.Queries().ListSessionsAwaitingPayment(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list sessions awaiting payment: %w", err)
	}
	total := 0
	for _, session := range sessions {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.remind(ctx, session)
		if err != nil {
			zap.L().Warn("payment reminders failed", zap.String("session_id", session.ID.String()), zap.Error(err))
			continue
		}
		total += n
	}
	return total, nil
}

func (s *SettlementService) remind(ctx context.Context, session models.Session) (int, error) {
	st := domain.SplitStatusOf(session)
	if st.CanComplete {
		return 0, nil
	}
	sent := 0
	for _, uid := range st.Unpaid {
		ok, err := s.reminders.Allow(ctx, session.ID, uid)
		if err != nil {
			return sent, err
		}
		if !ok {
			continue
		}
		s.notify(ctx, notify.Event{
			Type:      notify.EventPaymentReminder,
			UserID:    uid,
			SessionID: &session.ID,
			Data: map[string]any{
				"share":    st.SharePrice.String(),
				"currency": st.Currency,
				"unpaid":   len(st.Unpaid),
			},
		})
		sent++
	}
	observability.AddRemindersSent(sent)
	return sent, nil
}
