// Package notify delivers fire-and-forget settlement events to users.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	EventPaymentConfirmed    = "payment_confirmed"
	EventSessionPaid         = "session_paid"
	EventPayoutRecorded      = "payout_recorded"
	EventComplaintFiled      = "complaint_filed"
	EventTransactionReverted = "transaction_reverted"
	EventPaymentReminder     = "payment_reminder"
)

// Event is one message addressed to a single user.
type Event struct {
	Type          string         `json:"type"`
	UserID        uuid.UUID      `json:"user_id"`
	SessionID     *uuid.UUID     `json:"session_id,omitempty"`
	TransactionID *uuid.UUID     `json:"transaction_id,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	At            time.Time      `json:"at"`
}

// Notifier sends an event. Callers log failures and carry on.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier writes events to the structured log. It is the sink used when no
// broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, event Event) error {
	fields := []zap.Field{
		zap.String("event", event.Type),
		zap.String("user_id", event.UserID.String()),
	}
	if event.SessionID != nil {
		fields = append(fields, zap.String("session_id", event.SessionID.String()))
	}
	if event.TransactionID != nil {
		fields = append(fields, zap.String("transaction_id", event.TransactionID.String()))
	}
	n.logger.Info("notification", fields...)
	return nil
}
