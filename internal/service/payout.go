package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ayo6706/tutor-settlement/internal/domain"
	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/ayo6706/tutor-settlement/internal/notify"
	"github.com/ayo6706/tutor-settlement/internal/observability"
	"github.com/ayo6706/tutor-settlement/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PayoutInput is an admin payout edit. Omitted values are derived.
type PayoutInput struct {
	ExchangeRate       *decimal.Decimal `json:"exchange_rate,omitempty"`
	PayoutAmount       *decimal.Decimal `json:"payout_amount,omitempty"`
	OverrideFeePercent *decimal.Decimal `json:"override_fee_percent,omitempty"`
	Note               string           `json:"note"`
	Draft              bool             `json:"draft"`
}

// PayoutResult carries the updated transaction and the advisory rate check.
type PayoutResult struct {
	Transaction models.Transaction `json:"transaction"`
	RateCheck   domain.RateCheck   `json:"rate_check"`
}

// ComplaintInput is what a learner files against a pending transaction.
type ComplaintInput struct {
	Reason    string   `json:"reason"`
	ProofURLs []string `json:"proof_urls"`
}

// RecordPayout appends one history entry per call. A draft keeps the
// transaction pending; a final call moves it to paid_to_teacher.
func (s *SettlementService) RecordPayout(ctx context.Context, p models.Principal, transactionID uuid.UUID, in PayoutInput) (PayoutResult, error) {
	res, err := s.recordPayout(ctx, p, transactionID, in)
	observability.IncrementSettlementOperation("record_payout", err)
	return res, err
}

func (s *SettlementService) recordPayout(ctx context.Context, p models.Principal, transactionID uuid.UUID, in PayoutInput) (PayoutResult, error) {
	if err := requireAdmin(p); err != nil {
		return PayoutResult{}, err
	}
	table, err := s.currencies.Table(ctx)
	if err != nil {
		return PayoutResult{}, err
	}

	var out domain.PayoutOutcome
	var history []models.RateHistoryEntry
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		tx, err := qtx.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return notFound(err, ErrTransactionNotFound, transactionID)
		}
		history, err = qtx.ListRateHistory(ctx, transactionID)
		if err != nil {
			return fmt.Errorf("list rate history: %w", err)
		}
		var last *models.RateHistoryEntry
		if len(history) > 0 {
			last = &history[len(history)-1]
		}

		out, err = domain.ApplyPayout(tx, domain.PayoutCommand{
			ExchangeRate:       in.ExchangeRate,
			PayoutAmount:       in.PayoutAmount,
			OverrideFeePercent: in.OverrideFeePercent,
			Note:               strings.TrimSpace(in.Note),
			Draft:              in.Draft,
			ActorID:            actorOf(p),
			Now:                s.now(),
		}, table, s.tolerance, last)
		if err != nil {
			return err
		}

		entry, err := qtx.InsertRateHistory(ctx, out.Entry)
		if err != nil {
			return fmt.Errorf("append rate history: %w", err)
		}
		out.Entry = entry
		history = append(history, entry)

		action := "payout_recorded"
		if in.Draft {
			action = "payout_drafted"
		}
		return persistTransition(ctx, qtx, s.audit, out.PreviousStatus, out.Transaction, actorOf(p), action, map[string]any{
			"exchange_rate":        entry.Rate.String(),
			"payout_amount":        entry.PayoutAmount.String(),
			"platform_fee_percent": out.Transaction.PlatformFeePercent.String(),
			"fee_changed":          out.FeeChanged,
			"rate_check":           out.RateCheck.Level,
			"note":                 entry.Note,
		})
	})
	if err != nil {
		return PayoutResult{}, err
	}

	tx := out.Transaction
	tx.ExchangeRateHistory = history
	observability.IncrementRateCheck(out.RateCheck.Level)
	fields := []zap.Field{
		zap.String("transaction_id", tx.ID.String()),
		zap.String("status", tx.Status),
		zap.String("exchange_rate", out.Entry.Rate.String()),
		zap.String("payout_amount", out.Entry.PayoutAmount.String()),
		zap.String("rate_check", out.RateCheck.Level),
	}
	switch out.RateCheck.Level {
	case domain.RateCheckSoft, domain.RateCheckHard:
		zap.L().Warn("payout rate deviates from table", append(fields, zap.String("message", out.RateCheck.Message))...)
	default:
		zap.L().Info("payout recorded", fields...)
	}

	if !in.Draft {
		s.notify(ctx, notify.Event{
			Type:          notify.EventPayoutRecorded,
			UserID:        tx.TeacherID,
			SessionID:     &tx.SessionID,
			TransactionID: &tx.ID,
			Data: map[string]any{
				"payout_amount":   out.Entry.PayoutAmount.String(),
				"payout_currency": tx.PayoutCurrency,
			},
		})
	}
	return PayoutResult{Transaction: tx, RateCheck: out.RateCheck}, nil
}

// ReverseToLearner refunds a pending transaction and resolves its open complaints.
func (s *SettlementService) ReverseToLearner(ctx context.Context, p models.Principal, transactionID uuid.UUID, reason string) (models.Transaction, error) {
	tx, err := s.reverseToLearner(ctx, p, transactionID, reason)
	observability.IncrementSettlementOperation("reverse_to_learner", err)
	return tx, err
}

func (s *SettlementService) reverseToLearner(ctx context.Context, p models.Principal, transactionID uuid.UUID, reason string) (models.Transaction, error) {
	if err := requireAdmin(p); err != nil {
		return models.Transaction{}, err
	}
	var tx models.Transaction
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		current, err := qtx.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return notFound(err, ErrTransactionNotFound, transactionID)
		}
		tx, err = domain.ApplyReversal(current, s.now())
		if err != nil {
			return err
		}
		resolved, err := qtx.ResolveOpenComplaints(ctx, transactionID, *tx.SettledAt)
		if err != nil {
			return fmt.Errorf("resolve complaints: %w", err)
		}
		return persistTransition(ctx, qtx, s.audit, current.Status, tx, actorOf(p), "reverted", map[string]any{
			"reason":              strings.TrimSpace(reason),
			"complaints_resolved": resolved,
		})
	})
	if err != nil {
		return models.Transaction{}, err
	}
	zap.L().Info("transaction reverted to learner", zap.String("transaction_id", tx.ID.String()))
	for _, uid := range []uuid.UUID{tx.LearnerID, tx.TeacherID} {
		s.notify(ctx, notify.Event{
			Type:          notify.EventTransactionReverted,
			UserID:        uid,
			SessionID:     &tx.SessionID,
			TransactionID: &tx.ID,
		})
	}
	return tx, nil
}

// FileComplaint records a dispute while the payout is still pending. The
// transaction status does not change.
func (s *SettlementService) FileComplaint(ctx context.Context, p models.Principal, transactionID uuid.UUID, in ComplaintInput) (models.Complaint, error) {
	c, err := s.fileComplaint(ctx, p, transactionID, in)
	observability.IncrementSettlementOperation("file_complaint", err)
	return c, err
}

func (s *SettlementService) fileComplaint(ctx context.Context, p models.Principal, transactionID uuid.UUID, in ComplaintInput) (models.Complaint, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return models.Complaint{}, fmt.Errorf("%w: reason is required", models.ErrInvalidRequest)
	}
	proof := make([]string, 0, len(in.ProofURLs))
	for _, u := range in.ProofURLs {
		if u = strings.TrimSpace(u); u != "" {
			proof = append(proof, u)
		}
	}

	var (
		complaint models.Complaint
		tx        models.Transaction
	)
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		var err error
		tx, err = qtx.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return notFound(err, ErrTransactionNotFound, transactionID)
		}
		if err := authorize(p, tx.LearnerID); err != nil {
			return err
		}
		if err := domain.CheckComplaintAllowed(tx); err != nil {
			return err
		}
		complaint = models.Complaint{
			ID:            uuid.New(),
			TransactionID: tx.ID,
			FiledBy:       p.UserID,
			Reason:        reason,
			ProofURLs:     proof,
			Status:        domain.ComplaintStatusOpen,
			CreatedAt:     s.timestamp(),
		}
		if err := qtx.InsertComplaint(ctx, complaint); err != nil {
			return fmt.Errorf("insert complaint: %w", err)
		}
		return s.audit.Write(ctx, qtx, entityTransaction, tx.ID, actorOf(p), "complaint_filed", tx.Status, tx.Status, map[string]any{
			"complaint_id": complaint.ID,
			"proof_count":  len(proof),
		})
	})
	if err != nil {
		return models.Complaint{}, err
	}
	zap.L().Info("complaint filed",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("user_id", p.UserID.String()),
	)
	s.notify(ctx, notify.Event{
		Type:          notify.EventComplaintFiled,
		UserID:        tx.TeacherID,
		SessionID:     &tx.SessionID,
		TransactionID: &tx.ID,
	})
	return complaint, nil
}
