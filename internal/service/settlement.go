package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/tutor-settlement/internal/cache"
	"github.com/ayo6706/tutor-settlement/internal/domain"
	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/ayo6706/tutor-settlement/internal/notify"
	"github.com/ayo6706/tutor-settlement/internal/observability"
	"github.com/ayo6706/tutor-settlement/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// SettlementService is the only component that persists settlement state. It
// loads records, runs the pure domain rules and writes the results atomically.
type SettlementService struct {
	store      QueryStore
	currencies *CurrencyService
	notifier   notify.Notifier
	reminders  cache.ReminderGate
	audit      *AuditService
	tolerance  domain.Tolerance
	now        func() time.Time
}

func NewSettlementService(store QueryStore, currencies *CurrencyService, notifier notify.Notifier, reminders cache.ReminderGate, tolerance domain.Tolerance) *SettlementService {
	if notifier == nil {
		notifier = notify.NewLogNotifier(zap.L())
	}
	if reminders == nil {
		reminders = cache.NewMemoryReminderGate(24 * time.Hour)
	}
	return &SettlementService{
		store:      store,
		currencies: currencies,
		notifier:   notifier,
		reminders:  reminders,
		audit:      NewAuditService(),
		tolerance:  tolerance,
		now:        time.Now,
	}
}

// Offer is a teacher's offer on a learner request, as the learner sees it
// before accepting. Currencies may be given explicitly or resolved from the
// users' countries.
type Offer struct {
	SessionID      uuid.UUID       `json:"session_id"`
	LearnerID      uuid.UUID       `json:"learner_id"`
	TeacherID      uuid.UUID       `json:"teacher_id"`
	GroupMemberIDs []uuid.UUID     `json:"group_member_ids"`
	Budget         decimal.Decimal `json:"budget"`
	BudgetCurrency string          `json:"budget_currency"`
	IsFree         bool            `json:"is_free"`
	SplitMode      string          `json:"payment_split_mode"`
	PayerCurrency  string          `json:"payer_currency"`
	PayerCountry   string          `json:"payer_country"`
	PayoutCurrency string          `json:"payout_currency"`
	PayoutCountry  string          `json:"payout_country"`
}

// Preview pairs the priced offer with the session it would create.
type Preview struct {
	Result  domain.PreviewResult
	Session models.Session
}

// PaymentResult is returned by ConfirmPayment. Transaction is set once the
// session is fully paid.
type PaymentResult struct {
	Transaction *models.Transaction `json:"transaction,omitempty"`
	Split       domain.SplitStatus  `json:"split"`
}

func (s *SettlementService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// PreviewAcceptance prices an offer with the current table and the teacher's
// fee. Missing rates are priced leniently and listed in the result.
func (s *SettlementService) PreviewAcceptance(ctx context.Context, p models.Principal, offer Offer) (domain.PreviewResult, error) {
	preview, err := s.preview(ctx, p, offer)
	if err != nil {
		return domain.PreviewResult{}, err
	}
	return preview.Result, nil
}

func (s *SettlementService) preview(ctx context.Context, p models.Principal, offer Offer) (Preview, error) {
	if err := authorize(p, offer.LearnerID); err != nil {
		return Preview{}, err
	}
	if offer.LearnerID == uuid.Nil || offer.TeacherID == uuid.Nil {
		return Preview{}, fmt.Errorf("%w: learner_id and teacher_id are required", models.ErrInvalidRequest)
	}
	table, err := s.currencies.Table(ctx)
	if err != nil {
		return Preview{}, err
	}
	fee, err := s.currencies.TeacherFeePercent(ctx, s.store.Queries(), offer.TeacherID, table)
	if err != nil {
		return Preview{}, err
	}

	payer, _ := table.ResolveCurrency(offer.PayerCurrency, offer.PayerCountry)
	payout, _ := table.ResolveCurrency(offer.PayoutCurrency, offer.PayoutCountry)
	mode := offer.SplitMode
	if mode == "" {
		mode = domain.SplitModeSingle
	}
	session := models.Session{
		ID:             offer.SessionID,
		LearnerID:      offer.LearnerID,
		TeacherID:      offer.TeacherID,
		GroupMemberIDs: offer.GroupMemberIDs,
		Budget:         offer.Budget,
		BudgetCurrency: domain.NormalizeCode(offer.BudgetCurrency),
		IsFree:         offer.IsFree,
		SplitMode:      mode,
		PaidMemberIDs:  []uuid.UUID{},
		PayerCurrency:  payer,
		PayoutCurrency: payout,
		FeePercent:     fee,
		Status:         domain.SessionStatusAccepted,
	}
	if session.BudgetCurrency == "" {
		session.BudgetCurrency = payer
	}
	if err := domain.ValidateSession(session); err != nil {
		return Preview{}, err
	}

	result, err := domain.ComputePreview(domain.PreviewInput{
		Budget:           session.Budget,
		BudgetCurrency:   session.BudgetCurrency,
		IsFree:           session.IsFree,
		SplitMode:        session.SplitMode,
		ParticipantCount: len(domain.Participants(session)),
		PayerCurrency:    payer,
		PayoutCurrency:   payout,
		FeePercent:       fee,
	}, table)
	if err != nil {
		return Preview{}, err
	}
	return Preview{Result: result, Session: session}, nil
}

// AcceptOffer is the second phase of acceptance. The learner sends back the
// preview they confirmed; it is recomputed and must still match. The session
// is mirrored with its currencies and fee frozen. Accepting the same session
// again returns the stored copy.
func (s *SettlementService) AcceptOffer(ctx context.Context, p models.Principal, offer Offer, confirmed domain.PreviewResult) (models.Session, error) {
	session, err := s.acceptOffer(ctx, p, offer, confirmed)
	observability.IncrementSettlementOperation("accept_offer", err)
	return session, err
}

func (s *SettlementService) acceptOffer(ctx context.Context, p models.Principal, offer Offer, confirmed domain.PreviewResult) (models.Session, error) {
	if offer.SessionID == uuid.Nil {
		return models.Session{}, fmt.Errorf("%w: session_id is required", models.ErrInvalidRequest)
	}
	if existing, err := s.store.Queries().GetSession(ctx, offer.SessionID); err == nil {
		if err := authorize(p, existing.LearnerID); err != nil {
			return models.Session{}, err
		}
		return existing, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return models.Session{}, fmt.Errorf("get session %s: %w", offer.SessionID, err)
	}

	current, err := s.preview(ctx, p, offer)
	if err != nil {
		return models.Session{}, err
	}
	if !current.Result.Matches(confirmed) {
		return models.Session{}, fmt.Errorf("%w: expected payer amount %s %s", models.ErrPreviewMismatch, current.Result.PayerAmount, current.Result.PayerCurrency)
	}
	if len(current.Result.MissingRates) > 0 && !domain.IsFreeSession(current.Session) {
		return models.Session{}, fmt.Errorf("%w: rate unavailable for %s", models.ErrUnknownCurrency, current.Result.MissingRates[0])
	}

	session := current.Session
	session.AcceptedAt = s.timestamp()
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if err := qtx.InsertSession(ctx, session); err != nil {
			return fmt.Errorf("insert session %s: %w", session.ID, err)
		}
		return s.audit.Write(ctx, qtx, entitySession, session.ID, actorOf(p), "accepted", "", session.Status, map[string]any{
			"budget":          session.Budget.String(),
			"budget_currency": session.BudgetCurrency,
			"payer_currency":  session.PayerCurrency,
			"payout_currency": session.PayoutCurrency,
			"fee_percent":     session.FeePercent.String(),
			"split_mode":      session.SplitMode,
		})
	})
	if err != nil {
		return models.Session{}, err
	}
	zap.L().Info("session accepted",
		zap.String("session_id", session.ID.String()),
		zap.String("split_mode", session.SplitMode),
		zap.Bool("free", domain.IsFreeSession(session)),
	)
	return session, nil
}

// ConfirmPayment records one participant's payment. The session row stays
// locked until commit, so concurrent last payers create a single pooled
// transaction. Confirming twice is a no-op.
func (s *SettlementService) ConfirmPayment(ctx context.Context, p models.Principal, sessionID, participantID uuid.UUID) (PaymentResult, error) {
	res, err := s.confirmPayment(ctx, p, sessionID, participantID)
	observability.IncrementSettlementOperation("confirm_payment", err)
	return res, err
}

func (s *SettlementService) confirmPayment(ctx context.Context, p models.Principal, sessionID, participantID uuid.UUID) (PaymentResult, error) {
	if err := authorize(p, participantID); err != nil {
		return PaymentResult{}, err
	}
	table, err := s.currencies.Table(ctx)
	if err != nil {
		return PaymentResult{}, err
	}

	var (
		res                PaymentResult
		session            models.Session
		newlyPaid, created bool
	)
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		var err error
		session, err = qtx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return notFound(err, ErrSessionNotFound, sessionID)
		}
		if domain.IsFreeSession(session) {
			return fmt.Errorf("%w: cannot confirm payment: session %s is free", models.ErrInvalidTransition, sessionID)
		}

		newlyPaid, err = domain.MarkPaid(&session, participantID)
		if err != nil {
			return err
		}
		if newlyPaid {
			rows, err := qtx.UpdateSessionPayments(ctx, session.ID, session.PaidMemberIDs)
			if err != nil {
				return fmt.Errorf("update session payments: %w", err)
			}
			if err := requireExactlyOne(rows, "update session payments"); err != nil {
				return err
			}
			share, _ := domain.SharePrice(session, participantID)
			if err := s.audit.Write(ctx, qtx, entitySession, session.ID, actorOf(p), "payment_confirmed", "", "", map[string]any{
				"participant_id": participantID,
				"share":          share.String(),
				"currency":       session.BudgetCurrency,
			}); err != nil {
				return err
			}
		}
		res.Split = domain.SplitStatusOf(session)
		if !res.Split.CanComplete {
			return nil
		}

		tx, err := qtx.GetTransactionBySession(ctx, session.ID)
		if err == nil {
			res.Transaction = &tx
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("get transaction for session %s: %w", session.ID, err)
		}

		tx, err = domain.NewTransaction(uuid.New(), session, table, s.timestamp())
		if err != nil {
			return err
		}
		if err := qtx.InsertTransaction(ctx, tx); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		if err := s.audit.Write(ctx, qtx, entityTransaction, tx.ID, actorOf(p), "created", "", tx.Status, map[string]any{
			"session_id":           session.ID,
			"amount_paid":          tx.AmountPaid.String(),
			"payer_currency":       tx.PayerCurrency,
			"platform_fee_percent": tx.PlatformFeePercent.String(),
			"platform_fee_amount":  tx.PlatformFeeAmount.String(),
			"teacher_amount":       tx.TeacherAmount.String(),
		}); err != nil {
			return err
		}
		tx.ExchangeRateHistory = []models.RateHistoryEntry{}
		res.Transaction = &tx
		created = true
		return nil
	})
	if err != nil {
		return PaymentResult{}, err
	}

	if newlyPaid {
		s.notify(ctx, notify.Event{
			Type:      notify.EventPaymentConfirmed,
			UserID:    participantID,
			SessionID: &session.ID,
			Data:      map[string]any{"unpaid": len(res.Split.Unpaid)},
		})
	}
	if created {
		zap.L().Info("transaction created",
			zap.String("transaction_id", res.Transaction.ID.String()),
			zap.String("session_id", session.ID.String()),
			zap.String("amount_paid", res.Transaction.AmountPaid.String()),
			zap.String("payer_currency", res.Transaction.PayerCurrency),
		)
		for _, uid := range append(domain.Participants(session), session.TeacherID) {
			s.notify(ctx, notify.Event{
				Type:          notify.EventSessionPaid,
				UserID:        uid,
				SessionID:     &session.ID,
				TransactionID: &res.Transaction.ID,
			})
		}
	}
	return res, nil
}

// GetSplit reports who has paid for a session.
func (s *SettlementService) GetSplit(ctx context.Context, p models.Principal, sessionID uuid.UUID) (domain.SplitStatus, error) {
	session, err := s.loadSession(ctx, p, sessionID)
	if err != nil {
		return domain.SplitStatus{}, err
	}
	return domain.SplitStatusOf(session), nil
}

// CompleteSession marks a session completed once every required share is
// paid. Completing an already completed session returns it unchanged.
func (s *SettlementService) CompleteSession(ctx context.Context, p models.Principal, sessionID uuid.UUID) (models.Session, error) {
	var session models.Session
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		var err error
		session, err = qtx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return notFound(err, ErrSessionNotFound, sessionID)
		}
		if err := authorize(p, append(domain.Participants(session), session.TeacherID)...); err != nil {
			return err
		}
		if session.Status == domain.SessionStatusCompleted {
			return nil
		}
		if !domain.CanComplete(session) {
			st := domain.SplitStatusOf(session)
			return fmt.Errorf("%w: %d of %d participants have not paid", models.ErrIncompleteSplit, len(st.Unpaid), len(st.Required))
		}
		at := s.timestamp()
		rows, err := qtx.CompleteSession(ctx, session.ID, at)
		if err != nil {
			return fmt.Errorf("complete session: %w", err)
		}
		if err := requireExactlyOne(rows, "complete session"); err != nil {
			return err
		}
		prev := session.Status
		session.Status = domain.SessionStatusCompleted
		session.CompletedAt = &at
		return s.audit.Write(ctx, qtx, entitySession, session.ID, actorOf(p), "completed", prev, session.Status, nil)
	})
	observability.IncrementSettlementOperation("complete_session", err)
	if err != nil {
		return models.Session{}, err
	}
	return session, nil
}

func (s *SettlementService) loadSession(ctx context.Context, p models.Principal, sessionID uuid.UUID) (models.Session, error) {
	session, err := s.store.Queries().GetSession(ctx, sessionID)
	if err != nil {
		return models.Session{}, notFound(err, ErrSessionNotFound, sessionID)
	}
	if err := authorize(p, append(domain.Participants(session), session.TeacherID)...); err != nil {
		return models.Session{}, err
	}
	return session, nil
}

// notify is fire-and-forget: failures are logged and counted, never returned.
func (s *SettlementService) notify(ctx context.Context, event notify.Event) {
	if event.At.IsZero() {
		event.At = s.timestamp()
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		observability.IncrementNotificationFailure(event.Type)
		zap.L().Warn("notification failed",
			zap.String("event", event.Type),
			zap.String("user_id", event.UserID.String()),
			zap.Error(err),
		)
	}
}
