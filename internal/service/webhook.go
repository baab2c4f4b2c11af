package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ayo6706/tutor-settlement/internal/domain"
	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrPaymentMismatch  = errors.New("payment does not match the participant's share")
)

// WebhookService accepts payment confirmations pushed by the payment processor.
type WebhookService struct {
	settlement *SettlementService
	hmacKey    []byte
	skipSig    bool
}

func NewWebhookService(settlement *SettlementService, hmacKey string, skipSignature bool) *WebhookService {
	return &WebhookService{
		settlement: settlement,
		hmacKey:    []byte(hmacKey),
		skipSig:    skipSignature,
	}
}

// PaymentWebhookPayload is the processor's notice that one participant paid.
// Amount and Currency are optional; when present they must match the share.
type PaymentWebhookPayload struct {
	SessionID     uuid.UUID        `json:"session_id"`
	ParticipantID uuid.UUID        `json:"participant_id"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Currency      string           `json:"currency,omitempty"`
	Reference     string           `json:"reference"`
}

// HandlePaymentWebhook verifies the signature and confirms the payment on
// behalf of the participant. Redelivered notices are no-ops.
func (s *WebhookService) HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) (PaymentResult, error) {
	if !s.verifyHMAC(payload, signature) {
		return PaymentResult{}, ErrInvalidSignature
	}

	var in PaymentWebhookPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		return PaymentResult{}, fmt.Errorf("%w: invalid payload: %v", models.ErrInvalidRequest, err)
	}
	in.Reference = strings.TrimSpace(in.Reference)
	if in.SessionID == uuid.Nil || in.ParticipantID == uuid.Nil {
		return PaymentResult{}, fmt.Errorf("%w: session_id and participant_id are required", models.ErrInvalidRequest)
	}
	if in.Reference == "" {
		return PaymentResult{}, fmt.Errorf("%w: reference is required", models.ErrInvalidRequest)
	}

	system := models.Principal{Role: models.RoleSystem}
	if in.Amount != nil || in.Currency != "" {
		if err := s.checkAmount(ctx, system, in); err != nil {
			return PaymentResult{}, err
		}
	}

	res, err := s.settlement.ConfirmPayment(ctx, system, in.SessionID, in.ParticipantID)
	if err != nil {
		return PaymentResult{}, err
	}
	zap.L().Info("payment webhook processed",
		zap.String("session_id", in.SessionID.String()),
		zap.String("participant_id", in.ParticipantID.String()),
		zap.String("reference", in.Reference),
	)
	return res, nil
}

func (s *WebhookService) checkAmount(ctx context.Context, p models.Principal, in PaymentWebhookPayload) error {
	session, err := s.settlement.loadSession(ctx, p, in.SessionID)
	if err != nil {
		return err
	}
	if in.Currency != "" && domain.NormalizeCode(in.Currency) != session.PayerCurrency {
		return fmt.Errorf("%w: paid in %s, expected %s", ErrPaymentMismatch, domain.NormalizeCode(in.Currency), session.PayerCurrency)
	}
	if in.Amount == nil {
		return nil
	}
	table, err := s.settlement.currencies.Table(ctx)
	if err != nil {
		return err
	}
	expected, err := domain.PayerShare(session, in.ParticipantID, table)
	if err != nil {
		return err
	}
	if !domain.Round2(*in.Amount).Equal(expected) {
		return fmt.Errorf("%w: paid %s, expected %s %s", ErrPaymentMismatch, in.Amount, expected, session.PayerCurrency)
	}
	return nil
}

// verifyHMAC checks a "sha256=<hex>" signature of the raw payload.
func (s *WebhookService) verifyHMAC(payload []byte, signature string) bool {
	if s.skipSig {
		return true
	}
	if len(s.hmacKey) == 0 {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(Sign(s.hmacKey, payload)))
}

// Sign returns the signature the processor is expected to send.
func Sign(key, payload []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
