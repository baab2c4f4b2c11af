package handler

import (
	"io"
	"net/http"

	"github.com/ayo6706/tutor-settlement/internal/service"
	"go.uber.org/zap"
)

// WebhookHandler handles payment notices from the payment processor.
type WebhookHandler struct {
	webhookSvc *service.WebhookService
}

func NewWebhookHandler(webhookSvc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

// HandlePaymentWebhook handles POST /v1/webhooks/payments
// It verifies the HMAC signature and confirms the participant's payment.
func (h *WebhookHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		zap.L().Error("read webhook body failed", zap.Error(err))
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body")
		return
	}

	res, err := h.webhookSvc.HandlePaymentWebhook(r.Context(), body, r.Header.Get("X-Webhook-Signature"))
	if err != nil {
		respondServiceError(w, r, "process_payment_webhook", err)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}
