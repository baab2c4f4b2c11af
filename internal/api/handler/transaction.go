package handler

import (
	"net/http"

	"github.com/ayo6706/tutor-settlement/internal/service"
)

// TransactionHandler serves transaction reads, disputes and admin payouts.
type TransactionHandler struct {
	settlement *service.SettlementService
}

func NewTransactionHandler(settlement *service.SettlementService) *TransactionHandler {
	return &TransactionHandler{settlement: settlement}
}

type ReversalRequest struct {
	Reason string `json:"reason"`
}

// GetTransaction handles GET /v1/transactions/{id}
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	tx, err := h.settlement.GetTransaction(r.Context(), p, id)
	if err != nil {
		respondServiceError(w, r, "get_transaction", err)
		return
	}
	RespondJSON(w, http.StatusOK, tx)
}

// RateHistory handles GET /v1/transactions/{id}/rate-history
func (h *TransactionHandler) RateHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	history, err := h.settlement.RateHistory(r.Context(), p, id)
	if err != nil {
		respondServiceError(w, r, "get_rate_history", err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"items": history})
}

// FileComplaint handles POST /v1/transactions/{id}/complaints
func (h *TransactionHandler) FileComplaint(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req service.ComplaintInput
	if !decodeBody(w, r, &req) {
		return
	}
	complaint, err := h.settlement.FileComplaint(r.Context(), p, id, req)
	if err != nil {
		respondServiceError(w, r, "file_complaint", err)
		return
	}
	RespondJSON(w, http.StatusCreated, complaint)
}

// ListComplaints handles GET /v1/transactions/{id}/complaints
func (h *TransactionHandler) ListComplaints(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	items, err := h.settlement.ListComplaints(r.Context(), p, id)
	if err != nil {
		respondServiceError(w, r, "list_complaints", err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"items": items})
}

// RecordPayout handles POST /v1/transactions/{id}/payouts (admin only).
func (h *TransactionHandler) RecordPayout(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req service.PayoutInput
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.settlement.RecordPayout(r.Context(), p, id, req)
	if err != nil {
		respondServiceError(w, r, "record_payout", err)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

// Reverse handles POST /v1/transactions/{id}/reversal (admin only).
func (h *TransactionHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req ReversalRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	tx, err := h.settlement.ReverseToLearner(r.Context(), p, id, req.Reason)
	if err != nil {
		respondServiceError(w, r, "reverse_to_learner", err)
		return
	}
	RespondJSON(w, http.StatusOK, tx)
}

// GetWallet handles GET /v1/users/{id}/wallet
func (h *TransactionHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	userID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	wallet, err := h.settlement.GetWallet(r.Context(), p, userID)
	if err != nil {
		respondServiceError(w, r, "get_wallet", err)
		return
	}
	RespondJSON(w, http.StatusOK, wallet)
}
