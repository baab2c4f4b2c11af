package handler

import (
	"net/http"

	"github.com/ayo6706/tutor-settlement/internal/domain"
	"github.com/ayo6706/tutor-settlement/internal/service"
	"github.com/google/uuid"
)

// SettlementHandler serves offer acceptance and session payment routes.
type SettlementHandler struct {
	settlement *service.SettlementService
}

func NewSettlementHandler(settlement *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlement: settlement}
}

// AcceptRequest carries the offer together with the preview the learner confirmed.
type AcceptRequest struct {
	Offer   service.Offer        `json:"offer"`
	Preview domain.PreviewResult `json:"preview"`
}

// ConfirmPaymentRequest names the participant whose share was paid. It
// defaults to the caller.
type ConfirmPaymentRequest struct {
	ParticipantID *uuid.UUID `json:"participant_id,omitempty"`
}

// Preview handles POST /v1/settlements/preview
func (h *SettlementHandler) Preview(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	var offer service.Offer
	if !decodeBody(w, r, &offer) {
		return
	}
	preview, err := h.settlement.PreviewAcceptance(r.Context(), p, offer)
	if err != nil {
		respondServiceError(w, r, "preview_acceptance", err)
		return
	}
	RespondJSON(w, http.StatusOK, preview)
}

// Accept handles POST /v1/settlements/accept
func (h *SettlementHandler) Accept(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req AcceptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := h.settlement.AcceptOffer(r.Context(), p, req.Offer, req.Preview)
	if err != nil {
		respondServiceError(w, r, "accept_offer", err)
		return
	}
	RespondJSON(w, http.StatusCreated, session)
}

// GetSplit handles GET /v1/sessions/{id}/split
func (h *SettlementHandler) GetSplit(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	split, err := h.settlement.GetSplit(r.Context(), p, sessionID)
	if err != nil {
		respondServiceError(w, r, "get_split", err)
		return
	}
	RespondJSON(w, http.StatusOK, split)
}

// ConfirmPayment handles POST /v1/sessions/{id}/payments
func (h *SettlementHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req ConfirmPaymentRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	participant := p.UserID
	if req.ParticipantID != nil {
		participant = *req.ParticipantID
	}
	res, err := h.settlement.ConfirmPayment(r.Context(), p, sessionID, participant)
	if err != nil {
		respondServiceError(w, r, "confirm_payment", err)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

// RemindUnpaid handles POST /v1/sessions/{id}/reminders
func (h *SettlementHandler) RemindUnpaid(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	sent, err := h.settlement.RemindUnpaid(r.Context(), p, sessionID)
	if err != nil {
		respondServiceError(w, r, "remind_unpaid", err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]int{"sent": sent})
}

// CompleteSession handles POST /v1/sessions/{id}/complete
func (h *SettlementHandler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	session, err := h.settlement.CompleteSession(r.Context(), p, sessionID)
	if err != nil {
		respondServiceError(w, r, "complete_session", err)
		return
	}
	RespondJSON(w, http.StatusOK, session)
}
