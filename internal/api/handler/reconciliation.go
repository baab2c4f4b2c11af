package handler

import (
	"net/http"

	"github.com/ayo6706/tutor-settlement/internal/repository"
	"github.com/ayo6706/tutor-settlement/internal/service"
)

// ReconciliationHandler lets admins run the integrity checks on demand.
type ReconciliationHandler struct {
	svc *service.ReconciliationService
}

func NewReconciliationHandler(svc *service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{svc: svc}
}

// Run handles POST /v1/admin/reconciliation
func (h *ReconciliationHandler) Run(w http.ResponseWriter, r *http.Request) {
	issues, err := h.svc.Run(r.Context())
	if err != nil {
		respondServiceError(w, r, "run_reconciliation", err)
		return
	}
	if issues == nil {
		issues = []repository.ReconciliationIssue{}
	}
	RespondJSON(w, http.StatusOK, map[string]any{"balanced": len(issues) == 0, "issues": issues})
}
