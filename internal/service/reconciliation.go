package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/tutor-settlement/internal/observability"
	"github.com/ayo6706/tutor-settlement/internal/repository"
	"go.uber.org/zap"
)

// ReconciliationService verifies settlement integrity invariants.
type ReconciliationService struct {
	store QueryStore
}

// NewReconciliationService creates a reconciliation service.
func NewReconciliationService(store QueryStore) *ReconciliationService {
	return &ReconciliationService{store: store}
}

// Run reports transactions whose fee split does not add up, payouts without a
// finalized history entry and completed paid sessions without a transaction.
// Issues are logged and counted; only query failures are returned.
func (s *ReconciliationService) Run(ctx context.Context) ([]repository.ReconciliationIssue, error) {
	issues, err := s.store.Queries().ListReconciliationIssues(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reconciliation issues: %w", err)
	}
	if len(issues) == 0 {
		zap.L().Info("settlement reconciled")
		return nil, nil
	}
	for _, issue := range issues {
		observability.IncrementReconciliationIssue(issue.Kind)
		zap.L().Error("settlement invariant violated",
			zap.String("kind", issue.Kind),
			zap.String("entity_id", issue.EntityID.String()),
		)
	}
	return issues, nil
}
