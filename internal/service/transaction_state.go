package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/ayo6706/tutor-settlement/internal/repository"
	"github.com/google/uuid"
)

// persistTransition writes every derived field of tx in one statement and
// records the audit entry in the same database transaction. The state machine
// check has already happened in the domain layer.
func persistTransition(ctx context.Context, qtx repository.Querier, audit *AuditService, prevStatus string, tx models.Transaction, actorID *uuid.UUID, action string, metadata any) error {
	rows, err := qtx.UpdateTransactionSettlement(ctx, tx)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	if err := requireExactlyOne(rows, "update transaction settlement"); err != nil {
		return err
	}
	return audit.Write(ctx, qtx, entityTransaction, tx.ID, actorID, action, prevStatus, tx.Status, metadata)
}
