package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ayo6706/tutor-settlement/internal/repository"
	"github.com/google/uuid"
)

const (
	entityTransaction = "transaction"
	entitySession     = "session"
	entityCurrency    = "currency_table"
)

// AuditService writes immutable audit trail entries.
type AuditService struct{}

func NewAuditService() *AuditService {
	return &AuditService{}
}

// Write stores a single immutable audit record using the caller's transaction.
func (s *AuditService) Write(ctx context.Context, qtx repository.Querier, entityType string, entityID uuid.UUID, actorID *uuid.UUID, action, prevState, nextState string, metadata any) error {
	var raw []byte
	if metadata != nil {
		var err error
		if raw, err = json.Marshal(metadata); err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
	}
	if _, err := qtx.InsertAuditLog(ctx, repository.InsertAuditLogParams{
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Action:     action,
		PrevState:  textParam(prevState),
		NextState:  textParam(nextState),
		Metadata:   raw,
	}); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func textParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
