package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	IssueFeeSplitMismatch     = "fee_split_mismatch"
	IssueMissingFinalHistory  = "missing_final_history"
	IssueSettledWithoutPayout = "settled_without_payout"
	IssueCompletedWithoutTx   = "completed_without_transaction"
)

// ReconciliationIssue names one record that breaks a settlement invariant.
type ReconciliationIssue struct {
	EntityID uuid.UUID `json:"entity_id"`
	Kind     string    `json:"kind"`
}

const listReconciliationIssues = `-- name: ListReconciliationIssues :many
SELECT id, 'fee_split_mismatch' AS kind
FROM transactions
WHERE platform_fee_amount + teacher_amount <> amount_paid
UNION ALL
SELECT t.id, 'missing_final_history'
FROM transactions t
WHERE t.status = 'paid_to_teacher'
  AND NOT EXISTS (
    SELECT 1 FROM exchange_rate_history h
    WHERE h.transaction_id = t.id AND h.finalized
  )
UNION ALL
SELECT id, 'settled_without_payout'
FROM transactions
WHERE status = 'paid_to_teacher' AND (payout_amount IS NULL OR exchange_rate IS NULL OR settled_at IS NULL)
UNION ALL
SELECT s.id, 'completed_without_transaction'
FROM sessions s
WHERE s.status = 'completed'
  AND NOT s.is_free
  AND s.budget > 0
  AND NOT EXISTS (SELECT 1 FROM transactions t WHERE t.session_id = s.id)
ORDER BY kind, id
`

func (q *Queries) ListReconciliationIssues(ctx context.Context) ([]ReconciliationIssue, error) {
	rows, err := q.db.Query(ctx, listReconciliationIssues)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ReconciliationIssue
	for rows.Next() {
		var (
			id   pgtype.UUID
			kind string
		)
		if err := rows.Scan(&id, &kind); err != nil {
			return nil, err
		}
		items = append(items, ReconciliationIssue{EntityID: FromPgUUID(id), Kind: kind})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
