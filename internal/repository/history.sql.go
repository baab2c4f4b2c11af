package repository

import (
	"context"
	"time"

	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const insertRateHistory = `-- name: InsertRateHistory :one
INSERT INTO exchange_rate_history (transaction_id, at, rate, payout_amount, fee_percent, note, actor_id, finalized)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id
`

func (q *Queries) InsertRateHistory(ctx context.Context, e models.RateHistoryEntry) (models.RateHistoryEntry, error) {
	row := q.db.QueryRow(ctx, insertRateHistory,
		ToPgUUID(e.TransactionID),
		e.At,
		numericParam(e.Rate),
		numericParam(e.PayoutAmount),
		numericParam(e.FeePercent),
		e.Note,
		toNullPgUUID(e.ActorID),
		e.Finalized,
	)
	if err := row.Scan(&e.ID); err != nil {
		return models.RateHistoryEntry{}, err
	}
	return e, nil
}

const listRateHistory = `-- name: ListRateHistory :many
SELECT id, transaction_id, at, rate::text, payout_amount::text, fee_percent::text, note, actor_id, finalized
FROM exchange_rate_history
WHERE transaction_id = $1
ORDER BY at, id
`

func (q *Queries) ListRateHistory(ctx context.Context, transactionID uuid.UUID) ([]models.RateHistoryEntry, error) {
	rows, err := q.db.Query(ctx, listRateHistory, ToPgUUID(transactionID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []models.RateHistoryEntry
	for rows.Next() {
		var (
			e                 models.RateHistoryEntry
			txID, actor       pgtype.UUID
			rate, payout, fee string
		)
		if err := rows.Scan(&e.ID, &txID, &e.At, &rate, &payout, &fee, &e.Note, &actor, &e.Finalized); err != nil {
			return nil, err
		}
		e.TransactionID = FromPgUUID(txID)
		e.ActorID = fromNullPgUUID(actor)
		e.At = e.At.UTC()
		if e.Rate, err = parseNumeric("rate", rate); err != nil {
			return nil, err
		}
		if e.PayoutAmount, err = parseNumeric("payout_amount", payout); err != nil {
			return nil, err
		}
		if e.FeePercent, err = parseNumeric("fee_percent", fee); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertComplaint = `-- name: InsertComplaint :exec
INSERT INTO complaints (id, transaction_id, filed_by, reason, proof_urls, status, created_at, resolved_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

func (q *Queries) InsertComplaint(ctx context.Context, c models.Complaint) error {
	proof := c.ProofURLs
	if proof == nil {
		proof = []string{}
	}
	_, err := q.db.Exec(ctx, insertComplaint,
		ToPgUUID(c.ID),
		ToPgUUID(c.TransactionID),
		ToPgUUID(c.FiledBy),
		c.Reason,
		proof,
		c.Status,
		c.CreatedAt,
		toPgTimestamptz(c.ResolvedAt),
	)
	return err
}

const listComplaints = `-- name: ListComplaints :many
SELECT id, transaction_id, filed_by, reason, proof_urls, status, created_at, resolved_at
FROM complaints
WHERE transaction_id = $1
ORDER BY created_at
`

func (q *Queries) ListComplaints(ctx context.Context, transactionID uuid.UUID) ([]models.Complaint, error) {
	rows, err := q.db.Query(ctx, listComplaints, ToPgUUID(transactionID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []models.Complaint
	for rows.Next() {
		var (
			c                 models.Complaint
			id, txID, filedBy pgtype.UUID
			resolvedAt        pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &txID, &filedBy, &c.Reason, &c.ProofURLs, &c.Status, &c.CreatedAt, &resolvedAt); err != nil {
			return nil, err
		}
		c.ID = FromPgUUID(id)
		c.TransactionID = FromPgUUID(txID)
		c.FiledBy = FromPgUUID(filedBy)
		c.CreatedAt = c.CreatedAt.UTC()
		c.ResolvedAt = fromPgTimestamptz(resolvedAt)
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const resolveOpenComplaints = `-- name: ResolveOpenComplaints :execrows
UPDATE complaints SET status = 'resolved', resolved_at = $2
WHERE transaction_id = $1 AND status = 'open'
`

func (q *Queries) ResolveOpenComplaints(ctx context.Context, transactionID uuid.UUID, resolvedAt time.Time) (int64, error) {
	result, err := q.db.Exec(ctx, resolveOpenComplaints, ToPgUUID(transactionID), resolvedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
