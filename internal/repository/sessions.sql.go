package repository

import (
	"context"
	"time"

	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const sessionColumns = `id, learner_id, teacher_id, group_member_ids, budget::text, budget_currency, is_free,
	split_mode, paid_member_ids, payer_currency, payout_currency, fee_percent::text, status,
	accepted_at, completed_at`

func scanSession(row pgx.Row) (models.Session, error) {
	var (
		s                    models.Session
		id, learner, teacher pgtype.UUID
		members, paid        []pgtype.UUID
		budget, fee          string
		completedAt          pgtype.Timestamptz
	)
	if err := row.Scan(
		&id, &learner, &teacher, &members, &budget, &s.BudgetCurrency, &s.IsFree,
		&s.SplitMode, &paid, &s.PayerCurrency, &s.PayoutCurrency, &fee, &s.Status,
		&s.AcceptedAt, &completedAt,
	); err != nil {
		return models.Session{}, err
	}
	s.ID = FromPgUUID(id)
	s.LearnerID = FromPgUUID(learner)
	s.TeacherID = FromPgUUID(teacher)
	s.GroupMemberIDs = fromPgUUIDs(members)
	s.PaidMemberIDs = fromPgUUIDs(paid)
	s.AcceptedAt = s.AcceptedAt.UTC()
	s.CompletedAt = fromPgTimestamptz(completedAt)

	var err error
	if s.Budget, err = parseNumeric("budget", budget); err != nil {
		return models.Session{}, err
	}
	if s.FeePercent, err = parseNumeric("fee_percent", fee); err != nil {
		return models.Session{}, err
	}
	return s, nil
}

const insertSession = `-- name: InsertSession :exec
INSERT INTO sessions (
    id, learner_id, teacher_id, group_member_ids, budget, budget_currency, is_free,
    split_mode, paid_member_ids, payer_currency, payout_currency, fee_percent, status,
    accepted_at, completed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`

func (q *Queries) InsertSession(ctx context.Context, s models.Session) error {
	_, err := q.db.Exec(ctx, insertSession,
		ToPgUUID(s.ID),
		ToPgUUID(s.LearnerID),
		ToPgUUID(s.TeacherID),
		toPgUUIDs(s.GroupMemberIDs),
		numericParam(s.Budget),
		s.BudgetCurrency,
		s.IsFree,
		s.SplitMode,
		toPgUUIDs(s.PaidMemberIDs),
		s.PayerCurrency,
		s.PayoutCurrency,
		numericParam(s.FeePercent),
		s.Status,
		s.AcceptedAt,
		toPgTimestamptz(s.CompletedAt),
	)
	return err
}

const getSession = `-- name: GetSession :one
SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1
`

func (q *Queries) GetSession(ctx context.Context, id uuid.UUID) (models.Session, error) {
	return scanSession(q.db.QueryRow(ctx, getSession, ToPgUUID(id)))
}

const getSessionForUpdate = `-- name: GetSessionForUpdate :one
SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1 FOR UPDATE
`

func (q *Queries) GetSessionForUpdate(ctx context.Context, id uuid.UUID) (models.Session, error) {
	return scanSession(q.db.QueryRow(ctx, getSessionForUpdate, ToPgUUID(id)))
}

const updateSessionPayments = `-- name: UpdateSessionPayments :execrows
UPDATE sessions SET paid_member_ids = $2 WHERE id = $1
`

func (q *Queries) UpdateSessionPayments(ctx context.Context, id uuid.UUID, paidMemberIDs []uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, updateSessionPayments, ToPgUUID(id), toPgUUIDs(paidMemberIDs))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const completeSession = `-- name: CompleteSession :execrows
UPDATE sessions SET status = 'completed', completed_at = $2
WHERE id = $1 AND status <> 'completed'
`

func (q *Queries) CompleteSession(ctx context.Context, id uuid.UUID, completedAt time.Time) (int64, error) {
	result, err := q.db.Exec(ctx, completeSession, ToPgUUID(id), completedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listSessionsAwaitingPayment = `-- name: ListSessionsAwaitingPayment :many
SELECT ` + sessionColumns + ` FROM sessions s
WHERE s.status = 'accepted'
  AND s.split_mode = 'equal'
  AND NOT s.is_free
  AND s.budget > 0
  AND NOT EXISTS (SELECT 1 FROM transactions t WHERE t.session_id = s.id)
ORDER BY s.accepted_at
LIMIT $1
`

func (q *Queries) ListSessionsAwaitingPayment(ctx context.Context, limit int32) ([]models.Session, error) {
	rows, err := q.db.Query(ctx, listSessionsAwaitingPayment, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
