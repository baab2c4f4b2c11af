package repository

import (
	"context"

	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const transactionColumns = `id, session_id, learner_id, teacher_id, amount_paid::text, payer_currency,
	platform_fee_percent::text, platform_fee_amount::text, teacher_amount::text, payout_currency,
	exchange_rate::text, payout_amount::text, status, paid_at, settled_at, updated_at`

func scanTransaction(row pgx.Row) (models.Transaction, error) {
	var (
		tx                                models.Transaction
		id, session, learner, teacher     pgtype.UUID
		amountPaid, feePercent, feeAmount string
		teacherAmount                     string
		exchangeRate, payoutAmount        *string
		settledAt                         pgtype.Timestamptz
	)
	if err := row.Scan(
		&id, &session, &learner, &teacher, &amountPaid, &tx.PayerCurrency,
		&feePercent, &feeAmount, &teacherAmount, &tx.PayoutCurrency,
		&exchangeRate, &payoutAmount, &tx.Status, &tx.PaidAt, &settledAt, &tx.UpdatedAt,
	); err != nil {
		return models.Transaction{}, err
	}
	tx.ID = FromPgUUID(id)
	tx.SessionID = FromPgUUID(session)
	tx.LearnerID = FromPgUUID(learner)
	tx.TeacherID = FromPgUUID(teacher)
	tx.PaidAt = tx.PaidAt.UTC()
	tx.UpdatedAt = tx.UpdatedAt.UTC()
	tx.SettledAt = fromPgTimestamptz(settledAt)

	var err error
	if tx.AmountPaid, err = parseNumeric("amount_paid", amountPaid); err != nil {
		return models.Transaction{}, err
	}
	if tx.PlatformFeePercent, err = parseNumeric("platform_fee_percent", feePercent); err != nil {
		return models.Transaction{}, err
	}
	if tx.PlatformFeeAmount, err = parseNumeric("platform_fee_amount", feeAmount); err != nil {
		return models.Transaction{}, err
	}
	if tx.TeacherAmount, err = parseNumeric("teacher_amount", teacherAmount); err != nil {
		return models.Transaction{}, err
	}
	if tx.ExchangeRate, err = parseNullNumeric("exchange_rate", exchangeRate); err != nil {
		return models.Transaction{}, err
	}
	if tx.PayoutAmount, err = parseNullNumeric("payout_amount", payoutAmount); err != nil {
		return models.Transaction{}, err
	}
	return tx, nil
}

func collectTransactions(rows pgx.Rows) ([]models.Transaction, error) {
	defer rows.Close()
	var items []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertTransaction = `-- name: InsertTransaction :exec
INSERT INTO transactions (
    id, session_id, learner_id, teacher_id, amount_paid, payer_currency,
    platform_fee_percent, platform_fee_amount, teacher_amount, payout_currency,
    exchange_rate, payout_amount, status, paid_at, settled_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
`

func (q *Queries) InsertTransaction(ctx context.Context, tx models.Transaction) error {
	_, err := q.db.Exec(ctx, insertTransaction,
		ToPgUUID(tx.ID),
		ToPgUUID(tx.SessionID),
		ToPgUUID(tx.LearnerID),
		ToPgUUID(tx.TeacherID),
		numericParam(tx.AmountPaid),
		tx.PayerCurrency,
		numericParam(tx.PlatformFeePercent),
		numericParam(tx.PlatformFeeAmount),
		numericParam(tx.TeacherAmount),
		tx.PayoutCurrency,
		nullNumericParam(tx.ExchangeRate),
		nullNumericParam(tx.PayoutAmount),
		tx.Status,
		tx.PaidAt,
		toPgTimestamptz(tx.SettledAt),
		tx.UpdatedAt,
	)
	return err
}

const getTransaction = `-- name: GetTransaction :one
SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1
`

func (q *Queries) GetTransaction(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	return scanTransaction(q.db.QueryRow(ctx, getTransaction, ToPgUUID(id)))
}

const getTransactionForUpdate = `-- name: GetTransactionForUpdate :one
SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE
`

func (q *Queries) GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	return scanTransaction(q.db.QueryRow(ctx, getTransactionForUpdate, ToPgUUID(id)))
}

const getTransactionBySession = `-- name: GetTransactionBySession :one
SELECT ` + transactionColumns + ` FROM transactions WHERE session_id = $1
`

func (q *Queries) GetTransactionBySession(ctx context.Context, sessionID uuid.UUID) (models.Transaction, error) {
	return scanTransaction(q.db.QueryRow(ctx, getTransactionBySession, ToPgUUID(sessionID)))
}

const updateTransactionSettlement = `-- name: UpdateTransactionSettlement :execrows
UPDATE transactions
SET platform_fee_percent = $2,
    platform_fee_amount = $3,
    teacher_amount = $4,
    exchange_rate = $5,
    payout_amount = $6,
    status = $7,
    settled_at = $8,
    updated_at = $9
WHERE id = $1
`

func (q *Queries) UpdateTransactionSettlement(ctx context.Context, tx models.Transaction) (int64, error) {
	result, err := q.db.Exec(ctx, updateTransactionSettlement,
		ToPgUUID(tx.ID),
		numericParam(tx.PlatformFeePercent),
		numericParam(tx.PlatformFeeAmount),
		numericParam(tx.TeacherAmount),
		nullNumericParam(tx.ExchangeRate),
		nullNumericParam(tx.PayoutAmount),
		tx.Status,
		toPgTimestamptz(tx.SettledAt),
		tx.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listTransactionsByLearner = `-- name: ListTransactionsByLearner :many
SELECT ` + transactionColumns + ` FROM transactions WHERE learner_id = $1 ORDER BY paid_at DESC
`

func (q *Queries) ListTransactionsByLearner(ctx context.Context, learnerID uuid.UUID) ([]models.Transaction, error) {
	rows, err := q.db.Query(ctx, listTransactionsByLearner, ToPgUUID(learnerID))
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

const listTransactionsByTeacher = `-- name: ListTransactionsByTeacher :many
SELECT ` + transactionColumns + ` FROM transactions WHERE teacher_id = $1 ORDER BY paid_at DESC
`

func (q *Queries) ListTransactionsByTeacher(ctx context.Context, teacherID uuid.UUID) ([]models.Transaction, error) {
	rows, err := q.db.Query(ctx, listTransactionsByTeacher, ToPgUUID(teacherID))
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}
