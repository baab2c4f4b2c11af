// Package memstore is an in-memory implementation of repository.Querier for
// development and tests. A single mutex serializes all access, which gives
// RunInTx the same isolation a row lock would.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ayo6706/tutor-settlement/internal/domain"
	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/ayo6706/tutor-settlement/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

type state struct {
	sessions     map[uuid.UUID]models.Session
	transactions map[uuid.UUID]models.Transaction
	txBySession  map[uuid.UUID]uuid.UUID
	history      map[uuid.UUID][]models.RateHistoryEntry
	complaints   map[uuid.UUID][]models.Complaint
	rates        map[string]models.CurrencyRate
	countries    map[string]string
	defaultFee   *decimal.Decimal
	overrides    map[uuid.UUID]decimal.Decimal
	audit        []repository.InsertAuditLogParams
	idempotency  map[string]repository.IdempotencyKey
	nextID       int64
}

func newState() *state {
	return &state{
		sessions:     map[uuid.UUID]models.Session{},
		transactions: map[uuid.UUID]models.Transaction{},
		txBySession:  map[uuid.UUID]uuid.UUID{},
		history:      map[uuid.UUID][]models.RateHistoryEntry{},
		complaints:   map[uuid.UUID][]models.Complaint{},
		rates:        map[string]models.CurrencyRate{},
		countries:    map[string]string{},
		overrides:    map[uuid.UUID]decimal.Decimal{},
		idempotency:  map[string]repository.IdempotencyKey{},
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.sessions {
		c.sessions[k] = copySession(v)
	}
	for k, v := range st.transactions {
		c.transactions[k] = v
	}
	for k, v := range st.txBySession {
		c.txBySession[k] = v
	}
	for k, v := range st.history {
		c.history[k] = append([]models.RateHistoryEntry(nil), v...)
	}
	for k, v := range st.complaints {
		items := make([]models.Complaint, len(v))
		for i, cm := range v {
			items[i] = copyComplaint(cm)
		}
		c.complaints[k] = items
	}
	for k, v := range st.rates {
		c.rates[k] = v
	}
	for k, v := range st.countries {
		c.countries[k] = v
	}
	if st.defaultFee != nil {
		fee := *st.defaultFee
		c.defaultFee = &fee
	}
	for k, v := range st.overrides {
		c.overrides[k] = v
	}
	c.audit = append([]repository.InsertAuditLogParams(nil), st.audit...)
	for k, v := range st.idempotency {
		c.idempotency[k] = v
	}
	c.nextID = st.nextID
	return c
}

// Store is the in-memory counterpart of repository.Store.
type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

// Queries returns a query set that locks the store per call.
func (s *Store) Queries() repository.Querier {
	return &queries{store: s}
}

// RunInTx runs fn with the store locked. State is rolled back when fn fails.
// fn must use the Querier it is given; calling Queries() inside fn deadlocks.
func (s *Store) RunInTx(ctx context.Context, fn func(q repository.Querier) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.st.clone()
	if err := fn(&queries{store: s, locked: true}); err != nil {
		s.st = backup
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// AuditEntries returns the audit rows written so far.
func (s *Store) AuditEntries() []repository.InsertAuditLogParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repository.InsertAuditLogParams(nil), s.st.audit...)
}

type queries struct {
	store  *Store
	locked bool
}

var _ repository.Querier = (*queries)(nil)

func (q *queries) do(fn func(st *state) error) error {
	if !q.locked {
		q.store.mu.Lock()
		defer q.store.mu.Unlock()
	}
	return fn(q.store.st)
}

func duplicate(constraint string) error {
	return &pgconn.PgError{
		Code:           uniqueViolation,
		Message:        fmt.Sprintf("duplicate key value violates unique constraint %q", constraint),
		ConstraintName: constraint,
	}
}

func copySession(s models.Session) models.Session {
	s.GroupMemberIDs = append([]uuid.UUID(nil), s.GroupMemberIDs...)
	s.PaidMemberIDs = append([]uuid.UUID(nil), s.PaidMemberIDs...)
	return s
}

func copyComplaint(c models.Complaint) models.Complaint {
	c.ProofURLs = append([]string(nil), c.ProofURLs...)
	return c
}

func (q *queries) InsertSession(_ context.Context, s models.Session) error {
	return q.do(func(st *state) error {
		if _, ok := st.sessions[s.ID]; ok {
			return duplicate("sessions_pkey")
		}
		st.sessions[s.ID] = copySession(s)
		return nil
	})
}

func (q *queries) GetSession(_ context.Context, id uuid.UUID) (models.Session, error) {
	var out models.Session
	err := q.do(func(st *state) error {
		s, ok := st.sessions[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = copySession(s)
		return nil
	})
	return out, err
}

func (q *queries) GetSessionForUpdate(ctx context.Context, id uuid.UUID) (models.Session, error) {
	return q.GetSession(ctx, id)
}

func (q *queries) UpdateSessionPayments(_ context.Context, id uuid.UUID, paidMemberIDs []uuid.UUID) (int64, error) {
	var n int64
	err := q.do(func(st *state) error {
		s, ok := st.sessions[id]
		if !ok {
			return nil
		}
		s.PaidMemberIDs = append([]uuid.UUID(nil), paidMemberIDs...)
		st.sessions[id] = s
		n = 1
		return nil
	})
	return n, err
}

func (q *queries) CompleteSession(_ context.Context, id uuid.UUID, completedAt time.Time) (int64, error) {
	var n int64
	err := q.do(func(st *state) error {
		s, ok := st.sessions[id]
		if !ok || s.Status == domain.SessionStatusCompleted {
			return nil
		}
		s.Status = domain.SessionStatusCompleted
		at := completedAt
		s.CompletedAt = &at
		st.sessions[id] = s
		n = 1
		return nil
	})
	return n, err
}

func (q *queries) ListSessionsAwaitingPayment(_ context.Context, limit int32) ([]models.Session, error) {
	var out []models.Session
	err := q.do(func(st *state) error {
		for _, s := range st.sessions {
			if s.Status != domain.SessionStatusAccepted || s.SplitMode != domain.SplitModeEqual || s.IsFree || !s.Budget.IsPositive() {
				continue
			}
			if _, settled := st.txBySession[s.ID]; settled {
				continue
			}
			out = append(out, copySession(s))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].AcceptedAt.Before(out[j].AcceptedAt) })
	if limit > 0 && len(out) > int(limit) {
		out = out[:limit]
	}
	return out, err
}

func (q *queries) InsertTransaction(_ context.Context, tx models.Transaction) error {
	return q.do(func(st *state) error {
		if _, ok := st.transactions[tx.ID]; ok {
			return duplicate("transactions_pkey")
		}
		if _, ok := st.txBySession[tx.SessionID]; ok {
			return duplicate("transactions_session_id_key")
		}
		tx.ExchangeRateHistory = nil
		st.transactions[tx.ID] = tx
		st.txBySession[tx.SessionID] = tx.ID
		return nil
	})
}

func (q *queries) GetTransaction(_ context.Context, id uuid.UUID) (models.Transaction, error) {
	var out models.Transaction
	err := q.do(func(st *state) error {
		tx, ok := st.transactions[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = tx
		return nil
	})
	return out, err
}

func (q *queries) GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	return q.GetTransaction(ctx, id)
}

func (q *queries) GetTransactionBySession(_ context.Context, sessionID uuid.UUID) (models.Transaction, error) {
	var out models.Transaction
	err := q.do(func(st *state) error {
		id, ok := st.txBySession[sessionID]
		if !ok {
			return pgx.ErrNoRows
		}
		out = st.transactions[id]
		return nil
	})
	return out, err
}

func (q *queries) UpdateTransactionSettlement(_ context.Context, tx models.Transaction) (int64, error) {
	var n int64
	err := q.do(func(st *state) error {
		cur, ok := st.transactions[tx.ID]
		if !ok {
			return nil
		}
		cur.PlatformFeePercent = tx.PlatformFeePercent
		cur.PlatformFeeAmount = tx.PlatformFeeAmount
		cur.TeacherAmount = tx.TeacherAmount
		cur.ExchangeRate = tx.ExchangeRate
		cur.PayoutAmount = tx.PayoutAmount
		cur.Status = tx.Status
		cur.SettledAt = tx.SettledAt
		cur.UpdatedAt = tx.UpdatedAt
		st.transactions[tx.ID] = cur
		n = 1
		return nil
	})
	return n, err
}

func (q *queries) listTransactions(match func(models.Transaction) bool) ([]models.Transaction, error) {
	var out []models.Transaction
	err := q.do(func(st *state) error {
		for _, tx := range st.transactions {
			if match(tx) {
				out = append(out, tx)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.After(out[j].PaidAt) })
	return out, err
}

func (q *queries) ListTransactionsByLearner(_ context.Context, learnerID uuid.UUID) ([]models.Transaction, error) {
	return q.listTransactions(func(tx models.Transaction) bool { return tx.LearnerID == learnerID })
}

func (q *queries) ListTransactionsByTeacher(_ context.Context, teacherID uuid.UUID) ([]models.Transaction, error) {
	return q.listTransactions(func(tx models.Transaction) bool { return tx.TeacherID == teacherID })
}

func (q *queries) InsertRateHistory(_ context.Context, e models.RateHistoryEntry) (models.RateHistoryEntry, error) {
	err := q.do(func(st *state) error {
		for _, prev := range st.history[e.TransactionID] {
			if prev.At.Equal(e.At) {
				return duplicate("exchange_rate_history_transaction_id_at_key")
			}
		}
		st.nextID++
		e.ID = st.nextID
		st.history[e.TransactionID] = append(st.history[e.TransactionID], e)
		return nil
	})
	if err != nil {
		return models.RateHistoryEntry{}, err
	}
	return e, nil
}

func (q *queries) ListRateHistory(_ context.Context, transactionID uuid.UUID) ([]models.RateHistoryEntry, error) {
	var out []models.RateHistoryEntry
	err := q.do(func(st *state) error {
		out = append(out, st.history[transactionID]...)
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, err
}

func (q *queries) InsertComplaint(_ context.Context, c models.Complaint) error {
	return q.do(func(st *state) error {
		st.complaints[c.TransactionID] = append(st.complaints[c.TransactionID], copyComplaint(c))
		return nil
	})
}

func (q *queries) ListComplaints(_ context.Context, transactionID uuid.UUID) ([]models.Complaint, error) {
	var out []models.Complaint
	err := q.do(func(st *state) error {
		for _, c := range st.complaints[transactionID] {
			out = append(out, copyComplaint(c))
		}
		return nil
	})
	return out, err
}

func (q *queries) ResolveOpenComplaints(_ context.Context, transactionID uuid.UUID, resolvedAt time.Time) (int64, error) {
	var n int64
	err := q.do(func(st *state) error {
		items := st.complaints[transactionID]
		for i := range items {
			if items[i].Status != domain.ComplaintStatusOpen {
				continue
			}
			at := resolvedAt
			items[i].Status = domain.ComplaintStatusResolved
			items[i].ResolvedAt = &at
			n++
		}
		return nil
	})
	return n, err
}

func (q *queries) ListCurrencyRates(_ context.Context) ([]models.CurrencyRate, error) {
	var out []models.CurrencyRate
	err := q.do(func(st *state) error {
		for _, r := range st.rates {
			out = append(out, r)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, err
}

func (q *queries) UpsertCurrencyRate(_ context.Context, r models.CurrencyRate) error {
	return q.do(func(st *state) error {
		st.rates[r.Code] = r
		return nil
	})
}

func (q *queries) ListCountryCurrencies(_ context.Context) ([]models.CountryCurrency, error) {
	var out []models.CountryCurrency
	err := q.do(func(st *state) error {
		for country, code := range st.countries {
			out = append(out, models.CountryCurrency{CountryCode: country, CurrencyCode: code})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CountryCode < out[j].CountryCode })
	return out, err
}

func (q *queries) UpsertCountryCurrency(_ context.Context, m models.CountryCurrency) error {
	return q.do(func(st *state) error {
		st.countries[m.CountryCode] = m.CurrencyCode
		return nil
	})
}

func (q *queries) GetDefaultFeePercent(_ context.Context) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := q.do(func(st *state) error {
		if st.defaultFee == nil {
			return pgx.ErrNoRows
		}
		out = *st.defaultFee
		return nil
	})
	return out, err
}

func (q *queries) SetDefaultFeePercent(_ context.Context, p decimal.Decimal) error {
	return q.do(func(st *state) error {
		st.defaultFee = &p
		return nil
	})
}

func (q *queries) GetTeacherFeeOverride(_ context.Context, teacherID uuid.UUID) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := q.do(func(st *state) error {
		p, ok := st.overrides[teacherID]
		if !ok {
			return pgx.ErrNoRows
		}
		out = p
		return nil
	})
	return out, err
}

func (q *queries) SetTeacherFeeOverride(_ context.Context, teacherID uuid.UUID, p decimal.Decimal) error {
	return q.do(func(st *state) error {
		st.overrides[teacherID] = p
		return nil
	})
}

func (q *queries) InsertAuditLog(_ context.Context, arg repository.InsertAuditLogParams) (int64, error) {
	var id int64
	err := q.do(func(st *state) error {
		st.nextID++
		id = st.nextID
		arg.Metadata = append([]byte(nil), arg.Metadata...)
		st.audit = append(st.audit, arg)
		return nil
	})
	return id, err
}

func (q *queries) ListReconciliationIssues(_ context.Context) ([]repository.ReconciliationIssue, error) {
	var out []repository.ReconciliationIssue
	err := q.do(func(st *state) error {
		for _, tx := range st.transactions {
			if !tx.PlatformFeeAmount.Add(tx.TeacherAmount).Equal(tx.AmountPaid) {
				out = append(out, repository.ReconciliationIssue{EntityID: tx.ID, Kind: repository.IssueFeeSplitMismatch})
			}
			if tx.Status != domain.TxStatusPaidToTeacher {
				continue
			}
			finalized := false
			for _, e := range st.history[tx.ID] {
				finalized = finalized || e.Finalized
			}
			if !finalized {
				out = append(out, repository.ReconciliationIssue{EntityID: tx.ID, Kind: repository.IssueMissingFinalHistory})
			}
			if tx.PayoutAmount == nil || tx.ExchangeRate == nil || tx.SettledAt == nil {
				out = append(out, repository.ReconciliationIssue{EntityID: tx.ID, Kind: repository.IssueSettledWithoutPayout})
			}
		}
		for _, s := range st.sessions {
			if s.Status != domain.SessionStatusCompleted || s.IsFree || !s.Budget.IsPositive() {
				continue
			}
			if _, ok := st.txBySession[s.ID]; !ok {
				out = append(out, repository.ReconciliationIssue{EntityID: s.ID, Kind: repository.IssueCompletedWithoutTx})
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].EntityID.String() < out[j].EntityID.String()
	})
	return out, err
}

func (q *queries) GetIdempotencyKey(_ context.Context, key string) (repository.IdempotencyKey, error) {
	var out repository.IdempotencyKey
	err := q.do(func(st *state) error {
		row, ok := st.idempotency[key]
		if !ok {
			return pgx.ErrNoRows
		}
		out = row
		return nil
	})
	return out, err
}

func (q *queries) ReserveIdempotencyKey(_ context.Context, arg repository.ReserveIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	var out repository.IdempotencyKey
	err := q.do(func(st *state) error {
		if _, ok := st.idempotency[arg.IdempotencyKey]; ok {
			return pgx.ErrNoRows
		}
		now := time.Now().UTC()
		out = repository.IdempotencyKey{
			IdempotencyKey: arg.IdempotencyKey,
			RequestHash:    arg.RequestHash,
			Method:         arg.Method,
			Path:           arg.Path,
			InProgress:     true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		st.idempotency[arg.IdempotencyKey] = out
		return nil
	})
	return out, err
}

func (q *queries) FinalizeIdempotencyKey(_ context.Context, arg repository.FinalizeIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	var out repository.IdempotencyKey
	err := q.do(func(st *state) error {
		row, ok := st.idempotency[arg.IdempotencyKey]
		if !ok || row.RequestHash != arg.RequestHash {
			return pgx.ErrNoRows
		}
		row.InProgress = false
		row.ResponseStatus = arg.ResponseStatus
		row.ResponseBody = append([]byte(nil), arg.ResponseBody...)
		row.ContentType = arg.ContentType
		row.UpdatedAt = time.Now().UTC()
		st.idempotency[arg.IdempotencyKey] = row
		out = row
		return nil
	})
	return out, err
}
