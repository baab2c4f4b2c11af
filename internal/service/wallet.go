package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/tutor-settlement/internal/domain"
	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/google/uuid"
)

// WalletEntry is one transaction as shown in a wallet. DisplayPayout is the
// recorded payout, or an estimate when PayoutIsEstimate is set.
type WalletEntry struct {
	Transaction      models.Transaction `json:"transaction"`
	DisplayPayout    domain.Money       `json:"display_payout"`
	PayoutIsEstimate bool               `json:"payout_is_estimate"`
}

type Wallet struct {
	UserID    uuid.UUID     `json:"user_id"`
	AsLearner []WalletEntry `json:"as_learner"`
	AsTeacher []WalletEntry `json:"as_teacher"`
}

// GetWallet lists the user's transactions on both sides of the marketplace.
func (s *SettlementService) GetWallet(ctx context.Context, p models.Principal, userID uuid.UUID) (Wallet, error) {
	if err := authorize(p, userID); err != nil {
		return Wallet{}, err
	}
	table, err := s.currencies.Table(ctx)
	if err != nil {
		return Wallet{}, err
	}
	q := s.store.Queries()
	asLearner, err := q.ListTransactionsByLearner(ctx, userID)
	if err != nil {
		return Wallet{}, fmt.Errorf("list learner transactions: %w", err)
	}
	asTeacher, err := q.ListTransactionsByTeacher(ctx, userID)
	if err != nil {
		return Wallet{}, fmt.Errorf("list teacher transactions: %w", err)
	}
	return Wallet{
		UserID:    userID,
		AsLearner: walletEntries(asLearner, table),
		AsTeacher: walletEntries(asTeacher, table),
	}, nil
}

func walletEntries(txs []models.Transaction, table *domain.CurrencyTable) []WalletEntry {
	out := make([]WalletEntry, 0, len(txs))
	for _, tx := range txs {
		amount, estimate := domain.DisplayPayout(tx, table)
		out = append(out, WalletEntry{
			Transaction:      tx,
			DisplayPayout:    domain.NewMoney(amount, tx.PayoutCurrency),
			PayoutIsEstimate: estimate,
		})
	}
	return out
}

// GetTransaction returns a transaction with its full rate history.
func (s *SettlementService) GetTransaction(ctx context.Context, p models.Principal, transactionID uuid.UUID) (models.Transaction, error) {
	tx, err := s.loadTransaction(ctx, p, transactionID)
	if err != nil {
		return models.Transaction{}, err
	}
	history, err := s.store.Queries().ListRateHistory(ctx, transactionID)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("list rate history: %w", err)
	}
	if history == nil {
		history = []models.RateHistoryEntry{}
	}
	tx.ExchangeRateHistory = history
	return tx, nil
}

func (s *SettlementService) RateHistory(ctx context.Context, p models.Principal, transactionID uuid.UUID) ([]models.RateHistoryEntry, error) {
	tx, err := s.GetTransaction(ctx, p, transactionID)
	if err != nil {
		return nil, err
	}
	return tx.ExchangeRateHistory, nil
}

func (s *SettlementService) ListComplaints(ctx context.Context, p models.Principal, transactionID uuid.UUID) ([]models.Complaint, error) {
	if _, err := s.loadTransaction(ctx, p, transactionID); err != nil {
		return nil, err
	}
	items, err := s.store.Queries().ListComplaints(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	if items == nil {
		items = []models.Complaint{}
	}
	return items, nil
}

func (s *SettlementService) loadTransaction(ctx context.Context, p models.Principal, transactionID uuid.UUID) (models.Transaction, error) {
	tx, err := s.store.Queries().GetTransaction(ctx, transactionID)
	if err != nil {
		return models.Transaction{}, notFound(err, ErrTransactionNotFound, transactionID)
	}
	if err := authorize(p, tx.LearnerID, tx.TeacherID); err != nil {
		return models.Transaction{}, err
	}
	return tx, nil
}
