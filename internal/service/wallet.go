package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/drawroom/drawroom-api/internal/domain"
	"github.com/drawroom/drawroom-api/internal/repository"
)

var (
	ErrInsufficientFunds = repository.ErrInsufficientFunds
	ErrWalletNotFound    = repository.ErrWalletNotFound
)

type WalletRepository interface {
	Ensure(ctx context.Context, userID uint, mode domain.WalletMode) (domain.Wallet, error)
	Get(ctx context.Context, userID uint, mode domain.WalletMode) (domain.Wallet, error)
	ListByUser(ctx context.Context, userID uint) ([]domain.Wallet, error)
	Credit(ctx context.Context, userID uint, mode domain.WalletMode, amount int64) (int64, error)
	Debit(ctx context.Context, userID uint, mode domain.WalletMode, amount int64) (int64, error)
	RecordTransaction(ctx context.Context, transaction domain.Transaction) (domain.Transaction, error)
	ListTransactions(ctx context.Context, userID uint, mode domain.WalletMode, limit int) ([]domain.Transaction, error)
	SumTransactions(ctx context.Context, userID uint, mode domain.WalletMode) (int64, error)
}

// WalletService is the ledger: every standalone balance mutation flows
// through Credit or Debit, which append the matching audit row.
type WalletService struct {
	repo WalletRepository
}

func NewWalletService(repo WalletRepository) *WalletService {
	return &WalletService{
		repo: repo,
	}
}

func (s *WalletService) EnsureWallets(ctx context.Context, userID uint) error {
	for _, mode := range domain.Modes {
		if _, err := s.repo.Ensure(ctx, userID, mode); err != nil {
			return fmt.Errorf("s.repo.Ensure -> %w", err)
		}
	}

	return nil
}

func (s *WalletService) GetBalances(ctx context.Context, userID uint) ([]domain.Wallet, error) {
	wallets, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("s.repo.ListByUser -> %w", err)
	}

	return wallets, nil
}

func (s *WalletService) GetBalance(ctx context.Context, userID uint, mode domain.WalletMode) (int64, error) {
	wallet, err := s.repo.Get(ctx, userID, mode)
	if err != nil {
		return 0, err
	}

	return wallet.Balance, nil
}

// Credit increases the balance and appends the audit row. When the balance
// mutation succeeds but recording fails, the mutation stands and only the
// audit trail is incomplete; this favors ledger availability over perfect
// auditability and is a documented tradeoff, not an oversight.
func (s *WalletService) Credit(ctx context.Context, userID uint, mode domain.WalletMode, amount int64, txType domain.TransactionType, referenceID, description string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	balance, err := s.repo.Credit(ctx, userID, mode, amount)
	if err != nil {
		return 0, fmt.Errorf("s.repo.Credit -> %w", err)
	}

	s.record(ctx, domain.Transaction{
		UserID:       userID,
		Mode:         mode,
		Type:         txType,
		Amount:       amount,
		BalanceAfter: balance,
		ReferenceID:  referenceID,
		Description:  description,
	})

	return balance, nil
}

// Debit decreases the balance only if funds cover it; the conditional
// update in the store is the sole race protection. Same audit-trail
// tradeoff as Credit.
func (s *WalletService) Debit(ctx context.Context, userID uint, mode domain.WalletMode, amount int64, txType domain.TransactionType, referenceID, description string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	balance, err := s.repo.Debit(ctx, userID, mode, amount)
	if err != nil {
		return 0, err
	}

	s.record(ctx, domain.Transaction{
		UserID:       userID,
		Mode:         mode,
		Type:         txType,
		Amount:       -amount,
		BalanceAfter: balance,
		ReferenceID:  referenceID,
		Description:  description,
	})

	return balance, nil
}

func (s *WalletService) record(ctx context.Context, transaction domain.Transaction) {
	if _, err := s.repo.RecordTransaction(ctx, transaction); err != nil {
		zap.L().Error("balance mutated but transaction record failed",
			zap.Uint("user_id", transaction.UserID),
			zap.String("mode", string(transaction.Mode)),
			zap.Int64("amount", transaction.Amount),
			zap.Error(err))
	}
}

func (s *WalletService) GetHistory(ctx context.Context, userID uint, mode domain.WalletMode, limit int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	transactions, err := s.repo.ListTransactions(ctx, userID, mode, limit)
	if err != nil {
		return nil, fmt.Errorf("s.repo.ListTransactions -> %w", err)
	}

	return transactions, nil
}

// Reconcile verifies the audit invariant: the signed transaction amounts
// for a (user, mode) pair must sum to the current balance.
func (s *WalletService) Reconcile(ctx context.Context, userID uint, mode domain.WalletMode) (bool, error) {
	wallet, err := s.repo.Get(ctx, userID, mode)
	if err != nil {
		return false, err
	}

	total, err := s.repo.SumTransactions(ctx, userID, mode)
	if err != nil {
		return false, fmt.Errorf("s.repo.SumTransactions -> %w", err)
	}

	return total == wallet.Balance, nil
}
