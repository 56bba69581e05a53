package repository

import (
	"context"

	"github.com/drawroom/drawroom-api/internal/domain"
	"github.com/drawroom/drawroom-api/internal/repository/dao"
)

var (
	ErrWalletNotFound    = dao.ErrWalletNotFound
	ErrInsufficientFunds = dao.ErrInsufficientFunds
)

type WalletRepository struct {
	walletDAO      *dao.WalletDAO
	transactionDAO *dao.TransactionDAO
}

func NewWalletRepository(walletDAO *dao.WalletDAO, transactionDAO *dao.TransactionDAO) *WalletRepository {
	return &WalletRepository{
		walletDAO:      walletDAO,
		transactionDAO: transactionDAO,
	}
}

func (r *WalletRepository) Ensure(ctx context.Context, userID uint, mode domain.WalletMode) (domain.Wallet, error) {
	wallet, err := r.walletDAO.Ensure(ctx, userID, string(mode))
	if err != nil {
		return domain.Wallet{}, err
	}

	return walletDaoToDomain(wallet), nil
}

func (r *WalletRepository) Get(ctx context.Context, userID uint, mode domain.WalletMode) (domain.Wallet, error) {
	wallet, err := r.walletDAO.Get(ctx, userID, string(mode))
	if err != nil {
		return domain.Wallet{}, err
	}

	return walletDaoToDomain(wallet), nil
}

func (r *WalletRepository) ListByUser(ctx context.Context, userID uint) ([]domain.Wallet, error) {
	wallets, err := r.walletDAO.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Wallet, len(wallets))
	for i, w := range wallets {
		out[i] = walletDaoToDomain(w)
	}

	return out, nil
}

func (r *WalletRepository) Credit(ctx context.Context, userID uint, mode domain.WalletMode, amount int64) (int64, error) {
	return r.walletDAO.Credit(ctx, userID, string(mode), amount)
}

func (r *WalletRepository) Debit(ctx context.Context, userID uint, mode domain.WalletMode, amount int64) (int64, error) {
	return r.walletDAO.Debit(ctx, userID, string(mode), amount)
}

func (r *WalletRepository) RecordTransaction(ctx context.Context, transaction domain.Transaction) (domain.Transaction, error) {
	inserted, err := r.transactionDAO.Insert(ctx, transactionDomainToDao(transaction))
	if err != nil {
		return domain.Transaction{}, err
	}

	return transactionDaoToDomain(inserted), nil
}

func (r *WalletRepository) ListTransactions(ctx context.Context, userID uint, mode domain.WalletMode, limit int) ([]domain.Transaction, error) {
	transactions, err := r.transactionDAO.ListByUser(ctx, userID, string(mode), limit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Transaction, len(transactions))
	for i, t := range transactions {
		out[i] = transactionDaoToDomain(t)
	}

	return out, nil
}

func (r *WalletRepository) SumTransactions(ctx context.Context, userID uint, mode domain.WalletMode) (int64, error) {
	return r.transactionDAO.SumByUser(ctx, userID, string(mode))
}

func walletDaoToDomain(w dao.Wallet) domain.Wallet {
	return domain.Wallet{
		UserID:  w.UserID,
		Mode:    domain.WalletMode(w.Mode),
		Balance: w.Balance,
	}
}

func transactionDomainToDao(t domain.Transaction) dao.Transaction {
	return dao.Transaction{
		ID:           t.ID,
		UserID:       t.UserID,
		Mode:         string(t.Mode),
		Type:         string(t.Type),
		Amount:       t.Amount,
		BalanceAfter: t.BalanceAfter,
		ReferenceID:  t.ReferenceID,
		Description:  t.Description,
		CreatedAt:    t.CreatedAt,
	}
}

func transactionDaoToDomain(t dao.Transaction) domain.Transaction {
	return domain.Transaction{
		ID:           t.ID,
		UserID:       t.UserID,
		Mode:         domain.WalletMode(t.Mode),
		Type:         domain.TransactionType(t.Type),
		Amount:       t.Amount,
		BalanceAfter: t.BalanceAfter,
		ReferenceID:  t.ReferenceID,
		Description:  t.Description,
		CreatedAt:    t.CreatedAt,
	}
}
