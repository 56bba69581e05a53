package dao

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transaction rows are the append-only audit trail: one row per balance
// mutation, never updated or deleted.
type Transaction struct {
	ID           string `gorm:"primaryKey"`
	UserID       uint   `gorm:"not null;index"`
	Mode         string `gorm:"not null"`
	Type         string `gorm:"not null"` // "Entry", "Refund", "Win", "Fee", "Deposit", or "TopUp"
	Amount       int64  `gorm:"not null"` // signed
	BalanceAfter int64  `gorm:"not null"`
	ReferenceID  string `gorm:"index"`
	Description  string

	CreatedAt time.Time `gorm:"not null"`
}

type TransactionDAO struct {
	db *gorm.DB
}

func NewTransactionDAO(db *gorm.DB) *TransactionDAO {
	return &TransactionDAO{
		db: db,
	}
}

func (d *TransactionDAO) Insert(ctx context.Context, transaction Transaction) (Transaction, error) {
	return insertTransactionTx(d.db.WithContext(ctx), transaction)
}

func (d *TransactionDAO) ListByUser(ctx context.Context, userID uint, mode string, limit int) ([]Transaction, error) {
	var transactions []Transaction

	result := d.db.WithContext(ctx).
		Where("user_id = ? AND mode = ?", userID, mode).
		Order("created_at DESC").
		Limit(limit).
		Find(&transactions)
	if result.Error != nil {
		return nil, result.Error
	}

	return transactions, nil
}

// SumByUser totals the signed amounts for a (user, mode) pair. Reconciles
// against the wallet balance: the sum must equal the current balance.
func (d *TransactionDAO) SumByUser(ctx context.Context, userID uint, mode string) (int64, error) {
	var total int64

	result := d.db.WithContext(ctx).Model(&Transaction{}).
		Where("user_id = ? AND mode = ?", userID, mode).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total)
	if result.Error != nil {
		return 0, result.Error
	}

	return total, nil
}

func insertTransactionTx(tx *gorm.DB, transaction Transaction) (Transaction, error) {
	if transaction.ID == "" {
		transaction.ID = uuid.NewString()
	}

	if err := tx.Create(&transaction).Error; err != nil {
		return Transaction{}, err
	}

	return transaction, nil
}
