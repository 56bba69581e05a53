package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

type Wallet struct {
	ID      uint   `gorm:"primaryKey"`
	UserID  uint   `gorm:"not null;uniqueIndex:idx_wallets_user_mode"`
	Mode    string `gorm:"not null;uniqueIndex:idx_wallets_user_mode"` // "DEMO" or "REAL"
	Balance int64  `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type WalletDAO struct {
	db *gorm.DB
}

func NewWalletDAO(db *gorm.DB) *WalletDAO {
	return &WalletDAO{
		db: db,
	}
}

// Ensure creates the wallet row for (userID, mode) if it does not exist.
func (d *WalletDAO) Ensure(ctx context.Context, userID uint, mode string) (Wallet, error) {
	wallet := Wallet{UserID: userID, Mode: mode}

	result := d.db.WithContext(ctx).
		Where("user_id = ? AND mode = ?", userID, mode).
		FirstOrCreate(&wallet)
	if result.Error != nil {
		return Wallet{}, result.Error
	}

	return wallet, nil
}

func (d *WalletDAO) Get(ctx context.Context, userID uint, mode string) (Wallet, error) {
	var wallet Wallet

	result := d.db.WithContext(ctx).
		Where("user_id = ? AND mode = ?", userID, mode).
		First(&wallet)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Wallet{}, ErrWalletNotFound
		}

		return Wallet{}, result.Error
	}

	return wallet, nil
}

func (d *WalletDAO) ListByUser(ctx context.Context, userID uint) ([]Wallet, error) {
	var wallets []Wallet

	result := d.db.WithContext(ctx).Where("user_id = ?", userID).Order("mode").Find(&wallets)
	if result.Error != nil {
		return nil, result.Error
	}

	return wallets, nil
}

// Credit increases the balance unconditionally and returns the new balance.
func (d *WalletDAO) Credit(ctx context.Context, userID uint, mode string, amount int64) (int64, error) {
	return creditTx(d.db.WithContext(ctx), userID, mode, amount)
}

// Debit decreases the balance only if it covers the amount, as a single
// conditional update. The balance guard in the WHERE clause is the sole
// protection against concurrent over-spend; there is no application lock.
func (d *WalletDAO) Debit(ctx context.Context, userID uint, mode string, amount int64) (int64, error) {
	return debitTx(d.db.WithContext(ctx), userID, mode, amount)
}

func creditTx(tx *gorm.DB, userID uint, mode string, amount int64) (int64, error) {
	result := tx.Model(&Wallet{}).
		Where("user_id = ? AND mode = ?", userID, mode).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrWalletNotFound
	}

	return balanceTx(tx, userID, mode)
}

func debitTx(tx *gorm.DB, userID uint, mode string, amount int64) (int64, error) {
	result := tx.Model(&Wallet{}).
		Where("user_id = ? AND mode = ? AND balance >= ?", userID, mode, amount).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		// Missing wallet and short balance are indistinguishable here;
		// wallet rows are created at signup, so report the funds error.
		return 0, ErrInsufficientFunds
	}

	return balanceTx(tx, userID, mode)
}

func balanceTx(tx *gorm.DB, userID uint, mode string) (int64, error) {
	var wallet Wallet
	if err := tx.Where("user_id = ? AND mode = ?", userID, mode).First(&wallet).Error; err != nil {
		return 0, err
	}

	return wallet.Balance, nil
}
