package domain

import "time"

type TransactionType string

const (
	TransactionEntry   TransactionType = "Entry"
	TransactionRefund  TransactionType = "Refund"
	TransactionWin     TransactionType = "Win"
	TransactionFee     TransactionType = "Fee"
	TransactionDeposit TransactionType = "Deposit"
	TransactionTopUp   TransactionType = "TopUp"
)

// Transaction is one immutable ledger log entry. One entry exists per
// balance mutation; entries are never updated or deleted, and the signed
// amounts for a (user, mode) pair must sum to the current balance.
type Transaction struct {
	ID           string          `json:"id"`
	UserID       uint            `json:"user_id"`
	Mode         WalletMode      `json:"mode"`
	Type         TransactionType `json:"type"`
	Amount       int64           `json:"amount"`
	BalanceAfter int64           `json:"balance_after"`
	ReferenceID  string          `json:"reference_id,omitempty"`
	Description  string          `json:"description"`
	CreatedAt    time.Time       `json:"created_at"`
}
