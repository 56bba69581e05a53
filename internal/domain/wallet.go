package domain

import "fmt"

// WalletMode partitions balances into play-money and redeemable credits.
// The two partitions are fully parallel and never mixed.
type WalletMode string

const (
	ModeDemo WalletMode = "DEMO"
	ModeReal WalletMode = "REAL"
)

// Modes lists every wallet mode. Template replenishment iterates over this.
var Modes = []WalletMode{ModeDemo, ModeReal}

func ParseWalletMode(s string) (WalletMode, error) {
	switch WalletMode(s) {
	case ModeDemo:
		return ModeDemo, nil
	case ModeReal:
		return ModeReal, nil
	default:
		return "", fmt.Errorf("unknown wallet mode %q", s)
	}
}

// Wallet holds one balance for one (user, mode) pair, denominated in
// integer credits. The balance never goes below zero.
type Wallet struct {
	UserID  uint       `json:"user_id"`
	Mode    WalletMode `json:"mode"`
	Balance int64      `json:"balance"`
}
