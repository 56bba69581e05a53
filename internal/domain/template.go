package domain

import "time"

// DrawTemplate is the blueprint a draw room is spawned from. Slots, entry
// price and fee percent are immutable after creation; only Enabled,
// RequiresDeposit and AutoFill may be toggled. Editing a template never
// touches draws already spawned from it.
type DrawTemplate struct {
	ID              uint      `json:"id"`
	Label           string    `json:"label"`
	Slots           int       `json:"slots"`
	EntryDollars    int       `json:"entry_dollars"`
	EntryCredits    int64     `json:"entry_credits"`
	FeePercent      int       `json:"fee_percent"`
	Enabled         bool      `json:"enabled"`
	RequiresDeposit bool      `json:"requires_deposit"`
	// AutoFill marks demo rooms the sweeper populates with bot players,
	// always leaving the last slot for a genuine user.
	AutoFill  bool      `json:"auto_fill"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
