package domain

import "time"

// DrawStatus is the lifecycle state of a draw room. Transitions are
// one-directional; see CanTransitionTo.
type DrawStatus string

const (
	DrawOpen      DrawStatus = "OPEN"
	DrawFull      DrawStatus = "FULL"
	DrawCountdown DrawStatus = "COUNTDOWN"
	DrawRunning   DrawStatus = "RUNNING"
	DrawCompleted DrawStatus = "COMPLETED"
	DrawExpired   DrawStatus = "EXPIRED"
)

func (s DrawStatus) IsTerminal() bool {
	switch s {
	case DrawCompleted, DrawExpired:
		return true
	case DrawOpen, DrawFull, DrawCountdown, DrawRunning:
		return false
	}
	return false
}

// CanTransitionTo enumerates the legal status transitions. Every status is
// handled explicitly so a new status cannot be added without revisiting
// this switch.
func (s DrawStatus) CanTransitionTo(next DrawStatus) bool {
	switch s {
	case DrawOpen:
		return next == DrawFull || next == DrawExpired
	case DrawFull:
		// RUNNING directly from FULL only happens on force-finalize of a
		// draw that never received seeds.
		return next == DrawCountdown || next == DrawRunning
	case DrawCountdown:
		return next == DrawRunning
	case DrawRunning:
		return next == DrawCompleted
	case DrawCompleted, DrawExpired:
		return false
	}
	return false
}

// Participant is one occupied slot. Position records join order and starts
// at zero; the winner index produced by the fairness engine addresses
// participants by position.
type Participant struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Position int    `json:"position"`
}

// Draw is one lottery room: a fixed number of slots at a fixed entry price,
// one winner. Entry price and fee percent are frozen copies of the template
// values at spawn time.
type Draw struct {
	ID           string     `json:"id"`
	TemplateID   uint       `json:"template_id"`
	Mode         WalletMode `json:"mode"`
	Status       DrawStatus `json:"status"`
	TotalSlots   int        `json:"total_slots"`
	EntryCredits int64      `json:"entry_credits"`
	FeePercent   int        `json:"fee_percent"`

	Participants []Participant `json:"participants"`
	FilledSlots  int           `json:"filled_slots"`
	Pool         int64         `json:"pool"`
	Fee          int64         `json:"fee"`
	Prize        int64         `json:"prize"`

	WinnerID       uint   `json:"winner_id,omitempty"`
	WinnerUsername string `json:"winner_username,omitempty"`

	// Commit-reveal material. ServerSeed and PublicSeed are set exactly once
	// at the FULL -> COUNTDOWN transition and withheld from public reads
	// until the draw completes; CommitHash is visible from COUNTDOWN on.
	ServerSeed string `json:"server_seed,omitempty"`
	PublicSeed string `json:"public_seed,omitempty"`
	CommitHash string `json:"commit_hash,omitempty"`

	CountdownEndsAt *time.Time `json:"countdown_ends_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// HasParticipant reports whether userID already occupies a slot.
func (d *Draw) HasParticipant(userID uint) bool {
	for _, p := range d.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// SplitPool divides a pool into house fee and winner prize. The fee is
// rounded half up; fee + prize always equals pool.
func SplitPool(pool int64, feePercent int) (fee, prize int64) {
	fee = (pool*int64(feePercent) + 50) / 100
	return fee, pool - fee
}

// DrawContract is the frozen pre-payout snapshot persisted at completion so
// the outcome stays independently verifiable: recompute the commit hash from
// the revealed seeds, then the winner index from seeds + draw ID.
type DrawContract struct {
	DrawID         string        `json:"draw_id"`
	TemplateID     uint          `json:"template_id"`
	Mode           WalletMode    `json:"mode"`
	TotalSlots     int           `json:"total_slots"`
	EntryCredits   int64         `json:"entry_credits"`
	FeePercent     int           `json:"fee_percent"`
	Participants   []Participant `json:"participants"`
	Pool           int64         `json:"pool"`
	Fee            int64         `json:"fee"`
	Prize          int64         `json:"prize"`
	ServerSeed     string        `json:"server_seed"`
	PublicSeed     string        `json:"public_seed"`
	CommitHash     string        `json:"commit_hash"`
	WinnerIndex    int           `json:"winner_index"`
	WinnerID       uint          `json:"winner_id"`
	WinnerUsername string        `json:"winner_username"`
	CompletedAt    time.Time     `json:"completed_at"`
}
