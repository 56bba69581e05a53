package response

import (
	"time"

	"github.com/drawroom/drawroom-api/internal/domain"
)

// Draw is the public view of a draw room. The seed pair stays redacted until
// the draw completes; leaking the server seed earlier would let a reader
// predict the winner. The commitment is public from the moment it exists.
type Draw struct {
	ID           string               `json:"id"`
	TemplateID   uint                 `json:"template_id"`
	Mode         domain.WalletMode    `json:"mode"`
	Status       domain.DrawStatus    `json:"status"`
	TotalSlots   int                  `json:"total_slots"`
	EntryCredits int64                `json:"entry_credits"`
	FeePercent   int                  `json:"fee_percent"`
	Participants []domain.Participant `json:"participants"`
	FilledSlots  int                  `json:"filled_slots"`
	Pool         int64                `json:"pool"`

	CommitHash string `json:"commit_hash,omitempty"`
	ServerSeed string `json:"server_seed,omitempty"`
	PublicSeed string `json:"public_seed,omitempty"`

	Fee            int64  `json:"fee,omitempty"`
	Prize          int64  `json:"prize,omitempty"`
	WinnerID       uint   `json:"winner_id,omitempty"`
	WinnerUsername string `json:"winner_username,omitempty"`

	CountdownEndsAt *time.Time `json:"countdown_ends_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func NewDraw(d domain.Draw) Draw {
	resp := Draw{
		ID:              d.ID,
		TemplateID:      d.TemplateID,
		Mode:            d.Mode,
		Status:          d.Status,
		TotalSlots:      d.TotalSlots,
		EntryCredits:    d.EntryCredits,
		FeePercent:      d.FeePercent,
		Participants:    d.Participants,
		FilledSlots:     d.FilledSlots,
		Pool:            d.Pool,
		CommitHash:      d.CommitHash,
		CountdownEndsAt: d.CountdownEndsAt,
		CompletedAt:     d.CompletedAt,
		CreatedAt:       d.CreatedAt,
	}

	if d.Status == domain.DrawCompleted {
		resp.ServerSeed = d.ServerSeed
		resp.PublicSeed = d.PublicSeed
		resp.Fee = d.Fee
		resp.Prize = d.Prize
		resp.WinnerID = d.WinnerID
		resp.WinnerUsername = d.WinnerUsername
	}

	return resp
}

func NewDraws(draws []domain.Draw) []Draw {
	out := make([]Draw, 0, len(draws))
	for _, d := range draws {
		out = append(out, NewDraw(d))
	}
	return out
}

type VerifyResponse struct {
	DrawID string `json:"draw_id"`
	Valid  bool   `json:"valid"`
}
