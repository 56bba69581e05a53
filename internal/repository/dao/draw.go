package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/drawroom/drawroom-api/internal/domain"
)

var (
	ErrDrawNotFound        = errors.New("draw not found")
	ErrDrawNotOpen         = errors.New("draw is not open for joining")
	ErrDrawFull            = errors.New("draw has no free slots")
	ErrAlreadyJoined       = errors.New("user already joined this draw")
	ErrDrawNotReady        = errors.New("draw is not ready to finalize")
	ErrAlreadyFinalized    = errors.New("draw finalization already handled")
	ErrCountdownAlreadySet = errors.New("countdown already started")
	ErrDrawNotExpirable    = errors.New("draw cannot be expired in its current state")
)

type Draw struct {
	ID           string `gorm:"primaryKey"`
	TemplateID   uint   `gorm:"not null;index:idx_draws_template_mode_status"`
	Mode         string `gorm:"not null;index:idx_draws_template_mode_status"`
	Status       string `gorm:"not null;index:idx_draws_template_mode_status"`
	TotalSlots   int    `gorm:"not null"`
	EntryCredits int64  `gorm:"not null"`
	FeePercent   int    `gorm:"not null"`

	FilledSlots int   `gorm:"not null;default:0"`
	Pool        int64 `gorm:"not null;default:0"`
	Fee         int64 `gorm:"not null;default:0"`
	Prize       int64 `gorm:"not null;default:0"`

	WinnerID       uint
	WinnerUsername string

	ServerSeed string
	PublicSeed string
	CommitHash string

	// Contract freezes the pre-payout state as JSON at completion.
	Contract []byte `gorm:"type:jsonb"`

	CountdownEndsAt *time.Time `gorm:"index"`
	CompletedAt     *time.Time
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

type Participant struct {
	ID       uint   `gorm:"primaryKey"`
	DrawID   string `gorm:"not null;uniqueIndex:idx_participants_draw_user"`
	UserID   uint   `gorm:"not null;uniqueIndex:idx_participants_draw_user"`
	Username string `gorm:"not null"`
	Position int    `gorm:"not null"`

	CreatedAt time.Time
}

type DrawDAO struct {
	db *gorm.DB
}

func NewDrawDAO(db *gorm.DB) *DrawDAO {
	return &DrawDAO{
		db: db,
	}
}

func (d *DrawDAO) Insert(ctx context.Context, draw Draw) (Draw, error) {
	if draw.ID == "" {
		draw.ID = uuid.NewString()
	}

	result := d.db.WithContext(ctx).Create(&draw)
	if result.Error != nil {
		return Draw{}, result.Error
	}

	return draw, nil
}

func (d *DrawDAO) GetByID(ctx context.Context, id string) (Draw, []Participant, error) {
	var draw Draw

	result := d.db.WithContext(ctx).First(&draw, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Draw{}, nil, ErrDrawNotFound
		}

		return Draw{}, nil, result.Error
	}

	participants, err := d.participants(d.db.WithContext(ctx), id)
	if err != nil {
		return Draw{}, nil, err
	}

	return draw, participants, nil
}

// FindOpenByTemplate returns the OPEN draw for a (template, mode) pair, if
// any. The registry uses this to decide whether to spawn a replacement.
func (d *DrawDAO) FindOpenByTemplate(ctx context.Context, templateID uint, mode string) (Draw, error) {
	var draw Draw

	result := d.db.WithContext(ctx).
		Where("template_id = ? AND mode = ? AND status = ?", templateID, mode, string(domain.DrawOpen)).
		Order("created_at").
		First(&draw)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Draw{}, ErrDrawNotFound
		}

		return Draw{}, result.Error
	}

	return draw, nil
}

func (d *DrawDAO) ListByStatus(ctx context.Context, status string, limit int) ([]Draw, error) {
	var draws []Draw

	result := d.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at").
		Limit(limit).
		Find(&draws)
	if result.Error != nil {
		return nil, result.Error
	}

	return draws, nil
}

// ListDueCountdown returns COUNTDOWN draws whose deadline has passed. The
// sweeper finalizes these; in-process timers are only a best-effort shortcut.
func (d *DrawDAO) ListDueCountdown(ctx context.Context, now time.Time) ([]Draw, error) {
	var draws []Draw

	result := d.db.WithContext(ctx).
		Where("status = ? AND countdown_ends_at <= ?", string(domain.DrawCountdown), now).
		Order("countdown_ends_at").
		Find(&draws)
	if result.Error != nil {
		return nil, result.Error
	}

	return draws, nil
}

// ListStaleRunning returns RUNNING draws untouched since cutoff. A draw
// stuck in RUNNING means a finalizer died between the status flip and the
// completion transaction; re-finalizing is safe because the winner is
// derived deterministically and payout commits atomically with COMPLETED.
func (d *DrawDAO) ListStaleRunning(ctx context.Context, cutoff time.Time) ([]Draw, error) {
	var draws []Draw

	result := d.db.WithContext(ctx).
		Where("status = ? AND updated_at <= ?", string(domain.DrawRunning), cutoff).
		Find(&draws)
	if result.Error != nil {
		return nil, result.Error
	}

	return draws, nil
}

// ListStaleOpen returns OPEN draws created before cutoff, candidates for
// expiry with refunds.
func (d *DrawDAO) ListStaleOpen(ctx context.Context, cutoff time.Time) ([]Draw, error) {
	var draws []Draw

	result := d.db.WithContext(ctx).
		Where("status = ? AND created_at <= ?", string(domain.DrawOpen), cutoff).
		Find(&draws)
	if result.Error != nil {
		return nil, result.Error
	}

	return draws, nil
}

// Join reserves a slot for the user in one database transaction: entry
// debit, slot reservation and the entry ledger row commit together or not
// at all. The conditional UPDATE on the draw row both guards the slot count
// and serializes concurrent joins; the composite unique index on
// participants rejects a double join.
func (d *DrawDAO) Join(ctx context.Context, drawID string, userID uint, username string) (Draw, []Participant, bool, error) {
	var (
		updated Draw
		joined  []Participant
		filled  bool
	)

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Draw{}).
			Where("id = ? AND status = ? AND filled_slots < total_slots", drawID, string(domain.DrawOpen)).
			Updates(map[string]interface{}{
				"filled_slots": gorm.Expr("filled_slots + 1"),
				"pool":         gorm.Expr("pool + entry_credits"),
				"status":       gorm.Expr("CASE WHEN filled_slots + 1 >= total_slots THEN ? ELSE ? END", string(domain.DrawFull), string(domain.DrawOpen)),
				"updated_at":   time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return d.resolveJoinFailure(tx, drawID)
		}

		if err := tx.First(&updated, "id = ?", drawID).Error; err != nil {
			return err
		}
		filled = updated.Status == string(domain.DrawFull)

		participant := Participant{
			DrawID:   drawID,
			UserID:   userID,
			Username: username,
			Position: updated.FilledSlots - 1,
		}
		if err := tx.Create(&participant).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyJoined
			}

			return err
		}

		balance, err := debitTx(tx, userID, updated.Mode, updated.EntryCredits)
		if err != nil {
			return err
		}

		if _, err = insertTransactionTx(tx, Transaction{
			UserID:       userID,
			Mode:         updated.Mode,
			Type:         "Entry",
			Amount:       -updated.EntryCredits,
			BalanceAfter: balance,
			ReferenceID:  drawID,
			Description:  fmt.Sprintf("Entry for draw %v", drawID),
		}); err != nil {
			return err
		}

		joined, err = d.participants(tx, drawID)

		return err
	})
	if err != nil {
		return Draw{}, nil, false, err
	}

	return updated, joined, filled, nil
}

func (d *DrawDAO) resolveJoinFailure(tx *gorm.DB, drawID string) error {
	var draw Draw
	if err := tx.First(&draw, "id = ?", drawID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDrawNotFound
		}

		return err
	}

	if draw.Status != string(domain.DrawOpen) {
		return ErrDrawNotOpen
	}

	return ErrDrawFull
}

// StartCountdown attaches the seed pair, commit hash and deadline together
// with the FULL -> COUNTDOWN status flip in one conditional update. Seeds
// are set exactly once; a second attempt finds no FULL row and fails.
func (d *DrawDAO) StartCountdown(ctx context.Context, drawID, serverSeed, publicSeed, commitHash string, endsAt time.Time) (Draw, []Participant, error) {
	result := d.db.WithContext(ctx).Model(&Draw{}).
		Where("id = ? AND status = ? AND commit_hash = ''", drawID, string(domain.DrawFull)).
		Updates(map[string]interface{}{
			"status":            string(domain.DrawCountdown),
			"server_seed":       serverSeed,
			"public_seed":       publicSeed,
			"commit_hash":       commitHash,
			"countdown_ends_at": endsAt,
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return Draw{}, nil, result.Error
	}
	if result.RowsAffected == 0 {
		return Draw{}, nil, ErrCountdownAlreadySet
	}

	return d.GetByID(ctx, drawID)
}

// AttachSeeds sets the seed pair on a RUNNING draw that never went through
// the countdown transition. Only the force-finalize path uses this; it
// breaks the commit-ahead-of-outcome guarantee and is restricted to
// operators for exactly that reason.
func (d *DrawDAO) AttachSeeds(ctx context.Context, drawID, serverSeed, publicSeed, commitHash string) error {
	result := d.db.WithContext(ctx).Model(&Draw{}).
		Where("id = ? AND status = ? AND commit_hash = ''", drawID, string(domain.DrawRunning)).
		Updates(map[string]interface{}{
			"server_seed": serverSeed,
			"public_seed": publicSeed,
			"commit_hash": commitHash,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCountdownAlreadySet
	}

	return nil
}

// MarkRunning is the finalize entry gate: a compare-and-set from one of the
// allowed statuses to RUNNING. Exactly one concurrent finalizer wins; the
// losers get ErrAlreadyFinalized (or ErrDrawNotReady for an OPEN draw).
func (d *DrawDAO) MarkRunning(ctx context.Context, drawID string, allowedFrom []string) (Draw, []Participant, error) {
	result := d.db.WithContext(ctx).Model(&Draw{}).
		Where("id = ? AND status IN ?", drawID, allowedFrom).
		Updates(map[string]interface{}{
			"status":     string(domain.DrawRunning),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return Draw{}, nil, result.Error
	}
	if result.RowsAffected == 0 {
		return Draw{}, nil, d.resolveFinalizeFailure(ctx, drawID)
	}

	return d.GetByID(ctx, drawID)
}

func (d *DrawDAO) resolveFinalizeFailure(ctx context.Context, drawID string) error {
	var draw Draw
	if err := d.db.WithContext(ctx).First(&draw, "id = ?", drawID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDrawNotFound
		}

		return err
	}

	switch draw.Status {
	case string(domain.DrawRunning), string(domain.DrawCompleted), string(domain.DrawExpired):
		return ErrAlreadyFinalized
	default:
		return ErrDrawNotReady
	}
}

// Complete finishes a RUNNING draw: winner fields, pool split and contract
// snapshot persist in the same transaction as the winner credit, the house
// fee credit and both ledger rows. Either everything lands or the draw
// stays RUNNING for the sweeper to retry.
func (d *DrawDAO) Complete(ctx context.Context, drawID string, winner Participant, fee, prize int64, contract []byte, houseUserID uint) (Draw, []Participant, error) {
	var (
		completed Draw
		roster    []Participant
	)

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		result := tx.Model(&Draw{}).
			Where("id = ? AND status = ?", drawID, string(domain.DrawRunning)).
			Updates(map[string]interface{}{
				"status":          string(domain.DrawCompleted),
				"winner_id":       winner.UserID,
				"winner_username": winner.Username,
				"fee":             fee,
				"prize":           prize,
				"contract":        contract,
				"completed_at":    now,
				"updated_at":      now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyFinalized
		}

		if err := tx.First(&completed, "id = ?", drawID).Error; err != nil {
			return err
		}

		var err error
		roster, err = d.participants(tx, drawID)
		if err != nil {
			return err
		}

		winnerBalance, err := creditTx(tx, winner.UserID, completed.Mode, prize)
		if err != nil {
			return err
		}
		if _, err = insertTransactionTx(tx, Transaction{
			UserID:       winner.UserID,
			Mode:         completed.Mode,
			Type:         "Win",
			Amount:       prize,
			BalanceAfter: winnerBalance,
			ReferenceID:  drawID,
			Description:  fmt.Sprintf("Prize for draw %v", drawID),
		}); err != nil {
			return err
		}

		houseBalance, err := creditTx(tx, houseUserID, completed.Mode, fee)
		if err != nil {
			return err
		}
		_, err = insertTransactionTx(tx, Transaction{
			UserID:       houseUserID,
			Mode:         completed.Mode,
			Type:         "Fee",
			Amount:       fee,
			BalanceAfter: houseBalance,
			ReferenceID:  drawID,
			Description:  fmt.Sprintf("House fee for draw %v", drawID),
		})

		return err
	})
	if err != nil {
		return Draw{}, nil, err
	}

	return completed, roster, nil
}

// Expire terminates a stuck OPEN draw and refunds every participant in the
// same transaction.
func (d *DrawDAO) Expire(ctx context.Context, drawID string) (Draw, error) {
	var expired Draw

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Draw{}).
			Where("id = ? AND status = ?", drawID, string(domain.DrawOpen)).
			Updates(map[string]interface{}{
				"status":     string(domain.DrawExpired),
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var draw Draw
			if err := tx.First(&draw, "id = ?", drawID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrDrawNotFound
				}

				return err
			}

			return ErrDrawNotExpirable
		}

		if err := tx.First(&expired, "id = ?", drawID).Error; err != nil {
			return err
		}

		participants, err := d.participants(tx, drawID)
		if err != nil {
			return err
		}

		for _, p := range participants {
			balance, err := creditTx(tx, p.UserID, expired.Mode, expired.EntryCredits)
			if err != nil {
				return err
			}
			if _, err = insertTransactionTx(tx, Transaction{
				UserID:       p.UserID,
				Mode:         expired.Mode,
				Type:         "Refund",
				Amount:       expired.EntryCredits,
				BalanceAfter: balance,
				ReferenceID:  drawID,
				Description:  fmt.Sprintf("Refund for expired draw %v", drawID),
			}); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return Draw{}, err
	}

	return expired, nil
}

func (d *DrawDAO) participants(tx *gorm.DB, drawID string) ([]Participant, error) {
	var participants []Participant

	result := tx.Where("draw_id = ?", drawID).Order("position").Find(&participants)
	if result.Error != nil {
		return nil, result.Error
	}

	return participants, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
