package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/drawroom/drawroom-api/internal/domain"
	"github.com/drawroom/drawroom-api/internal/event"
	"github.com/drawroom/drawroom-api/internal/fairness"
	"github.com/drawroom/drawroom-api/internal/repository"
)

var (
	ErrDrawNotFound     = repository.ErrDrawNotFound
	ErrDrawNotOpen      = repository.ErrDrawNotOpen
	ErrDrawFull         = repository.ErrDrawFull
	ErrAlreadyJoined    = repository.ErrAlreadyJoined
	ErrDrawNotReady     = repository.ErrDrawNotReady
	ErrAlreadyFinalized = repository.ErrAlreadyFinalized
)

type DrawRepository interface {
	Create(ctx context.Context, draw domain.Draw) (domain.Draw, error)
	GetByID(ctx context.Context, id string) (domain.Draw, error)
	FindOpenByTemplate(ctx context.Context, templateID uint, mode domain.WalletMode) (domain.Draw, error)
	ListByStatus(ctx context.Context, status domain.DrawStatus, limit int) ([]domain.Draw, error)
	ListDueCountdown(ctx context.Context, now time.Time) ([]domain.Draw, error)
	ListStaleRunning(ctx context.Context, cutoff time.Time) ([]domain.Draw, error)
	ListStaleOpen(ctx context.Context, cutoff time.Time) ([]domain.Draw, error)
	Join(ctx context.Context, drawID string, userID uint, username string) (domain.Draw, bool, error)
	StartCountdown(ctx context.Context, drawID, serverSeed, publicSeed, commitHash string, endsAt time.Time) (domain.Draw, error)
	MarkRunning(ctx context.Context, drawID string, allowedFrom []domain.DrawStatus) (domain.Draw, error)
	AttachSeeds(ctx context.Context, drawID, serverSeed, publicSeed, commitHash string) error
	Complete(ctx context.Context, drawID string, winner domain.Participant, fee, prize int64, contract []byte, houseUserID uint) (domain.Draw, error)
	Expire(ctx context.Context, drawID string) (domain.Draw, error)
}

// TemplateRegistry replenishes rooms: whenever a draw leaves OPEN for good,
// the registry spawns the next OPEN draw for the same (template, mode).
type TemplateRegistry interface {
	EnsureOpenDraw(ctx context.Context, templateID uint, mode domain.WalletMode) (domain.Draw, error)
}

// DrawService owns the draw state machine:
//
//	OPEN -> FULL -> COUNTDOWN -> RUNNING -> COMPLETED
//
// with EXPIRED as the alternate terminal state for stuck OPEN rooms. All
// transitions are persisted through conditional updates, so concurrent
// invocations settle in the store, never in process memory.
type DrawService struct {
	repo        DrawRepository
	registry    TemplateRegistry
	notifier    event.Notifier
	countdown   time.Duration
	houseUserID uint
}

func NewDrawService(repo DrawRepository, registry TemplateRegistry, notifier event.Notifier, countdown time.Duration, houseUserID uint) *DrawService {
	if notifier == nil {
		notifier = event.NoopNotifier{}
	}

	return &DrawService{
		repo:        repo,
		registry:    registry,
		notifier:    notifier,
		countdown:   countdown,
		houseUserID: houseUserID,
	}
}

func (s *DrawService) GetDraw(ctx context.Context, drawID string) (domain.Draw, error) {
	draw, err := s.repo.GetByID(ctx, drawID)
	if err != nil {
		return domain.Draw{}, err
	}

	return draw, nil
}

func (s *DrawService) ListByStatus(ctx context.Context, status domain.DrawStatus, limit int) ([]domain.Draw, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	draws, err := s.repo.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("s.repo.ListByStatus -> %w", err)
	}

	return draws, nil
}

// Join buys the user into an OPEN draw. The debit, the slot reservation and
// the entry ledger row are one atomic store transaction; a lost race leaves
// the balance untouched. Filling the last slot triggers the countdown
// transition synchronously before Join returns.
func (s *DrawService) Join(ctx context.Context, drawID string, user domain.User) (domain.Draw, error) {
	draw, filled, err := s.repo.Join(ctx, drawID, user.ID, user.Username)
	if err != nil {
		return domain.Draw{}, err
	}

	zap.L().Info("user joined draw",
		zap.String("draw_id", drawID),
		zap.Uint("user_id", user.ID),
		zap.Int("filled_slots", draw.FilledSlots),
		zap.Int("total_slots", draw.TotalSlots))

	if filled {
		draw, err = s.beginCountdown(ctx, drawID)
		if err != nil {
			// The slot is reserved and the room is FULL; the sweeper will
			// attach the countdown if this in-call attempt lost a race or
			// failed transiently.
			zap.L().Warn("countdown start failed, leaving to sweeper",
				zap.String("draw_id", drawID), zap.Error(err))
			return s.repo.GetByID(ctx, drawID)
		}
	}

	return draw, nil
}

// beginCountdown performs FULL -> COUNTDOWN: generates the seed pair,
// computes the commitment and persists all of it with the deadline in one
// conditional update. This is the commit point of the fairness protocol,
// deliberately at room-full time, when the participant list is already
// known; the commitment proves only that the seeds did not change after it.
func (s *DrawService) beginCountdown(ctx context.Context, drawID string) (domain.Draw, error) {
	serverSeed, err := fairness.GenerateSeed()
	if err != nil {
		return domain.Draw{}, fmt.Errorf("fairness.GenerateSeed -> %w", err)
	}
	publicSeed, err := fairness.GenerateSeed()
	if err != nil {
		return domain.Draw{}, fmt.Errorf("fairness.GenerateSeed -> %w", err)
	}

	endsAt := time.Now().Add(s.countdown)
	draw, err := s.repo.StartCountdown(ctx, drawID, serverSeed, publicSeed, fairness.CommitHash(serverSeed, publicSeed), endsAt)
	if err != nil {
		if errors.Is(err, repository.ErrCountdownAlreadySet) {
			return s.repo.GetByID(ctx, drawID)
		}

		return domain.Draw{}, fmt.Errorf("s.repo.StartCountdown -> %w", err)
	}

	zap.L().Info("draw countdown started",
		zap.String("draw_id", drawID),
		zap.String("commit_hash", draw.CommitHash),
		zap.Time("ends_at", endsAt))

	// Best-effort in-process trigger. Not authoritative: it does not
	// survive restarts, and the sweeper finalizes anything it misses.
	time.AfterFunc(time.Until(endsAt), func() {
		if _, err := s.Finalize(context.Background(), drawID); err != nil && !errors.Is(err, ErrAlreadyFinalized) {
			zap.L().Warn("timer finalize failed", zap.String("draw_id", drawID), zap.Error(err))
		}
	})

	return draw, nil
}

// AttachCountdown lets the sweeper rescue a draw stuck in FULL (the filling
// join crashed before seeds were attached).
func (s *DrawService) AttachCountdown(ctx context.Context, drawID string) (domain.Draw, error) {
	return s.beginCountdown(ctx, drawID)
}

// Finalize drives COUNTDOWN -> RUNNING -> COMPLETED. The RUNNING flip is a
// compare-and-set, so of any number of concurrent callers exactly one
// proceeds to pay out; the rest observe ErrAlreadyFinalized and must treat
// it as handled. Safe to call before the deadline only via operator paths;
// the sweeper calls it strictly after countdownEndsAt.
func (s *DrawService) Finalize(ctx context.Context, drawID string) (domain.Draw, error) {
	draw, err := s.repo.MarkRunning(ctx, drawID, []domain.DrawStatus{domain.DrawCountdown})
	if err != nil {
		return domain.Draw{}, err
	}

	return s.complete(ctx, draw)
}

// ForceFinalize is the operator escape hatch: it also accepts FULL draws
// that never received seeds and generates them on the fly, giving up the
// commit-ahead-of-outcome guarantee for that draw.
func (s *DrawService) ForceFinalize(ctx context.Context, drawID string) (domain.Draw, error) {
	draw, err := s.repo.MarkRunning(ctx, drawID, []domain.DrawStatus{domain.DrawCountdown, domain.DrawFull})
	if err != nil {
		return domain.Draw{}, err
	}

	if draw.ServerSeed == "" {
		serverSeed, err := fairness.GenerateSeed()
		if err != nil {
			return domain.Draw{}, fmt.Errorf("fairness.GenerateSeed -> %w", err)
		}
		publicSeed, err := fairness.GenerateSeed()
		if err != nil {
			return domain.Draw{}, fmt.Errorf("fairness.GenerateSeed -> %w", err)
		}

		if err = s.repo.AttachSeeds(ctx, drawID, serverSeed, publicSeed, fairness.CommitHash(serverSeed, publicSeed)); err != nil {
			return domain.Draw{}, fmt.Errorf("s.repo.AttachSeeds -> %w", err)
		}

		draw, err = s.repo.GetByID(ctx, drawID)
		if err != nil {
			return domain.Draw{}, err
		}

		zap.L().Warn("seeds generated at force-finalize; commit-reveal guarantee void for this draw",
			zap.String("draw_id", drawID))
	}

	return s.complete(ctx, draw)
}

// ResumeFinalize re-drives a draw stuck in RUNNING. Winner derivation is
// deterministic from the stored seeds and payout commits atomically with
// the COMPLETED flip, so re-running cannot double-pay.
func (s *DrawService) ResumeFinalize(ctx context.Context, drawID string) (domain.Draw, error) {
	draw, err := s.repo.GetByID(ctx, drawID)
	if err != nil {
		return domain.Draw{}, err
	}
	if draw.Status != domain.DrawRunning {
		return domain.Draw{}, ErrDrawNotReady
	}

	return s.complete(ctx, draw)
}

func (s *DrawService) complete(ctx context.Context, draw domain.Draw) (domain.Draw, error) {
	if len(draw.Participants) == 0 || draw.FilledSlots != len(draw.Participants) {
		return domain.Draw{}, fmt.Errorf("draw %v has inconsistent participant state: %d slots, %d participants",
			draw.ID, draw.FilledSlots, len(draw.Participants))
	}

	winnerIndex, err := fairness.WinnerIndex(draw.ServerSeed, draw.PublicSeed, draw.ID, len(draw.Participants))
	if err != nil {
		return domain.Draw{}, fmt.Errorf("fairness.WinnerIndex -> %w", err)
	}
	winner := draw.Participants[winnerIndex]
	fee, prize := domain.SplitPool(draw.Pool, draw.FeePercent)

	now := time.Now()
	contract := domain.DrawContract{
		DrawID:         draw.ID,
		TemplateID:     draw.TemplateID,
		Mode:           draw.Mode,
		TotalSlots:     draw.TotalSlots,
		EntryCredits:   draw.EntryCredits,
		FeePercent:     draw.FeePercent,
		Participants:   draw.Participants,
		Pool:           draw.Pool,
		Fee:            fee,
		Prize:          prize,
		ServerSeed:     draw.ServerSeed,
		PublicSeed:     draw.PublicSeed,
		CommitHash:     draw.CommitHash,
		WinnerIndex:    winnerIndex,
		WinnerID:       winner.UserID,
		WinnerUsername: winner.Username,
		CompletedAt:    now,
	}
	frozen, err := json.Marshal(contract)
	if err != nil {
		return domain.Draw{}, fmt.Errorf("json.Marshal contract -> %w", err)
	}

	completed, err := s.repo.Complete(ctx, draw.ID, winner, fee, prize, frozen, s.houseUserID)
	if err != nil {
		return domain.Draw{}, err
	}

	zap.L().Info("draw completed",
		zap.String("draw_id", draw.ID),
		zap.Uint("winner_id", winner.UserID),
		zap.Int64("prize", prize),
		zap.Int64("fee", fee))

	s.notifier.DrawCompleted(contract)

	if _, err := s.registry.EnsureOpenDraw(ctx, draw.TemplateID, draw.Mode); err != nil {
		// Replenishment is retried by the sweeper's EnsureOpenDraws pass.
		zap.L().Warn("failed to replenish open draw",
			zap.Uint("template_id", draw.TemplateID),
			zap.String("mode", string(draw.Mode)),
			zap.Error(err))
	}

	return completed, nil
}

// Expire terminates a stuck OPEN draw, refunding every participant inside
// the store transaction that flips the status.
func (s *DrawService) Expire(ctx context.Context, drawID string) (domain.Draw, error) {
	expired, err := s.repo.Expire(ctx, drawID)
	if err != nil {
		return domain.Draw{}, err
	}

	zap.L().Info("draw expired with refunds",
		zap.String("draw_id", drawID),
		zap.Int("refunded_participants", expired.FilledSlots))

	if _, err := s.registry.EnsureOpenDraw(ctx, expired.TemplateID, expired.Mode); err != nil {
		zap.L().Warn("failed to replenish open draw after expiry",
			zap.Uint("template_id", expired.TemplateID), zap.Error(err))
	}

	return expired, nil
}

// VerifyDraw recomputes the commit-reveal chain of a completed draw; any
// third party can do the same from the public contract fields.
func (s *DrawService) VerifyDraw(ctx context.Context, drawID string) (bool, error) {
	draw, err := s.repo.GetByID(ctx, drawID)
	if err != nil {
		return false, err
	}
	if draw.Status != domain.DrawCompleted {
		return false, ErrDrawNotReady
	}

	if !fairness.Verify(draw.ServerSeed, draw.PublicSeed, draw.CommitHash) {
		return false, nil
	}

	idx, err := fairness.WinnerIndex(draw.ServerSeed, draw.PublicSeed, draw.ID, len(draw.Participants))
	if err != nil {
		return false, err
	}

	return draw.Participants[idx].UserID == draw.WinnerID, nil
}
