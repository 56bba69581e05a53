package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/drawroom/drawroom-api/internal/domain"
	"github.com/drawroom/drawroom-api/internal/service"
)

// fullGrace is how long a FULL draw may sit without seeds before the sweeper
// treats the countdown attach as lost and retries it. Covers the window
// between the filling join and its countdown update.
const fullGrace = 10 * time.Second

// runningGrace is how long a RUNNING draw may sit before the sweeper re-drives
// the payout. RUNNING normally lasts milliseconds.
const runningGrace = time.Minute

// DrawLifecycle is the slice of the draw service the sweeper drives.
type DrawLifecycle interface {
	Join(ctx context.Context, drawID string, user domain.User) (domain.Draw, error)
	Finalize(ctx context.Context, drawID string) (domain.Draw, error)
	AttachCountdown(ctx context.Context, drawID string) (domain.Draw, error)
	ResumeFinalize(ctx context.Context, drawID string) (domain.Draw, error)
	Expire(ctx context.Context, drawID string) (domain.Draw, error)
}

// DrawStore is the read side the sweeper scans for work.
type DrawStore interface {
	ListDueCountdown(ctx context.Context, now time.Time) ([]domain.Draw, error)
	ListStaleRunning(ctx context.Context, cutoff time.Time) ([]domain.Draw, error)
	ListStaleOpen(ctx context.Context, cutoff time.Time) ([]domain.Draw, error)
	ListByStatus(ctx context.Context, status domain.DrawStatus, limit int) ([]domain.Draw, error)
	FindOpenByTemplate(ctx context.Context, templateID uint, mode domain.WalletMode) (domain.Draw, error)
}

type Registry interface {
	ListTemplates(ctx context.Context) ([]domain.DrawTemplate, error)
	EnsureOpenDraws(ctx context.Context) error
}

type BotUsers interface {
	ListByRole(ctx context.Context, role string) ([]domain.User, error)
	FindOrCreateByEmail(ctx context.Context, user domain.User) (domain.User, error)
}

type BotWallets interface {
	EnsureWallets(ctx context.Context, userID uint) error
	GetBalance(ctx context.Context, userID uint, mode domain.WalletMode) (int64, error)
	Credit(ctx context.Context, userID uint, mode domain.WalletMode, amount int64, txType domain.TransactionType, referenceID, description string) (int64, error)
}

type Config struct {
	Interval time.Duration
	// OpenTTL expires OPEN draws older than this, refunding participants.
	// Zero disables the expiry pass.
	OpenTTL time.Duration
	// BotCount keeps this many bot players around for auto-fill rooms.
	// Zero disables the auto-fill pass.
	BotCount       int
	BotTopUpBelow  int64
	BotTopUpAmount int64
}

// Sweeper is the authoritative driver of time-based draw transitions. The
// in-process countdown timers are an optimization; every transition they can
// make, the sweeper makes too, so missed timers (crashes, restarts, races)
// only delay an outcome, never lose it.
type Sweeper struct {
	cron     *cron.Cron
	draws    DrawLifecycle
	store    DrawStore
	registry Registry
	users    BotUsers
	wallets  BotWallets
	conf     Config
}

func NewSweeper(draws DrawLifecycle, store DrawStore, registry Registry, users BotUsers, wallets BotWallets, conf Config) *Sweeper {
	if conf.Interval <= 0 {
		conf.Interval = time.Minute
	}

	return &Sweeper{
		cron:     cron.New(),
		draws:    draws,
		store:    store,
		registry: registry,
		users:    users,
		wallets:  wallets,
		conf:     conf,
	}
}

func (s *Sweeper) Start() error {
	spec := fmt.Sprintf("@every %s", s.conf.Interval)
	if _, err := s.cron.AddFunc(spec, func() {
		s.Sweep(context.Background())
	}); err != nil {
		return fmt.Errorf("cron.AddFunc -> %w", err)
	}
	s.cron.Start()
	zap.L().Info("sweeper started", zap.Duration("interval", s.conf.Interval))

	return nil
}

func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs every pass once. Each pass is independent; one failing draw
// never blocks the rest of the queue.
func (s *Sweeper) Sweep(ctx context.Context) {
	s.finalizeDue(ctx)
	s.rescueStuckFull(ctx)
	s.resumeStaleRunning(ctx)
	s.expireStaleOpen(ctx)
	s.replenish(ctx)
	s.fillDemoRooms(ctx)
}

func (s *Sweeper) finalizeDue(ctx context.Context) {
	due, err := s.store.ListDueCountdown(ctx, time.Now())
	if err != nil {
		zap.L().Error("sweeper: list due countdowns failed", zap.Error(err))
		return
	}

	for _, draw := range due {
		if _, err := s.draws.Finalize(ctx, draw.ID); err != nil {
			// A concurrent timer or sweep got there first; that is success.
			if errors.Is(err, service.ErrAlreadyFinalized) {
				continue
			}
			zap.L().Error("sweeper: finalize failed",
				zap.String("draw_id", draw.ID), zap.Error(err))
			continue
		}
		zap.L().Info("sweeper: finalized overdue draw", zap.String("draw_id", draw.ID))
	}
}

func (s *Sweeper) rescueStuckFull(ctx context.Context) {
	full, err := s.store.ListByStatus(ctx, domain.DrawFull, 100)
	if err != nil {
		zap.L().Error("sweeper: list full draws failed", zap.Error(err))
		return
	}

	cutoff := time.Now().Add(-fullGrace)
	for _, draw := range full {
		if draw.UpdatedAt.After(cutoff) {
			continue
		}
		if _, err := s.draws.AttachCountdown(ctx, draw.ID); err != nil {
			zap.L().Error("sweeper: attach countdown failed",
				zap.String("draw_id", draw.ID), zap.Error(err))
			continue
		}
		zap.L().Warn("sweeper: attached countdown to stuck full draw",
			zap.String("draw_id", draw.ID))
	}
}

func (s *Sweeper) resumeStaleRunning(ctx context.Context) {
	stale, err := s.store.ListStaleRunning(ctx, time.Now().Add(-runningGrace))
	if err != nil {
		zap.L().Error("sweeper: list stale running failed", zap.Error(err))
		return
	}

	for _, draw := range stale {
		if _, err := s.draws.ResumeFinalize(ctx, draw.ID); err != nil {
			zap.L().Error("sweeper: resume finalize failed",
				zap.String("draw_id", draw.ID), zap.Error(err))
			continue
		}
		zap.L().Warn("sweeper: resumed stale running draw", zap.String("draw_id", draw.ID))
	}
}

func (s *Sweeper) expireStaleOpen(ctx context.Context) {
	if s.conf.OpenTTL <= 0 {
		return
	}

	stale, err := s.store.ListStaleOpen(ctx, time.Now().Add(-s.conf.OpenTTL))
	if err != nil {
		zap.L().Error("sweeper: list stale open failed", zap.Error(err))
		return
	}

	for _, draw := range stale {
		if _, err := s.draws.Expire(ctx, draw.ID); err != nil {
			zap.L().Error("sweeper: expire failed",
				zap.String("draw_id", draw.ID), zap.Error(err))
			continue
		}
		zap.L().Info("sweeper: expired stale open draw",
			zap.String("draw_id", draw.ID),
			zap.Int("refunded_participants", draw.FilledSlots))
	}
}

func (s *Sweeper) replenish(ctx context.Context) {
	if err := s.registry.EnsureOpenDraws(ctx); err != nil {
		zap.L().Error("sweeper: replenish open draws failed", zap.Error(err))
	}
}

// fillDemoRooms seats bot players in auto-fill demo rooms, always leaving
// the last slot for a genuine user. Bots join through the normal entry path
// and pay from their own demo wallets.
func (s *Sweeper) fillDemoRooms(ctx context.Context) {
	if s.conf.BotCount <= 0 {
		return
	}

	bots, err := s.ensureBots(ctx)
	if err != nil {
		zap.L().Error("sweeper: ensure bots failed", zap.Error(err))
		return
	}

	templates, err := s.registry.ListTemplates(ctx)
	if err != nil {
		zap.L().Error("sweeper: list templates failed", zap.Error(err))
		return
	}

	for _, template := range templates {
		if !template.Enabled || !template.AutoFill {
			continue
		}

		draw, err := s.store.FindOpenByTemplate(ctx, template.ID, domain.ModeDemo)
		if err != nil {
			continue
		}

		seats := draw.TotalSlots - 1 - draw.FilledSlots
		for _, bot := range bots {
			if seats <= 0 {
				break
			}
			if draw.HasParticipant(bot.ID) {
				continue
			}
			if _, err := s.draws.Join(ctx, draw.ID, bot); err != nil {
				if errors.Is(err, service.ErrAlreadyJoined) {
					continue
				}
				zap.L().Warn("sweeper: bot join failed",
					zap.String("draw_id", draw.ID),
					zap.Uint("bot_id", bot.ID),
					zap.Error(err))
				continue
			}
			seats--
		}
	}
}

func (s *Sweeper) ensureBots(ctx context.Context) ([]domain.User, error) {
	bots, err := s.users.ListByRole(ctx, domain.RoleBot)
	if err != nil {
		return nil, fmt.Errorf("s.users.ListByRole -> %w", err)
	}

	for i := len(bots); i < s.conf.BotCount; i++ {
		bot, err := s.users.FindOrCreateByEmail(ctx, domain.User{
			Email:    fmt.Sprintf("bot%d@drawroom.internal", i+1),
			Password: "!",
			Username: fmt.Sprintf("bot_%d", i+1),
			Role:     domain.RoleBot,
		})
		if err != nil {
			return nil, fmt.Errorf("s.users.FindOrCreateByEmail -> %w", err)
		}
		bots = append(bots, bot)
	}

	for _, bot := range bots {
		if err := s.wallets.EnsureWallets(ctx, bot.ID); err != nil {
			return nil, fmt.Errorf("s.wallets.EnsureWallets -> %w", err)
		}
		balance, err := s.wallets.GetBalance(ctx, bot.ID, domain.ModeDemo)
		if err != nil {
			return nil, fmt.Errorf("s.wallets.GetBalance -> %w", err)
		}
		if balance < s.conf.BotTopUpBelow {
			if _, err := s.wallets.Credit(ctx, bot.ID, domain.ModeDemo, s.conf.BotTopUpAmount,
				domain.TransactionTopUp, "", "Bot balance top up"); err != nil {
				return nil, fmt.Errorf("s.wallets.Credit -> %w", err)
			}
		}
	}

	return bots, nil
}
