package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawroom/drawroom-api/internal/domain"
	"github.com/drawroom/drawroom-api/internal/service"
)

type sweeperFixture struct {
	store    *service.MemoryStore
	sweeper  *Sweeper
	draws    *service.DrawService
	wallets  *service.WalletService
	registry *service.TemplateService
	house    domain.User
}

func newSweeperFixture(t *testing.T, conf Config) *sweeperFixture {
	t.Helper()
	ctx := context.Background()

	store := service.NewMemoryStore()
	wallets := service.NewWalletService(store.Wallets())
	registry := service.NewTemplateService(store.Templates(), store.Draws())

	house, err := store.Users().Create(ctx, domain.User{
		Email:    "house@drawroom.internal",
		Username: "house",
		Role:     domain.RoleHouse,
	})
	require.NoError(t, err)
	require.NoError(t, wallets.EnsureWallets(ctx, house.ID))

	draws := service.NewDrawService(store.Draws(), registry, nil, time.Hour, house.ID)

	return &sweeperFixture{
		store:    store,
		sweeper:  NewSweeper(draws, store.Draws(), registry, store.Users(), wallets, conf),
		draws:    draws,
		wallets:  wallets,
		registry: registry,
		house:    house,
	}
}

func (f *sweeperFixture) newTemplate(t *testing.T, slots int, autoFill bool) domain.DrawTemplate {
	t.Helper()
	template, err := f.registry.CreateTemplate(context.Background(), domain.DrawTemplate{
		Label:        "room",
		Slots:        slots,
		EntryCredits: 100,
		FeePercent:   10,
		Enabled:      true,
		AutoFill:     autoFill,
	})
	require.NoError(t, err)
	return template
}

func (f *sweeperFixture) newPlayer(t *testing.T, name string, balance int64) domain.User {
	t.Helper()
	ctx := context.Background()
	user, err := f.store.Users().Create(ctx, domain.User{
		Email:    name + "@example.com",
		Username: name,
		Role:     domain.RolePlayer,
	})
	require.NoError(t, err)
	require.NoError(t, f.wallets.EnsureWallets(ctx, user.ID))
	f.store.SetBalance(user.ID, domain.ModeDemo, balance)
	return user
}

func TestSweepFinalizesDueCountdowns(t *testing.T) {
	ctx := context.Background()
	f := newSweeperFixture(t, Config{Interval: time.Minute})
	template := f.newTemplate(t, 2, false)
	draw, err := f.registry.CreateDrawForTemplate(ctx, template, domain.ModeDemo)
	require.NoError(t, err)

	for _, name := range []string{"alice", "bob"} {
		_, err := f.draws.Join(ctx, draw.ID, f.newPlayer(t, name, 100))
		require.NoError(t, err)
	}

	// Countdown is set an hour out; not due yet.
	f.sweeper.Sweep(ctx)
	current, err := f.draws.GetDraw(ctx, draw.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DrawCountdown, current.Status)

	// Past the deadline the sweep completes it.
	f.store.AgeDraw(draw.ID, 2*time.Hour)
	f.sweeper.Sweep(ctx)
	current, err = f.draws.GetDraw(ctx, draw.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DrawCompleted, current.Status)
	assert.Equal(t, 1, f.store.CountTransactions(domain.TransactionWin, draw.ID))

	// A second sweep finds nothing to do and pays nothing twice.
	f.sweeper.Sweep(ctx)
	assert.Equal(t, 1, f.store.CountTransactions(domain.TransactionWin, draw.ID))
}

func TestSweepRescuesStuckFullDraw(t *testing.T) {
	ctx := context.Background()
	f := newSweeperFixture(t, Config{Interval: time.Minute})
	template := f.newTemplate(t, 2, false)
	draw, err := f.registry.CreateDrawForTemplate(ctx, template, domain.ModeDemo)
	require.NoError(t, err)

	// Fill through the store directly so the draw sticks in FULL without
	// seeds, as after a crash mid-transition.
	alice := f.newPlayer(t, "alice", 100)
	bob := f.newPlayer(t, "bob", 100)
	_, _, err = f.store.Draws().Join(ctx, draw.ID, alice.ID, alice.Username)
	require.NoError(t, err)
	_, _, err = f.store.Draws().Join(ctx, draw.ID, bob.ID, bob.Username)
	require.NoError(t, err)
	f.store.AgeDraw(draw.ID, time.Minute)

	f.sweeper.Sweep(ctx)

	current, err := f.draws.GetDraw(ctx, draw.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DrawCountdown, current.Status)
	assert.NotEmpty(t, current.CommitHash)
}

func TestSweepResumesStaleRunningDraw(t *testing.T) {
	ctx := context.Background()
	f := newSweeperFixture(t, Config{Interval: time.Minute})
	template := f.newTemplate(t, 2, false)
	draw, err := f.registry.CreateDrawForTemplate(ctx, template, domain.ModeDemo)
	require.NoError(t, err)

	for _, name := range []string{"alice", "bob"} {
		_, err := f.draws.Join(ctx, draw.ID, f.newPlayer(t, name, 100))
		require.NoError(t, err)
	}
	_, err = f.store.Draws().MarkRunning(ctx, draw.ID, []domain.DrawStatus{domain.DrawCountdown})
	require.NoError(t, err)
	f.store.AgeDraw(draw.ID, 5*time.Minute)

	f.sweeper.Sweep(ctx)

	current, err := f.draws.GetDraw(ctx, draw.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DrawCompleted, current.Status)
	assert.Equal(t, 1, f.store.CountTransactions(domain.TransactionWin, draw.ID))
}

func TestSweepExpiresStaleOpenDraws(t *testing.T) {
	ctx := context.Background()
	f := newSweeperFixture(t, Config{Interval: time.Minute, OpenTTL: time.Hour})
	template := f.newTemplate(t, 3, false)
	draw, err := f.registry.CreateDrawForTemplate(ctx, template, domain.ModeDemo)
	require.NoError(t, err)

	alice := f.newPlayer(t, "alice", 100)
	_, err = f.draws.Join(ctx, draw.ID, alice)
	require.NoError(t, err)

	// Fresh draws are left alone.
	f.sweeper.Sweep(ctx)
	current, err := f.draws.GetDraw(ctx, draw.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DrawOpen, current.Status)

	f.store.AgeDraw(draw.ID, 2*time.Hour)
	f.sweeper.Sweep(ctx)

	current, err = f.draws.GetDraw(ctx, draw.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DrawExpired, current.Status)

	balance, err := f.wallets.GetBalance(ctx, alice.ID, domain.ModeDemo)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestSweepReplenishesOpenDraws(t *testing.T) {
	ctx := context.Background()
	f := newSweeperFixture(t, Config{Interval: time.Minute})
	template := f.newTemplate(t, 2, false)

	f.sweeper.Sweep(ctx)

	for _, mode := range domain.Modes {
		_, err := f.store.Draws().FindOpenByTemplate(ctx, template.ID, mode)
		assert.NoError(t, err, "missing open draw for mode %s", mode)
	}
}

func TestSweepFillsDemoRoomsLeavingLastSlot(t *testing.T) {
	ctx := context.Background()
	f := newSweeperFixture(t, Config{
		Interval:       time.Minute,
		BotCount:       5,
		BotTopUpBelow:  100,
		BotTopUpAmount: 1000,
	})
	template := f.newTemplate(t, 4, true)

	f.sweeper.Sweep(ctx)

	draw, err := f.store.Draws().FindOpenByTemplate(ctx, template.ID, domain.ModeDemo)
	require.NoError(t, err)
	assert.Equal(t, domain.DrawOpen, draw.Status)
	assert.Equal(t, 3, draw.FilledSlots, "bots must leave the last slot open")

	// Sweeping again adds no further bots.
	f.sweeper.Sweep(ctx)
	draw, err = f.store.Draws().FindOpenByTemplate(ctx, template.ID, domain.ModeDemo)
	require.NoError(t, err)
	assert.Equal(t, 3, draw.FilledSlots)

	// A real player takes the last seat and the room fills.
	alice := f.newPlayer(t, "alice", 100)
	filled, err := f.draws.Join(ctx, draw.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.DrawCountdown, filled.Status)

	// The real-money room is never bot-filled.
	realDraw, err := f.store.Draws().FindOpenByTemplate(ctx, template.ID, domain.ModeReal)
	if err == nil {
		assert.Equal(t, 0, realDraw.FilledSlots)
	}
}
