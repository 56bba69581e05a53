package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawroom/drawroom-api/internal/domain"
	"github.com/drawroom/drawroom-api/internal/fairness"
)

type drawFixture struct {
	store    *MemoryStore
	draws    *DrawService
	wallets  *WalletService
	registry *TemplateService
	house    domain.User
	template domain.DrawTemplate
	draw     domain.Draw
}

func newDrawFixture(t *testing.T, slots int, entryCredits int64, feePercent int) *drawFixture {
	t.Helper()
	ctx := context.Background()

	store := NewMemoryStore()
	wallets := NewWalletService(store.Wallets())
	registry := NewTemplateService(store.Templates(), store.Draws())

	house, err := store.Users().Create(ctx, domain.User{
		Email:    "house@drawroom.internal",
		Username: "house",
		Role:     domain.RoleHouse,
	})
	require.NoError(t, err)
	require.NoError(t, wallets.EnsureWallets(ctx, house.ID))

	draws := NewDrawService(store.Draws(), registry, nil, time.Hour, house.ID)

	template, err := registry.CreateTemplate(ctx, domain.DrawTemplate{
		Label:        "test room",
		Slots:        slots,
		EntryCredits: entryCredits,
		FeePercent:   feePercent,
		Enabled:      true,
	})
	require.NoError(t, err)

	draw, err := registry.CreateDrawForTemplate(ctx, template, domain.ModeDemo)
	require.NoError(t, err)

	return &drawFixture{
		store:    store,
		draws:    draws,
		wallets:  wallets,
		registry: registry,
		house:    house,
		template: template,
		draw:     draw,
	}
}

func (f *drawFixture) newPlayer(t *testing.T, name string, balance int64) domain.User {
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

func TestJoinDebitsAndReservesSlot(t *testing.T) {
	ctx := context.Background()
	f := newDrawFixture(t, 3, 500, 10)
	alice := f.newPlayer(t, "alice", 2000)

	draw, err := f.draws.Join(ctx, f.draw.ID, alice)
	require.NoError(t, err)

	assert.Equal(t, domain.DrawOpen, draw.Status)
	assert.Equal(t, 1, draw.FilledSlots)
	assert.Equal(t, int64(500), draw.Pool)
	require.Len(t, draw.Participants, 1)
	assert.Equal(t, alice.ID, draw.Participants[0].UserID)
	assert.Equal(t, 0, draw.Participants[0].Position)

	balance, err := f.wallets.GetBalance(ctx, alice.ID, domain.ModeDemo)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), balance)

	assert.Equal(t, 1, f.store.CountTransactions(domain.TransactionEntry, f.draw.ID))
}

func TestDoubleJoinRejected(t *testing.T) {
	ctx := context.Background()
	f := newDrawFixture(t, 3, 500, 10)
	alice := f.newPlayer(t, "alice", 2000)

	_, err := f.draws.Join(ctx, f.draw.ID, alice)
	require.NoError(t, err)

	_, err = f.draws.Join(ctx, f.draw.ID, alice)
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	// Only the first entry was charged.
	balance, err := f.wallets.GetBalance(ctx, alice.ID, domain.ModeDemo)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), balance)
	assert.Equal(t, 1, f.store.CountTransactions(domain.TransactionEntry, f.draw.ID))
}

func TestInsufficientFundsLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newDrawFixture(t, 3, 500, 10)
	poor := f.newPlayer(t, "poor", 100)

	_, err := f.draws.Join(ctx, f.draw.ID, poor)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	draw, err := f.draws.GetDraw(ctx, f.draw.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, draw.FilledSlots)
	assert.Equal(t, int64(0), draw.Pool)
	assert.Empty(t, draw.Participants)

	balance, err := f.wallets.GetBalance(ctx, poor.ID, domain.ModeDemo)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
	assert.Equal(t, 0, f.store.CountTransactions(domain.TransactionEntry, f.draw.ID))
}

func TestFillingLastSlotStartsCountdown(t *testing.T) {
	ctx := context.Background()
	f := newDrawFixture(t, 2, 500, 10)
	alice := f.newPlayer(t, "alice", 1000)
	bob := f.newPlayer(t, "bob", 1000)

	_, err := f.draws.Join(ctx, f.draw.ID, alice)
	require.NoError(t, err)

	draw, err := f.draws.Join(ctx, f.draw.ID, bob)
	require.NoError(t, err)

	assert.Equal(t, domain.DrawCountdown, draw.Status)
	require.Len(t, draw.Participants, draw.FilledSlots)
	assert.NotEmpty(t, draw.ServerSeed)
	assert.NotEmpty(t, draw.PublicSeed)
	assert.Equal(t, fairness.CommitHash(draw.ServerSeed, draw.PublicSeed), draw.CommitHash)
	require.NotNil(t, draw.CountdownEndsAt)
	assert.True(t, draw.CountdownEndsAt.After(time.Now()))

	// A latecomer bounces off the closed room.
	carol := f.newPlayer(t, "carol", 1000)
	_, err = f.draws.Join(ctx, f.draw.ID, carol)
	assert.ErrorIs(t, err, ErrDrawNotOpen)
}

// The two-player scenario from end to end: 2 slots at 500 credits and a 10%
// fee make a 1000 pool, a 100 fee and a 900 prize.
func TestFinalizePaysWinnerAndHouse(t *testing.T) {
	ctx := context.Background()
	f := newDrawFixture(t, 2, 500, 10)
	alice := f.newPlayer(t, "alice", 500)
	bob := f.newPlayer(t, "bob", 500)

	_, err := f.draws.Join(ctx, f.draw.ID, alice)
	require.NoError(t, err)
	_, err = f.draws.Join(ctx, f.draw.ID, bob)
	require.NoError(t, err)

	completed, err := f.draws.Finalize(ctx, f.draw.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.DrawCompleted, completed.Status)
	assert.Equal(t, int64(1000), completed.Pool)
	assert.Equal(t, int64(100), completed.Fee)
	assert.Equal(t, int64(900), completed.Prize)
	assert.NotZero(t, completed.WinnerID)
	require.NotNil(t, completed.CompletedAt)

	winnerBalance, err := f.wallets.GetBalance(ctx, completed.WinnerID, domain.ModeDemo)
	require.NoError(t, err)
	assert.Equal(t, int64(900), winnerBalance)

	loserID := alice.ID
	if completed.WinnerID == alice.ID {
		loserID = bob.ID
	}
	loserBalance, err := f.wallets.GetBalance(ctx, loserID, domain.ModeDemo)
	require.NoError(t, err)
	assert.Equal(t, int64(0), loserBalance)

	houseBalance, err := f.wallets.GetBalance(ctx, f.house.ID, domain.ModeDemo)
	require.NoError(t, err)
	assert.Equal(t, int64(100), houseBalance)

	// Credits are conserved: winner + loser + house == total entering money.
	assert.Equal(t, int64(1000), winnerBalance+loserBalance+houseBalance)

	// Ledgers reconcile for everyone involved.
	for _, userID := range []uint{alice.ID, bob.ID, f.house.ID} {
		ok, err := f.wallets.Reconcile(ctx, userID, domain.ModeDemo)
		require.NoError(t, err)
		assert.True(t, ok, "ledger out of balance for user %d", userID)
	}

	// A fresh OPEN draw was spawned for the same template and mode.
	next, err := f.store.Draws().FindOpenByTemplate(ctx, f.template.ID, domain.ModeDemo)
	require.NoError(t, err)
	assert.NotEqual(t, f.draw.ID, next.ID)
}

func TestConcurrentJoinsNeverOversell(t *testing.T) {
	ctx := context.Background()
	const slots, players = 5, 20
	f := newDrawFixture(t, slots, 500, 10)

	users := make([]domain.User, players)
	for i := range users {
		users[i] = f.newPlayer(t, fmt.Sprintf("player%d", i), 500)
	}

	var wg sync.WaitGroup
	errs := make([]error, players)
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.draws.Join(ctx, f.draw.ID, users[i])
		}(i)
	}
	wg.Wait()

	joined := 0
	for _, err := range errs {
		if err == nil {
			joined++
			continue
		}
		assert.True(t, errors.Is(err, ErrDrawNotOpen) || errors.Is(err, ErrDrawFull),
			"unexpected join error: %v", err)
	}
	assert.Equal(t, slots, joined)

	draw, err := f.draws.GetDraw(ctx, f.draw.ID)
	require.NoError(t, err)
	assert.Equal(t, slots, draw.FilledSlots)
	assert.Len(t, draw.Participants, slots)
	assert.Equal(t, int64(slots*500), draw.Pool)

	// Exactly the winners were debited; the losers keep their money.
	assert.Equal(t, slots, f.store.CountTransactions(domain.TransactionEntry, f.draw.ID))
	var total int64
	for _, u := range users {
		balance, err := f.wallets.GetBalance(ctx, u.ID, domain.ModeDemo)
		require.NoError(t, err)
		total += balance
	}
	assert.Equal(t, int64((players-slots)*500), total)
}

func TestFinalizeExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newDrawFixture(t, 2, 500, 10)
	alice := f.newPlayer(t, "alice", 500)
	bob := f.newPlayer(t, "bob", 500)

	_, err := f.draws.Join(ctx, f.draw.ID, alice)
	require.NoError(t, err)
	_, err = f.draws.Join(ctx, f.draw.ID, bob)
	require.NoError(t, err)

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.draws.Finalize(ctx, f.draw.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyFinalized)
	}
	assert.Equal(t, 1, succeeded)

	// One payout, one fee. Never more.
	assert.Equal(t, 1, f.store.CountTransactions(domain.TransactionWin, f.draw.ID))
	assert.Equal(t, 1, f.store.CountTransactions(domain.TransactionFee, f.draw.ID))
}

func TestWinnerDerivationMatchesCommitReveal(t *testing.T) {
	ctx := context.Background()
	f := newDrawFixture(t, 3, 100, 5)
	for _, name := range []string{"alice", "bob", "carol"} {
		user := f.newPlayer(t, name, 100)
		_, err := f.draws.Join(ctx, f.draw.ID, user)
		require.NoError(t, err)
	}

	completed, err := f.draws.Finalize(ctx, f.draw.ID)
	require.NoError(t, err)

	require.True(t, fairness.Verify(completed.ServerSeed, completed.PublicSeed, completed.CommitHash))
	idx, err := fairness.WinnerIndex(completed.ServerSeed, completed.PublicSeed, completed.ID, len(completed.Participants))
	require.NoError(t, err)
	assert.Equal(t, completed.Participants[idx].UserID, completed.WinnerID)

	ok, err := f.draws.VerifyDraw(ctx, f.draw.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestForceFinalizeGeneratesMissingSeeds(t *testing.T) {
	ctx := context.Background()
	f := newDrawFixture(t, 2, 500, 10)
	alice := f.newPlayer(t, "alice", 500)
	bob := f.newPlayer(t, "bob", 500)

	// Fill through the store directly so the room sticks in FULL without
	// seeds, as if the filling request died before the countdown attached.
	_, _, err := f.store.Draws().Join(ctx, f.draw.ID, alice.ID, alice.Username)
	require.NoError(t, err)
	_, _, err = f.store.Draws().Join(ctx, f.draw.ID, bob.ID, bob.Username)
	require.NoError(t, err)

	stuck, err := f.draws.GetDraw(ctx, f.draw.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DrawFull, stuck.Status)
	require.Empty(t, stuck.ServerSeed)

	completed, err := f.draws.ForceFinalize(ctx, f.draw.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DrawCompleted, completed.Status)
	assert.NotEmpty(t, completed.ServerSeed)
	assert.Equal(t, 1, f.store.CountTransactions(domain.TransactionWin, f.draw.ID))
}

func TestResumeFinalizeStaleRunning(t *testing.T) {
	ctx := context.Background()
	f := newDrawFixture(t, 2, 500, 10)
	alice := f.newPlayer(t, "alice", 500)
	bob := f.newPlayer(t, "bob", 500)

	_, err := f.draws.Join(ctx, f.draw.ID, alice)
	require.NoError(t, err)
	_, err = f.draws.Join(ctx, f.draw.ID, bob)
	require.NoError(t, err)

	// Flip to RUNNING and stop, as a crash between the flip and the payout
	// would leave it.
	_, err = f.store.Draws().MarkRunning(ctx, f.draw.ID, []domain.DrawStatus{domain.DrawCountdown})
	require.NoError(t, err)

	completed, err := f.draws.ResumeFinalize(ctx, f.draw.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DrawCompleted, completed.Status)
	assert.Equal(t, 1, f.store.CountTransactions(domain.TransactionWin, f.draw.ID))

	// A second resume finds it settled.
	_, err = f.draws.ResumeFinalize(ctx, f.draw.ID)
	assert.ErrorIs(t, err, ErrDrawNotReady)
	assert.Equal(t, 1, f.store.CountTransactions(domain.TransactionWin, f.draw.ID))
}

func TestExpireRefundsParticipants(t *testing.T) {
	ctx := context.Background()
	f := newDrawFixture(t, 3, 500, 10)
	alice := f.newPlayer(t, "alice", 500)

	_, err := f.draws.Join(ctx, f.draw.ID, alice)
	require.NoError(t, err)

	expired, err := f.draws.Expire(ctx, f.draw.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DrawExpired, expired.Status)

	balance, err := f.wallets.GetBalance(ctx, alice.ID, domain.ModeDemo)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)
	assert.Equal(t, 1, f.store.CountTransactions(domain.TransactionRefund, f.draw.ID))

	ok, err := f.wallets.Reconcile(ctx, alice.ID, domain.ModeDemo)
	require.NoError(t, err)
	assert.True(t, ok)

	// Terminal states cannot be expired again or joined.
	_, err = f.draws.Expire(ctx, f.draw.ID)
	assert.Error(t, err)
	bob := f.newPlayer(t, "bob", 500)
	_, err = f.draws.Join(ctx, f.draw.ID, bob)
	assert.ErrorIs(t, err, ErrDrawNotOpen)
}

func TestFeeRoundingConservesPool(t *testing.T) {
	cases := []struct {
		pool       int64
		feePercent int
		fee        int64
	}{
		{1000, 10, 100},
		{999, 10, 100}, // 99.9 rounds up
		{994, 10, 99},  // 99.4 rounds down
		{1000, 0, 0},
		{1000, 100, 1000},
		{3, 50, 2}, // 1.5 rounds up
	}

	for _, c := range cases {
		fee, prize := domain.SplitPool(c.pool, c.feePercent)
		assert.Equal(t, c.fee, fee, "pool %d at %d%%", c.pool, c.feePercent)
		assert.Equal(t, c.pool, fee+prize, "pool %d at %d%% must be conserved", c.pool, c.feePercent)
	}
}
