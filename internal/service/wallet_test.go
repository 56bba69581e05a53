package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawroom/drawroom-api/internal/domain"
)

func newWalletFixture(t *testing.T) (*MemoryStore, *WalletService, domain.User) {
	t.Helper()
	ctx := context.Background()

	store := NewMemoryStore()
	wallets := NewWalletService(store.Wallets())

	user, err := store.Users().Create(ctx, domain.User{
		Email:    "alice@example.com",
		Username: "alice",
		Role:     domain.RolePlayer,
	})
	require.NoError(t, err)
	require.NoError(t, wallets.EnsureWallets(ctx, user.ID))

	return store, wallets, user
}

func TestEnsureWalletsCreatesBothModes(t *testing.T) {
	ctx := context.Background()
	_, wallets, user := newWalletFixture(t)

	balances, err := wallets.GetBalances(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	for _, w := range balances {
		assert.Equal(t, int64(0), w.Balance)
	}

	// Idempotent; balances survive a second ensure.
	_, err = wallets.Credit(ctx, user.ID, domain.ModeDemo, 100, domain.TransactionDeposit, "", "test")
	require.NoError(t, err)
	require.NoError(t, wallets.EnsureWallets(ctx, user.ID))
	balance, err := wallets.GetBalance(ctx, user.ID, domain.ModeDemo)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestCreditAndDebitAppendLedgerRows(t *testing.T) {
	ctx := context.Background()
	_, wallets, user := newWalletFixture(t)

	balance, err := wallets.Credit(ctx, user.ID, domain.ModeDemo, 1000, domain.TransactionDeposit, "", "top up")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)

	balance, err = wallets.Debit(ctx, user.ID, domain.ModeDemo, 300, domain.TransactionEntry, "draw-1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(700), balance)

	history, err := wallets.GetHistory(ctx, user.ID, domain.ModeDemo, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	// Newest first.
	assert.Equal(t, int64(-300), history[0].Amount)
	assert.Equal(t, int64(700), history[0].BalanceAfter)
	assert.Equal(t, int64(1000), history[1].Amount)

	ok, err := wallets.Reconcile(ctx, user.ID, domain.ModeDemo)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDebitRejectsOverdraw(t *testing.T) {
	ctx := context.Background()
	_, wallets, user := newWalletFixture(t)

	_, err := wallets.Credit(ctx, user.ID, domain.ModeDemo, 100, domain.TransactionDeposit, "", "")
	require.NoError(t, err)

	_, err = wallets.Debit(ctx, user.ID, domain.ModeDemo, 101, domain.TransactionEntry, "", "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	balance, err := wallets.GetBalance(ctx, user.ID, domain.ModeDemo)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestNonPositiveAmountsRejected(t *testing.T) {
	ctx := context.Background()
	_, wallets, user := newWalletFixture(t)

	_, err := wallets.Credit(ctx, user.ID, domain.ModeDemo, 0, domain.TransactionDeposit, "", "")
	assert.Error(t, err)
	_, err = wallets.Credit(ctx, user.ID, domain.ModeDemo, -5, domain.TransactionDeposit, "", "")
	assert.Error(t, err)
	_, err = wallets.Debit(ctx, user.ID, domain.ModeDemo, -5, domain.TransactionEntry, "", "")
	assert.Error(t, err)
}

func TestModesAreIsolated(t *testing.T) {
	ctx := context.Background()
	_, wallets, user := newWalletFixture(t)

	_, err := wallets.Credit(ctx, user.ID, domain.ModeReal, 500, domain.TransactionDeposit, "", "")
	require.NoError(t, err)

	// The demo wallet cannot spend real credits.
	_, err = wallets.Debit(ctx, user.ID, domain.ModeDemo, 500, domain.TransactionEntry, "", "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	real, err := wallets.GetBalance(ctx, user.ID, domain.ModeReal)
	require.NoError(t, err)
	assert.Equal(t, int64(500), real)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	_, wallets, user := newWalletFixture(t)

	const balance, debit, attempts = 1000, 300, 10
	_, err := wallets.Credit(ctx, user.ID, domain.ModeDemo, balance, domain.TransactionDeposit, "", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = wallets.Debit(ctx, user.ID, domain.ModeDemo, debit, domain.TransactionEntry, "", "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientFunds)
		}
	}
	// 1000 covers exactly three debits of 300.
	assert.Equal(t, 3, succeeded)

	final, err := wallets.GetBalance(ctx, user.ID, domain.ModeDemo)
	require.NoError(t, err)
	assert.Equal(t, int64(100), final)
	assert.GreaterOrEqual(t, final, int64(0))

	ok, err := wallets.Reconcile(ctx, user.ID, domain.ModeDemo)
	require.NoError(t, err)
	assert.True(t, ok)
}
