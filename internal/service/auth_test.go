package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawroom/drawroom-api/internal/domain"
)

func newAuthFixture(t *testing.T, startingDemoCredits int64) (*MemoryStore, *AuthService, *WalletService) {
	t.Helper()
	store := NewMemoryStore()
	wallets := NewWalletService(store.Wallets())
	return store, NewAuthService(store.Users(), wallets, startingDemoCredits), wallets
}

func TestSignupGrantsStartingDemoCredits(t *testing.T) {
	ctx := context.Background()
	_, auth, wallets := newAuthFixture(t, 1000)

	user, err := auth.Signup(ctx, domain.User{
		Email:    "alice@example.com",
		Password: "secret123",
		Username: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RolePlayer, user.Role)
	assert.NotEqual(t, "secret123", user.Password)

	demo, err := wallets.GetBalance(ctx, user.ID, domain.ModeDemo)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), demo)

	real, err := wallets.GetBalance(ctx, user.ID, domain.ModeReal)
	require.NoError(t, err)
	assert.Equal(t, int64(0), real)

	history, err := wallets.GetHistory(ctx, user.ID, domain.ModeDemo, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.TransactionDeposit, history[0].Type)
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	_, auth, _ := newAuthFixture(t, 0)

	_, err := auth.Signup(ctx, domain.User{Email: "a@example.com", Password: "pw", Username: "a"})
	require.NoError(t, err)

	_, err = auth.Signup(ctx, domain.User{Email: "a@example.com", Password: "pw", Username: "b"})
	assert.ErrorIs(t, err, ErrUserEmailExists)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	_, auth, _ := newAuthFixture(t, 0)

	created, err := auth.Signup(ctx, domain.User{Email: "a@example.com", Password: "secret123", Username: "a"})
	require.NoError(t, err)

	user, err := auth.Login(ctx, "a@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	_, err = auth.Login(ctx, "a@example.com", "wrong")
	assert.ErrorIs(t, err, ErrWrongPassword)

	_, err = auth.Login(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestEnsureHouseUser(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	wallets := NewWalletService(store.Wallets())
	users := NewUserService(store.Users())

	house, err := users.EnsureHouseUser(ctx, wallets)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHouse, house.Role)

	again, err := users.EnsureHouseUser(ctx, wallets)
	require.NoError(t, err)
	assert.Equal(t, house.ID, again.ID)

	// House cannot authenticate; its stored password is not a valid hash.
	auth := NewAuthService(store.Users(), wallets, 0)
	_, err = auth.Login(ctx, house.Email, "!")
	assert.Error(t, err)
}
