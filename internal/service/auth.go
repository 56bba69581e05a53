package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/drawroom/drawroom-api/internal/domain"
	"github.com/drawroom/drawroom-api/internal/repository"
)

var (
	ErrUserEmailExists = repository.ErrUserEmailExists
	ErrUserNotFound    = repository.ErrUserNotFound
	ErrWrongPassword   = errors.New("wrong password")
)

type AuthUserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
}

type AuthService struct {
	repo    AuthUserRepository
	wallets *WalletService
	// startingDemoCredits is granted to the DEMO wallet of every signup.
	startingDemoCredits int64
}

func NewAuthService(repo AuthUserRepository, wallets *WalletService, startingDemoCredits int64) *AuthService {
	return &AuthService{
		repo:                repo,
		wallets:             wallets,
		startingDemoCredits: startingDemoCredits,
	}
}

// Signup creates the user with both wallets and grants the demo starter
// balance.
func (s *AuthService) Signup(ctx context.Context, user domain.User) (domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}
	user.Password = string(hash)
	if user.Role == "" {
		user.Role = domain.RolePlayer
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return domain.User{}, fmt.Errorf("s.repo.Create -> %w", err)
	}

	if err = s.wallets.EnsureWallets(ctx, created.ID); err != nil {
		return domain.User{}, fmt.Errorf("s.wallets.EnsureWallets -> %w", err)
	}

	if s.startingDemoCredits > 0 {
		if _, err = s.wallets.Credit(ctx, created.ID, domain.ModeDemo, s.startingDemoCredits,
			domain.TransactionDeposit, "", "Signup demo credits"); err != nil {
			return domain.User{}, fmt.Errorf("s.wallets.Credit -> %w", err)
		}
	}

	return created, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (domain.User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return domain.User{}, ErrUserNotFound
		}

		return domain.User{}, fmt.Errorf("s.repo.FindByEmail -> %w", err)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return domain.User{}, ErrWrongPassword
	}

	return user, nil
}
