package service

import (
	"context"
	"fmt"

	"github.com/drawroom/drawroom-api/internal/domain"
)

type UserRepository interface {
	FindByID(ctx context.Context, id uint) (domain.User, error)
	ListByRole(ctx context.Context, role string) ([]domain.User, error)
	FindOrCreateByEmail(ctx context.Context, user domain.User) (domain.User, error)
}

type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{
		repo: repo,
	}
}

func (s *UserService) GetUser(ctx context.Context, id uint) (domain.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	return user, nil
}

// EnsureHouseUser returns the reserved account that collects draw fees,
// creating it on first call.
func (s *UserService) EnsureHouseUser(ctx context.Context, wallets *WalletService) (domain.User, error) {
	house, err := s.repo.FindOrCreateByEmail(ctx, domain.User{
		Email:    "house@drawroom.internal",
		Password: "!", // never a valid bcrypt hash, login impossible
		Username: "house",
		Role:     domain.RoleHouse,
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("s.repo.FindOrCreateByEmail -> %w", err)
	}

	if err = wallets.EnsureWallets(ctx, house.ID); err != nil {
		return domain.User{}, fmt.Errorf("wallets.EnsureWallets -> %w", err)
	}

	return house, nil
}
