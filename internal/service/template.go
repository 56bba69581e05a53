package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/drawroom/drawroom-api/internal/domain"
	"github.com/drawroom/drawroom-api/internal/repository"
)

var ErrTemplateNotFound = repository.ErrTemplateNotFound

// CreditsPerDollar is the fixed conversion rate between the display price
// and internal credits.
const CreditsPerDollar = 100

type TemplateRepository interface {
	Create(ctx context.Context, template domain.DrawTemplate) (domain.DrawTemplate, error)
	GetByID(ctx context.Context, id uint) (domain.DrawTemplate, error)
	ListEnabled(ctx context.Context) ([]domain.DrawTemplate, error)
	ListAll(ctx context.Context) ([]domain.DrawTemplate, error)
	UpdateFlags(ctx context.Context, id uint, enabled, requiresDeposit, autoFill bool) (domain.DrawTemplate, error)
}

type TemplateDrawRepository interface {
	Create(ctx context.Context, draw domain.Draw) (domain.Draw, error)
	FindOpenByTemplate(ctx context.Context, templateID uint, mode domain.WalletMode) (domain.Draw, error)
}

// TemplateService is the registry draws are spawned from. A template is a
// factory, never a draw itself.
type TemplateService struct {
	repo     TemplateRepository
	drawRepo TemplateDrawRepository
}

func NewTemplateService(repo TemplateRepository, drawRepo TemplateDrawRepository) *TemplateService {
	return &TemplateService{
		repo:     repo,
		drawRepo: drawRepo,
	}
}

func (s *TemplateService) CreateTemplate(ctx context.Context, template domain.DrawTemplate) (domain.DrawTemplate, error) {
	if template.Slots < 2 {
		return domain.DrawTemplate{}, fmt.Errorf("template needs at least 2 slots, got %d", template.Slots)
	}
	if template.FeePercent < 0 || template.FeePercent > 100 {
		return domain.DrawTemplate{}, fmt.Errorf("fee percent out of range: %d", template.FeePercent)
	}
	if template.EntryCredits == 0 {
		template.EntryCredits = int64(template.EntryDollars) * CreditsPerDollar
	}

	created, err := s.repo.Create(ctx, template)
	if err != nil {
		return domain.DrawTemplate{}, fmt.Errorf("s.repo.Create -> %w", err)
	}

	return created, nil
}

func (s *TemplateService) GetTemplate(ctx context.Context, id uint) (domain.DrawTemplate, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *TemplateService) ListTemplates(ctx context.Context) ([]domain.DrawTemplate, error) {
	templates, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("s.repo.ListAll -> %w", err)
	}

	return templates, nil
}

func (s *TemplateService) UpdateFlags(ctx context.Context, id uint, enabled, requiresDeposit, autoFill bool) (domain.DrawTemplate, error) {
	return s.repo.UpdateFlags(ctx, id, enabled, requiresDeposit, autoFill)
}

// CreateDrawForTemplate spawns a fresh OPEN draw, snapshotting the
// template's current price and fee so later template edits never touch
// in-flight draws.
func (s *TemplateService) CreateDrawForTemplate(ctx context.Context, template domain.DrawTemplate, mode domain.WalletMode) (domain.Draw, error) {
	draw, err := s.drawRepo.Create(ctx, domain.Draw{
		TemplateID:   template.ID,
		Mode:         mode,
		Status:       domain.DrawOpen,
		TotalSlots:   template.Slots,
		EntryCredits: template.EntryCredits,
		FeePercent:   template.FeePercent,
	})
	if err != nil {
		return domain.Draw{}, fmt.Errorf("s.drawRepo.Create -> %w", err)
	}

	zap.L().Info("spawned open draw",
		zap.String("draw_id", draw.ID),
		zap.Uint("template_id", template.ID),
		zap.String("mode", string(mode)))

	return draw, nil
}

// EnsureOpenDraw guarantees an OPEN draw exists for (template, mode).
// Concurrent callers may briefly create two; that is harmless and
// self-heals as rooms fill.
func (s *TemplateService) EnsureOpenDraw(ctx context.Context, templateID uint, mode domain.WalletMode) (domain.Draw, error) {
	existing, err := s.drawRepo.FindOpenByTemplate(ctx, templateID, mode)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrDrawNotFound) {
		return domain.Draw{}, fmt.Errorf("s.drawRepo.FindOpenByTemplate -> %w", err)
	}

	template, err := s.repo.GetByID(ctx, templateID)
	if err != nil {
		return domain.Draw{}, err
	}
	if !template.Enabled {
		return domain.Draw{}, fmt.Errorf("template %d is disabled", templateID)
	}

	return s.CreateDrawForTemplate(ctx, template, mode)
}

// EnsureOpenDraws walks every enabled template and both wallet modes.
// Idempotent; safe to call repeatedly and concurrently.
func (s *TemplateService) EnsureOpenDraws(ctx context.Context) error {
	templates, err := s.repo.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("s.repo.ListEnabled -> %w", err)
	}

	for _, template := range templates {
		for _, mode := range domain.Modes {
			if _, err := s.EnsureOpenDraw(ctx, template.ID, mode); err != nil {
				return fmt.Errorf("s.EnsureOpenDraw(%d, %v) -> %w", template.ID, mode, err)
			}
		}
	}

	return nil
}
