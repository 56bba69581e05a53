package repository

import (
	"context"

	"github.com/drawroom/drawroom-api/internal/domain"
	"github.com/drawroom/drawroom-api/internal/repository/dao"
)

var ErrTemplateNotFound = dao.ErrTemplateNotFound

type TemplateRepository struct {
	dao *dao.TemplateDAO
}

func NewTemplateRepository(dao *dao.TemplateDAO) *TemplateRepository {
	return &TemplateRepository{
		dao: dao,
	}
}

func (r *TemplateRepository) Create(ctx context.Context, template domain.DrawTemplate) (domain.DrawTemplate, error) {
	created, err := r.dao.Insert(ctx, templateDomainToDao(template))
	if err != nil {
		return domain.DrawTemplate{}, err
	}

	return templateDaoToDomain(created), nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, id uint) (domain.DrawTemplate, error) {
	found, err := r.dao.GetByID(ctx, id)
	if err != nil {
		return domain.DrawTemplate{}, err
	}

	return templateDaoToDomain(found), nil
}

func (r *TemplateRepository) ListEnabled(ctx context.Context) ([]domain.DrawTemplate, error) {
	templates, err := r.dao.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	return templatesDaoToDomain(templates), nil
}

func (r *TemplateRepository) ListAll(ctx context.Context) ([]domain.DrawTemplate, error) {
	templates, err := r.dao.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	return templatesDaoToDomain(templates), nil
}

func (r *TemplateRepository) UpdateFlags(ctx context.Context, id uint, enabled, requiresDeposit, autoFill bool) (domain.DrawTemplate, error) {
	updated, err := r.dao.UpdateFlags(ctx, id, enabled, requiresDeposit, autoFill)
	if err != nil {
		return domain.DrawTemplate{}, err
	}

	return templateDaoToDomain(updated), nil
}

func templateDomainToDao(t domain.DrawTemplate) dao.DrawTemplate {
	return dao.DrawTemplate{
		ID:              t.ID,
		Label:           t.Label,
		Slots:           t.Slots,
		EntryDollars:    t.EntryDollars,
		EntryCredits:    t.EntryCredits,
		FeePercent:      t.FeePercent,
		Enabled:         t.Enabled,
		RequiresDeposit: t.RequiresDeposit,
		AutoFill:        t.AutoFill,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func templateDaoToDomain(t dao.DrawTemplate) domain.DrawTemplate {
	return domain.DrawTemplate{
		ID:              t.ID,
		Label:           t.Label,
		Slots:           t.Slots,
		EntryDollars:    t.EntryDollars,
		EntryCredits:    t.EntryCredits,
		FeePercent:      t.FeePercent,
		Enabled:         t.Enabled,
		RequiresDeposit: t.RequiresDeposit,
		AutoFill:        t.AutoFill,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func templatesDaoToDomain(templates []dao.DrawTemplate) []domain.DrawTemplate {
	out := make([]domain.DrawTemplate, len(templates))
	for i, t := range templates {
		out[i] = templateDaoToDomain(t)
	}

	return out
}
