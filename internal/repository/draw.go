package repository

import (
	"context"
	"time"

	"github.com/drawroom/drawroom-api/internal/domain"
	"github.com/drawroom/drawroom-api/internal/repository/dao"
)

var (
	ErrDrawNotFound        = dao.ErrDrawNotFound
	ErrDrawNotOpen         = dao.ErrDrawNotOpen
	ErrDrawFull            = dao.ErrDrawFull
	ErrAlreadyJoined       = dao.ErrAlreadyJoined
	ErrDrawNotReady        = dao.ErrDrawNotReady
	ErrAlreadyFinalized    = dao.ErrAlreadyFinalized
	ErrCountdownAlreadySet = dao.ErrCountdownAlreadySet
	ErrDrawNotExpirable    = dao.ErrDrawNotExpirable
)

type DrawRepository struct {
	dao *dao.DrawDAO
}

func NewDrawRepository(dao *dao.DrawDAO) *DrawRepository {
	return &DrawRepository{
		dao: dao,
	}
}

func (r *DrawRepository) Create(ctx context.Context, draw domain.Draw) (domain.Draw, error) {
	created, err := r.dao.Insert(ctx, drawDomainToDao(draw))
	if err != nil {
		return domain.Draw{}, err
	}

	return drawDaoToDomain(created, nil), nil
}

func (r *DrawRepository) GetByID(ctx context.Context, id string) (domain.Draw, error) {
	draw, participants, err := r.dao.GetByID(ctx, id)
	if err != nil {
		return domain.Draw{}, err
	}

	return drawDaoToDomain(draw, participants), nil
}

func (r *DrawRepository) FindOpenByTemplate(ctx context.Context, templateID uint, mode domain.WalletMode) (domain.Draw, error) {
	draw, err := r.dao.FindOpenByTemplate(ctx, templateID, string(mode))
	if err != nil {
		return domain.Draw{}, err
	}

	return drawDaoToDomain(draw, nil), nil
}

func (r *DrawRepository) ListByStatus(ctx context.Context, status domain.DrawStatus, limit int) ([]domain.Draw, error) {
	draws, err := r.dao.ListByStatus(ctx, string(status), limit)
	if err != nil {
		return nil, err
	}

	return drawsDaoToDomain(draws), nil
}

func (r *DrawRepository) ListDueCountdown(ctx context.Context, now time.Time) ([]domain.Draw, error) {
	draws, err := r.dao.ListDueCountdown(ctx, now)
	if err != nil {
		return nil, err
	}

	return drawsDaoToDomain(draws), nil
}

func (r *DrawRepository) ListStaleRunning(ctx context.Context, cutoff time.Time) ([]domain.Draw, error) {
	draws, err := r.dao.ListStaleRunning(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	return drawsDaoToDomain(draws), nil
}

func (r *DrawRepository) ListStaleOpen(ctx context.Context, cutoff time.Time) ([]domain.Draw, error) {
	draws, err := r.dao.ListStaleOpen(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	return drawsDaoToDomain(draws), nil
}

func (r *DrawRepository) Join(ctx context.Context, drawID string, userID uint, username string) (domain.Draw, bool, error) {
	draw, participants, filled, err := r.dao.Join(ctx, drawID, userID, username)
	if err != nil {
		return domain.Draw{}, false, err
	}

	return drawDaoToDomain(draw, participants), filled, nil
}

func (r *DrawRepository) StartCountdown(ctx context.Context, drawID, serverSeed, publicSeed, commitHash string, endsAt time.Time) (domain.Draw, error) {
	draw, participants, err := r.dao.StartCountdown(ctx, drawID, serverSeed, publicSeed, commitHash, endsAt)
	if err != nil {
		return domain.Draw{}, err
	}

	return drawDaoToDomain(draw, participants), nil
}

func (r *DrawRepository) MarkRunning(ctx context.Context, drawID string, allowedFrom []domain.DrawStatus) (domain.Draw, error) {
	from := make([]string, len(allowedFrom))
	for i, s := range allowedFrom {
		from[i] = string(s)
	}

	draw, participants, err := r.dao.MarkRunning(ctx, drawID, from)
	if err != nil {
		return domain.Draw{}, err
	}

	return drawDaoToDomain(draw, participants), nil
}

func (r *DrawRepository) AttachSeeds(ctx context.Context, drawID, serverSeed, publicSeed, commitHash string) error {
	return r.dao.AttachSeeds(ctx, drawID, serverSeed, publicSeed, commitHash)
}

func (r *DrawRepository) Complete(ctx context.Context, drawID string, winner domain.Participant, fee, prize int64, contract []byte, houseUserID uint) (domain.Draw, error) {
	completed, participants, err := r.dao.Complete(ctx, drawID, dao.Participant{
		DrawID:   drawID,
		UserID:   winner.UserID,
		Username: winner.Username,
		Position: winner.Position,
	}, fee, prize, contract, houseUserID)
	if err != nil {
		return domain.Draw{}, err
	}

	return drawDaoToDomain(completed, participants), nil
}

func (r *DrawRepository) Expire(ctx context.Context, drawID string) (domain.Draw, error) {
	expired, err := r.dao.Expire(ctx, drawID)
	if err != nil {
		return domain.Draw{}, err
	}

	return drawDaoToDomain(expired, nil), nil
}

func drawDomainToDao(d domain.Draw) dao.Draw {
	return dao.Draw{
		ID:              d.ID,
		TemplateID:      d.TemplateID,
		Mode:            string(d.Mode),
		Status:          string(d.Status),
		TotalSlots:      d.TotalSlots,
		EntryCredits:    d.EntryCredits,
		FeePercent:      d.FeePercent,
		FilledSlots:     d.FilledSlots,
		Pool:            d.Pool,
		Fee:             d.Fee,
		Prize:           d.Prize,
		WinnerID:        d.WinnerID,
		WinnerUsername:  d.WinnerUsername,
		ServerSeed:      d.ServerSeed,
		PublicSeed:      d.PublicSeed,
		CommitHash:      d.CommitHash,
		CountdownEndsAt: d.CountdownEndsAt,
		CompletedAt:     d.CompletedAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func drawDaoToDomain(d dao.Draw, participants []dao.Participant) domain.Draw {
	draw := domain.Draw{
		ID:              d.ID,
		TemplateID:      d.TemplateID,
		Mode:            domain.WalletMode(d.Mode),
		Status:          domain.DrawStatus(d.Status),
		TotalSlots:      d.TotalSlots,
		EntryCredits:    d.EntryCredits,
		FeePercent:      d.FeePercent,
		FilledSlots:     d.FilledSlots,
		Pool:            d.Pool,
		Fee:             d.Fee,
		Prize:           d.Prize,
		WinnerID:        d.WinnerID,
		WinnerUsername:  d.WinnerUsername,
		ServerSeed:      d.ServerSeed,
		PublicSeed:      d.PublicSeed,
		CommitHash:      d.CommitHash,
		CountdownEndsAt: d.CountdownEndsAt,
		CompletedAt:     d.CompletedAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}

	for _, p := range participants {
		draw.Participants = append(draw.Participants, domain.Participant{
			UserID:   p.UserID,
			Username: p.Username,
			Position: p.Position,
		})
	}

	return draw
}

func drawsDaoToDomain(draws []dao.Draw) []domain.Draw {
	out := make([]domain.Draw, len(draws))
	for i, d := range draws {
		out[i] = drawDaoToDomain(d, nil)
	}

	return out
}
