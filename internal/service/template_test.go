package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawroom/drawroom-api/internal/domain"
)

func newTemplateFixture(t *testing.T) (*MemoryStore, *TemplateService) {
	t.Helper()
	store := NewMemoryStore()
	return store, NewTemplateService(store.Templates(), store.Draws())
}

func TestCreateTemplateValidation(t *testing.T) {
	ctx := context.Background()
	_, templates := newTemplateFixture(t)

	_, err := templates.CreateTemplate(ctx, domain.DrawTemplate{Label: "solo", Slots: 1})
	assert.Error(t, err)

	_, err = templates.CreateTemplate(ctx, domain.DrawTemplate{Label: "greedy", Slots: 2, FeePercent: 101})
	assert.Error(t, err)

	created, err := templates.CreateTemplate(ctx, domain.DrawTemplate{
		Label:        "$5 room",
		Slots:        10,
		EntryDollars: 5,
		FeePercent:   10,
		Enabled:      true,
	})
	require.NoError(t, err)
	// A $5 entry is 500 credits.
	assert.Equal(t, int64(500), created.EntryCredits)
}

func TestDrawSnapshotsTemplatePrice(t *testing.T) {
	ctx := context.Background()
	store, templates := newTemplateFixture(t)

	template, err := templates.CreateTemplate(ctx, domain.DrawTemplate{
		Label:        "room",
		Slots:        4,
		EntryCredits: 250,
		FeePercent:   8,
		Enabled:      true,
	})
	require.NoError(t, err)

	draw, err := templates.CreateDrawForTemplate(ctx, template, domain.ModeReal)
	require.NoError(t, err)
	assert.Equal(t, domain.DrawOpen, draw.Status)
	assert.Equal(t, 4, draw.TotalSlots)
	assert.Equal(t, int64(250), draw.EntryCredits)
	assert.Equal(t, 8, draw.FeePercent)
	assert.Equal(t, domain.ModeReal, draw.Mode)

	// Toggling template flags never touches the spawned draw.
	_, err = templates.UpdateFlags(ctx, template.ID, false, true, true)
	require.NoError(t, err)
	unchanged, err := store.Draws().GetByID(ctx, draw.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(250), unchanged.EntryCredits)
	assert.Equal(t, domain.DrawOpen, unchanged.Status)
}

func TestEnsureOpenDrawIsIdempotent(t *testing.T) {
	ctx := context.Background()
	_, templates := newTemplateFixture(t)

	template, err := templates.CreateTemplate(ctx, domain.DrawTemplate{
		Label: "room", Slots: 2, EntryCredits: 100, Enabled: true,
	})
	require.NoError(t, err)

	first, err := templates.EnsureOpenDraw(ctx, template.ID, domain.ModeDemo)
	require.NoError(t, err)

	second, err := templates.EnsureOpenDraw(ctx, template.ID, domain.ModeDemo)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Modes get separate rooms.
	real, err := templates.EnsureOpenDraw(ctx, template.ID, domain.ModeReal)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, real.ID)
}

func TestEnsureOpenDrawRejectsDisabledTemplate(t *testing.T) {
	ctx := context.Background()
	_, templates := newTemplateFixture(t)

	template, err := templates.CreateTemplate(ctx, domain.DrawTemplate{
		Label: "off", Slots: 2, EntryCredits: 100, Enabled: false,
	})
	require.NoError(t, err)

	_, err = templates.EnsureOpenDraw(ctx, template.ID, domain.ModeDemo)
	assert.Error(t, err)
}

func TestEnsureOpenDrawsCoversEnabledTemplatesAndModes(t *testing.T) {
	ctx := context.Background()
	store, templates := newTemplateFixture(t)

	for _, label := range []string{"a", "b"} {
		_, err := templates.CreateTemplate(ctx, domain.DrawTemplate{
			Label: label, Slots: 2, EntryCredits: 100, Enabled: true,
		})
		require.NoError(t, err)
	}
	disabled, err := templates.CreateTemplate(ctx, domain.DrawTemplate{
		Label: "off", Slots: 2, EntryCredits: 100, Enabled: false,
	})
	require.NoError(t, err)

	require.NoError(t, templates.EnsureOpenDraws(ctx))
	require.NoError(t, templates.EnsureOpenDraws(ctx)) // idempotent

	open, err := store.Draws().ListByStatus(ctx, domain.DrawOpen, 100)
	require.NoError(t, err)
	// 2 enabled templates x 2 modes, exactly once each.
	assert.Len(t, open, 4)
	for _, d := range open {
		assert.NotEqual(t, disabled.ID, d.TemplateID)
	}
}
