package fairness

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSeed(t *testing.T) {
	seed, err := GenerateSeed()
	require.NoError(t, err)

	raw, err := hex.DecodeString(seed)
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	other, err := GenerateSeed()
	require.NoError(t, err)
	assert.NotEqual(t, seed, other)
}

func TestCommitHash(t *testing.T) {
	h := CommitHash("server", "public")

	assert.Len(t, h, 64)
	assert.Equal(t, h, CommitHash("server", "public"))
	assert.NotEqual(t, h, CommitHash("server", "other"))
	assert.NotEqual(t, h, CommitHash("other", "public"))

	assert.True(t, Verify("server", "public", h))
	assert.False(t, Verify("server", "tampered", h))
}

func TestWinnerIndex(t *testing.T) {
	idx, err := WinnerIndex("s1", "p1", "draw-1", 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, idx, 0)
	assert.Less(t, idx, 10)

	// Deterministic: same inputs, same index.
	again, err := WinnerIndex("s1", "p1", "draw-1", 10)
	require.NoError(t, err)
	assert.Equal(t, idx, again)
}

func TestWinnerIndexBindsDrawID(t *testing.T) {
	// Reusing a seed pair across draws must not force the same outcome.
	// With 1000 slots a collision across two draw IDs is overwhelmingly
	// unlikely for at least one of the sampled IDs.
	base, err := WinnerIndex("s1", "p1", "draw-a", 1000)
	require.NoError(t, err)

	differs := false
	for _, id := range []string{"draw-b", "draw-c", "draw-d", "draw-e"} {
		idx, err := WinnerIndex("s1", "p1", id, 1000)
		require.NoError(t, err)
		if idx != base {
			differs = true
		}
	}
	assert.True(t, differs)
}

func TestWinnerIndexSingleParticipant(t *testing.T) {
	idx, err := WinnerIndex("s", "p", "d", 1)
	require.NoError(t, err)
	assert.Zero(t, idx)
}

func TestWinnerIndexRejectsEmptyRoom(t *testing.T) {
	_, err := WinnerIndex("s", "p", "d", 0)
	assert.Error(t, err)

	_, err = WinnerIndex("s", "p", "d", -3)
	assert.Error(t, err)
}
