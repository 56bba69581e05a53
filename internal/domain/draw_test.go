package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []DrawStatus{
	DrawOpen, DrawFull, DrawCountdown, DrawRunning, DrawCompleted, DrawExpired,
}

func TestDrawStatusTransitions(t *testing.T) {
	allowed := map[DrawStatus][]DrawStatus{
		DrawOpen:      {DrawFull, DrawExpired},
		DrawFull:      {DrawCountdown, DrawRunning},
		DrawCountdown: {DrawRunning},
		DrawRunning:   {DrawCompleted},
		DrawCompleted: {},
		DrawExpired:   {},
	}

	for _, from := range allStatuses {
		legal := make(map[DrawStatus]bool)
		for _, next := range allowed[from] {
			legal[next] = true
		}

		for _, to := range allStatuses {
			assert.Equal(t, legal[to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestDrawStatusIsTerminal(t *testing.T) {
	for _, status := range allStatuses {
		terminal := status == DrawCompleted || status == DrawExpired
		assert.Equal(t, terminal, status.IsTerminal(), "%s", status)

		// A terminal status admits no further transition.
		if status.IsTerminal() {
			for _, to := range allStatuses {
				assert.False(t, status.CanTransitionTo(to), "%s -> %s", status, to)
			}
		}
	}
}
