package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drawroom/drawroom-api/internal/domain"
	"github.com/drawroom/drawroom-api/internal/repository/dao"
)

func TestDrawDaoToDomainCarriesParticipants(t *testing.T) {
	draw := dao.Draw{
		ID:          "d-1",
		Status:      string(domain.DrawFull),
		TotalSlots:  2,
		FilledSlots: 2,
	}
	participants := []dao.Participant{
		{DrawID: "d-1", UserID: 1, Username: "alice", Position: 0},
		{DrawID: "d-1", UserID: 2, Username: "bob", Position: 1},
	}

	mapped := drawDaoToDomain(draw, participants)

	// Every read path that loads participant rows must surface all of them,
	// so filled_slots and the roster length agree in API responses.
	assert.Len(t, mapped.Participants, mapped.FilledSlots)
	assert.Equal(t, domain.Participant{UserID: 1, Username: "alice", Position: 0}, mapped.Participants[0])
	assert.Equal(t, domain.Participant{UserID: 2, Username: "bob", Position: 1}, mapped.Participants[1])
	assert.True(t, mapped.HasParticipant(2))
	assert.False(t, mapped.HasParticipant(3))
}
