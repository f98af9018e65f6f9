package game

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/jason-s-yu/heist/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rolePlayers(n int) []*models.Player {
	players := make([]*models.Player, n)
	for i := range players {
		players[i] = &models.Player{UserID: fmt.Sprintf("u%d", i), DisplayName: fmt.Sprintf("P%d", i)}
	}
	return players
}

func TestAssignRolesCounts(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	players := rolePlayers(8)

	require.NoError(t, AssignRoles(players, 3, 2, rnd))

	byRole := make(map[models.Role]int)
	byAlignment := make(map[models.Alignment]int)
	for i, p := range players {
		assert.Equal(t, fmt.Sprintf("u%d", i), p.UserID, "input order must be preserved")
		byRole[p.Role]++
		byAlignment[p.Alignment]++
		assert.Equal(t, p.Role.Alignment(), p.Alignment)
	}
	assert.Equal(t, 3, byAlignment[models.AlignmentTraitor])
	assert.Equal(t, 2, byAlignment[models.AlignmentHero])
	assert.Equal(t, 3, byAlignment[models.AlignmentNeutral])

	// Roles cycle within each faction.
	assert.Equal(t, 2, byRole[models.RoleInfiltrator])
	assert.Equal(t, 1, byRole[models.RoleDoubleAgent])
	assert.Equal(t, 1, byRole[models.RoleMasterThief])
	assert.Equal(t, 1, byRole[models.RoleHacker])
	assert.Equal(t, 3, byRole[models.RoleCivilian])
}

func TestAssignRolesInvalid(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	assert.ErrorIs(t, AssignRoles(rolePlayers(3), 2, 2, rnd), models.ErrInvalidRoleDistribution)
	assert.ErrorIs(t, AssignRoles(rolePlayers(3), -1, 0, rnd), models.ErrInvalidInput)

	players := rolePlayers(2)
	require.NoError(t, AssignRoles(players, 1, 1, rnd))
	assert.NotEqual(t, players[0].Alignment, players[1].Alignment)
}

func TestAssignRolesDeterministicForSeed(t *testing.T) {
	a, b := rolePlayers(6), rolePlayers(6)
	require.NoError(t, AssignRoles(a, 2, 2, rand.New(rand.NewSource(99))))
	require.NoError(t, AssignRoles(b, 2, 2, rand.New(rand.NewSource(99))))
	for i := range a {
		assert.Equal(t, a[i].Role, b[i].Role)
	}
}

func TestAssignRolesHasNoJoinOrderBias(t *testing.T) {
	const runs = 1000
	rnd := rand.New(rand.NewSource(2024))
	traitorHits := make([]int, 6)

	for r := 0; r < runs; r++ {
		players := rolePlayers(6)
		require.NoError(t, AssignRoles(players, 2, 1, rnd))
		for i, p := range players {
			if p.Alignment == models.AlignmentTraitor {
				traitorHits[i]++
			}
		}
	}

	// Each seat should be a traitor about a third of the time (sd ~15).
	for i, hits := range traitorHits {
		assert.InDelta(t, runs/3, hits, 75, "seat %d was a traitor %d times", i, hits)
	}
}
