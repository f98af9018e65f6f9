// internal/game/roles.go
package game

import (
	"math/rand"

	"github.com/jason-s-yu/heist/internal/models"
)

var (
	traitorRoles = []models.Role{models.RoleInfiltrator, models.RoleDoubleAgent}
	heroRoles    = []models.Role{models.RoleMasterThief, models.RoleHacker}
)

// ValidRoleCounts reports whether traitors and heroes can be dealt to
// total players with the remainder as civilians.
func ValidRoleCounts(total, traitors, heroes int) bool {
	return traitors >= 0 && heroes >= 0 && traitors+heroes <= total
}

// AssignRoles shuffles a copy of players and deals traitorCount traitor
// roles, then heroCount hero roles, cycling through each faction's roles.
// Everyone left over becomes a civilian. players is modified in place but
// its order is preserved.
func AssignRoles(players []*models.Player, traitorCount, heroCount int, rnd *rand.Rand) error {
	if !ValidRoleCounts(len(players), traitorCount, heroCount) {
		return models.ErrInvalidRoleDistribution
	}

	shuffled := make([]*models.Player, len(players))
	copy(shuffled, players)
	rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	for i, p := range shuffled {
		switch {
		case i < traitorCount:
			p.Role = traitorRoles[i%len(traitorRoles)]
		case i < traitorCount+heroCount:
			p.Role = heroRoles[(i-traitorCount)%len(heroRoles)]
		default:
			p.Role = models.RoleCivilian
		}
		p.Alignment = p.Role.Alignment()
	}
	return nil
}
