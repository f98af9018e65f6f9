// internal/game/avatar.go
package game

import (
	"math/rand"

	"github.com/jason-s-yu/heist/internal/models"
)

// DefaultAvatarPool is the number of avatar images shipped with the client.
const DefaultAvatarPool = 18

// AllocateAvatar picks an avatar id in [1, pool] for a joining player.
// requested == 0 means no preference. A free requested id is honoured;
// otherwise a uniformly random free id is used. When every id is taken
// the requested id (or a random one) is reused as a duplicate.
func AllocateAvatar(requested int, taken map[int]bool, pool int, rnd *rand.Rand) (int, error) {
	if pool <= 0 {
		pool = DefaultAvatarPool
	}
	if requested < 0 || requested > pool {
		return 0, models.ErrInvalidAvatar
	}
	if requested != 0 && !taken[requested] {
		return requested, nil
	}

	free := make([]int, 0, pool)
	for id := 1; id <= pool; id++ {
		if !taken[id] {
			free = append(free, id)
		}
	}
	if len(free) > 0 {
		return free[rnd.Intn(len(free))], nil
	}

	if requested != 0 {
		return requested, nil
	}
	return rnd.Intn(pool) + 1, nil
}
