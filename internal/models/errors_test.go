package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	wrapped := fmt.Errorf("join room: %w", ErrRoomFull)
	assert.ErrorIs(t, wrapped, ErrRoomFull)
	assert.ErrorIs(t, wrapped, ErrConflict)
	assert.NotErrorIs(t, wrapped, ErrNotFound)

	assert.ErrorIs(t, ErrPlayersNotReady, ErrPreconditionFailed)
	assert.ErrorIs(t, ErrInvalidRoleDistribution, ErrInvalidInput)
	assert.Equal(t, "room not found", ErrRoomNotFound.Error())
}

func TestRoomStatusTransitions(t *testing.T) {
	assert.True(t, RoomStatusLobby.CanTransitionTo(RoomStatusPlaying))
	assert.True(t, RoomStatusLobby.CanTransitionTo(RoomStatusEnded))
	assert.True(t, RoomStatusPlaying.CanTransitionTo(RoomStatusEnded))
	assert.True(t, RoomStatusPlaying.CanTransitionTo(RoomStatusPlaying))

	assert.False(t, RoomStatusPlaying.CanTransitionTo(RoomStatusLobby))
	assert.False(t, RoomStatusEnded.CanTransitionTo(RoomStatusPlaying))
	assert.False(t, RoomStatus("paused").CanTransitionTo(RoomStatusEnded))
}

func TestRoleAbilities(t *testing.T) {
	cases := map[Role]Ability{
		RoleMasterThief: AbilityLockpick,
		RoleHacker:      AbilityInvestigate,
		RoleInfiltrator: AbilitySabotage,
		RoleDoubleAgent: AbilityFrame,
	}
	for role, want := range cases {
		got, ok := role.Ability()
		assert.True(t, ok, role)
		assert.Equal(t, want, got, role)
	}
	_, ok := RoleCivilian.Ability()
	assert.False(t, ok)

	assert.Equal(t, AlignmentTraitor, RoleDoubleAgent.Alignment())
	assert.Equal(t, AlignmentHero, RoleHacker.Alignment())
	assert.Equal(t, AlignmentNeutral, RoleCivilian.Alignment())
}

func TestGameStateCloneIsDeep(t *testing.T) {
	g := GameState{
		Votes:         map[string]string{"a": "b"},
		UsedAbilities: map[string][]Ability{"a": {AbilityFrame}},
		Framed:        map[string]bool{"b": true},
		TaskAttempts:  map[string]TaskType{"a": TaskKeypad},
	}
	c := g.Clone()
	c.Votes["a"] = "c"
	c.UsedAbilities["a"][0] = AbilitySabotage
	c.Framed["b"] = false
	c.TaskAttempts["a"] = TaskWiring

	assert.Equal(t, "b", g.Votes["a"])
	assert.Equal(t, AbilityFrame, g.UsedAbilities["a"][0])
	assert.True(t, g.Framed["b"])
	assert.Equal(t, TaskKeypad, g.TaskAttempts["a"])
	assert.True(t, g.HasUsed("a", AbilityFrame))
	assert.False(t, g.HasUsed("b", AbilityFrame))
}
