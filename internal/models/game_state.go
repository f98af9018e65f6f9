// internal/models/game_state.go
package models

import "time"

// Phase is one step of the round cycle.
type Phase string

const (
	PhaseNone  Phase = ""
	PhaseNight Phase = "night"
	PhaseDay   Phase = "day"
	PhaseTask  Phase = "task"
	PhaseEnd   Phase = "end"
)

// Next returns the phase following p in the night -> day -> task cycle.
// The caller decides whether task wraps to night or ends the game.
func (p Phase) Next() Phase {
	switch p {
	case PhaseNight:
		return PhaseDay
	case PhaseDay:
		return PhaseTask
	case PhaseTask:
		return PhaseNight
	}
	return PhaseEnd
}

type Alignment string

const (
	AlignmentHero    Alignment = "hero"
	AlignmentTraitor Alignment = "traitor"
	AlignmentNeutral Alignment = "neutral"
)

type Role string

const (
	RoleMasterThief Role = "master-thief"
	RoleHacker      Role = "hacker"
	RoleInfiltrator Role = "infiltrator"
	RoleDoubleAgent Role = "double-agent"
	RoleCivilian    Role = "civilian"
)

// Alignment returns the faction a role belongs to.
func (r Role) Alignment() Alignment {
	switch r {
	case RoleMasterThief, RoleHacker:
		return AlignmentHero
	case RoleInfiltrator, RoleDoubleAgent:
		return AlignmentTraitor
	}
	return AlignmentNeutral
}

// Ability returns the night ability granted by the role, if any.
func (r Role) Ability() (Ability, bool) {
	switch r {
	case RoleMasterThief:
		return AbilityLockpick, true
	case RoleHacker:
		return AbilityInvestigate, true
	case RoleInfiltrator:
		return AbilitySabotage, true
	case RoleDoubleAgent:
		return AbilityFrame, true
	}
	return "", false
}

type Winner string

const (
	WinnerNone     Winner = ""
	WinnerHeroes   Winner = "heroes"
	WinnerTraitors Winner = "traitors"
)

type Ability string

const (
	AbilityInvestigate Ability = "investigate"
	AbilitySabotage    Ability = "sabotage"
	AbilityLockpick    Ability = "lockpick"
	AbilityFrame       Ability = "frame"
)

// Targeted reports whether the ability needs a target player.
func (a Ability) Targeted() bool {
	return a == AbilityInvestigate || a == AbilityFrame
}

type TaskType string

const (
	TaskWiring  TaskType = "wiring"
	TaskHacking TaskType = "hacking"
	TaskKeypad  TaskType = "keypad"
)

// Valid reports whether t is one of the known task mini-games.
func (t TaskType) Valid() bool {
	switch t {
	case TaskWiring, TaskHacking, TaskKeypad:
		return true
	}
	return false
}

// GameState is the round/phase state embedded in a room.
// Maps are keyed by the players' external user ids.
type GameState struct {
	Phase       Phase     `json:"phase"`
	Round       int       `json:"round"`
	MaxRounds   int       `json:"maxRounds"`
	PhaseSeq    int64     `json:"phaseSeq"`
	PhaseEndsAt time.Time `json:"phaseEndsAt"`

	CompletedTasks   int `json:"completedTasks"`
	SabotagedTasks   int `json:"sabotagedTasks"`
	PendingSabotages int `json:"pendingSabotages"`
	Lockpicks        int `json:"lockpicks"`

	// The counters as last announced to the room. Single task reports stay
	// private until the task phase resolves.
	RevealedCompleted int `json:"revealedCompleted"`
	RevealedSabotaged int `json:"revealedSabotaged"`

	Winner Winner `json:"winner"`

	Votes         map[string]string    `json:"votes,omitempty"`
	UsedAbilities map[string][]Ability `json:"usedAbilities,omitempty"`
	Framed        map[string]bool      `json:"framed,omitempty"`
	TaskAttempts  map[string]TaskType  `json:"taskAttempts,omitempty"`

	// KnownInnocent maps each master thief to the non-traitor they were
	// shown when the game started.
	KnownInnocent map[string]string `json:"knownInnocent,omitempty"`
}

// Clone returns a deep copy of the state.
func (g GameState) Clone() GameState {
	c := g
	if g.Votes != nil {
		c.Votes = make(map[string]string, len(g.Votes))
		for k, v := range g.Votes {
			c.Votes[k] = v
		}
	}
	if g.UsedAbilities != nil {
		c.UsedAbilities = make(map[string][]Ability, len(g.UsedAbilities))
		for k, v := range g.UsedAbilities {
			c.UsedAbilities[k] = append([]Ability(nil), v...)
		}
	}
	if g.Framed != nil {
		c.Framed = make(map[string]bool, len(g.Framed))
		for k, v := range g.Framed {
			c.Framed[k] = v
		}
	}
	if g.TaskAttempts != nil {
		c.TaskAttempts = make(map[string]TaskType, len(g.TaskAttempts))
		for k, v := range g.TaskAttempts {
			c.TaskAttempts[k] = v
		}
	}
	if g.KnownInnocent != nil {
		c.KnownInnocent = make(map[string]string, len(g.KnownInnocent))
		for k, v := range g.KnownInnocent {
			c.KnownInnocent[k] = v
		}
	}
	return c
}

// HasUsed reports whether userID already spent the given ability this game.
func (g GameState) HasUsed(userID string, a Ability) bool {
	for _, used := range g.UsedAbilities[userID] {
		if used == a {
			return true
		}
	}
	return false
}
