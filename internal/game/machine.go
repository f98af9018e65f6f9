// internal/game/machine.go
package game

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heist/internal/models"
)

// ActionKind groups player actions by the phase they belong to.
type ActionKind string

const (
	ActionAbility ActionKind = "ability" // night
	ActionVote    ActionKind = "vote"    // day
	ActionTask    ActionKind = "task"    // task
)

// Action is one move submitted by a player.
type Action struct {
	Kind     ActionKind      `json:"kind"`
	Ability  models.Ability  `json:"ability,omitempty"`
	TargetID string          `json:"targetId,omitempty"`
	TaskType models.TaskType `json:"taskType,omitempty"`
	Success  bool            `json:"success,omitempty"`
}

// Task outcomes as reported back to the player who attempted the task.
const (
	TaskOutcomeCompleted = "completed"
	TaskOutcomeSabotaged = "sabotaged"
	TaskOutcomeFailed    = "failed"
)

// ActionResult is returned only to the acting player.
type ActionResult struct {
	Kind      ActionKind       `json:"kind"`
	Ability   models.Ability   `json:"ability,omitempty"`
	Alignment models.Alignment `json:"alignment,omitempty"`
	Outcome   string           `json:"outcome,omitempty"`
	Phase     models.Phase     `json:"phase"`
	Round     int              `json:"round"`
	Winner    models.Winner    `json:"winner,omitempty"`
}

// table is the working copy of one room that a single operation mutates.
// Nothing here touches storage; the service commits the result.
type table struct {
	room    *models.Room
	players []*models.Player
	rules   Rules
	rnd     *rand.Rand
	now     time.Time

	dirty  map[uuid.UUID]bool
	notes  []string
	events []Event
}

func newTable(room *models.Room, players []*models.Player, rules Rules, rnd *rand.Rand, now time.Time) *table {
	return &table{
		room:    room,
		players: players,
		rules:   rules,
		rnd:     rnd,
		now:     now,
		dirty:   make(map[uuid.UUID]bool),
	}
}

func (t *table) changed() bool {
	return len(t.events) > 0 || len(t.dirty) > 0
}

// patch collects the table's changes for the store.
func (t *table) patch() models.RoomPatch {
	status := t.room.Status
	game := t.room.Game.Clone()
	var changed []*models.Player
	for _, p := range t.players {
		if t.dirty[p.ID] {
			changed = append(changed, p)
		}
	}
	return models.RoomPatch{
		Status:    &status,
		Game:      &game,
		Players:   changed,
		UpdatedAt: t.now,
	}
}

func (t *table) player(userID string) *models.Player {
	for _, p := range t.players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

func (t *table) touch(p *models.Player) {
	t.dirty[p.ID] = true
}

func (t *table) note(format string, args ...interface{}) {
	t.notes = append(t.notes, fmt.Sprintf(format, args...))
}

func (t *table) emit(typ EventType, actorID string, payload map[string]interface{}) {
	t.events = append(t.events, Event{
		Type:      typ,
		RoomID:    t.room.ID,
		ActorID:   actorID,
		Payload:   payload,
		Timestamp: t.now,
	})
}

func (t *table) emitTo(userID string, typ EventType, payload map[string]interface{}) {
	t.emit(typ, userID, payload)
	t.events[len(t.events)-1].Audience = userID
}

func (t *table) aliveTraitors() int {
	n := 0
	for _, p := range t.players {
		if p.IsAlive && p.Alignment == models.AlignmentTraitor {
			n++
		}
	}
	return n
}

// start deals roles and opens the first night.
func (t *table) start() error {
	if err := AssignRoles(t.players, t.room.TraitorCount, t.room.HeroCount, t.rnd); err != nil {
		return err
	}
	for _, p := range t.players {
		p.IsAlive = true
		t.touch(p)
	}

	t.room.Status = models.RoomStatusPlaying
	t.room.Game = models.GameState{
		Round:         1,
		MaxRounds:     t.rules.MaxRounds,
		UsedAbilities: make(map[string][]models.Ability),
		Framed:        make(map[string]bool),
	}
	t.emit(EventGameStarted, t.room.HostID, map[string]interface{}{
		"traitorCount": t.room.TraitorCount,
		"heroCount":    t.room.HeroCount,
		"playerCount":  len(t.players),
	})
	t.revealInnocents()
	t.note("The heist begins. Night falls on round 1.")
	t.enterPhase(models.PhaseNight)
	return nil
}

// revealInnocents shows each master thief one random other player who is
// not a traitor.
func (t *table) revealInnocents() {
	g := &t.room.Game
	for _, p := range t.players {
		if p.Role != models.RoleMasterThief {
			continue
		}
		var innocents []*models.Player
		for _, o := range t.players {
			if o.UserID != p.UserID && o.Alignment != models.AlignmentTraitor {
				innocents = append(innocents, o)
			}
		}
		if len(innocents) == 0 {
			continue
		}
		pick := innocents[t.rnd.Intn(len(innocents))]
		if g.KnownInnocent == nil {
			g.KnownInnocent = make(map[string]string)
		}
		g.KnownInnocent[p.UserID] = pick.UserID
		t.emitTo(p.UserID, EventRoleIntel, map[string]interface{}{
			"innocentId":  pick.UserID,
			"displayName": pick.DisplayName,
		})
	}
}

func (t *table) enterPhase(p models.Phase) {
	g := &t.room.Game
	g.Phase = p
	g.PhaseSeq++
	g.PhaseEndsAt = time.Time{}
	if d := t.rules.Duration(p); d > 0 {
		g.PhaseEndsAt = t.now.Add(d)
	}

	switch p {
	case models.PhaseDay:
		g.Votes = make(map[string]string)
	case models.PhaseTask:
		g.TaskAttempts = make(map[string]models.TaskType)
	}

	payload := map[string]interface{}{
		"phase":    p,
		"round":    g.Round,
		"phaseSeq": g.PhaseSeq,
	}
	if !g.PhaseEndsAt.IsZero() {
		payload["endsAt"] = g.PhaseEndsAt
	}
	t.emit(EventPhaseChanged, "", payload)
}

// advance resolves the current phase and moves to the next one.
func (t *table) advance() {
	g := &t.room.Game
	switch g.Phase {
	case models.PhaseNight:
		t.note("Day %d: discuss and vote on who to banish.", g.Round)
		t.enterPhase(models.PhaseDay)
	case models.PhaseDay:
		t.resolveDay()
		if g.Phase == models.PhaseEnd {
			return
		}
		t.note("Task phase: complete your tasks before time runs out.")
		t.enterPhase(models.PhaseTask)
	case models.PhaseTask:
		t.resolveTask()
	}
}

func (t *table) resolveDay() {
	target := t.tally()
	t.room.Game.Votes = nil
	if target == nil {
		t.note("No one was banished.")
		return
	}

	target.IsAlive = false
	t.touch(target)
	t.note("%s was banished. They were the %s.", target.DisplayName, target.Role)
	t.emit(EventPlayerEliminated, target.UserID, map[string]interface{}{
		"userId":    target.UserID,
		"role":      target.Role,
		"alignment": target.Alignment,
	})

	if t.aliveTraitors() == 0 {
		t.finish(models.WinnerHeroes, "every traitor has been caught")
	}
}

// tally returns the plurality vote target, or nil when nobody should go.
// Only votes between living players count.
func (t *table) tally() *models.Player {
	counts := make(map[string]int)
	for voter, target := range t.room.Game.Votes {
		v, tg := t.player(voter), t.player(target)
		if v == nil || tg == nil || !v.IsAlive || !tg.IsAlive {
			continue
		}
		counts[target]++
	}

	best := 0
	var leaders []string
	for target, n := range counts {
		switch {
		case n > best:
			best = n
			leaders = []string{target}
		case n == best:
			leaders = append(leaders, target)
		}
	}
	if len(leaders) == 0 {
		return nil
	}
	if len(leaders) > 1 {
		if t.rules.TiePolicy != TieRandom {
			return nil
		}
		sort.Strings(leaders)
		return t.player(leaders[t.rnd.Intn(len(leaders))])
	}
	return t.player(leaders[0])
}

func (t *table) resolveTask() {
	g := &t.room.Game
	g.PendingSabotages = 0
	g.Lockpicks = 0
	g.TaskAttempts = nil

	if t.checkThresholds() {
		return
	}
	t.announceTasks()
	if g.Round >= g.MaxRounds {
		t.finishRoundLimit()
		return
	}
	g.Round++
	t.note("Night falls on round %d.", g.Round)
	t.enterPhase(models.PhaseNight)
}

// checkThresholds ends the game if either task counter reached its target.
func (t *table) checkThresholds() bool {
	g := &t.room.Game
	var (
		w      models.Winner
		reason string
	)
	switch {
	case g.CompletedTasks >= t.rules.TaskWinThreshold:
		w, reason = models.WinnerHeroes, "the crew completed enough tasks"
	case g.SabotagedTasks >= t.rules.SabotageWinThreshold:
		w, reason = models.WinnerTraitors, "too many tasks were sabotaged"
	default:
		return false
	}
	t.announceTasks()
	t.finish(w, reason)
	return true
}

// announceTasks publishes the task counters gathered since the last
// announcement.
func (t *table) announceTasks() {
	g := &t.room.Game
	completed := g.CompletedTasks - g.RevealedCompleted
	sabotaged := g.SabotagedTasks - g.RevealedSabotaged
	g.RevealedCompleted = g.CompletedTasks
	g.RevealedSabotaged = g.SabotagedTasks

	t.note("Task report for round %d: %d completed, %d sabotaged.", g.Round, completed, sabotaged)
	t.emit(EventTaskResolved, "", map[string]interface{}{
		"round":          g.Round,
		"completed":      completed,
		"sabotaged":      sabotaged,
		"completedTasks": g.CompletedTasks,
		"sabotagedTasks": g.SabotagedTasks,
	})
}

func (t *table) finishRoundLimit() {
	if t.rules.RoundLimitRule == RoundLimitHeadcount && t.aliveTraitors() == 0 {
		t.finish(models.WinnerHeroes, "no traitor survived the last round")
		return
	}
	t.finish(models.WinnerTraitors, "the traitors ran out the clock")
}

func (t *table) finish(w models.Winner, reason string) {
	g := &t.room.Game
	g.Winner = w
	g.Phase = models.PhaseEnd
	g.PhaseSeq++
	g.PhaseEndsAt = time.Time{}
	g.Votes = nil
	g.TaskAttempts = nil
	t.room.Status = models.RoomStatusEnded

	roles := make(map[string]models.Role, len(t.players))
	for _, p := range t.players {
		roles[p.UserID] = p.Role
	}
	t.note("The %s win: %s.", w, reason)
	t.emit(EventGameEnded, "", map[string]interface{}{
		"winner": w,
		"reason": reason,
		"round":  g.Round,
		"roles":  roles,
	})
}

// requireActor checks that userID may act in phase right now.
func (t *table) requireActor(userID string, phase models.Phase) (*models.Player, error) {
	if t.room.Status != models.RoomStatusPlaying {
		return nil, models.ErrGameNotInProgress
	}
	p := t.player(userID)
	if p == nil {
		return nil, models.ErrPlayerNotFound
	}
	if t.room.Game.Phase != phase {
		return nil, models.ErrWrongPhase
	}
	if !p.IsAlive {
		return nil, models.ErrPlayerEliminated
	}
	return p, nil
}

// target resolves another living player for a targeted action.
func (t *table) target(actor *models.Player, targetID string) (*models.Player, error) {
	tg := t.player(targetID)
	if tg == nil || !tg.IsAlive || tg.UserID == actor.UserID {
		return nil, models.ErrInvalidTarget
	}
	return tg, nil
}

func (t *table) apply(userID string, a Action) (*ActionResult, error) {
	switch a.Kind {
	case ActionAbility:
		return t.useAbility(userID, a.Ability, a.TargetID)
	case ActionVote:
		return t.vote(userID, a.TargetID)
	case ActionTask:
		return t.attemptTask(userID, a.TaskType, a.Success)
	}
	return nil, models.ErrInvalidAction
}

func (t *table) useAbility(userID string, ability models.Ability, targetID string) (*ActionResult, error) {
	actor, err := t.requireActor(userID, models.PhaseNight)
	if err != nil {
		return nil, err
	}
	granted, ok := actor.Role.Ability()
	if !ok || granted != ability {
		return nil, models.ErrAbilityNotAllowed
	}
	g := &t.room.Game
	if g.HasUsed(userID, ability) {
		return nil, models.ErrAbilityAlreadyUsed
	}

	var tg *models.Player
	if ability.Targeted() {
		if tg, err = t.target(actor, targetID); err != nil {
			return nil, err
		}
	}

	res := &ActionResult{Kind: ActionAbility, Ability: ability}
	switch ability {
	case models.AbilityInvestigate:
		res.Alignment = t.investigate(tg)
	case models.AbilitySabotage:
		if g.Lockpicks > 0 {
			g.Lockpicks--
		} else {
			g.PendingSabotages++
		}
	case models.AbilityLockpick:
		if g.PendingSabotages > 0 {
			g.PendingSabotages--
		} else {
			g.Lockpicks++
		}
	case models.AbilityFrame:
		if g.Framed == nil {
			g.Framed = make(map[string]bool)
		}
		g.Framed[tg.UserID] = true
	}

	if g.UsedAbilities == nil {
		g.UsedAbilities = make(map[string][]models.Ability)
	}
	g.UsedAbilities[userID] = append(g.UsedAbilities[userID], ability)

	payload := map[string]interface{}{"ability": ability}
	if tg != nil {
		payload["targetId"] = tg.UserID
	}
	if res.Alignment != "" {
		payload["alignment"] = res.Alignment
	}
	t.emitTo(userID, EventAbilityUsed, payload)
	return res, nil
}

// investigate reports what the hacker learns about target. A frame is
// consumed by the first investigation it taints; double agents read as
// neutral.
func (t *table) investigate(target *models.Player) models.Alignment {
	g := &t.room.Game
	if g.Framed[target.UserID] {
		delete(g.Framed, target.UserID)
		return models.AlignmentTraitor
	}
	if target.Role == models.RoleDoubleAgent {
		return models.AlignmentNeutral
	}
	return target.Alignment
}

func (t *table) vote(userID, targetID string) (*ActionResult, error) {
	actor, err := t.requireActor(userID, models.PhaseDay)
	if err != nil {
		return nil, err
	}
	g := &t.room.Game
	if _, voted := g.Votes[userID]; voted {
		return nil, models.ErrAlreadyVoted
	}
	tg, err := t.target(actor, targetID)
	if err != nil {
		return nil, err
	}

	if g.Votes == nil {
		g.Votes = make(map[string]string)
	}
	g.Votes[userID] = tg.UserID
	t.note("%s voted to banish %s.", actor.DisplayName, tg.DisplayName)
	t.emit(EventVoteCast, userID, map[string]interface{}{"targetId": tg.UserID})
	return &ActionResult{Kind: ActionVote}, nil
}

func (t *table) attemptTask(userID string, task models.TaskType, success bool) (*ActionResult, error) {
	actor, err := t.requireActor(userID, models.PhaseTask)
	if err != nil {
		return nil, err
	}
	if !task.Valid() {
		return nil, models.ErrInvalidAction
	}
	g := &t.room.Game
	if _, done := g.TaskAttempts[userID]; done {
		return nil, models.ErrTaskAlreadyAttempted
	}
	if g.TaskAttempts == nil {
		g.TaskAttempts = make(map[string]models.TaskType)
	}
	g.TaskAttempts[userID] = task

	outcome := TaskOutcomeFailed
	if success {
		switch {
		case actor.Alignment == models.AlignmentTraitor:
			// Traitors can only fake a completion.
			outcome = TaskOutcomeCompleted
		case g.PendingSabotages > 0:
			g.PendingSabotages--
			g.SabotagedTasks++
			outcome = TaskOutcomeSabotaged
		default:
			g.CompletedTasks++
			outcome = TaskOutcomeCompleted
		}
	}

	// Everyone sees the same report whatever happened; the outcome only
	// goes back to the actor.
	t.note("%s reported on the %s task.", actor.DisplayName, task)
	t.emit(EventTaskReported, userID, map[string]interface{}{"taskType": task})

	t.checkThresholds()
	return &ActionResult{Kind: ActionTask, Outcome: outcome}, nil
}
