// internal/game/rules.go
package game

import (
	"fmt"
	"time"

	"github.com/jason-s-yu/heist/internal/models"
)

// TiePolicy decides what happens when the day vote has no single leader.
type TiePolicy string

const (
	TieNoElimination TiePolicy = "none"
	TieRandom        TiePolicy = "random"
)

// RoundLimitRule decides the winner when the last task phase ends with
// neither task threshold reached.
type RoundLimitRule string

const (
	// RoundLimitHeadcount awards the heroes only if no traitor is alive.
	RoundLimitHeadcount RoundLimitRule = "headcount"
	// RoundLimitTraitors always awards the traitors.
	RoundLimitTraitors RoundLimitRule = "traitors"
)

// Rules holds the tunable parameters of a game.
type Rules struct {
	MaxPlayers int `json:"maxPlayers"`
	AvatarPool int `json:"avatarPool"`
	MaxRounds  int `json:"maxRounds"`

	// Phase durations. Zero disables the server timer for that phase;
	// the phase then only ends through AdvancePhase.
	NightDuration time.Duration `json:"nightDuration"`
	DayDuration   time.Duration `json:"dayDuration"`
	TaskDuration  time.Duration `json:"taskDuration"`

	TaskWinThreshold     int `json:"taskWinThreshold"`
	SabotageWinThreshold int `json:"sabotageWinThreshold"`

	TiePolicy      TiePolicy      `json:"tiePolicy"`
	RoundLimitRule RoundLimitRule `json:"roundLimitRule"`

	MaxMessageLength int `json:"maxMessageLength"`
}

// DefaultRules returns the standard party-game settings.
func DefaultRules() Rules {
	return Rules{
		MaxPlayers:           8,
		AvatarPool:           DefaultAvatarPool,
		MaxRounds:            3,
		NightDuration:        45 * time.Second,
		DayDuration:          90 * time.Second,
		TaskDuration:         60 * time.Second,
		TaskWinThreshold:     3,
		SabotageWinThreshold: 3,
		TiePolicy:            TieNoElimination,
		RoundLimitRule:       RoundLimitHeadcount,
		MaxMessageLength:     500,
	}
}

// Duration returns how long phase p lasts, or 0 when it has no timer.
func (r Rules) Duration(p models.Phase) time.Duration {
	switch p {
	case models.PhaseNight:
		return r.NightDuration
	case models.PhaseDay:
		return r.DayDuration
	case models.PhaseTask:
		return r.TaskDuration
	}
	return 0
}

// Validate checks the rules for values the state machine cannot run with.
func (r Rules) Validate() error {
	if r.MaxPlayers < 1 {
		return fmt.Errorf("maxPlayers must be positive")
	}
	if r.AvatarPool < 1 {
		return fmt.Errorf("avatarPool must be positive")
	}
	if r.MaxRounds < 1 {
		return fmt.Errorf("maxRounds must be positive")
	}
	if r.NightDuration < 0 || r.DayDuration < 0 || r.TaskDuration < 0 {
		return fmt.Errorf("phase durations must be non-negative")
	}
	if r.TaskWinThreshold < 1 || r.SabotageWinThreshold < 1 {
		return fmt.Errorf("win thresholds must be positive")
	}
	switch r.TiePolicy {
	case TieNoElimination, TieRandom:
	default:
		return fmt.Errorf("unknown tie policy %q", r.TiePolicy)
	}
	switch r.RoundLimitRule {
	case RoundLimitHeadcount, RoundLimitTraitors:
	default:
		return fmt.Errorf("unknown round limit rule %q", r.RoundLimitRule)
	}
	if r.MaxMessageLength < 1 {
		return fmt.Errorf("maxMessageLength must be positive")
	}
	return nil
}
