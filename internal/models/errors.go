// internal/models/errors.go
package models

import "errors"

// Error kinds. Every specific error below wraps exactly one of these, so
// callers can branch with errors.Is on either the kind or the specific error.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrInvalidInput       = errors.New("invalid input")
	ErrAbilityAlreadyUsed = errors.New("ability already used")
	ErrCodeSpaceExhausted = errors.New("room code space exhausted")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

var (
	ErrRoomNotFound   = newError(ErrNotFound, "room not found")
	ErrPlayerNotFound = newError(ErrNotFound, "player not in room")

	ErrRoomFull                = newError(ErrConflict, "room is full")
	ErrGameAlreadyStarted      = newError(ErrConflict, "game already started")
	ErrVersionConflict         = newError(ErrConflict, "room was modified concurrently")
	ErrCodeTaken               = newError(ErrConflict, "room code already in use")
	ErrInvalidStatusTransition = newError(ErrConflict, "room status cannot move backwards")
	ErrAlreadyVoted            = newError(ErrConflict, "already voted this round")
	ErrTaskAlreadyAttempted    = newError(ErrConflict, "task already attempted this phase")

	ErrNotHost           = newError(ErrPreconditionFailed, "only the host can do that")
	ErrPlayersNotReady   = newError(ErrPreconditionFailed, "not all players are ready")
	ErrGameNotInProgress = newError(ErrPreconditionFailed, "game is not in progress")
	ErrWrongPhase        = newError(ErrPreconditionFailed, "action not allowed in this phase")
	ErrPlayerEliminated  = newError(ErrPreconditionFailed, "player has been eliminated")
	ErrAbilityNotAllowed = newError(ErrPreconditionFailed, "role has no such ability")
	ErrRoomNotInLobby    = newError(ErrPreconditionFailed, "room is not in the lobby")

	ErrInvalidRoleDistribution = newError(ErrInvalidInput, "invalid traitor/hero counts")
	ErrInvalidAvatar           = newError(ErrInvalidInput, "avatar out of range")
	ErrInvalidTarget           = newError(ErrInvalidInput, "invalid target")
	ErrInvalidAction           = newError(ErrInvalidInput, "invalid action")
	ErrInvalidMessage          = newError(ErrInvalidInput, "invalid message")
	ErrInvalidName             = newError(ErrInvalidInput, "invalid name")
)
