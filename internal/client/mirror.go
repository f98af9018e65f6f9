// internal/client/mirror.go
package client

import (
	"sync"

	"github.com/jason-s-yu/heist/internal/game"
)

// Mirror holds the last room view pushed by the server plus the local
// player's not-yet-confirmed ready flag. View returns the server view with
// that flag laid over it, so a UI can react before the round trip ends.
type Mirror struct {
	mu     sync.Mutex
	userID string
	base   *game.RoomView

	tentative *bool
	// ackVersion is the room version the server reported for the pending
	// change; 0 until acknowledged.
	ackVersion int64
}

func NewMirror(userID string) *Mirror {
	return &Mirror{userID: userID}
}

// SetReadyTentative records a ready flag the server has not confirmed.
func (m *Mirror) SetReadyTentative(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tentative = &ready
	m.ackVersion = 0
}

// Ack marks the pending flag as accepted at room version. Any view at or
// past that version replaces it.
func (m *Mirror) Ack(version int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tentative == nil {
		return
	}
	m.ackVersion = version
	m.settle()
}

// Reject drops the pending flag after the server refused it.
func (m *Mirror) Reject() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tentative = nil
	m.ackVersion = 0
}

// Apply installs an authoritative view. Views older than the current one
// are ignored. It reports whether v was applied.
func (m *Mirror) Apply(v *game.RoomView) bool {
	if v == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.base != nil && v.ID == m.base.ID && v.Version < m.base.Version {
		return false
	}
	m.base = v
	m.settle()
	return true
}

// settle drops the overlay once the base view matches or supersedes it.
func (m *Mirror) settle() {
	if m.tentative == nil || m.base == nil {
		return
	}
	if m.ackVersion > 0 && m.base.Version >= m.ackVersion {
		m.tentative = nil
		m.ackVersion = 0
		return
	}
	if p := m.base.Player(m.userID); p != nil && p.Ready == *m.tentative {
		m.tentative = nil
		m.ackVersion = 0
	}
}

// Pending reports whether a tentative change is outstanding.
func (m *Mirror) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tentative != nil
}

// View returns a copy of the latest view with the overlay applied, or nil
// before the first Apply.
func (m *Mirror) View() *game.RoomView {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.base == nil {
		return nil
	}
	v := *m.base
	v.Players = append([]game.PlayerView(nil), m.base.Players...)
	if m.tentative != nil {
		if p := v.Player(m.userID); p != nil {
			p.Ready = *m.tentative
		}
	}
	return &v
}
