// internal/game/scheduler.go
package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Scheduler owns one phase timer per active room. A timer is tagged with
// the PhaseSeq it was armed for; firing after the room moved on is a no-op.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[uuid.UUID]*phaseTimer
	fire    func(roomID uuid.UUID, seq int64)
	logger  logrus.FieldLogger
	now     func() time.Time
	stopped bool
}

type phaseTimer struct {
	seq   int64
	at    time.Time
	timer *time.Timer
}

// NewScheduler returns a scheduler that calls fire when a phase expires.
func NewScheduler(fire func(roomID uuid.UUID, seq int64), logger logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		timers: make(map[uuid.UUID]*phaseTimer),
		fire:   fire,
		logger: logger,
		now:    time.Now,
	}
}

// Schedule arms the room's timer for phase seq ending at at. A timer for
// a newer seq is never replaced by an older one.
func (s *Scheduler) Schedule(roomID uuid.UUID, seq int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if pt, ok := s.timers[roomID]; ok {
		if pt.seq > seq || (pt.seq == seq && pt.at.Equal(at)) {
			return
		}
		pt.timer.Stop()
	}

	pt := &phaseTimer{seq: seq, at: at}
	pt.timer = time.AfterFunc(at.Sub(s.now()), func() {
		// Run expiry on its own goroutine so fire may take the scheduler lock.
		go func(roomID uuid.UUID, seq int64) {
			s.expire(roomID, seq)
		}(roomID, seq)
	})
	s.timers[roomID] = pt
}

func (s *Scheduler) expire(roomID uuid.UUID, seq int64) {
	s.mu.Lock()
	pt, ok := s.timers[roomID]
	if !ok || pt.seq != seq || s.stopped {
		s.mu.Unlock()
		s.logger.WithFields(logrus.Fields{"room": roomID, "seq": seq}).Debug("stale phase timer fired, ignoring")
		return
	}
	delete(s.timers, roomID)
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"room": roomID, "seq": seq}).Debug("phase timer fired")
	s.fire(roomID, seq)
}

// Cancel stops the room's timer, if any.
func (s *Scheduler) Cancel(roomID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pt, ok := s.timers[roomID]; ok {
		pt.timer.Stop()
		delete(s.timers, roomID)
	}
}

// Pending returns the seq and deadline the room's timer is armed for.
func (s *Scheduler) Pending(roomID uuid.UUID) (int64, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pt, ok := s.timers[roomID]
	if !ok {
		return 0, time.Time{}, false
	}
	return pt.seq, pt.at, true
}

// Stop cancels every timer; later Schedule calls are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, pt := range s.timers {
		pt.timer.Stop()
		delete(s.timers, id)
	}
}
