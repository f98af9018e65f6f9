// internal/historian/historian.go
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jason-s-yu/heist/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Sink persists batches of room events.
type Sink interface {
	InsertRoomEvents(ctx context.Context, events []models.RoomEvent) error
}

// Queue is the part of the redis client the historian reads from.
type Queue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

type Config struct {
	Queue         string
	BatchSize     int
	FlushInterval time.Duration
	// PopTimeout bounds each BLPop so flushes and shutdown are noticed.
	PopTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Queue:         "heist_events",
		BatchSize:     20,
		FlushInterval: 500 * time.Millisecond,
		PopTimeout:    3 * time.Second,
	}
}

// Service drains the event queue into a Sink in batches. A batch is
// written once it is full or when the flush ticker fires.
type Service struct {
	queue  Queue
	sink   Sink
	cfg    Config
	logger logrus.FieldLogger

	batch []models.RoomEvent
}

// maxBufferedBatches caps how much we hold while the sink is failing.
const maxBufferedBatches = 50

func New(queue Queue, sink Sink, cfg Config, logger logrus.FieldLogger) *Service {
	def := DefaultConfig()
	if cfg.Queue == "" {
		cfg.Queue = def.Queue
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = def.PopTimeout
	}
	return &Service{
		queue:  queue,
		sink:   sink,
		cfg:    cfg,
		logger: logger.WithField("queue", cfg.Queue),
		batch:  make([]models.RoomEvent, 0, cfg.BatchSize),
	}
}

// Run pops events until ctx is cancelled, then flushes what is left.
// Batching state is owned by the Run goroutine.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	s.logger.Info("historian started")
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.flush(flushCtx)
			cancel()
			s.logger.Info("historian stopped")
			return nil

		case <-ticker.C:
			s.flush(ctx)

		default:
			res, err := s.queue.BLPop(ctx, s.cfg.PopTimeout, s.cfg.Queue).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || ctx.Err() != nil {
					continue
				}
				s.logger.WithError(err).Error("BLPop failed")
				select {
				case <-ctx.Done():
				case <-time.After(time.Second):
				}
				continue
			}
			// res[0] is the queue name and res[1] the payload.
			if len(res) < 2 {
				continue
			}
			s.handle(ctx, res[1])
		}
	}
}

func (s *Service) handle(ctx context.Context, payload string) {
	var rec models.RoomEvent
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		s.logger.WithError(err).Warn("dropping invalid event record")
		return
	}
	s.batch = append(s.batch, rec)
	if len(s.batch) >= s.cfg.BatchSize {
		s.flush(ctx)
	}
}

// flush writes the pending batch. On failure the events stay queued for
// the next attempt unless too many have piled up.
func (s *Service) flush(ctx context.Context) {
	if len(s.batch) == 0 {
		return
	}
	pending := make([]models.RoomEvent, len(s.batch))
	copy(pending, s.batch)

	if err := s.sink.InsertRoomEvents(ctx, pending); err != nil {
		entry := s.logger.WithError(err).WithField("events", len(pending))
		if len(s.batch) >= maxBufferedBatches*s.cfg.BatchSize {
			entry.Error("event sink keeps failing, dropping buffered events")
			s.batch = s.batch[:0]
			return
		}
		entry.Warn("failed to flush events, will retry")
		return
	}

	s.batch = s.batch[:0]
	s.logger.WithField("events", len(pending)).Debug("flushed events")
}
