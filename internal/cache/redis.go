// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/heist/internal/game"
	"github.com/jason-s-yu/heist/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the redis list the historian drains.
const DefaultQueueName = "heist_events"

// Connect returns a client for addr/db after a successful ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// ToRecord converts a published event into its queued form.
func ToRecord(ev game.Event) (models.RoomEvent, error) {
	rec := models.RoomEvent{
		RoomID:    ev.RoomID,
		Type:      string(ev.Type),
		ActorID:   ev.ActorID,
		Version:   ev.Version,
		Timestamp: ev.Timestamp,
	}
	if len(ev.Payload) > 0 {
		data, err := json.Marshal(ev.Payload)
		if err != nil {
			return rec, fmt.Errorf("failed to marshal %s payload: %w", ev.Type, err)
		}
		rec.Payload = data
	}
	return rec, nil
}

// Recorder pushes every committed event onto a redis list for the
// historian. It implements game.Publisher.
type Recorder struct {
	rdb     redis.Cmdable
	queue   string
	timeout time.Duration
	logger  logrus.FieldLogger
}

var _ game.Publisher = (*Recorder)(nil)

func NewRecorder(rdb redis.Cmdable, queue string, logger logrus.FieldLogger) *Recorder {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &Recorder{
		rdb:     rdb,
		queue:   queue,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// Record serializes rec and appends it to the queue.
func (r *Recorder) Record(ctx context.Context, rec models.RoomEvent) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal room event: %w", err)
	}
	if err := r.rdb.RPush(ctx, r.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", r.queue, err)
	}
	return nil
}

// Publish records ev, logging instead of failing; archiving never blocks
// a game.
func (r *Recorder) Publish(ctx context.Context, ev game.Event) {
	rec, err := ToRecord(ev)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		err = r.Record(ctx, rec)
		cancel()
	}
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"room":  ev.RoomID,
			"event": ev.Type,
		}).WithError(err).Warn("failed to queue event for historian")
	}
}
