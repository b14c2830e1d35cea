package services

import (
	"context"
	"errors"
	"fmt"

	"player-auction/internal/domain"
	"player-auction/pkg/logger"
)

// FanoutBroadcaster hands every event to each sink in order.
type FanoutBroadcaster []domain.Broadcaster

func (f FanoutBroadcaster) Publish(ctx context.Context, event *domain.RoundEvent) error {
	var errs []error
	for _, b := range f {
		if err := b.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var ErrQueueFull = errors.New("broadcast queue is full")

// QueuedBroadcaster moves slow sinks (redis) off the caller's goroutine.
// Events are delivered in the order they were queued by a single Run loop.
type QueuedBroadcaster struct {
	next  domain.Broadcaster
	queue chan *domain.RoundEvent
	log   logger.Logger
}

func NewQueuedBroadcaster(next domain.Broadcaster, size int, log logger.Logger) *QueuedBroadcaster {
	return &QueuedBroadcaster{
		next:  next,
		queue: make(chan *domain.RoundEvent, size),
		log:   log,
	}
}

// Publish never blocks; when the queue is full the event is dropped.
func (q *QueuedBroadcaster) Publish(_ context.Context, event *domain.RoundEvent) error {
	select {
	case q.queue <- event:
		return nil
	default:
		return fmt.Errorf("%w: dropped %s seq=%d", ErrQueueFull, event.Type, event.Seq)
	}
}

// Run drains the queue until ctx is done, then flushes what is left.
func (q *QueuedBroadcaster) Run(ctx context.Context) {
	for {
		select {
		case event := <-q.queue:
			q.deliver(ctx, event)
		case <-ctx.Done():
			for {
				select {
				case event := <-q.queue:
					q.deliver(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (q *QueuedBroadcaster) deliver(ctx context.Context, event *domain.RoundEvent) {
	if err := q.next.Publish(ctx, event); err != nil {
		q.log.Error("Failed to deliver queued event", "type", event.Type, "seq", event.Seq, "error", err)
	}
}

// SnapshotRecorder keeps the snapshot cache in step with the round: open
// snapshots are saved, the closing snapshot clears the entry.
type SnapshotRecorder struct {
	cache domain.SnapshotCache
}

func NewSnapshotRecorder(cache domain.SnapshotCache) *SnapshotRecorder {
	return &SnapshotRecorder{cache: cache}
}

func (r *SnapshotRecorder) Publish(ctx context.Context, event *domain.RoundEvent) error {
	if event.Type != domain.EventRoundSnapshot {
		return nil
	}
	view, ok := event.Data.(*domain.RoundView)
	if !ok {
		return fmt.Errorf("unexpected snapshot payload %T", event.Data)
	}
	if view.Open {
		return r.cache.SaveSnapshot(ctx, view)
	}
	return r.cache.ClearSnapshot(ctx)
}
