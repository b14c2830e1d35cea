package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"player-auction/internal/domain"

	"github.com/go-redis/redis/v8"
)

// EventPublisherImpl mirrors round events onto a redis channel as JSON.
type EventPublisherImpl struct {
	client  *redis.Client
	channel string
}

func NewEventPublisher(client *redis.Client, channel string) *EventPublisherImpl {
	return &EventPublisherImpl{
		client:  client,
		channel: channel,
	}
}

func (r *EventPublisherImpl) Publish(ctx context.Context, event *domain.RoundEvent) error {
	// Rejections are private to one party and are not mirrored.
	if event.Type == domain.EventBidRejected {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	return r.client.Publish(ctx, r.channel, data).Err()
}
