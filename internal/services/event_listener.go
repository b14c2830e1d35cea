package services

import (
	"context"
	"fmt"

	"player-auction/internal/domain"
	"player-auction/pkg/logger"
)

// EventListener relays round events mirrored by other instances to the local
// connections, so observers attached to any instance follow the same auction.
type EventListener struct {
	instanceID        string
	connectionManager domain.ConnectionManager
	log               logger.Logger
}

func NewEventListener(instanceID string, connectionManager domain.ConnectionManager, log logger.Logger) *EventListener {
	return &EventListener{
		instanceID:        instanceID,
		connectionManager: connectionManager,
		log:               log,
	}
}

// Start blocks until ctx is done or the subscription fails.
func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener", "instance_id", el.instanceID)
	return subscriber.SubscribeToRoundEvents(ctx, el.handleRoundEvent)
}

func (el *EventListener) handleRoundEvent(event *domain.MirroredEvent) error {
	if event.Origin == el.instanceID {
		return nil
	}

	switch event.Type {
	case domain.EventRoundSnapshot, domain.EventItemSold, domain.EventItemUnsold:
		el.log.Debug("Relaying mirrored event", "type", event.Type, "seq", event.Seq, "origin", event.Origin)
		return el.connectionManager.Broadcast(event)
	}

	return fmt.Errorf("unknown event type %q from %s", event.Type, event.Origin)
}
