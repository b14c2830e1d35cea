package websocket

import (
	"context"

	"player-auction/internal/domain"
)

// WebSocketNotifier adapts the hub to the coordinator's Broadcaster and
// UserNotifier.
type WebSocketNotifier struct {
	connManager domain.ConnectionManager
}

func NewWebSocketNotifier(connManager domain.ConnectionManager) *WebSocketNotifier {
	return &WebSocketNotifier{connManager: connManager}
}

func (n *WebSocketNotifier) Publish(ctx context.Context, event *domain.RoundEvent) error {
	return n.connManager.Broadcast(event)
}

func (n *WebSocketNotifier) NotifyUser(ctx context.Context, userID string, message interface{}) error {
	return n.connManager.NotifyUser(userID, message)
}
