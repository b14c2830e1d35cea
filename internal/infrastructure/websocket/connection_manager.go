package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"player-auction/internal/domain"
	"player-auction/pkg/logger"
)

var ErrBroadcastBacklog = errors.New("broadcast channel full")

type outbound struct {
	partyID string // empty: every connection
	data    []byte
}

// ConnectionManager is the local hub. Broadcasts and per-party notices share
// one queue and are fanned out by a single goroutine, so every connection
// sees them in the order they were queued.
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[string]domain.WebSocketConnection            // connection ID -> connection
	partyConns  map[string]map[string]domain.WebSocketConnection // party ID -> connection ID -> connection

	broadcastCh chan outbound
	log         logger.Logger
}

func NewConnectionManager(bufferSize int, log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]domain.WebSocketConnection),
		partyConns:  make(map[string]map[string]domain.WebSocketConnection),
		broadcastCh: make(chan outbound, bufferSize),
		log:         log,
	}
}

// Start processes queued messages until ctx is done, then closes every
// connection.
func (cm *ConnectionManager) Start(ctx context.Context) {
	cm.log.Info("Connection manager started")

	for {
		select {
		case <-ctx.Done():
			cm.log.Info("Connection manager shutting down", "connections", cm.Count())
			cm.closeAll()
			return
		case msg := <-cm.broadcastCh:
			cm.deliver(msg)
		}
	}
}

func (cm *ConnectionManager) Register(conn domain.WebSocketConnection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn.ID()] = conn
	if party := conn.PartyID(); party != "" {
		if cm.partyConns[party] == nil {
			cm.partyConns[party] = make(map[string]domain.WebSocketConnection)
		}
		cm.partyConns[party][conn.ID()] = conn
	}

	cm.log.Info("Connection registered", "connection_id", conn.ID(), "party_id", conn.PartyID(),
		"total_connections", len(cm.connections))
}

func (cm *ConnectionManager) Unregister(conn domain.WebSocketConnection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, ok := cm.connections[conn.ID()]; !ok {
		return
	}
	delete(cm.connections, conn.ID())
	if conns, ok := cm.partyConns[conn.PartyID()]; ok {
		delete(conns, conn.ID())
		if len(conns) == 0 {
			delete(cm.partyConns, conn.PartyID())
		}
	}

	cm.log.Info("Connection unregistered", "connection_id", conn.ID(), "party_id", conn.PartyID())
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// Broadcast queues message for every connection.
func (cm *ConnectionManager) Broadcast(message interface{}) error {
	return cm.enqueue("", message)
}

// NotifyUser queues message for the connections of one party.
func (cm *ConnectionManager) NotifyUser(partyID string, message interface{}) error {
	if partyID == "" {
		return nil
	}
	return cm.enqueue(partyID, message)
}

func (cm *ConnectionManager) enqueue(partyID string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case cm.broadcastCh <- outbound{partyID: partyID, data: data}:
		return nil
	default:
		cm.log.Warn("Broadcast channel full, dropping message", "party_id", partyID)
		return ErrBroadcastBacklog
	}
}

func (cm *ConnectionManager) deliver(msg outbound) {
	targets := cm.targets(msg.partyID)

	for _, conn := range targets {
		if conn.Send(msg.data) {
			continue
		}
		// Connection is slow or dead, drop it.
		cm.log.Warn("Connection send buffer full, closing connection",
			"connection_id", conn.ID(), "party_id", conn.PartyID())
		cm.Unregister(conn)
		conn.Close()
	}
}

func (cm *ConnectionManager) targets(partyID string) []domain.WebSocketConnection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	source := cm.connections
	if partyID != "" {
		source = cm.partyConns[partyID]
	}

	targets := make([]domain.WebSocketConnection, 0, len(source))
	for _, conn := range source {
		targets = append(targets, conn)
	}
	return targets
}

func (cm *ConnectionManager) closeAll() {
	for _, conn := range cm.targets("") {
		cm.Unregister(conn)
		conn.Close()
	}
}
