package websocket

import (
	"net/http"
	"sync"
	"time"

	"player-auction/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	SendBufferSize  int
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		SendBufferSize:  256,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// MessageHandler receives every text frame read from a connection.
type MessageHandler func(conn *WebSocketConnection, message []byte)

// WebSocketConnection is one attached client. Writes go through a buffered
// channel drained by writePump; nothing else writes to the socket.
type WebSocketConnection struct {
	id      string
	partyID string
	conn    *websocket.Conn
	cfg     ConnectionConfig
	log     logger.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewWebSocketConnection(conn *websocket.Conn, partyID string, cfg ConnectionConfig, log logger.Logger) *WebSocketConnection {
	return &WebSocketConnection{
		id:      uuid.NewString(),
		partyID: partyID,
		conn:    conn,
		cfg:     cfg,
		log:     log,
		send:    make(chan []byte, cfg.SendBufferSize),
	}
}

func (wsc *WebSocketConnection) ID() string {
	return wsc.id
}

// PartyID is empty for observers.
func (wsc *WebSocketConnection) PartyID() string {
	return wsc.partyID
}

// Send queues message without blocking. It reports false when the connection
// is closed or its buffer is full.
func (wsc *WebSocketConnection) Send(message []byte) bool {
	wsc.mu.Lock()
	defer wsc.mu.Unlock()

	if wsc.closed {
		return false
	}
	select {
	case wsc.send <- message:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which sends a close frame and closes the socket.
// It is safe to call more than once.
func (wsc *WebSocketConnection) Close() error {
	wsc.mu.Lock()
	defer wsc.mu.Unlock()

	if wsc.closed {
		return nil
	}
	wsc.closed = true
	close(wsc.send)
	return nil
}

// Run starts both pumps. onClose runs once the read side ends.
func (wsc *WebSocketConnection) Run(onMessage MessageHandler, onClose func()) {
	go wsc.writePump()
	go wsc.readPump(onMessage, onClose)
}

func (wsc *WebSocketConnection) writePump() {
	ticker := time.NewTicker(wsc.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		wsc.conn.Close()
	}()

	for {
		select {
		case message, ok := <-wsc.send:
			wsc.conn.SetWriteDeadline(time.Now().Add(wsc.cfg.WriteTimeout))
			if !ok {
				wsc.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := wsc.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				wsc.log.Error("Failed to write message", "connection_id", wsc.id, "party_id", wsc.partyID, "error", err)
				return
			}

		case <-ticker.C:
			wsc.conn.SetWriteDeadline(time.Now().Add(wsc.cfg.WriteTimeout))
			if err := wsc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				wsc.log.Debug("Failed to send ping", "connection_id", wsc.id, "error", err)
				return
			}
		}
	}
}

func (wsc *WebSocketConnection) readPump(onMessage MessageHandler, onClose func()) {
	defer func() {
		onClose()
		wsc.Close()
	}()

	wsc.conn.SetReadLimit(wsc.cfg.MaxMessageSize)
	wsc.conn.SetReadDeadline(time.Now().Add(wsc.cfg.ReadTimeout))
	wsc.conn.SetPongHandler(func(string) error {
		wsc.conn.SetReadDeadline(time.Now().Add(wsc.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := wsc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				wsc.log.Error("Unexpected websocket close", "connection_id", wsc.id, "error", err)
			}
			return
		}

		onMessage(wsc, message)
		wsc.conn.SetReadDeadline(time.Now().Add(wsc.cfg.ReadTimeout))
	}
}
