package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"player-auction/internal/domain"
	"player-auction/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// BidSubmitter is the part of the coordinator a bidding connection needs.
type BidSubmitter interface {
	SubmitBid(ctx context.Context, partyRef string, amount decimal.Decimal) error
}

// StateSyncer produces the snapshot a connection is sent on attach or request.
type StateSyncer interface {
	SyncEvent(ctx context.Context) *domain.RoundEvent
}

type clientMessage struct {
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

type serverMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type WebSocketHandler struct {
	connManager *ConnectionManager
	bids        BidSubmitter
	state       StateSyncer
	upgrader    websocket.Upgrader
	cfg         ConnectionConfig
	log         logger.Logger
}

func NewWebSocketHandler(connManager *ConnectionManager, bids BidSubmitter, state StateSyncer,
	cfg ConnectionConfig, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		connManager: connManager,
		bids:        bids,
		state:       state,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		cfg: cfg,
		log: log,
	}
}

// HandleConnection attaches a party (party_id query parameter) or, without
// one, a read-only observer.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	partyID := r.URL.Query().Get("party_id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewWebSocketConnection(conn, partyID, h.cfg, h.log)
	h.connManager.Register(wsConn)

	// Registered first so nothing published after the sync snapshot is missed.
	h.sync(r.Context(), wsConn)

	wsConn.Run(h.handleMessage, func() {
		h.connManager.Unregister(wsConn)
	})
}

func (h *WebSocketHandler) handleMessage(conn *WebSocketConnection, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.reply(conn, serverMessage{Type: "error", Message: "invalid message"})
		return
	}

	switch msg.Type {
	case "place_bid":
		h.handleBidMessage(conn, msg)
	case "sync":
		h.sync(context.Background(), conn)
	case "ping":
		h.reply(conn, serverMessage{Type: "pong"})
	default:
		h.reply(conn, serverMessage{Type: "error", Message: "unknown message type"})
	}
}

func (h *WebSocketHandler) handleBidMessage(conn *WebSocketConnection, msg clientMessage) {
	if conn.PartyID() == "" {
		h.reply(conn, serverMessage{Type: "error", Message: "observers cannot bid"})
		return
	}

	err := h.bids.SubmitBid(context.Background(), conn.PartyID(), msg.Amount)
	if err == nil || domain.IsExpectedRejection(err) {
		return
	}
	if domain.IsBidRejection(err) {
		// The coordinator has already told the party why.
		return
	}

	h.log.Error("Failed to place bid", "party_id", conn.PartyID(), "amount", msg.Amount.String(), "error", err)
	h.reply(conn, serverMessage{Type: "error", Message: "bid could not be processed, try again"})
}

func (h *WebSocketHandler) sync(ctx context.Context, conn *WebSocketConnection) {
	h.reply(conn, h.state.SyncEvent(ctx))
}

func (h *WebSocketHandler) reply(conn *WebSocketConnection, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("Failed to encode reply", "connection_id", conn.ID(), "error", err)
		return
	}
	if !conn.Send(data) {
		h.log.Warn("Dropped reply to slow connection", "connection_id", conn.ID())
	}
}
