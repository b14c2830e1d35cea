package handlers

import (
	"net/http"

	"player-auction/internal/api/middleware"
	"player-auction/internal/infrastructure/websocket"
	"player-auction/pkg/logger"

	"github.com/gorilla/mux"
)

// NewWebSocketRouter serves the party and observer socket at /ws/auction.
func NewWebSocketRouter(wsHandler *websocket.WebSocketHandler, log logger.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.CORSWithLogging(log))
	r.HandleFunc("/ws/auction", wsHandler.HandleConnection).Methods(http.MethodGet)
	return r
}
