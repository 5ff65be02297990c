package handlers

import (
	"context"
	"log"

	"github.com/gofiber/contrib/websocket"

	"argus/internal/store"
	"argus/internal/transport"
)

// WebSocketHandler upgrades the single duplex-channel endpoint and hands the
// connection to the Broadcast Transport (spec §4.9), which owns the
// connection's entire read/write/ping lifecycle.
type WebSocketHandler struct {
	hub   *transport.Hub
	store *store.Store
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(hub *transport.Hub, s *store.Store) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, store: s}
}

// Handle handles a new WebSocket connection. It registers a fresh opaque
// subscription token for the connecting client (spec §4.5) before handing
// the connection to the Hub, which blocks for the connection's lifetime, so
// this must be registered via websocket.New in the router.
func (h *WebSocketHandler) Handle(c *websocket.Conn) {
	if _, err := h.store.CreateSubscription(context.Background()); err != nil {
		log.Printf("⚠️ [WEBSOCKET] failed to register subscription token: %v", err)
	}
	h.hub.Accept(c)
}
