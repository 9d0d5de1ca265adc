package ws

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"wordclash-backend/internal/logging"
)

// Handler upgrades HTTP requests to WebSocket connections and hands them
// to the hub.
type Handler struct {
	hub      *Hub
	security *SecurityMiddleware
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

func NewHandler(hub *Hub, security *SecurityMiddleware) *Handler {
	h := &Handler{
		hub:      hub,
		security: security,
		logger:   logging.CreateLogger("ws.server"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     security.CheckOrigin,
	}
	return h
}

// HandleWebSocket validates, upgrades and registers a connection.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	connID := uuid.NewString()
	clientIP := h.security.ClientIP(r)

	if err := h.security.ValidateConnection(r, connID); err != nil {
		status := http.StatusForbidden
		switch err {
		case ErrTooManyConnections, ErrServerOverloaded:
			status = http.StatusTooManyRequests
		}
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade writes its own HTTP error; release the slot taken by
		// ValidateConnection.
		h.security.OnConnectionClosed(connID, clientIP)
		h.logger.Warn("upgrade failed", "connId", connID, "error", err.Error())
		return
	}

	client := newClient(conn, h.hub, connID, clientIP)
	h.hub.register <- client
	client.run()
}
