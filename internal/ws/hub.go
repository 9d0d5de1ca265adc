package ws

import (
	"context"
	"runtime"
	"sync"
	"time"

	"wordclash-backend/internal/config"
	"wordclash-backend/internal/lobby"
	"wordclash-backend/internal/logging"
	"wordclash-backend/internal/room"
)

const statsInterval = time.Minute

// Hub tracks live connections and routes their lifecycle events. Game
// traffic does not pass through the hub: rooms hold their own connection
// handles and write directly. The hub's job is registration, disconnect
// fan-out to the room manager and lobby, and periodic load reporting.
type Hub struct {
	manager        *room.Manager
	lobby          *lobby.Registry
	handler        *MessageHandler
	security       *SecurityMiddleware
	maxMessageSize int64
	logger         *logging.Logger

	register   chan *Client
	unregister chan *Client

	mutex   sync.RWMutex
	clients map[string]*Client
}

// HubStats is the load snapshot served by the health endpoint.
type HubStats struct {
	ConnectedClients int `json:"connectedClients"`
	ActiveRooms      int `json:"activeRooms"`
	BoundPlayers     int `json:"boundPlayers"`
	LobbySubscribers int `json:"lobbySubscribers"`
}

func NewHub(manager *room.Manager, lobbyReg *lobby.Registry, security *SecurityMiddleware, securityCfg config.SecurityConfig) *Hub {
	h := &Hub{
		manager:        manager,
		lobby:          lobbyReg,
		security:       security,
		maxMessageSize: securityCfg.MaxMessageSize,
		logger:         logging.CreateLogger("ws.hub"),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		clients:        make(map[string]*Client),
	}
	h.handler = NewMessageHandler(manager, lobbyReg)
	return h
}

// Run processes connection lifecycle events. It never returns; start it
// once as a goroutine.
func (h *Hub) Run() {
	go h.statsLoop()

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mutex.Lock()
	h.clients[client.ID()] = client
	total := len(h.clients)
	h.mutex.Unlock()

	h.logger.Info("client connected", "connId", client.ID(),
		"clientIp", client.IP(), "total", total)
}

// handleUnregister tears down everything a connection touched: the hub
// registry, its lobby subscription, its room binding (which starts the
// reconnect grace), and the security counters.
func (h *Hub) handleUnregister(client *Client) {
	connID := client.ID()

	h.mutex.Lock()
	if _, ok := h.clients[connID]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, connID)
	total := len(h.clients)
	h.mutex.Unlock()

	h.lobby.Unsubscribe(connID)
	h.manager.Disconnected(connID)
	if h.security != nil {
		h.security.OnConnectionClosed(connID, client.IP())
	}
	client.Close()

	h.logger.Info("client disconnected", "connId", connID, "total", total)
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Stats snapshots hub load for the health endpoint.
func (h *Hub) Stats() HubStats {
	return HubStats{
		ConnectedClients: h.ClientCount(),
		ActiveRooms:      h.manager.RoomCount(),
		BoundPlayers:     h.manager.BoundPlayerCount(),
		LobbySubscribers: h.lobby.SubscriberCount(),
	}
}

// statsLoop reports load periodically so capacity problems show up in
// Sentry before they show up as incidents.
func (h *Hub) statsLoop() {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for range ticker.C {
		stats := h.Stats()
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		h.logger.Info("hub stats",
			"connections", stats.ConnectedClients,
			"rooms", stats.ActiveRooms,
			"boundPlayers", stats.BoundPlayers,
			"lobbySubscribers", stats.LobbySubscribers)
		logging.RecordPerformanceMetrics(context.Background(), logging.PerformanceMetrics{
			ActiveConnections: int64(stats.ConnectedClients),
			ActiveRooms:       int64(stats.ActiveRooms),
			ActivePlayers:     int64(stats.BoundPlayers),
			LobbySubscribers:  int64(stats.LobbySubscribers),
			MemoryUsageMB:     float64(mem.Alloc) / (1024 * 1024),
		})
	}
}

// Shutdown closes every connection. Rooms are torn down separately by the
// manager; this only kills the transports.
func (h *Hub) Shutdown() {
	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[string]*Client)
	h.mutex.Unlock()

	for _, client := range clients {
		client.Close()
	}
	if h.security != nil {
		h.security.Stop()
	}
	h.logger.Info("hub shut down", "closedConnections", len(clients))
}
