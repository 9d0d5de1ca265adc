// Package integration exercises the server end to end: a real HTTP server,
// real WebSocket connections, and the full middleware chain, wired the same
// way main.go wires production.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"wordclash-backend/internal/api"
	"wordclash-backend/internal/config"
	"wordclash-backend/internal/game"
	"wordclash-backend/internal/lobby"
	"wordclash-backend/internal/room"
	"wordclash-backend/internal/ws"
)

const defaultWait = 3 * time.Second

// gameStartWait covers the start countdown plus scheduling slack.
const gameStartWait = 5 * time.Second

func integrationConfig() *config.Config {
	return &config.Config{
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		},
		Rate: config.RateLimitConfig{
			WebSocketMessagesPerMinute: 600,
			APIRequestsPerMinute:       600,
			MaxConnectionsPerIP:        100,
		},
		Room: config.RoomConfig{
			MaxConcurrentRooms: 64,
			MaxPlayersPerRoom:  4,
			InactiveTimeout:    time.Hour,
			FinishedTimeout:    time.Hour,
			CleanupInterval:    time.Hour,
		},
		Game: config.GameConfig{
			CountdownSeconds:  1,
			SelectionTimeout:  5 * time.Second,
			ReconnectGrace:    5 * time.Second,
			SoloStartDelay:    10 * time.Millisecond,
			TimerSyncInterval: time.Minute,
		},
		Security: config.SecurityConfig{
			ValidateOrigin:    true,
			MaxMessageSize:    4096,
			ConnectionTimeout: 10 * time.Second,
		},
		Dev: config.DevConfig{TestMode: true},
	}
}

// memoryStore is an in-process stand-in for the Postgres-backed writer.
type memoryStore struct {
	mu          sync.Mutex
	records     []game.GameRecord
	completions map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{completions: make(map[string]bool)}
}

func (s *memoryStore) SaveGameRecord(rec game.GameRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

func (s *memoryStore) SaveDailyCompletion(c game.DailyCompletion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completions[dailyKey(c.Email, c.DailyNumber)] = true
}

func (s *memoryStore) HasCompletedDaily(ctx context.Context, email string, dailyNumber int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completions[dailyKey(email, dailyNumber)], nil
}

func (s *memoryStore) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *memoryStore) completedDaily(email string, dailyNumber int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completions[dailyKey(email, dailyNumber)]
}

func dailyKey(email string, dailyNumber int) string {
	return fmt.Sprintf("%s|%d", strings.ToLower(email), dailyNumber)
}

// testEnv is a full server instance behind an httptest listener.
type testEnv struct {
	cfg      *config.Config
	dict     *game.Dictionary
	manager  *room.Manager
	lobby    *lobby.Registry
	security *ws.SecurityMiddleware
	hub      *ws.Hub
	apiMW    *api.APIMiddleware
	store    *memoryStore
	server   *httptest.Server
}

// newTestEnv assembles and starts the server. mutate adjusts the base
// configuration before anything is constructed.
func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := integrationConfig()
	if mutate != nil {
		mutate(cfg)
	}

	env := &testEnv{
		cfg:   cfg,
		dict:  game.NewDictionary(),
		lobby: lobby.NewRegistry(),
		store: newMemoryStore(),
	}
	env.manager = room.NewManager(cfg, env.dict, env.lobby, env.store, nil)
	env.security = ws.NewSecurityMiddleware(cfg.Security, cfg.Rate, cfg.CORS.AllowedOrigins)
	env.hub = ws.NewHub(env.manager, env.lobby, env.security, cfg.Security)
	go env.hub.Run()

	router := mux.NewRouter()
	router.HandleFunc("/ws", ws.NewHandler(env.hub, env.security).HandleWebSocket)

	env.apiMW = api.NewAPIMiddleware(cfg.CORS, cfg.Rate)
	apiRouter := mux.NewRouter()
	api.NewRoomHandler(env.manager, env.lobby).RegisterRoutes(apiRouter)
	api.NewHealthHandler(env.manager, env.dict, nil).RegisterRoutes(apiRouter)
	rest := env.apiMW.Apply(apiRouter)
	router.PathPrefix("/api").Handler(rest)
	router.PathPrefix("/health").Handler(rest)

	env.server = httptest.NewServer(router)
	t.Cleanup(env.Close)
	return env
}

func (env *testEnv) Close() {
	env.server.Close()
	env.manager.Shutdown()
	env.hub.Shutdown()
	env.apiMW.Stop()
}

func (env *testEnv) wsURL() string {
	return "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
}

// envelope is one inbound frame with the type discriminator peeked out.
type envelope struct {
	Type string
	Raw  json.RawMessage
}

// wsClient drives one WebSocket connection. A reader goroutine feeds the
// inbox; waitFor pulls the next frame of a wanted type and parks everything
// else in a backlog so assertions need not follow broadcast order exactly.
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn

	inbox     chan envelope
	closeOnce sync.Once

	mu      sync.Mutex
	backlog []envelope
}

func dialWS(t *testing.T, env *testEnv) *wsClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL(), nil)
	require.NoError(t, err, "websocket dial")
	return newWSClient(t, conn)
}

func newWSClient(t *testing.T, conn *websocket.Conn) *wsClient {
	c := &wsClient{
		t:     t,
		conn:  conn,
		inbox: make(chan envelope, 256),
	}
	go c.readLoop()
	t.Cleanup(c.close)
	return c
}

func (c *wsClient) readLoop() {
	defer c.closeOnce.Do(func() { close(c.inbox) })
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var peek struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &peek); err != nil {
			continue
		}
		c.inbox <- envelope{Type: peek.Type, Raw: data}
	}
}

func (c *wsClient) close() {
	c.conn.Close()
}

func (c *wsClient) send(v interface{}) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(v), "websocket write")
}

// waitFor returns the next frame of the given type within timeout. Frames
// of other types are kept for later waits.
func (c *wsClient) waitFor(msgType game.MessageType, timeout time.Duration) json.RawMessage {
	c.t.Helper()

	c.mu.Lock()
	for i, env := range c.backlog {
		if env.Type == string(msgType) {
			c.backlog = append(c.backlog[:i], c.backlog[i+1:]...)
			c.mu.Unlock()
			return env.Raw
		}
	}
	c.mu.Unlock()

	deadline := time.After(timeout)
	for {
		select {
		case env, ok := <-c.inbox:
			if !ok {
				c.t.Fatalf("connection closed while waiting for %q", msgType)
			}
			if env.Type == string(msgType) {
				return env.Raw
			}
			c.mu.Lock()
			c.backlog = append(c.backlog, env)
			c.mu.Unlock()
		case <-deadline:
			c.t.Fatalf("no %q message within %v", msgType, timeout)
		}
	}
}

// expectNone fails when a frame of the given type arrives within wait.
func (c *wsClient) expectNone(msgType game.MessageType, wait time.Duration) {
	c.t.Helper()

	c.mu.Lock()
	for _, env := range c.backlog {
		if env.Type == string(msgType) {
			c.mu.Unlock()
			c.t.Fatalf("unexpected %q message", msgType)
		}
	}
	c.mu.Unlock()

	deadline := time.After(wait)
	for {
		select {
		case env, ok := <-c.inbox:
			if !ok {
				return
			}
			if env.Type == string(msgType) {
				c.t.Fatalf("unexpected %q message", msgType)
			}
			c.mu.Lock()
			c.backlog = append(c.backlog, env)
			c.mu.Unlock()
		case <-deadline:
			return
		}
	}
}

// waitClosed succeeds once the server closes the connection.
func (c *wsClient) waitClosed(timeout time.Duration) {
	c.t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case _, ok := <-c.inbox:
			if !ok {
				return
			}
		case <-deadline:
			c.t.Fatal("connection still open")
		}
	}
}

func (c *wsClient) decode(raw json.RawMessage, v interface{}) {
	c.t.Helper()
	require.NoError(c.t, json.Unmarshal(raw, v), "decoding %s", string(raw))
}

// expectError waits for an error frame and checks its code.
func (c *wsClient) expectError(code string, timeout time.Duration) game.ErrorMessage {
	c.t.Helper()
	var msg game.ErrorMessage
	c.decode(c.waitFor(game.TypeError, timeout), &msg)
	require.Equal(c.t, code, msg.Code, "error message: %s", msg.Message)
	return msg
}

func (c *wsClient) createRoom(name, seed string) (roomCode, playerID string) {
	c.t.Helper()
	c.send(map[string]interface{}{"type": "createRoom", "playerName": name, "testWordSeed": seed})
	var msg game.RoomCreated
	c.decode(c.waitFor(game.TypeRoomCreated, defaultWait), &msg)
	return msg.RoomCode, msg.PlayerID
}

func (c *wsClient) joinRoom(roomCode, name string) (playerID string) {
	c.t.Helper()
	c.send(map[string]interface{}{"type": "joinRoom", "roomCode": roomCode, "playerName": name})
	var msg game.RoomJoined
	c.decode(c.waitFor(game.TypeRoomJoined, defaultWait), &msg)
	return msg.PlayerID
}

func (c *wsClient) setReady(ready bool) {
	c.t.Helper()
	c.send(map[string]interface{}{"type": "setReady", "ready": ready})
}

func (c *wsClient) guess(word string) game.GuessResult {
	c.t.Helper()
	c.send(map[string]interface{}{"type": "guess", "word": word})
	var msg game.GuessResult
	c.decode(c.waitFor(game.TypeGuessResult, defaultWait), &msg)
	return msg
}

func (c *wsClient) submitWord(word string) game.WordSubmitted {
	c.t.Helper()
	c.send(map[string]interface{}{"type": "submitWord", "word": word})
	var msg game.WordSubmitted
	c.decode(c.waitFor(game.TypeWordSubmitted, defaultWait), &msg)
	return msg
}

// startDuel readies both players, starts the game as host and waits for
// both to see it begin. Returns the host's gameStarted frame.
func startDuel(t *testing.T, host, guest *wsClient) game.GameStarted {
	t.Helper()
	host.setReady(true)
	guest.setReady(true)

	// Start only after the room confirms everyone is ready; the two ready
	// frames travel on independent connections.
	for {
		var status game.AllPlayersReadyStatus
		host.decode(host.waitFor(game.TypeAllPlayersReadyStatus, defaultWait), &status)
		if status.AllReady {
			break
		}
	}
	host.send(map[string]interface{}{"type": "startGame"})

	var started game.GameStarted
	host.decode(host.waitFor(game.TypeGameStarted, gameStartWait), &started)
	guest.waitFor(game.TypeGameStarted, gameStartWait)
	return started
}
