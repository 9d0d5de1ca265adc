package room

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"wordclash-backend/internal/config"
	"wordclash-backend/internal/game"
	"wordclash-backend/internal/lobby"
	"wordclash-backend/internal/logging"
)

const (
	// roomCodeAlphabet omits I, O, 0 and 1 so codes survive being read
	// aloud. 32 characters divide 256 evenly, so byte-mod sampling is
	// uniform.
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// CodeLength is the fixed length of a room code.
	CodeLength = 6

	maxCodeAttempts = 100

	maxPlayerNameLength = 24
)

// binding ties a live connection to the room and player it is acting as.
type binding struct {
	roomCode string
	playerID string
}

// Manager owns the room registry and the connection-to-player routing
// table. Rooms run their own executors; the manager only creates, finds
// and removes them.
type Manager struct {
	roomCfg     config.RoomConfig
	gameCfg     config.GameConfig
	dict        *game.Dictionary
	lobby       *lobby.Registry
	persistence Persistence
	forcedWords ForcedWordSink
	testMode    bool
	logger      *logging.Logger

	mu      sync.RWMutex
	rooms   map[string]*Room
	conns   map[string]binding
	players map[string]string

	playerSeq atomic.Uint64
}

// NewManager wires a manager from its collaborators. persistence and
// forcedWords may be nil, which disables result storage and the
// forced-word audit log respectively.
func NewManager(cfg *config.Config, dict *game.Dictionary, lobbyReg *lobby.Registry, persistence Persistence, forcedWords ForcedWordSink) *Manager {
	return &Manager{
		roomCfg:     cfg.Room,
		gameCfg:     cfg.Game,
		dict:        dict,
		lobby:       lobbyReg,
		persistence: persistence,
		forcedWords: forcedWords,
		testMode:    cfg.Dev.TestMode,
		logger:      logging.CreateLogger("room.manager"),
		rooms:       make(map[string]*Room),
		conns:       make(map[string]binding),
		players:     make(map[string]string),
	}
}

// CreateRoom opens a room with default settings and joins the creator as
// host. On any error no room is left behind. testSeed pins the target word
// and only takes effect when the server runs in test mode.
func (m *Manager) CreateRoom(conn Conn, name, email, testSeed string) (*Room, string, error) {
	name, err := normalizePlayerName(name)
	if err != nil {
		return nil, "", err
	}
	if m.connBound(conn.ID()) {
		return nil, "", ErrAlreadyInRoom
	}

	settings := defaultSettings()
	if m.testMode {
		settings.testSeed = strings.ToUpper(strings.TrimSpace(testSeed))
	}
	r, err := m.openRoom(settings)
	if err != nil {
		return nil, "", err
	}
	playerID, err := r.Join(conn, name, email)
	if err != nil {
		r.Destroy("creator failed to join")
		return nil, "", err
	}
	m.logger.Info("room created", "roomCode", r.Code(), "playerId", playerID)
	return r, playerID, nil
}

// CreateDailyChallenge opens a private daily-challenge room. The creator
// must present an email, the daily number must not lie in the future, and
// the one-attempt rule is prechecked against the store. A precheck error
// fails closed: better to reject than to allow a second attempt.
func (m *Manager) CreateDailyChallenge(ctx context.Context, conn Conn, name, email string, dailyNumber int, solo bool) (*Room, string, error) {
	name, err := normalizePlayerName(name)
	if err != nil {
		return nil, "", err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, "", ErrEmailRequired
	}
	today := game.CurrentDailyNumber()
	if dailyNumber == 0 {
		dailyNumber = today
	}
	if dailyNumber < 1 || dailyNumber > today {
		return nil, "", ErrInvalidDailyNumber
	}
	if m.connBound(conn.ID()) {
		return nil, "", ErrAlreadyInRoom
	}

	if m.persistence != nil {
		completed, err := m.persistence.HasCompletedDaily(ctx, email, dailyNumber)
		if err != nil {
			m.logger.Error("daily completion precheck failed", "dailyNumber", dailyNumber, "error", err)
			return nil, "", ErrPersistenceUnavailable
		}
		if completed {
			return nil, "", ErrDailyAlreadyCompleted
		}
	}

	settings := roomSettings{
		config: game.RoomConfig{
			GameMode:   game.ModeCasual,
			WordMode:   game.WordModeDaily,
			Visibility: game.VisibilityPrivate,
		},
		solo:        solo,
		daily:       true,
		dailyNumber: dailyNumber,
	}
	r, err := m.openRoom(settings)
	if err != nil {
		return nil, "", err
	}
	playerID, err := r.Join(conn, name, email)
	if err != nil {
		r.Destroy("creator failed to join")
		return nil, "", err
	}
	if solo {
		r.scheduleSoloStart(m.gameCfg.SoloStartDelay)
	}
	m.logger.Info("daily challenge created", "roomCode", r.Code(),
		"dailyNumber", dailyNumber, "solo", solo)
	return r, playerID, nil
}

// JoinRoom adds a player to an existing room by code.
func (m *Manager) JoinRoom(conn Conn, code, name, email string) (*Room, string, error) {
	name, err := normalizePlayerName(name)
	if err != nil {
		return nil, "", err
	}
	if m.connBound(conn.ID()) {
		return nil, "", ErrAlreadyInRoom
	}
	r, ok := m.Room(code)
	if !ok {
		return nil, "", ErrRoomNotFound
	}
	playerID, err := r.Join(conn, name, email)
	if err != nil {
		return nil, "", err
	}
	return r, playerID, nil
}

// Rejoin binds a fresh connection to a player that already exists in the
// room, replaying the current phase to the new connection.
func (m *Manager) Rejoin(conn Conn, code, playerID string) (*Room, error) {
	if m.connBound(conn.ID()) {
		return nil, ErrAlreadyInRoom
	}
	r, ok := m.Room(code)
	if !ok {
		return nil, ErrRoomNotFound
	}
	if err := r.Rejoin(conn, playerID); err != nil {
		return nil, err
	}
	return r, nil
}

// Disconnected routes a dead transport to the room its connection was
// acting in. Unbound connections (lobby browsers) need no room handling.
func (m *Manager) Disconnected(connID string) {
	m.mu.RLock()
	b, bound := m.conns[connID]
	var r *Room
	if bound {
		r = m.rooms[b.roomCode]
	}
	m.mu.RUnlock()

	if !bound {
		return
	}
	if r == nil {
		m.unbindConn(connID)
		return
	}
	r.Disconnected(connID, b.playerID)
}

// Room finds a room by its code. Codes are case-insensitive on the wire.
func (m *Manager) Room(code string) (*Room, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	return r, ok
}

// RoomFor resolves the room and player a connection is bound to.
func (m *Manager) RoomFor(connID string) (*Room, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.conns[connID]
	if !ok {
		return nil, "", false
	}
	r, ok := m.rooms[b.roomCode]
	if !ok {
		return nil, "", false
	}
	return r, b.playerID, true
}

// Rooms snapshots the registry for the janitor and the HTTP API.
func (m *Manager) Rooms() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// RoomCount returns the number of live rooms.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// BoundPlayerCount returns the number of players with a live connection.
func (m *Manager) BoundPlayerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}

// Shutdown destroys every room. Clients receive nothing beyond the closed
// connection; the rooms release their timers and bindings.
func (m *Manager) Shutdown() {
	for _, r := range m.Rooms() {
		r.Destroy("server shutting down")
	}
	m.logger.Info("all rooms destroyed")
}

func (m *Manager) maxPlayers() int {
	return m.roomCfg.MaxPlayersPerRoom
}

func (m *Manager) nextPlayerID() string {
	return fmt.Sprintf("player-%d", m.playerSeq.Add(1))
}

func (m *Manager) connBound(connID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.conns[connID]
	return ok
}

// bind records that connID acts as playerID in roomCode. Called by rooms
// on join and rejoin.
func (m *Manager) bind(connID, roomCode, playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[connID] = binding{roomCode: roomCode, playerID: playerID}
	m.players[playerID] = connID
}

// unbindConn drops a connection's binding. The player index entry is only
// removed when it still points at this connection; a rejoin may already
// have rebound the player elsewhere.
func (m *Manager) unbindConn(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.conns[connID]
	if !ok {
		return
	}
	delete(m.conns, connID)
	if m.players[b.playerID] == connID {
		delete(m.players, b.playerID)
	}
}

// unbindPlayer drops a player's binding when the player is removed from a
// room, covering players that had no live connection at removal.
func (m *Manager) unbindPlayer(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	connID, ok := m.players[playerID]
	if !ok {
		return
	}
	delete(m.players, playerID)
	if b, ok := m.conns[connID]; ok && b.playerID == playerID {
		delete(m.conns, connID)
	}
}

// removeRoom drops a destroyed room from the registry. Called by the
// room's own destroy path.
func (m *Manager) removeRoom(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, code)
}

// recordForcedWord audits a guess that bypassed the dictionary check.
func (m *Manager) recordForcedWord(word string, player *game.Player, roomCode string) {
	m.logger.Info("forced word recorded", "roomCode", roomCode,
		"playerName", player.Name, "word", word)
	if m.forcedWords != nil {
		m.forcedWords.RecordForcedWord(roomCode, player.Name, player.Email, word)
	}
}

// openRoom allocates a code, registers the room and starts its executor.
func (m *Manager) openRoom(settings roomSettings) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rooms) >= m.roomCfg.MaxConcurrentRooms {
		return nil, ErrTooManyRooms
	}
	code, err := m.generateCodeLocked()
	if err != nil {
		return nil, err
	}
	r := newRoom(m, code, settings)
	m.rooms[code] = r
	return r, nil
}

// generateCodeLocked samples codes until one misses the registry. The
// space is 32^6, so collisions at any plausible room count are rare and
// the attempt bound is never hit in practice.
func (m *Manager) generateCodeLocked() (string, error) {
	buf := make([]byte, CodeLength)
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generating room code: %w", err)
		}
		code := make([]byte, CodeLength)
		for i, b := range buf {
			code[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
		}
		if _, taken := m.rooms[string(code)]; !taken {
			return string(code), nil
		}
	}
	return "", fmt.Errorf("no unused room code after %d attempts", maxCodeAttempts)
}

func normalizePlayerName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxPlayerNameLength {
		return "", ErrInvalidPlayerName
	}
	return name, nil
}
