// Package room implements game rooms as single-goroutine executors: every
// mutation of room state runs as a task on the room's own goroutine, so
// the game rules never need locks. Handlers submit synchronously and get
// the operation's error back; timers submit asynchronously and defuse
// themselves with generation checks when they fire stale.
package room

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"wordclash-backend/internal/game"
	"wordclash-backend/internal/logging"
)

// taskQueueSize bounds the executor inbox. Handler submissions block when
// it fills, which backpressures a flooding client instead of the room.
const taskQueueSize = 64

// roomSettings fixes the immutable identity of a room at creation.
type roomSettings struct {
	config      game.RoomConfig
	solo        bool
	daily       bool
	dailyNumber int
	testSeed    string
}

func defaultSettings() roomSettings {
	return roomSettings{
		config: game.RoomConfig{
			GameMode:   game.ModeCasual,
			WordMode:   game.WordModeRandom,
			Visibility: game.VisibilityPublic,
		},
	}
}

// Room is one game room. Everything below the sync fields is owned by the
// executor goroutine; only tasks may touch it.
type Room struct {
	code    string
	manager *Manager
	logger  *logging.Logger

	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once

	state       game.RoomState
	config      game.RoomConfig
	solo        bool
	daily       bool
	dailyNumber int
	testSeed    string

	players map[string]*game.Player
	conns   map[string]Conn
	hostID  string
	joinSeq int

	gameID      string
	targets     map[string]string
	assignments map[string]game.WordAssignment
	pickTargets map[string]string
	startedAt   time.Time
	lastResults []game.PlayerResult

	countdownTimer *roomTimer
	countdownGen   uint64
	countdownLeft  int

	selectionTimer    *roomTimer
	selectionGen      uint64
	selectionDeadline time.Time

	clockTimer *roomTimer
	clockGen   uint64

	graceTimers map[string]*roomTimer
	graceGens   map[string]uint64

	createdAt    time.Time
	lastActivity time.Time

	rng *rand.Rand
}

func newRoom(m *Manager, code string, settings roomSettings) *Room {
	now := time.Now()
	r := &Room{
		code:         code,
		manager:      m,
		logger:       logging.CreateLogger("room", "roomCode", code),
		tasks:        make(chan func(), taskQueueSize),
		done:         make(chan struct{}),
		state:        game.StateWaiting,
		config:       settings.config,
		solo:         settings.solo,
		daily:        settings.daily,
		dailyNumber:  settings.dailyNumber,
		testSeed:     settings.testSeed,
		players:      make(map[string]*game.Player),
		conns:        make(map[string]Conn),
		graceTimers:  make(map[string]*roomTimer),
		graceGens:    make(map[string]uint64),
		createdAt:    now,
		lastActivity: now,
		rng:          rand.New(rand.NewSource(now.UnixNano())),
	}
	go r.run()
	return r
}

func (r *Room) run() {
	for {
		select {
		case task := <-r.tasks:
			task()
		case <-r.done:
			return
		}
	}
}

// submit queues fn without waiting for it. Used by timer callbacks; drops
// silently once the room is destroyed.
func (r *Room) submit(fn func()) {
	select {
	case r.tasks <- fn:
	case <-r.done:
	}
}

// do runs fn on the executor and waits for it, serializing the caller
// against every other room operation.
func (r *Room) do(fn func()) error {
	ran := make(chan struct{})
	select {
	case r.tasks <- func() { fn(); close(ran) }:
	case <-r.done:
		return ErrRoomNotFound
	}
	select {
	case <-ran:
		return nil
	case <-r.done:
		// The task itself may have destroyed the room; it still ran.
		select {
		case <-ran:
			return nil
		default:
			return ErrRoomNotFound
		}
	}
}

func (r *Room) doErr(fn func() error) error {
	var err error
	if derr := r.do(func() { err = fn() }); derr != nil {
		return derr
	}
	return err
}

// Code returns the room's join code. Immutable after creation.
func (r *Room) Code() string {
	return r.code
}

// Join adds a player. The first player becomes host and receives
// roomCreated; later joiners receive roomJoined and everyone else sees
// playerJoined. Nothing is sent when an error is returned.
func (r *Room) Join(conn Conn, name, email string) (string, error) {
	var playerID string
	err := r.doErr(func() error {
		var jerr error
		playerID, jerr = r.join(conn, name, email)
		return jerr
	})
	return playerID, err
}

func (r *Room) join(conn Conn, name, email string) (string, error) {
	if r.state != game.StateWaiting || r.countdownTimer != nil {
		return "", ErrGameInProgress
	}
	if len(r.players) >= r.manager.maxPlayers() {
		return "", ErrRoomFull
	}

	r.touch()
	playerID := r.manager.nextPlayerID()
	r.joinSeq++
	player := &game.Player{
		ID:        playerID,
		Name:      name,
		Email:     email,
		Connected: true,
		JoinOrder: r.joinSeq,
	}
	r.players[playerID] = player
	r.conns[playerID] = conn
	r.manager.bind(conn.ID(), r.code, playerID)

	if r.hostID == "" {
		r.hostID = playerID
		conn.Send(game.RoomCreated{
			Type:        game.TypeRoomCreated,
			RoomCode:    r.code,
			PlayerID:    playerID,
			Config:      r.config,
			Solo:        r.solo,
			DailyNumber: r.dailyNumber,
		})
	} else {
		conn.Send(game.RoomJoined{
			Type:     game.TypeRoomJoined,
			RoomCode: r.code,
			PlayerID: playerID,
			Config:   r.config,
			Players:  r.playerInfos(),
		})
		r.broadcastExcept(playerID, game.PlayerJoined{
			Type:   game.TypePlayerJoined,
			Player: r.playerInfo(player),
		})
		r.broadcastReadyStatus()
	}

	r.notifyLobby()
	r.logger.Info("player joined", "playerId", playerID, "playerName", name, "players", len(r.players))
	return playerID, nil
}

// Leave removes a player voluntarily.
func (r *Room) Leave(playerID string) error {
	return r.doErr(func() error { return r.removePlayer(playerID, "left") })
}

// removePlayer is the single removal path shared by voluntary leaves and
// grace-expiry evictions; both carry identical side effects.
func (r *Room) removePlayer(playerID, cause string) error {
	player, ok := r.players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	r.touch()

	r.stopGraceTimer(playerID)
	if conn, ok := r.conns[playerID]; ok {
		r.manager.unbindConn(conn.ID())
		delete(r.conns, playerID)
	}
	delete(r.players, playerID)
	r.manager.unbindPlayer(playerID)

	r.logger.Info("player removed", "playerId", playerID, "playerName", player.Name,
		"cause", cause, "players", len(r.players))

	if len(r.players) == 0 {
		r.destroy("last player removed")
		return nil
	}

	r.broadcast(game.PlayerLeft{
		Type:       game.TypePlayerLeft,
		PlayerID:   playerID,
		PlayerName: player.Name,
	})

	if playerID == r.hostID && !r.reassignHost() {
		r.destroy("host left with no connected players remaining")
		return nil
	}

	if r.countdownTimer != nil && !r.solo && r.connectedCount() < 2 {
		r.abortCountdown("not enough connected players")
	}

	if r.state == game.StateSelecting {
		r.dropFromSelection(playerID)
	}

	if r.forfeitIfLastConnected() {
		r.notifyLobby()
		return nil
	}

	switch r.state {
	case game.StateWaiting:
		r.broadcastReadyStatus()
	case game.StateSelecting:
		r.completeSelectionIfDone()
	case game.StatePlaying:
		r.finishIfAllDone()
	}

	r.notifyLobby()
	return nil
}

// reassignHost promotes the earliest-joined connected player. Returns
// false when nobody is connected.
func (r *Room) reassignHost() bool {
	var next *game.Player
	for _, p := range r.players {
		if !p.Connected {
			continue
		}
		if next == nil || p.JoinOrder < next.JoinOrder {
			next = p
		}
	}
	if next == nil {
		return false
	}
	r.hostID = next.ID
	r.broadcast(game.BecameCreator{
		Type:       game.TypeBecameCreator,
		PlayerID:   next.ID,
		PlayerName: next.Name,
	})
	r.logger.Info("host reassigned", "playerId", next.ID)
	return true
}

// Disconnected marks a player's transport gone and starts the reconnect
// grace clock. Notifications from an already-replaced connection are
// stale and ignored.
func (r *Room) Disconnected(connID, playerID string) {
	_ = r.do(func() {
		player, ok := r.players[playerID]
		if !ok {
			return
		}
		conn, ok := r.conns[playerID]
		if !ok || conn.ID() != connID {
			return
		}
		r.manager.unbindConn(connID)
		delete(r.conns, playerID)
		player.Connected = false
		player.DisconnectedAt = time.Now()
		r.touch()

		grace := r.manager.gameCfg.ReconnectGrace
		r.broadcast(game.PlayerDisconnected{
			Type:         game.TypePlayerDisconnected,
			PlayerID:     playerID,
			PlayerName:   player.Name,
			GraceSeconds: int(grace / time.Second),
		})
		if r.countdownTimer != nil && !r.solo && r.connectedCount() < 2 {
			r.abortCountdown("not enough connected players")
		}
		r.startGraceTimer(playerID, grace)
		r.logger.Info("player disconnected", "playerId", playerID,
			"graceSeconds", int(grace/time.Second))
	})
}

func (r *Room) startGraceTimer(playerID string, grace time.Duration) {
	r.graceGens[playerID]++
	gen := r.graceGens[playerID]
	if t, ok := r.graceTimers[playerID]; ok {
		t.Stop()
	}
	r.graceTimers[playerID] = r.afterFunc(grace, func() {
		if r.graceGens[playerID] != gen {
			return
		}
		player, ok := r.players[playerID]
		if !ok || player.Connected {
			return
		}
		delete(r.graceTimers, playerID)
		r.logger.Info("reconnect grace expired", "playerId", playerID)
		_ = r.removePlayer(playerID, "grace expired")
	})
}

func (r *Room) stopGraceTimer(playerID string) {
	r.graceGens[playerID]++
	if t, ok := r.graceTimers[playerID]; ok {
		t.Stop()
		delete(r.graceTimers, playerID)
	}
}

// Rejoin binds a fresh connection to an existing player and replays a
// snapshot of the current phase. A rejoin for a still-connected player
// replaces the old connection.
func (r *Room) Rejoin(conn Conn, playerID string) error {
	return r.doErr(func() error { return r.rejoin(conn, playerID) })
}

func (r *Room) rejoin(conn Conn, playerID string) error {
	player, ok := r.players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	r.touch()

	if old, bound := r.conns[playerID]; bound {
		old.Send(game.ReplacedByNewConnection{Type: game.TypeReplacedByNewConnection})
		r.manager.unbindConn(old.ID())
		old.Close()
	}
	r.stopGraceTimer(playerID)

	wasDisconnected := !player.Connected
	player.Connected = true
	player.DisconnectedAt = time.Time{}
	r.conns[playerID] = conn
	r.manager.bind(conn.ID(), r.code, playerID)

	if wasDisconnected {
		r.broadcastExcept(playerID, game.PlayerReconnected{
			Type:       game.TypePlayerReconnected,
			PlayerID:   playerID,
			PlayerName: player.Name,
		})
	}
	r.sendSnapshot(conn, player)
	r.logger.Info("player rejoined", "playerId", playerID, "replaced", !wasDisconnected)
	return nil
}

// SetGameMode switches casual/competitive scoring. Host only, waiting
// only; silently ignored while the countdown runs.
func (r *Room) SetGameMode(playerID string, mode game.GameMode) error {
	return r.doErr(func() error {
		if r.countdownTimer != nil {
			return nil
		}
		if err := r.configGate(playerID); err != nil {
			return err
		}
		r.config.GameMode = mode
		r.touch()
		r.broadcast(game.GameModeChanged{Type: game.TypeGameModeChanged, GameMode: mode})
		r.notifyLobby()
		return nil
	})
}

// SetWordMode switches how target words are chosen.
func (r *Room) SetWordMode(playerID string, mode game.WordMode) error {
	return r.doErr(func() error {
		if r.countdownTimer != nil {
			return nil
		}
		if err := r.configGate(playerID); err != nil {
			return err
		}
		r.config.WordMode = mode
		r.touch()
		r.broadcast(game.WordModeChanged{Type: game.TypeWordModeChanged, WordMode: mode})
		r.notifyLobby()
		return nil
	})
}

// SetHardMode toggles the hard-mode guess constraint.
func (r *Room) SetHardMode(playerID string, enabled bool) error {
	return r.doErr(func() error {
		if r.countdownTimer != nil {
			return nil
		}
		if err := r.configGate(playerID); err != nil {
			return err
		}
		r.config.HardMode = enabled
		r.touch()
		r.broadcast(game.HardModeChanged{Type: game.TypeHardModeChanged, HardMode: enabled})
		return nil
	})
}

// SetVisibility toggles lobby listing.
func (r *Room) SetVisibility(playerID string, visibility game.Visibility) error {
	return r.doErr(func() error {
		if r.countdownTimer != nil {
			return nil
		}
		if err := r.configGate(playerID); err != nil {
			return err
		}
		r.config.Visibility = visibility
		r.touch()
		r.broadcast(game.RoomVisibilityChanged{
			Type:       game.TypeRoomVisibilityChanged,
			Visibility: visibility,
		})
		r.notifyLobby()
		return nil
	})
}

func (r *Room) configGate(playerID string) error {
	if _, ok := r.players[playerID]; !ok {
		return ErrPlayerNotFound
	}
	if r.state != game.StateWaiting {
		return ErrGameAlreadyStarted
	}
	if playerID != r.hostID {
		return ErrNotHost
	}
	return nil
}

// SetReady flips a player's ready flag. Frozen during the countdown.
func (r *Room) SetReady(playerID string, ready bool) error {
	return r.doErr(func() error {
		player, ok := r.players[playerID]
		if !ok {
			return ErrPlayerNotFound
		}
		if r.countdownTimer != nil {
			return nil
		}
		if r.state != game.StateWaiting {
			return ErrGameAlreadyStarted
		}
		player.Ready = ready
		r.touch()
		r.broadcast(game.PlayerReadyChanged{
			Type:     game.TypePlayerReadyChanged,
			PlayerID: playerID,
			Ready:    ready,
		})
		r.broadcastReadyStatus()
		return nil
	})
}

func (r *Room) broadcastReadyStatus() {
	ready := 0
	for _, p := range r.players {
		if p.Ready {
			ready++
		}
	}
	r.broadcast(game.AllPlayersReadyStatus{
		Type:       game.TypeAllPlayersReadyStatus,
		AllReady:   ready == len(r.players) && len(r.players) > 0,
		ReadyCount: ready,
		TotalCount: len(r.players),
	})
}

// destroy tears the room down: all timers stopped, all bindings released,
// the lobby and manager informed. Runs on the executor; idempotent.
func (r *Room) destroy(reason string) {
	r.closeOnce.Do(func() {
		r.countdownGen++
		r.selectionGen++
		r.clockGen++
		r.countdownTimer.Stop()
		r.selectionTimer.Stop()
		r.clockTimer.Stop()
		for _, t := range r.graceTimers {
			t.Stop()
		}

		for playerID, conn := range r.conns {
			r.manager.unbindConn(conn.ID())
			delete(r.conns, playerID)
		}
		for playerID := range r.players {
			r.manager.unbindPlayer(playerID)
		}

		r.manager.lobby.RemoveRoom(r.code)
		r.manager.removeRoom(r.code)
		close(r.done)
		r.logger.Info("room destroyed", "reason", reason)
	})
}

// Destroy tears the room down from outside the executor. Used by the
// janitor and during server shutdown.
func (r *Room) Destroy(reason string) {
	_ = r.do(func() { r.destroy(reason) })
}

// notifyLobby pushes this room's listing entry, or delists it, after any
// change that affects lobby visibility.
func (r *Room) notifyLobby() {
	if r.visibleInLobby() {
		r.manager.lobby.SetRoom(r.lobbyEntry())
	} else {
		r.manager.lobby.RemoveRoom(r.code)
	}
}

// visibleInLobby: public, waiting (and not counting down), not solo, not a
// daily challenge, and not full.
func (r *Room) visibleInLobby() bool {
	return r.config.Visibility == game.VisibilityPublic &&
		r.state == game.StateWaiting &&
		r.countdownTimer == nil &&
		!r.solo &&
		!r.daily &&
		len(r.players) > 0 &&
		len(r.players) < r.manager.maxPlayers()
}

func (r *Room) lobbyEntry() game.LobbyRoom {
	hostName := ""
	if host, ok := r.players[r.hostID]; ok {
		hostName = host.Name
	}
	return game.LobbyRoom{
		RoomCode:    r.code,
		HostName:    hostName,
		PlayerCount: len(r.players),
		MaxPlayers:  r.manager.maxPlayers(),
		GameMode:    r.config.GameMode,
		WordMode:    r.config.WordMode,
	}
}

func (r *Room) broadcast(v interface{}) {
	for playerID, conn := range r.conns {
		if !conn.Send(v) {
			r.logger.Warn("send failed, connection backed up", "playerId", playerID)
		}
	}
}

func (r *Room) broadcastExcept(exceptID string, v interface{}) {
	for playerID, conn := range r.conns {
		if playerID == exceptID {
			continue
		}
		if !conn.Send(v) {
			r.logger.Warn("send failed, connection backed up", "playerId", playerID)
		}
	}
}

func (r *Room) sendTo(playerID string, v interface{}) {
	if conn, ok := r.conns[playerID]; ok {
		conn.Send(v)
	}
}

func (r *Room) playerInfo(p *game.Player) game.PlayerInfo {
	return game.PlayerInfo{
		PlayerID:  p.ID,
		Name:      p.Name,
		Ready:     p.Ready,
		Connected: p.Connected,
		IsHost:    p.ID == r.hostID,
		JoinOrder: p.JoinOrder,
	}
}

func (r *Room) playerInfos() []game.PlayerInfo {
	infos := make([]game.PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		infos = append(infos, r.playerInfo(p))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].JoinOrder < infos[j].JoinOrder })
	return infos
}

func (r *Room) playersByJoinOrder() []*game.Player {
	players := make([]*game.Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].JoinOrder < players[j].JoinOrder })
	return players
}

func (r *Room) connectedCount() int {
	n := 0
	for _, p := range r.players {
		if p.Connected {
			n++
		}
	}
	return n
}

func (r *Room) touch() {
	r.lastActivity = time.Now()
}

// IdleInfo reports the room's state and last activity for the janitor.
// ok is false when the room is already destroyed.
func (r *Room) IdleInfo() (state game.RoomState, lastActivity time.Time, ok bool) {
	err := r.do(func() {
		state = r.state
		lastActivity = r.lastActivity
	})
	return state, lastActivity, err == nil
}
