package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"wordclash-backend/internal/game"
)

func TestCreateRoomAssignsCodeAndBindings(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil)
	conn := newFakeConn("conn-1")

	r, playerID, err := m.CreateRoom(conn, "alice", "", "")
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}

	code := r.Code()
	if len(code) != CodeLength {
		t.Errorf("code length = %d, want %d", len(code), CodeLength)
	}
	for _, c := range code {
		if !strings.ContainsRune(roomCodeAlphabet, c) {
			t.Errorf("code %q contains %q, not in alphabet", code, c)
		}
	}

	if got := m.RoomCount(); got != 1 {
		t.Errorf("RoomCount() = %d, want 1", got)
	}
	if got := m.BoundPlayerCount(); got != 1 {
		t.Errorf("BoundPlayerCount() = %d, want 1", got)
	}
	if found, ok := m.Room(code); !ok || found != r {
		t.Errorf("Room(%q) = %v, %v; want the created room", code, found, ok)
	}
	foundRoom, pid, ok := m.RoomFor(conn.ID())
	if !ok || foundRoom != r || pid != playerID {
		t.Errorf("RoomFor(%q) = %v, %q, %v; want room and %q", conn.ID(), foundRoom, pid, ok, playerID)
	}
}

func TestCreateRoomUniqueCodes(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil)
	codes := make(map[string]bool)
	for i := 0; i < 50; i++ {
		r, _, err := m.CreateRoom(newFakeConn(fmt.Sprintf("conn-%d", i)), "alice", "", "")
		if err != nil {
			t.Fatalf("CreateRoom() #%d error = %v", i, err)
		}
		if codes[r.Code()] {
			t.Errorf("duplicate room code %q", r.Code())
		}
		codes[r.Code()] = true
	}
	if got := m.RoomCount(); got != 50 {
		t.Errorf("RoomCount() = %d, want 50", got)
	}
}

func TestPlayerNameValidation(t *testing.T) {
	tests := []struct {
		name     string
		player   string
		wantName string
		wantErr  error
	}{
		{"simple name", "alice", "alice", nil},
		{"surrounding whitespace trimmed", "  bob  ", "bob", nil},
		{"24 characters allowed", strings.Repeat("x", 24), strings.Repeat("x", 24), nil},
		{"empty rejected", "", "", ErrInvalidPlayerName},
		{"whitespace only rejected", "   ", "", ErrInvalidPlayerName},
		{"25 characters rejected", strings.Repeat("x", 25), "", ErrInvalidPlayerName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestManager(t, nil, nil, nil)
			r, _, err := m.CreateRoom(newFakeConn("conn-1"), tt.player, "", "")
			if err != tt.wantErr {
				t.Fatalf("CreateRoom(%q) error = %v, want %v", tt.player, err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if got := m.RoomCount(); got != 0 {
					t.Errorf("RoomCount() after rejected create = %d, want 0", got)
				}
				return
			}
			summary, ok := r.Summary()
			if !ok {
				t.Fatal("Summary() not ok")
			}
			if summary.Players[0].Name != tt.wantName {
				t.Errorf("stored name = %q, want %q", summary.Players[0].Name, tt.wantName)
			}
		})
	}
}

func TestCreateRoomWhileBound(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil)
	conn := newFakeConn("conn-1")
	r, _, err := m.CreateRoom(conn, "alice", "", "")
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}

	if _, _, err := m.CreateRoom(conn, "alice", "", ""); err != ErrAlreadyInRoom {
		t.Errorf("CreateRoom(bound conn) = %v, want %v", err, ErrAlreadyInRoom)
	}
	if _, _, err := m.JoinRoom(conn, r.Code(), "alice", ""); err != ErrAlreadyInRoom {
		t.Errorf("JoinRoom(bound conn) = %v, want %v", err, ErrAlreadyInRoom)
	}
	if _, err := m.Rejoin(conn, r.Code(), "whoever"); err != ErrAlreadyInRoom {
		t.Errorf("Rejoin(bound conn) = %v, want %v", err, ErrAlreadyInRoom)
	}
}

func TestJoinRoomCodeNormalization(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil)
	r, _, err := m.CreateRoom(newFakeConn("conn-1"), "alice", "", "")
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}

	sloppy := "  " + strings.ToLower(r.Code()) + " "
	if _, _, err := m.JoinRoom(newFakeConn("conn-2"), sloppy, "bob", ""); err != nil {
		t.Errorf("JoinRoom(%q) = %v, want nil", sloppy, err)
	}
}

func TestJoinRoomErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Room.MaxPlayersPerRoom = 2
	m, _ := newTestManager(t, cfg, nil, nil)
	r, _, err := m.CreateRoom(newFakeConn("conn-1"), "alice", "", "")
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}

	if _, _, err := m.JoinRoom(newFakeConn("conn-2"), "ZZZZZZ", "bob", ""); err != ErrRoomNotFound {
		t.Errorf("JoinRoom(unknown code) = %v, want %v", err, ErrRoomNotFound)
	}
	if _, _, err := m.JoinRoom(newFakeConn("conn-3"), r.Code(), "bob", ""); err != nil {
		t.Fatalf("JoinRoom() error = %v", err)
	}
	if _, _, err := m.JoinRoom(newFakeConn("conn-4"), r.Code(), "carol", ""); err != ErrRoomFull {
		t.Errorf("JoinRoom(full room) = %v, want %v", err, ErrRoomFull)
	}
}

func TestRoomCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.Room.MaxConcurrentRooms = 1
	m, _ := newTestManager(t, cfg, nil, nil)

	r, playerID, err := m.CreateRoom(newFakeConn("conn-1"), "alice", "", "")
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if _, _, err := m.CreateRoom(newFakeConn("conn-2"), "bob", "", ""); err != ErrTooManyRooms {
		t.Errorf("CreateRoom(at capacity) = %v, want %v", err, ErrTooManyRooms)
	}

	// Destroying the room frees its slot.
	if err := r.Leave(playerID); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}
	if _, _, err := m.CreateRoom(newFakeConn("conn-3"), "carol", "", ""); err != nil {
		t.Errorf("CreateRoom(after destroy) = %v, want nil", err)
	}
}

func TestConcurrentRoomCreation(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil)
	const goroutines = 20

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _, err := m.CreateRoom(newFakeConn(fmt.Sprintf("conn-%d", n)), "alice", "", "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent CreateRoom() error = %v", err)
		}
	}
	if got := m.RoomCount(); got != goroutines {
		t.Errorf("RoomCount() = %d, want %d", got, goroutines)
	}
	codes := make(map[string]bool)
	for _, r := range m.Rooms() {
		if codes[r.Code()] {
			t.Errorf("duplicate room code %q", r.Code())
		}
		codes[r.Code()] = true
	}
}

func TestDisconnectedUnboundConn(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil)
	if _, _, err := m.CreateRoom(newFakeConn("conn-1"), "alice", "", ""); err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}

	// Lobby browsers disconnect without ever binding to a room.
	m.Disconnected("ghost-conn")

	if got := m.RoomCount(); got != 1 {
		t.Errorf("RoomCount() = %d, want 1", got)
	}
}

func TestCreateDailyChallenge(t *testing.T) {
	ctx := context.Background()

	t.Run("zero daily number uses today", func(t *testing.T) {
		m, reg := newTestManager(t, nil, nil, nil)
		conn := newFakeConn("conn-1")
		r, _, err := m.CreateDailyChallenge(ctx, conn, "alice", "alice@example.com", 0, false)
		if err != nil {
			t.Fatalf("CreateDailyChallenge() error = %v", err)
		}
		msg, ok := lastMessage(conn, game.RoomCreated{})
		if !ok {
			t.Fatal("creator did not receive roomCreated")
		}
		created := msg.(game.RoomCreated)
		if created.DailyNumber != game.CurrentDailyNumber() {
			t.Errorf("dailyNumber = %d, want %d", created.DailyNumber, game.CurrentDailyNumber())
		}
		if created.Solo {
			t.Error("solo = true, want false")
		}
		if created.Config.WordMode != game.WordModeDaily {
			t.Errorf("word mode = %q, want %q", created.Config.WordMode, game.WordModeDaily)
		}
		if created.Config.Visibility != game.VisibilityPrivate {
			t.Errorf("visibility = %q, want %q", created.Config.Visibility, game.VisibilityPrivate)
		}
		// Daily rooms never appear in the public lobby.
		if rooms := reg.Rooms(); len(rooms) != 0 {
			t.Errorf("daily room listed in lobby: %+v", rooms)
		}
		if _, ok := m.Room(r.Code()); !ok {
			t.Error("daily room not resolvable by code")
		}
	})

	t.Run("email required", func(t *testing.T) {
		m, _ := newTestManager(t, nil, nil, nil)
		_, _, err := m.CreateDailyChallenge(ctx, newFakeConn("conn-1"), "alice", "   ", 0, false)
		if err != ErrEmailRequired {
			t.Errorf("CreateDailyChallenge(no email) = %v, want %v", err, ErrEmailRequired)
		}
	})

	t.Run("daily number out of range", func(t *testing.T) {
		m, _ := newTestManager(t, nil, nil, nil)
		future := game.CurrentDailyNumber() + 1
		_, _, err := m.CreateDailyChallenge(ctx, newFakeConn("conn-1"), "alice", "alice@example.com", future, false)
		if err != ErrInvalidDailyNumber {
			t.Errorf("CreateDailyChallenge(future) = %v, want %v", err, ErrInvalidDailyNumber)
		}
		_, _, err = m.CreateDailyChallenge(ctx, newFakeConn("conn-2"), "alice", "alice@example.com", -3, false)
		if err != ErrInvalidDailyNumber {
			t.Errorf("CreateDailyChallenge(negative) = %v, want %v", err, ErrInvalidDailyNumber)
		}
	})

	t.Run("already completed", func(t *testing.T) {
		store := &fakePersistence{completed: true}
		m, _ := newTestManager(t, nil, store, nil)
		_, _, err := m.CreateDailyChallenge(ctx, newFakeConn("conn-1"), "alice", "alice@example.com", 0, false)
		if err != ErrDailyAlreadyCompleted {
			t.Errorf("CreateDailyChallenge(completed) = %v, want %v", err, ErrDailyAlreadyCompleted)
		}
		if got := m.RoomCount(); got != 0 {
			t.Errorf("RoomCount() = %d, want 0", got)
		}
	})

	t.Run("precheck failure fails closed", func(t *testing.T) {
		store := &fakePersistence{checkErr: errors.New("connection refused")}
		m, _ := newTestManager(t, nil, store, nil)
		_, _, err := m.CreateDailyChallenge(ctx, newFakeConn("conn-1"), "alice", "alice@example.com", 0, false)
		if err != ErrPersistenceUnavailable {
			t.Errorf("CreateDailyChallenge(store down) = %v, want %v", err, ErrPersistenceUnavailable)
		}
	})

	t.Run("no store skips precheck", func(t *testing.T) {
		m, _ := newTestManager(t, nil, nil, nil)
		_, _, err := m.CreateDailyChallenge(ctx, newFakeConn("conn-1"), "alice", "alice@example.com", 0, false)
		if err != nil {
			t.Errorf("CreateDailyChallenge(no store) = %v, want nil", err)
		}
	})
}

func TestShutdownDestroysAllRooms(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil)
	r1, p1, err := m.CreateRoom(newFakeConn("conn-1"), "alice", "", "")
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if _, _, err := m.CreateRoom(newFakeConn("conn-2"), "bob", "", ""); err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}

	m.Shutdown()

	if got := m.RoomCount(); got != 0 {
		t.Errorf("RoomCount() = %d, want 0", got)
	}
	if got := m.BoundPlayerCount(); got != 0 {
		t.Errorf("BoundPlayerCount() = %d, want 0", got)
	}
	if err := r1.SetReady(p1, true); err != ErrRoomNotFound {
		t.Errorf("SetReady(after shutdown) = %v, want %v", err, ErrRoomNotFound)
	}
}

func TestTestSeedRequiresTestMode(t *testing.T) {
	cfg := testConfig()
	cfg.Dev.TestMode = false
	m, _ := newTestManager(t, cfg, nil, nil)
	r, _, err := m.CreateRoom(newFakeConn("conn-1"), "alice", "", "crane")
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if r.testSeed != "" {
		t.Errorf("testSeed outside test mode = %q, want empty", r.testSeed)
	}

	m2, _ := newTestManager(t, nil, nil, nil)
	r2, _, err := m2.CreateRoom(newFakeConn("conn-1"), "alice", "", "crane")
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if r2.testSeed != "CRANE" {
		t.Errorf("testSeed = %q, want %q", r2.testSeed, "CRANE")
	}
}
