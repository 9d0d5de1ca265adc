package lobby

import (
	"sync"
	"testing"

	"wordclash-backend/internal/game"
)

type fakeSubscriber struct {
	id string

	mu     sync.Mutex
	reject bool
	lists  []game.PublicRoomsList
}

func (f *fakeSubscriber) ID() string { return f.id }

func (f *fakeSubscriber) Send(v interface{}) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject {
		return false
	}
	list, ok := v.(game.PublicRoomsList)
	if !ok {
		return false
	}
	f.lists = append(f.lists, list)
	return true
}

func (f *fakeSubscriber) setReject(reject bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reject = reject
}

func (f *fakeSubscriber) received() []game.PublicRoomsList {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]game.PublicRoomsList, len(f.lists))
	copy(out, f.lists)
	return out
}

func entry(code, host string, players int) game.LobbyRoom {
	return game.LobbyRoom{
		RoomCode:    code,
		HostName:    host,
		PlayerCount: players,
		MaxPlayers:  4,
		GameMode:    game.ModeCasual,
		WordMode:    game.WordModeRandom,
	}
}

func TestSubscribeReceivesCurrentList(t *testing.T) {
	r := NewRegistry()
	r.SetRoom(entry("BBBBBB", "beth", 2))
	r.SetRoom(entry("AAAAAA", "ana", 1))

	sub := &fakeSubscriber{id: "conn-1"}
	r.Subscribe(sub)

	lists := sub.received()
	if len(lists) != 1 {
		t.Fatalf("received %d lists, want 1", len(lists))
	}
	list := lists[0]
	if list.Type != game.TypePublicRoomsList {
		t.Errorf("type = %q, want %q", list.Type, game.TypePublicRoomsList)
	}
	if len(list.Rooms) != 2 {
		t.Fatalf("rooms = %d, want 2", len(list.Rooms))
	}
	if list.Rooms[0].RoomCode != "AAAAAA" || list.Rooms[1].RoomCode != "BBBBBB" {
		t.Errorf("rooms not sorted by code: %q, %q", list.Rooms[0].RoomCode, list.Rooms[1].RoomCode)
	}
}

func TestRoomChangesPushFullList(t *testing.T) {
	r := NewRegistry()
	sub := &fakeSubscriber{id: "conn-1"}
	r.Subscribe(sub)

	r.SetRoom(entry("AAAAAA", "ana", 1))
	r.SetRoom(entry("BBBBBB", "beth", 2))
	r.SetRoom(entry("AAAAAA", "ana", 3)) // upsert, not append
	r.RemoveRoom("AAAAAA")

	lists := sub.received()
	if len(lists) != 5 { // subscribe + 4 changes
		t.Fatalf("received %d lists, want 5", len(lists))
	}
	if got := len(lists[2].Rooms); got != 2 {
		t.Errorf("after second room: %d entries, want 2", got)
	}
	if got := lists[3].Rooms[0].PlayerCount; got != 3 {
		t.Errorf("upsert did not replace entry: playerCount = %d, want 3", got)
	}
	last := lists[4]
	if len(last.Rooms) != 1 || last.Rooms[0].RoomCode != "BBBBBB" {
		t.Errorf("after removal list = %+v, want only BBBBBB", last.Rooms)
	}
}

func TestRemoveUnknownRoomDoesNotPush(t *testing.T) {
	r := NewRegistry()
	sub := &fakeSubscriber{id: "conn-1"}
	r.Subscribe(sub)

	r.RemoveRoom("NOSUCH")

	if got := len(sub.received()); got != 1 {
		t.Errorf("received %d lists, want only the subscribe snapshot", got)
	}
}

func TestUnsubscribeStopsPushes(t *testing.T) {
	r := NewRegistry()
	sub := &fakeSubscriber{id: "conn-1"}
	r.Subscribe(sub)
	r.Unsubscribe("conn-1")

	r.SetRoom(entry("AAAAAA", "ana", 1))

	if got := len(sub.received()); got != 1 {
		t.Errorf("received %d lists after unsubscribe, want 1", got)
	}
	if r.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", r.SubscriberCount())
	}
}

func TestDeadSubscriberDropped(t *testing.T) {
	r := NewRegistry()
	alive := &fakeSubscriber{id: "conn-1"}
	dead := &fakeSubscriber{id: "conn-2"}
	r.Subscribe(alive)
	r.Subscribe(dead)
	dead.setReject(true)

	r.SetRoom(entry("AAAAAA", "ana", 1))

	if r.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount() = %d, want 1 after dropping dead subscriber", r.SubscriberCount())
	}
	if got := len(alive.received()); got != 2 {
		t.Errorf("alive subscriber received %d lists, want 2", got)
	}
}

func TestNilRegistryIsSafe(t *testing.T) {
	var r *Registry
	r.SetRoom(entry("AAAAAA", "ana", 1))
	r.RemoveRoom("AAAAAA")
	r.Unsubscribe("conn-1")
	if r.Rooms() != nil {
		t.Error("nil registry Rooms() should be nil")
	}
	if r.SubscriberCount() != 0 {
		t.Error("nil registry SubscriberCount() should be 0")
	}
}
