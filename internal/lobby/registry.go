// Package lobby tracks which waiting rooms are publicly joinable and
// pushes the full list to subscribed connections on every change.
package lobby

import (
	"sort"
	"sync"

	"wordclash-backend/internal/game"
	"wordclash-backend/internal/logging"
)

// Subscriber is a connection watching the public rooms list. Send must not
// block; a false return means the connection is gone and the subscription
// is dropped.
type Subscriber interface {
	ID() string
	Send(v interface{}) bool
}

// Registry holds the current listings and the subscriber set. Rooms push
// their own entries after every visible change; the registry never calls
// back into a room, so room executors can notify it without ordering
// concerns. All methods are nil-safe so rooms can notify unconditionally.
type Registry struct {
	mu          sync.Mutex
	subscribers map[string]Subscriber
	rooms       map[string]game.LobbyRoom
	logger      *logging.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		subscribers: make(map[string]Subscriber),
		rooms:       make(map[string]game.LobbyRoom),
		logger:      logging.CreateLogger("lobby"),
	}
}

// Subscribe registers a connection and immediately sends it the current
// list. A resubscribe replaces the previous registration.
func (r *Registry) Subscribe(sub Subscriber) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers[sub.ID()] = sub
	if !sub.Send(r.listLocked()) {
		delete(r.subscribers, sub.ID())
	}
}

// Unsubscribe removes a connection. Connections that never subscribed are
// ignored.
func (r *Registry) Unsubscribe(connID string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscribers, connID)
}

// SetRoom upserts a room's listing and pushes the new list.
func (r *Registry) SetRoom(entry game.LobbyRoom) {
	if r == nil || entry.RoomCode == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[entry.RoomCode] = entry
	r.broadcastLocked()
}

// RemoveRoom delists a room. Unknown codes do not trigger a push.
func (r *Registry) RemoveRoom(code string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[code]; !ok {
		return
	}
	delete(r.rooms, code)
	r.broadcastLocked()
}

// Rooms returns the current listings sorted by room code. Used by the
// read-only rooms API.
func (r *Registry) Rooms() []game.LobbyRoom {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked().Rooms
}

// SubscriberCount reports how many connections are watching the lobby.
func (r *Registry) SubscriberCount() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers)
}

// The list is always rebuilt and sent whole; clients replace, never merge.
func (r *Registry) listLocked() game.PublicRoomsList {
	rooms := make([]game.LobbyRoom, 0, len(r.rooms))
	for _, entry := range r.rooms {
		rooms = append(rooms, entry)
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].RoomCode < rooms[j].RoomCode
	})
	return game.PublicRoomsList{Type: game.TypePublicRoomsList, Rooms: rooms}
}

func (r *Registry) broadcastLocked() {
	list := r.listLocked()
	for connID, sub := range r.subscribers {
		if !sub.Send(list) {
			delete(r.subscribers, connID)
			r.logger.Debug("dropped dead lobby subscriber", "connectionId", connID)
		}
	}
}
