package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"wordclash-backend/internal/game"
	"wordclash-backend/internal/lobby"
	"wordclash-backend/internal/logging"
	"wordclash-backend/internal/room"
)

// RoomHandler serves read-only room views over HTTP. Rooms are created and
// mutated exclusively over the WebSocket protocol; these endpoints exist for
// lobby browsers and external monitoring.
type RoomHandler struct {
	manager *room.Manager
	lobby   *lobby.Registry
	logger  *logging.Logger
}

func NewRoomHandler(manager *room.Manager, lobbyReg *lobby.Registry) *RoomHandler {
	return &RoomHandler{
		manager: manager,
		lobby:   lobbyReg,
		logger:  logging.CreateLogger("api.rooms"),
	}
}

// RoomListResponse is the body of GET /api/rooms.
type RoomListResponse struct {
	Rooms []game.LobbyRoom `json:"rooms"`
	Count int              `json:"count"`
}

// ErrorResponse is the standard API error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ListRooms handles GET /api/rooms. Only public rooms open for joining are
// listed, the same view lobby subscribers receive over WebSocket.
func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.lobby.Rooms()
	writeJSON(w, http.StatusOK, RoomListResponse{Rooms: rooms, Count: len(rooms)})
}

// GetRoom handles GET /api/rooms/{code}. The summary never includes target
// words or player emails.
func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(mux.Vars(r)["code"]))
	if len(code) != room.CodeLength {
		writeError(w, http.StatusBadRequest, "INVALID_ROOM_CODE", "room code must be 6 characters")
		return
	}

	gameRoom, ok := h.manager.Room(code)
	if !ok {
		writeError(w, http.StatusNotFound, "ROOM_NOT_FOUND", "room not found")
		return
	}
	summary, ok := gameRoom.Summary()
	if !ok {
		// Destroyed between lookup and snapshot.
		writeError(w, http.StatusNotFound, "ROOM_NOT_FOUND", "room not found")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// RegisterRoutes attaches the room endpoints to the router.
func (h *RoomHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/rooms", h.ListRooms).Methods("GET")
	router.HandleFunc("/api/rooms/{code}", h.GetRoom).Methods("GET")
}

var apiLogger = logging.CreateLogger("api")

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		apiLogger.Error("encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Code:    code,
		Message: message,
	})
}
