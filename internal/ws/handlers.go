package ws

import (
	"context"
	"errors"
	"time"

	"wordclash-backend/internal/game"
	"wordclash-backend/internal/lobby"
	"wordclash-backend/internal/logging"
	"wordclash-backend/internal/room"
)

// dailyPrecheckTimeout bounds the store query behind createDailyChallenge.
const dailyPrecheckTimeout = 5 * time.Second

// MessageHandler decodes inbound frames and dispatches them to the room
// manager or the lobby registry. Handlers send nothing on success: the
// room broadcasts its own state changes.
type MessageHandler struct {
	manager *room.Manager
	lobby   *lobby.Registry
	logger  *logging.Logger
}

func NewMessageHandler(manager *room.Manager, lobbyReg *lobby.Registry) *MessageHandler {
	return &MessageHandler{
		manager: manager,
		lobby:   lobbyReg,
		logger:  logging.CreateLogger("ws.handlers"),
	}
}

// Handle processes one inbound frame. Malformed JSON closes the
// connection; every other failure is answered with an error message and
// leaves the connection up.
func (mh *MessageHandler) Handle(client *Client, data []byte) {
	msg, err := game.DecodeClientMessage(data)
	if err != nil {
		var protoErr *game.ProtocolError
		if errors.As(err, &protoErr) {
			mh.sendError(client, protoErr.Code, protoErr.Message)
			return
		}
		mh.logger.Warn("closing connection on malformed frame", "connId", client.ID())
		client.Close()
		return
	}

	switch m := msg.(type) {
	case *game.CreateRoom:
		_, _, err := mh.manager.CreateRoom(client, m.PlayerName, m.PlayerEmail, m.TestWordSeed)
		mh.answer(client, err)

	case *game.CreateDailyChallenge:
		ctx, cancel := context.WithTimeout(context.Background(), dailyPrecheckTimeout)
		defer cancel()
		_, _, err := mh.manager.CreateDailyChallenge(ctx, client, m.PlayerName, m.PlayerEmail, m.DailyNumber, m.Solo)
		mh.answer(client, err)

	case *game.JoinRoom:
		_, _, err := mh.manager.JoinRoom(client, m.RoomCode, m.PlayerName, m.PlayerEmail)
		mh.answer(client, err)

	case *game.Rejoin:
		mh.handleRejoin(client, m)

	case *game.SubscribeLobby:
		mh.lobby.Subscribe(client)

	case *game.UnsubscribeLobby:
		mh.lobby.Unsubscribe(client.ID())

	case *game.SetGameMode:
		mh.inRoom(client, func(r *room.Room, playerID string) error {
			return r.SetGameMode(playerID, game.GameMode(m.Mode))
		})

	case *game.SetWordMode:
		mh.inRoom(client, func(r *room.Room, playerID string) error {
			return r.SetWordMode(playerID, game.WordMode(m.Mode))
		})

	case *game.SetHardMode:
		mh.inRoom(client, func(r *room.Room, playerID string) error {
			return r.SetHardMode(playerID, *m.Enabled)
		})

	case *game.SetRoomVisibility:
		mh.inRoom(client, func(r *room.Room, playerID string) error {
			return r.SetVisibility(playerID, game.Visibility(m.Visibility))
		})

	case *game.SetReady:
		mh.inRoom(client, func(r *room.Room, playerID string) error {
			return r.SetReady(playerID, *m.Ready)
		})

	case *game.StartGame:
		mh.inRoom(client, func(r *room.Room, playerID string) error {
			return r.StartGame(playerID)
		})

	case *game.Guess:
		mh.inRoom(client, func(r *room.Room, playerID string) error {
			return r.Guess(playerID, m.Word, m.Forced)
		})

	case *game.SubmitWord:
		mh.inRoom(client, func(r *room.Room, playerID string) error {
			return r.SubmitWord(playerID, m.Word)
		})

	case *game.PlayAgain:
		mh.inRoom(client, func(r *room.Room, playerID string) error {
			return r.PlayAgain(playerID)
		})

	case *game.LeaveRoom:
		mh.inRoom(client, func(r *room.Room, playerID string) error {
			return r.Leave(playerID)
		})

	default:
		// DecodeClientMessage only returns types listed above.
		mh.logger.Error("unhandled message type", "connId", client.ID())
		mh.sendError(client, "INTERNAL_ERROR", "message not handled")
	}
}

// inRoom resolves the caller's room binding and runs op against it.
func (mh *MessageHandler) inRoom(client *Client, op func(r *room.Room, playerID string) error) {
	r, playerID, ok := mh.manager.RoomFor(client.ID())
	if !ok {
		mh.sendError(client, "NOT_IN_ROOM", "join a room first")
		return
	}
	mh.answer(client, op(r, playerID))
}

// handleRejoin answers failures with rejoinFailed rather than error so the
// client can fall back to a fresh join.
func (mh *MessageHandler) handleRejoin(client *Client, m *game.Rejoin) {
	_, err := mh.manager.Rejoin(client, m.RoomCode, m.PlayerID)
	switch {
	case err == nil:
	case errors.Is(err, room.ErrRoomNotFound):
		client.Send(game.RejoinFailed{Type: game.TypeRejoinFailed, Reason: "room no longer exists"})
	case errors.Is(err, room.ErrPlayerNotFound):
		client.Send(game.RejoinFailed{Type: game.TypeRejoinFailed, Reason: "player was removed from the room"})
	default:
		mh.answer(client, err)
	}
}

// answer translates an operation error to the wire. nil sends nothing.
func (mh *MessageHandler) answer(client *Client, err error) {
	if err == nil {
		return
	}

	// Hard-mode rejections ride their own message so clients can surface
	// the kept-clue reason inline.
	var hardErr *game.HardModeError
	if errors.As(err, &hardErr) {
		client.Send(game.HardModeViolation{
			Type:   game.TypeHardModeViolation,
			Reason: hardErr.Reason,
		})
		return
	}

	code, ok := errorCode(err)
	if !ok {
		mh.logger.Error("operation failed", "connId", client.ID(), "error", err.Error())
		logging.CaptureError(context.Background(), err, map[string]string{"component": "ws.handlers"}, nil)
		mh.sendError(client, "INTERNAL_ERROR", "something went wrong")
		return
	}
	mh.sendError(client, code, err.Error())
}

func (mh *MessageHandler) sendError(client *Client, code, message string) {
	client.Send(game.ErrorMessage{Type: game.TypeError, Code: code, Message: message})
}

// errorCode maps domain sentinels to client-visible codes. Unlisted errors
// are internal.
func errorCode(err error) (string, bool) {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return "ROOM_NOT_FOUND", true
	case errors.Is(err, room.ErrRoomFull):
		return "ROOM_FULL", true
	case errors.Is(err, room.ErrGameInProgress):
		return "GAME_IN_PROGRESS", true
	case errors.Is(err, room.ErrNotHost):
		return "NOT_HOST", true
	case errors.Is(err, room.ErrNotAllReady):
		return "NOT_ALL_READY", true
	case errors.Is(err, room.ErrNotEnoughPlayers):
		return "NOT_ENOUGH_PLAYERS", true
	case errors.Is(err, room.ErrGameAlreadyStarted):
		return "GAME_ALREADY_STARTED", true
	case errors.Is(err, room.ErrGameNotActive):
		return "GAME_NOT_ACTIVE", true
	case errors.Is(err, room.ErrAlreadyFinished):
		return "ALREADY_FINISHED", true
	case errors.Is(err, room.ErrNotInWordList):
		return "NOT_IN_WORD_LIST", true
	case errors.Is(err, room.ErrNotInSelection):
		return "NOT_IN_SELECTION", true
	case errors.Is(err, room.ErrAlreadyInRoom):
		return "ALREADY_IN_ROOM", true
	case errors.Is(err, room.ErrNotInRoom), errors.Is(err, room.ErrPlayerNotFound):
		return "NOT_IN_ROOM", true
	case errors.Is(err, room.ErrInvalidPlayerName):
		return "INVALID_PLAYER_NAME", true
	case errors.Is(err, room.ErrEmailRequired):
		return "EMAIL_REQUIRED", true
	case errors.Is(err, room.ErrInvalidDailyNumber):
		return "INVALID_DAILY_NUMBER", true
	case errors.Is(err, room.ErrDailyAlreadyCompleted):
		return "DAILY_ALREADY_COMPLETED", true
	case errors.Is(err, room.ErrPersistenceUnavailable):
		return "PERSISTENCE_UNAVAILABLE", true
	case errors.Is(err, room.ErrTooManyRooms):
		return "ROOM_LIMIT_REACHED", true
	case errors.Is(err, game.ErrInvalidWordLength):
		return "INVALID_WORD_LENGTH", true
	case errors.Is(err, game.ErrInvalidCharacters):
		return "INVALID_CHARACTERS", true
	default:
		return "", false
	}
}
