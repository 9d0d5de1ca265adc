package room

import "errors"

// Room operation failures. The transport layer maps each sentinel to its
// wire error code in a single switch; the message text here is what
// clients see.
var (
	ErrRoomNotFound           = errors.New("room not found")
	ErrRoomFull               = errors.New("room is full")
	ErrGameInProgress         = errors.New("game is already in progress")
	ErrNotHost                = errors.New("only the room creator can do that")
	ErrNotAllReady            = errors.New("not all players are ready")
	ErrNotEnoughPlayers       = errors.New("need at least 2 players")
	ErrGameAlreadyStarted     = errors.New("game already started")
	ErrGameNotActive          = errors.New("no active game")
	ErrAlreadyFinished        = errors.New("you already finished this game")
	ErrNotInWordList          = errors.New("word is not in the word list")
	ErrNotInSelection         = errors.New("no word selection in progress")
	ErrAlreadyInRoom          = errors.New("connection is already in a room")
	ErrNotInRoom              = errors.New("connection is not in a room")
	ErrPlayerNotFound         = errors.New("player not found in room")
	ErrInvalidPlayerName      = errors.New("player name must be 1-24 characters")
	ErrEmailRequired          = errors.New("daily challenges require an email address")
	ErrInvalidDailyNumber     = errors.New("daily number is out of range")
	ErrDailyAlreadyCompleted  = errors.New("daily challenge already completed")
	ErrPersistenceUnavailable = errors.New("daily challenges are unavailable right now")
	ErrTooManyRooms           = errors.New("server is at room capacity")
)
