package room

import (
	"context"

	"wordclash-backend/internal/game"
)

// Conn is the transport surface a room needs from a client connection.
// Send must not block: a false return means the connection is dead or
// backed up and its owner will tear it down. Close asks the owner to shut
// the transport, used when a rejoin replaces a live connection.
type Conn interface {
	ID() string
	Send(v interface{}) bool
	Close()
}

// Persistence is the slice of the storage layer rooms write to. Saves are
// fire-and-forget; only the daily-completion precheck is synchronous. A
// nil Persistence disables daily challenges and match-record writes.
type Persistence interface {
	SaveGameRecord(record game.GameRecord)
	SaveDailyCompletion(completion game.DailyCompletion)
	HasCompletedDaily(ctx context.Context, email string, dailyNumber int) (bool, error)
}

// ForcedWordSink receives every guess that bypassed the dictionary check,
// for later word-list curation. Email is empty for guest players.
type ForcedWordSink interface {
	RecordForcedWord(roomCode, playerName, playerEmail, word string)
}
