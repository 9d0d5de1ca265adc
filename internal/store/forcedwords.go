package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"wordclash-backend/internal/logging"
)

// ForcedWordEntry is one NDJSON line in the forced-word audit log, written
// for every guess that bypassed the dictionary check.
type ForcedWordEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	RoomCode    string    `json:"roomCode"`
	PlayerName  string    `json:"playerName"`
	PlayerEmail string    `json:"playerEmail,omitempty"`
	Word        string    `json:"word"`
}

// ForcedWordLog appends entries to a newline-delimited JSON file. All
// methods are nil-safe so rooms can log unconditionally.
type ForcedWordLog struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
	logger  *logging.Logger
}

func OpenForcedWordLog(path string) (*ForcedWordLog, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening forced word log %s: %w", path, err)
	}
	return &ForcedWordLog{
		file:    file,
		encoder: json.NewEncoder(file),
		logger:  logging.CreateLogger("store.forcedwords"),
	}, nil
}

// Record appends one entry. The timestamp defaults to now when unset.
func (l *ForcedWordLog) Record(entry ForcedWordEntry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.encoder.Encode(entry); err != nil {
		l.logger.Error("writing forced word entry",
			"roomCode", entry.RoomCode,
			"player", entry.PlayerName,
			"error", err.Error())
	}
}

// RecordForcedWord adapts Record to the flat argument list rooms use.
func (l *ForcedWordLog) RecordForcedWord(roomCode, playerName, playerEmail, word string) {
	l.Record(ForcedWordEntry{
		RoomCode:    roomCode,
		PlayerName:  playerName,
		PlayerEmail: playerEmail,
		Word:        word,
	})
}

func (l *ForcedWordLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
