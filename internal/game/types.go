package game

import (
	"time"
)

// Core gameplay constants.
const (
	WordLength = 5
	MaxGuesses = 6
	MaxPlayers = 4
)

// RoomState represents the lifecycle state of a room.
type RoomState string

const (
	StateWaiting   RoomState = "waiting"
	StateSelecting RoomState = "selecting"
	StatePlaying   RoomState = "playing"
	StateFinished  RoomState = "finished"
)

// GameMode controls whether finished games are scored.
type GameMode string

const (
	ModeCasual      GameMode = "casual"
	ModeCompetitive GameMode = "competitive"
)

// WordMode controls how target words are chosen at game start.
type WordMode string

const (
	WordModeDaily    WordMode = "daily"
	WordModeRandom   WordMode = "random"
	WordModeSabotage WordMode = "sabotage"
)

// Visibility controls whether a waiting room appears in the public lobby.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// LetterResult is the per-letter feedback for a guess.
type LetterResult string

const (
	LetterCorrect LetterResult = "correct"
	LetterPresent LetterResult = "present"
	LetterAbsent  LetterResult = "absent"
)

// ValidGameMode reports whether s is a recognized game mode value.
func ValidGameMode(s string) bool {
	return s == string(ModeCasual) || s == string(ModeCompetitive)
}

// ValidWordMode reports whether s is a recognized word mode value.
func ValidWordMode(s string) bool {
	return s == string(WordModeDaily) || s == string(WordModeRandom) || s == string(WordModeSabotage)
}

// ValidVisibility reports whether s is a recognized visibility value.
func ValidVisibility(s string) bool {
	return s == string(VisibilityPublic) || s == string(VisibilityPrivate)
}

// Player holds one participant's identity and match-local state. A Player
// is owned by exactly one room and is only touched on that room's executor,
// so it carries no lock. Players reference their room through the manager
// index, never by pointer.
type Player struct {
	ID             string
	Name           string
	Email          string
	Ready          bool
	Connected      bool
	JoinOrder      int
	DisconnectedAt time.Time

	Guesses      []string
	GuessResults [][]LetterResult
	Finished     bool
	Won          bool
	FinishTime   time.Duration
	Score        int
}

// ResetMatchState clears all per-match fields when a room returns to
// waiting. Identity, readiness and connection state are left alone.
func (p *Player) ResetMatchState() {
	p.Guesses = nil
	p.GuessResults = nil
	p.Finished = false
	p.Won = false
	p.FinishTime = 0
	p.Score = 0
}

// GuessCount returns the number of accepted guesses so far.
func (p *Player) GuessCount() int {
	return len(p.Guesses)
}

// WordAssignment records a sabotage pick: the word one player chose for
// another. Keyed by the target player's id in the room's assignment map.
type WordAssignment struct {
	Word        string
	PickerID    string
	PickerName  string
	SubmittedAt time.Time
	Forced      bool
}

// PlayerResult is one row of the end-of-game summary, revealed to all
// players and persisted with the game record. Email rides along for
// persistence only and never serializes onto the wire.
type PlayerResult struct {
	PlayerID   string `json:"playerId"`
	Name       string `json:"name"`
	Email      string `json:"-"`
	Won        bool   `json:"won"`
	GuessCount int    `json:"guessCount"`
	TimeMs     int64  `json:"timeMs"`
	Score      int    `json:"score"`
	Position   int    `json:"position"`
	TargetWord string `json:"targetWord"`
}

// GameRecord is the persisted summary of one finished game.
type GameRecord struct {
	GameID     string
	RoomCode   string
	GameMode   GameMode
	WordMode   WordMode
	HardMode   bool
	TargetWord string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []PlayerResult
}

// DailyCompletion records one player's scored attempt at a daily challenge.
// At most one row exists per (email, daily number) pair.
type DailyCompletion struct {
	Email       string
	DailyNumber int
	Won         bool
	GuessCount  int
	TimeMs      int64
	Score       int
}
