package game

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies a wire message in the required "type" field.
type MessageType string

// Client to server message types.
const (
	TypeCreateRoom           MessageType = "createRoom"
	TypeCreateDailyChallenge MessageType = "createDailyChallenge"
	TypeJoinRoom             MessageType = "joinRoom"
	TypeRejoin               MessageType = "rejoin"
	TypeSubscribeLobby       MessageType = "subscribeLobby"
	TypeUnsubscribeLobby     MessageType = "unsubscribeLobby"
	TypeSetGameMode          MessageType = "setGameMode"
	TypeSetWordMode          MessageType = "setWordMode"
	TypeSetHardMode          MessageType = "setHardMode"
	TypeSetRoomVisibility    MessageType = "setRoomVisibility"
	TypeSetReady             MessageType = "setReady"
	TypeStartGame            MessageType = "startGame"
	TypeGuess                MessageType = "guess"
	TypeSubmitWord           MessageType = "submitWord"
	TypePlayAgain            MessageType = "playAgain"
	TypeLeaveRoom            MessageType = "leaveRoom"
)

// Server to client message types.
const (
	TypeRoomCreated             MessageType = "roomCreated"
	TypeRoomJoined              MessageType = "roomJoined"
	TypePlayerJoined            MessageType = "playerJoined"
	TypePlayerLeft              MessageType = "playerLeft"
	TypeBecameCreator           MessageType = "becameCreator"
	TypeGameModeChanged         MessageType = "gameModeChanged"
	TypeWordModeChanged         MessageType = "wordModeChanged"
	TypeHardModeChanged         MessageType = "hardModeChanged"
	TypeRoomVisibilityChanged   MessageType = "roomVisibilityChanged"
	TypePlayerReadyChanged      MessageType = "playerReadyChanged"
	TypeAllPlayersReadyStatus   MessageType = "allPlayersReadyStatus"
	TypeCountdown               MessageType = "countdown"
	TypeGameStarted             MessageType = "gameStarted"
	TypeTimerSync               MessageType = "timerSync"
	TypeGuessResult             MessageType = "guessResult"
	TypeOpponentGuess           MessageType = "opponentGuess"
	TypeHardModeViolation       MessageType = "hardModeViolation"
	TypeGameEnded               MessageType = "gameEnded"
	TypeReturnedToLobby         MessageType = "returnedToLobby"
	TypeSelectionPhaseStarted   MessageType = "selectionPhaseStarted"
	TypeWordValidation          MessageType = "wordValidation"
	TypeWordSubmitted           MessageType = "wordSubmitted"
	TypeSelectionProgress       MessageType = "selectionProgress"
	TypeAllWordsSubmitted       MessageType = "allWordsSubmitted"
	TypeSelectionTimeout        MessageType = "selectionTimeout"
	TypePublicRoomsList         MessageType = "publicRoomsList"
	TypePlayerDisconnected      MessageType = "playerDisconnected"
	TypePlayerReconnected       MessageType = "playerReconnected"
	TypeReplacedByNewConnection MessageType = "replacedByNewConnection"
	TypeRejoinWaiting           MessageType = "rejoinWaiting"
	TypeRejoinSelecting         MessageType = "rejoinSelecting"
	TypeRejoinGame              MessageType = "rejoinGame"
	TypeRejoinResults           MessageType = "rejoinResults"
	TypeRejoinFailed            MessageType = "rejoinFailed"
	TypeError                   MessageType = "error"
)

// ErrMalformedJSON marks an unparseable frame. The transport closes the
// connection on it instead of answering with an error message.
var ErrMalformedJSON = errors.New("malformed json message")

// ProtocolError is a shape-level rejection of an otherwise parseable
// message: unknown type, missing required field, wrong field type. It maps
// onto the error wire message and never mutates state.
type ProtocolError struct {
	Code    string
	Message string
}

func (e *ProtocolError) Error() string {
	return e.Message
}

// ClientMessage is the decoded form of one inbound frame. The concrete type
// identifies the operation; handlers dispatch with a type switch.
type ClientMessage interface {
	isClientMessage()
}

type CreateRoom struct {
	PlayerName   string `json:"playerName"`
	PlayerEmail  string `json:"playerEmail"`
	TestWordSeed string `json:"testWordSeed"`
}

type CreateDailyChallenge struct {
	PlayerName  string `json:"playerName"`
	PlayerEmail string `json:"playerEmail"`
	DailyNumber int    `json:"dailyNumber"`
	Solo        bool   `json:"solo"`
}

type JoinRoom struct {
	RoomCode    string `json:"roomCode"`
	PlayerName  string `json:"playerName"`
	PlayerEmail string `json:"playerEmail"`
}

type Rejoin struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

type SubscribeLobby struct{}

type UnsubscribeLobby struct{}

type SetGameMode struct {
	Mode string `json:"mode"`
}

type SetWordMode struct {
	Mode string `json:"mode"`
}

type SetHardMode struct {
	Enabled *bool `json:"enabled"`
}

type SetRoomVisibility struct {
	Visibility string `json:"visibility"`
}

type SetReady struct {
	Ready *bool `json:"ready"`
}

type StartGame struct{}

type Guess struct {
	Word   string `json:"word"`
	Forced bool   `json:"forced"`
}

type SubmitWord struct {
	Word string `json:"word"`
}

type PlayAgain struct{}

type LeaveRoom struct{}

func (CreateRoom) isClientMessage()           {}
func (CreateDailyChallenge) isClientMessage() {}
func (JoinRoom) isClientMessage()             {}
func (Rejoin) isClientMessage()               {}
func (SubscribeLobby) isClientMessage()       {}
func (UnsubscribeLobby) isClientMessage()     {}
func (SetGameMode) isClientMessage()          {}
func (SetWordMode) isClientMessage()          {}
func (SetHardMode) isClientMessage()          {}
func (SetRoomVisibility) isClientMessage()    {}
func (SetReady) isClientMessage()             {}
func (StartGame) isClientMessage()            {}
func (Guess) isClientMessage()                {}
func (SubmitWord) isClientMessage()           {}
func (PlayAgain) isClientMessage()            {}
func (LeaveRoom) isClientMessage()            {}

// DecodeClientMessage parses one inbound frame: peek the type
// discriminator, unmarshal the matching struct, then check required
// fields. Unknown extra fields are tolerated. Returns ErrMalformedJSON for
// unparseable frames and *ProtocolError for shape violations.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var envelope struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, ErrMalformedJSON
	}
	if envelope.Type == "" {
		return nil, &ProtocolError{Code: "INVALID_MESSAGE", Message: "message requires a type field"}
	}

	decode := func(v ClientMessage) (ClientMessage, error) {
		if err := json.Unmarshal(data, v); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) && typeErr.Field != "" {
				return nil, &ProtocolError{
					Code:    "INVALID_MESSAGE",
					Message: fmt.Sprintf("field %q has the wrong type", typeErr.Field),
				}
			}
			return nil, ErrMalformedJSON
		}
		return v, nil
	}

	var msg ClientMessage
	var err error
	switch envelope.Type {
	case TypeCreateRoom:
		msg, err = decode(&CreateRoom{})
	case TypeCreateDailyChallenge:
		msg, err = decode(&CreateDailyChallenge{})
	case TypeJoinRoom:
		msg, err = decode(&JoinRoom{})
	case TypeRejoin:
		msg, err = decode(&Rejoin{})
	case TypeSubscribeLobby:
		msg = &SubscribeLobby{}
	case TypeUnsubscribeLobby:
		msg = &UnsubscribeLobby{}
	case TypeSetGameMode:
		msg, err = decode(&SetGameMode{})
	case TypeSetWordMode:
		msg, err = decode(&SetWordMode{})
	case TypeSetHardMode:
		msg, err = decode(&SetHardMode{})
	case TypeSetRoomVisibility:
		msg, err = decode(&SetRoomVisibility{})
	case TypeSetReady:
		msg, err = decode(&SetReady{})
	case TypeStartGame:
		msg = &StartGame{}
	case TypeGuess:
		msg, err = decode(&Guess{})
	case TypeSubmitWord:
		msg, err = decode(&SubmitWord{})
	case TypePlayAgain:
		msg = &PlayAgain{}
	case TypeLeaveRoom:
		msg = &LeaveRoom{}
	default:
		return nil, &ProtocolError{
			Code:    "UNKNOWN_MESSAGE_TYPE",
			Message: fmt.Sprintf("unknown message type %q", envelope.Type),
		}
	}
	if err != nil {
		return nil, err
	}
	if err := validateClientMessage(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func validateClientMessage(msg ClientMessage) error {
	required := func(field, value string, msgType MessageType) error {
		if value == "" {
			return &ProtocolError{
				Code:    "INVALID_MESSAGE",
				Message: fmt.Sprintf("%s requires %s", msgType, field),
			}
		}
		return nil
	}

	switch m := msg.(type) {
	case *CreateRoom:
		return required("playerName", m.PlayerName, TypeCreateRoom)
	case *CreateDailyChallenge:
		if err := required("playerName", m.PlayerName, TypeCreateDailyChallenge); err != nil {
			return err
		}
		if m.DailyNumber < 1 {
			return &ProtocolError{Code: "INVALID_MESSAGE", Message: "createDailyChallenge requires dailyNumber"}
		}
		return nil
	case *JoinRoom:
		if err := required("roomCode", m.RoomCode, TypeJoinRoom); err != nil {
			return err
		}
		return required("playerName", m.PlayerName, TypeJoinRoom)
	case *Rejoin:
		if err := required("roomCode", m.RoomCode, TypeRejoin); err != nil {
			return err
		}
		return required("playerId", m.PlayerID, TypeRejoin)
	case *SetGameMode:
		if err := required("mode", m.Mode, TypeSetGameMode); err != nil {
			return err
		}
		if !ValidGameMode(m.Mode) {
			return &ProtocolError{Code: "INVALID_MESSAGE", Message: fmt.Sprintf("unknown game mode %q", m.Mode)}
		}
		return nil
	case *SetWordMode:
		if err := required("mode", m.Mode, TypeSetWordMode); err != nil {
			return err
		}
		if !ValidWordMode(m.Mode) {
			return &ProtocolError{Code: "INVALID_MESSAGE", Message: fmt.Sprintf("unknown word mode %q", m.Mode)}
		}
		return nil
	case *SetHardMode:
		if m.Enabled == nil {
			return &ProtocolError{Code: "INVALID_MESSAGE", Message: "setHardMode requires enabled"}
		}
		return nil
	case *SetRoomVisibility:
		if err := required("visibility", m.Visibility, TypeSetRoomVisibility); err != nil {
			return err
		}
		if !ValidVisibility(m.Visibility) {
			return &ProtocolError{Code: "INVALID_MESSAGE", Message: fmt.Sprintf("unknown visibility %q", m.Visibility)}
		}
		return nil
	case *SetReady:
		if m.Ready == nil {
			return &ProtocolError{Code: "INVALID_MESSAGE", Message: "setReady requires ready"}
		}
		return nil
	case *Guess:
		return required("word", m.Word, TypeGuess)
	case *SubmitWord:
		return required("word", m.Word, TypeSubmitWord)
	}
	return nil
}

// RoomConfig is the client-visible room configuration.
type RoomConfig struct {
	GameMode   GameMode   `json:"gameMode"`
	WordMode   WordMode   `json:"wordMode"`
	HardMode   bool       `json:"hardMode"`
	Visibility Visibility `json:"visibility"`
}

// PlayerInfo is the client-safe view of a player in room broadcasts.
type PlayerInfo struct {
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
	IsHost    bool   `json:"isHost"`
	JoinOrder int    `json:"joinOrder"`
}

// LobbyRoom is one entry of the public rooms listing.
type LobbyRoom struct {
	RoomCode    string   `json:"roomCode"`
	HostName    string   `json:"hostName"`
	PlayerCount int      `json:"playerCount"`
	MaxPlayers  int      `json:"maxPlayers"`
	GameMode    GameMode `json:"gameMode"`
	WordMode    WordMode `json:"wordMode"`
}

// OpponentBoard carries an opponent's color-only guess history for rejoin
// snapshots. Letters never leave the server for other players' boards.
type OpponentBoard struct {
	PlayerID   string           `json:"playerId"`
	Name       string           `json:"name"`
	Rows       [][]LetterResult `json:"rows"`
	GuessCount int              `json:"guessCount"`
	Finished   bool             `json:"finished"`
	Won        bool             `json:"won"`
}

// PlayerElapsed is one player's clock entry in a timerSync broadcast.
// Finished players report their frozen finish time.
type PlayerElapsed struct {
	PlayerID  string `json:"playerId"`
	ElapsedMs int64  `json:"elapsedMs"`
	Finished  bool   `json:"finished"`
}

type RoomCreated struct {
	Type        MessageType `json:"type"`
	RoomCode    string      `json:"roomCode"`
	PlayerID    string      `json:"playerId"`
	Config      RoomConfig  `json:"config"`
	Solo        bool        `json:"solo,omitempty"`
	DailyNumber int         `json:"dailyNumber,omitempty"`
}

type RoomJoined struct {
	Type     MessageType  `json:"type"`
	RoomCode string       `json:"roomCode"`
	PlayerID string       `json:"playerId"`
	Config   RoomConfig   `json:"config"`
	Players  []PlayerInfo `json:"players"`
}

type PlayerJoined struct {
	Type   MessageType `json:"type"`
	Player PlayerInfo  `json:"player"`
}

type PlayerLeft struct {
	Type       MessageType `json:"type"`
	PlayerID   string      `json:"playerId"`
	PlayerName string      `json:"playerName"`
}

type BecameCreator struct {
	Type       MessageType `json:"type"`
	PlayerID   string      `json:"playerId"`
	PlayerName string      `json:"playerName"`
}

type GameModeChanged struct {
	Type     MessageType `json:"type"`
	GameMode GameMode    `json:"gameMode"`
}

type WordModeChanged struct {
	Type     MessageType `json:"type"`
	WordMode WordMode    `json:"wordMode"`
}

type HardModeChanged struct {
	Type     MessageType `json:"type"`
	HardMode bool        `json:"hardMode"`
}

type RoomVisibilityChanged struct {
	Type       MessageType `json:"type"`
	Visibility Visibility  `json:"visibility"`
}

type PlayerReadyChanged struct {
	Type     MessageType `json:"type"`
	PlayerID string      `json:"playerId"`
	Ready    bool        `json:"ready"`
}

type AllPlayersReadyStatus struct {
	Type       MessageType `json:"type"`
	AllReady   bool        `json:"allReady"`
	ReadyCount int         `json:"readyCount"`
	TotalCount int         `json:"totalCount"`
}

type Countdown struct {
	Type  MessageType `json:"type"`
	Count int         `json:"count"`
}

type GameStarted struct {
	Type        MessageType `json:"type"`
	GameMode    GameMode    `json:"gameMode"`
	WordMode    WordMode    `json:"wordMode"`
	HardMode    bool        `json:"hardMode"`
	WordLength  int         `json:"wordLength"`
	MaxGuesses  int         `json:"maxGuesses"`
	DailyNumber int         `json:"dailyNumber,omitempty"`
}

type TimerSync struct {
	Type          MessageType     `json:"type"`
	GameElapsedMs int64           `json:"gameElapsedMs"`
	Players       []PlayerElapsed `json:"players"`
}

type GuessResult struct {
	Type       MessageType    `json:"type"`
	Word       string         `json:"word"`
	Results    []LetterResult `json:"results"`
	GuessCount int            `json:"guessCount"`
	Finished   bool           `json:"finished"`
	Won        bool           `json:"won"`
	Score      int            `json:"score"`
}

type OpponentGuess struct {
	Type       MessageType    `json:"type"`
	PlayerID   string         `json:"playerId"`
	PlayerName string         `json:"playerName"`
	Results    []LetterResult `json:"results"`
	GuessCount int            `json:"guessCount"`
	Finished   bool           `json:"finished"`
	Won        bool           `json:"won"`
}

type HardModeViolation struct {
	Type   MessageType `json:"type"`
	Reason string      `json:"reason"`
}

type GameEnded struct {
	Type     MessageType    `json:"type"`
	GameMode GameMode       `json:"gameMode"`
	WordMode WordMode       `json:"wordMode"`
	Results  []PlayerResult `json:"results"`
}

type ReturnedToLobby struct {
	Type    MessageType  `json:"type"`
	Config  RoomConfig   `json:"config"`
	Players []PlayerInfo `json:"players"`
}

type SelectionPhaseStarted struct {
	Type             MessageType `json:"type"`
	TargetPlayerID   string      `json:"targetPlayerId"`
	TargetPlayerName string      `json:"targetPlayerName"`
	TimeoutSeconds   int         `json:"timeoutSeconds"`
}

type WordValidation struct {
	Type   MessageType `json:"type"`
	Valid  bool        `json:"valid"`
	Reason string      `json:"reason,omitempty"`
}

type WordSubmitted struct {
	Type MessageType `json:"type"`
	Word string      `json:"word"`
}

type SelectionProgress struct {
	Type           MessageType `json:"type"`
	SubmittedCount int         `json:"submittedCount"`
	TotalCount     int         `json:"totalCount"`
}

type AllWordsSubmitted struct {
	Type MessageType `json:"type"`
}

type SelectionTimeout struct {
	Type        MessageType `json:"type"`
	ForcedCount int         `json:"forcedCount"`
}

type PublicRoomsList struct {
	Type  MessageType `json:"type"`
	Rooms []LobbyRoom `json:"rooms"`
}

type PlayerDisconnected struct {
	Type         MessageType `json:"type"`
	PlayerID     string      `json:"playerId"`
	PlayerName   string      `json:"playerName"`
	GraceSeconds int         `json:"graceSeconds"`
}

type PlayerReconnected struct {
	Type       MessageType `json:"type"`
	PlayerID   string      `json:"playerId"`
	PlayerName string      `json:"playerName"`
}

type ReplacedByNewConnection struct {
	Type MessageType `json:"type"`
}

type RejoinWaiting struct {
	Type     MessageType  `json:"type"`
	RoomCode string       `json:"roomCode"`
	PlayerID string       `json:"playerId"`
	Config   RoomConfig   `json:"config"`
	Players  []PlayerInfo `json:"players"`
}

type RejoinSelecting struct {
	Type             MessageType `json:"type"`
	RoomCode         string      `json:"roomCode"`
	PlayerID         string      `json:"playerId"`
	TargetPlayerName string      `json:"targetPlayerName"`
	SubmittedWord    string      `json:"submittedWord,omitempty"`
	RemainingMs      int64       `json:"remainingMs"`
}

type RejoinGame struct {
	Type          MessageType      `json:"type"`
	RoomCode      string           `json:"roomCode"`
	PlayerID      string           `json:"playerId"`
	Config        RoomConfig       `json:"config"`
	Guesses       []string         `json:"guesses"`
	Results       [][]LetterResult `json:"results"`
	Finished      bool             `json:"finished"`
	Won           bool             `json:"won"`
	Opponents     []OpponentBoard  `json:"opponents"`
	GameElapsedMs int64            `json:"gameElapsedMs"`
}

type RejoinResults struct {
	Type     MessageType    `json:"type"`
	RoomCode string         `json:"roomCode"`
	PlayerID string         `json:"playerId"`
	Results  []PlayerResult `json:"results"`
}

type RejoinFailed struct {
	Type   MessageType `json:"type"`
	Reason string      `json:"reason"`
}

type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}
