package room

import (
	"time"

	"wordclash-backend/internal/game"
)

// sendSnapshot replays the room's current phase to a freshly bound
// connection so a rejoining client can rebuild its view.
func (r *Room) sendSnapshot(conn Conn, player *game.Player) {
	switch r.state {
	case game.StateSelecting:
		msg := game.RejoinSelecting{
			Type:        game.TypeRejoinSelecting,
			RoomCode:    r.code,
			PlayerID:    player.ID,
			RemainingMs: remainingMs(r.selectionDeadline),
		}
		if targetID, ok := r.pickTargets[player.ID]; ok {
			if target, ok := r.players[targetID]; ok {
				msg.TargetPlayerName = target.Name
			}
			if a, ok := r.assignments[targetID]; ok && a.PickerID == player.ID {
				msg.SubmittedWord = a.Word
			}
		}
		conn.Send(msg)

	case game.StatePlaying:
		opponents := make([]game.OpponentBoard, 0, len(r.players)-1)
		for _, p := range r.playersByJoinOrder() {
			if p.ID == player.ID {
				continue
			}
			opponents = append(opponents, game.OpponentBoard{
				PlayerID:   p.ID,
				Name:       p.Name,
				Rows:       p.GuessResults,
				GuessCount: p.GuessCount(),
				Finished:   p.Finished,
				Won:        p.Won,
			})
		}
		conn.Send(game.RejoinGame{
			Type:          game.TypeRejoinGame,
			RoomCode:      r.code,
			PlayerID:      player.ID,
			Config:        r.config,
			Guesses:       player.Guesses,
			Results:       player.GuessResults,
			Finished:      player.Finished,
			Won:           player.Won,
			Opponents:     opponents,
			GameElapsedMs: time.Since(r.startedAt).Milliseconds(),
		})

	case game.StateFinished:
		conn.Send(game.RejoinResults{
			Type:     game.TypeRejoinResults,
			RoomCode: r.code,
			PlayerID: player.ID,
			Results:  r.lastResults,
		})

	default:
		conn.Send(game.RejoinWaiting{
			Type:     game.TypeRejoinWaiting,
			RoomCode: r.code,
			PlayerID: player.ID,
			Config:   r.config,
			Players:  r.playerInfos(),
		})
	}
}

func remainingMs(deadline time.Time) int64 {
	ms := time.Until(deadline).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

// RoomSummary is the read-only view served by the HTTP API.
type RoomSummary struct {
	RoomCode    string            `json:"roomCode"`
	State       game.RoomState    `json:"state"`
	Config      game.RoomConfig   `json:"config"`
	PlayerCount int               `json:"playerCount"`
	MaxPlayers  int               `json:"maxPlayers"`
	Players     []game.PlayerInfo `json:"players"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// Summary snapshots the room for the HTTP API. ok is false when the room
// was destroyed before the snapshot ran.
func (r *Room) Summary() (RoomSummary, bool) {
	var s RoomSummary
	err := r.do(func() {
		s = RoomSummary{
			RoomCode:    r.code,
			State:       r.state,
			Config:      r.config,
			PlayerCount: len(r.players),
			MaxPlayers:  r.manager.maxPlayers(),
			Players:     r.playerInfos(),
			CreatedAt:   r.createdAt,
		}
	})
	return s, err == nil
}
