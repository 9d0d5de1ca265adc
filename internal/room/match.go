package room

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"wordclash-backend/internal/game"
)

// StartGame begins the start countdown. Host only, waiting only; gates
// require every player ready and at least two connected unless solo.
func (r *Room) StartGame(playerID string) error {
	return r.doErr(func() error { return r.startGame(playerID, false) })
}

// startGame runs on the executor. auto marks the solo self-start, which
// skips the host and readiness gates.
func (r *Room) startGame(playerID string, auto bool) error {
	if _, ok := r.players[playerID]; !ok {
		return ErrPlayerNotFound
	}
	if r.countdownTimer != nil || r.state != game.StateWaiting {
		return ErrGameAlreadyStarted
	}
	if !auto && playerID != r.hostID {
		return ErrNotHost
	}
	if !r.solo {
		if r.connectedCount() < 2 {
			return ErrNotEnoughPlayers
		}
		for _, p := range r.players {
			if !p.Ready {
				return ErrNotAllReady
			}
		}
	}
	r.beginCountdown()
	return nil
}

func (r *Room) beginCountdown() {
	r.countdownGen++
	gen := r.countdownGen
	r.countdownLeft = r.manager.gameCfg.CountdownSeconds
	r.countdownTimer = r.tickFunc(time.Second, func() { r.countdownTick(gen) })
	r.touch()
	r.notifyLobby()
	r.logger.Info("countdown started", "seconds", r.countdownLeft)
}

// countdownTick broadcasts the remaining count, then completes the start
// once the count is exhausted. Stale ticks from a stopped countdown are
// defused by the generation check.
func (r *Room) countdownTick(gen uint64) {
	if gen != r.countdownGen || r.countdownTimer == nil {
		return
	}
	r.broadcast(game.Countdown{Type: game.TypeCountdown, Count: r.countdownLeft})
	r.countdownLeft--
	if r.countdownLeft <= 0 {
		r.countdownTimer.Stop()
		r.countdownTimer = nil
		r.countdownGen++
		r.completeCountdown()
	}
}

func (r *Room) abortCountdown(reason string) {
	if r.countdownTimer == nil {
		return
	}
	r.countdownTimer.Stop()
	r.countdownTimer = nil
	r.countdownGen++
	r.notifyLobby()
	r.logger.Info("countdown aborted", "reason", reason)
}

func (r *Room) completeCountdown() {
	if r.config.WordMode == game.WordModeSabotage && len(r.players) >= 2 {
		r.enterSelecting()
		return
	}
	r.enterPlaying()
}

// enterSelecting deranges the players so nobody picks their own word,
// tells each picker who they are choosing for, and arms the deadline.
func (r *Room) enterSelecting() {
	r.state = game.StateSelecting
	players := r.playersByJoinOrder()
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	r.pickTargets = game.DerangedAssignment(ids, r.rng)
	r.assignments = make(map[string]game.WordAssignment)

	timeout := r.manager.gameCfg.SelectionTimeout
	r.selectionDeadline = time.Now().Add(timeout)
	r.selectionGen++
	gen := r.selectionGen
	r.selectionTimer = r.afterFunc(timeout, func() { r.selectionDeadlineHit(gen) })

	for pickerID, targetID := range r.pickTargets {
		target := r.players[targetID]
		r.sendTo(pickerID, game.SelectionPhaseStarted{
			Type:             game.TypeSelectionPhaseStarted,
			TargetPlayerID:   targetID,
			TargetPlayerName: target.Name,
			TimeoutSeconds:   int(timeout / time.Second),
		})
	}
	r.touch()
	r.notifyLobby()
	r.logger.Info("selection phase started", "players", len(ids),
		"timeoutSeconds", int(timeout/time.Second))
}

// SubmitWord records a sabotage word choice for the submitter's target.
// Validation failures are answered with wordValidation, not an error:
// the picker keeps trying until the deadline.
func (r *Room) SubmitWord(playerID, word string) error {
	return r.doErr(func() error { return r.submitWord(playerID, word) })
}

func (r *Room) submitWord(playerID, word string) error {
	player, ok := r.players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	if r.state != game.StateSelecting {
		return ErrNotInSelection
	}
	targetID, picking := r.pickTargets[playerID]
	if !picking {
		return ErrNotInSelection
	}

	normalized, err := game.NormalizeGuess(word)
	if err != nil {
		r.sendTo(playerID, game.WordValidation{
			Type:   game.TypeWordValidation,
			Valid:  false,
			Reason: err.Error(),
		})
		return nil
	}
	if !r.manager.dict.IsValidAnswer(normalized) {
		r.sendTo(playerID, game.WordValidation{
			Type:   game.TypeWordValidation,
			Valid:  false,
			Reason: "word is not in the answer list",
		})
		return nil
	}

	// Resubmission overwrites: the last valid word wins.
	r.assignments[targetID] = game.WordAssignment{
		Word:        normalized,
		PickerID:    playerID,
		PickerName:  player.Name,
		SubmittedAt: time.Now(),
	}
	r.touch()
	r.sendTo(playerID, game.WordSubmitted{Type: game.TypeWordSubmitted, Word: normalized})

	submitted, total := r.selectionCounts()
	r.broadcast(game.SelectionProgress{
		Type:           game.TypeSelectionProgress,
		SubmittedCount: submitted,
		TotalCount:     total,
	})
	r.completeSelectionIfDone()
	return nil
}

func (r *Room) selectionCounts() (submitted, total int) {
	for _, targetID := range r.pickTargets {
		if _, ok := r.assignments[targetID]; ok {
			submitted++
		}
	}
	return submitted, len(r.pickTargets)
}

func (r *Room) completeSelectionIfDone() {
	if r.state != game.StateSelecting {
		return
	}
	submitted, total := r.selectionCounts()
	if submitted < total {
		return
	}
	r.stopSelectionTimer()
	if forced := r.forceMissingAssignments(); forced > 0 {
		r.logger.Info("filled assignments left behind by departed pickers", "forced", forced)
	}
	r.broadcast(game.AllWordsSubmitted{Type: game.TypeAllWordsSubmitted})
	r.enterPlaying()
}

func (r *Room) selectionDeadlineHit(gen uint64) {
	if gen != r.selectionGen || r.state != game.StateSelecting {
		return
	}
	r.selectionTimer = nil
	forced := r.forceMissingAssignments()
	r.broadcast(game.SelectionTimeout{Type: game.TypeSelectionTimeout, ForcedCount: forced})
	r.logger.Info("selection deadline hit", "forced", forced)
	r.enterPlaying()
}

func (r *Room) stopSelectionTimer() {
	r.selectionGen++
	if r.selectionTimer != nil {
		r.selectionTimer.Stop()
		r.selectionTimer = nil
	}
}

// forceMissingAssignments gives every player without a submitted word a
// uniformly random answer so the match can start.
func (r *Room) forceMissingAssignments() int {
	forced := 0
	for id, p := range r.players {
		if _, ok := r.assignments[id]; ok {
			continue
		}
		r.assignments[id] = game.WordAssignment{
			Word:        r.manager.dict.RandomAnswer(),
			SubmittedAt: time.Now(),
			Forced:      true,
		}
		forced++
		r.logger.Info("word selection forced", "targetId", id, "targetName", p.Name)
	}
	return forced
}

// dropFromSelection removes a departed player from the selection graph:
// they no longer pick, nobody picks for them, and whoever was picking for
// them is released.
func (r *Room) dropFromSelection(leaverID string) {
	delete(r.pickTargets, leaverID)
	delete(r.assignments, leaverID)
	for pickerID, targetID := range r.pickTargets {
		if targetID == leaverID {
			delete(r.pickTargets, pickerID)
		}
	}
}

// enterPlaying assigns target words per the word mode, resets per-player
// match state, and starts the shared game clock.
func (r *Room) enterPlaying() {
	r.state = game.StatePlaying
	r.stopSelectionTimer()

	targets := make(map[string]string, len(r.players))
	dailyNumber := 0
	switch r.config.WordMode {
	case game.WordModeSabotage:
		for id := range r.players {
			if a, ok := r.assignments[id]; ok {
				targets[id] = a.Word
			} else {
				targets[id] = r.manager.dict.RandomAnswer()
			}
		}
	case game.WordModeDaily:
		dailyNumber = r.effectiveDailyNumber()
		word := r.manager.dict.DailyWord(dailyNumber)
		for id := range r.players {
			targets[id] = word
		}
	default:
		word := r.manager.dict.RandomAnswer()
		for id := range r.players {
			targets[id] = word
		}
	}
	if r.manager.testMode && r.testSeed != "" && r.config.WordMode != game.WordModeSabotage {
		for id := range targets {
			targets[id] = r.testSeed
		}
	}

	r.targets = targets
	r.gameID = uuid.NewString()
	r.startedAt = time.Now()
	for _, p := range r.players {
		p.ResetMatchState()
	}

	r.broadcast(game.GameStarted{
		Type:        game.TypeGameStarted,
		GameMode:    r.config.GameMode,
		WordMode:    r.config.WordMode,
		HardMode:    r.config.HardMode,
		WordLength:  game.WordLength,
		MaxGuesses:  game.MaxGuesses,
		DailyNumber: dailyNumber,
	})
	r.startGameClock()
	r.touch()
	r.notifyLobby()
	r.logger.Info("game started", "gameId", r.gameID,
		"gameMode", string(r.config.GameMode), "wordMode", string(r.config.WordMode),
		"hardMode", r.config.HardMode, "players", len(r.players))
}

// effectiveDailyNumber prefers the number fixed at creation for daily
// challenge rooms; regular rooms in daily word mode play today's word.
func (r *Room) effectiveDailyNumber() int {
	if r.dailyNumber > 0 {
		return r.dailyNumber
	}
	return game.CurrentDailyNumber()
}

func (r *Room) startGameClock() {
	r.clockGen++
	gen := r.clockGen
	r.clockTimer = r.tickFunc(r.manager.gameCfg.TimerSyncInterval, func() { r.clockTick(gen) })
}

func (r *Room) stopGameClock() {
	r.clockGen++
	if r.clockTimer != nil {
		r.clockTimer.Stop()
		r.clockTimer = nil
	}
}

func (r *Room) clockTick(gen uint64) {
	if gen != r.clockGen || r.state != game.StatePlaying {
		return
	}
	elapsed := time.Since(r.startedAt).Milliseconds()
	players := make([]game.PlayerElapsed, 0, len(r.players))
	for _, p := range r.playersByJoinOrder() {
		pe := game.PlayerElapsed{PlayerID: p.ID, ElapsedMs: elapsed, Finished: p.Finished}
		if p.Finished {
			pe.ElapsedMs = p.FinishTime.Milliseconds()
		}
		players = append(players, pe)
	}
	r.broadcast(game.TimerSync{
		Type:          game.TypeTimerSync,
		GameElapsedMs: elapsed,
		Players:       players,
	})
}

// Guess runs one guess through the scoring pipeline. forced bypasses the
// dictionary check and is recorded to the forced-word log.
func (r *Room) Guess(playerID, word string, forced bool) error {
	return r.doErr(func() error { return r.guess(playerID, word, forced) })
}

func (r *Room) guess(playerID, word string, forced bool) error {
	player, ok := r.players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	if r.state != game.StatePlaying {
		return ErrGameNotActive
	}
	if player.Finished {
		return ErrAlreadyFinished
	}

	normalized, err := game.NormalizeGuess(word)
	if err != nil {
		return err
	}
	if forced {
		r.manager.recordForcedWord(normalized, player, r.code)
	} else if !r.manager.dict.IsValidGuess(normalized) {
		return ErrNotInWordList
	}
	if r.config.HardMode {
		if err := game.CheckHardMode(normalized, player.Guesses, player.GuessResults); err != nil {
			return err
		}
	}

	results := game.CheckGuess(normalized, r.targets[playerID])
	player.Guesses = append(player.Guesses, normalized)
	player.GuessResults = append(player.GuessResults, results)
	r.touch()

	won := game.IsWinningResult(results)
	finished := won || len(player.Guesses) >= game.MaxGuesses
	score := 0
	if finished {
		player.Finished = true
		player.Won = won
		player.FinishTime = time.Since(r.startedAt)
		if won && r.config.GameMode == game.ModeCompetitive {
			score = game.Score(len(player.Guesses), player.FinishTime)
		}
		player.Score = score
	}

	r.sendTo(playerID, game.GuessResult{
		Type:       game.TypeGuessResult,
		Word:       normalized,
		Results:    results,
		GuessCount: len(player.Guesses),
		Finished:   finished,
		Won:        won,
		Score:      score,
	})
	r.broadcastExcept(playerID, game.OpponentGuess{
		Type:       game.TypeOpponentGuess,
		PlayerID:   playerID,
		PlayerName: player.Name,
		Results:    results,
		GuessCount: len(player.Guesses),
		Finished:   finished,
		Won:        won,
	})

	if finished {
		r.logger.Info("player finished", "playerId", playerID, "won", won,
			"guesses", len(player.Guesses), "score", score)
		r.finishIfAllDone()
	}
	return nil
}

// finishIfAllDone ends the match once every player still in the room has
// finished. A disconnected unfinished player holds the room open until
// they return or their grace expires.
func (r *Room) finishIfAllDone() {
	if r.state != game.StatePlaying {
		return
	}
	for _, p := range r.players {
		if !p.Finished {
			return
		}
	}
	r.finishGame("")
}

// forfeitIfLastConnected ends the match in favor of the sole connected
// player after a removal. Only removals trigger forfeit; a disconnect
// alone leaves the room waiting out the grace period.
func (r *Room) forfeitIfLastConnected() bool {
	if r.solo {
		return false
	}
	if r.state != game.StatePlaying && r.state != game.StateSelecting {
		return false
	}
	if r.connectedCount() != 1 {
		return false
	}
	var survivor *game.Player
	for _, p := range r.players {
		if p.Connected {
			survivor = p
			break
		}
	}
	r.logger.Info("match forfeited to last connected player", "playerId", survivor.ID)
	r.finishGame(survivor.ID)
	return true
}

// finishGame transitions to finished, builds the ranked results, and
// hands the records to the async persistence writer. forfeitWinnerID is
// set when the match ended by forfeit.
func (r *Room) finishGame(forfeitWinnerID string) {
	if r.state == game.StateFinished {
		return
	}
	r.stopSelectionTimer()
	r.stopGameClock()
	r.state = game.StateFinished
	r.touch()

	if forfeitWinnerID != "" {
		if p, ok := r.players[forfeitWinnerID]; ok {
			if !p.Finished {
				p.Finished = true
				if !r.startedAt.IsZero() {
					p.FinishTime = time.Since(r.startedAt)
				}
			}
			p.Won = true
		}
	}

	results := r.buildResults()
	r.lastResults = results
	r.broadcast(game.GameEnded{
		Type:     game.TypeGameEnded,
		GameMode: r.config.GameMode,
		WordMode: r.config.WordMode,
		Results:  results,
	})
	r.persistResults(results)
	r.notifyLobby()
	r.logger.Info("game finished", "gameId", r.gameID,
		"forfeit", forfeitWinnerID != "", "players", len(results))
}

func (r *Room) buildResults() []game.PlayerResult {
	results := make([]game.PlayerResult, 0, len(r.players))
	for _, p := range r.playersByJoinOrder() {
		results = append(results, game.PlayerResult{
			PlayerID:   p.ID,
			Name:       p.Name,
			Email:      p.Email,
			Won:        p.Won,
			GuessCount: p.GuessCount(),
			TimeMs:     p.FinishTime.Milliseconds(),
			Score:      p.Score,
			TargetWord: r.targets[p.ID],
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Won != b.Won {
			return a.Won
		}
		if a.GuessCount != b.GuessCount {
			return a.GuessCount < b.GuessCount
		}
		return a.TimeMs < b.TimeMs
	})
	for i := range results {
		results[i].Position = i + 1
	}
	return results
}

// persistResults is fire-and-forget: the writer queues the work and the
// executor moves on. Selection-phase forfeits never started a game and
// leave no record.
func (r *Room) persistResults(results []game.PlayerResult) {
	p := r.manager.persistence
	if p == nil || r.gameID == "" {
		return
	}
	record := game.GameRecord{
		GameID:     r.gameID,
		RoomCode:   r.code,
		GameMode:   r.config.GameMode,
		WordMode:   r.config.WordMode,
		HardMode:   r.config.HardMode,
		StartedAt:  r.startedAt,
		FinishedAt: time.Now(),
		Results:    results,
	}
	if r.config.WordMode != game.WordModeSabotage && len(results) > 0 {
		record.TargetWord = results[0].TargetWord
	}
	p.SaveGameRecord(record)

	if r.daily && r.config.WordMode == game.WordModeDaily {
		dailyNumber := r.effectiveDailyNumber()
		for _, res := range results {
			if res.Email == "" {
				continue
			}
			p.SaveDailyCompletion(game.DailyCompletion{
				Email:       res.Email,
				DailyNumber: dailyNumber,
				Won:         res.Won,
				GuessCount:  res.GuessCount,
				TimeMs:      res.TimeMs,
				Score:       res.Score,
			})
		}
	}
}

// PlayAgain returns a finished room to the waiting phase with config
// preserved and per-player match state cleared.
func (r *Room) PlayAgain(playerID string) error {
	return r.doErr(func() error {
		if _, ok := r.players[playerID]; !ok {
			return ErrPlayerNotFound
		}
		switch r.state {
		case game.StateFinished:
		case game.StateWaiting:
			return ErrGameNotActive
		default:
			return ErrGameInProgress
		}
		if playerID != r.hostID {
			return ErrNotHost
		}
		r.resetForRematch()
		return nil
	})
}

func (r *Room) resetForRematch() {
	r.state = game.StateWaiting
	r.gameID = ""
	r.targets = nil
	r.assignments = nil
	r.pickTargets = nil
	r.startedAt = time.Time{}
	r.lastResults = nil
	for _, p := range r.players {
		p.ResetMatchState()
		p.Ready = false
	}
	r.touch()
	r.broadcast(game.ReturnedToLobby{
		Type:    game.TypeReturnedToLobby,
		Config:  r.config,
		Players: r.playerInfos(),
	})
	r.notifyLobby()
	r.logger.Info("room reset for rematch")
}

// scheduleSoloStart arms the solo daily auto-start shortly after creation.
func (r *Room) scheduleSoloStart(delay time.Duration) {
	r.afterFunc(delay, func() {
		if r.state != game.StateWaiting || r.countdownTimer != nil {
			return
		}
		if err := r.startGame(r.hostID, true); err != nil {
			r.logger.Warn("solo auto-start failed", "error", err.Error())
		}
	})
}
