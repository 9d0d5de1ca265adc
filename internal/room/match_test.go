package room

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"wordclash-backend/internal/game"
)

// twoPlayerRoom creates a room hosted by alice with bob joined. A non-empty
// seed pins the target word for every mode except sabotage.
func twoPlayerRoom(t *testing.T, m *Manager, seed string) (*Room, *fakeConn, *fakeConn, string, string) {
	t.Helper()
	hostConn := newFakeConn("conn-host")
	guestConn := newFakeConn("conn-guest")
	r, hostID, err := m.CreateRoom(hostConn, "alice", "", seed)
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	_, guestID, err := m.JoinRoom(guestConn, r.Code(), "bob", "")
	if err != nil {
		t.Fatalf("JoinRoom() error = %v", err)
	}
	return r, hostConn, guestConn, hostID, guestID
}

// skipCountdown moves a waiting room straight past the start countdown on
// its executor, entering selection or play per the word mode.
func skipCountdown(t *testing.T, r *Room) {
	t.Helper()
	if err := r.do(func() { r.completeCountdown() }); err != nil {
		t.Fatalf("skipCountdown: %v", err)
	}
}

func TestStartGameGates(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil)
	r, _, _, hostID, guestID := twoPlayerRoom(t, m, "")

	if err := r.StartGame("ghost"); err != ErrPlayerNotFound {
		t.Errorf("StartGame(ghost) = %v, want %v", err, ErrPlayerNotFound)
	}
	if err := r.StartGame(guestID); err != ErrNotHost {
		t.Errorf("StartGame(guest) = %v, want %v", err, ErrNotHost)
	}
	if err := r.StartGame(hostID); err != ErrNotAllReady {
		t.Errorf("StartGame(nobody ready) = %v, want %v", err, ErrNotAllReady)
	}
	if err := r.SetReady(guestID, true); err != nil {
		t.Fatalf("SetReady() error = %v", err)
	}
	if err := r.StartGame(hostID); err != ErrNotAllReady {
		t.Errorf("StartGame(host not ready) = %v, want %v", err, ErrNotAllReady)
	}

	solo, soloID, err := m.CreateRoom(newFakeConn("conn-solo"), "carol", "", "")
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if err := solo.StartGame(soloID); err != ErrNotEnoughPlayers {
		t.Errorf("StartGame(single player) = %v, want %v", err, ErrNotEnoughPlayers)
	}
}

func TestCountdownRunsToGameStart(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil)
	r, hostConn, guestConn, hostID, guestID := twoPlayerRoom(t, m, "")

	if err := r.SetReady(hostID, true); err != nil {
		t.Fatalf("SetReady() error = %v", err)
	}
	if err := r.SetReady(guestID, true); err != nil {
		t.Fatalf("SetReady() error = %v", err)
	}
	if err := r.StartGame(hostID); err != nil {
		t.Fatalf("StartGame() error = %v", err)
	}

	msg := waitForMessage(t, guestConn, 3*time.Second, game.Countdown{})
	if got := msg.(game.Countdown).Count; got != 1 {
		t.Errorf("countdown count = %d, want 1", got)
	}
	started := waitForMessage(t, hostConn, 3*time.Second, game.GameStarted{}).(game.GameStarted)
	if started.WordLength != game.WordLength || started.MaxGuesses != game.MaxGuesses {
		t.Errorf("gameStarted dims = %d/%d, want %d/%d",
			started.WordLength, started.MaxGuesses, game.WordLength, game.MaxGuesses)
	}
	waitForMessage(t, guestConn, 3*time.Second, game.GameStarted{})

	summary, ok := r.Summary()
	if !ok {
		t.Fatal("Summary() not ok")
	}
	if summary.State != game.StatePlaying {
		t.Errorf("state = %q, want %q", summary.State, game.StatePlaying)
	}
}

func TestGuessFlow(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil)
	r, hostConn, guestConn, hostID, guestID := twoPlayerRoom(t, m, "crane")
	skipCountdown(t, r)

	if err := r.Guess(hostID, "slate", false); err != nil {
		t.Fatalf("Guess() error = %v", err)
	}
	msg, ok := lastMessage(hostConn, game.GuessResult{})
	if !ok {
		t.Fatal("guesser did not receive guessResult")
	}
	result := msg.(game.GuessResult)
	wantResults := []game.LetterResult{
		game.LetterAbsent, game.LetterAbsent, game.LetterCorrect,
		game.LetterAbsent, game.LetterCorrect,
	}
	if result.Word != "SLATE" {
		t.Errorf("guessResult word = %q, want %q", result.Word, "SLATE")
	}
	if !reflect.DeepEqual(result.Results, wantResults) {
		t.Errorf("guessResult colors = %v, want %v", result.Results, wantResults)
	}
	if result.GuessCount != 1 || result.Finished || result.Won {
		t.Errorf("guessResult = %+v, want 1 guess, unfinished", result)
	}

	om, ok := lastMessage(guestConn, game.OpponentGuess{})
	if !ok {
		t.Fatal("opponent did not receive opponentGuess")
	}
	opp := om.(game.OpponentGuess)
	if opp.PlayerID != hostID || opp.PlayerName != "alice" {
		t.Errorf("opponentGuess player = %s/%s, want %s/alice", opp.PlayerID, opp.PlayerName, hostID)
	}
	if !reflect.DeepEqual(opp.Results, wantResults) {
		t.Errorf("opponentGuess colors = %v, want %v", opp.Results, wantResults)
	}

	if err := r.Guess(hostID, "crane", false); err != nil {
		t.Fatalf("Guess() error = %v", err)
	}
	win := mustLast(t, hostConn, game.GuessResult{}).(game.GuessResult)
	if !win.Won || !win.Finished || win.GuessCount != 2 {
		t.Errorf("winning guessResult = %+v, want won in 2", win)
	}
	if win.Score != 0 {
		t.Errorf("casual score = %d, want 0", win.Score)
	}
	if err := r.Guess(hostID, "crane", false); err != ErrAlreadyFinished {
		t.Errorf("Guess(after finish) = %v, want %v", err, ErrAlreadyFinished)
	}

	if err := r.Guess(guestID, "crane", false); err != nil {
		t.Fatalf("Guess() error = %v", err)
	}
	ended := mustLast(t, guestConn, game.GameEnded{}).(game.GameEnded)
	if len(ended.Results) != 2 {
		t.Fatalf("gameEnded has %d results, want 2", len(ended.Results))
	}
	// Both won; fewer guesses ranks first.
	if ended.Results[0].PlayerID != guestID || ended.Results[0].Position != 1 {
		t.Errorf("first place = %+v, want %s at position 1", ended.Results[0], guestID)
	}
	if ended.Results[1].PlayerID != hostID || ended.Results[1].GuessCount != 2 {
		t.Errorf("second place = %+v, want %s with 2 guesses", ended.Results[1], hostID)
	}
	if ended.Results[0].TargetWord != "CRANE" {
		t.Errorf("targetWord = %q, want %q", ended.Results[0].TargetWord, "CRANE")
	}

	if err := r.Guess(guestID, "crane", false); err != ErrGameNotActive {
		t.Errorf("Guess(after game end) = %v, want %v", err, ErrGameNotActive)
	}
}

// mustLast fetches the newest message of want's type, failing when none
// was recorded.
func mustLast(t *testing.T, c *fakeConn, want interface{}) interface{} {
	t.Helper()
	msg, ok := lastMessage(c, want)
	if !ok {
		t.Fatalf("no %T recorded", want)
	}
	return msg
}

func TestGuessValidation(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil)
	r, _, _, hostID, _ := twoPlayerRoom(t, m, "crane")

	if err := r.Guess(hostID, "slate", false); err != ErrGameNotActive {
		t.Errorf("Guess(before start) = %v, want %v", err, ErrGameNotActive)
	}

	skipCountdown(t, r)

	tests := []struct {
		name    string
		word    string
		wantErr error
	}{
		{"too short", "abc", game.ErrInvalidWordLength},
		{"too long", "abcdef", game.ErrInvalidWordLength},
		{"non-letters", "ab1de", game.ErrInvalidCharacters},
		{"not in word list", "zzzzz", ErrNotInWordList},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Guess(hostID, tt.word, false); err != tt.wantErr {
				t.Errorf("Guess(%q) = %v, want %v", tt.word, err, tt.wantErr)
			}
		})
	}

	if err := r.Guess("ghost", "slate", false); err != ErrPlayerNotFound {
		t.Errorf("Guess(ghost) = %v, want %v", err, ErrPlayerNotFound)
	}
}

func TestHardModeEnforcement(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil)
	r, _, _, hostID, _ := twoPlayerRoom(t, m, "crane")
	if err := r.SetHardMode(hostID, true); err != nil {
		t.Fatalf("SetHardMode() error = %v", err)
	}
	skipCountdown(t, r)

	// SLATE against CRANE reveals A and E in place.
	if err := r.Guess(hostID, "slate", false); err != nil {
		t.Fatalf("Guess() error = %v", err)
	}

	err := r.Guess(hostID, "brine", false)
	var hardErr *game.HardModeError
	if !errors.As(err, &hardErr) {
		t.Fatalf("Guess(brine) = %v, want *HardModeError", err)
	}
	if hardErr.Reason != "3rd letter must be A" {
		t.Errorf("violation reason = %q, want %q", hardErr.Reason, "3rd letter must be A")
	}

	// A compliant guess still goes through.
	if err := r.Guess(hostID, "crane", false); err != nil {
		t.Errorf("Guess(crane) = %v, want nil", err)
	}
}

func TestForcedGuessBypassesDictionary(t *testing.T) {
	sink := &fakeForcedWords{}
	m, _ := newTestManager(t, nil, nil, sink)
	r, hostConn, _, hostID, _ := twoPlayerRoom(t, m, "crane")
	skipCountdown(t, r)

	if err := r.Guess(hostID, "zzzzz", true); err != nil {
		t.Fatalf("Guess(forced) error = %v", err)
	}
	result := mustLast(t, hostConn, game.GuessResult{}).(game.GuessResult)
	if result.Word != "ZZZZZ" || result.GuessCount != 1 {
		t.Errorf("forced guessResult = %+v, want ZZZZZ counted", result)
	}

	entries := sink.recorded()
	if len(entries) != 1 {
		t.Fatalf("forced-word log has %d entries, want 1", len(entries))
	}
	want := forcedWordEntry{roomCode: r.Code(), playerName: "alice", word: "ZZZZZ"}
	if entries[0] != want {
		t.Errorf("forced-word entry = %+v, want %+v", entries[0], want)
	}

	// Without the forced flag the same word is rejected and not logged.
	if err := r.Guess(hostID, "zzzzz", false); err != ErrNotInWordList {
		t.Errorf("Guess(unforced) = %v, want %v", err, ErrNotInWordList)
	}
	if got := len(sink.recorded()); got != 1 {
		t.Errorf("forced-word log has %d entries after rejection, want 1", got)
	}
}

func TestCompetitiveScoring(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil)
	r, hostConn, _, hostID, guestID := twoPlayerRoom(t, m, "crane")
	if err := r.SetGameMode(hostID, game.ModeCompetitive); err != nil {
		t.Fatalf("SetGameMode() error = %v", err)
	}
	skipCountdown(t, r)

	if err := r.Guess(hostID, "crane", false); err != nil {
		t.Fatalf("Guess() error = %v", err)
	}
	result := mustLast(t, hostConn, game.GuessResult{}).(game.GuessResult)
	// One-guess win scores 600 base plus up to 60 speed bonus.
	if result.Score < 600 || result.Score > 660 {
		t.Errorf("competitive score = %d, want within [600, 660]", result.Score)
	}

	if err := r.Guess(guestID, "slate", false); err != nil {
		t.Fatalf("Guess() error = %v", err)
	}
	if err := r.Guess(guestID, "crane", false); err != nil {
		t.Fatalf("Guess() error = %v", err)
	}
	ended := mustLast(t, hostConn, game.GameEnded{}).(game.GameEnded)
	if ended.Results[0].PlayerID != hostID || ended.Results[0].Score != result.Score {
		t.Errorf("winner entry = %+v, want %s scoring %d", ended.Results[0], hostID, result.Score)
	}
	if ended.Results[1].Score < 500 || ended.Results[1].Score > 560 {
		t.Errorf("runner-up score = %d, want within [500, 560]", ended.Results[1].Score)
	}
}

func TestMaxGuessesEndsPlayer(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil)
	r, hostConn, guestConn, hostID, guestID := twoPlayerRoom(t, m, "crane")
	skipCountdown(t, r)

	for i := 0; i < game.MaxGuesses; i++ {
		if err := r.Guess(hostID, "slate", false); err != nil {
			t.Fatalf("Guess() #%d error = %v", i+1, err)
		}
	}
	result := mustLast(t, hostConn, game.GuessResult{}).(game.GuessResult)
	if !result.Finished || result.Won || result.GuessCount != game.MaxGuesses {
		t.Errorf("final guessResult = %+v, want finished loss after %d", result, game.MaxGuesses)
	}
	if err := r.Guess(hostID, "slate", false); err != ErrAlreadyFinished {
		t.Errorf("Guess(exhausted) = %v, want %v", err, ErrAlreadyFinished)
	}

	if err := r.Guess(guestID, "crane", false); err != nil {
		t.Fatalf("Guess() error = %v", err)
	}
	ended := mustLast(t, guestConn, game.GameEnded{}).(game.GameEnded)
	if ended.Results[0].PlayerID != guestID || !ended.Results[0].Won {
		t.Errorf("first place = %+v, want %s winning", ended.Results[0], guestID)
	}
	if ended.Results[1].Won || ended.Results[1].GuessCount != game.MaxGuesses {
		t.Errorf("second place = %+v, want loss with %d guesses", ended.Results[1], game.MaxGuesses)
	}
}

func TestSabotageSelectionFlow(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil)
	r, hostConn, guestConn, hostID, guestID := twoPlayerRoom(t, m, "")
	if err := r.SetWordMode(hostID, game.WordModeSabotage); err != nil {
		t.Fatalf("SetWordMode() error = %v", err)
	}

	if err := r.SubmitWord(hostID, "slate"); err != ErrNotInSelection {
		t.Errorf("SubmitWord(while waiting) = %v, want %v", err, ErrNotInSelection)
	}

	skipCountdown(t, r)

	// Two players always pick for each other.
	hostSel := mustLast(t, hostConn, game.SelectionPhaseStarted{}).(game.SelectionPhaseStarted)
	if hostSel.TargetPlayerID != guestID || hostSel.TargetPlayerName != "bob" {
		t.Errorf("host picks for %s/%s, want %s/bob", hostSel.TargetPlayerID, hostSel.TargetPlayerName, guestID)
	}
	if hostSel.TimeoutSeconds != 5 {
		t.Errorf("selection timeout = %ds, want 5s", hostSel.TimeoutSeconds)
	}
	guestSel := mustLast(t, guestConn, game.SelectionPhaseStarted{}).(game.SelectionPhaseStarted)
	if guestSel.TargetPlayerID != hostID {
		t.Errorf("guest picks for %s, want %s", guestSel.TargetPlayerID, hostID)
	}

	if err := r.Guess(hostID, "slate", false); err != ErrGameNotActive {
		t.Errorf("Guess(during selection) = %v, want %v", err, ErrGameNotActive)
	}

	// Shape and answer-list failures come back as wordValidation.
	if err := r.SubmitWord(hostID, "ab"); err != nil {
		t.Fatalf("SubmitWord() error = %v", err)
	}
	wv := mustLast(t, hostConn, game.WordValidation{}).(game.WordValidation)
	if wv.Valid || wv.Reason != game.ErrInvalidWordLength.Error() {
		t.Errorf("wordValidation = %+v, want invalid length reason", wv)
	}
	if err := r.SubmitWord(hostID, "zzzzz"); err != nil {
		t.Fatalf("SubmitWord() error = %v", err)
	}
	wv = mustLast(t, hostConn, game.WordValidation{}).(game.WordValidation)
	if wv.Valid || wv.Reason != "word is not in the answer list" {
		t.Errorf("wordValidation = %+v, want answer-list rejection", wv)
	}

	if err := r.SubmitWord(hostID, "slate"); err != nil {
		t.Fatalf("SubmitWord() error = %v", err)
	}
	if got := mustLast(t, hostConn, game.WordSubmitted{}).(game.WordSubmitted).Word; got != "SLATE" {
		t.Errorf("wordSubmitted = %q, want %q", got, "SLATE")
	}
	progress := mustLast(t, guestConn, game.SelectionProgress{}).(game.SelectionProgress)
	if progress.SubmittedCount != 1 || progress.TotalCount != 2 {
		t.Errorf("selectionProgress = %+v, want 1/2", progress)
	}

	// Resubmission replaces the earlier pick without double counting.
	if err := r.SubmitWord(hostID, "crane"); err != nil {
		t.Fatalf("SubmitWord() error = %v", err)
	}
	progress = mustLast(t, guestConn, game.SelectionProgress{}).(game.SelectionProgress)
	if progress.SubmittedCount != 1 {
		t.Errorf("selectionProgress after resubmit = %+v, want 1/2", progress)
	}

	if err := r.SubmitWord(guestID, "about"); err != nil {
		t.Fatalf("SubmitWord() error = %v", err)
	}
	if _, ok := lastMessage(hostConn, game.AllWordsSubmitted{}); !ok {
		t.Error("host did not receive allWordsSubmitted")
	}
	started := mustLast(t, hostConn, game.GameStarted{}).(game.GameStarted)
	if started.WordMode != game.WordModeSabotage {
		t.Errorf("gameStarted wordMode = %q, want %q", started.WordMode, game.WordModeSabotage)
	}

	// Each player faces the word the other picked.
	if err := r.Guess(hostID, "about", false); err != nil {
		t.Fatalf("Guess() error = %v", err)
	}
	if got := mustLast(t, hostConn, game.GuessResult{}).(game.GuessResult); !got.Won {
		t.Errorf("host guessing bob's pick = %+v, want win", got)
	}
	if err := r.Guess(guestID, "crane", false); err != nil {
		t.Fatalf("Guess() error = %v", err)
	}
	if got := mustLast(t, guestConn, game.GuessResult{}).(game.GuessResult); !got.Won {
		t.Errorf("guest guessing alice's pick = %+v, want win", got)
	}

	ended := mustLast(t, guestConn, game.GameEnded{}).(game.GameEnded)
	for _, res := range ended.Results {
		want := "ABOUT"
		if res.PlayerID == guestID {
			want = "CRANE"
		}
		if res.TargetWord != want {
			t.Errorf("target for %s = %q, want %q", res.Name, res.TargetWord, want)
		}
	}
}

func TestSelectionTimeoutForcesWords(t *testing.T) {
	cfg := testConfig()
	cfg.Game.SelectionTimeout = 50 * time.Millisecond
	m, _ := newTestManager(t, cfg, nil, nil)
	r, hostConn, _, hostID, _ := twoPlayerRoom(t, m, "")
	if err := r.SetWordMode(hostID, game.WordModeSabotage); err != nil {
		t.Fatalf("SetWordMode() error = %v", err)
	}
	skipCountdown(t, r)

	msg := waitForMessage(t, hostConn, 2*time.Second, game.SelectionTimeout{})
	if got := msg.(game.SelectionTimeout).ForcedCount; got != 2 {
		t.Errorf("selectionTimeout forcedCount = %d, want 2", got)
	}
	waitForMessage(t, hostConn, 2*time.Second, game.GameStarted{})

	summary, ok := r.Summary()
	if !ok {
		t.Fatal("Summary() not ok")
	}
	if summary.State != game.StatePlaying {
		t.Errorf("state = %q, want %q", summary.State, game.StatePlaying)
	}
}

func TestSelectionForfeitLeavesNoRecord(t *testing.T) {
	store := &fakePersistence{}
	m, _ := newTestManager(t, nil, store, nil)
	r, hostConn, _, hostID, guestID := twoPlayerRoom(t, m, "")
	if err := r.SetWordMode(hostID, game.WordModeSabotage); err != nil {
		t.Fatalf("SetWordMode() error = %v", err)
	}
	skipCountdown(t, r)

	if err := r.Leave(guestID); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}

	ended := mustLast(t, hostConn, game.GameEnded{}).(game.GameEnded)
	if len(ended.Results) != 1 || !ended.Results[0].Won {
		t.Errorf("forfeit results = %+v, want sole winner", ended.Results)
	}
	// The match never started, so nothing is persisted.
	if got := len(store.savedRecords()); got != 0 {
		t.Errorf("saved %d game records, want 0", got)
	}
}

func TestForfeitWhenOpponentLeaves(t *testing.T) {
	store := &fakePersistence{}
	m, _ := newTestManager(t, nil, store, nil)
	r, hostConn, _, hostID, guestID := twoPlayerRoom(t, m, "crane")
	skipCountdown(t, r)

	if err := r.Guess(hostID, "slate", false); err != nil {
		t.Fatalf("Guess() error = %v", err)
	}
	if err := r.Leave(guestID); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}

	ended := mustLast(t, hostConn, game.GameEnded{}).(game.GameEnded)
	if len(ended.Results) != 1 {
		t.Fatalf("forfeit results = %+v, want 1 entry", ended.Results)
	}
	if ended.Results[0].PlayerID != hostID || !ended.Results[0].Won || ended.Results[0].Position != 1 {
		t.Errorf("survivor entry = %+v, want %s winning at position 1", ended.Results[0], hostID)
	}
	summary, ok := r.Summary()
	if !ok {
		t.Fatal("Summary() not ok")
	}
	if summary.State != game.StateFinished {
		t.Errorf("state = %q, want %q", summary.State, game.StateFinished)
	}

	records := store.savedRecords()
	if len(records) != 1 {
		t.Fatalf("saved %d game records, want 1", len(records))
	}
	rec := records[0]
	if rec.RoomCode != r.Code() || rec.GameID == "" {
		t.Errorf("record identity = %q/%q, want room code and a game id", rec.RoomCode, rec.GameID)
	}
	if rec.TargetWord != "CRANE" {
		t.Errorf("record targetWord = %q, want %q", rec.TargetWord, "CRANE")
	}
	if len(rec.Results) != 1 {
		t.Errorf("record has %d results, want 1", len(rec.Results))
	}
	if got := len(store.savedCompletions()); got != 0 {
		t.Errorf("saved %d daily completions, want 0", got)
	}
}

func TestDisconnectDoesNotForfeit(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil)
	r, hostConn, guestConn, _, _ := twoPlayerRoom(t, m, "crane")
	skipCountdown(t, r)

	m.Disconnected(guestConn.ID())
	waitForMessage(t, hostConn, time.Second, game.PlayerDisconnected{})

	// The grace clock is running; the match holds.
	time.Sleep(100 * time.Millisecond)
	if n := countMessages(hostConn, game.GameEnded{}); n != 0 {
		t.Errorf("received %d gameEnded during grace, want 0", n)
	}
	summary, ok := r.Summary()
	if !ok {
		t.Fatal("Summary() not ok")
	}
	if summary.State != game.StatePlaying {
		t.Errorf("state = %q, want %q", summary.State, game.StatePlaying)
	}
}

func TestGraceExpiryForfeitsMatch(t *testing.T) {
	cfg := testConfig()
	cfg.Game.ReconnectGrace = 30 * time.Millisecond
	m, _ := newTestManager(t, cfg, nil, nil)
	r, hostConn, guestConn, hostID, _ := twoPlayerRoom(t, m, "crane")
	skipCountdown(t, r)

	m.Disconnected(guestConn.ID())

	ended := waitForMessage(t, hostConn, 2*time.Second, game.GameEnded{}).(game.GameEnded)
	if len(ended.Results) != 1 || ended.Results[0].PlayerID != hostID || !ended.Results[0].Won {
		t.Errorf("forfeit results = %+v, want %s as sole winner", ended.Results, hostID)
	}
	summary, ok := r.Summary()
	if !ok {
		t.Fatal("Summary() not ok")
	}
	if summary.State != game.StateFinished {
		t.Errorf("state = %q, want %q", summary.State, game.StateFinished)
	}
}

func TestPlayAgainResetsRoom(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil)
	r, hostConn, guestConn, hostID, guestID := twoPlayerRoom(t, m, "crane")

	if err := r.PlayAgain(hostID); err != ErrGameNotActive {
		t.Errorf("PlayAgain(while waiting) = %v, want %v", err, ErrGameNotActive)
	}

	skipCountdown(t, r)
	if err := r.PlayAgain(hostID); err != ErrGameInProgress {
		t.Errorf("PlayAgain(while playing) = %v, want %v", err, ErrGameInProgress)
	}

	if err := r.Guess(hostID, "crane", false); err != nil {
		t.Fatalf("Guess() error = %v", err)
	}
	if err := r.Guess(guestID, "crane", false); err != nil {
		t.Fatalf("Guess() error = %v", err)
	}
	mustLast(t, hostConn, game.GameEnded{})

	if err := r.PlayAgain("ghost"); err != ErrPlayerNotFound {
		t.Errorf("PlayAgain(ghost) = %v, want %v", err, ErrPlayerNotFound)
	}
	if err := r.PlayAgain(guestID); err != ErrNotHost {
		t.Errorf("PlayAgain(guest) = %v, want %v", err, ErrNotHost)
	}
	if err := r.PlayAgain(hostID); err != nil {
		t.Fatalf("PlayAgain() error = %v", err)
	}

	lobby := mustLast(t, guestConn, game.ReturnedToLobby{}).(game.ReturnedToLobby)
	if len(lobby.Players) != 2 {
		t.Fatalf("returnedToLobby lists %d players, want 2", len(lobby.Players))
	}
	for _, p := range lobby.Players {
		if p.Ready {
			t.Errorf("player %s still ready after reset", p.Name)
		}
	}
	summary, ok := r.Summary()
	if !ok {
		t.Fatal("Summary() not ok")
	}
	if summary.State != game.StateWaiting {
		t.Errorf("state = %q, want %q", summary.State, game.StateWaiting)
	}

	// The room is startable again.
	if err := r.SetReady(hostID, true); err != nil {
		t.Fatalf("SetReady() error = %v", err)
	}
	if err := r.SetReady(guestID, true); err != nil {
		t.Fatalf("SetReady() error = %v", err)
	}
	if err := r.StartGame(hostID); err != nil {
		t.Errorf("StartGame(after reset) = %v, want nil", err)
	}
}

func TestSoloDailyChallenge(t *testing.T) {
	store := &fakePersistence{}
	m, _ := newTestManager(t, nil, store, nil)
	conn := newFakeConn("conn-1")

	r, playerID, err := m.CreateDailyChallenge(context.Background(), conn, "alice", "alice@example.com", 2, true)
	if err != nil {
		t.Fatalf("CreateDailyChallenge() error = %v", err)
	}
	created := mustLast(t, conn, game.RoomCreated{}).(game.RoomCreated)
	if !created.Solo || created.DailyNumber != 2 {
		t.Errorf("roomCreated = %+v, want solo daily #2", created)
	}

	// Solo rooms start themselves without ready checks or a second player.
	started := waitForMessage(t, conn, 3*time.Second, game.GameStarted{}).(game.GameStarted)
	if started.WordMode != game.WordModeDaily || started.DailyNumber != 2 {
		t.Errorf("gameStarted = %+v, want daily #2", started)
	}

	// Daily #2 is the second word of the answer list.
	if err := r.Guess(playerID, "about", false); err != nil {
		t.Fatalf("Guess() error = %v", err)
	}
	result := mustLast(t, conn, game.GuessResult{}).(game.GuessResult)
	if !result.Won {
		t.Fatalf("guessResult = %+v, want win on the daily word", result)
	}
	ended := mustLast(t, conn, game.GameEnded{}).(game.GameEnded)
	if len(ended.Results) != 1 || !ended.Results[0].Won {
		t.Errorf("gameEnded = %+v, want sole winner", ended.Results)
	}

	records := store.savedRecords()
	if len(records) != 1 {
		t.Fatalf("saved %d game records, want 1", len(records))
	}
	if records[0].WordMode != game.WordModeDaily || records[0].TargetWord != "ABOUT" {
		t.Errorf("record = %+v, want daily ABOUT", records[0])
	}
	completions := store.savedCompletions()
	if len(completions) != 1 {
		t.Fatalf("saved %d daily completions, want 1", len(completions))
	}
	want := game.DailyCompletion{
		Email:       "alice@example.com",
		DailyNumber: 2,
		Won:         true,
		GuessCount:  1,
		TimeMs:      completions[0].TimeMs,
		Score:       0,
	}
	if completions[0] != want {
		t.Errorf("daily completion = %+v, want %+v", completions[0], want)
	}
}

func TestTimerSyncBroadcast(t *testing.T) {
	cfg := testConfig()
	cfg.Game.TimerSyncInterval = 25 * time.Millisecond
	m, _ := newTestManager(t, cfg, nil, nil)
	r, hostConn, _, _, _ := twoPlayerRoom(t, m, "crane")
	skipCountdown(t, r)

	msg := waitForMessage(t, hostConn, 2*time.Second, game.TimerSync{})
	sync := msg.(game.TimerSync)
	if sync.GameElapsedMs < 0 {
		t.Errorf("gameElapsedMs = %d, want >= 0", sync.GameElapsedMs)
	}
	if len(sync.Players) != 2 {
		t.Fatalf("timerSync lists %d players, want 2", len(sync.Players))
	}
	for _, p := range sync.Players {
		if p.Finished {
			t.Errorf("player %s marked finished at match start", p.PlayerID)
		}
	}
}
