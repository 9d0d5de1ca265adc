package game

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Guess validation errors.
var (
	ErrInvalidWordLength = errors.New("word must be exactly 5 letters")
	ErrInvalidCharacters = errors.New("word must contain only letters A-Z")
)

// HardModeError reports a hard-mode rule violation with a human-readable
// reason ("2nd letter must be R", "guess must contain C").
type HardModeError struct {
	Reason string
}

func (e *HardModeError) Error() string {
	return e.Reason
}

// NormalizeGuess uppercases a raw guess and validates its shape. It returns
// the canonical 5-letter uppercase form, or ErrInvalidWordLength /
// ErrInvalidCharacters.
func NormalizeGuess(raw string) (string, error) {
	word := strings.ToUpper(strings.TrimSpace(raw))
	if len(word) != WordLength {
		return "", ErrInvalidWordLength
	}
	for i := 0; i < len(word); i++ {
		if word[i] < 'A' || word[i] > 'Z' {
			return "", ErrInvalidCharacters
		}
	}
	return word, nil
}

// CheckGuess colors a guess against a target word using the two-pass
// algorithm. The first pass marks exact position matches and consumes those
// target positions. The second pass marks remaining guess letters present
// if an unconsumed target position holds the same letter, consuming it, so
// repeated letters never produce more correct+present marks than the target
// contains.
func CheckGuess(guess, target string) []LetterResult {
	results := make([]LetterResult, len(guess))
	targetUsed := make([]bool, len(target))

	for i := 0; i < len(guess); i++ {
		if i < len(target) && guess[i] == target[i] {
			results[i] = LetterCorrect
			targetUsed[i] = true
		}
	}

	for i := 0; i < len(guess); i++ {
		if results[i] == LetterCorrect {
			continue
		}
		results[i] = LetterAbsent
		for j := 0; j < len(target); j++ {
			if !targetUsed[j] && guess[i] == target[j] {
				results[i] = LetterPresent
				targetUsed[j] = true
				break
			}
		}
	}

	return results
}

// IsWinningResult reports whether every position of a result row is correct.
func IsWinningResult(results []LetterResult) bool {
	if len(results) != WordLength {
		return false
	}
	for _, r := range results {
		if r != LetterCorrect {
			return false
		}
	}
	return true
}

// CheckHardMode enforces the hard-mode rule against a player's own prior
// results: every letter previously marked correct must stay at its
// position, and every letter previously marked present must appear
// somewhere in the new guess. The constraint is derived from the history on
// every call; no extra state is kept. Returns a *HardModeError describing
// the first violation found, or nil.
func CheckHardMode(guess string, prevGuesses []string, prevResults [][]LetterResult) error {
	for g := 0; g < len(prevGuesses) && g < len(prevResults); g++ {
		prev := prevGuesses[g]
		row := prevResults[g]
		for i := 0; i < len(row) && i < len(prev); i++ {
			switch row[i] {
			case LetterCorrect:
				if i >= len(guess) || guess[i] != prev[i] {
					return &HardModeError{
						Reason: fmt.Sprintf("%s letter must be %c", ordinal(i+1), prev[i]),
					}
				}
			case LetterPresent:
				if !strings.ContainsRune(guess, rune(prev[i])) {
					return &HardModeError{
						Reason: fmt.Sprintf("guess must contain %c", prev[i]),
					}
				}
			}
		}
	}
	return nil
}

// Score computes the competitive score for a winning player: a base that
// rewards fewer guesses plus up to 60 bonus points for solving inside 60
// seconds. Losing players score 0 and never reach this function.
func Score(guessCount int, solveTime time.Duration) int {
	base := (MaxGuesses + 1 - guessCount) * 100
	bonusMs := 60_000 - solveTime.Milliseconds()
	if bonusMs < 0 {
		bonusMs = 0
	}
	return base + int(math.Round(float64(bonusMs)/1000.0))
}

func ordinal(n int) string {
	switch n {
	case 1:
		return "1st"
	case 2:
		return "2nd"
	case 3:
		return "3rd"
	default:
		return fmt.Sprintf("%dth", n)
	}
}
