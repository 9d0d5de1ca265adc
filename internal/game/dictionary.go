package game

import (
	_ "embed"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Embed word list files
//go:embed answers.txt
var answerWordsData string

//go:embed guesses.txt
var guessWordsData string

// dailyEpoch anchors daily challenge numbering: daily #1 is the UTC day
// starting 2024-01-01T00:00:00Z.
var dailyEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Dictionary holds the curated answer list and the larger accepted-guess
// set. Answers are eligible as target words; the guess set is the union of
// both lists. All words are kept uppercase so lookups match the canonical
// guess form.
type Dictionary struct {
	answers    []string
	answerSet  map[string]bool
	validWords map[string]bool
	rand       *rand.Rand
	mutex      sync.Mutex
}

// NewDictionary creates a dictionary from the embedded word lists.
func NewDictionary() *Dictionary {
	d := &Dictionary{
		answerSet:  make(map[string]bool),
		validWords: make(map[string]bool),
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	for _, line := range strings.Split(strings.TrimSpace(answerWordsData), "\n") {
		word := strings.ToUpper(strings.TrimSpace(line))
		if len(word) != WordLength {
			continue
		}
		if !d.answerSet[word] {
			d.answers = append(d.answers, word)
			d.answerSet[word] = true
		}
		d.validWords[word] = true
	}

	for _, line := range strings.Split(strings.TrimSpace(guessWordsData), "\n") {
		word := strings.ToUpper(strings.TrimSpace(line))
		if len(word) != WordLength {
			continue
		}
		d.validWords[word] = true
	}

	return d
}

// IsValidGuess reports whether a word may be played as a guess. The check
// runs against the union of the answer and guess lists.
func (d *Dictionary) IsValidGuess(word string) bool {
	return d.validWords[strings.ToUpper(strings.TrimSpace(word))]
}

// IsValidAnswer reports whether a word is on the curated answer list.
// Sabotage picks must pass this check; guess-only words are not assignable
// as targets.
func (d *Dictionary) IsValidAnswer(word string) bool {
	return d.answerSet[strings.ToUpper(strings.TrimSpace(word))]
}

// RandomAnswer returns a uniformly random word from the answer list.
func (d *Dictionary) RandomAnswer() string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.answers[d.rand.Intn(len(d.answers))]
}

// DailyWord returns the deterministic answer for a daily number. Numbering
// wraps around the answer list so every daily number has a word.
func (d *Dictionary) DailyWord(dailyNumber int) string {
	if dailyNumber < 1 {
		dailyNumber = 1
	}
	return d.answers[(dailyNumber-1)%len(d.answers)]
}

// AnswerCount returns the number of words eligible as targets.
func (d *Dictionary) AnswerCount() int {
	return len(d.answers)
}

// ValidWordCount returns the size of the accepted-guess set.
func (d *Dictionary) ValidWordCount() int {
	return len(d.validWords)
}

// DailyNumberFor returns the 1-based daily challenge number for the UTC
// day containing t. Times before the epoch clamp to day 1.
func DailyNumberFor(t time.Time) int {
	days := int(t.UTC().Sub(dailyEpoch) / (24 * time.Hour))
	if days < 0 {
		return 1
	}
	return days + 1
}

// CurrentDailyNumber returns today's daily challenge number.
func CurrentDailyNumber() int {
	return DailyNumberFor(time.Now())
}
