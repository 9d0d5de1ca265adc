// Package store persists finished games and daily-challenge completions to
// PostgreSQL. The database is optional: without one the server runs
// memory-only and daily challenges are refused.
package store

import (
	"context"

	"wordclash-backend/internal/game"
)

// Store is the persistence surface the rest of the server sees.
type Store interface {
	// SaveGameRecord writes one finished game and its per-player results.
	SaveGameRecord(ctx context.Context, record game.GameRecord) error

	// SaveDailyCompletion records a scored daily attempt. Saving the same
	// (email, daily number) pair again is a no-op; the first result stands.
	SaveDailyCompletion(ctx context.Context, completion game.DailyCompletion) error

	// HasCompletedDaily reports whether the email already has a scored
	// completion for the given daily number.
	HasCompletedDaily(ctx context.Context, email string, dailyNumber int) (bool, error)

	// Ping verifies database connectivity for health reporting.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close()
}
