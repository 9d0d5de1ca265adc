package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"wordclash-backend/internal/config"
	"wordclash-backend/internal/game"
	"wordclash-backend/internal/logging"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *logging.Logger
}

// NewPostgres connects to PostgreSQL and verifies the connection.
func NewPostgres(ctx context.Context, cfg config.StoreConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Postgres{
		pool:   pool,
		logger: logging.CreateLogger("store.postgres"),
	}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// SaveGameRecord writes the game row and all player rows in one
// transaction so a game never persists half-recorded.
func (p *Postgres) SaveGameRecord(ctx context.Context, record game.GameRecord) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction for game %s: %w", record.GameID, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO game_results (id, room_code, game_mode, word_mode, hard_mode, target_word, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.GameID, record.RoomCode, string(record.GameMode), string(record.WordMode),
		record.HardMode, record.TargetWord, record.StartedAt, record.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting game %s: %w", record.GameID, err)
	}

	for _, result := range record.Results {
		var email *string
		if result.Email != "" {
			email = &result.Email
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO game_player_results (game_id, position, player_name, player_email, won, guess_count, time_ms, score, target_word)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			record.GameID, result.Position, result.Name, email,
			result.Won, result.GuessCount, result.TimeMs, result.Score, result.TargetWord,
		)
		if err != nil {
			return fmt.Errorf("inserting result for %s in game %s: %w", result.Name, record.GameID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit game %s: %w", record.GameID, err)
	}

	p.logger.Debug("game record saved",
		"gameId", record.GameID,
		"roomCode", record.RoomCode,
		"players", len(record.Results))
	return nil
}

// SaveDailyCompletion inserts the attempt; a conflicting (email, daily
// number) row means the player already completed it and the insert is
// silently skipped.
func (p *Postgres) SaveDailyCompletion(ctx context.Context, completion game.DailyCompletion) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO daily_completions (email, daily_number, won, guess_count, time_ms, score)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (email, daily_number) DO NOTHING`,
		completion.Email, completion.DailyNumber, completion.Won,
		completion.GuessCount, completion.TimeMs, completion.Score,
	)
	if err != nil {
		return fmt.Errorf("inserting daily completion %d for %s: %w", completion.DailyNumber, completion.Email, err)
	}
	return nil
}

func (p *Postgres) HasCompletedDaily(ctx context.Context, email string, dailyNumber int) (bool, error) {
	var completed bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM daily_completions WHERE email = $1 AND daily_number = $2)`,
		email, dailyNumber,
	).Scan(&completed)
	if err != nil {
		return false, fmt.Errorf("querying daily completion %d for %s: %w", dailyNumber, email, err)
	}
	return completed, nil
}
