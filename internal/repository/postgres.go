package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fparadis2/mox/internal/game/watchers"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS games (
	id        TEXT PRIMARY KEY,
	players   TEXT[] NOT NULL,
	winner    TEXT NOT NULL DEFAULT '',
	turns     INTEGER NOT NULL,
	stats     JSONB NOT NULL,
	replay    BYTEA NOT NULL,
	ended_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS games_ended_at ON games (ended_at DESC);
`

// Postgres stores games in PostgreSQL.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ Store = (*Postgres)(nil)

// OpenPostgres connects to dsn and creates the schema.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	logger.Info("connected to postgres")
	return &Postgres{pool: pool, logger: logger}, nil
}

func (p *Postgres) SaveGame(ctx context.Context, rec GameRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO games (id, players, winner, turns, stats, replay, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			players = EXCLUDED.players,
			winner = EXCLUDED.winner,
			turns = EXCLUDED.turns,
			stats = EXCLUDED.stats,
			replay = EXCLUDED.replay,
			ended_at = EXCLUDED.ended_at
	`, rec.ID, rec.Players, rec.Winner, rec.Turns, statsOf(rec), replayOf(rec), endedAt(rec))
	if err != nil {
		return fmt.Errorf("save game %s: %w", rec.ID, err)
	}
	p.logger.Debug("saved game", zap.String("game_id", rec.ID), zap.Int("replay_bytes", len(rec.Replay)))
	return nil
}

func (p *Postgres) LoadGame(ctx context.Context, id string) (GameRecord, error) {
	rec := GameRecord{ID: id}
	err := p.pool.QueryRow(ctx, `
		SELECT players, winner, turns, stats, replay, ended_at FROM games WHERE id = $1
	`, id).Scan(&rec.Players, &rec.Winner, &rec.Turns, &rec.Stats, &rec.Replay, &rec.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return GameRecord{}, fmt.Errorf("load game %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return GameRecord{}, fmt.Errorf("load game %s: %w", id, err)
	}
	rec.EndedAt = rec.EndedAt.UTC()
	return rec, nil
}

func (p *Postgres) RecentGames(ctx context.Context, limit int) ([]GameRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, players, winner, turns, stats, ended_at FROM games
		ORDER BY ended_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var out []GameRecord
	for rows.Next() {
		var rec GameRecord
		if err := rows.Scan(&rec.ID, &rec.Players, &rec.Winner, &rec.Turns, &rec.Stats, &rec.EndedAt); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		rec.EndedAt = rec.EndedAt.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return out, nil
}

// SaveBatch saves records in one transaction.
func (p *Postgres) SaveBatch(ctx context.Context, recs []GameRecord) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, rec := range recs {
		if err := validate(rec); err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO games (id, players, winner, turns, stats, replay, ended_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, rec.ID, rec.Players, rec.Winner, rec.Turns, statsOf(rec), replayOf(rec), endedAt(rec))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save batch: %w", err)
	}
	return tx.Commit(ctx)
}

func statsOf(rec GameRecord) map[string]watchers.PlayerStats {
	if rec.Stats == nil {
		return map[string]watchers.PlayerStats{}
	}
	return rec.Stats
}

func replayOf(rec GameRecord) []byte {
	if rec.Replay == nil {
		return []byte{}
	}
	return rec.Replay
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
