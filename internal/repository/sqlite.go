package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS games (
	id        TEXT PRIMARY KEY,
	players   TEXT NOT NULL,
	winner    TEXT NOT NULL DEFAULT '',
	turns     INTEGER NOT NULL,
	stats     TEXT NOT NULL,
	replay    BLOB NOT NULL,
	ended_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS games_ended_at ON games (ended_at DESC);
`

// SQLite stores games in a SQLite file.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens the database at path, ":memory:" included.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	logger.Info("opened sqlite store", zap.String("path", path))
	return &SQLite{db: db, logger: logger}, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func (s *SQLite) SaveGame(ctx context.Context, rec GameRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	players, err := json.Marshal(rec.Players)
	if err != nil {
		return fmt.Errorf("encode players: %w", err)
	}
	stats, err := json.Marshal(statsOf(rec))
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO games (id, players, winner, turns, stats, replay, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			players = excluded.players,
			winner = excluded.winner,
			turns = excluded.turns,
			stats = excluded.stats,
			replay = excluded.replay,
			ended_at = excluded.ended_at
	`, rec.ID, string(players), rec.Winner, rec.Turns, string(stats), replayOf(rec), toMillis(endedAt(rec)))
	if err != nil {
		return fmt.Errorf("save game %s: %w", rec.ID, err)
	}
	s.logger.Debug("saved game", zap.String("game_id", rec.ID), zap.Int("replay_bytes", len(rec.Replay)))
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, withReplay bool) (GameRecord, error) {
	var (
		rec            GameRecord
		players, stats string
		ended          int64
	)
	dest := []any{&rec.ID, &players, &rec.Winner, &rec.Turns, &stats, &ended}
	if withReplay {
		dest = append(dest, &rec.Replay)
	}
	if err := row.Scan(dest...); err != nil {
		return GameRecord{}, err
	}
	if err := json.Unmarshal([]byte(players), &rec.Players); err != nil {
		return GameRecord{}, fmt.Errorf("decode players: %w", err)
	}
	if err := json.Unmarshal([]byte(stats), &rec.Stats); err != nil {
		return GameRecord{}, fmt.Errorf("decode stats: %w", err)
	}
	rec.EndedAt = fromMillis(ended)
	return rec, nil
}

func (s *SQLite) LoadGame(ctx context.Context, id string) (GameRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, players, winner, turns, stats, ended_at, replay FROM games WHERE id = ?
	`, id)
	rec, err := scanRecord(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return GameRecord{}, fmt.Errorf("load game %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return GameRecord{}, fmt.Errorf("load game %s: %w", id, err)
	}
	return rec, nil
}

func (s *SQLite) RecentGames(ctx context.Context, limit int) ([]GameRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, players, winner, turns, stats, ended_at FROM games
		ORDER BY ended_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var out []GameRecord
	for rows.Next() {
		rec, err := scanRecord(rows, false)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return out, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
