// Package repository stores finished games: who played, who won, per player
// statistics and the replay log.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fparadis2/mox/internal/game/watchers"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no game has the requested id.
var ErrNotFound = errors.New("game not found")

// GameRecord is a finished game.
type GameRecord struct {
	ID      string
	Players []string
	// Winner is empty for a draw.
	Winner  string
	Turns   int
	Stats   map[string]watchers.PlayerStats
	Replay  []byte
	EndedAt time.Time
}

// Store persists game records. RecentGames leaves Replay empty.
type Store interface {
	SaveGame(ctx context.Context, rec GameRecord) error
	LoadGame(ctx context.Context, id string) (GameRecord, error)
	RecentGames(ctx context.Context, limit int) ([]GameRecord, error)
	Close() error
}

// Open connects to the store of driver, "postgres" or "sqlite", and creates
// the schema if needed.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch driver {
	case "postgres", "pgx":
		return OpenPostgres(ctx, dsn, logger)
	case "sqlite", "":
		return OpenSQLite(ctx, dsn, logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

func validate(rec GameRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("game id is required")
	}
	if len(rec.Players) == 0 {
		return fmt.Errorf("game %s has no players", rec.ID)
	}
	return nil
}

func endedAt(rec GameRecord) time.Time {
	if rec.EndedAt.IsZero() {
		return time.Now().UTC()
	}
	return rec.EndedAt.UTC()
}
