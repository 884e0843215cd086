package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fparadis2/mox/internal/game/watchers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func record(id string, ended time.Time) GameRecord {
	return GameRecord{
		ID:      id,
		Players: []string{"alice", "bob"},
		Winner:  "alice",
		Turns:   9,
		Stats: map[string]watchers.PlayerStats{
			"alice": {SpellsCast: 3, CardsDrawn: 11},
			"bob":   {LifeLost: 20, CreaturesLost: 2},
		},
		Replay:  []byte{0x1f, 0x8b, 0x08},
		EndedAt: ended,
	}
}

// exercise runs the checks every Store must pass.
func exercise(t *testing.T, store Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.LoadGame(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.Error(t, store.SaveGame(ctx, GameRecord{}))
	require.Error(t, store.SaveGame(ctx, GameRecord{ID: "empty"}))

	first := record("g1", base)
	require.NoError(t, store.SaveGame(ctx, first))
	got, err := store.LoadGame(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, first, got)

	second := record("g2", base.Add(time.Hour))
	second.Winner = ""
	second.Stats = nil
	require.NoError(t, store.SaveGame(ctx, second))

	first.Turns = 12
	require.NoError(t, store.SaveGame(ctx, first), "saving twice overwrites")
	got, err = store.LoadGame(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 12, got.Turns)

	recent, err := store.RecentGames(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "g2", recent[0].ID)
	assert.Equal(t, "", recent[0].Winner)
	assert.Empty(t, recent[0].Stats)
	assert.Equal(t, "g1", recent[1].ID)
	assert.Nil(t, recent[1].Replay)

	recent, err = store.RecentGames(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestSQLiteStore(t *testing.T) {
	store, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "mox.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	exercise(t, store)
}

func TestSQLiteInMemory(t *testing.T) {
	store, err := OpenSQLite(context.Background(), ":memory:", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.SaveGame(context.Background(), record("g1", time.Now())))
	_, err = store.LoadGame(context.Background(), "g1")
	require.NoError(t, err)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("MOX_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MOX_TEST_POSTGRES_DSN not set")
	}
	store, err := Open(context.Background(), "postgres", dsn, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	exercise(t, store)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x", nil)
	assert.Error(t, err)
}
