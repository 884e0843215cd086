package game

import (
	"bytes"
	"testing"

	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// playedGame returns a game with a few turns worth of commands in its log.
func playedGame(t *testing.T) *testGame {
	t.Helper()
	tg := newTestGame(t, []string{"Mountain", "Lightning Bolt", "Glorious Anthem"}, []string{"Grizzly Bears", "Forest"})
	tg.onBattlefield(t, tg.p1, "Glorious Anthem")
	bears := tg.onBattlefield(t, tg.p2, "Grizzly Bears")
	tg.mainPhase(t, tg.p1)
	require.NoError(t, tg.Draw(tg.p1, 2))
	require.NoError(t, tg.PlayLand(tg.p1, tg.card(t, tg.p1, "Mountain")))
	require.NoError(t, tg.Cast(tg.p1, tg.card(t, tg.p1, "Lightning Bolt"), []object.ID{bears}))
	require.NoError(t, tg.ResolveTop())
	_, err := tg.CheckStateBasedActions()
	require.NoError(t, err)
	require.Equal(t, rules.ZoneGraveyard, tg.ZoneOf(bears))
	return tg
}

func TestReplayRoundTrip(t *testing.T) {
	tg := playedGame(t)
	replay, err := CaptureReplay("game-1", tg.Game)
	require.NoError(t, err)
	assert.Equal(t, len(tg.Transactions.Commands()), replay.Size())

	data, err := replay.Bytes()
	require.NoError(t, err)
	loaded, err := ReadReplay(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "game-1", loaded.GameID)
	assert.Equal(t, tg.Options(), loaded.Options)
	assert.Equal(t, replay.Checksum, loaded.Checksum)

	player, err := loaded.Play(zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Zero(t, player.Position())
	assert.Zero(t, player.Game.Objects.Len())

	require.NoError(t, player.Seek(player.Len()))
	assert.Equal(t, tg.Checksum(), player.Game.Checksum())
	assert.Equal(t, 20, player.Game.LifeOf(tg.p2))

	ok, err := player.Next()
	require.NoError(t, err)
	assert.False(t, ok, "already at the end")

	ok, err = player.Previous()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, player.Len()-1, player.Position())
	assert.NotEqual(t, tg.Checksum(), player.Game.Checksum())

	require.NoError(t, player.Seek(-3))
	assert.Zero(t, player.Position())
}

func TestReplayRejectsTamperedLog(t *testing.T) {
	tg := playedGame(t)
	replay, err := CaptureReplay("game-2", tg.Game)
	require.NoError(t, err)
	replay.Frames = replay.Frames[:len(replay.Frames)-1]

	_, err = replay.Play(zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "checksum mismatch")
}

func TestReplayRecorderSavesToDisk(t *testing.T) {
	tg := playedGame(t)
	dir := t.TempDir()
	recorder := NewReplayRecorder(zaptest.NewLogger(t), dir)

	replay, err := recorder.Capture("game-3", tg.Game)
	require.NoError(t, err)
	got, ok := recorder.GetReplay("game-3")
	require.True(t, ok)
	assert.Same(t, replay, got)

	require.NoError(t, recorder.SaveReplay("game-3"))
	_, ok = recorder.GetReplay("game-3")
	assert.False(t, ok, "saved replays leave memory")
	assert.Error(t, recorder.SaveReplay("game-3"))

	loaded, err := recorder.LoadReplay("game-3")
	require.NoError(t, err)
	assert.Equal(t, replay.Frames, loaded.Frames)

	recorder.ClearReplay("game-3")
	_, err = recorder.LoadReplay("missing")
	assert.Error(t, err)
}
