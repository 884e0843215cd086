package integration

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fparadis2/mox/internal/game"
	"github.com/fparadis2/mox/internal/game/replication"
	"github.com/fparadis2/mox/internal/lobby"
	"github.com/fparadis2/mox/internal/server"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestWatcherIntegration_WebSocketSpectator(t *testing.T) {
	env := newGameServerEnv(t, 33)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ws := httptest.NewServer(server.NewWebSocketHandler(env.games, env.lobby, 1<<16, zap.NewNop()).Mux())
	defer ws.Close()

	alice, _ := env.login(t, ctx, "alice", newEager().choose)
	bob, _ := env.login(t, ctx, "bob", newEager().choose)
	created, err := alice.CreateGame(ctx, "red", false)
	require.NoError(t, err)
	require.True(t, created.Success, created.Error)

	url := "ws" + strings.TrimPrefix(ws.URL, "http") + server.WatchPath + "?game=" + created.GameID
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close()

	joined, err := bob.JoinGame(ctx, created.GameID, "red")
	require.NoError(t, err)
	require.True(t, joined.Started)

	replica, view := game.NewReplica(game.Options{}, zap.NewNop())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Minute)))
	events := 0
	for {
		_, data, err := conn.ReadMessage()
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			break
		}
		require.NoError(t, err)
		ev := &structpb.Struct{}
		require.NoError(t, protojson.Unmarshal(data, ev))
		require.NoError(t, lobby.Apply(replica, ev))
		events++
	}
	assert.Positive(t, events)
	awaitGameOver(t, ctx, alice)

	require.NoError(t, env.host(t, created.GameID).View(func(g *game.Game) error {
		assert.Equal(t, game.Checksum(replication.Project(g.Objects, game.Visibility{}, replication.Spectator)), view.Checksum())
		return nil
	}))
}

func TestWatcherIntegration_StatsMatchTheGame(t *testing.T) {
	env := newGameServerEnv(t, 47)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	alice, _ := env.login(t, ctx, "alice", newEager().choose)
	bob, _ := env.login(t, ctx, "bob", newEager().choose)
	created, err := alice.CreateGame(ctx, "red", false)
	require.NoError(t, err)
	require.True(t, created.Success, created.Error)
	joined, err := bob.JoinGame(ctx, created.GameID, "red")
	require.NoError(t, err)
	require.True(t, joined.Started)
	awaitGameOver(t, ctx, alice)

	rec, err := env.store.LoadGame(ctx, created.GameID)
	require.NoError(t, err)
	require.Len(t, rec.Stats, 2)

	// Red decks gain no life, so every point below the start was lost.
	require.NoError(t, env.host(t, created.GameID).View(func(g *game.Game) error {
		start := g.Options().StartingLife
		for _, p := range g.Players() {
			name := g.PlayerName(p)
			assert.Equal(t, start-g.LifeOf(p), rec.Stats[name].LifeLost, name)
			assert.Positive(t, rec.Stats[name].CardsDrawn, name)
		}
		return nil
	}))
}
