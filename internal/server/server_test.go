package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fparadis2/mox/internal/game"
	"github.com/fparadis2/mox/internal/game/flow"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/replication"
	"github.com/fparadis2/mox/internal/lobby"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const testBuffer = 1 << 16

type seatedViewers map[string]object.ID

func (v seatedViewers) ViewerFor(sessionID, _ string) (object.ID, bool) {
	p, ok := v[sessionID]
	return p, ok
}

func dead(object.ID) flow.Controller { return flow.DeadController{} }

// finishedGame hosts a game between two passive players and plays it out.
func finishedGame(t *testing.T, games *lobby.Registry) (*lobby.Host, object.ID, object.ID) {
	t.Helper()
	h, err := games.Create(lobby.HostOptions{Game: game.Options{Seed: 11}})
	require.NoError(t, err)
	p1, err := h.Seat("alice", "red", dead)
	require.NoError(t, err)
	p2, err := h.Seat("bob", "white", dead)
	require.NoError(t, err)
	require.NoError(t, h.Start())
	select {
	case <-h.Ended():
	case <-time.After(30 * time.Second):
		t.Fatal("game did not end")
	}
	return h, p1, p2
}

func projection(t *testing.T, h *lobby.Host, viewer object.ID) string {
	t.Helper()
	var sum string
	require.NoError(t, h.View(func(g *game.Game) error {
		sum = game.Checksum(replication.Project(g.Objects, game.Visibility{}, viewer))
		return nil
	}))
	return sum
}

func startGRPC(t *testing.T, games *lobby.Registry, viewers Viewers) *grpc.ClientConn {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv, hs := NewGRPCServer(GRPCOptions{FeedBuffer: testBuffer}, games, viewers, zap.NewNop())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() {
		hs.Shutdown()
		srv.Stop()
	})

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// replay applies a stream of feed events to a fresh replica.
func replay(t *testing.T, next func() (*structpb.Struct, error)) string {
	t.Helper()
	replica, view := game.NewReplica(game.Options{}, zaptest.NewLogger(t))
	events := 0
	for {
		ev, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		require.NoError(t, lobby.Apply(replica, ev))
		events++
	}
	assert.Positive(t, events)
	return view.Checksum()
}

func TestWatchOverGRPC(t *testing.T) {
	games := lobby.NewRegistry(zap.NewNop())
	t.Cleanup(games.Close)
	h, p1, p2 := finishedGame(t, games)
	conn := startGRPC(t, games, seatedViewers{"s1": p1})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	t.Run("spectator", func(t *testing.T) {
		stream, err := WatchGame(ctx, conn, h.ID)
		require.NoError(t, err)
		got := replay(t, stream.Recv)
		assert.Equal(t, projection(t, h, replication.Spectator), got)
	})

	t.Run("seated player", func(t *testing.T) {
		stream, err := WatchGame(WithSession(ctx, "s1"), conn, h.ID)
		require.NoError(t, err)
		got := replay(t, stream.Recv)
		assert.Equal(t, projection(t, h, p1), got)
		assert.NotEqual(t, projection(t, h, p2), got)
	})

	t.Run("unknown session watches as spectator", func(t *testing.T) {
		stream, err := WatchGame(WithSession(ctx, "nobody"), conn, h.ID)
		require.NoError(t, err)
		assert.Equal(t, projection(t, h, replication.Spectator), replay(t, stream.Recv))
	})
}

func TestWatchErrors(t *testing.T) {
	games := lobby.NewRegistry(zap.NewNop())
	t.Cleanup(games.Close)
	conn := startGRPC(t, games, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := WatchGame(ctx, conn, "")
	require.NoError(t, err)
	_, err = stream.Recv()
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	stream, err = WatchGame(ctx, conn, "missing")
	require.NoError(t, err)
	_, err = stream.Recv()
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestHealth(t *testing.T) {
	games := lobby.NewRegistry(zap.NewNop())
	t.Cleanup(games.Close)
	conn := startGRPC(t, games, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{
		Service: Replication_ServiceDesc.ServiceName,
	})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := StreamRecoveryInterceptor(zaptest.NewLogger(t))
	err := interceptor(nil, nil, &grpc.StreamServerInfo{FullMethod: replicationWatchMethod},
		func(any, grpc.ServerStream) error { panic("boom") })
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestWatchOverWebSocket(t *testing.T) {
	games := lobby.NewRegistry(zap.NewNop())
	t.Cleanup(games.Close)
	h, p1, _ := finishedGame(t, games)

	srv := httptest.NewServer(NewWebSocketHandler(games, seatedViewers{"s1": p1}, testBuffer, zap.NewNop()).Mux())
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + WatchPath

	conn, _, err := websocket.DefaultDialer.Dial(base+"?game="+h.ID+"&session=s1", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(20*time.Second)))

	got := replay(t, func() (*structpb.Struct, error) {
		kind, data, err := conn.ReadMessage()
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		require.Equal(t, websocket.TextMessage, kind)
		ev := &structpb.Struct{}
		return ev, protojson.Unmarshal(data, ev)
	})
	assert.Equal(t, projection(t, h, p1), got)

	_, resp, err := websocket.DefaultDialer.Dial(base+"?game=missing", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
