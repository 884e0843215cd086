// Package server exposes hosted games to watchers over gRPC and WebSocket.
// Both surfaces stream the replication feed of a game as seen by the
// caller: the seated player for a session that plays in the game, a
// spectator otherwise.
package server

import (
	"context"
	"errors"
	"net"
	"strconv"

	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/replication"
	"github.com/fparadis2/mox/internal/lobby"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Metadata keys. Watch answers with the viewer it resolved in the
// ViewerHeader response header.
const (
	SessionIDHeader = "x-session-id"
	ViewerHeader    = "x-viewer"
)

const replicationWatchMethod = "/mox.v1.Replication/Watch"

// ReplicationServer streams game feeds.
type ReplicationServer interface {
	// Watch takes {"game": id} and streams feed events until the game ends.
	Watch(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

func _Replication_Watch_Handler(srv any, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ReplicationServer).Watch(m, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// Replication_ServiceDesc describes mox.v1.Replication. Messages are
// google.protobuf.Struct values.
var Replication_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "mox.v1.Replication",
	HandlerType: (*ReplicationServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       _Replication_Watch_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "mox/v1/replication.proto",
}

// RegisterReplicationServer registers srv on s.
func RegisterReplicationServer(s grpc.ServiceRegistrar, srv ReplicationServer) {
	s.RegisterService(&Replication_ServiceDesc, srv)
}

// Viewers resolves the player a session watches a game as.
type Viewers interface {
	ViewerFor(sessionID, gameID string) (object.ID, bool)
}

// replicationServer implements ReplicationServer over the hosted games.
type replicationServer struct {
	games   *lobby.Registry
	viewers Viewers
	buffer  int
	logger  *zap.Logger
}

// NewReplicationServer creates the replication service. viewers may be nil,
// in which case every watcher is a spectator. buffer bounds the events
// queued for a slow watcher.
func NewReplicationServer(games *lobby.Registry, viewers Viewers, buffer int, logger *zap.Logger) ReplicationServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &replicationServer{
		games:   games,
		viewers: viewers,
		buffer:  buffer,
		logger:  logger,
	}
}

func (s *replicationServer) Watch(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	gameID := req.GetFields()["game"].GetStringValue()
	if gameID == "" {
		return status.Error(codes.InvalidArgument, "game is required")
	}

	viewer := s.viewer(sessionIDFromContext(ctx), gameID)
	feed, host, err := openFeed(s.games, gameID, viewer, s.buffer)
	if err != nil {
		return err
	}
	defer feed.Close()

	if err := stream.SendHeader(metadata.Pairs(ViewerHeader, strconv.Itoa(int(viewer)))); err != nil {
		return err
	}
	s.logger.Info("watcher attached",
		zap.String("game_id", gameID),
		zap.Int("viewer", int(viewer)),
		zap.String("host", extractHostFromContext(ctx)),
	)
	err = pump(ctx, host, feed, stream.Send)
	if errors.Is(err, errFeedDropped) {
		return status.Error(codes.ResourceExhausted, "watcher fell behind")
	}
	return err
}

func (s *replicationServer) viewer(sessionID, gameID string) object.ID {
	if s.viewers == nil || sessionID == "" {
		return replication.Spectator
	}
	if p, ok := s.viewers.ViewerFor(sessionID, gameID); ok {
		return p
	}
	return replication.Spectator
}

var errFeedDropped = errors.New("feed dropped")

// openFeed attaches a feed of a hosted game, translating failures to gRPC
// status errors.
func openFeed(games *lobby.Registry, gameID string, viewer object.ID, buffer int) (*lobby.Feed, *lobby.Host, error) {
	host, ok := games.Get(gameID)
	if !ok {
		return nil, nil, status.Errorf(codes.NotFound, "game %s not found", gameID)
	}
	feed, err := host.Watch(viewer, buffer)
	if err != nil {
		if errors.Is(err, lobby.ErrHostClosed) {
			return nil, nil, status.Errorf(codes.NotFound, "game %s not found", gameID)
		}
		return nil, nil, status.Errorf(codes.Unavailable, "watch game %s: %v", gameID, err)
	}
	return feed, host, nil
}

// pump forwards feed events to send until the feed closes, the game ends
// and the queued events are flushed, or ctx is done.
func pump(ctx context.Context, host *lobby.Host, feed *lobby.Feed, send func(*structpb.Struct) error) error {
	events := feed.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if host.State() == lobby.HostEnded {
					return nil
				}
				return errFeedDropped
			}
			if err := send(ev); err != nil {
				return err
			}
		case <-host.Ended():
			for {
				select {
				case ev, ok := <-events:
					if !ok {
						return nil
					}
					if err := send(ev); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// WatchGame opens a replication stream of a game. Set SessionIDHeader in
// the outgoing metadata of ctx to watch as a seated player.
func WatchGame(ctx context.Context, cc grpc.ClientConnInterface, gameID string, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := cc.NewStream(ctx, &Replication_ServiceDesc.Streams[0], replicationWatchMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"game": structpb.NewStringValue(gameID),
	}}
	if err := x.ClientStream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// WithSession attaches a lobby session to outgoing calls.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, SessionIDHeader, sessionID)
}

func sessionIDFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(SessionIDHeader); len(values) > 0 {
		return values[0]
	}
	return ""
}

// extractHostFromContext extracts the client host from gRPC context
func extractHostFromContext(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != net.Addr(nil) {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
