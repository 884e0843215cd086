package server

import (
	"time"

	"github.com/fparadis2/mox/internal/lobby"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// GRPCOptions configure the gRPC server.
type GRPCOptions struct {
	MaxConcurrentStreams uint32
	// FeedBuffer bounds the events queued for a watcher.
	FeedBuffer int
}

// NewGRPCServer builds a gRPC server serving the replication and health
// services.
func NewGRPCServer(opts GRPCOptions, games *lobby.Registry, viewers Viewers, logger *zap.Logger) (*grpc.Server, *health.Server) {
	serverOpts := []grpc.ServerOption{
		grpc.ChainStreamInterceptor(
			StreamRecoveryInterceptor(logger),
			StreamLoggingInterceptor(logger),
		),
		grpc.ChainUnaryInterceptor(UnaryLoggingInterceptor(logger)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
	}
	if opts.MaxConcurrentStreams > 0 {
		serverOpts = append(serverOpts, grpc.MaxConcurrentStreams(opts.MaxConcurrentStreams))
	}
	s := grpc.NewServer(serverOpts...)

	RegisterReplicationServer(s, NewReplicationServer(games, viewers, opts.FeedBuffer, logger))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(Replication_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s, hs
}
