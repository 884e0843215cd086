package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fparadis2/mox/internal/config"
	"github.com/fparadis2/mox/internal/game"
	"github.com/fparadis2/mox/internal/game/ai"
	"github.com/fparadis2/mox/internal/lobby"
	"github.com/fparadis2/mox/internal/repository"
	"github.com/fparadis2/mox/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting mox server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("mox server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// Game store
	var recorder lobby.Recorder
	if cfg.Database.DSN != "" {
		store, err := repository.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
		if err != nil {
			return fmt.Errorf("open game store: %w", err)
		}
		defer store.Close()
		recorder = store
	} else {
		logger.Warn("no database configured, finished games are not saved")
	}

	var replays *game.ReplayRecorder
	if cfg.ReplayDir != "" {
		replays = game.NewReplayRecorder(logger, cfg.ReplayDir)
	}

	games := lobby.NewRegistry(logger)
	defer games.Close()

	lobbyServer := lobby.NewServer(lobby.Options{
		Game: game.Options{
			StartingLife: cfg.Game.StartingLife,
			HandSize:     cfg.Game.HandSize,
		},
		Seats: cfg.Game.Seats,
		AI: ai.Config{
			Depth:    cfg.AI.Depth,
			Timeout:  cfg.AI.Timeout,
			MaxNodes: cfg.AI.MaxNodes,
		},
		AllowRegistration: cfg.Game.AllowRegistration,
		ChoiceTimeout:     cfg.Game.ChoiceTimeout,
		Linger:            cfg.Game.Linger,
		Replays:           replays,
	}, games, recorder, logger)
	for user, password := range cfg.Game.Users {
		if err := lobbyServer.AddUser(user, password); err != nil {
			return err
		}
	}
	defer lobbyServer.Close()

	grpcServer, health := server.NewGRPCServer(server.GRPCOptions{
		MaxConcurrentStreams: uint32(cfg.Server.GRPC.MaxConcurrentStreams),
		FeedBuffer:           cfg.Server.FeedBuffer,
	}, games, lobbyServer, logger)

	wsServer := &http.Server{
		Addr:              cfg.Server.WebSocket.Address,
		Handler:           server.NewWebSocketHandler(games, lobbyServer, cfg.Server.FeedBuffer, logger).Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lobbyLis, err := net.Listen("tcp", cfg.Server.Lobby.Address)
	if err != nil {
		return fmt.Errorf("listen lobby: %w", err)
	}
	grpcLis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		lobbyLis.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return lobbyServer.Serve(gctx, lobbyLis)
	})
	g.Go(func() error {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		return grpcServer.Serve(grpcLis)
	})
	g.Go(func() error {
		logger.Info("starting WebSocket server", zap.String("address", wsServer.Addr))
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	logger.Info("mox server initialized",
		zap.String("lobby_address", cfg.Server.Lobby.Address),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
		zap.Int("seats", cfg.Game.Seats),
	)

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gracefully...")
		health.Shutdown()
		lobbyServer.Close()
		games.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("websocket shutdown failed", zap.Error(err))
		}
		grpcServer.GracefulStop()
		return nil
	})

	return g.Wait()
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
