package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fparadis2/mox/internal/lobby"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WatchPath is the WebSocket endpoint streaming a game feed. Query
// parameters: game (required) and session.
const WatchPath = "/ws/watch"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler serves game feeds as JSON text messages, one per event.
type WebSocketHandler struct {
	games   *lobby.Registry
	viewers Viewers
	buffer  int
	logger  *zap.Logger
}

// NewWebSocketHandler creates the WebSocket feed handler. viewers may be
// nil.
func NewWebSocketHandler(games *lobby.Registry, viewers Viewers, buffer int, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{games: games, viewers: viewers, buffer: buffer, logger: logger}
}

// Mux routes WatchPath to h.
func (h *WebSocketHandler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(WatchPath, h)
	return mux
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("game")
	if gameID == "" {
		http.Error(w, "game is required", http.StatusBadRequest)
		return
	}
	rs := &replicationServer{games: h.games, viewers: h.viewers}
	viewer := rs.viewer(r.URL.Query().Get("session"), gameID)
	feed, host, err := openFeed(h.games, gameID, viewer, h.buffer)
	if err != nil {
		http.Error(w, status.Convert(err).Message(), http.StatusNotFound)
		return
	}
	defer feed.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	logger := h.logger.With(zap.String("game_id", gameID), zap.Int("viewer", int(viewer)))
	logger.Info("websocket watcher attached", zap.String("remote", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go readPump(conn, cancel)
	go pingPump(ctx, conn)

	err = pump(ctx, host, feed, func(ev *structpb.Struct) error {
		data, err := protojson.Marshal(ev)
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, data)
	})

	code, reason := websocket.CloseNormalClosure, "game over"
	switch {
	case errors.Is(err, errFeedDropped):
		code, reason = websocket.CloseTryAgainLater, "watcher fell behind"
	case err != nil:
		logger.Debug("websocket write failed", zap.Error(err))
		return
	case ctx.Err() != nil:
		return
	}
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// readPump discards client messages and cancels when the peer goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func pingPump(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
