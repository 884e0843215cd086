// Package lobby hosts games for remote players. Players connect over a
// transport channel, log in, then create or join games; every choice of a
// game is sent to its player as a request.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/fparadis2/mox/internal/game"
	"github.com/fparadis2/mox/internal/game/ai"
	"github.com/fparadis2/mox/internal/game/flow"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/transport"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/protobuf/types/known/structpb"
)

// AIName is the player name of computer opponents.
const AIName = "computer"

// Options configure the lobby.
type Options struct {
	Game  game.Options
	Seats int
	AI    ai.Config
	// AllowRegistration creates unknown users on their first login.
	AllowRegistration bool
	// ChoiceTimeout bounds the time a player has to answer a choice.
	ChoiceTimeout time.Duration
	// Linger is how long a finished game stays listed and watchable.
	Linger time.Duration
	// Replays is optional.
	Replays *game.ReplayRecorder
}

// Session is a logged in user.
type Session struct {
	ID   string
	User string

	channel *transport.Channel
	seat    *seat
}

type seat struct {
	host   *Host
	player object.ID
}

type connection struct {
	channel *transport.Channel
	session *Session
}

// Server is the lobby. Users, sessions and seats are guarded by
// connectionLock.
type Server struct {
	opts     Options
	games    *Registry
	recorder Recorder
	logger   *zap.Logger

	connectionLock sync.Mutex
	users          map[string][]byte
	sessions       map[string]*Session
	online         map[string]*Session
	connections    map[*connection]struct{}
}

// NewServer creates a lobby hosting its games in games. recorder may be
// nil.
func NewServer(opts Options, games *Registry, recorder Recorder, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ChoiceTimeout <= 0 {
		opts.ChoiceTimeout = 5 * time.Minute
	}
	if opts.Linger <= 0 {
		opts.Linger = time.Minute
	}
	return &Server{
		opts:        opts,
		games:       games,
		recorder:    recorder,
		logger:      logger,
		users:       make(map[string][]byte),
		sessions:    make(map[string]*Session),
		online:      make(map[string]*Session),
		connections: make(map[*connection]struct{}),
	}
}

// Games returns the registry of hosted games.
func (s *Server) Games() *Registry {
	return s.games
}

// AddUser registers a user.
func (s *Server) AddUser(name, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password of %s: %w", name, err)
	}
	s.connectionLock.Lock()
	defer s.connectionLock.Unlock()
	if _, exists := s.users[name]; exists {
		return fmt.Errorf("user %s already exists", name)
	}
	s.users[name] = hash
	return nil
}

// Online returns the number of logged in users.
func (s *Server) Online() int {
	s.connectionLock.Lock()
	defer s.connectionLock.Unlock()
	return len(s.online)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	s.logger.Info("lobby listening", zap.String("address", ln.Addr().String()))
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.ServeConn(ctx, conn)
	}
}

// ServeConn serves one client until it disconnects.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	c := &connection{}
	c.channel = transport.NewChannel(conn, s.router(c), s.logger)

	s.connectionLock.Lock()
	s.connections[c] = struct{}{}
	s.connectionLock.Unlock()

	s.logger.Debug("client connected", zap.String("remote", conn.RemoteAddr().String()))
	if err := c.channel.Serve(ctx); err != nil {
		s.logger.Warn("connection failed", zap.Error(err))
	}
	s.logout(c)

	s.connectionLock.Lock()
	delete(s.connections, c)
	s.connectionLock.Unlock()
}

// Close disconnects every client.
func (s *Server) Close() {
	s.connectionLock.Lock()
	conns := make([]*connection, 0, len(s.connections))
	for c := range s.connections {
		conns = append(conns, c)
	}
	s.connectionLock.Unlock()
	for _, c := range conns {
		c.channel.Close()
	}
}

func (s *Server) router(c *connection) *transport.Router {
	return transport.NewRouter().
		OnRequest(MethodLogin, func(_ context.Context, body *structpb.Struct) (*structpb.Struct, error) {
			return s.login(c, body).toStruct(), nil
		}).
		OnRequest(MethodLogout, func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
			s.logout(c)
			return &structpb.Struct{}, nil
		}).
		OnRequest(MethodListGames, func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
			return s.listGames(), nil
		}).
		OnRequest(MethodCreateGame, func(_ context.Context, body *structpb.Struct) (*structpb.Struct, error) {
			return s.createGame(c, body).toStruct(), nil
		}).
		OnRequest(MethodJoinGame, func(_ context.Context, body *structpb.Struct) (*structpb.Struct, error) {
			return s.joinGame(c, body).toStruct(), nil
		})
}

func (s *Server) login(c *connection, body *structpb.Struct) LoginResult {
	user := strings.TrimSpace(body.GetFields()["user"].GetStringValue())
	password := body.GetFields()["password"].GetStringValue()
	if user == "" || password == "" {
		return LoginResult{Error: "user and password are required"}
	}

	s.connectionLock.Lock()
	if c.session != nil {
		s.connectionLock.Unlock()
		return LoginResult{Error: "already logged in"}
	}
	hash, known := s.users[user]
	s.connectionLock.Unlock()

	switch {
	case known:
		if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
			s.logger.Info("login rejected", zap.String("user", user))
			return LoginResult{Error: "invalid user or password"}
		}
	case s.opts.AllowRegistration:
		if err := s.AddUser(user, password); err != nil {
			return LoginResult{Error: err.Error()}
		}
	default:
		return LoginResult{Error: "invalid user or password"}
	}

	s.connectionLock.Lock()
	defer s.connectionLock.Unlock()
	if _, busy := s.online[user]; busy {
		return LoginResult{Error: "user already connected"}
	}
	sess := &Session{ID: uuid.New().String(), User: user, channel: c.channel}
	s.sessions[sess.ID] = sess
	s.online[user] = sess
	c.session = sess
	s.logger.Info("user logged in", zap.String("user", user), zap.String("session_id", sess.ID))
	return LoginResult{Success: true, SessionID: sess.ID}
}

// logout ends the session of c and hands its seat to the dead controller.
func (s *Server) logout(c *connection) {
	s.connectionLock.Lock()
	sess := c.session
	c.session = nil
	if sess != nil {
		delete(s.sessions, sess.ID)
		delete(s.online, sess.User)
	}
	s.connectionLock.Unlock()

	if sess == nil {
		return
	}
	if st := sess.seat; st != nil {
		if err := st.host.Disconnect(st.player); err != nil && !errors.Is(err, ErrHostClosed) {
			s.logger.Warn("failed to disconnect player", zap.Error(err))
		}
	}
	s.logger.Info("user logged out", zap.String("user", sess.User))
}

// drop logs out c after a failed send and closes its connection.
func (s *Server) drop(c *connection) {
	s.logout(c)
	c.channel.Close()
}

func (s *Server) session(c *connection) *Session {
	s.connectionLock.Lock()
	defer s.connectionLock.Unlock()
	return c.session
}

func (s *Server) listGames() *structpb.Struct {
	var games []*structpb.Value
	for _, h := range s.games.All() {
		info, err := h.Info()
		if err != nil {
			continue
		}
		games = append(games, infoToValue(info))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"games": structpb.NewListValue(&structpb.ListValue{Values: games}),
	}}
}

func (s *Server) remote(c *connection, h *Host) func(object.ID) flow.Controller {
	return func(player object.ID) flow.Controller {
		return &remoteController{
			host:      h,
			player:    player,
			requester: c.channel,
			timeout:   s.opts.ChoiceTimeout,
			onFailure: func(error) { s.drop(c) },
			logger:    s.logger.With(zap.String("game_id", h.ID), zap.Int("player", int(player))),
		}
	}
}

func (s *Server) computer(h *Host) func(object.ID) flow.Controller {
	return func(player object.ID) flow.Controller {
		return ai.NewController(s.opts.AI, s.logger.With(zap.String("game_id", h.ID), zap.Int("player", int(player))))
	}
}

func stringOr(body *structpb.Struct, field, fallback string) string {
	if v := body.GetFields()[field].GetStringValue(); v != "" {
		return v
	}
	return fallback
}

func (s *Server) createGame(c *connection, body *structpb.Struct) JoinResult {
	sess := s.session(c)
	if sess == nil {
		return failedJoin("not logged in")
	}
	if s.seated(sess) {
		return failedJoin("already seated in a game")
	}
	deck := stringOr(body, "deck", "red")
	if _, ok := game.Decks[deck]; !ok {
		return failedJoin(fmt.Sprintf("unknown deck %q", deck))
	}

	h, err := s.games.Create(HostOptions{
		Game:     s.opts.Game,
		Seats:    s.opts.Seats,
		Recorder: s.recorder,
		Replays:  s.opts.Replays,
	})
	if err != nil {
		s.logger.Error("failed to create game", zap.Error(err))
		return failedJoin("could not create game")
	}
	player, err := h.Seat(sess.User, deck, s.remote(c, h))
	if err != nil {
		s.games.Remove(h.ID)
		return failedJoin(err.Error())
	}
	s.sit(sess, h, player)

	if body.GetFields()["ai"].GetBoolValue() {
		aiDeck := stringOr(body, "ai_deck", "green-blue")
		for !h.Full() {
			if _, err := h.Seat(AIName, aiDeck, s.computer(h)); err != nil {
				s.unsit(sess)
				s.games.Remove(h.ID)
				return failedJoin(err.Error())
			}
		}
	}
	return JoinResult{Success: true, GameID: h.ID, Player: int(player), Started: s.startIfFull(h)}
}

func (s *Server) joinGame(c *connection, body *structpb.Struct) JoinResult {
	sess := s.session(c)
	if sess == nil {
		return failedJoin("not logged in")
	}
	if s.seated(sess) {
		return failedJoin("already seated in a game")
	}
	h, ok := s.games.Get(body.GetFields()["game"].GetStringValue())
	if !ok {
		return failedJoin("game not found")
	}
	player, err := h.Seat(sess.User, stringOr(body, "deck", "red"), s.remote(c, h))
	if err != nil {
		return failedJoin(err.Error())
	}
	s.sit(sess, h, player)
	return JoinResult{Success: true, GameID: h.ID, Player: int(player), Started: s.startIfFull(h)}
}

func (s *Server) seated(sess *Session) bool {
	s.connectionLock.Lock()
	defer s.connectionLock.Unlock()
	return sess.seat != nil
}

func (s *Server) sit(sess *Session, h *Host, player object.ID) {
	s.connectionLock.Lock()
	defer s.connectionLock.Unlock()
	sess.seat = &seat{host: h, player: player}
}

func (s *Server) unsit(sess *Session) {
	s.connectionLock.Lock()
	defer s.connectionLock.Unlock()
	sess.seat = nil
}

func (s *Server) startIfFull(h *Host) bool {
	if !h.Full() {
		return false
	}
	go s.awaitEnd(h)
	if err := h.Start(); err != nil {
		s.logger.Warn("failed to start game", zap.String("game_id", h.ID), zap.Error(err))
		return false
	}
	return true
}

// awaitEnd tells the seated players how the game ended, frees their seats
// and forgets the game after the linger delay.
func (s *Server) awaitEnd(h *Host) {
	select {
	case <-h.Ended():
	case <-h.quit:
		return
	}
	info, err := h.Info()
	if err != nil {
		return
	}
	over := GameOver{GameID: h.ID, Winner: info.Winner, Turns: info.Turn}

	var channels []*transport.Channel
	s.connectionLock.Lock()
	for _, sess := range s.sessions {
		if sess.seat != nil && sess.seat.host == h {
			sess.seat = nil
			channels = append(channels, sess.channel)
		}
	}
	s.connectionLock.Unlock()

	for _, ch := range channels {
		if err := ch.Notify(MessageGameOver, over.toStruct()); err != nil {
			s.logger.Debug("failed to send game over", zap.Error(err))
		}
	}
	time.AfterFunc(s.opts.Linger, func() { s.games.Remove(h.ID) })
}

// ViewerFor returns the player a session is seated as in a game.
func (s *Server) ViewerFor(sessionID, gameID string) (object.ID, bool) {
	s.connectionLock.Lock()
	defer s.connectionLock.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.seat == nil || sess.seat.host.ID != gameID {
		return object.InvalidID, false
	}
	return sess.seat.player, true
}
