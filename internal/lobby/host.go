package lobby

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fparadis2/mox/internal/game"
	"github.com/fparadis2/mox/internal/game/flow"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/replication"
	"github.com/fparadis2/mox/internal/game/watchers"
	"github.com/fparadis2/mox/internal/repository"
	"go.uber.org/zap"
)

var (
	ErrHostClosed  = errors.New("game host closed")
	ErrGameFull    = errors.New("game is full")
	ErrGameStarted = errors.New("game already started")
	ErrUnknownDeck = errors.New("unknown deck")
)

// HostState is the lifecycle of a hosted game.
type HostState int32

const (
	HostWaiting HostState = iota
	HostPlaying
	HostEnded
)

func (s HostState) String() string {
	switch s {
	case HostWaiting:
		return "waiting"
	case HostPlaying:
		return "playing"
	case HostEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Recorder saves finished games.
type Recorder interface {
	SaveGame(ctx context.Context, rec repository.GameRecord) error
}

// HostOptions configure a hosted game.
type HostOptions struct {
	Game  game.Options
	Seats int
	// Recorder is optional.
	Recorder Recorder
	// Replays, when set, also writes the replay of the game to disk.
	Replays *game.ReplayRecorder
}

// HostInfo is a snapshot of a hosted game.
type HostInfo struct {
	ID      string
	State   HostState
	Players []string
	Seats   int
	Winner  string
	Turn    int
}

// Host runs one game on its own goroutine. Everything touching the game
// is posted as a job and runs there.
type Host struct {
	ID      string
	created time.Time
	opts    HostOptions
	logger  *zap.Logger

	jobs      chan func()
	quit      chan struct{}
	closeOnce sync.Once
	ended     chan struct{}
	state     atomic.Int32

	// Owned by the game goroutine.
	game   *game.Game
	hub    *replication.Hub
	ctx    *flow.Context
	seq    *flow.Sequencer
	master *flow.MasterController
	stats  *watchers.Stats
	seats  []object.ID
	feeds  map[*Feed]struct{}
}

// NewHost creates a game waiting for players and starts its goroutine.
func NewHost(id string, opts HostOptions, logger *zap.Logger) (*Host, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Seats < 2 {
		opts.Seats = 2
	}
	logger = logger.With(zap.String("game_id", id))
	g, err := game.New(opts.Game, logger.Named("game"))
	if err != nil {
		return nil, fmt.Errorf("create game %s: %w", id, err)
	}
	master := flow.NewMasterController()
	ctx := flow.NewContext(g, master, logger.Named("flow"))
	h := &Host{
		ID:      id,
		created: time.Now(),
		opts:    opts,
		logger:  logger,
		jobs:    make(chan func(), 64),
		quit:    make(chan struct{}),
		ended:   make(chan struct{}),
		game:    g,
		hub:     g.NewHub(),
		ctx:     ctx,
		seq:     flow.NewSequencer(ctx),
		master:  master,
		stats:   watchers.Watch(g.Events),
		feeds:   make(map[*Feed]struct{}),
	}
	go h.loop()
	return h, nil
}

func (h *Host) loop() {
	for {
		select {
		case job := <-h.jobs:
			job()
		case <-h.quit:
			return
		}
	}
}

// Post queues job on the game goroutine.
func (h *Host) Post(job func()) error {
	select {
	case h.jobs <- job:
		return nil
	case <-h.quit:
		return ErrHostClosed
	}
}

// Do runs fn on the game goroutine and waits for it.
func (h *Host) Do(fn func() error) error {
	errc := make(chan error, 1)
	if err := h.Post(func() { errc <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-errc:
		return err
	case <-h.quit:
		return ErrHostClosed
	}
}

// View runs fn with the game on the game goroutine.
func (h *Host) View(fn func(g *game.Game) error) error {
	return h.Do(func() error { return fn(h.game) })
}

func (h *Host) State() HostState {
	return HostState(h.state.Load())
}

// Ended is closed once the game is over.
func (h *Host) Ended() <-chan struct{} {
	return h.ended
}

// Info returns a snapshot of the game.
func (h *Host) Info() (HostInfo, error) {
	var info HostInfo
	err := h.Do(func() error {
		info = HostInfo{
			ID:    h.ID,
			State: h.State(),
			Seats: h.opts.Seats,
			Turn:  h.game.TurnNumber(),
		}
		for _, p := range h.seats {
			info.Players = append(info.Players, h.game.PlayerName(p))
		}
		if w := h.game.Winner(); w != object.InvalidID {
			info.Winner = h.game.PlayerName(w)
		}
		return nil
	})
	return info, err
}

// Seat adds a player playing deck. controller builds the controller of the
// new player.
func (h *Host) Seat(name, deck string, controller func(player object.ID) flow.Controller) (object.ID, error) {
	cards, ok := game.Decks[deck]
	if !ok {
		return object.InvalidID, fmt.Errorf("%q: %w", deck, ErrUnknownDeck)
	}
	var player object.ID
	err := h.Do(func() error {
		if h.State() != HostWaiting {
			return ErrGameStarted
		}
		if len(h.seats) >= h.opts.Seats {
			return ErrGameFull
		}
		p, err := h.game.AddPlayer(name, deck, cards)
		if err != nil {
			return err
		}
		h.master.Set(p, controller(p))
		h.seats = append(h.seats, p)
		player = p
		return nil
	})
	if err != nil {
		return object.InvalidID, err
	}
	h.logger.Info("player seated", zap.String("player", name), zap.String("deck", deck), zap.Int("player_id", int(player)))
	return player, nil
}

// Full reports whether every seat is taken.
func (h *Host) Full() bool {
	full := false
	_ = h.Do(func() error {
		full = len(h.seats) >= h.opts.Seats
		return nil
	})
	return full
}

// Start begins the game and runs it until the first choice that needs to
// wait for a player.
func (h *Host) Start() error {
	return h.Do(func() error {
		if !h.state.CompareAndSwap(int32(HostWaiting), int32(HostPlaying)) {
			return ErrGameStarted
		}
		if len(h.seats) < h.opts.Seats {
			h.state.Store(int32(HostWaiting))
			return fmt.Errorf("start with %d of %d players", len(h.seats), h.opts.Seats)
		}
		h.logger.Info("game started", zap.Int("players", len(h.seats)))
		h.ctx.Schedule(flow.StartGame{})
		h.settle(h.seq.Run())
		return nil
	})
}

// Resume answers the pending choice of player. Answers to a choice that is
// no longer pending are dropped. A nil answer takes the default.
func (h *Host) Resume(player object.ID, choice flow.Choice, answer any) error {
	return h.Post(func() {
		pending := h.ctx.PendingChoice()
		if pending == nil || pending.Chooser() != player || pending.Kind() != choice.Kind() {
			h.logger.Debug("dropping stale answer",
				zap.Int("player", int(player)),
				zap.String("kind", string(choice.Kind())))
			return
		}
		status, err := h.seq.Resume(answer)
		if err != nil && status == flow.StatusWaiting && h.ctx.PendingChoice() != nil {
			h.logger.Warn("invalid answer, using default",
				zap.Int("player", int(player)),
				zap.String("kind", string(choice.Kind())),
				zap.Error(err))
			status, err = h.seq.Resume(nil)
		}
		h.settle(status, err)
	})
}

// Disconnect hands player over to the dead controller. A choice it was
// asked is answered with its default.
func (h *Host) Disconnect(player object.ID) error {
	return h.Post(func() {
		h.master.Remove(player)
		h.logger.Info("player disconnected", zap.Int("player", int(player)))
		if pending := h.ctx.PendingChoice(); pending != nil && pending.Chooser() == player {
			h.settle(h.seq.Resume(nil))
		}
	})
}

func (h *Host) settle(status flow.Status, err error) {
	if err != nil {
		h.logger.Error("game flow failed", zap.Error(err))
		if !h.game.IsEnded() {
			if endErr := h.game.EndGame(object.InvalidID); endErr != nil {
				h.logger.Error("failed to end broken game", zap.Error(endErr))
			}
		}
		status = flow.StatusEnded
	}
	if status == flow.StatusEnded {
		h.finish()
	}
}

func (h *Host) finish() {
	if !h.state.CompareAndSwap(int32(HostPlaying), int32(HostEnded)) {
		return
	}
	defer close(h.ended)
	h.stats.Stop()

	rec := repository.GameRecord{
		ID:      h.ID,
		Turns:   h.game.TurnNumber(),
		Stats:   make(map[string]watchers.PlayerStats, len(h.seats)),
		EndedAt: time.Now(),
	}
	for _, p := range h.seats {
		name := h.game.PlayerName(p)
		rec.Players = append(rec.Players, name)
		rec.Stats[name] = h.stats.Player(p)
	}
	if w := h.game.Winner(); w != object.InvalidID {
		rec.Winner = h.game.PlayerName(w)
	}
	h.logger.Info("game ended",
		zap.String("winner", rec.Winner),
		zap.Int("turns", rec.Turns),
		zap.Duration("duration", time.Since(h.created)))

	if h.opts.Replays != nil {
		_, err := h.opts.Replays.Capture(h.ID, h.game)
		if err == nil {
			err = h.opts.Replays.SaveReplay(h.ID)
		}
		if err != nil {
			h.logger.Error("failed to write replay", zap.Error(err))
		}
	}
	if h.opts.Recorder == nil {
		return
	}
	replay, err := game.CaptureReplay(h.ID, h.game)
	if err == nil {
		rec.Replay, err = replay.Bytes()
	}
	if err != nil {
		h.logger.Error("failed to capture replay", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.opts.Recorder.SaveGame(ctx, rec); err != nil {
		h.logger.Error("failed to save game", zap.Error(err))
	}
}

// Watch registers a feed of the game as seen by viewer. The feed first
// receives the whole history.
func (h *Host) Watch(viewer object.ID, buffer int) (*Feed, error) {
	f := newFeed(h, viewer, buffer)
	err := h.Do(func() error {
		handle, err := h.hub.Register(viewer, f)
		if err != nil {
			return err
		}
		f.handle = handle
		h.feeds[f] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("watch game %s: %w", h.ID, err)
	}
	h.logger.Debug("feed registered", zap.Int("viewer", int(viewer)), zap.Int("handle", f.handle))
	return f, nil
}

// unwatch runs on the game goroutine.
func (h *Host) unwatch(f *Feed) {
	if _, ok := h.feeds[f]; !ok {
		return
	}
	delete(h.feeds, f)
	h.hub.Unregister(f.handle)
	f.close()
}

// Close stops the game goroutine and closes every feed.
func (h *Host) Close() {
	_ = h.Do(func() error {
		for f := range h.feeds {
			h.unwatch(f)
		}
		h.hub.Close()
		return nil
	})
	h.closeOnce.Do(func() { close(h.quit) })
}
