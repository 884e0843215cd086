// Package game holds the game aggregate: the object manager, its transaction
// stack and effect engine, and the rules operations that mutate them.
package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/fparadis2/mox/internal/game/effects"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
	"github.com/fparadis2/mox/internal/game/transaction"
	"go.uber.org/zap"
)

var (
	// ErrIllegalAction is returned when a rules operation is not allowed in
	// the current state.
	ErrIllegalAction = errors.New("illegal action")
	// ErrUnknownCard is returned for card names missing from the catalog.
	ErrUnknownCard = errors.New("unknown card")
)

// Options configure a new game.
type Options struct {
	StartingLife int
	HandSize     int
	Seed         uint64
}

// DefaultOptions returns the standard two-player settings.
func DefaultOptions() Options {
	return Options{StartingLife: 20, HandSize: 7}
}

// Game is one game, or one replica or fork of it. All methods must be called
// from the goroutine owning the game.
type Game struct {
	Objects      *object.Manager
	Transactions *transaction.Stack[*object.Manager]
	Effects      *effects.Engine
	Events       *rules.EventBus
	Turn         rules.TurnDescriptor
	Legality     *rules.LegalityChecker

	opts   Options
	rng    *rand.Rand
	logger *zap.Logger
}

// New creates a master game with an empty root object. Tracking effects
// follow the state of a master game.
func New(opts Options, logger *zap.Logger) (*Game, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := object.NewManager(logger)
	stack := transaction.NewStack(m)
	m.SetSink(stack)

	g := Attach(m, stack, opts, logger)
	id, err := m.Create(KindGame)
	if err != nil {
		return nil, fmt.Errorf("create game object: %w", err)
	}
	if id != RootID {
		return nil, fmt.Errorf("game object got id %d, want %d", id, RootID)
	}
	g.Effects.EnableTracking()
	return g, nil
}

// Attach wraps a manager that already holds (or will receive) a game, such
// as a replica. Tracking effects stay disabled: call
// Effects.EnableTracking when the game will be played rather than mirrored.
func Attach(m *object.Manager, stack *transaction.Stack[*object.Manager], opts Options, logger *zap.Logger) *Game {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StartingLife <= 0 {
		opts.StartingLife = DefaultOptions().StartingLife
	}
	if opts.HandSize <= 0 {
		opts.HandSize = DefaultOptions().HandSize
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	g := &Game{
		Objects:      m,
		Transactions: stack,
		Effects:      effects.NewEngine(m, RootID, logger),
		Events:       rules.NewEventBus(),
		Turn:         rules.DefaultTurn,
		opts:         opts,
		rng:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		logger:       logger,
	}
	g.Legality = rules.NewLegalityChecker(g)
	return g
}

// Options returns the settings the game was created with.
func (g *Game) Options() Options {
	return g.opts
}

// Logger returns the game logger.
func (g *Game) Logger() *zap.Logger {
	return g.logger
}

// Atomic runs fn inside an atomic transaction, rolling back when it fails.
func (g *Game) Atomic(fn func() error) error {
	return g.inTransaction(transaction.TypeAtomic, fn)
}

// Transaction runs fn inside a normal transaction, rolling back when it fails.
func (g *Game) Transaction(fn func() error) error {
	return g.inTransaction(transaction.TypeNormal, fn)
}

func (g *Game) inTransaction(t transaction.Type, fn func() error) error {
	tx := g.Transactions.Begin(t)
	if err := fn(); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			g.logger.Error("failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}
	return tx.Commit()
}

func (g *Game) set(id object.ID, prop *object.Property, value any) error {
	return g.Objects.SetValue(id, prop, value)
}

// reset drops an explicit value so the property reads as its default.
func (g *Game) reset(id object.ID, prop *object.Property) error {
	if !g.Objects.Has(id, prop) {
		return nil
	}
	return g.Objects.SetValue(id, prop, nil)
}

func (g *Game) publish(e rules.Event) {
	e.Phase = g.Phase()
	e.Step = g.Step()
	g.Events.Publish(e)
}

// Phase returns the current phase.
func (g *Game) Phase() rules.Phase {
	return object.Value[rules.Phase](g.Objects, RootID, CurrentPhase)
}

// Step returns the current step.
func (g *Game) Step() rules.Step {
	return object.Value[rules.Step](g.Objects, RootID, CurrentStep)
}

// ActivePlayer returns the player whose turn it is.
func (g *Game) ActivePlayer() object.ID {
	return object.Value[object.ID](g.Objects, RootID, ActivePlayer)
}

// TurnNumber returns the current turn, starting at 1.
func (g *Game) TurnNumber() int {
	return object.Value[int](g.Objects, RootID, TurnNumber)
}

// IsEnded reports whether the game is over.
func (g *Game) IsEnded() bool {
	return object.Value[bool](g.Objects, RootID, Ended)
}

// Winner returns the winning player, or object.InvalidID for a draw or an
// unfinished game.
func (g *Game) Winner() object.ID {
	return object.Value[object.ID](g.Objects, RootID, Winner)
}

// SetPhase records the phase the game entered and clears the step.
func (g *Game) SetPhase(p rules.Phase) error {
	if err := g.set(RootID, CurrentPhase, p); err != nil {
		return err
	}
	if err := g.set(RootID, CurrentStep, rules.StepNone); err != nil {
		return err
	}
	g.publish(rules.Event{Type: rules.EventPhaseStarted, Player: g.ActivePlayer()})
	return nil
}

// SetStep records the step the game entered.
func (g *Game) SetStep(s rules.Step) error {
	if err := g.set(RootID, CurrentStep, s); err != nil {
		return err
	}
	g.publish(rules.Event{Type: rules.EventStepStarted, Player: g.ActivePlayer()})
	return nil
}

// BeginTurn makes p the active player of a new turn.
func (g *Game) BeginTurn(p object.ID) error {
	return g.Atomic(func() error {
		if err := g.set(RootID, ActivePlayer, p); err != nil {
			return err
		}
		if err := g.set(RootID, TurnNumber, g.TurnNumber()+1); err != nil {
			return err
		}
		if err := g.set(p, LandsPlayed, 0); err != nil {
			return err
		}
		g.publish(rules.Event{Type: rules.EventTurnStarted, Player: p, Amount: g.TurnNumber()})
		g.logger.Debug("turn started",
			zap.Int("turn", g.TurnNumber()),
			zap.Int("active_player", int(p)))
		return nil
	})
}

// EndGame records the result.
func (g *Game) EndGame(winner object.ID) error {
	if g.IsEnded() {
		return nil
	}
	err := g.Atomic(func() error {
		if err := g.set(RootID, Winner, winner); err != nil {
			return err
		}
		return g.set(RootID, Ended, true)
	})
	if err != nil {
		return fmt.Errorf("end game: %w", err)
	}
	g.publish(rules.Event{Type: rules.EventGameEnded, Player: winner})
	g.logger.Info("game ended",
		zap.Int("winner", int(winner)),
		zap.Int("turn", g.TurnNumber()))
	return nil
}

// Shuffle returns a random permutation of ids.
func (g *Game) Shuffle(ids []object.ID) []object.ID {
	out := append([]object.ID(nil), ids...)
	g.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Rand returns the random source of the game.
func (g *Game) Rand() *rand.Rand {
	return g.rng
}
