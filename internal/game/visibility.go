package game

import (
	"fmt"

	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/replication"
	"github.com/fparadis2/mox/internal/game/rules"
	"github.com/fparadis2/mox/internal/game/transaction"
	"go.uber.org/zap"
)

// Visibility hides cards in libraries from everyone and cards in hand from
// everyone but their owner. Everything else is visible.
type Visibility struct{}

var _ replication.Strategy = Visibility{}

func (Visibility) IsVisible(m *object.Manager, obj, viewer object.ID) bool {
	if m.Kind(obj) != KindCard {
		return true
	}
	zone := object.Value[rules.Zone](m, obj, Zone)
	switch {
	case zone.IsPublic():
		return true
	case zone == rules.ZoneHand:
		return viewer != replication.Spectator && object.Value[object.ID](m, obj, Owner) == viewer
	}
	return false
}

func (Visibility) Owner(m *object.Manager, obj object.ID) object.ID {
	switch m.Kind(obj) {
	case KindPlayer:
		return obj
	case KindCard:
		return object.Value[object.ID](m, obj, Owner)
	}
	return object.InvalidID
}

func (Visibility) Invalidates(prop *object.Property) bool {
	return prop == Zone
}

// NewHub starts replicating the game.
func (g *Game) NewHub() *replication.Hub {
	return replication.NewHub(g.Transactions, Visibility{}, g.logger.Named("replication"))
}

// NewReplica returns a replica listener for a remote or local viewer along
// with a game reading it.
func NewReplica(opts Options, logger *zap.Logger) (*replication.Replica, *Game) {
	r := replication.NewReplica(logger)
	return r, Attach(r.Manager, r.Stack, opts, logger)
}

// Fork copies the game as seen by viewer into a new game with its own
// manager and stack, including the transactions currently open. A nil
// strategy copies everything. The fork follows tracking effects so it can
// be played forward, and rolled back, without touching the original.
func (g *Game) Fork(strategy replication.Strategy, viewer object.ID) (*Game, error) {
	m := object.NewManager(g.logger)
	stack := transaction.NewStack(m)
	m.SetSink(stack)

	// The log is filtered against the current visibility, as Hub.Register does.
	filter := func(cmd object.Command) object.Command {
		if strategy == nil {
			return cmd
		}
		return replication.Synchronize(g.Objects, strategy, viewer, cmd)
	}
	for _, cmd := range g.Transactions.Commands() {
		if err := stack.PushAndExecute(filter(cmd)); err != nil {
			return nil, fmt.Errorf("fork: %w", err)
		}
	}
	for depth := 0; depth < g.Transactions.Depth(); depth++ {
		t, cmds := g.Transactions.Scope(depth)
		stack.Begin(t)
		for _, cmd := range cmds {
			if err := stack.PushAndExecute(filter(cmd)); err != nil {
				return nil, fmt.Errorf("fork: %w", err)
			}
		}
	}

	opts := g.opts
	opts.Seed = g.opts.Seed + g.Objects.Version() + 1
	fork := Attach(m, stack, opts, g.logger.Named("fork"))
	fork.Effects.EnableTracking()
	return fork, nil
}
