package flow

import (
	"sync"

	"github.com/fparadis2/mox/internal/game/object"
)

// Controller is the decision source of a player: a remote client, an AI or
// a test script. Every method returns an answer or ErrDeferred.
type Controller interface {
	GivePriority(ctx *Context, player object.ID) (Action, error)
	PayMana(ctx *Context, choice PayManaChoice) (*PayManaAction, error)
	Target(ctx *Context, choice TargetChoice) (object.ID, error)
	Mulligan(ctx *Context, player object.ID) (bool, error)
	AskModalChoice(ctx *Context, choice ModalChoice) (int, error)
	DeclareAttackers(ctx *Context, choice AttackersChoice) ([]object.ID, error)
	DeclareBlockers(ctx *Context, choice BlockersChoice) ([]Block, error)
}

// DeadController answers for players that cannot: it passes, cancels,
// keeps its hand and picks the first option.
type DeadController struct{}

var _ Controller = DeadController{}

func (DeadController) GivePriority(*Context, object.ID) (Action, error) { return PassAction{}, nil }

func (DeadController) PayMana(*Context, PayManaChoice) (*PayManaAction, error) { return nil, nil }

func (DeadController) Target(*Context, TargetChoice) (object.ID, error) { return object.InvalidID, nil }

func (DeadController) Mulligan(*Context, object.ID) (bool, error) { return false, nil }

func (DeadController) AskModalChoice(*Context, ModalChoice) (int, error) { return 0, nil }

func (DeadController) DeclareAttackers(*Context, AttackersChoice) ([]object.ID, error) {
	return nil, nil
}

func (DeadController) DeclareBlockers(*Context, BlockersChoice) ([]Block, error) { return nil, nil }

// SuspendingController defers every choice. Search drives forks with it so
// that each decision becomes a node.
type SuspendingController struct{}

var _ Controller = SuspendingController{}

func (SuspendingController) GivePriority(*Context, object.ID) (Action, error) { return nil, ErrDeferred }

func (SuspendingController) PayMana(*Context, PayManaChoice) (*PayManaAction, error) {
	return nil, ErrDeferred
}

func (SuspendingController) Target(*Context, TargetChoice) (object.ID, error) {
	return object.InvalidID, ErrDeferred
}

func (SuspendingController) Mulligan(*Context, object.ID) (bool, error) { return false, ErrDeferred }

func (SuspendingController) AskModalChoice(*Context, ModalChoice) (int, error) {
	return 0, ErrDeferred
}

func (SuspendingController) DeclareAttackers(*Context, AttackersChoice) ([]object.ID, error) {
	return nil, ErrDeferred
}

func (SuspendingController) DeclareBlockers(*Context, BlockersChoice) ([]Block, error) {
	return nil, ErrDeferred
}

// MasterController dispatches each choice to the controller of the choosing
// player. Players without one, or whose controller was removed after a
// disconnect, get the DeadController.
type MasterController struct {
	mu          sync.RWMutex
	controllers map[object.ID]Controller
	fallback    Controller
}

var _ Controller = (*MasterController)(nil)

// NewMasterController creates an empty dispatch table.
func NewMasterController() *MasterController {
	return &MasterController{
		controllers: make(map[object.ID]Controller),
		fallback:    DeadController{},
	}
}

// Set assigns the controller of player.
func (m *MasterController) Set(player object.ID, c Controller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controllers[player] = c
}

// Remove drops the controller of player, who is then played dead.
func (m *MasterController) Remove(player object.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.controllers, player)
}

// For returns the controller answering for player.
func (m *MasterController) For(player object.ID) Controller {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.controllers[player]; ok && c != nil {
		return c
	}
	return m.fallback
}

func (m *MasterController) GivePriority(ctx *Context, player object.ID) (Action, error) {
	return m.For(player).GivePriority(ctx, player)
}

func (m *MasterController) PayMana(ctx *Context, choice PayManaChoice) (*PayManaAction, error) {
	return m.For(choice.Player).PayMana(ctx, choice)
}

func (m *MasterController) Target(ctx *Context, choice TargetChoice) (object.ID, error) {
	return m.For(choice.Player).Target(ctx, choice)
}

func (m *MasterController) Mulligan(ctx *Context, player object.ID) (bool, error) {
	return m.For(player).Mulligan(ctx, player)
}

func (m *MasterController) AskModalChoice(ctx *Context, choice ModalChoice) (int, error) {
	return m.For(choice.Player).AskModalChoice(ctx, choice)
}

func (m *MasterController) DeclareAttackers(ctx *Context, choice AttackersChoice) ([]object.ID, error) {
	return m.For(choice.Player).DeclareAttackers(ctx, choice)
}

func (m *MasterController) DeclareBlockers(ctx *Context, choice BlockersChoice) ([]Block, error) {
	return m.For(choice.Player).DeclareBlockers(ctx, choice)
}
