package flow

import (
	"fmt"

	"github.com/fparadis2/mox/internal/game/object"
	"go.uber.org/zap"
)

// PriorityLoop gives priority to Player. When every living player passes in
// a row, the top of the stack resolves, or the loop ends if the stack is
// empty.
type PriorityLoop struct {
	Player object.ID
	Passes int
}

func (p PriorityLoop) Execute(ctx *Context) (Part, error) {
	g := ctx.Game
	if _, err := g.CheckStateBasedActions(); err != nil {
		return nil, err
	}
	if g.IsEnded() {
		return nil, nil
	}
	player := p.Player
	if g.HasLost(player) {
		player = g.NextPlayer(player)
	}
	return ask(ctx, PriorityChoice{Player: player}, priorityAnswer{Player: player, Passes: p.Passes}), nil
}

type priorityAnswer struct {
	Player object.ID
	Passes int
}

func (p priorityAnswer) Execute(ctx *Context) (Part, error) {
	g := ctx.Game
	action := PopChoiceResult[Action](ctx)
	if _, ok := action.(PassAction); ok {
		passes := p.Passes + 1
		if passes < len(g.LivingPlayers()) {
			return PriorityLoop{Player: g.NextPlayer(p.Player), Passes: passes}, nil
		}
		if g.StackTop() == object.InvalidID {
			return nil, nil
		}
		ctx.Schedule(PriorityLoop{Player: g.ActivePlayer()})
		return ResolveTop{}, nil
	}
	if !action.CanExecute(ctx, p.Player) {
		ctx.logger.Warn("illegal action",
			zap.Int("player", int(p.Player)),
			zap.String("action", fmt.Sprintf("%T", action)))
		return PriorityLoop{Player: p.Player, Passes: p.Passes}, nil
	}
	ctx.Schedule(PriorityLoop{Player: p.Player})
	return action, nil
}

// ResolveTop resolves the top of the stack.
type ResolveTop struct{}

func (ResolveTop) Execute(ctx *Context) (Part, error) {
	if ctx.Game.StackTop() == object.InvalidID {
		return nil, nil
	}
	return nil, ctx.Game.ResolveTop()
}
