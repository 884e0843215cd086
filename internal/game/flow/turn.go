package flow

import (
	"fmt"

	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
	"go.uber.org/zap"
)

// StartGame draws the opening hands, lets a random player choose to play or
// draw, runs the mulligans and starts the first turn.
type StartGame struct{}

func (StartGame) Execute(ctx *Context) (Part, error) {
	g := ctx.Game
	if err := g.Start(); err != nil {
		return nil, err
	}
	players := g.Players()
	chooser := players[g.Rand().IntN(len(players))]
	choice := ModalChoice{
		Player:   chooser,
		Question: "Do you want to play first or draw first?",
		Options:  []string{"Play", "Draw"},
	}
	return ask(ctx, choice, firstPlayerAnswer{Chooser: chooser}), nil
}

type firstPlayerAnswer struct {
	Chooser object.ID
}

func (p firstPlayerAnswer) Execute(ctx *Context) (Part, error) {
	g := ctx.Game
	first := p.Chooser
	if PopChoiceResult[int](ctx) == 1 {
		first = g.NextPlayer(p.Chooser)
	}
	ctx.logger.Info("first player chosen", zap.Int("player", int(first)), zap.String("name", g.PlayerName(first)))

	var parts []Part
	for player := first; ; {
		parts = append(parts, MulliganPart{Player: player})
		player = g.NextPlayer(player)
		if player == first || player == object.InvalidID {
			break
		}
	}
	parts = append(parts, SequenceTurn{Player: first})
	ctx.Schedule(parts...)
	return nil, nil
}

// MulliganPart asks a player whether to mulligan, until they keep or have
// no card left.
type MulliganPart struct {
	Player object.ID
}

func (p MulliganPart) Execute(ctx *Context) (Part, error) {
	if len(ctx.Game.Cards(p.Player, rules.ZoneHand)) == 0 {
		return nil, nil
	}
	return ask(ctx, MulliganChoice{Player: p.Player}, mulliganAnswer(p)), nil
}

type mulliganAnswer struct {
	Player object.ID
}

func (p mulliganAnswer) Execute(ctx *Context) (Part, error) {
	if !PopChoiceResult[bool](ctx) {
		return nil, nil
	}
	if err := ctx.Game.Mulligan(p.Player); err != nil {
		return nil, err
	}
	return MulliganPart(p), nil
}

// SequenceTurn plays a whole turn of Player and schedules the next one.
type SequenceTurn struct {
	Player object.ID
}

func (p SequenceTurn) Execute(ctx *Context) (Part, error) {
	g := ctx.Game
	if g.IsEnded() {
		return nil, nil
	}
	if err := g.BeginTurn(p.Player); err != nil {
		return nil, err
	}
	parts := make([]Part, 0, len(g.Turn.Phases)+1)
	for _, phase := range g.Turn.Phases {
		parts = append(parts, SequencePhase{Phase: phase})
	}
	parts = append(parts, EndOfTurn(p))
	ctx.Schedule(parts...)
	return nil, nil
}

// SequencePhase enters a phase and schedules its steps in order. A phase
// without steps is a single priority loop.
type SequencePhase struct {
	Phase rules.PhaseDescriptor
}

func (p SequencePhase) Execute(ctx *Context) (Part, error) {
	g := ctx.Game
	if err := g.SetPhase(p.Phase.Type); err != nil {
		return nil, err
	}
	if len(p.Phase.Steps) == 0 {
		ctx.Schedule(PriorityLoop{Player: g.ActivePlayer()})
		return nil, nil
	}
	parts := make([]Part, 0, len(p.Phase.Steps))
	for _, s := range p.Phase.Steps {
		parts = append(parts, SequenceStep{Step: s})
	}
	ctx.Schedule(parts...)
	return nil, nil
}

// SequenceStep enters a step and schedules the turn-based actions and
// priority of that step.
type SequenceStep struct {
	Step rules.Step
}

func (p SequenceStep) Execute(ctx *Context) (Part, error) {
	g := ctx.Game
	if (p.Step == rules.StepDeclareBlockers || p.Step == rules.StepCombatDamage) && len(g.Attackers()) == 0 {
		return nil, nil
	}
	if err := g.SetStep(p.Step); err != nil {
		return nil, err
	}
	priority := PriorityLoop{Player: g.ActivePlayer()}
	switch p.Step {
	case rules.StepUntap:
		ctx.Schedule(UntapStep{})
	case rules.StepDraw:
		ctx.Schedule(DrawStep{}, priority)
	case rules.StepDeclareAttackers:
		ctx.Schedule(DeclareAttackersPart{}, priority)
	case rules.StepDeclareBlockers:
		ctx.Schedule(DeclareBlockersPart{}, priority)
	case rules.StepCombatDamage:
		ctx.Schedule(CombatDamageStep{}, priority)
	case rules.StepEndOfCombat:
		ctx.Schedule(priority, EndCombatPart{})
	case rules.StepCleanup:
		ctx.Schedule(CleanupStep{})
	default:
		if !p.Step.HasPriority() {
			return nil, fmt.Errorf("sequence step %s: no turn-based action", p.Step)
		}
		ctx.Schedule(priority)
	}
	return nil, nil
}

// EndOfTurn passes the turn to the next living player.
type EndOfTurn struct {
	Player object.ID
}

func (p EndOfTurn) Execute(ctx *Context) (Part, error) {
	g := ctx.Game
	if g.IsEnded() {
		return nil, nil
	}
	next := g.NextPlayer(p.Player)
	if next == object.InvalidID {
		return nil, nil
	}
	return SequenceTurn{Player: next}, nil
}

// UntapStep untaps the permanents of the active player.
type UntapStep struct{}

func (UntapStep) Execute(ctx *Context) (Part, error) {
	return nil, ctx.Game.UntapAll(ctx.Game.ActivePlayer())
}

// DrawStep draws a card for the active player, except on the first turn of
// the game.
type DrawStep struct{}

func (DrawStep) Execute(ctx *Context) (Part, error) {
	g := ctx.Game
	if g.TurnNumber() <= 1 {
		return nil, nil
	}
	return nil, g.Draw(g.ActivePlayer(), 1)
}

// CleanupStep runs the cleanup turn-based actions.
type CleanupStep struct{}

func (CleanupStep) Execute(ctx *Context) (Part, error) {
	return nil, ctx.Game.Cleanup()
}
