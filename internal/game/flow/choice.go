package flow

import (
	"errors"
	"fmt"

	"github.com/fparadis2/mox/internal/game/mana"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
	"go.uber.org/zap"
)

// ErrDeferred is returned by a controller that will answer later through
// Sequencer.Resume.
var ErrDeferred = errors.New("choice deferred")

// ChoiceKind identifies a kind of player decision.
type ChoiceKind string

const (
	KindPriority  ChoiceKind = "priority"
	KindPayMana   ChoiceKind = "pay_mana"
	KindTarget    ChoiceKind = "target"
	KindMulligan  ChoiceKind = "mulligan"
	KindModal     ChoiceKind = "modal"
	KindAttackers ChoiceKind = "attackers"
	KindBlockers  ChoiceKind = "blockers"
)

// Choice is a decision asked of one player. The answer type depends on the
// kind: Action, *PayManaAction, object.ID, bool, int, []object.ID or
// []Block.
type Choice interface {
	Kind() ChoiceKind
	Chooser() object.ID
	// Default is the answer used when a player cannot answer: cancel where
	// possible, else the first option.
	Default() any
	ask(c Controller, ctx *Context) (any, error)
}

// PriorityChoice asks a player for an action, or to pass.
type PriorityChoice struct {
	Player object.ID
}

func (PriorityChoice) Kind() ChoiceKind      { return KindPriority }
func (c PriorityChoice) Chooser() object.ID { return c.Player }
func (PriorityChoice) Default() any          { return PassAction{} }

func (c PriorityChoice) ask(ctrl Controller, ctx *Context) (any, error) {
	a, err := ctrl.GivePriority(ctx, c.Player)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return PassAction{}, nil
	}
	return a, nil
}

// PayManaChoice asks a player which source to tap next for a spell. Pool
// holds the mana already available, planned sources included.
type PayManaChoice struct {
	Player  object.ID
	Card    object.ID
	Cost    mana.ManaCost
	Pool    mana.Pool
	Sources []mana.Source
}

func (PayManaChoice) Kind() ChoiceKind      { return KindPayMana }
func (c PayManaChoice) Chooser() object.ID { return c.Player }
func (PayManaChoice) Default() any          { return (*PayManaAction)(nil) }

func (c PayManaChoice) ask(ctrl Controller, ctx *Context) (any, error) {
	a, err := ctrl.PayMana(ctx, c)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// TargetChoice asks a player for the target of a spell.
type TargetChoice struct {
	Player     object.ID
	Card       object.ID
	TargetKind rules.TargetKind
	Candidates []object.ID
}

func (TargetChoice) Kind() ChoiceKind      { return KindTarget }
func (c TargetChoice) Chooser() object.ID { return c.Player }
func (TargetChoice) Default() any          { return object.InvalidID }

func (c TargetChoice) ask(ctrl Controller, ctx *Context) (any, error) {
	t, err := ctrl.Target(ctx, c)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// MulliganChoice asks a player whether to take a mulligan.
type MulliganChoice struct {
	Player object.ID
}

func (MulliganChoice) Kind() ChoiceKind      { return KindMulligan }
func (c MulliganChoice) Chooser() object.ID { return c.Player }
func (MulliganChoice) Default() any          { return false }

func (c MulliganChoice) ask(ctrl Controller, ctx *Context) (any, error) {
	m, err := ctrl.Mulligan(ctx, c.Player)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ModalChoice asks a player to pick one of several options by index.
type ModalChoice struct {
	Player   object.ID
	Question string
	Options  []string
}

func (ModalChoice) Kind() ChoiceKind      { return KindModal }
func (c ModalChoice) Chooser() object.ID { return c.Player }
func (ModalChoice) Default() any          { return 0 }

func (c ModalChoice) ask(ctrl Controller, ctx *Context) (any, error) {
	i, err := ctrl.AskModalChoice(ctx, c)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(c.Options) {
		return 0, nil
	}
	return i, nil
}

// AttackersChoice asks the active player which creatures attack.
type AttackersChoice struct {
	Player     object.ID
	Candidates []object.ID
}

func (AttackersChoice) Kind() ChoiceKind      { return KindAttackers }
func (c AttackersChoice) Chooser() object.ID { return c.Player }
func (AttackersChoice) Default() any          { return []object.ID(nil) }

func (c AttackersChoice) ask(ctrl Controller, ctx *Context) (any, error) {
	ids, err := ctrl.DeclareAttackers(ctx, c)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Block pairs a blocker with the attacker it blocks.
type Block struct {
	Blocker  object.ID
	Attacker object.ID
}

// BlockersChoice asks the defending player how to block.
type BlockersChoice struct {
	Player     object.ID
	Attackers  []object.ID
	Candidates []object.ID
}

func (BlockersChoice) Kind() ChoiceKind      { return KindBlockers }
func (c BlockersChoice) Chooser() object.ID { return c.Player }
func (BlockersChoice) Default() any          { return []Block(nil) }

func (c BlockersChoice) ask(ctrl Controller, ctx *Context) (any, error) {
	blocks, err := ctrl.DeclareBlockers(ctx, c)
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

// ChoicePart consults the controller. An immediate answer is pushed on the
// result stack for the part scheduled below; a deferred one suspends the
// sequencer.
type ChoicePart struct {
	Choice Choice
}

func (p ChoicePart) Execute(ctx *Context) (Part, error) {
	v, err := p.Choice.ask(ctx.Controller, ctx)
	if errors.Is(err, ErrDeferred) {
		ctx.pending = p.Choice
		ctx.logger.Debug("choice deferred",
			zap.String("kind", string(p.Choice.Kind())),
			zap.Int("player", int(p.Choice.Chooser())))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s choice for player %d: %w", p.Choice.Kind(), p.Choice.Chooser(), err)
	}
	ctx.PushChoiceResult(v)
	return nil, nil
}

// ask schedules then and returns the part asking choice, so that then can
// pop the answer.
func ask(ctx *Context, choice Choice, then Part) Part {
	ctx.Schedule(then)
	return ChoicePart{Choice: choice}
}
