package flow

import (
	"errors"
	"slices"

	"github.com/fparadis2/mox/internal/game"
	"github.com/fparadis2/mox/internal/game/mana"
	"github.com/fparadis2/mox/internal/game/object"
	"go.uber.org/zap"
)

// Action is something a player does when given priority.
type Action interface {
	Part
	// CanExecute reports whether player may take the action now.
	CanExecute(ctx *Context, player object.ID) bool
}

// PassAction passes priority.
type PassAction struct{}

func (PassAction) CanExecute(*Context, object.ID) bool { return true }

func (PassAction) Execute(*Context) (Part, error) { return nil, nil }

// PlayLandAction plays a land from the hand.
type PlayLandAction struct {
	Player object.ID
	Card   object.ID
}

func (a PlayLandAction) CanExecute(ctx *Context, player object.ID) bool {
	return a.Player == player && ctx.Game.CanPlayLand(player, a.Card)
}

func (a PlayLandAction) Execute(ctx *Context) (Part, error) {
	return nil, ctx.Game.PlayLand(a.Player, a.Card)
}

// CastSpellAction casts a spell from the hand. Targets and mana sources are
// asked for as separate choices; nothing changes in the game until all of
// them are answered.
type CastSpellAction struct {
	Player object.ID
	Card   object.ID
}

func (a CastSpellAction) CanExecute(ctx *Context, player object.ID) bool {
	return a.Player == player && ctx.Game.CanCast(player, a.Card)
}

func (a CastSpellAction) Execute(ctx *Context) (Part, error) {
	def, ok := ctx.Game.Definition(a.Card)
	if !ok {
		return nil, nil
	}
	pay := castPay{Player: a.Player, Card: a.Card}
	if def.Spell == nil || def.Spell.Targets() == 0 {
		return pay, nil
	}
	kind := def.Spell.Targets()
	choice := TargetChoice{
		Player:     a.Player,
		Card:       a.Card,
		TargetKind: kind,
		Candidates: ctx.Game.LegalTargets(kind),
	}
	return ask(ctx, choice, castTarget{Pay: pay, Candidates: choice.Candidates}), nil
}

// PayManaAction taps Source toward the spell being paid. It is only ever an
// answer to a PayManaChoice and is never executed on its own.
type PayManaAction struct {
	Player object.ID
	Source object.ID
}

func (a *PayManaAction) CanExecute(ctx *Context, player object.ID) bool {
	if a == nil || a.Player != player {
		return false
	}
	return slices.ContainsFunc(ctx.Game.ManaSources(player), func(s mana.Source) bool {
		return object.ID(s.Key) == a.Source
	})
}

func (a *PayManaAction) Execute(*Context) (Part, error) {
	invalidProgram("pay mana action executed outside of a payment")
	return nil, nil
}

// SuggestPayment returns the source an automatic payment would tap next, or
// nil when the remaining cost cannot be paid.
func SuggestPayment(c PayManaChoice) *PayManaAction {
	keys, ok := mana.PlanSources(c.Cost, c.Pool, c.Sources)
	if !ok || len(keys) == 0 {
		return nil
	}
	return &PayManaAction{Player: c.Player, Source: object.ID(keys[0])}
}

func cancelCast(ctx *Context, card object.ID, reason string) {
	ctx.logger.Debug("cast cancelled",
		zap.String("card", ctx.Game.CardName(card)),
		zap.String("reason", reason))
}

type castTarget struct {
	Pay        castPay
	Candidates []object.ID
}

func (p castTarget) Execute(ctx *Context) (Part, error) {
	target := PopChoiceResult[object.ID](ctx)
	if target == object.InvalidID {
		cancelCast(ctx, p.Pay.Card, "no target")
		return nil, nil
	}
	if !slices.Contains(p.Candidates, target) {
		ctx.logger.Warn("illegal target chosen",
			zap.Int("player", int(p.Pay.Player)),
			zap.Int("target", int(target)))
		cancelCast(ctx, p.Pay.Card, "illegal target")
		return nil, nil
	}
	pay := p.Pay
	pay.Targets = []object.ID{target}
	return pay, nil
}

// castPay asks for mana sources one at a time until the planned sources
// and the pool cover the cost.
type castPay struct {
	Player  object.ID
	Card    object.ID
	Targets []object.ID
	Planned []object.ID
}

func (p castPay) pool(g *game.Game) (mana.Pool, []mana.Source) {
	pool := g.ManaPoolOf(p.Player)
	var rest []mana.Source
	for _, s := range g.ManaSources(p.Player) {
		if slices.Contains(p.Planned, object.ID(s.Key)) {
			pool = pool.Add(s.Produces, 1)
			continue
		}
		rest = append(rest, s)
	}
	return pool, rest
}

func (p castPay) Execute(ctx *Context) (Part, error) {
	cost := ctx.Game.CostOf(p.Card)
	pool, rest := p.pool(ctx.Game)
	if cost.CanPay(pool) {
		return castExecute(p), nil
	}
	if _, ok := mana.PlanSources(cost, pool, rest); !ok {
		cancelCast(ctx, p.Card, "cannot pay")
		return nil, nil
	}
	choice := PayManaChoice{Player: p.Player, Card: p.Card, Cost: cost, Pool: pool, Sources: rest}
	return ask(ctx, choice, castPayAnswer{Pay: p, Sources: rest}), nil
}

type castPayAnswer struct {
	Pay     castPay
	Sources []mana.Source
}

func (p castPayAnswer) Execute(ctx *Context) (Part, error) {
	a := PopChoiceResult[*PayManaAction](ctx)
	if a == nil {
		cancelCast(ctx, p.Pay.Card, "payment cancelled")
		return nil, nil
	}
	if !slices.ContainsFunc(p.Sources, func(s mana.Source) bool { return object.ID(s.Key) == a.Source }) {
		ctx.logger.Warn("unavailable mana source chosen",
			zap.Int("player", int(p.Pay.Player)),
			zap.Int("source", int(a.Source)))
		cancelCast(ctx, p.Pay.Card, "unavailable source")
		return nil, nil
	}
	next := p.Pay
	next.Planned = append(slices.Clip(p.Pay.Planned), a.Source)
	return next, nil
}

// castExecute puts the spell on the stack and pays for it in one
// transaction.
type castExecute castPay

func (p castExecute) Execute(ctx *Context) (Part, error) {
	g := ctx.Game
	err := g.Transaction(func() error {
		if err := g.PutOnStack(p.Player, p.Card, p.Targets); err != nil {
			return err
		}
		for _, source := range p.Planned {
			if err := g.TapForMana(source); err != nil {
				return err
			}
		}
		return g.PayCost(p.Player, g.CostOf(p.Card))
	})
	if errors.Is(err, game.ErrIllegalAction) {
		ctx.logger.Warn("cast failed", zap.Error(err))
		return nil, nil
	}
	return nil, err
}
