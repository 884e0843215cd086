package flow

import (
	"github.com/fparadis2/mox/internal/game/object"
	"go.uber.org/zap"
)

// DeclareAttackersPart asks the active player which creatures attack.
type DeclareAttackersPart struct{}

func (DeclareAttackersPart) Execute(ctx *Context) (Part, error) {
	g := ctx.Game
	active := g.ActivePlayer()
	var candidates []object.ID
	for _, c := range g.Creatures(active) {
		if g.CanAttack(c) {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return ask(ctx, AttackersChoice{Player: active, Candidates: candidates}, attackersAnswer{}), nil
}

type attackersAnswer struct{}

func (attackersAnswer) Execute(ctx *Context) (Part, error) {
	g := ctx.Game
	attackers := PopChoiceResult[[]object.ID](ctx)
	return nil, g.Atomic(func() error {
		for _, a := range attackers {
			if !g.CanAttack(a) {
				ctx.logger.Warn("illegal attacker ignored", zap.Int("card", int(a)))
				continue
			}
			if err := g.DeclareAttacker(a); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeclareBlockersPart asks the defending player how to block.
type DeclareBlockersPart struct{}

func (DeclareBlockersPart) Execute(ctx *Context) (Part, error) {
	g := ctx.Game
	defender := g.DefendingPlayer()
	attackers := g.Attackers()
	var candidates []object.ID
	for _, c := range g.Creatures(defender) {
		for _, a := range attackers {
			if g.CanBlock(c, a) {
				candidates = append(candidates, c)
				break
			}
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	choice := BlockersChoice{Player: defender, Attackers: attackers, Candidates: candidates}
	return ask(ctx, choice, blockersAnswer{}), nil
}

type blockersAnswer struct{}

func (blockersAnswer) Execute(ctx *Context) (Part, error) {
	g := ctx.Game
	blocks := PopChoiceResult[[]Block](ctx)
	return nil, g.Atomic(func() error {
		for _, b := range blocks {
			if !g.CanBlock(b.Blocker, b.Attacker) {
				ctx.logger.Warn("illegal block ignored",
					zap.Int("blocker", int(b.Blocker)),
					zap.Int("attacker", int(b.Attacker)))
				continue
			}
			if err := g.DeclareBlocker(b.Blocker, b.Attacker); err != nil {
				return err
			}
		}
		return nil
	})
}

// CombatDamageStep deals combat damage.
type CombatDamageStep struct{}

func (CombatDamageStep) Execute(ctx *Context) (Part, error) {
	return nil, ctx.Game.AssignCombatDamage()
}

// EndCombatPart removes creatures from combat.
type EndCombatPart struct{}

func (EndCombatPart) Execute(ctx *Context) (Part, error) {
	return nil, ctx.Game.EndCombat()
}
