package game

import (
	"fmt"

	"github.com/fparadis2/mox/internal/game/effects"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
	"go.uber.org/zap"
)

// DefendingPlayer returns the player attacked this turn.
func (g *Game) DefendingPlayer() object.ID {
	return g.NextPlayer(g.ActivePlayer())
}

// IsAttacking reports whether a creature is attacking.
func (g *Game) IsAttacking(card object.ID) bool {
	return object.Value[bool](g.Objects, card, Attacking)
}

// BlockedBy returns the attacker a creature blocks.
func (g *Game) BlockedBy(card object.ID) object.ID {
	return object.Value[object.ID](g.Objects, card, Blocking)
}

// Attackers returns the attacking creatures.
func (g *Game) Attackers() []object.ID {
	var out []object.ID
	for _, card := range g.Permanents(object.InvalidID) {
		if g.IsAttacking(card) {
			out = append(out, card)
		}
	}
	return out
}

// BlockersOf returns the creatures blocking attacker, in declaration order.
func (g *Game) BlockersOf(attacker object.ID) []object.ID {
	var out []object.ID
	for _, card := range g.Permanents(object.InvalidID) {
		if g.BlockedBy(card) == attacker {
			out = append(out, card)
		}
	}
	return out
}

// CanAttack reports whether the active player may attack with card.
func (g *Game) CanAttack(card object.ID) bool {
	if !g.IsCreature(card) || g.ZoneOf(card) != rules.ZoneBattlefield {
		return false
	}
	if g.ControllerOf(card) != g.ActivePlayer() || g.IsTapped(card) || g.IsAttacking(card) {
		return false
	}
	abilities := g.AbilitiesOf(card)
	if abilities.Has(effects.AbilityDefender) {
		return false
	}
	sick := object.Value[bool](g.Objects, card, Sick)
	return !sick || abilities.Has(effects.AbilityHaste)
}

// DeclareAttacker makes card attack the defending player.
func (g *Game) DeclareAttacker(card object.ID) error {
	if !g.CanAttack(card) {
		return fmt.Errorf("attack with %d: %w", card, ErrIllegalAction)
	}
	err := g.Atomic(func() error {
		if err := g.set(card, Attacking, true); err != nil {
			return err
		}
		if g.AbilitiesOf(card).Has(effects.AbilityVigilance) {
			return nil
		}
		return g.set(card, Tapped, true)
	})
	if err != nil {
		return fmt.Errorf("attack with %d: %w", card, err)
	}
	g.publish(rules.Event{Type: rules.EventAttackDeclared, Source: card, Target: g.DefendingPlayer(), Player: g.ActivePlayer()})
	return nil
}

// CanBlock reports whether blocker may block attacker.
func (g *Game) CanBlock(blocker, attacker object.ID) bool {
	if !g.IsCreature(blocker) || g.ZoneOf(blocker) != rules.ZoneBattlefield || !g.IsAttacking(attacker) {
		return false
	}
	if g.ControllerOf(blocker) == g.ActivePlayer() || g.IsTapped(blocker) || g.BlockedBy(blocker) != object.InvalidID {
		return false
	}
	if g.AbilitiesOf(attacker).Has(effects.AbilityFlying) {
		a := g.AbilitiesOf(blocker)
		return a.Has(effects.AbilityFlying) || a.Has(effects.AbilityReach)
	}
	return true
}

// DeclareBlocker makes blocker block attacker.
func (g *Game) DeclareBlocker(blocker, attacker object.ID) error {
	if !g.CanBlock(blocker, attacker) {
		return fmt.Errorf("block %d with %d: %w", attacker, blocker, ErrIllegalAction)
	}
	if err := g.set(blocker, Blocking, attacker); err != nil {
		return fmt.Errorf("block %d with %d: %w", attacker, blocker, err)
	}
	g.publish(rules.Event{Type: rules.EventBlockDeclared, Source: blocker, Target: attacker, Player: g.ControllerOf(blocker)})
	return nil
}

// DealDamage deals amount damage from source to a player or creature.
func (g *Game) DealDamage(source, target object.ID, amount int) error {
	if amount <= 0 {
		return nil
	}
	var err error
	switch {
	case g.IsPlayer(target):
		err = g.AdjustLife(target, -amount, source)
	case g.IsCreature(target):
		err = g.set(target, Damage, g.DamageOn(target)+amount)
	default:
		return fmt.Errorf("damage %d: not a player or creature: %w", target, ErrIllegalAction)
	}
	if err != nil {
		return fmt.Errorf("damage %d: %w", target, err)
	}
	g.publish(rules.Event{Type: rules.EventDamageDealt, Source: source, Target: target, Amount: amount})
	return nil
}

// AssignCombatDamage deals combat damage for every attacker. Unblocked
// attackers hit the defending player; a blocked attacker assigns lethal
// damage to its blockers in order and the rest to the last one.
func (g *Game) AssignCombatDamage() error {
	type hit struct {
		source, target object.ID
		amount         int
	}
	var hits []hit
	defender := g.DefendingPlayer()
	for _, attacker := range g.Attackers() {
		power := g.PowerToughness(attacker).Power
		blockers := g.BlockersOf(attacker)
		if len(blockers) == 0 {
			hits = append(hits, hit{attacker, defender, power})
			continue
		}
		remaining := power
		for i, b := range blockers {
			hits = append(hits, hit{b, attacker, g.PowerToughness(b).Power})
			assign := remaining
			if i < len(blockers)-1 {
				lethal := g.PowerToughness(b).Toughness - g.DamageOn(b)
				if lethal < 0 {
					lethal = 0
				}
				if assign > lethal {
					assign = lethal
				}
			}
			hits = append(hits, hit{attacker, b, assign})
			remaining -= assign
		}
	}
	err := g.Atomic(func() error {
		for _, h := range hits {
			if err := g.DealDamage(h.source, h.target, h.amount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("combat damage: %w", err)
	}
	g.logger.Debug("combat damage dealt", zap.Int("assignments", len(hits)))
	return nil
}

// EndCombat removes every creature from combat and ends until end of
// combat effects.
func (g *Game) EndCombat() error {
	return g.Atomic(func() error {
		for _, card := range g.Permanents(object.InvalidID) {
			if err := g.reset(card, Attacking); err != nil {
				return err
			}
			if err := g.reset(card, Blocking); err != nil {
				return err
			}
		}
		return effects.CleanupEndOfCombatEffects(g.Effects)
	})
}
