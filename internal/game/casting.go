package game

import (
	"fmt"

	"github.com/fparadis2/mox/internal/game/effects"
	"github.com/fparadis2/mox/internal/game/mana"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
	"go.uber.org/zap"
)

// CardZone implements rules.GameStateAccessor.
func (g *Game) CardZone(id object.ID) (rules.Zone, bool) {
	if g.Objects.Kind(id) != KindCard {
		return rules.ZoneNone, false
	}
	return g.ZoneOf(id), true
}

// IsPlayer implements rules.GameStateAccessor.
func (g *Game) IsPlayer(id object.ID) bool {
	return g.Objects.Kind(id) == KindPlayer
}

// IsCreature implements rules.GameStateAccessor.
func (g *Game) IsCreature(id object.ID) bool {
	return g.Objects.Kind(id) == KindCard && g.TypesOf(id).Has(effects.TypeCreature)
}

// Permanents returns the battlefield cards controlled by player, or every
// battlefield card for object.InvalidID.
func (g *Game) Permanents(player object.ID) []object.ID {
	all := g.Cards(RootID, rules.ZoneBattlefield)
	if player == object.InvalidID {
		return all
	}
	var out []object.ID
	for _, card := range all {
		if g.ControllerOf(card) == player {
			out = append(out, card)
		}
	}
	return out
}

// Creatures returns the creatures controlled by player.
func (g *Game) Creatures(player object.ID) []object.ID {
	var out []object.ID
	for _, card := range g.Permanents(player) {
		if g.IsCreature(card) {
			out = append(out, card)
		}
	}
	return out
}

// StackTop returns the spell that resolves next, or object.InvalidID.
func (g *Game) StackTop() object.ID {
	stack := g.Cards(RootID, rules.ZoneStack)
	if len(stack) == 0 {
		return object.InvalidID
	}
	return stack[len(stack)-1]
}

func (g *Game) sorcerySpeed(player object.ID) bool {
	phase := g.Phase()
	return player == g.ActivePlayer() &&
		(phase == rules.PhasePrecombatMain || phase == rules.PhasePostcombatMain) &&
		g.StackTop() == object.InvalidID
}

func (g *Game) inHandOf(player, card object.ID) bool {
	return g.ZoneOf(card) == rules.ZoneHand && g.CardOwner(card) == player
}

// CanPlayLand reports whether player may play card as their land drop.
func (g *Game) CanPlayLand(player, card object.ID) bool {
	def, ok := g.Definition(card)
	return ok && def.IsLand() &&
		g.inHandOf(player, card) &&
		g.sorcerySpeed(player) &&
		object.Value[int](g.Objects, player, LandsPlayed) == 0
}

// PlayLand puts a land from the hand of player onto the battlefield.
func (g *Game) PlayLand(player, card object.ID) error {
	if !g.CanPlayLand(player, card) {
		return fmt.Errorf("play land %d: %w", card, ErrIllegalAction)
	}
	err := g.Atomic(func() error {
		if err := g.MoveCard(card, rules.ZoneBattlefield); err != nil {
			return err
		}
		return g.set(player, LandsPlayed, object.Value[int](g.Objects, player, LandsPlayed)+1)
	})
	if err != nil {
		return fmt.Errorf("play land %d: %w", card, err)
	}
	g.publish(rules.Event{Type: rules.EventLandPlayed, Target: card, Player: player})
	return nil
}

// ManaSources returns the untapped lands player can tap for mana. Keys are
// card ids.
func (g *Game) ManaSources(player object.ID) []mana.Source {
	var out []mana.Source
	for _, card := range g.Permanents(player) {
		produces := object.Value[mana.ManaType](g.Objects, card, Produces)
		if produces == "" || g.IsTapped(card) {
			continue
		}
		out = append(out, mana.Source{Key: int(card), Produces: produces})
	}
	return out
}

// TapForMana taps a land and adds its mana to its controller's pool.
func (g *Game) TapForMana(card object.ID) error {
	produces := object.Value[mana.ManaType](g.Objects, card, Produces)
	if produces == "" || g.ZoneOf(card) != rules.ZoneBattlefield || g.IsTapped(card) {
		return fmt.Errorf("tap %d for mana: %w", card, ErrIllegalAction)
	}
	return g.Atomic(func() error {
		if err := g.set(card, Tapped, true); err != nil {
			return err
		}
		return g.AddMana(g.ControllerOf(card), produces, 1)
	})
}

// CostOf returns the mana cost of a card.
func (g *Game) CostOf(card object.ID) mana.ManaCost {
	return object.Value[mana.ManaCost](g.Objects, card, Cost)
}

// CanCast reports whether player may cast card now and could pay for it
// with their pool and untapped lands.
func (g *Game) CanCast(player, card object.ID) bool {
	def, ok := g.Definition(card)
	if !ok || def.IsLand() || !g.inHandOf(player, card) {
		return false
	}
	if !def.IsInstant() && !g.sorcerySpeed(player) {
		return false
	}
	if def.Spell != nil && def.Spell.Targets() != 0 && len(g.LegalTargets(def.Spell.Targets())) == 0 {
		return false
	}
	_, ok = mana.PlanSources(g.CostOf(card), g.ManaPoolOf(player), g.ManaSources(player))
	return ok
}

// LegalTargets lists every object that may be targeted as kind.
func (g *Game) LegalTargets(kind rules.TargetKind) []object.ID {
	var out []object.ID
	if kind&rules.TargetPlayer != 0 {
		out = append(out, g.LivingPlayers()...)
	}
	if kind&rules.TargetCreature != 0 {
		out = append(out, g.Creatures(object.InvalidID)...)
	}
	return out
}

// PutOnStack moves card from the hand of player to the stack with its
// targets. Paying for it is left to the caller, usually inside the same
// transaction.
func (g *Game) PutOnStack(player, card object.ID, targets []object.ID) error {
	def, ok := g.Definition(card)
	if !ok || def.IsLand() || !g.inHandOf(player, card) {
		return fmt.Errorf("cast %d: %w", card, ErrIllegalAction)
	}
	if def.Spell != nil {
		kind := def.Spell.Targets()
		if kind != 0 && len(targets) == 0 {
			return fmt.Errorf("cast %s: missing target: %w", def.Name, ErrIllegalAction)
		}
		for _, t := range targets {
			if !g.Legality.IsLegalTarget(t, kind) {
				return fmt.Errorf("cast %s: illegal target %d: %w", def.Name, t, ErrIllegalAction)
			}
		}
	}
	err := g.Atomic(func() error {
		if err := g.MoveCard(card, rules.ZoneStack); err != nil {
			return err
		}
		if len(targets) == 0 {
			return nil
		}
		return g.set(card, Targets, append([]object.ID(nil), targets...))
	})
	if err != nil {
		return fmt.Errorf("cast %s: %w", def.Name, err)
	}
	g.publish(rules.Event{Type: rules.EventSpellCast, Target: card, Player: player})
	g.logger.Debug("spell cast",
		zap.String("card", def.Name),
		zap.Int("player", int(player)),
		zap.Int("targets", len(targets)))
	return nil
}

// Cast casts a spell paying its cost automatically from the pool of player
// and their lands. Everything is undone when any step fails.
func (g *Game) Cast(player, card object.ID, targets []object.ID) error {
	if !g.CanCast(player, card) {
		return fmt.Errorf("cast %d: %w", card, ErrIllegalAction)
	}
	return g.Transaction(func() error {
		cost := g.CostOf(card)
		keys, ok := mana.PlanSources(cost, g.ManaPoolOf(player), g.ManaSources(player))
		if !ok {
			return fmt.Errorf("cast %d: cannot pay %s: %w", card, cost, ErrIllegalAction)
		}
		if err := g.PutOnStack(player, card, targets); err != nil {
			return err
		}
		for _, key := range keys {
			if err := g.TapForMana(object.ID(key)); err != nil {
				return err
			}
		}
		return g.PayCost(player, cost)
	})
}

// TargetsOf returns the targets chosen for a spell on the stack.
func (g *Game) TargetsOf(card object.ID) []object.ID {
	return object.Value[[]object.ID](g.Objects, card, Targets)
}

// ResolveTop resolves the top spell of the stack. A spell whose targets are
// all illegal is countered.
func (g *Game) ResolveTop() error {
	card := g.StackTop()
	if card == object.InvalidID {
		return fmt.Errorf("resolve: empty stack: %w", ErrIllegalAction)
	}
	def, _ := g.Definition(card)
	controller := g.ControllerOf(card)
	targets := g.TargetsOf(card)
	item := rules.StackItem{Card: card, Controller: controller, Targets: targets}
	if def.Spell != nil {
		item.TargetKind = def.Spell.Targets()
	}

	result := g.Legality.CheckStackItemLegality(item)
	err := g.Atomic(func() error {
		if err := g.reset(card, Targets); err != nil {
			return err
		}
		if !result.Legal {
			return g.MoveCard(card, rules.ZoneGraveyard)
		}
		if def.Types.IsPermanent() {
			return g.MoveCard(card, rules.ZoneBattlefield)
		}
		if def.Spell != nil {
			if err := def.Spell.Resolve(g, card, controller, targets); err != nil {
				return err
			}
		}
		if g.ZoneOf(card) == rules.ZoneStack {
			return g.MoveCard(card, rules.ZoneGraveyard)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("resolve %s: %w", def.Name, err)
	}
	if !result.Legal {
		g.publish(rules.Event{Type: rules.EventSpellCountered, Target: card, Player: controller})
		g.logger.Debug("spell countered", zap.String("card", def.Name), zap.String("reason", result.Reason))
		return nil
	}
	g.publish(rules.Event{Type: rules.EventSpellResolved, Target: card, Player: controller})
	return nil
}
