package game

import (
	"github.com/fparadis2/mox/internal/game/effects"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
)

// SpellEffect is what an instant or sorcery does when it resolves.
type SpellEffect interface {
	// Targets returns what the spell may target, 0 for untargeted spells.
	Targets() rules.TargetKind
	// Resolve applies the spell. Targets that became illegal are skipped.
	Resolve(g *Game, source, controller object.ID, targets []object.ID) error
}

// StaticAbility is applied while its source is on the battlefield.
type StaticAbility interface {
	// Apply creates the effect instance of the ability. The instance is
	// removed when source leaves the battlefield.
	Apply(g *Game, source object.ID) (object.ID, error)
}

// DealDamage deals Amount damage to each target.
type DealDamage struct {
	Amount int
	Kind   rules.TargetKind
}

func (s DealDamage) Targets() rules.TargetKind { return s.Kind }

func (s DealDamage) Resolve(g *Game, source, _ object.ID, targets []object.ID) error {
	for _, target := range targets {
		if !g.Legality.IsLegalTarget(target, s.Kind) {
			continue
		}
		if err := g.DealDamage(source, target, s.Amount); err != nil {
			return err
		}
	}
	return nil
}

// Pump gives target creatures +Power/+Toughness until end of turn.
type Pump struct {
	Power     int
	Toughness int
}

func (Pump) Targets() rules.TargetKind { return rules.TargetCreature }

func (s Pump) Resolve(g *Game, source, _ object.ID, targets []object.ID) error {
	legal := legalTargets(g, targets, rules.TargetCreature)
	if len(legal) == 0 {
		return nil
	}
	_, err := effects.NewEffectBuilder(g.Effects, source).
		Targeting(legal...).
		UntilEndOfTurn().
		ModifyPT(s.Power, s.Toughness)
	return err
}

// SwitchTarget switches the power and toughness of target creatures until
// end of turn.
type SwitchTarget struct{}

func (SwitchTarget) Targets() rules.TargetKind { return rules.TargetCreature }

func (SwitchTarget) Resolve(g *Game, source, _ object.ID, targets []object.ID) error {
	legal := legalTargets(g, targets, rules.TargetCreature)
	if len(legal) == 0 {
		return nil
	}
	_, err := effects.NewEffectBuilder(g.Effects, source).
		Targeting(legal...).
		UntilEndOfTurn().
		SwitchPT()
	return err
}

// GainLife gives its controller Amount life.
type GainLife struct {
	Amount int
}

func (GainLife) Targets() rules.TargetKind { return 0 }

func (s GainLife) Resolve(g *Game, source, controller object.ID, _ []object.ID) error {
	return g.AdjustLife(controller, s.Amount, source)
}

// DrawCards makes its controller draw Count cards.
type DrawCards struct {
	Count int
}

func (DrawCards) Targets() rules.TargetKind { return 0 }

func (s DrawCards) Resolve(g *Game, _, controller object.ID, _ []object.ID) error {
	return g.Draw(controller, s.Count)
}

func legalTargets(g *Game, targets []object.ID, kind rules.TargetKind) []object.ID {
	var out []object.ID
	for _, t := range targets {
		if g.Legality.IsLegalTarget(t, kind) {
			out = append(out, t)
		}
	}
	return out
}

// Anthem boosts the creatures its controller controls.
type Anthem struct {
	Power     int
	Toughness int
}

func (a Anthem) Apply(g *Game, source object.ID) (object.ID, error) {
	zone, _ := ZoneRef(RootID, rules.ZoneBattlefield)
	return effects.NewCreatureBoost(g.Effects, source, g.ControllerOf(source), zone, a.Power, a.Toughness)
}

// ColorAnthem boosts every creature of a color.
type ColorAnthem struct {
	Color     effects.Color
	Power     int
	Toughness int
}

func (a ColorAnthem) Apply(g *Game, source object.ID) (object.ID, error) {
	zone, _ := ZoneRef(RootID, rules.ZoneBattlefield)
	return effects.NewColorBoost(g.Effects, source, a.Color, zone, a.Power, a.Toughness)
}
