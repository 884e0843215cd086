package game

import (
	"fmt"

	"github.com/fparadis2/mox/internal/game/effects"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
	"go.uber.org/zap"
)

// ZoneRef returns the collection holding the cards of zone. Libraries,
// hands and graveyards belong to player; the other zones are shared.
func ZoneRef(player object.ID, zone rules.Zone) (effects.ZoneRef, bool) {
	switch zone {
	case rules.ZoneLibrary:
		return effects.ZoneRef{Owner: player, Collection: Library}, true
	case rules.ZoneHand:
		return effects.ZoneRef{Owner: player, Collection: Hand}, true
	case rules.ZoneGraveyard:
		return effects.ZoneRef{Owner: player, Collection: Graveyard}, true
	case rules.ZoneBattlefield:
		return effects.ZoneRef{Owner: RootID, Collection: Battlefield}, true
	case rules.ZoneStack:
		return effects.ZoneRef{Owner: RootID, Collection: StackZone}, true
	case rules.ZoneExile:
		return effects.ZoneRef{Owner: RootID, Collection: Exile}, true
	}
	return effects.ZoneRef{}, false
}

// ZoneOf returns the zone a card is in.
func (g *Game) ZoneOf(card object.ID) rules.Zone {
	return object.Value[rules.Zone](g.Objects, card, Zone)
}

// Cards returns the cards of a zone, top first for libraries.
func (g *Game) Cards(player object.ID, zone rules.Zone) []object.ID {
	ref, ok := ZoneRef(player, zone)
	if !ok {
		return nil
	}
	return g.Objects.Collection(ref.Owner, ref.Collection)
}

// place puts a card that is in no zone into zone at index (-1 appends).
func (g *Game) place(card object.ID, zone rules.Zone, index int) error {
	ref, ok := ZoneRef(g.CardOwner(card), zone)
	if !ok {
		return fmt.Errorf("place card %d: no zone %s", card, zone)
	}
	if err := g.Objects.AddToCollection(ref.Owner, ref.Collection, card, index); err != nil {
		return err
	}
	return g.set(card, Zone, zone)
}

func (g *Game) unplace(card object.ID) error {
	ref, ok := ZoneRef(g.CardOwner(card), g.ZoneOf(card))
	if !ok {
		return nil
	}
	if err := g.Objects.RemoveFromCollection(ref.Owner, ref.Collection, card); err != nil {
		return err
	}
	return g.set(card, Zone, rules.ZoneNone)
}

// MoveCard moves a card to the end of zone. Libraries take cards on top.
func (g *Game) MoveCard(card object.ID, to rules.Zone) error {
	index := -1
	if to == rules.ZoneLibrary {
		index = 0
	}
	return g.MoveCardAt(card, to, index)
}

// MoveCardAt moves a card to position index of zone. A permanent leaving
// the battlefield loses its tapped state, damage, combat status and the
// effects of its static abilities.
func (g *Game) MoveCardAt(card object.ID, to rules.Zone, index int) error {
	if g.Objects.Kind(card) != KindCard {
		return fmt.Errorf("move %d: %w", card, object.ErrUnknownObject)
	}
	from := g.ZoneOf(card)
	if from == to {
		return nil
	}
	err := g.Atomic(func() error {
		if from == rules.ZoneBattlefield {
			if err := g.leaveBattlefield(card); err != nil {
				return err
			}
		}
		if err := g.unplace(card); err != nil {
			return err
		}
		if err := g.place(card, to, index); err != nil {
			return err
		}
		if to == rules.ZoneBattlefield {
			return g.enterBattlefield(card)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("move card %d from %s to %s: %w", card, from, to, err)
	}
	g.logger.Debug("card moved",
		zap.Int("card", int(card)),
		zap.Stringer("from", from),
		zap.Stringer("to", to))
	if from == rules.ZoneBattlefield && to == rules.ZoneGraveyard && g.TypesOf(card).Has(effects.TypeCreature) {
		g.publish(rules.Event{Type: rules.EventCreatureDied, Target: card, Player: g.CardOwner(card)})
	}
	return nil
}

func (g *Game) enterBattlefield(card object.ID) error {
	if err := g.set(card, Sick, true); err != nil {
		return err
	}
	def, ok := g.Definition(card)
	if !ok || def.Static == nil {
		return nil
	}
	_, err := def.Static.Apply(g, card)
	return err
}

func (g *Game) leaveBattlefield(card object.ID) error {
	for _, prop := range []*object.Property{Tapped, Damage, Sick, Attacking, Blocking} {
		if err := g.reset(card, prop); err != nil {
			return err
		}
	}
	for _, inst := range g.Effects.Instances() {
		source := object.Value[object.ID](g.Objects, inst, effects.EffectSource)
		scope := object.Value[effects.Scope](g.Objects, inst, effects.EffectScope)
		if source == card && scope == 0 {
			if err := g.Effects.Remove(inst); err != nil {
				return err
			}
			continue
		}
		if err := g.Effects.RemoveAffected(inst, card); err != nil {
			return err
		}
	}
	return g.set(card, effects.Controller, g.CardOwner(card))
}

// Draw moves the top n cards of the library of player to their hand.
// Drawing from an empty library is recorded for state-based actions.
func (g *Game) Draw(player object.ID, n int) error {
	return g.Atomic(func() error {
		for i := 0; i < n; i++ {
			library := g.Cards(player, rules.ZoneLibrary)
			if len(library) == 0 {
				return g.set(player, DrewFromEmpty, true)
			}
			if err := g.MoveCard(library[0], rules.ZoneHand); err != nil {
				return err
			}
			g.publish(rules.Event{Type: rules.EventCardDrawn, Player: player, Amount: 1})
		}
		return nil
	})
}

// ShuffleLibrary randomizes the library of player. Its cards become new
// objects: the ids known before the shuffle are destroyed and fresh ones are
// created in the new order, so an id seen in a hand, in the decklist order or
// at a library position says nothing about the shuffled cards.
func (g *Game) ShuffleLibrary(player object.ID) error {
	library := g.Cards(player, rules.ZoneLibrary)
	if len(library) == 0 {
		return nil
	}
	shuffled := g.Shuffle(library)
	names := make([]string, len(shuffled))
	for i, card := range shuffled {
		names[i] = g.CardName(card)
	}
	err := g.Atomic(func() error {
		for _, card := range library {
			if err := g.Objects.Destroy(card); err != nil {
				return err
			}
		}
		for _, name := range names {
			var err error
			if name == "" {
				_, err = g.createHiddenCard(player)
			} else {
				_, err = g.CreateCard(player, name)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("shuffle library of %d: %w", player, err)
	}
	return nil
}
