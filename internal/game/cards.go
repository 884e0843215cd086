package game

import (
	"fmt"
	"sort"

	"github.com/fparadis2/mox/internal/game/effects"
	"github.com/fparadis2/mox/internal/game/mana"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
)

// CardDefinition is the printed text of a card.
type CardDefinition struct {
	Name      string
	Cost      string
	Types     effects.CardType
	Colors    effects.Color
	PT        effects.PT
	Abilities effects.Ability
	Produces  mana.ManaType
	Spell     SpellEffect
	Static    StaticAbility
}

// IsLand reports whether the card is played as a land drop.
func (d CardDefinition) IsLand() bool {
	return d.Types.Has(effects.TypeLand)
}

// IsInstant reports whether the card can be cast at instant speed.
func (d CardDefinition) IsInstant() bool {
	return d.Types.Has(effects.TypeInstant)
}

var catalog = map[string]CardDefinition{}

func register(defs ...CardDefinition) {
	for _, d := range defs {
		if _, exists := catalog[d.Name]; exists {
			panic(fmt.Sprintf("game: card %q registered twice", d.Name))
		}
		if _, err := mana.ParseCost(d.Cost); err != nil {
			panic(fmt.Sprintf("game: card %q: %v", d.Name, err))
		}
		catalog[d.Name] = d
	}
}

func basicLand(name string, t mana.ManaType) CardDefinition {
	return CardDefinition{Name: name, Types: effects.TypeLand, Produces: t}
}

func creature(name, cost string, color effects.Color, power, toughness int, abilities effects.Ability) CardDefinition {
	return CardDefinition{
		Name:      name,
		Cost:      cost,
		Types:     effects.TypeCreature,
		Colors:    color,
		PT:        effects.PT{Power: power, Toughness: toughness},
		Abilities: abilities,
	}
}

func init() {
	register(
		basicLand("Plains", mana.ManaWhite),
		basicLand("Island", mana.ManaBlue),
		basicLand("Swamp", mana.ManaBlack),
		basicLand("Mountain", mana.ManaRed),
		basicLand("Forest", mana.ManaGreen),

		creature("Savannah Lions", "{W}", effects.ColorWhite, 2, 1, 0),
		creature("Serra Angel", "{3}{W}{W}", effects.ColorWhite, 4, 4, effects.AbilityFlying|effects.AbilityVigilance),
		creature("Wall of Stone", "{1}{R}{R}", effects.ColorRed, 0, 8, effects.AbilityDefender),
		creature("Raging Goblin", "{R}", effects.ColorRed, 1, 1, effects.AbilityHaste),
		creature("Hill Giant", "{3}{R}", effects.ColorRed, 3, 3, 0),
		creature("Grizzly Bears", "{1}{G}", effects.ColorGreen, 2, 2, 0),
		creature("Giant Spider", "{3}{G}", effects.ColorGreen, 2, 4, effects.AbilityReach),
		creature("Wind Drake", "{2}{U}", effects.ColorBlue, 2, 2, effects.AbilityFlying),
		creature("Scathe Zombies", "{2}{B}", effects.ColorBlack, 2, 3, 0),

		CardDefinition{Name: "Lightning Bolt", Cost: "{R}", Types: effects.TypeInstant, Colors: effects.ColorRed,
			Spell: DealDamage{Amount: 3, Kind: rules.TargetAny}},
		CardDefinition{Name: "Shock", Cost: "{R}", Types: effects.TypeInstant, Colors: effects.ColorRed,
			Spell: DealDamage{Amount: 2, Kind: rules.TargetAny}},
		CardDefinition{Name: "Giant Growth", Cost: "{G}", Types: effects.TypeInstant, Colors: effects.ColorGreen,
			Spell: Pump{Power: 3, Toughness: 3}},
		CardDefinition{Name: "Twisted Image", Cost: "{U}", Types: effects.TypeInstant, Colors: effects.ColorBlue,
			Spell: SwitchTarget{}},
		CardDefinition{Name: "Healing Salve", Cost: "{W}", Types: effects.TypeInstant, Colors: effects.ColorWhite,
			Spell: GainLife{Amount: 3}},
		CardDefinition{Name: "Divination", Cost: "{2}{U}", Types: effects.TypeSorcery, Colors: effects.ColorBlue,
			Spell: DrawCards{Count: 2}},

		CardDefinition{Name: "Glorious Anthem", Cost: "{1}{W}{W}", Types: effects.TypeEnchantment, Colors: effects.ColorWhite,
			Static: Anthem{Power: 1, Toughness: 1}},
		CardDefinition{Name: "Crusade", Cost: "{W}{W}", Types: effects.TypeEnchantment, Colors: effects.ColorWhite,
			Static: ColorAnthem{Color: effects.ColorWhite, Power: 1, Toughness: 1}},
	)
}

// LookupCard returns the definition of a card by name.
func LookupCard(name string) (CardDefinition, bool) {
	d, ok := catalog[name]
	return d, ok
}

// CardNames lists the catalog.
func CardNames() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decks are the prebuilt decks offered by the lobby.
var Decks = map[string][]string{
	"red": deck(map[string]int{
		"Mountain": 17, "Raging Goblin": 4, "Hill Giant": 4, "Wall of Stone": 2,
		"Lightning Bolt": 4, "Shock": 4,
	}),
	"white": deck(map[string]int{
		"Plains": 17, "Savannah Lions": 4, "Serra Angel": 3, "Glorious Anthem": 2,
		"Crusade": 2, "Healing Salve": 2,
	}),
	"green-blue": deck(map[string]int{
		"Forest": 9, "Island": 8, "Grizzly Bears": 4, "Giant Spider": 3, "Wind Drake": 3,
		"Giant Growth": 3, "Twisted Image": 2, "Divination": 2,
	}),
}

func deck(counts map[string]int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	var out []string
	for _, name := range names {
		for i := 0; i < counts[name]; i++ {
			out = append(out, name)
		}
	}
	return out
}

type assignment struct {
	prop  *object.Property
	value any
}

// CreateCard creates a card in the library of owner.
func (g *Game) CreateCard(owner object.ID, name string) (object.ID, error) {
	def, ok := LookupCard(name)
	if !ok {
		return object.InvalidID, fmt.Errorf("create card %q: %w", name, ErrUnknownCard)
	}
	cost, err := mana.ParseCost(def.Cost)
	if err != nil {
		return object.InvalidID, fmt.Errorf("create card %q: %w", name, err)
	}
	var id object.ID
	err = g.Atomic(func() error {
		var err error
		if id, err = g.Objects.Create(KindCard); err != nil {
			return err
		}
		values := []assignment{
			{CardName, def.Name},
			{Cost, cost},
			{Owner, owner},
			{effects.Controller, owner},
			{effects.Types, def.Types},
			{effects.Colors, def.Colors},
			{effects.Abilities, def.Abilities},
		}
		if def.Types.Has(effects.TypeCreature) {
			values = append(values, assignment{effects.PowerToughness, def.PT})
		}
		if def.Produces != "" {
			values = append(values, assignment{Produces, def.Produces})
		}
		for _, v := range values {
			if err := g.set(id, v.prop, v.value); err != nil {
				return err
			}
		}
		return g.place(id, rules.ZoneLibrary, -1)
	})
	if err != nil {
		return object.InvalidID, fmt.Errorf("create card %q: %w", name, err)
	}
	return id, nil
}

// createHiddenCard creates a library card the game does not know the name
// of, as when a fork shuffles a library it cannot see.
func (g *Game) createHiddenCard(owner object.ID) (object.ID, error) {
	var id object.ID
	err := g.Atomic(func() error {
		var err error
		if id, err = g.Objects.Create(KindCard); err != nil {
			return err
		}
		if err := g.set(id, Owner, owner); err != nil {
			return err
		}
		if err := g.set(id, effects.Controller, owner); err != nil {
			return err
		}
		return g.place(id, rules.ZoneLibrary, -1)
	})
	if err != nil {
		return object.InvalidID, fmt.Errorf("create hidden card: %w", err)
	}
	return id, nil
}

// Definition returns the catalog entry of a card as far as the game knows
// it. Hidden cards have no definition.
func (g *Game) Definition(card object.ID) (CardDefinition, bool) {
	return LookupCard(g.CardName(card))
}

// CardName returns the name of a card, empty when hidden.
func (g *Game) CardName(card object.ID) string {
	return object.Value[string](g.Objects, card, CardName)
}

// CardOwner returns the owner of a card.
func (g *Game) CardOwner(card object.ID) object.ID {
	return object.Value[object.ID](g.Objects, card, Owner)
}

// ControllerOf returns the current controller of a card.
func (g *Game) ControllerOf(card object.ID) object.ID {
	return effects.Get[object.ID](g.Effects, card, effects.Controller)
}

// TypesOf returns the current types of a card.
func (g *Game) TypesOf(card object.ID) effects.CardType {
	return effects.Get[effects.CardType](g.Effects, card, effects.Types)
}

// AbilitiesOf returns the current keyword abilities of a card.
func (g *Game) AbilitiesOf(card object.ID) effects.Ability {
	return effects.Get[effects.Ability](g.Effects, card, effects.Abilities)
}

// PowerToughness returns the current power and toughness of a card.
func (g *Game) PowerToughness(card object.ID) effects.PT {
	return effects.Get[effects.PT](g.Effects, card, effects.PowerToughness)
}

// IsTapped reports whether a permanent is tapped.
func (g *Game) IsTapped(card object.ID) bool {
	return object.Value[bool](g.Objects, card, Tapped)
}

// DamageOn returns the damage marked on a creature.
func (g *Game) DamageOn(card object.ID) int {
	return object.Value[int](g.Objects, card, Damage)
}
