package effects

import (
	"fmt"
	"strings"

	"github.com/fparadis2/mox/internal/game/object"
)

// Characteristics read through the layering engine.
var (
	Colors         = object.NewProperty("card.color", Colorless, object.Modifiable)
	Types          = object.NewProperty("card.types", CardType(0), object.Modifiable)
	Abilities      = object.NewProperty("card.abilities", Ability(0), object.Modifiable)
	PowerToughness = object.NewProperty("card.pt", PT{}, object.Modifiable)
	Controller     = object.NewProperty("card.controller", object.InvalidID, object.Modifiable|object.Public)
)

// Color is a set of card colors.
type Color uint8

const (
	ColorWhite Color = 1 << iota
	ColorBlue
	ColorBlack
	ColorRed
	ColorGreen

	Colorless Color = 0
)

var colorLetters = []struct {
	c      Color
	letter string
}{
	{ColorWhite, "W"}, {ColorBlue, "U"}, {ColorBlack, "B"}, {ColorRed, "R"}, {ColorGreen, "G"},
}

func (c Color) String() string {
	if c == Colorless {
		return "C"
	}
	var b strings.Builder
	for _, cl := range colorLetters {
		if c&cl.c != 0 {
			b.WriteString(cl.letter)
		}
	}
	return b.String()
}

// ParseColor parses letters such as "W" or "UB".
func ParseColor(s string) (Color, error) {
	var c Color
	for _, r := range strings.ToUpper(strings.TrimSpace(s)) {
		found := false
		for _, cl := range colorLetters {
			if string(r) == cl.letter {
				c |= cl.c
				found = true
			}
		}
		if !found && r != 'C' {
			return Colorless, fmt.Errorf("unknown color %q", r)
		}
	}
	return c, nil
}

// CardType is a set of card types.
type CardType uint8

const (
	TypeLand CardType = 1 << iota
	TypeCreature
	TypeInstant
	TypeSorcery
	TypeEnchantment
	TypeArtifact
)

var typeNames = []struct {
	t    CardType
	name string
}{
	{TypeLand, "Land"}, {TypeCreature, "Creature"}, {TypeInstant, "Instant"},
	{TypeSorcery, "Sorcery"}, {TypeEnchantment, "Enchantment"}, {TypeArtifact, "Artifact"},
}

// Has reports whether all types of other are present.
func (t CardType) Has(other CardType) bool {
	return other != 0 && t&other == other
}

// IsPermanent reports whether a card of this type stays on the battlefield.
func (t CardType) IsPermanent() bool {
	return t&(TypeLand|TypeCreature|TypeEnchantment|TypeArtifact) != 0
}

func (t CardType) String() string {
	var names []string
	for _, tn := range typeNames {
		if t&tn.t != 0 {
			names = append(names, tn.name)
		}
	}
	return strings.Join(names, " ")
}

// ParseCardType parses a space separated type line such as "Artifact Creature".
func ParseCardType(s string) (CardType, error) {
	var t CardType
	for _, word := range strings.Fields(s) {
		found := false
		for _, tn := range typeNames {
			if strings.EqualFold(word, tn.name) {
				t |= tn.t
				found = true
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown card type %q", word)
		}
	}
	return t, nil
}

// Ability is a set of keyword abilities.
type Ability uint8

const (
	AbilityFlying Ability = 1 << iota
	AbilityReach
	AbilityHaste
	AbilityVigilance
	AbilityDefender
)

var abilityNames = []struct {
	a    Ability
	name string
}{
	{AbilityFlying, "Flying"}, {AbilityReach, "Reach"}, {AbilityHaste, "Haste"},
	{AbilityVigilance, "Vigilance"}, {AbilityDefender, "Defender"},
}

// Has reports whether all abilities of other are present.
func (a Ability) Has(other Ability) bool {
	return other != 0 && a&other == other
}

func (a Ability) String() string {
	var names []string
	for _, an := range abilityNames {
		if a&an.a != 0 {
			names = append(names, an.name)
		}
	}
	return strings.Join(names, ", ")
}

// ParseAbility parses a comma separated keyword list.
func ParseAbility(s string) (Ability, error) {
	var a Ability
	for _, word := range strings.Split(s, ",") {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		found := false
		for _, an := range abilityNames {
			if strings.EqualFold(word, an.name) {
				a |= an.a
				found = true
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown ability %q", word)
		}
	}
	return a, nil
}

// PT is a power/toughness pair.
type PT struct {
	Power     int
	Toughness int
}

func (pt PT) String() string {
	return fmt.Sprintf("%d/%d", pt.Power, pt.Toughness)
}
