package effects

import "github.com/fparadis2/mox/internal/game/object"

// Condition selects the objects a tracking effect applies to.
type Condition interface {
	Matches(e *Engine, id object.ID) bool
	// Invalidates reports whether a change to prop can change Matches.
	Invalidates(prop *object.Property) bool
}

// CreaturesOfColor matches creatures having any of the given colors.
type CreaturesOfColor struct {
	Color Color
}

func (c CreaturesOfColor) Matches(e *Engine, id object.ID) bool {
	if !Get[CardType](e, id, Types).Has(TypeCreature) {
		return false
	}
	return Get[Color](e, id, Colors)&c.Color != 0
}

func (c CreaturesOfColor) Invalidates(prop *object.Property) bool {
	return prop == Colors || prop == Types
}

// CreaturesControlledBy matches creatures controlled by Player.
type CreaturesControlledBy struct {
	Player object.ID
}

func (c CreaturesControlledBy) Matches(e *Engine, id object.ID) bool {
	if !Get[CardType](e, id, Types).Has(TypeCreature) {
		return false
	}
	return Get[object.ID](e, id, Controller) == c.Player
}

func (c CreaturesControlledBy) Invalidates(prop *object.Property) bool {
	return prop == Controller || prop == Types
}

// ZoneRef names the collection a tracking effect scans.
type ZoneRef struct {
	Owner      object.ID
	Collection *object.Property
}
