package effects

import "github.com/fparadis2/mox/internal/game/object"

// NewCreatureBoost adds a permanent +power/+toughness to every creature in
// zone controlled by controller, like an anthem enchantment. The returned
// instance keeps following the battlefield while tracking is enabled.
func NewCreatureBoost(e *Engine, source, controller object.ID, zone ZoneRef, power, toughness int) (object.ID, error) {
	return NewEffectBuilder(e, source).
		Permanent().
		Tracking(CreaturesControlledBy{Player: controller}, zone).
		ModifyPT(power, toughness)
}

// NewColorBoost adds a permanent bonus to every creature of the given color.
func NewColorBoost(e *Engine, source object.ID, color Color, zone ZoneRef, power, toughness int) (object.ID, error) {
	return NewEffectBuilder(e, source).
		Permanent().
		Tracking(CreaturesOfColor{Color: color}, zone).
		ModifyPT(power, toughness)
}
