package effects

import (
	"fmt"

	"github.com/fparadis2/mox/internal/game/object"
)

// EffectBuilder provides a fluent API for creating effect instances from
// spell and ability resolution.
type EffectBuilder struct {
	engine   *Engine
	sourceID object.ID
	targets  []object.ID
	duration Duration
	cond     Condition
	zone     ZoneRef
}

// NewEffectBuilder creates a builder for effects coming from source.
// Effects last until end of turn unless told otherwise.
func NewEffectBuilder(engine *Engine, source object.ID) *EffectBuilder {
	return &EffectBuilder{
		engine:   engine,
		sourceID: source,
		duration: DurationEndOfTurn,
	}
}

// Targeting binds the effect to a fixed set of objects.
func (b *EffectBuilder) Targeting(ids ...object.ID) *EffectBuilder {
	b.targets = append([]object.ID(nil), ids...)
	return b
}

// Tracking binds the effect to every member of zone matching cond.
func (b *EffectBuilder) Tracking(cond Condition, zone ZoneRef) *EffectBuilder {
	b.cond = cond
	b.zone = zone
	return b
}

// UntilEndOfTurn sets the duration to end of turn
func (b *EffectBuilder) UntilEndOfTurn() *EffectBuilder {
	b.duration = DurationEndOfTurn
	return b
}

// UntilEndOfCombat sets the duration to end of combat
func (b *EffectBuilder) UntilEndOfCombat() *EffectBuilder {
	b.duration = DurationEndOfCombat
	return b
}

// Permanent sets the duration to permanent
func (b *EffectBuilder) Permanent() *EffectBuilder {
	b.duration = DurationPermanent
	return b
}

// Apply creates the instance carrying effect.
func (b *EffectBuilder) Apply(effect Effect) (object.ID, error) {
	if b.engine == nil {
		return object.InvalidID, fmt.Errorf("apply effect: no engine")
	}
	scope, err := b.engine.ScopeFor(b.duration)
	if err != nil {
		return object.InvalidID, err
	}
	if b.cond != nil {
		return b.engine.AddTracking(effect, scope, b.sourceID, b.cond, b.zone)
	}
	return b.engine.Add(effect, scope, b.sourceID, b.targets...)
}

// ModifyPT applies a ModifyPT effect.
func (b *EffectBuilder) ModifyPT(power, toughness int) (object.ID, error) {
	return b.Apply(ModifyPT{Power: power, Toughness: toughness})
}

// SwitchPT applies a SwitchPT effect.
func (b *EffectBuilder) SwitchPT() (object.ID, error) {
	return b.Apply(SwitchPT{})
}

// GrantAbility applies an AddAbility effect.
func (b *EffectBuilder) GrantAbility(a Ability) (object.ID, error) {
	return b.Apply(AddAbility{Ability: a})
}
