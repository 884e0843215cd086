package effects

import "github.com/fparadis2/mox/internal/game/object"

// Effect is a pure modifier of one property. The set of effect kinds is
// closed so instances can be replicated and encoded on the wire.
type Effect interface {
	Layer() Layer
	Property() *object.Property
	// Modify returns the value of the property once this effect applies.
	Modify(owner object.ID, value any) any
	// Invalidates reports whether a change to prop could change the output.
	Invalidates(prop *object.Property) bool
}

// ModifyPT adds to power and toughness.
type ModifyPT struct {
	Power     int
	Toughness int
}

func (ModifyPT) Layer() Layer                           { return LayerPTModify }
func (ModifyPT) Property() *object.Property             { return PowerToughness }
func (ModifyPT) Invalidates(prop *object.Property) bool { return false }

func (e ModifyPT) Modify(_ object.ID, value any) any {
	pt, _ := value.(PT)
	return PT{Power: pt.Power + e.Power, Toughness: pt.Toughness + e.Toughness}
}

// SetPT sets power and toughness to fixed values.
type SetPT struct {
	Power     int
	Toughness int
}

func (SetPT) Layer() Layer                           { return LayerPTSet }
func (SetPT) Property() *object.Property             { return PowerToughness }
func (SetPT) Invalidates(prop *object.Property) bool { return false }

func (e SetPT) Modify(object.ID, any) any {
	return PT{Power: e.Power, Toughness: e.Toughness}
}

// SwitchPT exchanges power and toughness as they are at its layer.
type SwitchPT struct{}

func (SwitchPT) Layer() Layer                           { return LayerPTSwitch }
func (SwitchPT) Property() *object.Property             { return PowerToughness }
func (SwitchPT) Invalidates(prop *object.Property) bool { return false }

func (SwitchPT) Modify(_ object.ID, value any) any {
	pt, _ := value.(PT)
	return PT{Power: pt.Toughness, Toughness: pt.Power}
}

// SetColor replaces the colors of the affected objects.
type SetColor struct {
	Color Color
}

func (SetColor) Layer() Layer                           { return LayerColorChanging }
func (SetColor) Property() *object.Property             { return Colors }
func (SetColor) Invalidates(prop *object.Property) bool { return false }

func (e SetColor) Modify(object.ID, any) any { return e.Color }

// AddAbility grants keyword abilities.
type AddAbility struct {
	Ability Ability
}

func (AddAbility) Layer() Layer                           { return LayerAbilityAdding }
func (AddAbility) Property() *object.Property             { return Abilities }
func (AddAbility) Invalidates(prop *object.Property) bool { return false }

func (e AddAbility) Modify(_ object.ID, value any) any {
	a, _ := value.(Ability)
	return a | e.Ability
}

// ChangeController gives control of the affected objects to Player.
type ChangeController struct {
	Player object.ID
}

func (ChangeController) Layer() Layer                           { return LayerControlChanging }
func (ChangeController) Property() *object.Property             { return Controller }
func (ChangeController) Invalidates(prop *object.Property) bool { return false }

func (e ChangeController) Modify(object.ID, any) any { return e.Player }

// AddType adds card types.
type AddType struct {
	Type CardType
}

func (AddType) Layer() Layer                           { return LayerTypeChanging }
func (AddType) Property() *object.Property             { return Types }
func (AddType) Invalidates(prop *object.Property) bool { return false }

func (e AddType) Modify(_ object.ID, value any) any {
	t, _ := value.(CardType)
	return t | e.Type
}
