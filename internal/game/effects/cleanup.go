package effects

import (
	"fmt"

	"github.com/fparadis2/mox/internal/game/object"
)

// Duration represents how long an effect lasts
type Duration string

const (
	// DurationEndOfTurn effects end during the cleanup step.
	DurationEndOfTurn Duration = "EndOfTurn"
	// DurationEndOfCombat effects end during the end of combat step.
	DurationEndOfCombat Duration = "EndOfCombat"
	// DurationPermanent effects last until explicitly removed.
	DurationPermanent Duration = "Permanent"
)

func durationProperty(d Duration) *object.Property {
	switch d {
	case DurationEndOfTurn:
		return turnScope
	case DurationEndOfCombat:
		return combatScope
	default:
		return nil
	}
}

// ScopeFor returns the scope new effects of duration d belong to, opening
// one if none is active.
func (e *Engine) ScopeFor(d Duration) (Scope, error) {
	prop := durationProperty(d)
	if prop == nil {
		return 0, nil
	}
	if s := object.Value[Scope](e.m, e.root, prop); s != 0 {
		return s, nil
	}
	s, err := e.BeginScope()
	if err != nil {
		return 0, err
	}
	if err := e.m.SetValue(e.root, prop, s); err != nil {
		return 0, fmt.Errorf("open %s scope: %w", d, err)
	}
	return s, nil
}

// EndDuration ends the active scope of d, if any.
func (e *Engine) EndDuration(d Duration) error {
	prop := durationProperty(d)
	if prop == nil {
		return nil
	}
	s := object.Value[Scope](e.m, e.root, prop)
	if s == 0 {
		return nil
	}
	if err := e.EndScope(s); err != nil {
		return err
	}
	return e.m.SetValue(e.root, prop, Scope(0))
}

// CleanupEndOfCombatEffects ends every until-end-of-combat effect.
func CleanupEndOfCombatEffects(e *Engine) error {
	if e == nil {
		return nil
	}
	return e.EndDuration(DurationEndOfCombat)
}

// CleanupEndOfTurnEffects ends every until-end-of-turn effect. Combat
// effects that somehow outlived combat end as well.
func CleanupEndOfTurnEffects(e *Engine) error {
	if e == nil {
		return nil
	}
	if err := e.EndDuration(DurationEndOfCombat); err != nil {
		return err
	}
	return e.EndDuration(DurationEndOfTurn)
}
