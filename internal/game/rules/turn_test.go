package rules

import "testing"

func TestDefaultTurnSequence(t *testing.T) {
	expected := []Entry{
		{PhaseBeginning, StepUntap},
		{PhaseBeginning, StepUpkeep},
		{PhaseBeginning, StepDraw},
		{PhasePrecombatMain, StepNone},
		{PhaseCombat, StepBeginningOfCombat},
		{PhaseCombat, StepDeclareAttackers},
		{PhaseCombat, StepDeclareBlockers},
		{PhaseCombat, StepCombatDamage},
		{PhaseCombat, StepEndOfCombat},
		{PhasePostcombatMain, StepNone},
		{PhaseEnd, StepEnd},
		{PhaseEnd, StepCleanup},
	}

	seq := DefaultTurn.Sequence()
	if len(seq) != len(expected) {
		t.Fatalf("expected %d entries, got %d", len(expected), len(seq))
	}
	for i, exp := range expected {
		if seq[i] != exp {
			t.Fatalf("entry %d: expected %s, got %s", i, exp, seq[i])
		}
	}
}

func TestPhaseLookup(t *testing.T) {
	main, ok := DefaultTurn.Phase(PhasePrecombatMain)
	if !ok || len(main.Steps) != 0 {
		t.Fatalf("expected precombat main without steps, got %+v", main)
	}
	if got := DefaultTurn.PhaseOf(StepCombatDamage); got != PhaseCombat {
		t.Fatalf("expected combat damage in %s, got %s", PhaseCombat, got)
	}
	if got := DefaultTurn.PhaseOf(StepNone); got != PhaseNone {
		t.Fatalf("expected no phase for StepNone, got %s", got)
	}
}

func TestCombatWindow(t *testing.T) {
	for _, s := range []Step{StepDeclareAttackers, StepDeclareBlockers, StepCombatDamage} {
		if !s.IsCombatWindow() {
			t.Fatalf("expected %s to be a combat window", s)
		}
	}
	for _, s := range []Step{StepBeginningOfCombat, StepEndOfCombat, StepUpkeep} {
		if s.IsCombatWindow() {
			t.Fatalf("did not expect %s to be a combat window", s)
		}
	}
	if StepUntap.HasPriority() || StepCleanup.HasPriority() || !StepUpkeep.HasPriority() {
		t.Fatal("unexpected priority rules")
	}
}

func TestNames(t *testing.T) {
	if PhaseCombat.String() != "COMBAT" {
		t.Fatalf("unexpected phase name %s", PhaseCombat)
	}
	if Step(99).String() != "STEP_99" {
		t.Fatalf("unexpected fallback name %s", Step(99))
	}
}
