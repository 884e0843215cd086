package rules

import (
	"testing"

	"github.com/fparadis2/mox/internal/game/object"
)

type fakeState struct {
	zones     map[object.ID]Zone
	players   map[object.ID]bool
	lost      map[object.ID]bool
	creatures map[object.ID]bool
}

func (s *fakeState) CardZone(id object.ID) (Zone, bool) {
	z, ok := s.zones[id]
	return z, ok
}

func (s *fakeState) IsPlayer(id object.ID) bool   { return s.players[id] }
func (s *fakeState) HasLost(id object.ID) bool    { return s.lost[id] }
func (s *fakeState) IsCreature(id object.ID) bool { return s.creatures[id] }

func newFakeState() *fakeState {
	return &fakeState{
		zones:     map[object.ID]Zone{10: ZoneStack, 11: ZoneBattlefield, 12: ZoneGraveyard},
		players:   map[object.ID]bool{1: true, 2: true},
		lost:      map[object.ID]bool{},
		creatures: map[object.ID]bool{11: true, 12: true},
	}
}

func TestIsLegalTarget(t *testing.T) {
	lc := NewLegalityChecker(newFakeState())

	if !lc.IsLegalTarget(1, TargetPlayer) {
		t.Fatal("expected player to be a legal player target")
	}
	if lc.IsLegalTarget(1, TargetCreature) {
		t.Fatal("player is not a creature")
	}
	if !lc.IsLegalTarget(11, TargetAny) {
		t.Fatal("expected creature on the battlefield to be legal")
	}
	if lc.IsLegalTarget(12, TargetCreature) {
		t.Fatal("creature in graveyard must not be targetable")
	}
}

func TestCheckStackItemLegality(t *testing.T) {
	state := newFakeState()
	lc := NewLegalityChecker(state)

	item := StackItem{Card: 10, Controller: 1, Targets: []object.ID{11}, TargetKind: TargetCreature}
	if res := lc.CheckStackItemLegality(item); !res.Legal {
		t.Fatalf("expected legal spell, got %q", res.Reason)
	}

	state.zones[11] = ZoneGraveyard
	if res := lc.CheckStackItemLegality(item); res.Legal {
		t.Fatal("expected spell with only illegal targets to fizzle")
	}

	untargeted := StackItem{Card: 10, Controller: 1}
	if res := lc.CheckStackItemLegality(untargeted); !res.Legal {
		t.Fatalf("expected untargeted spell to be legal, got %q", res.Reason)
	}

	state.lost[1] = true
	if res := lc.CheckStackItemLegality(untargeted); res.Legal {
		t.Fatal("spells of a player who lost must not resolve")
	}
}
