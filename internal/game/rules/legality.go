package rules

import (
	"fmt"

	"github.com/fparadis2/mox/internal/game/object"
)

// GameStateAccessor provides the game state needed for legality checks.
type GameStateAccessor interface {
	// CardZone returns the zone of a card, false if id is not a card.
	CardZone(id object.ID) (Zone, bool)
	// IsPlayer reports whether id names a player.
	IsPlayer(id object.ID) bool
	// HasLost reports whether the player has lost the game.
	HasLost(player object.ID) bool
	// IsCreature reports whether id is currently a creature.
	IsCreature(id object.ID) bool
}

// TargetKind restricts what a target may be.
type TargetKind int

const (
	TargetPlayer TargetKind = 1 << iota
	TargetCreature

	TargetAny = TargetPlayer | TargetCreature
)

// StackItem is what legality checks need to know about a spell.
type StackItem struct {
	Card       object.ID
	Controller object.ID
	Targets    []object.ID
	TargetKind TargetKind
}

// LegalityResult represents the result of a legality check.
type LegalityResult struct {
	Legal  bool
	Reason string
}

// LegalityChecker validates spells before they resolve.
type LegalityChecker struct {
	gameState GameStateAccessor
}

// NewLegalityChecker creates a new legality checker.
func NewLegalityChecker(gameState GameStateAccessor) *LegalityChecker {
	return &LegalityChecker{gameState: gameState}
}

// IsLegalTarget reports whether id may currently be targeted as kind.
func (lc *LegalityChecker) IsLegalTarget(id object.ID, kind TargetKind) bool {
	if lc == nil || lc.gameState == nil {
		return false
	}
	if kind&TargetPlayer != 0 && lc.gameState.IsPlayer(id) && !lc.gameState.HasLost(id) {
		return true
	}
	if kind&TargetCreature != 0 {
		zone, ok := lc.gameState.CardZone(id)
		return ok && zone == ZoneBattlefield && lc.gameState.IsCreature(id)
	}
	return false
}

// CheckStackItemLegality validates a spell right before resolution. A spell
// whose every target became illegal does not resolve.
func (lc *LegalityChecker) CheckStackItemLegality(item StackItem) LegalityResult {
	if lc == nil || lc.gameState == nil {
		return LegalityResult{Legal: true, Reason: "no checker"}
	}
	if lc.gameState.HasLost(item.Controller) {
		return LegalityResult{Reason: fmt.Sprintf("controller %d has lost", item.Controller)}
	}
	if zone, ok := lc.gameState.CardZone(item.Card); !ok || zone != ZoneStack {
		return LegalityResult{Reason: fmt.Sprintf("card %d is not on the stack", item.Card)}
	}
	if len(item.Targets) == 0 {
		return LegalityResult{Legal: true}
	}
	for _, target := range item.Targets {
		if lc.IsLegalTarget(target, item.TargetKind) {
			return LegalityResult{Legal: true}
		}
	}
	return LegalityResult{Reason: "all targets are illegal"}
}
