// Package watchers accumulates per-player statistics from game events.
package watchers

import (
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
)

// Watcher reacts to game events.
type Watcher interface {
	Watch(event rules.Event)
	Reset()
	// Triggered reports whether the watcher saw a matching event since the
	// last reset.
	Triggered() bool
}

type base struct {
	triggered bool
}

func (b *base) Triggered() bool { return b.triggered }

// SpellsCastWatcher tracks spells cast by players.
type SpellsCastWatcher struct {
	base
	spellsCast map[object.ID][]object.ID // player -> spells
}

// NewSpellsCastWatcher creates a new spells cast watcher.
func NewSpellsCastWatcher() *SpellsCastWatcher {
	return &SpellsCastWatcher{spellsCast: make(map[object.ID][]object.ID)}
}

func (w *SpellsCastWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventSpellCast || event.Player == object.InvalidID {
		return
	}
	w.spellsCast[event.Player] = append(w.spellsCast[event.Player], event.Target)
	w.triggered = true
}

func (w *SpellsCastWatcher) Reset() {
	w.triggered = false
	w.spellsCast = make(map[object.ID][]object.ID)
}

// SpellsCast returns the spells cast by a player, in order.
func (w *SpellsCastWatcher) SpellsCast(player object.ID) []object.ID {
	return w.spellsCast[player]
}

// Count returns the number of spells cast by a player.
func (w *SpellsCastWatcher) Count(player object.ID) int {
	return len(w.spellsCast[player])
}

// CreaturesDiedWatcher tracks creatures put into a graveyard from the
// battlefield.
type CreaturesDiedWatcher struct {
	base
	byOwner map[object.ID]int
}

// NewCreaturesDiedWatcher creates a new creatures died watcher.
func NewCreaturesDiedWatcher() *CreaturesDiedWatcher {
	return &CreaturesDiedWatcher{byOwner: make(map[object.ID]int)}
}

func (w *CreaturesDiedWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventCreatureDied {
		return
	}
	w.byOwner[event.Player]++
	w.triggered = true
}

func (w *CreaturesDiedWatcher) Reset() {
	w.triggered = false
	w.byOwner = make(map[object.ID]int)
}

// AmountByOwner returns the number of creatures of owner that died.
func (w *CreaturesDiedWatcher) AmountByOwner(owner object.ID) int {
	return w.byOwner[owner]
}

// TotalAmount returns the number of creatures that died.
func (w *CreaturesDiedWatcher) TotalAmount() int {
	total := 0
	for _, count := range w.byOwner {
		total += count
	}
	return total
}

// CardsDrawnWatcher tracks cards drawn by players.
type CardsDrawnWatcher struct {
	base
	cardsDrawn map[object.ID]int
}

// NewCardsDrawnWatcher creates a new cards drawn watcher.
func NewCardsDrawnWatcher() *CardsDrawnWatcher {
	return &CardsDrawnWatcher{cardsDrawn: make(map[object.ID]int)}
}

func (w *CardsDrawnWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventCardDrawn || event.Player == object.InvalidID {
		return
	}
	w.cardsDrawn[event.Player] += event.Amount
	w.triggered = true
}

func (w *CardsDrawnWatcher) Reset() {
	w.triggered = false
	w.cardsDrawn = make(map[object.ID]int)
}

// Count returns the number of cards drawn by a player.
func (w *CardsDrawnWatcher) Count(player object.ID) int {
	return w.cardsDrawn[player]
}

// LifeLostWatcher tracks life lost by players.
type LifeLostWatcher struct {
	base
	lost map[object.ID]int
}

// NewLifeLostWatcher creates a new life lost watcher.
func NewLifeLostWatcher() *LifeLostWatcher {
	return &LifeLostWatcher{lost: make(map[object.ID]int)}
}

func (w *LifeLostWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventLifeChanged || event.Amount >= 0 {
		return
	}
	w.lost[event.Target] -= event.Amount
	w.triggered = true
}

func (w *LifeLostWatcher) Reset() {
	w.triggered = false
	w.lost = make(map[object.ID]int)
}

// Amount returns the life lost by a player.
func (w *LifeLostWatcher) Amount(player object.ID) int {
	return w.lost[player]
}
